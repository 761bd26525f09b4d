package comm

import (
	"runtime"
	"strconv"

	"github.com/clusterkit/topoviz/pkg/device"
	"github.com/clusterkit/topoviz/pkg/topology"
)

// writeTopologyDump snapshots the locally discovered devices as a topology
// document at path. The shape mirrors an NCCL dump: a system root, one cpu
// node for the host, and a pci/gpu pair per accelerator.
func writeTopologyDump(path string) error {
	devices, err := device.Discover()
	if err != nil {
		return err
	}

	cpu := &topology.Node{
		Tag: topology.TagCPU,
		Attrs: []topology.Attr{
			{Key: "numaid", Value: "0"},
			{Key: "arch", Value: runtime.GOARCH},
		},
	}
	for _, d := range devices {
		gpu := &topology.Node{
			Tag:   topology.TagGPU,
			Attrs: []topology.Attr{{Key: "dev", Value: strconv.Itoa(d.Index)}},
		}
		if d.Name != "" {
			gpu.Attrs = append(gpu.Attrs, topology.Attr{Key: "model", Value: d.Name})
		}
		cpu.Children = append(cpu.Children, &topology.Node{
			Tag:      topology.TagPCI,
			Attrs:    []topology.Attr{{Key: "busid", Value: d.BusID}},
			Children: []*topology.Node{gpu},
		})
	}

	root := &topology.Node{
		Tag:      topology.TagSystem,
		Attrs:    []topology.Attr{{Key: "version", Value: "2"}},
		Children: []*topology.Node{cpu},
	}
	return root.WriteFile(path)
}
