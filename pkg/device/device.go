// Package device discovers local accelerator devices.
//
// Discovery prefers the NVIDIA driver's procfs tree, which lists one
// directory per GPU keyed by PCI bus ID and exposes the device model in an
// information file. Hosts without that tree fall back to counting
// /dev/nvidia* device nodes. The TOPOVIZ_DEVICE_COUNT environment variable
// overrides discovery entirely, which is how the trigger is exercised on
// machines without GPUs.
package device

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/clusterkit/topoviz/pkg/errors"
)

// CountOverrideEnv overrides discovery with a fixed device count.
const CountOverrideEnv = "TOPOVIZ_DEVICE_COUNT"

// Discovery roots, overridable in tests.
var (
	procGPURoot = "/proc/driver/nvidia/gpus"
	devRoot     = "/dev"
)

// Device is one discovered accelerator.
type Device struct {
	Index int    // stable index, ordered by bus ID
	BusID string // PCI bus ID, e.g. "0000:17:00.0"
	Name  string // device model, if known
}

var devNodeRe = regexp.MustCompile(`^nvidia(\d+)$`)

// Discover returns the local accelerator devices, ordered by bus ID.
//
// When TOPOVIZ_DEVICE_COUNT is set, Discover synthesizes that many devices
// with placeholder bus IDs.
func Discover() ([]Device, error) {
	if v := os.Getenv(CountOverrideEnv); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, errors.New(errors.ErrCodeInvalidEnv, "%s must be a non-negative integer, got %q", CountOverrideEnv, v)
		}
		devices := make([]Device, n)
		for i := range devices {
			devices[i] = Device{Index: i, BusID: syntheticBusID(i), Name: "simulated accelerator"}
		}
		return devices, nil
	}

	if devices := fromProc(); len(devices) > 0 {
		return devices, nil
	}
	return fromDev(), nil
}

// Count returns the number of local accelerator devices.
func Count() (int, error) {
	devices, err := Discover()
	if err != nil {
		return 0, err
	}
	return len(devices), nil
}

// Supported reports whether any accelerator device is present.
func Supported() bool {
	n, err := Count()
	return err == nil && n > 0
}

// Bind validates that localRank addresses a discovered device and returns it.
// This is the per-process device assignment step of a distributed launch.
func Bind(localRank int) (Device, error) {
	devices, err := Discover()
	if err != nil {
		return Device{}, err
	}
	if localRank < 0 || localRank >= len(devices) {
		return Device{}, errors.New(errors.ErrCodeInvalidEnv,
			"local rank %d out of range for %d devices", localRank, len(devices))
	}
	return devices[localRank], nil
}

// fromProc reads the driver's per-GPU procfs directories.
func fromProc() []Device {
	entries, err := os.ReadDir(procGPURoot)
	if err != nil {
		return nil
	}

	var devices []Device
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		devices = append(devices, Device{
			BusID: e.Name(),
			Name:  modelName(filepath.Join(procGPURoot, e.Name(), "information")),
		})
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].BusID < devices[j].BusID })
	for i := range devices {
		devices[i].Index = i
	}
	return devices
}

// fromDev counts /dev/nvidiaN character devices.
func fromDev() []Device {
	entries, err := os.ReadDir(devRoot)
	if err != nil {
		return nil
	}

	var indices []int
	for _, e := range entries {
		m := devNodeRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil {
			indices = append(indices, n)
		}
	}
	sort.Ints(indices)

	devices := make([]Device, 0, len(indices))
	for i, n := range indices {
		devices = append(devices, Device{Index: i, BusID: syntheticBusID(n)})
	}
	return devices
}

// modelName extracts the "Model:" line from a driver information file.
func modelName(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	for s.Scan() {
		key, value, ok := strings.Cut(s.Text(), ":")
		if ok && strings.TrimSpace(key) == "Model" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// syntheticBusID fabricates a bus ID for devices discovered without PCI
// information, keeping downstream naming uniform.
func syntheticBusID(index int) string {
	return "0000:" + strconv.FormatInt(int64(index), 16) + "0:00.0"
}
