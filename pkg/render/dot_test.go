package render

import (
	"strings"
	"testing"

	"github.com/clusterkit/topoviz/pkg/topology"
)

func parseDoc(t *testing.T, doc string) *topology.Node {
	t.Helper()
	root, err := topology.Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parse test document: %v", err)
	}
	return root
}

func TestToDOTNodeAndEdgeCounts(t *testing.T) {
	root := parseDoc(t, `<system version="2">
		<cpu numaid="0">
			<pci busid="0000:17:00.0">
				<gpu dev="0"><nvlink target="0000:18:00.0"/></gpu>
			</pci>
			<nic><net name="mlx5_0"/></nic>
		</cpu>
	</system>`)

	dot := ToDOT(root, DefaultStyle())

	nodes := strings.Count(dot, "[label=")
	edges := strings.Count(dot, " -> ")
	if want := root.Count(); nodes != want {
		t.Errorf("DOT has %d nodes, want %d", nodes, want)
	}
	if want := root.Count() - 1; edges != want {
		t.Errorf("DOT has %d edges, want %d", edges, want)
	}
}

func TestNodeName(t *testing.T) {
	tests := []struct {
		name string
		node *topology.Node
		want string
	}{
		{
			name: "gpu by dev",
			node: &topology.Node{Tag: "gpu", Attrs: []topology.Attr{{Key: "dev", Value: "0"}}},
			want: "gpu_0",
		},
		{
			name: "pci busid sanitized",
			node: &topology.Node{Tag: "pci", Attrs: []topology.Attr{{Key: "busid", Value: "0000:00:1f.0"}}},
			want: "pci_0000_00_1f.0",
		},
		{
			name: "no identifying attribute",
			node: &topology.Node{Tag: "system", Attrs: []topology.Attr{{Key: "version", Value: "2"}}},
			want: "system",
		},
		{
			name: "identifying attribute absent",
			node: &topology.Node{Tag: "gpu"},
			want: "gpu",
		},
		{
			name: "net by name",
			node: &topology.Node{Tag: "net", Attrs: []topology.Attr{{Key: "name", Value: "mlx5_0"}}},
			want: "net_mlx5_0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NodeName(tt.node); got != tt.want {
				t.Errorf("NodeName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name string
		node *topology.Node
		want string
	}{
		{
			name: "gpu upper-cased with identifier",
			node: &topology.Node{Tag: "gpu", Attrs: []topology.Attr{{Key: "dev", Value: "0"}}},
			want: "GPU 0",
		},
		{
			name: "cpu upper-cased",
			node: &topology.Node{Tag: "cpu", Attrs: []topology.Attr{{Key: "numaid", Value: "1"}}},
			want: "CPU 1",
		},
		{
			name: "pci capitalized",
			node: &topology.Node{Tag: "pci", Attrs: []topology.Attr{{Key: "busid", Value: "0000:00:1f.0"}}},
			want: "Pci 0000_00_1f.0",
		},
		{
			name: "channel without identifier",
			node: &topology.Node{Tag: "channel"},
			want: "Channel",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Title(tt.node); got != tt.want {
				t.Errorf("Title() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{
			name:  "short value unmodified",
			value: "0000:17:00.0",
			want:  "0000:17:00.0",
		},
		{
			name:  "exactly 30 unmodified",
			value: strings.Repeat("a", 30),
			want:  strings.Repeat("a", 30),
		},
		{
			name:  "31 truncated to 27 plus ellipsis",
			value: strings.Repeat("a", 31),
			want:  strings.Repeat("a", 27) + "...",
		},
		{
			name:  "long affinity mask",
			value: "00000000,00000000,00000000,0000ffff",
			want:  "00000000,00000000,00000000,...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.value)
			if got != tt.want {
				t.Errorf("Truncate(%q) = %q, want %q", tt.value, got, tt.want)
			}
			if len(tt.value) > 30 && len(got) != 30 {
				t.Errorf("truncated length = %d, want 30", len(got))
			}
		})
	}
}

func TestToDOTLabels(t *testing.T) {
	root := parseDoc(t, `<system><gpu dev="0" sm="90"/></system>`)
	dot := ToDOT(root, DefaultStyle())

	if !strings.Contains(dot, "<B>GPU 0</B>") {
		t.Error("DOT should contain the bold GPU title")
	}
	if !strings.Contains(dot, `<FONT POINT-SIZE="10">sm</FONT>`) {
		t.Error("DOT should contain an attribute table row for sm")
	}
	if !strings.Contains(dot, `fillcolor="#E8F5E9"`) {
		t.Error("DOT should fill gpu nodes with the palette color")
	}
	// system has no attrs table entry in the palette: default white fill
	if !strings.Contains(dot, `"system" [`) {
		t.Error("DOT should name the root node by its tag")
	}
	if !strings.Contains(dot, `fillcolor="white"`) {
		t.Error("unknown tags should fall back to the default color")
	}
}

func TestToDOTEscapesAttributeValues(t *testing.T) {
	root := parseDoc(t, `<system note="a&lt;b&amp;c"/>`)
	dot := ToDOT(root, DefaultStyle())

	if !strings.Contains(dot, "a&lt;b&amp;c") {
		t.Errorf("attribute values must stay escaped inside HTML labels:\n%s", dot)
	}
}

func TestToDOTEdgeDirection(t *testing.T) {
	root := parseDoc(t, `<system><cpu numaid="0"/></system>`)
	dot := ToDOT(root, DefaultStyle())

	if !strings.Contains(dot, `"system" -> "cpu_0"`) {
		t.Errorf("edge should run parent -> child:\n%s", dot)
	}
}

func TestValidateFormat(t *testing.T) {
	for _, f := range []string{"png", "svg", "dot"} {
		if err := ValidateFormat(f); err != nil {
			t.Errorf("ValidateFormat(%q) = %v, want nil", f, err)
		}
	}
	if err := ValidateFormat("gif"); err == nil {
		t.Error("ValidateFormat(gif) should fail")
	}
}
