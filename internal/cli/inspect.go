package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/clusterkit/topoviz/pkg/render"
	"github.com/clusterkit/topoviz/pkg/topology"
)

// Tree list styles.
var (
	inspectSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	inspectNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	inspectBorderStyle   = lipgloss.NewStyle().Foreground(colorDim)
)

// newInspectCmd creates the inspect command: an interactive terminal
// browser for a topology document.
func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [topology.xml]",
		Short: "Browse a topology document in the terminal",
		Long: `Browse a topology document in the terminal.

Navigate the device tree with the arrow keys, expand or collapse elements
with enter, and read the selected element's attributes in the table below
the tree. Press q to quit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := topology.ParseFile(args[0])
			if err != nil {
				return err
			}
			_, err = tea.NewProgram(newInspectModel(root)).Run()
			return err
		},
	}
}

// treeRow is one visible line of the tree view.
type treeRow struct {
	node  *topology.Node
	depth int
}

// inspectModel is the bubbletea model for the topology browser.
type inspectModel struct {
	root     *topology.Node
	expanded map[*topology.Node]bool
	rows     []treeRow // visible rows given the expansion state
	cursor   int
	offset   int
	height   int
}

func newInspectModel(root *topology.Node) inspectModel {
	m := inspectModel{
		root:     root,
		expanded: map[*topology.Node]bool{root: true},
		height:   15,
	}
	m.refresh()
	return m
}

// refresh rebuilds the visible rows from the expansion state.
func (m *inspectModel) refresh() {
	m.rows = m.rows[:0]
	m.appendVisible(m.root, 0)
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
}

func (m *inspectModel) appendVisible(n *topology.Node, depth int) {
	m.rows = append(m.rows, treeRow{node: n, depth: depth})
	if !m.expanded[n] {
		return
	}
	for _, c := range n.Children {
		m.appendVisible(c, depth+1)
	}
}

func (m inspectModel) Init() tea.Cmd {
	return nil
}

func (m inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// Leave room for the title and the attribute table.
		if h := msg.Height - 12; h > 3 {
			m.height = h
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
		case "enter", " ", "right", "l":
			n := m.rows[m.cursor].node
			if len(n.Children) > 0 {
				m.expanded[n] = !m.expanded[n]
				m.refresh()
			}
		case "left", "h":
			n := m.rows[m.cursor].node
			if m.expanded[n] {
				m.expanded[n] = false
				m.refresh()
			}
		}
	}

	// Keep the cursor inside the scrolling window.
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+m.height {
		m.offset = m.cursor - m.height + 1
	}
	return m, nil
}

func (m inspectModel) View() string {
	var b strings.Builder
	b.WriteString(styleTitle.Render("Topology") + "\n\n")

	end := m.offset + m.height
	if end > len(m.rows) {
		end = len(m.rows)
	}
	for i := m.offset; i < end; i++ {
		row := m.rows[i]
		line := strings.Repeat("  ", row.depth) + m.marker(row.node) + " " + render.Title(row.node)
		if i == m.cursor {
			b.WriteString(inspectSelectedStyle.Render("❯ " + line))
		} else {
			b.WriteString(inspectNormalStyle.Render("  " + line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n" + m.attrTable() + "\n")
	b.WriteString(styleDim.Render("↑/↓ move · enter expand/collapse · q quit"))
	return b.String()
}

// marker shows the expansion state of a node.
func (m inspectModel) marker(n *topology.Node) string {
	if len(n.Children) == 0 {
		return "·"
	}
	if m.expanded[n] {
		return "▾"
	}
	return "▸"
}

// attrTable renders the selected node's attributes.
func (m inspectModel) attrTable() string {
	if len(m.rows) == 0 {
		return ""
	}
	n := m.rows[m.cursor].node
	if len(n.Attrs) == 0 {
		return styleDim.Render(fmt.Sprintf("<%s> has no attributes", n.Tag))
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(inspectBorderStyle).
		Headers("attribute", "value")
	for _, a := range n.Attrs {
		t.Row(a.Key, render.Truncate(a.Value))
	}
	return t.Render()
}
