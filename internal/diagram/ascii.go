package diagram

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const boxGap = 2

// RenderASCII renders model as plain text for terminals and chat replies:
// a row of boxes per level with arrows under the nodes that lead on, then
// the connection list, attached subnodes and sticky notes.
func RenderASCII(model *DiagramModel) string {
	var b strings.Builder
	if model.Title != "" {
		fmt.Fprintf(&b, "=== %s ===\n\n", model.Title)
	}

	byID := make(map[string]*Node, len(model.Nodes))
	for _, n := range model.Nodes {
		byID[n.ID] = n
	}
	leadsOn := make(map[string]bool, len(model.Edges))
	for _, e := range model.Edges {
		if !e.Back {
			leadsOn[e.From] = true
		}
	}

	for i, level := range model.Levels {
		var row []box
		for _, id := range level {
			if n := byID[id]; n != nil {
				row = append(row, newBox(n))
			}
		}
		writeRow(&b, row)
		if i < len(model.Levels)-1 {
			writeArrows(&b, row, leadsOn)
		}
	}

	if len(model.Edges) > 0 {
		b.WriteString("\n--- connections ---\n")
		for _, e := range model.Edges {
			writeEdge(&b, labelOf(byID, e.From), labelOf(byID, e.To), e)
		}
	}

	for _, n := range model.Nodes {
		if len(n.Children) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n--- %s subnodes ---\n", n.Label)
		for _, sg := range n.Children {
			fmt.Fprintf(&b, "  [%s]\n", sg.Label)
			for _, sub := range sg.Nodes {
				fmt.Fprintf(&b, "    %s (%s)\n", firstLine(sub.Label), sub.Type)
			}
		}
	}

	for _, note := range model.Notes {
		fmt.Fprintf(&b, "\nNOTE: %s\n", firstLine(note))
	}
	return b.String()
}

// tag marks the node kinds worth calling out in a box.
func tag(n *Node) string {
	if n.Disabled {
		return "[OFF]"
	}
	switch n.Kind {
	case NodeKindTrigger:
		return "[TRIGGER]"
	case NodeKindCondition:
		return "[IF]"
	case NodeKindMerge:
		return "[MERGE]"
	case NodeKindLoop:
		return "[LOOP]"
	case NodeKindPlaceholder:
		return "[TODO]"
	}
	return ""
}

type box struct {
	id    string
	lines []string
	width int // in runes
}

// newBox draws a node as name, short type and tag inside a frame.
func newBox(n *Node) box {
	content := []string{firstLine(n.Label)}
	if n.Type != "" && n.Type != content[0] {
		content = append(content, n.Type)
	}
	if t := tag(n); t != "" {
		content = append(content, t)
	}

	inner := 0
	for _, c := range content {
		inner = max(inner, utf8.RuneCountInString(c))
	}
	bar := strings.Repeat("─", inner+2)
	lines := make([]string, 0, len(content)+2)
	lines = append(lines, "┌"+bar+"┐")
	for _, c := range content {
		lines = append(lines, "│ "+c+strings.Repeat(" ", inner-utf8.RuneCountInString(c))+" │")
	}
	lines = append(lines, "└"+bar+"┘")
	return box{id: n.ID, lines: lines, width: inner + 4}
}

// writeRow writes boxes side by side, top-aligned.
func writeRow(b *strings.Builder, row []box) {
	height := 0
	for _, bx := range row {
		height = max(height, len(bx.lines))
	}
	for r := range height {
		var line strings.Builder
		for i, bx := range row {
			if i > 0 {
				line.WriteString(strings.Repeat(" ", boxGap))
			}
			if r < len(bx.lines) {
				line.WriteString(bx.lines[r])
			} else {
				line.WriteString(strings.Repeat(" ", bx.width))
			}
		}
		b.WriteString(strings.TrimRight(line.String(), " "))
		b.WriteByte('\n')
	}
}

// writeArrows draws an arrow under the middle of every box in row that has
// a forward connection.
func writeArrows(b *strings.Builder, row []box, leadsOn map[string]bool) {
	var cols []int
	offset := 0
	for _, bx := range row {
		if leadsOn[bx.id] {
			cols = append(cols, offset+bx.width/2)
		}
		offset += bx.width + boxGap
	}
	if len(cols) == 0 {
		return
	}
	for _, glyph := range []rune{'│', '▼'} {
		line := []rune(strings.Repeat(" ", cols[len(cols)-1]+1))
		for _, c := range cols {
			line[c] = glyph
		}
		b.WriteString(string(line))
		b.WriteByte('\n')
	}
}

func writeEdge(b *strings.Builder, from, to string, e Edge) {
	arrow := " ─→ "
	if e.Back {
		arrow = " ↺ "
	}
	fmt.Fprintf(b, "  %s%s%s", from, arrow, to)
	if e.Label != "" {
		fmt.Fprintf(b, " [%s]", e.Label)
	}
	b.WriteByte('\n')
}

func labelOf(byID map[string]*Node, id string) string {
	if n := byID[id]; n != nil {
		return n.Label
	}
	return id
}

// firstLine returns the first line of a multi-line label.
func firstLine(s string) string {
	first, _, _ := strings.Cut(s, "\n")
	return first
}
