package diagram

import (
	"fmt"
	"strings"
)

// RenderMermaid renders a DiagramModel as a Mermaid flowchart string.
func RenderMermaid(model *DiagramModel) string {
	var b strings.Builder

	b.WriteString("graph LR\n")

	if model.Title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", model.Title))
	}
	for _, note := range model.Notes {
		b.WriteString(fmt.Sprintf("    %%%% note: %s\n", firstLine(note)))
	}

	for _, node := range model.Nodes {
		b.WriteString(fmt.Sprintf("    %s\n", mermaidNodeDef(node)))

		for _, sg := range node.Children {
			b.WriteString(fmt.Sprintf("    subgraph %s[\"%s\"]\n",
				mermaidSafeID(node.ID+"_"+sg.Label), mermaidEscapeLabel(sg.Label)))
			for _, subNode := range sg.Nodes {
				b.WriteString(fmt.Sprintf("        %s\n", mermaidNodeDef(subNode)))
			}
			b.WriteString("    end\n")
			for _, edge := range sg.Edges {
				b.WriteString(fmt.Sprintf("    %s -.- %s\n", edge.From, edge.To))
			}
		}
	}

	for _, edge := range model.Edges {
		arrow := "-->"
		if edge.Back {
			arrow = "-.->"
		}
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", mermaidEscapeLabel(edge.Label))
		}
		b.WriteString(fmt.Sprintf("    %s %s%s %s\n", edge.From, arrow, label, edge.To))
	}

	b.WriteString("\n")
	b.WriteString("    classDef trigger fill:#2d6a2d,stroke:#1a4a1a,color:#fff\n")
	b.WriteString("    classDef subnode fill:#1a5276,stroke:#0e3a52,color:#fff\n")
	b.WriteString("    classDef placeholder fill:#6b6b6b,stroke:#4a4a4a,color:#fff,stroke-dasharray:5 5\n")
	b.WriteString("    classDef disabled fill:#4a4a4a,stroke:#333,color:#aaa\n")

	for _, node := range model.Nodes {
		writeMermaidClass(&b, node)
		for _, sg := range node.Children {
			for _, subNode := range sg.Nodes {
				writeMermaidClass(&b, subNode)
			}
		}
	}

	return b.String()
}

func writeMermaidClass(b *strings.Builder, node *Node) {
	if cls := mermaidClass(node); cls != "" {
		b.WriteString(fmt.Sprintf("    class %s %s\n", node.ID, cls))
	}
}

// mermaidNodeDef returns a Mermaid node definition with the appropriate shape.
func mermaidNodeDef(node *Node) string {
	label := mermaidEscapeLabel(node.Label)

	switch node.Kind {
	case NodeKindCondition:
		return fmt.Sprintf("%s{\"%s\"}", node.ID, label)
	case NodeKindTrigger:
		return fmt.Sprintf("%s([\"%s\"])", node.ID, label)
	case NodeKindMerge:
		return fmt.Sprintf("%s[/\"%s\"\\]", node.ID, label)
	case NodeKindLoop:
		return fmt.Sprintf("%s[[\"%s\"]]", node.ID, label)
	case NodeKindSubnode:
		return fmt.Sprintf("%s((\"%s\"))", node.ID, label)
	default: // action, placeholder
		return fmt.Sprintf("%s[\"%s\"]", node.ID, label)
	}
}

// mermaidSafeID converts an identifier to a Mermaid-safe one.
// Replaces dots, dashes and spaces with underscores.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return r.Replace(id)
}

// mermaidEscapeLabel escapes characters that end a quoted Mermaid label.
func mermaidEscapeLabel(s string) string {
	r := strings.NewReplacer(`"`, "#quot;", "|", "#124;", "\n", " ")
	return r.Replace(s)
}

// mermaidClass maps a node to a Mermaid class name.
func mermaidClass(node *Node) string {
	switch {
	case node.Disabled:
		return "disabled"
	case node.Kind == NodeKindTrigger:
		return "trigger"
	case node.Kind == NodeKindSubnode:
		return "subnode"
	case node.Kind == NodeKindPlaceholder:
		return "placeholder"
	}
	return ""
}
