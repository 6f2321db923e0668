package diagram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

// ImageFormat selects the graphviz output encoding.
type ImageFormat string

const (
	ImagePNG ImageFormat = "png"
	ImageSVG ImageFormat = "svg"
)

// RenderImage renders a DiagramModel through graphviz's dot layout.
func RenderImage(ctx context.Context, model *DiagramModel, format ImageFormat) ([]byte, error) {
	var gvFormat graphviz.Format
	switch format {
	case ImagePNG, "":
		gvFormat = graphviz.PNG
	case ImageSVG:
		gvFormat = graphviz.SVG
	default:
		return nil, fmt.Errorf("diagram: unsupported image format %q", format)
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.LRRank)
	if model.Title != "" {
		graph.SetLabel(model.Title)
	}

	gvNodes := make(map[string]*cgraph.Node, len(model.Nodes))
	for _, node := range model.Nodes {
		gvNode, nErr := graph.CreateNodeByName(node.ID)
		if nErr != nil {
			return nil, fmt.Errorf("diagram: create node %s: %w", node.Label, nErr)
		}
		gvNode.SetLabel(node.Label)
		styleNode(gvNode, node)
		gvNodes[node.ID] = gvNode
	}

	// Subnodes sit in a dashed cluster per connection type.
	for _, node := range model.Nodes {
		for _, sg := range node.Children {
			sub, subErr := graph.CreateSubGraphByName("cluster_" + node.ID + "_" + sg.Label)
			if subErr != nil {
				return nil, fmt.Errorf("diagram: create cluster %s: %w", sg.Label, subErr)
			}
			sub.SetLabel(sg.Label)
			sub.SetStyle(cgraph.DashedGraphStyle)

			for _, subNode := range sg.Nodes {
				if _, done := gvNodes[subNode.ID]; done {
					continue
				}
				gvSub, nErr := sub.CreateNodeByName(subNode.ID)
				if nErr != nil {
					return nil, fmt.Errorf("diagram: create node %s: %w", subNode.Label, nErr)
				}
				gvSub.SetLabel(subNode.Label)
				styleNode(gvSub, subNode)
				gvNodes[subNode.ID] = gvSub
			}
			for _, edge := range sg.Edges {
				e, eErr := connect(graph, gvNodes, edge)
				if eErr != nil {
					return nil, eErr
				}
				if e != nil {
					e.SetStyle(cgraph.DashedEdgeStyle)
					e.SetArrowHead(cgraph.NoneArrow)
				}
			}
		}
	}

	for _, edge := range model.Edges {
		e, eErr := connect(graph, gvNodes, edge)
		if eErr != nil {
			return nil, eErr
		}
		if e == nil {
			continue
		}
		if edge.Label != "" {
			e.SetLabel(edge.Label)
		}
		if edge.Back {
			e.SetStyle(cgraph.DashedEdgeStyle)
			e.SetConstraint(false)
		}
	}

	// Sticky notes float unconnected, as they do on the canvas.
	for i, note := range model.Notes {
		n, nErr := graph.CreateNodeByName(fmt.Sprintf("note_%d", i))
		if nErr != nil {
			return nil, fmt.Errorf("diagram: create note: %w", nErr)
		}
		n.SetLabel(firstLine(note))
		n.SetShape(cgraph.NoteShape)
		n.SetStyle(cgraph.FilledNodeStyle)
		n.SetFillColor("#fff5ad")
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, gvFormat, &buf); err != nil {
		return nil, fmt.Errorf("diagram: render %s: %w", format, err)
	}

	return buf.Bytes(), nil
}

// connect draws edge between two rendered nodes. It returns nil when either
// end was not rendered.
func connect(graph *cgraph.Graph, nodes map[string]*cgraph.Node, edge Edge) (*cgraph.Edge, error) {
	from, to := nodes[edge.From], nodes[edge.To]
	if from == nil || to == nil {
		return nil, nil
	}
	e, err := graph.CreateEdgeByName("", from, to)
	if err != nil {
		return nil, fmt.Errorf("diagram: create edge %s -> %s: %w", edge.From, edge.To, err)
	}
	return e, nil
}

type nodeStyle struct {
	shape     cgraph.Shape
	style     cgraph.NodeStyle
	fill      string
	fontColor string
}

var kindStyles = map[NodeKind]nodeStyle{
	NodeKindAction:      {shape: cgraph.BoxShape},
	NodeKindCondition:   {shape: cgraph.DiamondShape},
	NodeKindMerge:       {shape: cgraph.InvTrapeziumShape},
	NodeKindLoop:        {shape: cgraph.HexagonShape},
	NodeKindSubnode:     {shape: cgraph.EllipseShape},
	NodeKindTrigger:     {shape: cgraph.BoxShape, style: cgraph.FilledNodeStyle, fill: "#2d6a2d", fontColor: "white"},
	NodeKindPlaceholder: {shape: cgraph.BoxShape, style: cgraph.DashedNodeStyle},
}

var disabledStyle = nodeStyle{style: cgraph.FilledNodeStyle, fill: "#e8e8e8", fontColor: "#888888"}

func (s nodeStyle) apply(n *cgraph.Node) {
	if s.shape != "" {
		n.SetShape(s.shape)
	}
	if s.style != "" {
		n.SetStyle(s.style)
	}
	if s.fill != "" {
		n.SetFillColor(s.fill)
	}
	if s.fontColor != "" {
		n.SetFontColor(s.fontColor)
	}
}

// styleNode shapes a node by kind and greys it out when disabled.
func styleNode(gvNode *cgraph.Node, node *Node) {
	kindStyles[node.Kind].apply(gvNode)
	if node.Disabled {
		disabledStyle.apply(gvNode)
	}
}
