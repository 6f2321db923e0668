package diagram

// NodeKind classifies a diagram node by the role its workflow node plays.
type NodeKind string

const (
	NodeKindTrigger     NodeKind = "trigger"
	NodeKindAction      NodeKind = "action"
	NodeKindCondition   NodeKind = "condition"
	NodeKindMerge       NodeKind = "merge"
	NodeKindLoop        NodeKind = "loop"
	NodeKindPlaceholder NodeKind = "placeholder"
	NodeKindSubnode     NodeKind = "subnode"
)

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title string
	Nodes []*Node
	Edges []Edge
	// Levels groups main node IDs by distance from the roots.
	Levels [][]string
	// Notes holds sticky note contents, which are not part of the graph.
	Notes []string
}

// Node represents a single workflow node in the diagram.
type Node struct {
	ID       string // diagram-safe identifier
	Label    string // node name
	Type     string // short node type
	Kind     NodeKind
	Disabled bool
	Children []*SubGraph // attached AI subnodes, one group per connection type
}

// SubGraph holds the subnodes attached to a node through one connection type.
type SubGraph struct {
	Label string
	Nodes []*Node
	Edges []Edge
}

// Edge is a main connection, or a subnode attachment inside a SubGraph.
type Edge struct {
	From  string
	To    string
	Label string
	// Back marks a connection that closes a loop.
	Back bool
}
