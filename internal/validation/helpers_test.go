package validation

import (
	"github.com/rendis/wfscript/pkg/schema"
)

const (
	manualTrigger = "n8n-nodes-base.manualTrigger"
	httpRequest   = "n8n-nodes-base.httpRequest"
	setNode       = "n8n-nodes-base.set"
)

func node(name, typ string) schema.Node {
	return schema.Node{
		ID:          "id-" + name,
		Name:        name,
		Type:        typ,
		TypeVersion: 1,
		Parameters:  map[string]any{},
	}
}

func newWorkflow(nodes ...schema.Node) *schema.Workflow {
	return &schema.Workflow{
		Name:        "Test",
		Nodes:       nodes,
		Connections: map[string]schema.NodeOutputs{},
	}
}

// link adds a connection from output of src to input of dst.
func link(wf *schema.Workflow, typ schema.ConnectionType, src string, output int, dst string, input int) {
	outs, ok := wf.Connections[src]
	if !ok {
		outs = schema.NodeOutputs{}
		wf.Connections[src] = outs
	}
	for len(outs[typ]) <= output {
		outs[typ] = append(outs[typ], []schema.ConnectionTarget{})
	}
	outs[typ][output] = append(outs[typ][output], schema.ConnectionTarget{Node: dst, Type: typ, Index: input})
}

func mainLink(wf *schema.Workflow, src, dst string) {
	link(wf, schema.ConnectionMain, src, 0, dst, 0)
}

func codes(issues []schema.ValidationIssue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.Code
	}
	return out
}
