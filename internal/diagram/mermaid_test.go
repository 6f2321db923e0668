package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMermaidLinear(t *testing.T) {
	model, err := Build(linearWorkflow())
	require.NoError(t, err)

	output := RenderMermaid(model)

	assert.Contains(t, output, "graph LR")
	assert.Contains(t, output, "%% ETL Pipeline")

	// Triggers are stadiums, actions are boxes.
	assert.Contains(t, output, `n0(["Start"])`)
	assert.Contains(t, output, `n1["Fetch"]`)
	assert.Contains(t, output, "n0 --> n1")
	assert.Contains(t, output, "n1 --> n2")
	assert.Contains(t, output, "class n0 trigger")
}

func TestRenderMermaidBranch(t *testing.T) {
	model, err := Build(branchWorkflow())
	require.NoError(t, err)

	output := RenderMermaid(model)
	assert.Contains(t, output, `n1{"Check"}`)
	assert.Contains(t, output, "n1 -->|true| n2")
	assert.Contains(t, output, "n1 -->|false| n3")
	assert.Contains(t, output, "n3 -->|→ in 1| n4")
}

func TestRenderMermaidLoopAndSubnodes(t *testing.T) {
	model, err := Build(loopWorkflow())
	require.NoError(t, err)
	output := RenderMermaid(model)
	assert.Contains(t, output, `n2[["Batches"]]`)
	assert.Contains(t, output, "n1 -.-> n2")

	model, err = Build(agentWorkflow())
	require.NoError(t, err)
	output = RenderMermaid(model)
	assert.Contains(t, output, `subgraph n1_tool["tool"]`)
	assert.Contains(t, output, `n3(("Search"))`)
	assert.Contains(t, output, "n3 -.- n1")
	assert.Contains(t, output, "class n3 subnode")
	assert.Contains(t, output, "%% note: Ask anything\n")
}

func TestMermaidEscapeLabel(t *testing.T) {
	assert.Equal(t, "say #quot;hi#quot; #124; bye", mermaidEscapeLabel(`say "hi" | bye`))
	assert.Equal(t, "a_b_c_d", mermaidSafeID("a.b-c d"))
}
