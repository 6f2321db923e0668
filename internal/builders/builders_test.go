package builders

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/wfscript/pkg/interpreter"
	"github.com/rendis/wfscript/pkg/schema"
	"github.com/rendis/wfscript/pkg/sdk"
)

func sequentialIDs() Option {
	n := 0
	return WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	})
}

func build(t *testing.T, src string) *schema.Workflow {
	t.Helper()
	result, err := interpreter.Interpret(src, Functions(sequentialIDs()))
	require.NoError(t, err)
	wf, err := ExportWorkflow(result)
	require.NoError(t, err)
	return wf
}

func nodeNames(wf *schema.Workflow) []string {
	names := make([]string, len(wf.Nodes))
	for i, n := range wf.Nodes {
		names[i] = n.Name
	}
	return names
}

func mainTargets(wf *schema.Workflow, from string, output int) []string {
	lists := wf.Connections[from][schema.ConnectionMain]
	if output >= len(lists) {
		return nil
	}
	var out []string
	for _, t := range lists[output] {
		out = append(out, t.Node)
	}
	return out
}

func TestFunctions_CoversEveryCapability(t *testing.T) {
	fns := Functions()
	require.NoError(t, fns.Validate())
	for _, name := range sdk.FunctionNames {
		assert.Contains(t, fns, name)
	}
}

func TestWorkflow_LinearChain(t *testing.T) {
	wf := build(t, `
const start = trigger({type: "n8n-nodes-base.manualTrigger", version: 1, config: {name: "Start"}});
const fetch = node({type: "n8n-nodes-base.httpRequest", version: 4.2, config: {
  name: "Fetch",
  parameters: {url: "https://example.com", method: "GET"},
}});
const save = node({type: "n8n-nodes-base.set", config: {name: "Save"}});
export default workflow("wf-1", "Linear").add(start).then(fetch).then(save);
`)
	assert.Equal(t, "wf-1", wf.ID)
	assert.Equal(t, "Linear", wf.Name)
	assert.Equal(t, []string{"Start", "Fetch", "Save"}, nodeNames(wf))
	assert.Equal(t, []string{"Fetch"}, mainTargets(wf, "Start", 0))
	assert.Equal(t, []string{"Save"}, mainTargets(wf, "Fetch", 0))
	assert.NotContains(t, wf.Connections, "Save")

	fetch := wf.Nodes[1]
	assert.Equal(t, "id-2", fetch.ID)
	assert.Equal(t, 4.2, fetch.TypeVersion)
	assert.Equal(t, map[string]any{"url": "https://example.com", "method": "GET"}, fetch.Parameters)
	assert.Equal(t, [2]float64{470, 300}, fetch.Position)
	assert.Equal(t, 1.0, wf.Nodes[2].TypeVersion)
}

func TestWorkflow_NodeChainAddedBeforeConnections(t *testing.T) {
	wf := build(t, `
const a = node({type: "x.a"});
const b = node({type: "x.b"});
const wf = workflow("w", "late").add(a);
a.to(b);
export default wf;
`)
	assert.Equal(t, []string{"A", "B"}, nodeNames(wf))
	assert.Equal(t, []string{"B"}, mainTargets(wf, "A", 0))
}

func TestWorkflow_DuplicateNamesGetSuffix(t *testing.T) {
	wf := build(t, `
const first = node({type: "n8n-nodes-base.set"});
export default workflow("w", "dupes")
  .add(first.to(node({type: "n8n-nodes-base.set"})).to(node({type: "n8n-nodes-base.set"})));
`)
	assert.Equal(t, []string{"Set", "Set1", "Set2"}, nodeNames(wf))
	assert.Equal(t, []string{"Set1"}, mainTargets(wf, "Set", 0))
	assert.Equal(t, []string{"Set2"}, mainTargets(wf, "Set1", 0))
}

func TestWorkflow_IfElseAndMerge(t *testing.T) {
	wf := build(t, `
const check = ifElse({config: {name: "Check", parameters: {conditions: {}}}});
const yes = node({type: "x.yes", config: {name: "Yes"}});
const no = node({type: "x.no", config: {name: "No"}});
const join = merge({config: {name: "Join"}});
yes.to(join.input(0));
no.to(join.input(1));
export default workflow("w", "branch").add(check.onTrue(yes).onFalse(no));
`)
	assert.Equal(t, []string{"Check", "Yes", "Join", "No"}, nodeNames(wf))
	assert.Equal(t, schema.NodeTypeIf, wf.Nodes[0].Type)
	assert.Equal(t, []string{"Yes"}, mainTargets(wf, "Check", 0))
	assert.Equal(t, []string{"No"}, mainTargets(wf, "Check", 1))

	noEdge := wf.Connections["No"][schema.ConnectionMain][0]
	require.Len(t, noEdge, 1)
	assert.Equal(t, schema.ConnectionTarget{Node: "Join", Type: schema.ConnectionMain, Index: 1}, noEdge[0])
}

func TestWorkflow_SwitchCaseLeavesEmptyOutputs(t *testing.T) {
	wf := build(t, `
const route = switchCase({config: {name: "Route"}});
route.onCase(0, node({type: "x.a", config: {name: "A"}}));
route.onCase(2, node({type: "x.c", config: {name: "C"}}));
export default workflow("w", "switch").add(route);
`)
	lists := wf.Connections["Route"][schema.ConnectionMain]
	require.Len(t, lists, 3)
	assert.Empty(t, lists[1])
	assert.NotNil(t, lists[1])
	assert.Equal(t, []string{"C"}, mainTargets(wf, "Route", 2))

	raw, err := json.Marshal(wf.Connections["Route"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"main":[[{"node":"A","type":"main","index":0}],[],[{"node":"C","type":"main","index":0}]]}`, string(raw))
}

func TestWorkflow_SplitInBatchesLoop(t *testing.T) {
	wf := build(t, `
const loop = splitInBatches({config: {name: "Loop", parameters: {batchSize: 10}}});
const work = node({type: "x.work", config: {name: "Work"}});
const done = node({type: "x.done", config: {name: "Done"}});
export default workflow("w", "loop").add(loop.onDone(done).onEachBatch(work.to(nextBatch(loop))));
`)
	assert.Equal(t, []string{"Done"}, mainTargets(wf, "Loop", 0))
	assert.Equal(t, []string{"Work"}, mainTargets(wf, "Loop", 1))
	assert.Equal(t, []string{"Loop"}, mainTargets(wf, "Work", 0))
}

func TestWorkflow_SubnodesBecomeAIConnections(t *testing.T) {
	wf := build(t, `
const model = languageModel({type: "@n8n/n8n-nodes-langchain.lmChatOpenAi", config: {
  name: "Model",
  credentials: {openAiApi: newCredential("OpenAI", "cred-1")},
}});
const search = tool({type: "@n8n/n8n-nodes-langchain.toolHttpRequest", config: {
  name: "Search",
  parameters: {query: fromAi("query", "what to search for", "string")},
}});
const agent = node({type: "@n8n/n8n-nodes-langchain.agent", config: {
  name: "Agent",
  subnodes: {model: model, tools: [search]},
}});
export default workflow("w", "agent").add(agent);
`)
	assert.Equal(t, []string{"Agent", "Model", "Search"}, nodeNames(wf))

	modelOut := wf.Connections["Model"][schema.ConnectionAILanguageModel]
	require.Len(t, modelOut, 1)
	assert.Equal(t, []schema.ConnectionTarget{{Node: "Agent", Type: schema.ConnectionAILanguageModel}}, modelOut[0])
	assert.Equal(t, "Agent", wf.Connections["Search"][schema.ConnectionAITool][0][0].Node)

	assert.Equal(t, schema.CredentialRef{ID: "cred-1", Name: "OpenAI"}, wf.Nodes[1].Credentials["openAiApi"])
	assert.Equal(t, `={{ $fromAI('query', 'what to search for', 'string') }}`, wf.Nodes[2].Parameters["query"])

	agentPos := wf.Nodes[0].Position
	assert.Equal(t, [2]float64{agentPos[0], agentPos[1] + layoutSubnodeY}, wf.Nodes[1].Position)
	assert.Equal(t, [2]float64{agentPos[0] + layoutSubnodeX, agentPos[1] + layoutSubnodeY}, wf.Nodes[2].Position)
}

func TestWorkflow_OnErrorUsesErrorOutput(t *testing.T) {
	wf := build(t, `
const call = node({type: "x.call", config: {name: "Call"}});
const handle = node({type: "x.handle", config: {name: "Handle"}});
export default workflow("w", "errors").add(call.onError(handle));
`)
	assert.Equal(t, "continueErrorOutput", wf.Nodes[0].OnError)
	assert.Equal(t, []string{"Handle"}, mainTargets(wf, "Call", 1))
	assert.Empty(t, mainTargets(wf, "Call", 0))
}

func TestWorkflow_ConnectAndSettings(t *testing.T) {
	wf := build(t, `
const a = node({type: "x.a", config: {name: "A", position: [10, 20]}});
const b = node({type: "x.b", config: {name: "B"}});
export default workflow("w", "manual", {timezone: "UTC"})
  .connect(a.output(1), b.input(2))
  .settings({executionOrder: "v1"});
`)
	assert.Equal(t, map[string]any{"timezone": "UTC", "executionOrder": "v1"}, wf.Settings)
	assert.Equal(t, [2]float64{10, 20}, wf.Nodes[0].Position)
	edge := wf.Connections["A"][schema.ConnectionMain][1]
	assert.Equal(t, []schema.ConnectionTarget{{Node: "B", Type: schema.ConnectionMain, Index: 2}}, edge)
}

func TestWorkflow_StickyAndPlaceholder(t *testing.T) {
	wf := build(t, `
export default workflow("w", "notes")
  .add(sticky("## Read me", {color: 4}))
  .add(placeholder("decide later"));
`)
	require.Len(t, wf.Nodes, 2)
	assert.Equal(t, schema.NodeTypeStickyNote, wf.Nodes[0].Type)
	assert.Equal(t, map[string]any{"content": "## Read me", "color": 4.0}, wf.Nodes[0].Parameters)
	assert.Equal(t, schema.NodeTypePlaceholder, wf.Nodes[1].Type)
	assert.Equal(t, "decide later", wf.Nodes[1].Notes)
}

func TestWorkflow_StringifyInsideScript(t *testing.T) {
	result, err := interpreter.Interpret(`
const n = node({type: "x.a", config: {name: "A"}});
export default JSON.stringify(workflow("w", "json").add(n));
`, Functions(sequentialIDs()))
	require.NoError(t, err)

	var wf schema.Workflow
	require.NoError(t, json.Unmarshal([]byte(result.(string)), &wf))
	assert.Equal(t, "json", wf.Name)
	assert.Equal(t, "A", wf.Nodes[0].Name)
}

func TestNodeProperties(t *testing.T) {
	result, err := interpreter.Interpret(`
const n = node({type: "n8n-nodes-base.httpRequest", config: {parameters: {url: "u"}}});
export default [n.name, n.type, n.id, n.parameters.url];
`, Functions(sequentialIDs()))
	require.NoError(t, err)
	assert.Equal(t, []any{"HttpRequest", "n8n-nodes-base.httpRequest", "id-1", "u"}, result)
}

func TestExpressionHelpers(t *testing.T) {
	tests := []struct {
		fn   sdk.Func
		args []any
		want string
	}{
		{expr, []any{"$json.id"}, "={{ $json.id }}"},
		{expr, []any{"{{ $json.id }}"}, "={{ $json.id }}"},
		{expr, []any{"Hello {{ $json.name }}"}, "=Hello {{ $json.name }}"},
		{expr, []any{"={{ 1 }}"}, "={{ 1 }}"},
		{fromAI, []any{"key"}, "={{ $fromAI('key') }}"},
		{fromAI, []any{"key", "it's"}, `={{ $fromAI('key', 'it\'s') }}`},
		{fromAI, []any{"key", sdk.Undefined, "number"}, "={{ $fromAI('key') }}"},
	}
	for _, tc := range tests {
		got, err := tc.fn(tc.args)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestBuilderErrors(t *testing.T) {
	tests := map[string]string{
		"node without type":       `export default node({config: {name: "x"}});`,
		"subnode as target":       `export default node({type: "x.a"}).to(memory({type: "x.m"}));`,
		"main node as subnode":    `export default node({type: "x.a", config: {subnodes: [node({type: "x.b"})]}});`,
		"bad credential":          `export default node({type: "x.a", config: {credentials: {api: "secret"}}});`,
		"then before add":         `export default workflow("w", "n").then(node({type: "x.a"}));`,
		"nextBatch of plain node": `export default nextBatch(node({type: "x.a"}));`,
		"negative output":         `export default node({type: "x.a"}).output(-1);`,
		"workflow without name":   `export default workflow("w");`,
		"bad position":            `export default node({type: "x.a", config: {position: [1]}});`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := interpreter.Interpret(src, Functions())
			require.Error(t, err)
			assert.ErrorIs(t, err, schema.ErrCapability)
		})
	}
}

func TestExport(t *testing.T) {
	obj := sdk.NewObject()
	obj.Set("a", 1.0)
	obj.Set("b", sdk.Undefined)
	got, err := Export(obj)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1.0}, got)

	_, err = ExportWorkflow("not a workflow")
	assert.ErrorIs(t, err, &schema.Error{Code: schema.ErrCodeValidation})
}
