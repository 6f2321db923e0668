package schema

import "strings"

// Workflow is the JSON-serializable workflow description produced by the
// reference builders. Its shape follows the node/connection graph format that
// workflow execution engines consume.
type Workflow struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Nodes       []Node                 `json:"nodes"`
	Connections map[string]NodeOutputs `json:"connections"`
	Settings    map[string]any         `json:"settings,omitempty"`
	PinData     map[string]any         `json:"pinData,omitempty"`
}

// Node describes a single node in a workflow.
type Node struct {
	ID          string                   `json:"id"`
	Name        string                   `json:"name"`
	Type        string                   `json:"type"`
	TypeVersion float64                  `json:"typeVersion"`
	Position    [2]float64               `json:"position"`
	Parameters  map[string]any           `json:"parameters"`
	Credentials map[string]CredentialRef `json:"credentials,omitempty"`
	Disabled    bool                     `json:"disabled,omitempty"`
	Notes       string                   `json:"notes,omitempty"`
	OnError     string                   `json:"onError,omitempty"` // stopWorkflow | continueRegularOutput | continueErrorOutput
}

// CredentialRef points a node at a stored credential.
type CredentialRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// NodeOutputs maps a connection type (main, ai_tool, ai_memory, ...) to the
// per-output-index list of targets.
type NodeOutputs map[ConnectionType][][]ConnectionTarget

// ConnectionTarget is one edge endpoint.
type ConnectionTarget struct {
	Node  string         `json:"node"`
	Type  ConnectionType `json:"type"`
	Index int            `json:"index"`
}

// ConnectionType enumerates the kinds of edges between nodes.
type ConnectionType string

const (
	ConnectionMain            ConnectionType = "main"
	ConnectionAILanguageModel ConnectionType = "ai_languageModel"
	ConnectionAIMemory        ConnectionType = "ai_memory"
	ConnectionAITool          ConnectionType = "ai_tool"
	ConnectionAIOutputParser  ConnectionType = "ai_outputParser"
	ConnectionAIEmbedding     ConnectionType = "ai_embedding"
	ConnectionAIVectorStore   ConnectionType = "ai_vectorStore"
	ConnectionAIRetriever     ConnectionType = "ai_retriever"
	ConnectionAIDocument      ConnectionType = "ai_document"
	ConnectionAITextSplitter  ConnectionType = "ai_textSplitter"
	ConnectionAIReranker      ConnectionType = "ai_reranker"
)

// Node type identifiers the builders and validators need to recognize.
const (
	NodeTypeStickyNote     = "n8n-nodes-base.stickyNote"
	NodeTypePlaceholder    = "n8n-nodes-base.noOp"
	NodeTypeIf             = "n8n-nodes-base.if"
	NodeTypeSwitch         = "n8n-nodes-base.switch"
	NodeTypeMerge          = "n8n-nodes-base.merge"
	NodeTypeSplitInBatches = "n8n-nodes-base.splitInBatches"
	NodeTypeSchedule       = "n8n-nodes-base.scheduleTrigger"
)

// IsTriggerType reports whether nodes of type typ start a workflow: by
// convention their type name ends in "Trigger", or they are webhooks.
func IsTriggerType(typ string) bool {
	lower := strings.ToLower(typ)
	return strings.HasSuffix(lower, "trigger") || strings.HasSuffix(lower, ".webhook")
}

// IsAIConnection reports whether t links a subnode to its parent.
func IsAIConnection(t ConnectionType) bool {
	return strings.HasPrefix(string(t), "ai_")
}
