package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/wfscript/pkg/schema"
)

// workflowSchemaJSON describes the exported workflow document.
const workflowSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://wfscript.dev/schemas/workflow.json",
  "type": "object",
  "required": ["name", "nodes", "connections"],
  "properties": {
    "id": { "type": "string" },
    "name": { "type": "string", "minLength": 1 },
    "nodes": {
      "type": "array",
      "items": { "$ref": "#/$defs/node" }
    },
    "connections": {
      "type": "object",
      "additionalProperties": { "$ref": "#/$defs/nodeOutputs" }
    },
    "settings": { "type": "object" },
    "pinData": { "type": "object" }
  },
  "additionalProperties": false,
  "$defs": {
    "node": {
      "type": "object",
      "required": ["id", "name", "type", "typeVersion", "position", "parameters"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "name": { "type": "string", "minLength": 1 },
        "type": {
          "type": "string",
          "pattern": "^[@A-Za-z0-9_./-]+\\.[A-Za-z0-9_]+$"
        },
        "typeVersion": { "type": "number", "exclusiveMinimum": 0 },
        "position": {
          "type": "array",
          "items": { "type": "number" },
          "minItems": 2,
          "maxItems": 2
        },
        "parameters": { "type": "object" },
        "credentials": {
          "type": "object",
          "additionalProperties": { "$ref": "#/$defs/credential" }
        },
        "disabled": { "type": "boolean" },
        "notes": { "type": "string" },
        "onError": {
          "type": "string",
          "enum": ["stopWorkflow", "continueRegularOutput", "continueErrorOutput"]
        }
      },
      "additionalProperties": false
    },
    "credential": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "id": { "type": "string" },
        "name": { "type": "string", "minLength": 1 }
      },
      "additionalProperties": false
    },
    "nodeOutputs": {
      "type": "object",
      "propertyNames": { "pattern": "^(main|ai_[A-Za-z]+)$" },
      "additionalProperties": {
        "type": "array",
        "items": {
          "type": "array",
          "items": { "$ref": "#/$defs/target" }
        }
      }
    },
    "target": {
      "type": "object",
      "required": ["node", "type", "index"],
      "properties": {
        "node": { "type": "string", "minLength": 1 },
        "type": { "type": "string" },
        "index": { "type": "integer", "minimum": 0 }
      },
      "additionalProperties": false
    }
  }
}`

const workflowSchemaURL = "https://wfscript.dev/schemas/workflow.json"

// JSONSchemaValidator checks exported workflows, and node parameters against
// per-type schemas, using JSON Schema Draft 2020-12. It is safe for
// concurrent use.
type JSONSchemaValidator struct {
	workflow *jsonschema.Schema

	mu     sync.Mutex
	params map[string]*jsonschema.Schema // by schema text
}

func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	wf, err := compileSchema(workflowSchemaURL, workflowSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("workflow schema: %w", err)
	}
	return &JSONSchemaValidator{workflow: wf, params: make(map[string]*jsonschema.Schema)}, nil
}

// ValidateWorkflow checks the workflow's JSON form against the workflow schema.
func (v *JSONSchemaValidator) ValidateWorkflow(wf *schema.Workflow) error {
	if wf == nil {
		return schema.NewError(schema.ErrCodeValidation, "workflow is nil")
	}
	doc, err := jsonDocument(wf)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize workflow").WithCause(err)
	}
	if err := v.workflow.Validate(doc); err != nil {
		return toSchemaError(err)
	}
	return nil
}

// ValidateParameters checks a node's parameters against paramSchema. An
// empty schema accepts anything; nil params validate as an empty object.
func (v *JSONSchemaValidator) ValidateParameters(params map[string]any, paramSchema []byte) error {
	if len(paramSchema) == 0 {
		return nil
	}
	compiled, err := v.parameterSchema(paramSchema)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "invalid parameter schema").WithCause(err)
	}
	if params == nil {
		params = map[string]any{}
	}
	doc, err := jsonDocument(params)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize parameters").WithCause(err)
	}
	if err := compiled.Validate(doc); err != nil {
		return toSchemaError(err)
	}
	return nil
}

func (v *JSONSchemaValidator) parameterSchema(text []byte) (*jsonschema.Schema, error) {
	key := string(text)
	v.mu.Lock()
	defer v.mu.Unlock()
	if s, ok := v.params[key]; ok {
		return s, nil
	}
	s, err := compileSchema(fmt.Sprintf("wfscript://parameters/%d.json", len(v.params)), key)
	if err != nil {
		return nil, err
	}
	v.params[key] = s
	return s, nil
}

// compileSchema compiles one self-contained schema document with format
// assertions on. Every document gets its own compiler.
func compileSchema(url, text string) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(url, doc); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

// jsonDocument re-decodes v's JSON encoding the way the schema library
// expects it, with numbers as json.Number.
func jsonDocument(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(b))
}

// Violation is one leaf JSON Schema failure. Path is in the dotted form the
// other validation stages use, e.g. "nodes[0].typeVersion"; it is empty for
// the document root.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

// toSchemaError converts a jsonschema.ValidationError into a *schema.Error
// whose details list every leaf violation.
func toSchemaError(err error) *schema.Error {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr, nil)
	switch len(violations) {
	case 0:
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	case 1:
		return schema.NewError(schema.ErrCodeValidation, violations[0].String()).
			WithDetails(map[string]any{"violations": violations})
	}
	return schema.NewErrorf(schema.ErrCodeValidation, "%d schema violations", len(violations)).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree down to its leaves.
func collectViolations(verr *jsonschema.ValidationError, out []Violation) []Violation {
	if len(verr.Causes) == 0 {
		return append(out, Violation{
			Path:    dottedPath(verr.InstanceLocation),
			Message: verr.Error(),
		})
	}
	for _, cause := range verr.Causes {
		out = collectViolations(cause, out)
	}
	return out
}

// dottedPath turns JSON pointer tokens into nodes[0].parameters.url form.
func dottedPath(tokens []string) string {
	var b strings.Builder
	for _, tok := range tokens {
		if _, err := strconv.Atoi(tok); err == nil {
			b.WriteString("[" + tok + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(tok)
	}
	return b.String()
}
