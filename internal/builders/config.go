package builders

import (
	"github.com/rendis/wfscript/pkg/schema"
	"github.com/rendis/wfscript/pkg/sdk"
)

// nodeConfig is the normalized form of the object passed to node(),
// trigger() and friends. Both {type, version, config: {...}} and a flat
// {type, name, parameters, ...} are accepted; config wins on conflicts.
type nodeConfig struct {
	id          string
	name        string
	typ         string
	version     float64
	parameters  map[string]any
	credentials map[string]schema.CredentialRef
	position    *[2]float64
	disabled    bool
	notes       string
	onError     string
	subnodes    []*NodeBuilder
}

func parseNodeConfig(fn string, args []any, defaultType string) (*nodeConfig, error) {
	raw := map[string]any{}
	if len(args) > 0 && !sdk.IsNullish(args[0]) {
		m, ok := sdk.ToNative(args[0]).(map[string]any)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "%s() expects an object, got %s", fn, describe(args[0]))
		}
		raw = m
	}

	merged := make(map[string]any, len(raw))
	for k, v := range raw {
		if k != "config" {
			merged[k] = v
		}
	}
	if nested, ok := raw["config"].(map[string]any); ok {
		for k, v := range nested {
			merged[k] = v
		}
	} else if c, present := raw["config"]; present && c != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "%s(): config must be an object", fn)
	}

	cfg := &nodeConfig{typ: defaultType, version: 1}
	var err error
	if cfg.typ, err = optString(fn, merged, "type", cfg.typ); err != nil {
		return nil, err
	}
	if cfg.typ == "" {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "%s(): type is required", fn)
	}
	if cfg.id, err = optString(fn, merged, "id", ""); err != nil {
		return nil, err
	}
	if cfg.name, err = optString(fn, merged, "name", ""); err != nil {
		return nil, err
	}
	if cfg.notes, err = optString(fn, merged, "notes", ""); err != nil {
		return nil, err
	}
	if cfg.onError, err = optString(fn, merged, "onError", ""); err != nil {
		return nil, err
	}
	for _, key := range []string{"version", "typeVersion"} {
		if v, ok := merged[key]; ok {
			f, isNum := v.(float64)
			if !isNum || f <= 0 {
				return nil, schema.NewErrorf(schema.ErrCodeValidation, "%s(): %s must be a positive number", fn, key)
			}
			cfg.version = f
		}
	}
	if d, ok := merged["disabled"].(bool); ok {
		cfg.disabled = d
	}

	switch p := merged["parameters"].(type) {
	case nil:
		cfg.parameters = map[string]any{}
	case map[string]any:
		cfg.parameters = p
	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "%s(): parameters must be an object", fn)
	}

	if cfg.credentials, err = parseCredentials(fn, merged["credentials"]); err != nil {
		return nil, err
	}
	if cfg.position, err = parsePosition(fn, merged["position"]); err != nil {
		return nil, err
	}
	if cfg.subnodes, err = collectSubnodes(fn, merged["subnodes"]); err != nil {
		return nil, err
	}
	return cfg, nil
}

func optString(fn string, m map[string]any, key, def string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return def, nil
	}
	s, isStr := v.(string)
	if !isStr {
		return "", schema.NewErrorf(schema.ErrCodeValidation, "%s(): %s must be a string, got %s", fn, key, describe(v))
	}
	return s, nil
}

func parseCredentials(fn string, v any) (map[string]schema.CredentialRef, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "%s(): credentials must be an object", fn)
	}
	out := make(map[string]schema.CredentialRef, len(m))
	for slot, c := range m {
		switch cred := c.(type) {
		case *Credential:
			out[slot] = schema.CredentialRef{ID: cred.ID, Name: cred.Name}
		case map[string]any:
			name, _ := cred["name"].(string)
			id, _ := cred["id"].(string)
			if name == "" {
				return nil, schema.NewErrorf(schema.ErrCodeValidation, "%s(): credential %q needs a name", fn, slot)
			}
			out[slot] = schema.CredentialRef{ID: id, Name: name}
		default:
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"%s(): credential %q must come from newCredential(), got %s", fn, slot, describe(c))
		}
	}
	return out, nil
}

func parsePosition(fn string, v any) (*[2]float64, error) {
	if v == nil {
		return nil, nil
	}
	arr, ok := v.([]any)
	if ok && len(arr) == 2 {
		x, okX := arr[0].(float64)
		y, okY := arr[1].(float64)
		if okX && okY {
			return &[2]float64{x, y}, nil
		}
	}
	return nil, schema.NewErrorf(schema.ErrCodeValidation, "%s(): position must be [x, y]", fn)
}

// collectSubnodes accepts a single subnode, an array, or an object whose
// values are subnodes or arrays of them.
func collectSubnodes(fn string, v any) ([]*NodeBuilder, error) {
	var out []*NodeBuilder
	var walk func(any) error
	walk = func(x any) error {
		switch val := x.(type) {
		case nil:
			return nil
		case *NodeBuilder:
			if val.connection == "" {
				return schema.NewErrorf(schema.ErrCodeValidation,
					"%s(): %s is not a subnode; connect it with to() instead", fn, val.Name())
			}
			out = append(out, val)
		case []any:
			for _, item := range val {
				if err := walk(item); err != nil {
					return err
				}
			}
		case map[string]any:
			for _, k := range sortedKeys(val) {
				if err := walk(val[k]); err != nil {
					return err
				}
			}
		default:
			return schema.NewErrorf(schema.ErrCodeValidation, "%s(): subnodes must be built with a subnode function, got %s", fn, describe(x))
		}
		return nil
	}
	if err := walk(v); err != nil {
		return nil, err
	}
	return out, nil
}
