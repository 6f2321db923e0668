package interpreter

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rendis/wfscript/pkg/schema"
	"github.com/rendis/wfscript/pkg/sdk"
)

// jsonNamespace is the receiver `JSON.<method>` calls dispatch on.
type jsonNamespace struct{}

func (jsonNamespace) Kind() string { return sdk.KindJSON }

const maxIndent = 10

// stringifier renders values with JSON.stringify semantics: object keys keep
// insertion order, undefined members are dropped, undefined array elements
// and non-finite numbers become null, and cycles are an error.
type stringifier struct {
	indent  string
	allowed map[string]bool // replacer array; nil allows every key
	keys    []string        // replacer order
	stack   map[any]bool
	buf     strings.Builder
}

// Stringify is JSON.stringify(value, replacer, space). The second result is
// false when the value itself serializes to undefined.
func Stringify(value, replacer, space any) (string, bool, error) {
	s := &stringifier{indent: indentFor(space), stack: make(map[any]bool)}
	if err := s.setReplacer(replacer); err != nil {
		return "", false, err
	}
	ok, err := s.write(value, "")
	if err != nil || !ok {
		return "", false, err
	}
	return s.buf.String(), true, nil
}

func indentFor(space any) string {
	switch sp := space.(type) {
	case float64:
		n := int(math.Min(maxIndent, math.Trunc(sp)))
		if n < 1 {
			return ""
		}
		return strings.Repeat(" ", n)
	case string:
		if utf8.RuneCountInString(sp) > maxIndent {
			return string([]rune(sp)[:maxIndent])
		}
		return sp
	}
	return ""
}

func (s *stringifier) setReplacer(replacer any) error {
	switch r := replacer.(type) {
	case nil, sdk.UndefinedType:
		return nil
	case []any:
		s.allowed = make(map[string]bool, len(r))
		for _, item := range r {
			var key string
			switch k := item.(type) {
			case string:
				key = k
			case float64:
				key = formatNumber(k)
			default:
				continue
			}
			if !s.allowed[key] {
				s.allowed[key] = true
				s.keys = append(s.keys, key)
			}
		}
		return nil
	}
	return schema.NewErrorf(schema.ErrCodeEvaluation,
		"JSON.stringify replacer must be null or an array of keys, got %s", typeName(replacer))
}

// serializable reports whether v produces output as an object member.
func serializable(v any) bool {
	switch v.(type) {
	case sdk.UndefinedType:
		return false
	case nil, bool, float64, string, []any, *sdk.Object, json.Marshaler:
		return true
	}
	return false
}

func (s *stringifier) write(v any, current string) (bool, error) {
	switch val := v.(type) {
	case sdk.UndefinedType:
		return false, nil
	case nil:
		s.buf.WriteString("null")
	case bool:
		s.buf.WriteString(strconv.FormatBool(val))
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			s.buf.WriteString("null")
		} else {
			s.buf.WriteString(formatNumber(val))
		}
	case string:
		writeQuoted(&s.buf, val)
	case []any:
		return true, s.writeArray(val, current)
	case *sdk.Object:
		return true, s.writeObject(val, current)
	case json.Marshaler:
		return true, s.writeMarshaler(val, current)
	default:
		return false, nil
	}
	return true, nil
}

func (s *stringifier) enter(key any) error {
	if s.stack[key] {
		return schema.NewError(schema.ErrCodeEvaluation, "converting circular structure to JSON")
	}
	s.stack[key] = true
	return nil
}

func (s *stringifier) writeArray(arr []any, current string) error {
	if len(arr) == 0 {
		s.buf.WriteString("[]")
		return nil
	}
	if err := s.enter(&arr[0]); err != nil {
		return err
	}
	defer delete(s.stack, &arr[0])

	inner := current + s.indent
	s.buf.WriteByte('[')
	for i, item := range arr {
		if i > 0 {
			s.buf.WriteByte(',')
		}
		s.newline(inner)
		ok, err := s.write(item, inner)
		if err != nil {
			return err
		}
		if !ok {
			s.buf.WriteString("null")
		}
	}
	s.newline(current)
	s.buf.WriteByte(']')
	return nil
}

func (s *stringifier) writeObject(obj *sdk.Object, current string) error {
	if err := s.enter(obj); err != nil {
		return err
	}
	defer delete(s.stack, obj)

	keys := s.keys
	if s.allowed == nil {
		keys = make([]string, 0, obj.Len())
		for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
			keys = append(keys, pair.Key)
		}
	}

	inner := current + s.indent
	written := 0
	s.buf.WriteByte('{')
	for _, key := range keys {
		val, present := obj.Get(key)
		if !present || !serializable(val) {
			continue
		}
		if written > 0 {
			s.buf.WriteByte(',')
		}
		s.newline(inner)
		writeQuoted(&s.buf, key)
		s.buf.WriteByte(':')
		if s.indent != "" {
			s.buf.WriteByte(' ')
		}
		if _, err := s.write(val, inner); err != nil {
			return err
		}
		written++
	}
	if written > 0 {
		s.newline(current)
	}
	s.buf.WriteByte('}')
	return nil
}

// writeMarshaler embeds a host value's own JSON, re-indented to fit.
func (s *stringifier) writeMarshaler(m json.Marshaler, current string) error {
	var raw bytes.Buffer
	enc := json.NewEncoder(&raw)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return schema.NewErrorf(schema.ErrCodeEvaluation, "cannot serialize value: %v", err).WithCause(err)
	}
	data := bytes.TrimRight(raw.Bytes(), "\n")

	var out bytes.Buffer
	var err error
	if s.indent == "" {
		err = json.Compact(&out, data)
	} else {
		err = json.Indent(&out, data, current, s.indent)
	}
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeEvaluation, "cannot serialize value: %v", err).WithCause(err)
	}
	s.buf.Write(out.Bytes())
	return nil
}

func (s *stringifier) newline(indent string) {
	if s.indent == "" {
		return
	}
	s.buf.WriteByte('\n')
	s.buf.WriteString(indent)
}

const hexDigits = "0123456789abcdef"

// writeQuoted is QuoteJSONString: no HTML escaping, short escapes for the
// common control characters and \u00XX for the rest.
func writeQuoted(buf *strings.Builder, str string) {
	buf.WriteByte('"')
	for _, r := range str {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[r>>4])
				buf.WriteByte(hexDigits[r&0xF])
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}
