package interpreter

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/rendis/wfscript/pkg/sdk"
)

// decimalLiteral is the StringNumericLiteral grammar minus Infinity and the
// prefixed integer forms, which toNumber handles separately.
var decimalLiteral = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

func toBoolean(v any) bool {
	switch val := v.(type) {
	case nil, sdk.UndefinedType:
		return false
	case bool:
		return val
	case float64:
		return val != 0 && !math.IsNaN(val)
	case string:
		return val != ""
	}
	return true
}

func toNumber(v any) float64 {
	switch val := v.(type) {
	case nil:
		return 0
	case sdk.UndefinedType:
		return math.NaN()
	case bool:
		if val {
			return 1
		}
		return 0
	case float64:
		return val
	case string:
		return stringToNumber(val)
	case []any:
		return stringToNumber(toString(val))
	}
	return math.NaN()
}

func stringToNumber(s string) float64 {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return 0
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return math.NaN()
			}
			return float64(n)
		}
	}
	if !decimalLiteral.MatchString(s) {
		return math.NaN()
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// ParseFloat reports range errors but still returns ±Inf or 0.
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return n
		}
		return math.NaN()
	}
	return n
}

// toString follows ToString for primitives and Array.prototype.join for
// arrays.
func toString(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case sdk.UndefinedType:
		return "undefined"
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return formatNumber(val)
	case string:
		return val
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			if !sdk.IsNullish(item) {
				parts[i] = toString(item)
			}
		}
		return strings.Join(parts, ",")
	case *sdk.Object:
		return "[object Object]"
	case fmt.Stringer:
		return val.String()
	case sdk.Value:
		return "[object " + val.Kind() + "]"
	}
	return fmt.Sprint(v)
}

// formatNumber renders f the way Number.prototype.toString does.
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	sign := ""
	if f < 0 {
		sign = "-"
		f = -f
	}

	// Shortest round-trip digits, then the layout rules of Number::toString.
	sci := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, expPart, _ := strings.Cut(sci, "e")
	digits := strings.Replace(mantissa, ".", "", 1)
	exp, _ := strconv.Atoi(expPart)
	k := len(digits)
	n := exp + 1

	var out string
	switch {
	case k <= n && n <= 21:
		out = digits + strings.Repeat("0", n-k)
	case 0 < n && n <= 21:
		out = digits[:n] + "." + digits[n:]
	case -6 < n && n <= 0:
		out = "0." + strings.Repeat("0", -n) + digits
	default:
		e := n - 1
		expSign := "+"
		if e < 0 {
			expSign = "-"
			e = -e
		}
		if k == 1 {
			out = digits + "e" + expSign + strconv.Itoa(e)
		} else {
			out = digits[:1] + "." + digits[1:] + "e" + expSign + strconv.Itoa(e)
		}
	}
	return sign + out
}

// toPrimitive collapses arrays, objects and host values to their string
// form; primitives are returned unchanged.
func toPrimitive(v any) any {
	switch v.(type) {
	case nil, sdk.UndefinedType, bool, float64, string:
		return v
	}
	return toString(v)
}

func add(left, right any) any {
	l, r := toPrimitive(left), toPrimitive(right)
	ls, lok := l.(string)
	rs, rok := r.(string)
	if lok || rok {
		if !lok {
			ls = toString(l)
		}
		if !rok {
			rs = toString(r)
		}
		return ls + rs
	}
	return toNumber(l) + toNumber(r)
}

func arithmetic(op string, left, right any) float64 {
	l, r := toNumber(left), toNumber(right)
	switch op {
	case "-":
		return l - r
	case "*":
		return l * r
	case "/":
		return l / r
	case "%":
		return math.Mod(l, r)
	}
	panic("interpreter: unknown arithmetic operator " + op)
}

// compare implements the relational operators. Strings compare by UTF-16
// code units; anything involving NaN is false.
func compare(op string, left, right any) bool {
	l, r := toPrimitive(left), toPrimitive(right)
	if ls, ok := l.(string); ok {
		if rs, ok := r.(string); ok {
			c := compareUTF16(ls, rs)
			switch op {
			case "<":
				return c < 0
			case ">":
				return c > 0
			case "<=":
				return c <= 0
			case ">=":
				return c >= 0
			}
		}
	}
	ln, rn := toNumber(l), toNumber(r)
	switch op {
	case "<":
		return ln < rn
	case ">":
		return ln > rn
	case "<=":
		return ln <= rn
	case ">=":
		return ln >= rn
	}
	panic("interpreter: unknown comparison operator " + op)
}

func compareUTF16(a, b string) int {
	ua, ub := utf16.Encode([]rune(a)), utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			if ua[i] < ub[i] {
				return -1
			}
			return 1
		}
	}
	return len(ua) - len(ub)
}

// strictEquals is ===. Objects, arrays and host values compare by identity.
func strictEquals(left, right any) bool {
	switch l := left.(type) {
	case nil:
		return right == nil
	case sdk.UndefinedType:
		_, ok := right.(sdk.UndefinedType)
		return ok
	case float64:
		r, ok := right.(float64)
		return ok && l == r
	case string:
		r, ok := right.(string)
		return ok && l == r
	case bool:
		r, ok := right.(bool)
		return ok && l == r
	case []any:
		r, ok := right.([]any)
		return ok && sameArray(l, r)
	}
	if reflect.TypeOf(left) != reflect.TypeOf(right) {
		return false
	}
	if !reflect.TypeOf(left).Comparable() {
		return false
	}
	return left == right
}

func sameArray(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	}
	return &a[0] == &b[0]
}

// utf16Length is String.prototype.length.
func utf16Length(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// charAt returns the UTF-16 code unit at index i as a string, or false when
// i is out of range. A lone surrogate half decodes to U+FFFD.
func charAt(s string, i int) (string, bool) {
	units := utf16.Encode([]rune(s))
	if i < 0 || i >= len(units) {
		return "", false
	}
	return string(utf16.Decode(units[i : i+1])), true
}

// arrayIndex parses a canonical array index key.
func arrayIndex(key string) (int, bool) {
	if key == "" || (len(key) > 1 && key[0] == '0') {
		return 0, false
	}
	n, err := strconv.Atoi(key)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// typeName describes a value in error messages.
func typeName(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case sdk.UndefinedType:
		return "undefined"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case *sdk.Object:
		return "object"
	case sdk.Value:
		return val.Kind()
	}
	return fmt.Sprintf("%T", v)
}

// kindOf is the method-allowlist key for a receiver. Plain data has no kind.
func kindOf(v any) string {
	switch val := v.(type) {
	case string:
		return sdk.KindString
	case sdk.Value:
		return val.Kind()
	}
	return ""
}
