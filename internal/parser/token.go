package parser

import "fmt"

// TokenType identifies the lexical class of a Token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdentifier
	TokenNumber
	TokenString
	TokenTemplate
	TokenPunct
)

func (tt TokenType) String() string {
	switch tt {
	case TokenEOF:
		return "end of input"
	case TokenIdentifier:
		return "identifier"
	case TokenNumber:
		return "number"
	case TokenString:
		return "string"
	case TokenTemplate:
		return "template"
	case TokenPunct:
		return "punctuator"
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// Token is one lexical unit. Start and End are byte offsets into the source;
// Line and Column are 1-based.
type Token struct {
	Type  TokenType
	Value string // identifier name, punctuator text, cooked string/template text
	Raw   string // exact source text for numbers
	Num   float64

	// Tail is set on template chunks that end with a backtick rather than `${`.
	Tail bool
	// NewlineBefore is set when a line terminator precedes the token; used for
	// automatic semicolon insertion.
	NewlineBefore bool

	Start, End   int
	Line, Column int
}

// Is reports whether the token is the punctuator p.
func (t Token) Is(p string) bool {
	return t.Type == TokenPunct && t.Value == p
}

// IsWord reports whether the token is the identifier or keyword w.
func (t Token) IsWord(w string) bool {
	return t.Type == TokenIdentifier && t.Value == w
}

func (t Token) describe() string {
	switch t.Type {
	case TokenEOF:
		return "end of input"
	case TokenString:
		return fmt.Sprintf("string %q", t.Value)
	case TokenNumber:
		return fmt.Sprintf("number %s", t.Raw)
	case TokenTemplate:
		return "template literal"
	}
	return fmt.Sprintf("token '%s'", t.Value)
}

// punctuators ordered longest first so the lexer takes the longest match.
var punctuators = []string{
	">>>=",
	"...", "===", "!==", "**=", "<<=", ">>=", ">>>", "&&=", "||=", "??=",
	"=>", "==", "!=", "<=", ">=", "&&", "||", "??", "?.", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "**", "<<", ">>",
	"{", "}", "(", ")", "[", "]", ";", ",", "<", ">", "+", "-", "*", "/",
	"%", "&", "|", "^", "!", "~", "?", ":", "=", ".", "@", "#",
}

// reservedWords cannot be used as identifiers in expression position.
var reservedWords = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true, "do": true,
	"else": true, "export": true, "extends": true, "finally": true, "for": true,
	"function": true, "if": true, "import": true, "in": true, "instanceof": true,
	"new": true, "return": true, "super": true, "switch": true, "this": true,
	"throw": true, "try": true, "typeof": true, "var": true, "void": true,
	"while": true, "with": true, "yield": true, "enum": true,
	"null": true, "true": true, "false": true,
}

// assignmentOperators lists every operator that forms an AssignmentExpression.
var assignmentOperators = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"**=": true, "<<=": true, ">>=": true, ">>>=": true, "&=": true, "|=": true,
	"^=": true, "&&=": true, "||=": true, "??=": true,
}

// binaryPrecedence is the binding power of binary and logical operators.
// Higher values bind more tightly.
var binaryPrecedence = map[string]int{
	"??": 1,
	"||": 2,
	"&&": 3,
	"|":  4,
	"^":  5,
	"&":  6,
	"==": 7, "!=": 7, "===": 7, "!==": 7,
	"<": 8, ">": 8, "<=": 8, ">=": 8, "instanceof": 8, "in": 8,
	"<<": 9, ">>": 9, ">>>": 9,
	"+": 10, "-": 10,
	"*": 11, "/": 11, "%": 11,
	"**": 12,
}
