package parser

import (
	"errors"
	"math/big"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rendis/wfscript/pkg/schema"
)

const eof = -1

// Lexer converts source text into tokens on demand. Template literals are
// scanned one chunk at a time: the parser resumes template scanning through
// TemplateContinuation after it has parsed each `${...}` expression.
type Lexer struct {
	input     string
	pos       int // current byte offset
	line      int // current 1-based line
	lineStart int // byte offset where the current line starts
	newline   bool
}

// lexState is a snapshot used for bounded lookahead.
type lexState struct {
	pos, line, lineStart int
}

// NewLexer creates a lexer for input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1}
}

func (l *Lexer) save() lexState {
	return lexState{pos: l.pos, line: l.line, lineStart: l.lineStart}
}

func (l *Lexer) restore(s lexState) {
	l.pos, l.line, l.lineStart = s.pos, s.line, s.lineStart
}

// Next returns the next token from the input. At end of input it returns a
// TokenEOF token on every call.
func (l *Lexer) Next() (Token, error) {
	l.newline = false
	if err := l.skipWhitespace(); err != nil {
		return Token{}, err
	}

	start := l.pos
	tok := Token{Start: start, Line: l.line, Column: start - l.lineStart + 1, NewlineBefore: l.newline}

	ch := l.peekRune()
	switch {
	case ch == eof:
		tok.Type = TokenEOF
		tok.End = start
		return tok, nil
	case ch == '"' || ch == '\'':
		return l.scanString(tok, ch)
	case ch == '`':
		l.pos++
		return l.scanTemplate(tok)
	case isDigit(ch) || (ch == '.' && isDigit(l.runeAt(l.pos+1))):
		return l.scanNumber(tok)
	case isIdentStart(ch):
		return l.scanIdentifier(tok)
	case ch == '\\':
		return tok, l.errorAt(tok, "unicode escapes in identifiers are not supported")
	}

	for _, p := range punctuators {
		if strings.HasPrefix(l.input[l.pos:], p) {
			if p == "?." && isDigit(l.runeAt(l.pos+2)) {
				// `a?.5:b` is a conditional, not optional chaining.
				continue
			}
			l.pos += len(p)
			tok.Type = TokenPunct
			tok.Value = p
			tok.End = l.pos
			return tok, nil
		}
	}

	return tok, l.errorAt(tok, "unexpected character %q", string(ch))
}

// TemplateContinuation resumes scanning a template literal at pos, which must
// be the offset right after the `}` closing a substitution.
func (l *Lexer) TemplateContinuation(pos int) (Token, error) {
	l.pos = pos
	tok := Token{Start: pos, Line: l.line, Column: pos - l.lineStart + 1}
	return l.scanTemplate(tok)
}

func (l *Lexer) skipWhitespace() error {
	for l.pos < len(l.input) {
		ch := l.peekRune()
		switch {
		case ch == '\n':
			l.pos++
			l.markLine()
		case ch == '\r' || ch == '\u2028' || ch == '\u2029':
			l.advance()
			if ch == '\r' && l.runeAt(l.pos) == '\n' {
				l.pos++
			}
			l.markLine()
		case ch == ' ' || ch == '\t' || ch == '\v' || ch == '\f' || ch == '\u00a0' || ch == '\ufeff' || unicode.Is(unicode.Zs, ch):
			l.advance()
		case ch == '/' && l.runeAt(l.pos+1) == '/':
			for l.pos < len(l.input) && l.input[l.pos] != '\n' && l.input[l.pos] != '\r' {
				l.pos++
			}
		case ch == '/' && l.runeAt(l.pos+1) == '*':
			startLine, startCol := l.line, l.pos-l.lineStart+1
			l.pos += 2
			closed := false
			for l.pos < len(l.input) {
				if strings.HasPrefix(l.input[l.pos:], "*/") {
					l.pos += 2
					closed = true
					break
				}
				if l.input[l.pos] == '\n' {
					l.pos++
					l.markLine()
					continue
				}
				l.pos++
			}
			if !closed {
				return schema.NewError(schema.ErrCodeSyntax, "unterminated comment").
					WithLocation(schema.Location{Line: startLine, Column: startCol})
			}
		default:
			return nil
		}
	}
	return nil
}

func (l *Lexer) markLine() {
	l.line++
	l.lineStart = l.pos
	l.newline = true
}

func (l *Lexer) scanIdentifier(tok Token) (Token, error) {
	for l.pos < len(l.input) {
		ch := l.peekRune()
		if !isIdentPart(ch) {
			break
		}
		l.advance()
	}
	tok.Type = TokenIdentifier
	tok.Value = l.input[tok.Start:l.pos]
	tok.End = l.pos
	return tok, nil
}

func (l *Lexer) scanNumber(tok Token) (Token, error) {
	tok.Type = TokenNumber

	if l.input[l.pos] == '0' && l.pos+1 < len(l.input) {
		base := 0
		switch l.input[l.pos+1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			l.pos += 2
			digitsStart := l.pos
			for l.pos < len(l.input) && (isHexDigit(rune(l.input[l.pos])) || l.input[l.pos] == '_') {
				l.pos++
			}
			digits := strings.ReplaceAll(l.input[digitsStart:l.pos], "_", "")
			n, ok := new(big.Int).SetString(digits, base)
			if !ok {
				return tok, l.errorAt(tok, "invalid number literal %q", l.input[tok.Start:l.pos])
			}
			f, _ := new(big.Float).SetInt(n).Float64()
			return l.finishNumber(tok, f)
		}
		if isDigit(l.runeAt(l.pos + 1)) {
			return tok, l.errorAt(tok, "legacy octal literals are not allowed")
		}
	}

	l.acceptDigits()
	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		l.pos++
		l.acceptDigits()
	}
	if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		l.pos++
		if l.pos < len(l.input) && (l.input[l.pos] == '+' || l.input[l.pos] == '-') {
			l.pos++
		}
		if !isDigit(l.runeAt(l.pos)) {
			return tok, l.errorAt(tok, "invalid number literal %q", l.input[tok.Start:l.pos])
		}
		l.acceptDigits()
	}

	text := strings.ReplaceAll(l.input[tok.Start:l.pos], "_", "")
	// Out-of-range literals round to ±Inf or 0 like any other float.
	n, err := strconv.ParseFloat(text, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return tok, l.errorAt(tok, "invalid number literal %q", l.input[tok.Start:l.pos])
	}
	return l.finishNumber(tok, n)
}

func (l *Lexer) finishNumber(tok Token, n float64) (Token, error) {
	if l.pos < len(l.input) && l.input[l.pos] == 'n' {
		return tok, l.errorAt(tok, "BigInt literals are not supported")
	}
	if isIdentStart(l.peekRune()) {
		return tok, l.errorAt(tok, "identifier directly after number")
	}
	tok.Num = n
	tok.Raw = l.input[tok.Start:l.pos]
	tok.Value = tok.Raw
	tok.End = l.pos
	return tok, nil
}

func (l *Lexer) acceptDigits() {
	for l.pos < len(l.input) && (isDigit(rune(l.input[l.pos])) || l.input[l.pos] == '_') {
		l.pos++
	}
}

func (l *Lexer) scanString(tok Token, quote rune) (Token, error) {
	l.pos++ // opening quote
	var sb strings.Builder
	for {
		ch := l.peekRune()
		switch {
		case ch == eof || ch == '\n' || ch == '\r':
			return tok, l.errorAt(tok, "unterminated string constant")
		case ch == quote:
			l.pos++
			tok.Type = TokenString
			tok.Value = sb.String()
			tok.End = l.pos
			return tok, nil
		case ch == '\\':
			if err := l.scanEscape(&sb, tok); err != nil {
				return tok, err
			}
		default:
			sb.WriteRune(ch)
			l.advance()
		}
	}
}

// scanTemplate reads one template chunk, up to and including either the
// closing backtick (Tail) or the `${` opening a substitution.
func (l *Lexer) scanTemplate(tok Token) (Token, error) {
	var sb strings.Builder
	for {
		ch := l.peekRune()
		switch {
		case ch == eof:
			return tok, l.errorAt(tok, "unterminated template literal")
		case ch == '`':
			l.pos++
			tok.Type = TokenTemplate
			tok.Value = sb.String()
			tok.Tail = true
			tok.End = l.pos
			return tok, nil
		case ch == '$' && l.runeAt(l.pos+1) == '{':
			l.pos += 2
			tok.Type = TokenTemplate
			tok.Value = sb.String()
			tok.End = l.pos
			return tok, nil
		case ch == '\\':
			if err := l.scanEscape(&sb, tok); err != nil {
				return tok, err
			}
		case ch == '\r':
			// Template values normalize CRLF and CR to LF.
			l.pos++
			if l.runeAt(l.pos) == '\n' {
				l.pos++
			}
			sb.WriteByte('\n')
			l.markLine()
		case ch == '\n':
			l.pos++
			sb.WriteByte('\n')
			l.markLine()
		default:
			sb.WriteRune(ch)
			l.advance()
		}
	}
}

// scanEscape decodes one backslash escape sequence into sb.
func (l *Lexer) scanEscape(sb *strings.Builder, tok Token) error {
	l.pos++ // backslash
	ch := l.peekRune()
	if ch == eof {
		return l.errorAt(tok, "unterminated escape sequence")
	}
	l.advance()

	switch ch {
	case 'n':
		sb.WriteByte('\n')
	case 't':
		sb.WriteByte('\t')
	case 'r':
		sb.WriteByte('\r')
	case 'b':
		sb.WriteByte('\b')
	case 'f':
		sb.WriteByte('\f')
	case 'v':
		sb.WriteByte('\v')
	case '0':
		if isDigit(l.runeAt(l.pos)) {
			return l.errorAt(tok, "octal escape sequences are not allowed")
		}
		sb.WriteByte(0)
	case 'x':
		if l.pos+2 > len(l.input) {
			return l.errorAt(tok, "invalid hexadecimal escape sequence")
		}
		n, err := strconv.ParseUint(l.input[l.pos:l.pos+2], 16, 8)
		if err != nil {
			return l.errorAt(tok, "invalid hexadecimal escape sequence")
		}
		l.pos += 2
		sb.WriteRune(rune(n))
	case 'u':
		r, err := l.scanUnicodeEscape(tok)
		if err != nil {
			return err
		}
		sb.WriteRune(r)
	case '\r':
		if l.runeAt(l.pos) == '\n' {
			l.pos++
		}
		l.markLine()
	case '\n', '\u2028', '\u2029':
		// Line continuation.
		l.markLine()
	default:
		if isDigit(ch) {
			return l.errorAt(tok, "octal escape sequences are not allowed")
		}
		sb.WriteRune(ch)
	}
	return nil
}

func (l *Lexer) scanUnicodeEscape(tok Token) (rune, error) {
	if l.runeAt(l.pos) == '{' {
		end := strings.IndexByte(l.input[l.pos:], '}')
		if end < 2 {
			return 0, l.errorAt(tok, "invalid unicode escape sequence")
		}
		n, err := strconv.ParseUint(l.input[l.pos+1:l.pos+end], 16, 32)
		if err != nil || n > unicode.MaxRune {
			return 0, l.errorAt(tok, "invalid unicode escape sequence")
		}
		l.pos += end + 1
		return rune(n), nil
	}

	if l.pos+4 > len(l.input) {
		return 0, l.errorAt(tok, "invalid unicode escape sequence")
	}
	n, err := strconv.ParseUint(l.input[l.pos:l.pos+4], 16, 16)
	if err != nil {
		return 0, l.errorAt(tok, "invalid unicode escape sequence")
	}
	l.pos += 4

	// Combine surrogate pairs written as two consecutive escapes.
	if n >= 0xD800 && n <= 0xDBFF && strings.HasPrefix(l.input[l.pos:], `\u`) && l.pos+6 <= len(l.input) {
		if lo, err := strconv.ParseUint(l.input[l.pos+2:l.pos+6], 16, 16); err == nil && lo >= 0xDC00 && lo <= 0xDFFF {
			l.pos += 6
			return rune((n-0xD800)<<10+(lo-0xDC00)) + 0x10000, nil
		}
	}
	return rune(n), nil
}

// advance moves past the rune at pos.
func (l *Lexer) advance() {
	_, w := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += w
}

// checkEncoding rejects source that is not valid UTF-8 and locates the first
// bad byte the way the lexer counts lines and columns.
func checkEncoding(src string) error {
	if utf8.ValidString(src) {
		return nil
	}
	line, lineStart := 1, 0
	for i := 0; i < len(src); {
		r, w := utf8.DecodeRuneInString(src[i:])
		if r == utf8.RuneError && w == 1 {
			return schema.NewErrorf(schema.ErrCodeSyntax, "invalid UTF-8 byte 0x%02x", src[i]).
				WithLocation(schema.Location{Line: line, Column: i - lineStart + 1})
		}
		i += w
		switch r {
		case '\r':
			if i < len(src) && src[i] == '\n' {
				i++
			}
			line, lineStart = line+1, i
		case '\n', '\u2028', '\u2029':
			line, lineStart = line+1, i
		}
	}
	return nil
}

func (l *Lexer) peekRune() rune {
	return l.runeAt(l.pos)
}

func (l *Lexer) runeAt(pos int) rune {
	if pos >= len(l.input) {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(l.input[pos:])
	return r
}

func (l *Lexer) errorAt(tok Token, format string, args ...any) *schema.Error {
	return schema.NewErrorf(schema.ErrCodeSyntax, format, args...).
		WithLocation(schema.Location{Line: tok.Line, Column: tok.Column})
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isIdentStart(r rune) bool {
	return r == '$' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r > 0x7f && unicode.IsLetter(r))
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || isDigit(r) || (r > 0x7f && (unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r)))
}
