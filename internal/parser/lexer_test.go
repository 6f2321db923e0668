package parser

import (
	"errors"
	"math"
	"testing"

	"github.com/rendis/wfscript/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexAll(t *testing.T, src string) []Token {
	t.Helper()
	l := NewLexer(src)
	var toks []Token
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Type == TokenEOF {
			return toks
		}
	}
}

func lexErr(t *testing.T, src string) *schema.Error {
	t.Helper()
	l := NewLexer(src)
	for {
		tok, err := l.Next()
		if err != nil {
			var wfErr *schema.Error
			require.True(t, errors.As(err, &wfErr))
			return wfErr
		}
		require.NotEqual(t, TokenEOF, tok.Type, "expected a lexer error for %q", src)
	}
}

func TestLexer_Declaration(t *testing.T) {
	toks := lexAll(t, "const a = 1.5;")
	require.Len(t, toks, 6)

	assert.True(t, toks[0].IsWord("const"))
	assert.True(t, toks[1].IsWord("a"))
	assert.True(t, toks[2].Is("="))
	assert.Equal(t, TokenNumber, toks[3].Type)
	assert.Equal(t, 1.5, toks[3].Num)
	assert.Equal(t, "1.5", toks[3].Raw)
	assert.True(t, toks[4].Is(";"))
	assert.Equal(t, TokenEOF, toks[5].Type)
}

func TestLexer_Numbers(t *testing.T) {
	tests := []struct {
		src  string
		want float64
	}{
		{"0", 0},
		{"42", 42},
		{".5", 0.5},
		{"1e3", 1000},
		{"2.5E-2", 0.025},
		{"0x1F", 31},
		{"0o17", 15},
		{"0b101", 5},
		{"1_000_000", 1000000},
	}
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			toks := lexAll(t, tc.src)
			require.Equal(t, TokenNumber, toks[0].Type)
			assert.Equal(t, tc.want, toks[0].Num)
		})
	}
}

func TestLexer_StringEscapes(t *testing.T) {
	toks := lexAll(t, `'a\nA\x42\u{1F600}\'"'`)
	require.Equal(t, TokenString, toks[0].Type)
	assert.Equal(t, "a\nAB\U0001F600'\"", toks[0].Value)

	toks = lexAll(t, `"😀"`)
	assert.Equal(t, "\U0001F600", toks[0].Value)
}

func TestLexer_Comments(t *testing.T) {
	toks := lexAll(t, "// line\na /* block\n */ b")
	require.Len(t, toks, 3)
	assert.True(t, toks[0].IsWord("a"))
	assert.True(t, toks[0].NewlineBefore)
	assert.True(t, toks[1].IsWord("b"))
	assert.True(t, toks[1].NewlineBefore)
	assert.Equal(t, 3, toks[1].Line)
}

func TestLexer_Positions(t *testing.T) {
	toks := lexAll(t, "a\n  bc")
	require.Len(t, toks, 3)
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 1, toks[0].Column)
	assert.False(t, toks[0].NewlineBefore)

	assert.Equal(t, 2, toks[1].Line)
	assert.Equal(t, 3, toks[1].Column)
	assert.Equal(t, 4, toks[1].Start)
	assert.Equal(t, 6, toks[1].End)
	assert.True(t, toks[1].NewlineBefore)
}

func TestLexer_Punctuators(t *testing.T) {
	toks := lexAll(t, "a ?? b?.c >>>= ... === !==")
	var got []string
	for _, tok := range toks[:len(toks)-1] {
		got = append(got, tok.Value)
	}
	assert.Equal(t, []string{"a", "??", "b", "?.", "c", ">>>=", "...", "===", "!=="}, got)
}

func TestLexer_OptionalChainBeforeDigit(t *testing.T) {
	toks := lexAll(t, "a?.5:b")
	require.Len(t, toks, 6)
	assert.True(t, toks[1].Is("?"))
	assert.Equal(t, 0.5, toks[2].Num)
	assert.True(t, toks[3].Is(":"))
}

func TestLexer_TemplateChunks(t *testing.T) {
	l := NewLexer("`ab${x}c`")
	head, err := l.Next()
	require.NoError(t, err)
	assert.Equal(t, TokenTemplate, head.Type)
	assert.Equal(t, "ab", head.Value)
	assert.False(t, head.Tail)

	x, err := l.Next()
	require.NoError(t, err)
	assert.True(t, x.IsWord("x"))

	closing, err := l.Next()
	require.NoError(t, err)
	require.True(t, closing.Is("}"))

	tail, err := l.TemplateContinuation(closing.End)
	require.NoError(t, err)
	assert.Equal(t, "c", tail.Value)
	assert.True(t, tail.Tail)

	end, err := l.Next()
	require.NoError(t, err)
	assert.Equal(t, TokenEOF, end.Type)
}

func TestLexer_TemplateNormalizesCRLF(t *testing.T) {
	toks := lexAll(t, "`a\r\nb`")
	assert.Equal(t, "a\nb", toks[0].Value)
	assert.True(t, toks[0].Tail)
}

func TestLexer_Errors(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		substr string
		col    int
	}{
		{"unterminated string", `x = "abc`, "unterminated string", 5},
		{"newline in string", "'a\nb'", "unterminated string", 1},
		{"unterminated template", "`abc", "unterminated template", 1},
		{"unterminated comment", "a /* x", "unterminated comment", 3},
		{"legacy octal", "010", "legacy octal", 1},
		{"octal escape", `'\1'`, "octal escape", 1},
		{"bigint", "10n", "BigInt", 1},
		{"identifier after number", "3in", "identifier directly after number", 1},
		{"bad hex", "0x", "invalid number", 1},
		{"bad exponent", "1e+", "invalid number", 1},
		{"unexpected char", "a §", "unexpected character", 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := lexErr(t, tc.src)
			assert.Equal(t, schema.ErrCodeSyntax, err.Code)
			assert.Contains(t, err.Message, tc.substr)
			require.NotNil(t, err.Location)
			assert.Equal(t, tc.col, err.Location.Column)
		})
	}
}

func TestLexer_InvalidUTF8AdvancesOneByte(t *testing.T) {
	toks := lexAll(t, "`\xff${")
	require.Equal(t, TokenTemplate, toks[0].Type)
	assert.Equal(t, "�", toks[0].Value)
	assert.False(t, toks[0].Tail, "the substitution opener must not be swallowed")
	assert.Equal(t, 4, toks[0].End)

	toks = lexAll(t, "'\xff'")
	require.Equal(t, TokenString, toks[0].Type)
	assert.Equal(t, "�", toks[0].Value)
}

func TestLexer_NumberOverflow(t *testing.T) {
	tests := []struct {
		src  string
		want float64
	}{
		{"1e400", math.Inf(1)},
		{"1e-400", 0},
		{"0x10000000000000000", 18446744073709551616},
	}
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			toks := lexAll(t, tc.src)
			require.Equal(t, TokenNumber, toks[0].Type)
			assert.Equal(t, tc.want, toks[0].Num)
		})
	}
}
