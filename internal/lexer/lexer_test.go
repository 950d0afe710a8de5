package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ibci/internal/token"
)

func kinds(t []token.Token) []token.Kind {
	out := make([]token.Kind, len(t))
	for i, tok := range t {
		out[i] = tok.Kind
	}
	return out
}

func TestBasicStructure(t *testing.T) {
	code := "func f(int a) -> int:\n" +
		"    int x = 10\n" +
		"    for i in a:\n" +
		"        x = x + i\n" +
		"    return x\n"

	lx := New(code, nil)
	toks, err := lx.Tokenize()
	require.NoError(t, err)

	expected := []token.Kind{
		token.FUNC, token.IDENT, token.LPAREN, token.IDENT, token.IDENT, token.RPAREN, token.ARROW, token.IDENT, token.COLON, token.NEWLINE,
		token.INDENT,
		token.IDENT, token.IDENT, token.ASSIGN, token.NUMBER, token.NEWLINE,
		token.FOR, token.IDENT, token.IN, token.IDENT, token.COLON, token.NEWLINE,
		token.INDENT,
		token.IDENT, token.ASSIGN, token.IDENT, token.PLUS, token.IDENT, token.NEWLINE,
		token.DEDENT,
		token.RETURN, token.IDENT, token.NEWLINE,
		token.DEDENT,
		token.EOF,
	}
	require.Equal(t, expected, kinds(toks))
}

func TestIndentDedentBalance(t *testing.T) {
	code := "func f():\n    if true:\n        pass\n    pass\n"
	toks, err := New(code, nil).Tokenize()
	require.NoError(t, err)

	indents, dedents := 0, 0
	for _, tk := range toks {
		switch tk.Kind {
		case token.INDENT:
			indents++
		case token.DEDENT:
			dedents++
		}
	}
	require.Equal(t, indents, dedents)
}

func TestImplicitContinuation(t *testing.T) {
	code := "x = (\n    1 +\n    2\n)\n"
	toks, err := New(code, nil).Tokenize()
	require.NoError(t, err)

	expected := []token.Kind{
		token.IDENT, token.ASSIGN, token.LPAREN,
		token.NUMBER, token.PLUS, token.NUMBER,
		token.RPAREN, token.NEWLINE, token.EOF,
	}
	require.Equal(t, expected, kinds(toks))
}

func TestExplicitContinuation(t *testing.T) {
	code := "x = 1 + \\\n2\n"
	toks, err := New(code, nil).Tokenize()
	require.NoError(t, err)

	expected := []token.Kind{token.IDENT, token.ASSIGN, token.NUMBER, token.PLUS, token.NUMBER, token.NEWLINE, token.EOF}
	require.Equal(t, expected, kinds(toks))
}

func TestBehaviorDescription(t *testing.T) {
	code := "str res = @~analyze $content~\n"
	toks, err := New(code, nil).Tokenize()
	require.NoError(t, err)

	require.Equal(t, token.IDENT, toks[0].Kind)
	require.Equal(t, token.IDENT, toks[1].Kind)
	require.Equal(t, token.ASSIGN, toks[2].Kind)
	require.Equal(t, token.BEHAVIOR_MARKER, toks[3].Kind)
	require.Equal(t, "@~", toks[3].Lexeme)
	require.Equal(t, token.RAW_TEXT, toks[4].Kind)
	require.Equal(t, token.VAR_REF, toks[5].Kind)
	require.Equal(t, "$content", toks[5].Lexeme)
	require.Equal(t, token.BEHAVIOR_END, toks[6].Kind)
}

func TestBehaviorWithTag(t *testing.T) {
	code := "res = @python~ print(1) ~\n"
	toks, err := New(code, nil).Tokenize()
	require.NoError(t, err)

	require.Equal(t, token.BEHAVIOR_MARKER, toks[2].Kind)
	require.Equal(t, "@python~", toks[2].Lexeme)
	require.Equal(t, token.RAW_TEXT, toks[3].Kind)
	require.Equal(t, " print(1) ", toks[3].Lexeme)
	require.Equal(t, token.BEHAVIOR_END, toks[4].Kind)
}

func TestLLMBlock(t *testing.T) {
	code := "llm gen(str msg):\n" +
		"    __sys__\n" +
		"    system prompt\n" +
		"    __user__\n" +
		"    user content $__msg__\n" +
		"    llmend\n"

	toks, err := New(code, nil).Tokenize()
	require.NoError(t, err)

	require.Equal(t, token.LLM_DEF, toks[0].Kind)

	var sysIdx, paramIdx, endIdx int = -1, -1, -1
	for i, tk := range toks {
		switch tk.Kind {
		case token.LLM_SYS:
			sysIdx = i
		case token.PARAM_PLACEHOLDER:
			paramIdx = i
		case token.LLM_END:
			endIdx = i
		}
	}
	require.NotEqual(t, -1, sysIdx)
	require.NotEqual(t, -1, paramIdx)
	require.NotEqual(t, -1, endIdx)
	require.Equal(t, "$__msg__", toks[paramIdx].Lexeme)
}

func TestRawString(t *testing.T) {
	toks, err := New(`r"C:\n"`, nil).Tokenize()
	require.NoError(t, err)
	require.Equal(t, token.STRING, toks[0].Kind)
	require.Equal(t, `C:\n`, toks[0].Lexeme)
}

func TestNumberLiterals(t *testing.T) {
	cases := map[string]string{
		"0xFF": "0xFF", "0b101": "0b101", "1.23": "1.23", "1e10": "1e10", "1.5E-2": "1.5E-2",
	}
	for src, want := range cases {
		toks, err := New(src, nil).Tokenize()
		require.NoError(t, err)
		require.Equal(t, token.NUMBER, toks[0].Kind)
		require.Equal(t, want, toks[0].Lexeme)
	}
}

func TestUnterminatedStringReportsError(t *testing.T) {
	_, err := New(`str s = "hello`, nil).Tokenize()
	require.Error(t, err)
}

func TestInvalidIndentReportsError(t *testing.T) {
	code := "func f():\n    int x = 1\n   int y = 2\n"
	_, err := New(code, nil).Tokenize()
	require.Error(t, err)
}

func TestRoundTripTokenKinds(t *testing.T) {
	code := "int x = (1 & 3) | (5 ^ 1)\n"
	first, err := New(code, nil).Tokenize()
	require.NoError(t, err)

	var sb []byte
	for _, tk := range first {
		if tk.Kind == token.EOF || tk.Kind == token.NEWLINE || tk.Kind == token.INDENT || tk.Kind == token.DEDENT {
			continue
		}
		sb = append(sb, []byte(tk.Lexeme)...)
		sb = append(sb, ' ')
	}

	second, err := New(string(sb), nil).Tokenize()
	require.NoError(t, err)

	strip := func(toks []token.Token) []token.Kind {
		var out []token.Kind
		for _, tk := range toks {
			if tk.Kind == token.NEWLINE || tk.Kind == token.INDENT || tk.Kind == token.DEDENT {
				continue
			}
			out = append(out, tk.Kind)
		}
		return out
	}
	require.Equal(t, strip(first), strip(second))
}
