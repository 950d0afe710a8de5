// Package token defines the lexical token kinds the IBCI lexer produces and
// the parser and pre-scanner consume.
package token

import "fmt"

// Kind identifies the lexical category of a Token.
type Kind int

const (
	ILLEGAL Kind = iota
	EOF
	INDENT
	DEDENT
	NEWLINE

	// Keywords
	IMPORT
	FROM
	FUNC
	RETURN
	CALLABLE
	IF
	ELIF
	ELSE
	FOR
	WHILE
	IN
	VAR
	PASS
	BREAK
	CONTINUE
	AS
	AND
	OR
	NOT
	IS
	NONE
	TRY
	EXCEPT
	FINALLY
	RAISE
	CLASS
	SELF

	// LLM keywords
	LLM_DEF
	LLM_END
	LLM_SYS
	LLM_USER
	LLM_EXCEPT
	RETRY
	INTENT_STMT

	// Identifiers and literals
	IDENT
	NUMBER
	STRING
	BOOL

	// Operators
	ASSIGN
	ARROW
	PLUS
	MINUS
	STAR
	SLASH
	PERCENT

	PLUS_ASSIGN
	MINUS_ASSIGN
	STAR_ASSIGN
	SLASH_ASSIGN
	PERCENT_ASSIGN

	BIT_AND
	BIT_OR
	BIT_XOR
	BIT_NOT
	LSHIFT
	RSHIFT

	LPAREN
	RPAREN
	LBRACKET
	RBRACKET
	LBRACE
	RBRACE
	COLON
	COMMA
	DOT

	EQ
	NE
	GT
	LT
	GE
	LE

	// Behavior expressions and prompt text
	BEHAVIOR_MARKER // @~ or @tag~ ... the opening marker; the closing ~ is BEHAVIOR_END
	BEHAVIOR_END
	INTENT // @ <free text> line
	RAW_TEXT
	VAR_REF           // $name(.attr|[expr])*
	PARAM_PLACEHOLDER // $__expr__ inside an LLM block
)

var names = map[Kind]string{
	ILLEGAL: "ILLEGAL", EOF: "EOF", INDENT: "INDENT", DEDENT: "DEDENT", NEWLINE: "NEWLINE",
	IMPORT: "import", FROM: "from", FUNC: "func", RETURN: "return", CALLABLE: "Callable",
	IF: "if", ELIF: "elif", ELSE: "else", FOR: "for", WHILE: "while", IN: "in",
	VAR: "var", PASS: "pass", BREAK: "break", CONTINUE: "continue", AS: "as",
	AND: "and", OR: "or", NOT: "not", IS: "is", NONE: "None",
	TRY: "try", EXCEPT: "except", FINALLY: "finally", RAISE: "raise",
	CLASS: "class", SELF: "self",
	LLM_DEF: "llm", LLM_END: "llmend", LLM_SYS: "__sys__", LLM_USER: "__user__",
	LLM_EXCEPT: "llmexcept", RETRY: "retry", INTENT_STMT: "intent",
	IDENT: "IDENT", NUMBER: "NUMBER", STRING: "STRING", BOOL: "BOOL",
	ASSIGN: "=", ARROW: "->", PLUS: "+", MINUS: "-", STAR: "*", SLASH: "/", PERCENT: "%",
	PLUS_ASSIGN: "+=", MINUS_ASSIGN: "-=", STAR_ASSIGN: "*=", SLASH_ASSIGN: "/=", PERCENT_ASSIGN: "%=",
	BIT_AND: "&", BIT_OR: "|", BIT_XOR: "^", BIT_NOT: "~", LSHIFT: "<<", RSHIFT: ">>",
	LPAREN: "(", RPAREN: ")", LBRACKET: "[", RBRACKET: "]", LBRACE: "{", RBRACE: "}",
	COLON: ":", COMMA: ",", DOT: ".",
	EQ: "==", NE: "!=", GT: ">", LT: "<", GE: ">=", LE: "<=",
	BEHAVIOR_MARKER: "BEHAVIOR_MARKER", BEHAVIOR_END: "BEHAVIOR_END", INTENT: "INTENT",
	RAW_TEXT: "RAW_TEXT", VAR_REF: "VAR_REF", PARAM_PLACEHOLDER: "PARAM_PLACEHOLDER",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Keywords maps reserved identifiers to their Kind. Populated once at
// package init so the lexer can look up an identifier's keyword kind in
// constant time.
var Keywords = map[string]Kind{
	"import": IMPORT, "from": FROM, "func": FUNC, "return": RETURN,
	"Callable": CALLABLE, "if": IF, "elif": ELIF, "else": ELSE,
	"for": FOR, "while": WHILE, "in": IN, "var": VAR,
	"pass": PASS, "break": BREAK, "continue": CONTINUE, "as": AS,
	"and": AND, "or": OR, "not": NOT, "is": IS, "None": NONE,
	"try": TRY, "except": EXCEPT, "finally": FINALLY, "raise": RAISE,
	"class": CLASS, "self": SELF,
	"llm": LLM_DEF, "llmend": LLM_END, "llmexcept": LLM_EXCEPT,
	"retry": RETRY, "true": BOOL, "false": BOOL,
}

// Position locates a token (or an AST node) in a source file.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is a single lexical unit produced by the lexer.
type Token struct {
	Kind        Kind
	Lexeme      string
	Pos         Position
	EndPos      Position
	AtLineStart bool
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%s", t.Kind, t.Lexeme, t.Pos)
}
