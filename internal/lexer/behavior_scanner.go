package lexer

import (
	"strings"
	"unicode"

	"ibci/internal/diag"
	"ibci/internal/token"
)

// scanAtSign dispatches on what follows `@`: a space starts an intent
// annotation line (`@ <free text>`); `~` or `tag~` starts a behavior
// expression. The two lexical modes are kept strict per §9's noted hazard:
// only a literal space after `@` means "intent line".
func (c *coreTokenScanner) scanAtSign() (tokens []token.Token, enterLLM bool) {
	line, col := c.scanner.line, c.scanner.col
	c.scanner.advance() // consume '@'

	if c.scanner.peek() == ' ' || c.scanner.peek() == '\t' || c.scanner.peek() == '\n' {
		return []token.Token{c.scanIntentLine(line, col)}, false
	}

	var tag strings.Builder
	for isIdentCont(c.scanner.peek()) {
		tag.WriteRune(c.scanner.advance())
	}
	if c.scanner.peek() != '~' {
		c.issues.Report(diag.Error, diag.LexInvalidEscape,
			"Unexpected character '@' or invalid escape sequence", c.curLocation(), "")
		return nil, false
	}
	c.scanner.advance() // consume opening '~'
	marker := "@" + tag.String() + "~"
	tokens = append(tokens, token.Token{Kind: token.BEHAVIOR_MARKER, Lexeme: marker, Pos: token.Position{Line: line, Column: col}})

	c.subState = subInBehavior
	body, closed := c.scanBehaviorBody()
	tokens = append(tokens, body...)
	if closed {
		tokens = append(tokens, c.mk(token.BEHAVIOR_END, "~"))
		c.scanner.advance() // consume closing '~'
	} else {
		c.issues.Report(diag.Error, diag.LexUnterminatedBehavior,
			"Unexpected EOF while scanning behavior description", c.curLocation(), "")
	}
	c.subState = subNormal
	return tokens, false
}

func (c *coreTokenScanner) scanIntentLine(line, col int) token.Token {
	c.subState = subInIntent
	if c.scanner.peek() == ' ' || c.scanner.peek() == '\t' {
		c.scanner.advance()
	}
	var sb strings.Builder
	for c.scanner.peek() != '\n' && !c.scanner.isAtEnd() {
		sb.WriteRune(c.scanner.advance())
	}
	c.subState = subNormal
	return token.Token{Kind: token.INTENT, Lexeme: sb.String(), Pos: token.Position{Line: line, Column: col}}
}

// scanBehaviorBody alternates RAW_TEXT runs with VAR_REF/attribute/subscript
// token sequences until the closing (unescaped) `~`. It returns false if EOF
// is reached first.
func (c *coreTokenScanner) scanBehaviorBody() ([]token.Token, bool) {
	var tokens []token.Token
	var raw strings.Builder
	flush := func() {
		if raw.Len() > 0 {
			tokens = append(tokens, token.Token{Kind: token.RAW_TEXT, Lexeme: raw.String(),
				Pos: token.Position{Line: c.scanner.line, Column: c.scanner.col}})
			raw.Reset()
		}
	}

	for {
		if c.scanner.isAtEnd() {
			flush()
			return tokens, false
		}
		r := c.scanner.peek()
		switch {
		case r == '~':
			flush()
			return tokens, true
		case r == '\\' && (c.scanner.peekAt(1) == '~' || c.scanner.peekAt(1) == '$'):
			c.scanner.advance()
			raw.WriteRune(c.scanner.advance())
		case r == '$':
			flush()
			tokens = append(tokens, c.scanVarRef()...)
		default:
			raw.WriteRune(c.scanner.advance())
		}
	}
}

// scanVarRef scans `$name` and any immediately-following `.attr`/`[expr]`
// chain as ordinary tokens, so the parser can re-build an Attribute/
// Subscript expression from them.
func (c *coreTokenScanner) scanVarRef() []token.Token {
	line, col := c.scanner.line, c.scanner.col
	var sb strings.Builder
	sb.WriteRune(c.scanner.advance()) // '$'
	for isIdentCont(c.scanner.peek()) {
		sb.WriteRune(c.scanner.advance())
	}
	tokens := []token.Token{{Kind: token.VAR_REF, Lexeme: sb.String(), Pos: token.Position{Line: line, Column: col}}}

	for {
		switch {
		case c.scanner.peek() == '.' && isIdentStart(c.scanner.peekAt(1)):
			tokens = append(tokens, c.mk(token.DOT, "."))
			c.scanner.advance()
			tokens = append(tokens, c.scanIdent())
		case c.scanner.peek() == '[':
			tokens = append(tokens, c.mk(token.LBRACKET, "["))
			c.scanner.advance()
			for c.scanner.peek() != ']' && !c.scanner.isAtEnd() {
				c.skipWhitespace()
				if c.scanner.peek() == ']' {
					break
				}
				if unicode.IsDigit(c.scanner.peek()) {
					tokens = append(tokens, c.scanNumber())
				} else if isIdentStart(c.scanner.peek()) {
					tokens = append(tokens, c.scanIdent())
				} else if tok, ok := c.scanOperator(); ok {
					tokens = append(tokens, tok)
				} else {
					c.scanner.advance()
				}
			}
			if c.scanner.peek() == ']' {
				tokens = append(tokens, c.mk(token.RBRACKET, "]"))
				c.scanner.advance()
			}
		default:
			return tokens
		}
	}
}

func (c *coreTokenScanner) skipWhitespace() {
	for c.scanner.peek() == ' ' || c.scanner.peek() == '\t' {
		c.scanner.advance()
	}
}
