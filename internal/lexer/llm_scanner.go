package lexer

import (
	"strings"

	"ibci/internal/token"
)

// llmScanner tokenizes the body of an `llm name(...): ... llmend` block.
// Content between the `__sys__`/`__user__` section headers and the closing
// `llmend` is emitted as RAW_TEXT runs interleaved with PARAM_PLACEHOLDER
// tokens matching `$__expr__`.
type llmScanner struct {
	scanner *runeStream
}

func newLLMScanner(s *runeStream) *llmScanner {
	return &llmScanner{scanner: s}
}

// scanChunk consumes one "chunk": either a section header keyword
// (__sys__, __user__, llmend) found at the start of a (whitespace-trimmed)
// line, or a run of prompt text up to the next such header. shouldExit
// reports whether `llmend` was just consumed.
func (l *llmScanner) scanChunk() (tokens []token.Token, shouldExit bool) {
	l.skipBlankLines()
	if l.scanner.isAtEnd() {
		return nil, true
	}

	if kind, lexeme, textStart, ok := l.headerAt(l.scanner.pos); ok {
		for l.scanner.pos < textStart {
			l.scanner.advance()
		}
		line, col := l.scanner.line, l.scanner.col
		for range []rune(lexeme) {
			l.scanner.advance()
		}
		tokens = append(tokens, token.Token{Kind: kind, Lexeme: lexeme, Pos: token.Position{Line: line, Column: col}})
		l.consumeRestOfLine()
		return tokens, kind == token.LLM_END
	}

	return l.scanPromptText(), false
}

func (l *llmScanner) skipBlankLines() {
	for {
		save := l.scanner.pos
		for l.scanner.peek() == ' ' || l.scanner.peek() == '\t' {
			l.scanner.advance()
		}
		if l.scanner.peek() == '\n' {
			l.scanner.advance()
			continue
		}
		l.scanner.pos = save
		return
	}
}

func (l *llmScanner) consumeRestOfLine() {
	for l.scanner.peek() == ' ' || l.scanner.peek() == '\t' {
		l.scanner.advance()
	}
	if l.scanner.peek() == '\n' {
		l.scanner.advance()
	}
}

var sectionHeaders = []struct {
	text string
	kind token.Kind
}{
	{"llmend", token.LLM_END},
	{"__sys__", token.LLM_SYS},
	{"__user__", token.LLM_USER},
}

// headerAt checks, without mutating scanner state, whether a section header
// keyword starts at rune offset pos once leading indentation is skipped. It
// returns the matched kind, the header's lexeme, and the position just past
// the leading indentation (where the header text itself begins).
func (l *llmScanner) headerAt(pos int) (kind token.Kind, lexeme string, textStart int, ok bool) {
	p := pos
	for p < len(l.scanner.src) && (l.scanner.src[p] == ' ' || l.scanner.src[p] == '\t') {
		p++
	}
	for _, h := range sectionHeaders {
		if l.lookingAt(p, h.text) && followedByLineEnd(l.scanner, p+len([]rune(h.text))) {
			return h.kind, h.text, p, true
		}
	}
	return 0, "", 0, false
}

func (l *llmScanner) lookingAt(pos int, text string) bool {
	runes := []rune(text)
	for i, r := range runes {
		if pos+i >= len(l.scanner.src) || l.scanner.src[pos+i] != r {
			return false
		}
	}
	return true
}

func followedByLineEnd(s *runeStream, pos int) bool {
	if pos >= len(s.src) {
		return true
	}
	r := s.src[pos]
	return r == '\n' || r == ' ' || r == '\t'
}

// scanPromptText reads a run of literal prompt text up to the next section
// header or `$__expr__` placeholder, emitting RAW_TEXT / PARAM_PLACEHOLDER
// tokens in order.
func (l *llmScanner) scanPromptText() []token.Token {
	var tokens []token.Token
	var raw strings.Builder
	line, col := l.scanner.line, l.scanner.col
	flush := func() {
		if raw.Len() > 0 {
			tokens = append(tokens, token.Token{Kind: token.RAW_TEXT, Lexeme: raw.String(), Pos: token.Position{Line: line, Column: col}})
			raw.Reset()
			line, col = l.scanner.line, l.scanner.col
		}
	}

	for !l.scanner.isAtEnd() {
		if l.scanner.peek() == '\n' {
			if _, _, _, ok := l.headerAt(l.scanner.pos + 1); ok {
				raw.WriteRune(l.scanner.advance()) // consume the newline; header line scanned by the next chunk
				flush()
				return tokens
			}
			raw.WriteRune(l.scanner.advance())
			continue
		}
		if l.scanner.peek() == '$' && l.scanner.peekAt(1) == '_' && l.scanner.peekAt(2) == '_' {
			flush()
			tokens = append(tokens, l.scanParamPlaceholder())
			line, col = l.scanner.line, l.scanner.col
			continue
		}
		raw.WriteRune(l.scanner.advance())
	}
	flush()
	return tokens
}

// scanParamPlaceholder consumes `$__...__`, stopping at the matching closing
// `__`. The captured text (minus the `$__`/`__` wrapper) is re-lexed and
// re-parsed as an ordinary expression by the parser.
func (l *llmScanner) scanParamPlaceholder() token.Token {
	line, col := l.scanner.line, l.scanner.col
	var sb strings.Builder
	sb.WriteRune(l.scanner.advance()) // $
	sb.WriteRune(l.scanner.advance()) // _
	sb.WriteRune(l.scanner.advance()) // _
	for !l.scanner.isAtEnd() {
		if l.scanner.peek() == '_' && l.scanner.peekAt(1) == '_' {
			sb.WriteRune(l.scanner.advance())
			sb.WriteRune(l.scanner.advance())
			break
		}
		if l.scanner.peek() == '\n' {
			break
		}
		sb.WriteRune(l.scanner.advance())
	}
	return token.Token{Kind: token.PARAM_PLACEHOLDER, Lexeme: sb.String(), Pos: token.Position{Line: line, Column: col}}
}
