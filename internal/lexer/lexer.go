// Package lexer converts IBCI source text into a token.Token stream. It
// owns an indentation stack and a mode stack (NORMAL / LLM_BLOCK) and
// composes three sub-scanners — indentProcessor, coreTokenScanner, and
// llmScanner — the way the original lexer/indent_processor/core_scanner/
// llm_scanner split divided the responsibility.
package lexer

import (
	"ibci/internal/diag"
	"ibci/internal/token"
)

type lexerMode int

const (
	modeNormal lexerMode = iota
	modeLLMBlock
)

// Lexer tokenizes a single source file.
type Lexer struct {
	scanner *runeStream
	issues  *diag.Tracker
	tokens  []token.Token

	modeStack []lexerMode
	isNewLine bool

	indent *indentProcessor
	core   *coreTokenScanner
	llm    *llmScanner
}

// New creates a Lexer over source, reporting diagnostics to issues (a fresh
// tracker is created if issues is nil).
func New(source string, issues *diag.Tracker) *Lexer {
	if issues == nil {
		issues = diag.NewTracker("<unknown>")
	}
	s := newRuneStream(source)
	return &Lexer{
		scanner:   s,
		issues:    issues,
		modeStack: []lexerMode{modeNormal},
		isNewLine: true,
		indent:    newIndentProcessor(s, issues),
		core:      newCoreTokenScanner(s, issues),
		llm:       newLLMScanner(s),
	}
}

// Tokenize runs the lexer to completion and returns the full token stream,
// terminated by a single EOF token. It returns a *diag.CompilationError if
// any ERROR-or-above diagnostic was reported.
func (lx *Lexer) Tokenize() ([]token.Token, error) {
	for !lx.scanner.isAtEnd() {
		lx.processLine()
	}

	lx.core.checkEOFState()
	lx.tokens = append(lx.tokens, lx.indent.handleEOF()...)
	lx.tokens = append(lx.tokens, token.Token{Kind: token.EOF, Pos: token.Position{Line: lx.scanner.line, Column: 0}})

	if err := lx.issues.CheckErrors(); err != nil {
		return lx.tokens, err
	}
	return lx.tokens, nil
}

func (lx *Lexer) curMode() lexerMode { return lx.modeStack[len(lx.modeStack)-1] }

func (lx *Lexer) processLine() {
	mode := lx.curMode()

	shouldHandleIndent := mode == modeNormal &&
		!lx.core.continuationMode &&
		lx.core.parenLevel == 0 &&
		lx.core.subState == subNormal &&
		lx.isNewLine

	if shouldHandleIndent {
		indentLevel, toks := lx.indent.process()
		if indentLevel >= 0 {
			lx.tokens = append(lx.tokens, toks...)
		} else {
			return // blank/comment-only line; isNewLine stays true
		}
	}

	switch mode {
	case modeNormal:
		if !shouldHandleIndent {
			lx.skipWhitespace()
			if lx.core.continuationMode {
				lx.core.continuationMode = false
			}
		}
		toks, newlineDone, enterLLM := lx.core.scanLine()
		lx.tokens = append(lx.tokens, toks...)
		lx.isNewLine = newlineDone
		if enterLLM {
			lx.modeStack = append(lx.modeStack, modeLLMBlock)
		}

	case modeLLMBlock:
		toks, shouldExit := lx.llm.scanChunk()
		lx.tokens = append(lx.tokens, toks...)
		if shouldExit {
			lx.modeStack = lx.modeStack[:len(lx.modeStack)-1]
			lx.isNewLine = true
		}
	}
}

func (lx *Lexer) skipWhitespace() {
	for lx.scanner.peek() == ' ' || lx.scanner.peek() == '\t' {
		lx.scanner.advance()
	}
}
