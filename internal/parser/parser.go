// Package parser implements the Pratt expression parser and recursive-
// descent statement parser described in §4.3: declaration-vs-expression
// disambiguation via the current scope's known-type set, chained
// comparisons, flattened boolean runs, and LLM-block/behavior-expression
// grammar.
package parser

import (
	"fmt"

	"ibci/internal/ast"
	"ibci/internal/diag"
	"ibci/internal/prescan"
	"ibci/internal/scope"
	"ibci/internal/token"
)

const maxLookaheadDepth = 256

// Parser turns a token stream into an *ast.Module.
type Parser struct {
	toks   []token.Token
	pos    int
	issues *diag.Tracker

	knownTypes *prescan.KnownTypeNames
	scopeStack []*scope.ScopeNode

	pendingIntent    string
	hasPendingIntent bool
}

// New creates a Parser over toks, reporting diagnostics to issues.
func New(toks []token.Token, issues *diag.Tracker) *Parser {
	if issues == nil {
		issues = diag.NewTracker("<unknown>")
	}
	return &Parser{toks: toks, issues: issues, knownTypes: prescan.NewKnownTypeNames()}
}

// ---- cursor primitives ----

func (p *Parser) peek() token.Token  { return p.peekAt(0) }
func (p *Parser) previous() token.Token {
	if p.pos == 0 {
		return p.toks[0]
	}
	return p.toks[p.pos-1]
}

func (p *Parser) peekAt(offset int) token.Token {
	idx := p.pos + offset
	if idx >= len(p.toks) {
		return p.toks[len(p.toks)-1] // EOF
	}
	return p.toks[idx]
}

func (p *Parser) isAtEnd() bool { return p.peek().Kind == token.EOF }

func (p *Parser) advance() token.Token {
	if !p.isAtEnd() {
		p.pos++
	}
	return p.previous()
}

func (p *Parser) check(k token.Kind) bool { return p.peek().Kind == k }

func (p *Parser) match(k token.Kind) bool {
	if p.check(k) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) consume(k token.Kind, msg string) token.Token {
	if p.check(k) {
		return p.advance()
	}
	tk := p.peek()
	p.issues.Report(diag.Error, diag.ParExpectedToken, msg, tk, "")
	return tk
}

func (p *Parser) errorf(tk token.Token, format string, args ...any) {
	p.issues.Report(diag.Error, diag.ParExpectedToken, fmt.Sprintf(format, args...), tk, "")
}

// synchronize skips tokens until after a NEWLINE, DEDENT, or a known
// statement keyword, per §4.3's error-recovery rule.
func (p *Parser) synchronize() {
	for !p.isAtEnd() {
		switch p.previous().Kind {
		case token.NEWLINE, token.DEDENT:
			return
		}
		switch p.peek().Kind {
		case token.FUNC, token.LLM_DEF, token.CLASS, token.IF, token.WHILE, token.FOR,
			token.RETURN, token.IMPORT, token.FROM, token.TRY:
			return
		}
		p.advance()
	}
}

// ---- scope management ----

func (p *Parser) currentScope() *scope.ScopeNode { return p.scopeStack[len(p.scopeStack)-1] }

func (p *Parser) pushScope(kind scope.Kind, owner string) *scope.ScopeNode {
	var parent *scope.ScopeNode
	if len(p.scopeStack) > 0 {
		parent = p.currentScope()
	}
	s := scope.New(kind, parent, owner)
	p.scopeStack = append(p.scopeStack, s)
	return s
}

func (p *Parser) popScope() {
	p.scopeStack = p.scopeStack[:len(p.scopeStack)-1]
}

// ---- entry point ----

// ParseModule parses the entire token stream into a Module AST, running the
// pre-scanner over the top-level body first so forward references resolve.
func (p *Parser) ParseModule(path string) *ast.Module {
	modScope := p.pushScope(scope.Global, "")
	prescan.Scan(p.toks, 0, modScope, p.knownTypes)

	mod := &ast.Module{Path: path, Scope: modScope}
	mod.Body = p.parseStatements()
	p.popScope()
	return mod
}

// parseStatements parses statements until a DEDENT or EOF ends the current
// block. It does not consume an INDENT: callers entering a nested body
// (parseBlock and friends) consume the INDENT first and the closing DEDENT
// afterwards.
func (p *Parser) parseStatements() []ast.Stmt {
	var stmts []ast.Stmt
	for !p.isAtEnd() && !p.check(token.DEDENT) {
		if p.match(token.NEWLINE) {
			continue
		}
		st := p.parseStatement()
		if st != nil {
			stmts = append(stmts, st)
		}
	}
	return stmts
}

// parseBlock parses `: NEWLINE INDENT stmts DEDENT`, pre-scanning the new
// scope's body first. scopeKind/owner describe the scope to push for the
// duration of the block; pass scope.Block with owner "" for plain control-
// flow bodies that don't introduce their own named scope.
func (p *Parser) parseBlock(scopeKind scope.Kind, owner string) []ast.Stmt {
	p.consume(token.COLON, "Expect ':' to open block.")
	p.consume(token.NEWLINE, "Expect newline after ':'.")
	p.consume(token.INDENT, "Expect indented block.")

	s := p.pushScope(scopeKind, owner)
	prescan.Scan(p.toks, p.pos, s, p.knownTypes)
	body := p.parseStatements()
	p.popScope()

	p.consume(token.DEDENT, "Expect dedent to close block.")
	return body
}
