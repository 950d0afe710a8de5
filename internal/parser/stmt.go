package parser

import (
	"ibci/internal/ast"
	"ibci/internal/diag"
	"ibci/internal/scope"
	"ibci/internal/token"
)

// parseStatement recognizes the role of the statement at the cursor
// (mirroring the original SyntaxRecognizer.get_role dispatch) and parses it.
// A parse error is reported where it occurs and parsing continues from the
// current token; synchronize is not called, so no tokens are skipped to the
// next statement boundary.
func (p *Parser) parseStatement() ast.Stmt {
	switch p.peek().Kind {
	case token.INTENT:
		p.captureIntent()
		return nil
	case token.FUNC:
		return p.parseFunctionDef()
	case token.LLM_DEF:
		return p.parseLLMFunctionDef()
	case token.CLASS:
		return p.parseClassDef()
	case token.IMPORT, token.FROM:
		return p.parseImport()
	case token.IF:
		return p.parseIf()
	case token.WHILE:
		return p.parseWhile()
	case token.FOR:
		return p.parseFor()
	case token.TRY:
		return p.parseTry()
	case token.RETURN:
		return p.parseReturn()
	case token.RAISE:
		return p.parseRaise()
	case token.PASS:
		p.advance()
		n := &ast.Pass{}
		p.consumeStmtEnd()
		return n
	case token.BREAK:
		p.advance()
		n := &ast.Break{}
		p.consumeStmtEnd()
		return n
	case token.CONTINUE:
		p.advance()
		n := &ast.Continue{}
		p.consumeStmtEnd()
		return n
	case token.RETRY:
		p.advance()
		n := &ast.Retry{}
		p.consumeStmtEnd()
		return n
	case token.VAR:
		return p.parseVarDecl()
	case token.IDENT:
		if p.isDeclarationLookahead() {
			return p.parseTypedDecl()
		}
		return p.parseExprStatement()
	default:
		return p.parseExprStatement()
	}
}

func (p *Parser) consumeStmtEnd() {
	if p.check(token.NEWLINE) {
		p.advance()
	}
}

// captureIntent records a pending `@ <text>` annotation per §4.3: only one
// may be pending at a time.
func (p *Parser) captureIntent() {
	tk := p.advance()
	if p.hasPendingIntent {
		p.errorf(tk, "a second intent annotation was given before the first was consumed")
	}
	p.pendingIntent = tk.Lexeme
	p.hasPendingIntent = true
	p.consumeStmtEnd()
}

// takePendingIntent returns and clears the pending intent, or "" if none.
func (p *Parser) takePendingIntent() string {
	if !p.hasPendingIntent {
		return ""
	}
	p.hasPendingIntent = false
	intent := p.pendingIntent
	p.pendingIntent = ""
	return intent
}

// isDeclarationLookahead implements the recognizer's `_is_declaration_lookahead`:
// a known type name followed by an identifier is a declaration, as is a
// known type name followed by `[...]` whose closing bracket is followed by
// an identifier. An unrecognized identifier is treated the same way as a
// heuristic fallback (`ID ID` is almost always a declaration).
func (p *Parser) isDeclarationLookahead() bool {
	next := p.peekAt(1)
	if next.Kind == token.IDENT {
		return true
	}
	if next.Kind == token.LBRACKET {
		return p.checkGenericLookahead(1)
	}
	return false
}

func (p *Parser) checkGenericLookahead(offset int) bool {
	depth := 0
	cur := offset
	for i := 0; i < maxLookaheadDepth; i++ {
		tk := p.peekAt(cur)
		if tk.Kind == token.EOF || tk.Kind == token.NEWLINE {
			return false
		}
		if tk.Kind == token.LBRACKET {
			depth++
		} else if tk.Kind == token.RBRACKET {
			depth--
			if depth == 0 {
				return p.peekAt(cur + 1).Kind == token.IDENT
			}
		}
		cur++
	}
	return false
}

// parseTypeAnnotation consumes a type-annotation token run: a base
// identifier optionally followed by `[T]` or `[K,V]` generic arguments.
func (p *Parser) parseTypeAnnotation() []token.Token {
	var toks []token.Token
	toks = append(toks, p.advance())
	if p.check(token.LBRACKET) {
		toks = append(toks, p.advance())
		for !p.check(token.RBRACKET) && !p.isAtEnd() {
			toks = append(toks, p.advance())
		}
		if p.check(token.RBRACKET) {
			toks = append(toks, p.advance())
		}
	}
	return toks
}

func (p *Parser) parseVarDecl() ast.Stmt {
	start := p.peek().Pos
	p.advance() // `var`
	name := p.consume(token.IDENT, "Expect variable name.")
	p.consume(token.ASSIGN, "Expect '=' in var declaration (type is inferred).")
	value := p.parseExpression(precLowest)
	p.attachPendingIntentToAssign(value)
	p.consumeStmtEnd()
	target := &ast.Name{Ident: name.Lexeme}
	target.Position = name.Pos
	n := &ast.Assign{Target: target, TypeTokens: []token.Token{{Kind: token.VAR, Lexeme: "var"}}, Value: value}
	n.Position = start
	p.declareLocal(name.Lexeme, scope.VariableSymbol)
	return n
}

func (p *Parser) parseTypedDecl() ast.Stmt {
	start := p.peek().Pos
	typeToks := p.parseTypeAnnotation()
	name := p.consume(token.IDENT, "Expect variable name.")
	var value ast.Expr
	if p.match(token.ASSIGN) {
		value = p.parseExpression(precLowest)
		p.attachPendingIntentToAssign(value)
	}
	p.consumeStmtEnd()
	target := &ast.Name{Ident: name.Lexeme}
	target.Position = name.Pos
	n := &ast.Assign{Target: target, TypeTokens: typeToks, Value: value}
	n.Position = start
	p.declareLocal(name.Lexeme, scope.VariableSymbol)
	return n
}

func (p *Parser) declareLocal(name string, kind scope.SymbolKind) {
	if _, exists := p.currentScope().LookupLocal(name); !exists {
		p.currentScope().Define(name, &scope.Symbol{Name: name, Kind: kind})
	}
}

func (p *Parser) parseExprStatement() ast.Stmt {
	start := p.peek().Pos
	expr := p.parseExpression(precLowest)

	if p.match(token.ASSIGN) {
		value := p.parseExpression(precLowest)
		p.attachPendingIntentToAssign(value)
		p.consumeStmtEnd()
		n := &ast.Assign{Target: expr, Value: value}
		n.Position = start
		return n
	}
	if augOp, ok := p.matchAugAssign(); ok {
		value := p.parseExpression(precLowest)
		p.consumeStmtEnd()
		n := &ast.AugAssign{Target: expr, Op: augOp, Value: value}
		n.Position = start
		return n
	}

	p.attachPendingIntent(expr)
	p.consumeStmtEnd()
	n := &ast.ExprStmt{X: expr}
	n.Position = start
	return n
}

func (p *Parser) matchAugAssign() (ast.AugAssignOp, bool) {
	switch p.peek().Kind {
	case token.PLUS_ASSIGN:
		p.advance()
		return ast.AugAdd, true
	case token.MINUS_ASSIGN:
		p.advance()
		return ast.AugSub, true
	case token.STAR_ASSIGN:
		p.advance()
		return ast.AugMul, true
	case token.SLASH_ASSIGN:
		p.advance()
		return ast.AugDiv, true
	case token.PERCENT_ASSIGN:
		p.advance()
		return ast.AugMod, true
	}
	return 0, false
}

// attachPendingIntent implements §4.3's intent-attachment rule for
// expression statements: a BehaviorExpr or intent-less Call receives it,
// otherwise it is discarded with a warning.
func (p *Parser) attachPendingIntent(expr ast.Expr) {
	if !p.hasPendingIntent {
		return
	}
	intent := p.takePendingIntent()
	switch e := expr.(type) {
	case *ast.BehaviorExpr:
		e.Intent = intent
	case *ast.Call:
		if e.Intent == "" {
			e.Intent = intent
		}
	default:
		pos := expr.Pos()
		p.issues.Report(diag.Warning, diag.ParWarn, "intent annotation attached to a statement that cannot carry one, discarding",
			diag.Location{Line: pos.Line, Column: pos.Column}, "")
	}
}

// attachPendingIntentToAssign mirrors attachPendingIntent for the RHS of an
// assignment whose value is a BehaviorExpr.
func (p *Parser) attachPendingIntentToAssign(value ast.Expr) {
	if !p.hasPendingIntent {
		return
	}
	if be, ok := value.(*ast.BehaviorExpr); ok {
		be.Intent = p.takePendingIntent()
		return
	}
	p.attachPendingIntent(value)
}
