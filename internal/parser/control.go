package parser

import (
	"ibci/internal/ast"
	"ibci/internal/prescan"
	"ibci/internal/scope"
	"ibci/internal/token"
)

func (p *Parser) parseParams() []ast.Param {
	p.consume(token.LPAREN, "Expect '(' after name.")
	var params []ast.Param
	if !p.check(token.RPAREN) {
		for {
			typeToks := p.parseTypeAnnotation()
			var name token.Token
			if p.check(token.IDENT) {
				name = p.consume(token.IDENT, "Expect parameter name.")
			} else {
				// A bare untyped parameter (the implicit method receiver,
				// `self`): parseTypeAnnotation already consumed its sole
				// token as if it were a type, since there is no look-ahead
				// distinguishing the two cases at that point.
				name = typeToks[len(typeToks)-1]
				typeToks = nil
			}
			param := ast.Param{Name: name.Lexeme, TypeTokens: typeToks}
			if p.match(token.ASSIGN) {
				param.DefaultValue = p.parseExpression(precLowest)
			}
			params = append(params, param)
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RPAREN, "Expect ')' after parameters.")
	return params
}

func (p *Parser) parseReturnAnnotation() []token.Token {
	if !p.match(token.ARROW) {
		return nil
	}
	return p.parseTypeAnnotation()
}

func (p *Parser) parseFunctionDef() ast.Stmt {
	start := p.peek().Pos
	p.advance() // func
	name := p.consume(token.IDENT, "Expect function name.")
	params := p.parseParams()
	retType := p.parseReturnAnnotation()

	fn := &ast.FunctionDef{Name: name.Lexeme, Params: params, ReturnType: retType}
	fn.Position = start

	fnScope := p.pushScope(scope.FunctionScope, name.Lexeme)
	for _, param := range params {
		fnScope.Define(param.Name, &scope.Symbol{Name: param.Name, Kind: scope.VariableSymbol, DeclaredTypeNode: param.TypeTokens})
	}
	p.consume(token.COLON, "Expect ':' to open function body.")
	p.consume(token.NEWLINE, "Expect newline after ':'.")
	p.consume(token.INDENT, "Expect indented function body.")
	prescan.Scan(p.toks, p.pos, fnScope, p.knownTypes)
	fn.Body = p.parseStatements()
	p.consume(token.DEDENT, "Expect dedent to close function body.")
	fn.Scope = fnScope
	p.popScope()
	return fn
}

func (p *Parser) parseClassDef() ast.Stmt {
	start := p.peek().Pos
	p.advance() // class
	name := p.consume(token.IDENT, "Expect class name.")
	cls := &ast.ClassDef{Name: name.Lexeme}
	cls.Position = start

	p.knownTypes.Add(name.Lexeme)
	classScope := p.pushScope(scope.ClassScope, name.Lexeme)
	p.consume(token.COLON, "Expect ':' to open class body.")
	p.consume(token.NEWLINE, "Expect newline after ':'.")
	p.consume(token.INDENT, "Expect indented class body.")

	for !p.check(token.DEDENT) && !p.isAtEnd() {
		if p.match(token.NEWLINE) {
			continue
		}
		if p.check(token.FUNC) {
			m := p.parseFunctionDef().(*ast.FunctionDef)
			cls.Methods = append(cls.Methods, m)
			continue
		}
		typeToks := p.parseTypeAnnotation()
		fname := p.consume(token.IDENT, "Expect field name.")
		var def ast.Expr
		if p.match(token.ASSIGN) {
			def = p.parseExpression(precLowest)
		}
		p.consumeStmtEnd()
		cls.Fields = append(cls.Fields, ast.ClassField{Name: fname.Lexeme, TypeTokens: typeToks, DefaultValue: def})
		classScope.Define(fname.Lexeme, &scope.Symbol{Name: fname.Lexeme, Kind: scope.VariableSymbol, DeclaredTypeNode: typeToks})
	}
	p.consume(token.DEDENT, "Expect dedent to close class body.")
	cls.Scope = classScope
	p.popScope()
	return cls
}

func (p *Parser) parseImport() ast.Stmt {
	start := p.peek().Pos
	if p.check(token.IMPORT) {
		p.advance()
		dotted := p.parseDottedName()
		alias := ""
		if p.match(token.AS) {
			alias = p.consume(token.IDENT, "Expect alias name.").Lexeme
		}
		p.consumeStmtEnd()
		n := &ast.Import{Dotted: dotted, Alias: alias}
		n.Position = start
		bound := alias
		if bound == "" && len(dotted) > 0 {
			bound = dotted[0]
		}
		p.declareLocal(bound, scope.ModuleSymbol)
		return n
	}

	p.advance() // from
	level := 0
	for p.check(token.DOT) {
		level++
		p.advance()
	}
	module := p.parseDottedName()
	p.consume(token.IMPORT, "Expect 'import' after module name.")

	n := &ast.ImportFrom{Level: level, Module: module}
	n.Position = start
	if p.match(token.STAR) {
		n.Star = true
		p.consumeStmtEnd()
		return n
	}
	for {
		name := p.consume(token.IDENT, "Expect imported name.")
		alias := ""
		if p.match(token.AS) {
			alias = p.consume(token.IDENT, "Expect alias name.").Lexeme
		}
		n.Names = append(n.Names, name.Lexeme)
		n.Aliases = append(n.Aliases, alias)
		bound := alias
		if bound == "" {
			bound = name.Lexeme
		}
		p.declareLocal(bound, scope.VariableSymbol)
		if !p.match(token.COMMA) {
			break
		}
	}
	p.consumeStmtEnd()
	return n
}

func (p *Parser) parseDottedName() []string {
	var parts []string
	parts = append(parts, p.consume(token.IDENT, "Expect module name.").Lexeme)
	for p.match(token.DOT) {
		parts = append(parts, p.consume(token.IDENT, "Expect module name component.").Lexeme)
	}
	return parts
}

func (p *Parser) parseIf() ast.Stmt {
	start := p.peek().Pos
	p.advance() // if
	test := p.parseExpression(precLowest)
	tagScene(test, ast.SceneBranch)
	body := p.parseBlock(scope.Block, "")

	n := &ast.If{Test: test, Body: body}
	n.Position = start

	if p.check(token.ELIF) {
		n.Orelse = []ast.Stmt{p.parseElif()}
		return n
	}
	if p.match(token.ELSE) {
		n.Orelse = p.parseBlock(scope.Block, "")
	}
	if p.match(token.LLM_EXCEPT) {
		n.Fallback = p.parseBlock(scope.Block, "")
	}
	return n
}

func (p *Parser) parseElif() ast.Stmt {
	start := p.peek().Pos
	p.advance() // elif
	test := p.parseExpression(precLowest)
	tagScene(test, ast.SceneBranch)
	body := p.parseBlock(scope.Block, "")

	n := &ast.If{Test: test, Body: body}
	n.Position = start
	if p.check(token.ELIF) {
		n.Orelse = []ast.Stmt{p.parseElif()}
	} else if p.match(token.ELSE) {
		n.Orelse = p.parseBlock(scope.Block, "")
	}
	if p.match(token.LLM_EXCEPT) {
		n.Fallback = p.parseBlock(scope.Block, "")
	}
	return n
}

func (p *Parser) parseWhile() ast.Stmt {
	start := p.peek().Pos
	p.advance() // while
	test := p.parseExpression(precLowest)
	tagScene(test, ast.SceneLoop)
	body := p.parseBlock(scope.Block, "")

	n := &ast.While{Test: test, Body: body}
	n.Position = start
	if p.match(token.LLM_EXCEPT) {
		n.Fallback = p.parseBlock(scope.Block, "")
	}
	return n
}

// parseFor covers both for-loop forms from §4.5. `for target in iter:` has
// Target non-nil; `for iter:` (without `in`) leaves Target nil.
func (p *Parser) parseFor() ast.Stmt {
	start := p.peek().Pos
	p.advance() // for

	first := p.parseExpression(precLowest)
	var target, iter ast.Expr
	if p.match(token.IN) {
		target = first
		iter = p.parseExpression(precLowest)
	} else {
		iter = first
	}
	tagScene(iter, ast.SceneLoop)

	scopeKind := scope.Block
	body := p.parseBlockWithTarget(scopeKind, target)

	n := &ast.For{Target: target, Iter: iter, Body: body}
	n.Position = start
	if p.match(token.LLM_EXCEPT) {
		n.Fallback = p.parseBlock(scope.Block, "")
	}
	return n
}

// parseBlockWithTarget is parseBlock plus registering the loop target as a
// local variable in the new block scope before the body's pre-scan runs.
func (p *Parser) parseBlockWithTarget(kind scope.Kind, target ast.Expr) []ast.Stmt {
	p.consume(token.COLON, "Expect ':' to open block.")
	p.consume(token.NEWLINE, "Expect newline after ':'.")
	p.consume(token.INDENT, "Expect indented block.")

	s := p.pushScope(kind, "")
	if name, ok := target.(*ast.Name); ok {
		s.Define(name.Ident, &scope.Symbol{Name: name.Ident, Kind: scope.VariableSymbol})
	}
	prescan.Scan(p.toks, p.pos, s, p.knownTypes)
	body := p.parseStatements()
	p.popScope()

	p.consume(token.DEDENT, "Expect dedent to close block.")
	return body
}

func (p *Parser) parseTry() ast.Stmt {
	start := p.peek().Pos
	p.advance() // try
	body := p.parseBlock(scope.Block, "")

	n := &ast.Try{Body: body}
	n.Position = start

	for p.match(token.EXCEPT) {
		var h ast.ExceptHandler
		if !p.check(token.AS) && !p.check(token.COLON) {
			h.Type = p.parseTypeAnnotation()
		}
		if p.match(token.AS) {
			h.As = p.consume(token.IDENT, "Expect bound name after 'as'.").Lexeme
		}
		h.Body = p.parseBlock(scope.Block, "")
		n.Handlers = append(n.Handlers, h)
	}
	if p.match(token.ELSE) {
		n.Orelse = p.parseBlock(scope.Block, "")
	}
	if p.match(token.FINALLY) {
		n.Finally = p.parseBlock(scope.Block, "")
	}
	return n
}

func (p *Parser) parseReturn() ast.Stmt {
	start := p.peek().Pos
	p.advance()
	n := &ast.Return{}
	n.Position = start
	if !p.check(token.NEWLINE) && !p.check(token.DEDENT) && !p.isAtEnd() {
		n.Value = p.parseExpression(precLowest)
	}
	p.consumeStmtEnd()
	return n
}

func (p *Parser) parseRaise() ast.Stmt {
	start := p.peek().Pos
	p.advance()
	n := &ast.Raise{}
	n.Position = start
	if !p.check(token.NEWLINE) && !p.isAtEnd() {
		n.Value = p.parseExpression(precLowest)
	}
	p.consumeStmtEnd()
	return n
}

// tagScene marks any BehaviorExpr nodes reachable from the top level of a
// test/iterator expression with the given scene, per §4.3's "control-flow
// scene tagging" rule. It does not descend into nested function bodies
// (there are none reachable from an expression), but does walk boolean/
// comparison/call argument trees so a behavior expression nested in
// `a and @~...~` is still tagged.
func tagScene(e ast.Expr, scene ast.Scene) {
	switch n := e.(type) {
	case *ast.BehaviorExpr:
		n.Scene = scene
	case *ast.BoolOp:
		for _, v := range n.Values {
			tagScene(v, scene)
		}
	case *ast.Compare:
		tagScene(n.Left, scene)
		for _, c := range n.Comparators {
			tagScene(c, scene)
		}
	case *ast.UnaryOp:
		tagScene(n.Operand, scene)
	}
}
