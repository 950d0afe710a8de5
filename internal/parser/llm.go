package parser

import (
	"ibci/internal/ast"
	"ibci/internal/scope"
	"ibci/internal/token"
)

// parseLLMFunctionDef parses an `llm name(params) -> Type:` header followed
// by a prompt body lexed in LLM_BLOCK mode (no INDENT/DEDENT tokens; the
// lexer emits LLM_SYS/LLM_USER section markers and RAW_TEXT/VAR_REF/
// PARAM_PLACEHOLDER/BEHAVIOR_MARKER tokens directly, up to LLM_END).
func (p *Parser) parseLLMFunctionDef() ast.Stmt {
	start := p.peek().Pos
	p.advance() // llm
	name := p.consume(token.IDENT, "Expect LLM function name.")
	params := p.parseParams()
	retType := p.parseReturnAnnotation()

	fn := &ast.LLMFunctionDef{Name: name.Lexeme, Params: params, ReturnType: retType}
	fn.Position = start

	fnScope := p.pushScope(scope.FunctionScope, name.Lexeme)
	for _, param := range params {
		fnScope.Define(param.Name, &scope.Symbol{Name: param.Name, Kind: scope.VariableSymbol, DeclaredTypeNode: param.TypeTokens})
	}

	p.consume(token.COLON, "Expect ':' to open LLM body.")
	p.consume(token.NEWLINE, "Expect newline after ':'.")

	for !p.check(token.LLM_END) && !p.isAtEnd() {
		switch p.peek().Kind {
		case token.LLM_SYS:
			p.advance()
			fn.SysPrompt = p.parsePromptSegments()
		case token.LLM_USER:
			p.advance()
			fn.UserPrompt = p.parsePromptSegments()
		default:
			// Stray token inside the LLM body before any section header;
			// skip it rather than looping forever.
			p.advance()
		}
	}
	p.consume(token.LLM_END, "Expect 'llmend' to close LLM function body.")
	p.consumeStmtEnd()

	fn.Scope = fnScope
	p.popScope()
	return fn
}

// parsePromptSegments consumes RAW_TEXT/VAR_REF/PARAM_PLACEHOLDER/
// BEHAVIOR_MARKER tokens until the next section header or LLM_END, building
// the interleaved text/expression segment list described in §4.1's prompt
// sub-language.
func (p *Parser) parsePromptSegments() []ast.PromptSegment {
	var segs []ast.PromptSegment
	for {
		switch p.peek().Kind {
		case token.RAW_TEXT:
			tk := p.advance()
			segs = append(segs, ast.PromptSegment{Text: tk.Lexeme})
		case token.VAR_REF:
			segs = append(segs, ast.PromptSegment{Expr: p.parseVarRefChain()})
		case token.PARAM_PLACEHOLDER:
			tk := p.advance()
			segs = append(segs, ast.PromptSegment{Expr: placeholderNameExpr(tk)})
		case token.BEHAVIOR_MARKER:
			segs = append(segs, ast.PromptSegment{Expr: p.parseBehaviorExpr()})
		default:
			return segs
		}
	}
}

// parseVarRefChain turns a VAR_REF token plus any immediately following
// `.attr`/`[expr]` suffix tokens into an Attribute/Subscript expression
// chain rooted at a Name.
func (p *Parser) parseVarRefChain() ast.Expr {
	tk := p.advance() // VAR_REF, lexeme "$name"
	name := &ast.Name{Ident: tk.Lexeme[1:]}
	name.Position = tk.Pos
	var expr ast.Expr = name
	for {
		switch p.peek().Kind {
		case token.DOT:
			p.advance()
			attrTok := p.consume(token.IDENT, "Expect attribute name after '.'.")
			n := &ast.Attribute{Receiver: expr, Attr: attrTok.Lexeme}
			n.Position = attrTok.Pos
			expr = n
		case token.LBRACKET:
			p.advance()
			idx := p.parseExpression(precLowest)
			p.consume(token.RBRACKET, "Expect ']' after index.")
			n := &ast.Subscript{Container: expr, Index: idx}
			n.Position = expr.Pos()
			expr = n
		default:
			return expr
		}
	}
}

func placeholderNameExpr(tk token.Token) ast.Expr {
	// A $__expr__ placeholder's inner text is a raw expression fragment
	// deferred to the interpreter's own lexer+parser pass over its lexeme at
	// call time; the parser records it as an opaque Name here so the AST
	// stays a single pass. PARAM_PLACEHOLDER lexemes look like "$__n__".
	n := &ast.Name{Ident: tk.Lexeme}
	n.Position = tk.Pos
	return n
}
