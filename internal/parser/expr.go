package parser

import (
	"strconv"
	"strings"

	"ibci/internal/ast"
	"ibci/internal/token"
)

type prefixFn func(p *Parser) ast.Expr
type infixFn func(p *Parser, left ast.Expr) ast.Expr

type infixRule struct {
	fn   infixFn
	prec precedence
}

var prefixRules map[token.Kind]prefixFn
var infixRules map[token.Kind]infixRule

func init() {
	prefixRules = map[token.Kind]prefixFn{
		token.NUMBER:          parseNumber,
		token.STRING:          parseString,
		token.BOOL:            parseBool,
		token.NONE:            parseNone,
		token.IDENT:           parseName,
		token.SELF:            parseSelf,
		token.CALLABLE:        parseName,
		token.LPAREN:          parseGrouping,
		token.LBRACKET:        parseListDisplay,
		token.LBRACE:          parseDictDisplay,
		token.MINUS:           parseUnary,
		token.NOT:             parseUnary,
		token.BIT_NOT:         parseUnary,
		token.BEHAVIOR_MARKER: parseBehaviorExprPrefix,
	}

	infixRules = map[token.Kind]infixRule{
		token.PLUS:     {parseBinary, precTerm},
		token.MINUS:    {parseBinary, precTerm},
		token.STAR:     {parseBinary, precFactor},
		token.SLASH:    {parseBinary, precFactor},
		token.PERCENT:  {parseBinary, precFactor},
		token.BIT_AND:  {parseBinary, precBitAnd},
		token.BIT_OR:   {parseBinary, precBitOr},
		token.BIT_XOR:  {parseBinary, precBitXor},
		token.LSHIFT:   {parseBinary, precShift},
		token.RSHIFT:   {parseBinary, precShift},
		token.EQ:       {parseCompare, precEquality},
		token.NE:       {parseCompare, precEquality},
		token.GT:       {parseCompare, precEquality},
		token.LT:       {parseCompare, precEquality},
		token.GE:       {parseCompare, precEquality},
		token.LE:       {parseCompare, precEquality},
		token.IS:       {parseCompare, precEquality},
		token.AND:      {parseAnd, precAnd},
		token.OR:       {parseOr, precOr},
		token.DOT:      {parseDot, precCall},
		token.LBRACKET: {parseSubscript, precCall},
		token.LPAREN:   {parseCall, precCall},
	}
}

// parseExpression is the Pratt entry point: parse a prefix expression, then
// keep folding in infix operators whose precedence is at least prec.
func (p *Parser) parseExpression(prec precedence) ast.Expr {
	tk := p.peek()
	prefix, ok := prefixRules[tk.Kind]
	if !ok {
		p.errorf(tk, "unexpected token %q in expression", tk.Lexeme)
		p.advance()
		bad := &ast.Constant{Kind: ast.ConstNone}
		bad.Position = tk.Pos
		return bad
	}
	left := prefix(p)

	for {
		next := p.peek()
		rule, ok := infixRules[next.Kind]
		if !ok || prec > rule.prec {
			break
		}
		left = rule.fn(p, left)
	}
	return left
}

// ---- prefix handlers ----

func parseNumber(p *Parser) ast.Expr {
	tk := p.advance()
	c := &ast.Constant{}
	c.Position = tk.Pos
	lex := tk.Lexeme

	switch {
	case strings.HasPrefix(lex, "0x") || strings.HasPrefix(lex, "0X"):
		v, err := strconv.ParseInt(lex[2:], 16, 64)
		if err != nil {
			p.errorf(tk, "invalid hex literal %q", lex)
		}
		c.Kind, c.Int = ast.ConstInt, v
	case strings.HasPrefix(lex, "0b") || strings.HasPrefix(lex, "0B"):
		v, err := strconv.ParseInt(lex[2:], 2, 64)
		if err != nil {
			p.errorf(tk, "invalid binary literal %q", lex)
		}
		c.Kind, c.Int = ast.ConstInt, v
	case strings.ContainsAny(lex, ".eE"):
		v, err := strconv.ParseFloat(lex, 64)
		if err != nil {
			p.errorf(tk, "invalid float literal %q", lex)
		}
		c.Kind, c.Flt = ast.ConstFloat, v
	default:
		v, err := strconv.ParseInt(lex, 10, 64)
		if err != nil {
			p.errorf(tk, "invalid integer literal %q", lex)
		}
		c.Kind, c.Int = ast.ConstInt, v
	}
	return c
}

func parseString(p *Parser) ast.Expr {
	tk := p.advance()
	c := &ast.Constant{Kind: ast.ConstString, Str: tk.Lexeme}
	c.Position = tk.Pos
	return c
}

func parseBool(p *Parser) ast.Expr {
	tk := p.advance()
	c := &ast.Constant{Kind: ast.ConstBool, Bool: tk.Lexeme == "true"}
	c.Position = tk.Pos
	return c
}

func parseNone(p *Parser) ast.Expr {
	tk := p.advance()
	c := &ast.Constant{Kind: ast.ConstNone}
	c.Position = tk.Pos
	return c
}

func parseName(p *Parser) ast.Expr {
	tk := p.advance()
	n := &ast.Name{Ident: tk.Lexeme}
	n.Position = tk.Pos
	return n
}

func parseSelf(p *Parser) ast.Expr {
	tk := p.advance()
	n := &ast.Name{Ident: "self"}
	n.Position = tk.Pos
	return n
}

func parseGrouping(p *Parser) ast.Expr {
	p.advance() // (
	inner := p.parseExpression(precLowest)
	p.consume(token.RPAREN, "Expect ')' after expression.")
	return inner
}

func parseListDisplay(p *Parser) ast.Expr {
	start := p.peek().Pos
	p.advance() // [
	n := &ast.ListExpr{}
	n.Position = start
	for !p.check(token.RBRACKET) && !p.isAtEnd() {
		n.Elts = append(n.Elts, p.parseExpression(precLowest))
		if !p.match(token.COMMA) {
			break
		}
	}
	p.consume(token.RBRACKET, "Expect ']' after list elements.")
	return n
}

func parseDictDisplay(p *Parser) ast.Expr {
	start := p.peek().Pos
	p.advance() // {
	n := &ast.DictExpr{}
	n.Position = start
	for !p.check(token.RBRACE) && !p.isAtEnd() {
		key := p.parseExpression(precLowest)
		p.consume(token.COLON, "Expect ':' between dict key and value.")
		value := p.parseExpression(precLowest)
		n.Entries = append(n.Entries, ast.DictEntry{Key: key, Value: value})
		if !p.match(token.COMMA) {
			break
		}
	}
	p.consume(token.RBRACE, "Expect '}' after dict entries.")
	return n
}

func parseUnary(p *Parser) ast.Expr {
	opTok := p.advance()
	var op ast.UnaryOpKind
	switch opTok.Kind {
	case token.MINUS:
		op = ast.UnaryNeg
	case token.NOT:
		op = ast.UnaryNot
	case token.BIT_NOT:
		op = ast.UnaryBitNot
	}
	operand := p.parseExpression(precUnary)
	n := &ast.UnaryOp{Op: op, Operand: operand}
	n.Position = opTok.Pos
	return n
}

func parseBehaviorExprPrefix(p *Parser) ast.Expr {
	return p.parseBehaviorExpr()
}

// parseBehaviorExpr parses `@tag~ text $ref ... ~`, consuming from the
// already-peeked BEHAVIOR_MARKER through the closing BEHAVIOR_END.
func (p *Parser) parseBehaviorExpr() ast.Expr {
	tk := p.advance() // BEHAVIOR_MARKER: "@~" or "@tag~"
	tag := strings.TrimSuffix(strings.TrimPrefix(tk.Lexeme, "@"), "~")

	var segs []ast.PromptSegment
loop:
	for {
		switch p.peek().Kind {
		case token.RAW_TEXT:
			t := p.advance()
			segs = append(segs, ast.PromptSegment{Text: t.Lexeme})
		case token.VAR_REF:
			segs = append(segs, ast.PromptSegment{Expr: p.parseVarRefChain()})
		default:
			break loop
		}
	}
	p.consume(token.BEHAVIOR_END, "Expect closing '~' for behavior expression.")
	n := &ast.BehaviorExpr{Tag: tag, Segments: segs}
	n.Position = tk.Pos
	return n
}

// ---- infix handlers ----

func parseBinary(p *Parser, left ast.Expr) ast.Expr {
	opTok := p.advance()
	rule := infixRules[opTok.Kind]
	right := p.parseExpression(rule.prec + 1)

	var op ast.BinOpKind
	switch opTok.Kind {
	case token.PLUS:
		op = ast.OpAdd
	case token.MINUS:
		op = ast.OpSub
	case token.STAR:
		op = ast.OpMul
	case token.SLASH:
		op = ast.OpDiv
	case token.PERCENT:
		op = ast.OpMod
	case token.BIT_AND:
		op = ast.OpBitAnd
	case token.BIT_OR:
		op = ast.OpBitOr
	case token.BIT_XOR:
		op = ast.OpBitXor
	case token.LSHIFT:
		op = ast.OpLShift
	case token.RSHIFT:
		op = ast.OpRShift
	}
	n := &ast.BinOp{Op: op, Left: left, Right: right}
	n.Position = opTok.Pos
	return n
}

// parseCompare folds consecutive comparisons into a single chained Compare
// node, so `a < b <= c` parses as one node rather than nested binary ops.
func parseCompare(p *Parser, left ast.Expr) ast.Expr {
	opTok := p.advance()
	var op ast.CompareOpKind
	switch opTok.Kind {
	case token.EQ, token.IS:
		op = ast.CmpEq
	case token.NE:
		op = ast.CmpNe
	case token.LT:
		op = ast.CmpLt
	case token.LE:
		op = ast.CmpLe
	case token.GT:
		op = ast.CmpGt
	case token.GE:
		op = ast.CmpGe
	}
	right := p.parseExpression(precEquality + 1)

	if cmp, ok := left.(*ast.Compare); ok {
		cmp.Ops = append(cmp.Ops, op)
		cmp.Comparators = append(cmp.Comparators, right)
		return cmp
	}
	n := &ast.Compare{Left: left, Ops: []ast.CompareOpKind{op}, Comparators: []ast.Expr{right}}
	n.Position = left.Pos()
	return n
}

func parseAnd(p *Parser, left ast.Expr) ast.Expr {
	p.advance() // and
	right := p.parseExpression(precAnd + 1)
	if bo, ok := left.(*ast.BoolOp); ok && bo.Op == ast.BoolAnd {
		bo.Values = append(bo.Values, right)
		return bo
	}
	n := &ast.BoolOp{Op: ast.BoolAnd, Values: []ast.Expr{left, right}}
	n.Position = left.Pos()
	return n
}

func parseOr(p *Parser, left ast.Expr) ast.Expr {
	p.advance() // or
	right := p.parseExpression(precOr + 1)
	if bo, ok := left.(*ast.BoolOp); ok && bo.Op == ast.BoolOr {
		bo.Values = append(bo.Values, right)
		return bo
	}
	n := &ast.BoolOp{Op: ast.BoolOr, Values: []ast.Expr{left, right}}
	n.Position = left.Pos()
	return n
}

func parseDot(p *Parser, left ast.Expr) ast.Expr {
	p.advance() // .
	attr := p.consume(token.IDENT, "Expect attribute name after '.'.")
	n := &ast.Attribute{Receiver: left, Attr: attr.Lexeme}
	n.Position = attr.Pos
	return n
}

func parseSubscript(p *Parser, left ast.Expr) ast.Expr {
	lb := p.advance() // [
	index := p.parseExpression(precLowest)
	p.consume(token.RBRACKET, "Expect ']' after subscript index.")
	n := &ast.Subscript{Container: left, Index: index}
	n.Position = lb.Pos
	return n
}

// castTargets names the built-in scalar types that can appear as an explicit
// cast call (`int(x)`, `float(x)`, `str(x)`, `bool(x)`).
var castTargets = map[string]bool{"int": true, "float": true, "str": true, "bool": true}

func parseCall(p *Parser, left ast.Expr) ast.Expr {
	lp := p.advance() // (
	var args []ast.Expr
	for !p.check(token.RPAREN) && !p.isAtEnd() {
		args = append(args, p.parseExpression(precLowest))
		if !p.match(token.COMMA) {
			break
		}
	}
	p.consume(token.RPAREN, "Expect ')' after call arguments.")

	if name, ok := left.(*ast.Name); ok && castTargets[name.Ident] && len(args) == 1 {
		n := &ast.CastExpr{TargetType: name.Ident, Arg: args[0]}
		n.Position = lp.Pos
		return n
	}
	n := &ast.Call{Callee: left, Args: args}
	n.Position = lp.Pos
	return n
}
