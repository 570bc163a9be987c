package jsparse

import (
	"strconv"

	"github.com/tinyjsvm/ast"
)

// expression parses a (possibly comma-separated) expression. A bare comma
// sequence is modeled as a SEQ node, the same node used for block
// statements: both are "run these in order, the last one is what matters"
// (a block's last statement being its completion value is a property of
// the interpreter, not of this AST).
func (p *parser) expression() (ast.Tag, error) {
	start := p.t.Len()
	tag, err := p.assignExpr()
	if err != nil {
		return 0, err
	}
	if !p.isPunct(",") {
		return tag, nil
	}
	payloadOff := p.w.InsertNode(start, ast.SEQ)
	for p.isPunct(",") {
		p.advance()
		if _, err := p.assignExpr(); err != nil {
			return 0, err
		}
	}
	p.w.SetSkip(payloadOff, ast.END)
	return ast.SEQ, nil
}

var assignOps = map[string]ast.Tag{
	"=":    ast.ASSIGN,
	"+=":   ast.PLUS_ASSIGN,
	"-=":   ast.MINUS_ASSIGN,
	"*=":   ast.MUL_ASSIGN,
	"/=":   ast.DIV_ASSIGN,
	"%=":   ast.REM_ASSIGN,
	"&=":   ast.AND_ASSIGN,
	"|=":   ast.OR_ASSIGN,
	"^=":   ast.XOR_ASSIGN,
	"<<=":  ast.LSHIFT_ASSIGN,
	">>=":  ast.RSHIFT_ASSIGN,
	">>>=": ast.URSHIFT_ASSIGN,
}

// assignExpr parses a right-associative assignment expression. The left
// side (already on the buffer's tail when an assignment operator is
// found) is wrapped in the operator's node via InsertNode, then the right
// side is parsed and appended as the second child.
func (p *parser) assignExpr() (ast.Tag, error) {
	start := p.t.Len()
	tag, err := p.conditional()
	if err != nil {
		return 0, err
	}
	if p.cur().kind != tokPunct {
		return tag, nil
	}
	opTag, ok := assignOps[p.cur().text]
	if !ok {
		return tag, nil
	}
	p.advance()
	p.w.InsertNode(start, opTag)
	if _, err := p.assignExpr(); err != nil {
		return 0, err
	}
	return opTag, nil
}

// conditional parses the ternary `a ? b : c`, wrapping the already-parsed
// condition as COND's first fixed child.
func (p *parser) conditional() (ast.Tag, error) {
	start := p.t.Len()
	tag, err := p.binary(0)
	if err != nil {
		return 0, err
	}
	if !p.isPunct("?") {
		return tag, nil
	}
	p.advance()
	p.w.InsertNode(start, ast.COND)
	if _, err := p.assignExpr(); err != nil {
		return 0, err
	}
	if err := p.expectPunct(":"); err != nil {
		return 0, err
	}
	if _, err := p.assignExpr(); err != nil {
		return 0, err
	}
	return ast.COND, nil
}

// binaryOp describes one operator recognized at a given binary precedence
// level: the token it matches (kind distinguishes "in"/"instanceof"
// keywords from punctuators) and the Tag it produces.
type binaryOp struct {
	kind tokenKind
	text string
	tag  ast.Tag
}

// binaryLevels lists operator precedence levels from loosest to tightest
// binding, mirroring the catalog's operator grouping.
var binaryLevels = [][]binaryOp{
	{{tokPunct, "||", ast.LOG_OR}},
	{{tokPunct, "&&", ast.LOG_AND}},
	{{tokPunct, "|", ast.OR}},
	{{tokPunct, "^", ast.XOR}},
	{{tokPunct, "&", ast.AND}},
	{
		{tokPunct, "==", ast.EQ},
		{tokPunct, "===", ast.EQ_EQ},
		{tokPunct, "!=", ast.NE},
		{tokPunct, "!==", ast.NE_NE},
	},
	{
		{tokPunct, "<", ast.LT},
		{tokPunct, ">", ast.GT},
		{tokPunct, "<=", ast.LE},
		{tokPunct, ">=", ast.GE},
		{tokKeyword, "in", ast.IN},
		{tokKeyword, "instanceof", ast.INSTANCEOF},
	},
	{
		{tokPunct, "<<", ast.LSHIFT},
		{tokPunct, ">>", ast.RSHIFT},
		{tokPunct, ">>>", ast.URSHIFT},
	},
	{
		{tokPunct, "+", ast.ADD},
		{tokPunct, "-", ast.SUB},
	},
	{
		{tokPunct, "*", ast.MUL},
		{tokPunct, "/", ast.DIV},
		{tokPunct, "%", ast.REM},
	},
}

// binary parses a left-associative binary expression at the given
// precedence level (an index into binaryLevels), recursing into tighter
// levels for its operands. Each repetition wraps the whole
// previously-built left subtree via InsertNode at its original start
// offset, producing correct left-associative nesting.
func (p *parser) binary(level int) (ast.Tag, error) {
	if level >= len(binaryLevels) {
		return p.unary()
	}
	start := p.t.Len()
	tag, err := p.binary(level + 1)
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.matchOp(binaryLevels[level])
		if !ok {
			return tag, nil
		}
		p.advance()
		p.w.InsertNode(start, op.tag)
		if _, err := p.binary(level + 1); err != nil {
			return 0, err
		}
		tag = op.tag
	}
}

func (p *parser) matchOp(ops []binaryOp) (binaryOp, bool) {
	for _, op := range ops {
		if op.tag == ast.IN && p.noIn {
			continue
		}
		if p.is(op.kind, op.text) {
			return op, true
		}
	}
	return binaryOp{}, false
}

var unaryPrefix = map[string]ast.Tag{
	"!": ast.LOGICAL_NOT,
	"~": ast.NOT,
	"+": ast.POS,
	"-": ast.NEG,
}

var unaryKeywordPrefix = map[string]ast.Tag{
	"typeof": ast.TYPEOF,
	"delete": ast.DELETE,
	"void":   ast.VOID,
}

// unary parses prefix operators. Unlike binary/postfix operators these
// need no InsertNode: the operator token precedes its operand in the
// source exactly as the tag must precede its child in the buffer.
func (p *parser) unary() (ast.Tag, error) {
	if p.cur().kind == tokPunct {
		if tag, ok := unaryPrefix[p.cur().text]; ok {
			p.advance()
			p.w.AddNode(tag)
			if _, err := p.unary(); err != nil {
				return 0, err
			}
			return tag, nil
		}
		if p.isPunct("++") || p.isPunct("--") {
			op := p.advance().text
			tag := ast.PREINC
			if op == "--" {
				tag = ast.PREDEC
			}
			p.w.AddNode(tag)
			if _, err := p.unary(); err != nil {
				return 0, err
			}
			return tag, nil
		}
	}
	if p.cur().kind == tokKeyword {
		if tag, ok := unaryKeywordPrefix[p.cur().text]; ok {
			p.advance()
			p.w.AddNode(tag)
			if _, err := p.unary(); err != nil {
				return 0, err
			}
			return tag, nil
		}
	}
	return p.postfix()
}

// postfix parses a call/member/new chain followed by an optional trailing
// ++ or --, which (like all operators applied to an already-written
// operand) requires InsertNode to splice itself in ahead of that operand.
func (p *parser) postfix() (ast.Tag, error) {
	start := p.t.Len()
	tag, err := p.callMemberChain()
	if err != nil {
		return 0, err
	}
	if p.isPunct("++") {
		p.advance()
		p.w.InsertNode(start, ast.POSTINC)
		return ast.POSTINC, nil
	}
	if p.isPunct("--") {
		p.advance()
		p.w.InsertNode(start, ast.POSTDEC)
		return ast.POSTDEC, nil
	}
	return tag, nil
}

// callMemberChain parses a primary expression followed by any number of
// `.prop`, `[expr]` and `(args)` suffixes, plus `new` expressions, each
// wrapping what came before via InsertNode at the chain's start offset.
func (p *parser) callMemberChain() (ast.Tag, error) {
	if p.isKeyword("new") {
		return p.newExpr()
	}

	start := p.t.Len()
	tag, err := p.primary()
	if err != nil {
		return 0, err
	}
	return p.callMemberTail(start, tag)
}

func (p *parser) callMemberTail(start int, tag ast.Tag) (ast.Tag, error) {
	for {
		switch {
		case p.isPunct("."):
			p.advance()
			name := p.advance().text
			p.w.InsertInlinedNode(start, ast.MEMBER, name)
			tag = ast.MEMBER

		case p.isPunct("["):
			p.advance()
			p.w.InsertNode(start, ast.INDEX)
			if _, err := p.expression(); err != nil {
				return 0, err
			}
			if err := p.expectPunct("]"); err != nil {
				return 0, err
			}
			tag = ast.INDEX

		case p.isPunct("("):
			payloadOff := p.w.InsertNode(start, ast.CALL)
			if err := p.parseArgs(payloadOff); err != nil {
				return 0, err
			}
			tag = ast.CALL

		default:
			return tag, nil
		}
	}
}

// newExpr parses `new Callee(args)`, where Callee is itself a (non-call)
// member chain: `new a.b.c(x)` is NEW wrapping a MEMBER chain, with `(x)`
// consumed by the NEW node's own argument sequence rather than becoming a
// nested CALL.
func (p *parser) newExpr() (ast.Tag, error) {
	p.advance() // 'new'
	if p.isKeyword("new") {
		if _, err := p.newExpr(); err != nil {
			return 0, err
		}
	}
	start := p.t.Len()
	if _, err := p.primary(); err != nil {
		return 0, err
	}
	for p.isPunct(".") || p.isPunct("[") {
		if p.isPunct(".") {
			p.advance()
			name := p.advance().text
			p.w.InsertInlinedNode(start, ast.MEMBER, name)
		} else {
			p.advance()
			p.w.InsertNode(start, ast.INDEX)
			if _, err := p.expression(); err != nil {
				return 0, err
			}
			if err := p.expectPunct("]"); err != nil {
				return 0, err
			}
		}
	}

	payloadOff := p.w.InsertNode(start, ast.NEW)
	if p.isPunct("(") {
		if err := p.parseArgs(payloadOff); err != nil {
			return 0, err
		}
	} else {
		p.w.SetSkip(payloadOff, ast.END)
	}
	return p.callMemberTail(start, ast.NEW)
}

func (p *parser) parseArgs(payloadOff int) error {
	if err := p.expectPunct("("); err != nil {
		return err
	}
	for !p.isPunct(")") {
		if _, err := p.assignExpr(); err != nil {
			return err
		}
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return err
	}
	p.w.SetSkip(payloadOff, ast.END)
	return nil
}

func (p *parser) primary() (ast.Tag, error) {
	t := p.cur()
	switch {
	case t.kind == tokNum:
		p.advance()
		p.w.AddInlinedNode(ast.NUM, t.text)
		return ast.NUM, nil

	case t.kind == tokString:
		p.advance()
		p.w.AddInlinedNode(ast.STRING, t.text)
		return ast.STRING, nil

	case t.kind == tokRegex:
		p.advance()
		p.w.AddInlinedNode(ast.REGEX, t.text)
		return ast.REGEX, nil

	case t.kind == tokIdent:
		p.advance()
		p.w.AddInlinedNode(ast.IDENT, t.text)
		return ast.IDENT, nil

	case p.isKeyword("this"):
		p.advance()
		p.w.AddNode(ast.THIS)
		return ast.THIS, nil
	case p.isKeyword("true"):
		p.advance()
		p.w.AddNode(ast.TRUE)
		return ast.TRUE, nil
	case p.isKeyword("false"):
		p.advance()
		p.w.AddNode(ast.FALSE)
		return ast.FALSE, nil
	case p.isKeyword("null"):
		p.advance()
		p.w.AddNode(ast.NULL)
		return ast.NULL, nil
	case p.isKeyword("undefined"):
		p.advance()
		p.w.AddNode(ast.UNDEF)
		return ast.UNDEF, nil
	case p.isKeyword("function"):
		return ast.FUNC, p.funcLiteral(false)

	case p.isPunct("("):
		p.advance()
		noIn := p.noIn
		p.noIn = false
		tag, err := p.expression()
		p.noIn = noIn
		if err != nil {
			return 0, err
		}
		if err := p.expectPunct(")"); err != nil {
			return 0, err
		}
		return tag, nil

	case p.isPunct("["):
		return p.arrayLiteral()

	case p.isPunct("{"):
		return p.objectLiteral()
	}

	return 0, &ParseError{Pos: t.pos, Msg: "unexpected token " + strconv.Quote(t.text)}
}

func (p *parser) arrayLiteral() (ast.Tag, error) {
	p.advance() // '['
	payloadOff := p.w.AddNode(ast.ARRAY)
	for !p.isPunct("]") {
		if _, err := p.assignExpr(); err != nil {
			return 0, err
		}
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct("]"); err != nil {
		return 0, err
	}
	p.w.SetSkip(payloadOff, ast.END)
	return ast.ARRAY, nil
}

// objectLiteral parses `{ prop: value, get p(){...}, set p(v){...} }`.
// Each entry is a PROP node (ordinary), or a GETTER/SETTER node wrapping a
// FUNC whose name child is the property name, matching the catalog rows
// for accessor properties.
func (p *parser) objectLiteral() (ast.Tag, error) {
	p.advance() // '{'
	payloadOff := p.w.AddNode(ast.OBJECT)
	for !p.isPunct("}") {
		if p.isIdentLike("get") && p.peekIsPropName() {
			p.advance()
			name := p.propName()
			p.w.AddNode(ast.GETTER)
			if err := p.accessorBody(name); err != nil {
				return 0, err
			}
		} else if p.isIdentLike("set") && p.peekIsPropName() {
			p.advance()
			name := p.propName()
			p.w.AddNode(ast.SETTER)
			if err := p.accessorBody(name); err != nil {
				return 0, err
			}
		} else {
			name := p.propName()
			if err := p.expectPunct(":"); err != nil {
				return 0, err
			}
			p.w.AddInlinedNode(ast.PROP, name)
			if _, err := p.assignExpr(); err != nil {
				return 0, err
			}
		}
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct("}"); err != nil {
		return 0, err
	}
	p.w.SetSkip(payloadOff, ast.END)
	return ast.OBJECT, nil
}

func (p *parser) isIdentLike(s string) bool {
	return p.cur().kind == tokIdent && p.cur().text == s
}

// peekIsPropName reports whether the token after the current one can
// begin a property name, distinguishing `get` used as an accessor
// keyword from `get` used as an ordinary property name.
func (p *parser) peekIsPropName() bool {
	if p.pos+1 >= len(p.toks) {
		return false
	}
	n := p.toks[p.pos+1]
	return n.kind == tokIdent || n.kind == tokString || n.kind == tokNum
}

func (p *parser) propName() string {
	return p.advance().text
}

// accessorBody parses a getter/setter's "(params){body}" as a FUNC carrying
// the accessed property's name, the GETTER/SETTER node's one fixed child.
func (p *parser) accessorBody(name string) error {
	payloadOff := p.w.AddNode(ast.FUNC)
	p.w.AddInlinedNode(ast.IDENT, name)
	if err := p.expectPunct("("); err != nil {
		return err
	}
	for !p.isPunct(")") {
		pname := p.advance().text
		p.w.AddInlinedNode(ast.IDENT, pname)
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return err
	}
	p.w.SetSkip(payloadOff, ast.FuncBody)
	if err := p.expectPunct("{"); err != nil {
		return err
	}
	firstVar, err := p.statements(tokPunct, "}")
	if err != nil {
		return err
	}
	if err := p.expectPunct("}"); err != nil {
		return err
	}
	p.w.ModifySkip(payloadOff, firstVar, ast.FirstVar)
	p.w.SetSkip(payloadOff, ast.END)
	return nil
}
