package jsparse

import (
	"strconv"

	"github.com/tinyjsvm/ast"
)

// Parse tokenizes and parses src as a JavaScript program, emitting a packed
// AST via ast.Writer and returning the finalized Tree rooted at a SCRIPT
// node. See the package doc comment for the (intentionally partial)
// coverage of this front end.
func Parse(src string) (*ast.Tree, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	t := ast.New(ast.WithCapacity(len(src) * 2))
	p := &parser{toks: toks, w: ast.NewWriter(t), t: t}

	payloadOff := p.w.AddNode(ast.SCRIPT)
	firstVar, err := p.statements(tokEOF, "")
	if err != nil {
		return nil, err
	}
	p.w.ModifySkip(payloadOff, firstVar, ast.FirstVar)
	p.w.SetSkip(payloadOff, ast.END)

	t.TrimToSize()
	return t, nil
}

type parser struct {
	toks []token
	pos  int
	w    *ast.Writer
	t    *ast.Tree

	// noIn suppresses the `in` binary operator while parsing a for
	// statement's init clause, so that `for(k in obj)` is recognized as a
	// for-in loop rather than an IN expression followed by a missing ';'.
	// Cleared inside parentheses, where `in` is unambiguous again.
	noIn bool
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) atEOF() bool { return p.cur().kind == tokEOF }

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) is(kind tokenKind, text string) bool {
	t := p.cur()
	return t.kind == kind && t.text == text
}

func (p *parser) isPunct(text string) bool   { return p.is(tokPunct, text) }
func (p *parser) isKeyword(text string) bool { return p.is(tokKeyword, text) }

func (p *parser) expectPunct(text string) error {
	if !p.isPunct(text) {
		return &ParseError{Pos: p.cur().pos, Msg: "expected " + strconv.Quote(text)}
	}
	p.advance()
	return nil
}

// skipSemi consumes an optional trailing ';' (a simplified stand-in for
// full automatic semicolon insertion).
func (p *parser) skipSemi() {
	if p.isPunct(";") {
		p.advance()
	}
}

// statements parses a sequence of statements up to (but not including) a
// token matching (stopKind, stopText), e.g. (tokPunct, "}") for a block or
// (tokEOF, "") for a program, emitting each directly into the caller's
// currently-open variable sequence. It returns the absolute offset of the
// first hoisted declaration (VAR or FUNC_DECL) encountered, or the current
// tail if there were none: the value the caller back-patches into the
// FirstVar skip slot.
func (p *parser) statements(stopKind tokenKind, stopText string) (firstVar int, err error) {
	firstVar = -1
	for {
		if p.cur().kind == stopKind && (stopKind != tokPunct || p.cur().text == stopText) {
			break
		}
		if p.atEOF() {
			break
		}
		start := p.t.Len()
		tag, err := p.statement()
		if err != nil {
			return 0, err
		}
		if firstVar == -1 && (tag == ast.VAR || tag == ast.FUNC_DECL) {
			firstVar = start
		}
	}
	if firstVar == -1 {
		firstVar = p.t.Len()
	}
	return firstVar, nil
}

// statement parses one statement and returns the Tag of the node it
// emitted (needed by statements() to detect hoisted declarations).
func (p *parser) statement() (ast.Tag, error) {
	switch {
	case p.isPunct("{"):
		return ast.SEQ, p.blockAsSeq()
	case p.isKeyword("var"):
		return ast.VAR, p.varStatement()
	case p.isKeyword("function"):
		return ast.FUNC_DECL, p.funcDecl()
	case p.isKeyword("if"):
		return ast.IF, p.ifStatement()
	case p.isKeyword("while"):
		return ast.WHILE, p.whileStatement()
	case p.isKeyword("do"):
		return ast.DOWHILE, p.doWhileStatement()
	case p.isKeyword("for"):
		return p.forStatement()
	case p.isKeyword("return"):
		return p.returnStatement()
	case p.isKeyword("break"):
		return p.breakStatement()
	case p.isKeyword("continue"):
		return p.continueStatement()
	case p.isKeyword("throw"):
		return ast.THROW, p.unaryKeywordStatement(ast.THROW)
	case p.isKeyword("try"):
		return ast.TRY, p.tryStatement()
	case p.isKeyword("switch"):
		return ast.SWITCH, p.switchStatement()
	case p.isKeyword("with"):
		return ast.WITH, p.withStatement()
	case p.isKeyword("debugger"):
		p.advance()
		p.skipSemi()
		p.w.AddNode(ast.DEBUGGER)
		return ast.DEBUGGER, nil
	case p.isPunct(";"):
		p.advance()
		p.w.AddNode(ast.NOP)
		return ast.NOP, nil
	case p.cur().kind == tokString && p.cur().text == "use strict" && p.nextEndsStatement():
		p.advance()
		p.skipSemi()
		p.w.AddNode(ast.USE_STRICT)
		return ast.USE_STRICT, nil
	default:
		if p.cur().kind == tokIdent && p.peekIsColon() {
			return p.labeledStatement()
		}
		tag, err := p.expression()
		if err != nil {
			return 0, err
		}
		p.skipSemi()
		return tag, nil
	}
}

func (p *parser) peekIsColon() bool {
	return p.pos+1 < len(p.toks) && p.toks[p.pos+1].kind == tokPunct && p.toks[p.pos+1].text == ":"
}

// nextEndsStatement reports whether the token after the current one can
// only terminate a statement (";", "}", or EOF), distinguishing a bare
// `"use strict"` directive from the same text used as an ordinary
// expression, e.g. `"use strict".length`.
func (p *parser) nextEndsStatement() bool {
	if p.pos+1 >= len(p.toks) {
		return true
	}
	n := p.toks[p.pos+1]
	return n.kind == tokEOF || (n.kind == tokPunct && (n.text == ";" || n.text == "}"))
}

func (p *parser) labeledStatement() (ast.Tag, error) {
	name := p.advance().text
	p.advance() // ':'
	p.w.AddInlinedNode(ast.LABEL, name)
	if _, err := p.statement(); err != nil {
		return 0, err
	}
	return ast.LABEL, nil
}

// blockAsSeq parses a brace-delimited block as a SEQ node: a single skip
// (END) wrapping a variable sequence of statements.
func (p *parser) blockAsSeq() error {
	p.advance() // '{'
	payloadOff := p.w.AddNode(ast.SEQ)
	if _, err := p.statements(tokPunct, "}"); err != nil {
		return err
	}
	if err := p.expectPunct("}"); err != nil {
		return err
	}
	p.w.SetSkip(payloadOff, ast.END)
	return nil
}

// bodyStatement parses a single statement used as the body of a control
// construct, which in JavaScript may be either a block or a single bare
// statement; either way it becomes one (SEQ, for a block) or more (for a
// bare statement) items of the caller's variable sequence.
func (p *parser) bodyStatement() error {
	_, err := p.statement()
	return err
}

func (p *parser) varStatement() error {
	p.advance() // 'var'
	payloadOff := p.w.AddNode(ast.VAR)
	for {
		name := p.advance().text
		p.w.AddInlinedNode(ast.VAR_DECL, name)
		if p.isPunct("=") {
			p.advance()
			if _, err := p.assignExpr(); err != nil {
				return err
			}
		} else {
			p.w.AddNode(ast.UNDEF)
		}
		if !p.isPunct(",") {
			break
		}
		p.advance()
	}
	p.skipSemi()
	// Every VAR statement is its own hoisting-chain tail: this front end
	// does not link sibling var statements via VarNext.
	p.w.SetSkip(payloadOff, ast.VarNext)
	p.w.SetSkip(payloadOff, ast.END)
	return nil
}

func (p *parser) funcDecl() error {
	return p.funcLiteral(true)
}

// funcLiteral parses `function [name](params){body}`. If decl, it wraps
// the FUNC node in a FUNC_DECL carrying the same name, so that a
// declaration dumps as FUNC_DECL f containing a FUNC whose own fixed
// child is IDENT f.
func (p *parser) funcLiteral(decl bool) error {
	p.advance() // 'function'
	name := ""
	if p.cur().kind == tokIdent {
		name = p.advance().text
	}

	if decl {
		p.w.AddInlinedNode(ast.FUNC_DECL, name)
	}

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

func (p *parser) ifStatement() error {
	p.advance() // 'if'
	payloadOff := p.w.AddNode(ast.IF)
	if err := p.expectPunct("("); err != nil {
		return err
	}
	if _, err := p.expression(); err != nil {
		return err
	}
	if err := p.expectPunct(")"); err != nil {
		return err
	}
	if err := p.bodyStatement(); err != nil {
		return err
	}
	p.w.SetSkip(payloadOff, ast.IfEndTrue)
	if p.isKeyword("else") {
		p.advance()
		if err := p.bodyStatement(); err != nil {
			return err
		}
	}
	p.w.SetSkip(payloadOff, ast.END)
	return nil
}

func (p *parser) whileStatement() error {
	p.advance() // 'while'
	payloadOff := p.w.AddNode(ast.WHILE)
	if err := p.expectPunct("("); err != nil {
		return err
	}
	if _, err := p.expression(); err != nil {
		return err
	}
	if err := p.expectPunct(")"); err != nil {
		return err
	}
	if err := p.bodyStatement(); err != nil {
		return err
	}
	p.w.SetSkip(payloadOff, ast.END)
	return nil
}

func (p *parser) doWhileStatement() error {
	p.advance() // 'do'
	payloadOff := p.w.AddNode(ast.DOWHILE)
	if err := p.bodyStatement(); err != nil {
		return err
	}
	p.w.SetSkip(payloadOff, ast.DoWhileCond)
	if err := p.expectKeyword("while"); err != nil {
		return err
	}
	if err := p.expectPunct("("); err != nil {
		return err
	}
	if _, err := p.expression(); err != nil {
		return err
	}
	if err := p.expectPunct(")"); err != nil {
		return err
	}
	p.skipSemi()
	p.w.SetSkip(payloadOff, ast.END)
	return nil
}

func (p *parser) expectKeyword(kw string) error {
	if !p.isKeyword(kw) {
		return &ParseError{Pos: p.cur().pos, Msg: "expected keyword " + kw}
	}
	p.advance()
	return nil
}

// forStatement parses both `for(init;cond;iter)` and `for(var in expr)`,
// promoting to FOR_IN when a bare `in` is found in place of the first
// ';'. FOR and FOR_IN share an identical catalog shape (the dummy third
// subtree) precisely so this promotion is a one-byte rewrite.
func (p *parser) forStatement() (ast.Tag, error) {
	p.advance() // 'for'
	if err := p.expectPunct("("); err != nil {
		return 0, err
	}

	tag := ast.FOR
	payloadOff := p.w.AddNode(tag)

	// init / var. VAR_DECL always reserves one fixed child for its
	// initializer (UNDEF when absent), exactly as the top-level var
	// statement does.
	isVar := p.isKeyword("var")
	p.noIn = true
	if p.isPunct(";") {
		p.w.AddNode(ast.NOP)
	} else if isVar {
		p.advance()
		name := p.advance().text
		p.w.AddInlinedNode(ast.VAR_DECL, name)
		if p.isPunct("=") {
			p.advance()
			if _, err := p.assignExpr(); err != nil {
				p.noIn = false
				return 0, err
			}
		} else {
			p.w.AddNode(ast.UNDEF)
		}
	} else {
		if _, err := p.expression(); err != nil {
			p.noIn = false
			return 0, err
		}
	}
	p.noIn = false

	if p.isKeyword("in") {
		p.advance()
		if _, err := p.expression(); err != nil {
			return 0, err
		}
		p.w.AddNode(ast.NOP) // dummy subtree, per FOR_IN's shared layout
		if err := p.expectPunct(")"); err != nil {
			return 0, err
		}
		p.w.SetSkip(payloadOff, ast.ForBody)
		if err := p.bodyStatement(); err != nil {
			return 0, err
		}
		p.w.SetSkip(payloadOff, ast.END)
		// Rewrite the already-emitted tag byte to FOR_IN; both rows share
		// an identical shape so no bytes need to move.
		p.t.Bytes()[payloadOff-1] = byte(ast.FOR_IN)
		return ast.FOR_IN, nil
	}

	if err := p.expectPunct(";"); err != nil {
		return 0, err
	}
	if p.isPunct(";") {
		p.w.AddNode(ast.NOP)
	} else if _, err := p.expression(); err != nil {
		return 0, err
	}
	if err := p.expectPunct(";"); err != nil {
		return 0, err
	}
	if p.isPunct(")") {
		p.w.AddNode(ast.NOP)
	} else if _, err := p.expression(); err != nil {
		return 0, err
	}
	if err := p.expectPunct(")"); err != nil {
		return 0, err
	}
	p.w.SetSkip(payloadOff, ast.ForBody)
	if err := p.bodyStatement(); err != nil {
		return 0, err
	}
	p.w.SetSkip(payloadOff, ast.END)
	return ast.FOR, nil
}

func (p *parser) returnStatement() (ast.Tag, error) {
	p.advance() // 'return'
	if p.isPunct(";") || p.isPunct("}") || p.atEOF() {
		p.skipSemi()
		p.w.AddNode(ast.RETURN)
		return ast.RETURN, nil
	}
	p.w.AddNode(ast.VAL_RETURN)
	if _, err := p.expression(); err != nil {
		return 0, err
	}
	p.skipSemi()
	return ast.VAL_RETURN, nil
}

func (p *parser) unaryKeywordStatement(tag ast.Tag) error {
	p.advance()
	p.w.AddNode(tag)
	if _, err := p.expression(); err != nil {
		return err
	}
	p.skipSemi()
	return nil
}

func (p *parser) breakStatement() (ast.Tag, error) {
	p.advance()
	if p.cur().kind == tokIdent {
		name := p.advance().text
		p.w.AddNode(ast.LAB_BREAK)
		p.w.AddInlinedNode(ast.LABEL, name)
		p.skipSemi()
		return ast.LAB_BREAK, nil
	}
	p.skipSemi()
	p.w.AddNode(ast.BREAK)
	return ast.BREAK, nil
}

func (p *parser) continueStatement() (ast.Tag, error) {
	p.advance()
	if p.cur().kind == tokIdent {
		name := p.advance().text
		p.w.AddNode(ast.LAB_CONTINUE)
		p.w.AddInlinedNode(ast.LABEL, name)
		p.skipSemi()
		return ast.LAB_CONTINUE, nil
	}
	p.skipSemi()
	p.w.AddNode(ast.CONTINUE)
	return ast.CONTINUE, nil
}

func (p *parser) tryStatement() error {
	p.advance() // 'try'
	payloadOff := p.w.AddNode(ast.TRY)

	if err := p.expectPunct("{"); err != nil {
		return err
	}
	if p.isPunct("}") {
		p.w.AddNode(ast.NOP) // the mandatory fixed first child
	} else if _, err := p.statement(); err != nil {
		return err
	}
	if _, err := p.statements(tokPunct, "}"); err != nil {
		return err
	}
	if err := p.expectPunct("}"); err != nil {
		return err
	}
	p.w.SetSkip(payloadOff, ast.TryCatch)

	if p.isKeyword("catch") {
		p.advance()
		if err := p.expectPunct("("); err != nil {
			return err
		}
		name := p.advance().text
		p.w.AddInlinedNode(ast.IDENT, name)
		if err := p.expectPunct(")"); err != nil {
			return err
		}
		if err := p.expectPunct("{"); err != nil {
			return err
		}
		if _, err := p.statements(tokPunct, "}"); err != nil {
			return err
		}
		if err := p.expectPunct("}"); err != nil {
			return err
		}
	}
	p.w.SetSkip(payloadOff, ast.TryFinally)

	if p.isKeyword("finally") {
		p.advance()
		if err := p.expectPunct("{"); err != nil {
			return err
		}
		if _, err := p.statements(tokPunct, "}"); err != nil {
			return err
		}
		if err := p.expectPunct("}"); err != nil {
			return err
		}
	}
	p.w.SetSkip(payloadOff, ast.END)
	return nil
}

func (p *parser) switchStatement() error {
	p.advance() // 'switch'
	payloadOff := p.w.AddNode(ast.SWITCH)
	if err := p.expectPunct("("); err != nil {
		return err
	}
	if _, err := p.expression(); err != nil {
		return err
	}
	if err := p.expectPunct(")"); err != nil {
		return err
	}
	if err := p.expectPunct("{"); err != nil {
		return err
	}

	for p.isKeyword("case") {
		p.advance()
		caseOff := p.w.AddNode(ast.CASE)
		if _, err := p.expression(); err != nil {
			return err
		}
		if err := p.expectPunct(":"); err != nil {
			return err
		}
		for !p.isKeyword("case") && !p.isKeyword("default") && !p.isPunct("}") {
			if _, err := p.statement(); err != nil {
				return err
			}
		}
		p.w.SetSkip(caseOff, ast.END)
	}
	p.w.SetSkip(payloadOff, ast.SwitchDefault)

	if p.isKeyword("default") {
		p.advance()
		if err := p.expectPunct(":"); err != nil {
			return err
		}
		defOff := p.w.AddNode(ast.DEFAULT)
		for !p.isPunct("}") {
			if _, err := p.statement(); err != nil {
				return err
			}
		}
		p.w.SetSkip(defOff, ast.END)
	}
	if err := p.expectPunct("}"); err != nil {
		return err
	}
	p.w.SetSkip(payloadOff, ast.END)
	return nil
}

func (p *parser) withStatement() error {
	p.advance() // 'with'
	payloadOff := p.w.AddNode(ast.WITH)
	if err := p.expectPunct("("); err != nil {
		return err
	}
	if _, err := p.expression(); err != nil {
		return err
	}
	if err := p.expectPunct(")"); err != nil {
		return err
	}
	if err := p.bodyStatement(); err != nil {
		return err
	}
	p.w.SetSkip(payloadOff, ast.END)
	return nil
}
