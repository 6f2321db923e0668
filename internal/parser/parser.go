// Package parser turns workflow script source into an AST.
//
// The grammar accepted here is a superset of what the interpreter evaluates:
// functions, loops, classes, named exports and similar constructs parse into
// their own node types so that the evaluator can reject them with an accurate
// location. Only what JavaScript grammar itself forbids is reported as a
// syntax error.
//
//	prog, err := parser.Parse(`export default workflow("id", "name");`)
//	if err != nil {
//	    var e *schema.Error
//	    errors.As(err, &e) // e.Code == schema.ErrCodeSyntax, e.Location set
//	}
package parser

import (
	"github.com/rendis/wfscript/pkg/schema"
)

// DefaultMaxDepth bounds nesting while parsing.
const DefaultMaxDepth = 256

// Option configures a Parse call.
type Option func(*Parser)

// WithMaxDepth sets the maximum nesting depth. Values <= 0 keep the default.
func WithMaxDepth(depth int) Option {
	return func(p *Parser) {
		if depth > 0 {
			p.maxDepth = depth
		}
	}
}

// Parser is a recursive-descent parser with one token of lookahead.
type Parser struct {
	lexer    *Lexer
	src      string
	tok      Token
	prevEnd  int
	depth    int
	maxDepth int
	noIn     bool // inside a for-statement head, `in` is not a binary operator

	seenDefault bool
}

// Parse parses src into a Program.
func Parse(src string, opts ...Option) (*Program, error) {
	if err := checkEncoding(src); err != nil {
		return nil, err
	}
	p := &Parser{lexer: NewLexer(src), src: src, maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	return p.parseProgram()
}

func (p *Parser) parseProgram() (*Program, error) {
	prog := &Program{
		Position: Position{Loc: schema.Location{Line: 1, Column: 1}, Start: 0, End: len(p.src)},
		Source:   p.src,
	}
	for p.tok.Type != TokenEOF {
		stmt, err := p.parseStatement(true)
		if err != nil {
			return nil, err
		}
		prog.Body = append(prog.Body, stmt)
	}
	return prog, nil
}

// --- token helpers ---

func (p *Parser) next() error {
	p.prevEnd = p.tok.End
	tok, err := p.lexer.Next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

// peek returns the token after the current one without consuming anything.
func (p *Parser) peek() (Token, error) {
	state := p.lexer.save()
	tok, err := p.lexer.Next()
	p.lexer.restore(state)
	return tok, err
}

func (p *Parser) expect(punct string) error {
	if !p.tok.Is(punct) {
		return p.errorAt(p.tok, "expected '%s' but found %s", punct, p.tok.describe())
	}
	return p.next()
}

func (p *Parser) expectWord(word string) error {
	if !p.tok.IsWord(word) {
		return p.errorAt(p.tok, "expected '%s' but found %s", word, p.tok.describe())
	}
	return p.next()
}

// consumeSemicolon implements automatic semicolon insertion.
func (p *Parser) consumeSemicolon() error {
	switch {
	case p.tok.Is(";"):
		return p.next()
	case p.tok.Is("}"), p.tok.Type == TokenEOF, p.tok.NewlineBefore:
		return nil
	}
	return p.unexpected()
}

func (p *Parser) enter() error {
	p.depth++
	if p.depth > p.maxDepth {
		return p.errorAt(p.tok, "maximum nesting depth of %d exceeded", p.maxDepth)
	}
	return nil
}

func (p *Parser) leave() { p.depth-- }

func (p *Parser) unexpected() error {
	if p.tok.Type == TokenEOF {
		return p.errorAt(p.tok, "unexpected end of input")
	}
	if p.tok.Is("/") || p.tok.Is("/=") {
		return p.errorAt(p.tok, "regular expression literals are not supported")
	}
	return p.errorAt(p.tok, "unexpected %s", p.tok.describe())
}

func (p *Parser) errorAt(tok Token, format string, args ...any) error {
	return schema.NewErrorf(schema.ErrCodeSyntax, format, args...).
		WithLocation(schema.Location{Line: tok.Line, Column: tok.Column})
}

func tokenLoc(tok Token) schema.Location {
	return schema.Location{Line: tok.Line, Column: tok.Column}
}

// here covers exactly the current token.
func (p *Parser) here() Position {
	return Position{Loc: tokenLoc(p.tok), Start: p.tok.Start, End: p.tok.End}
}

// from covers everything between start and the last consumed token.
func (p *Parser) from(start Token) Position {
	return Position{Loc: tokenLoc(start), Start: start.Start, End: p.prevEnd}
}

func (p *Parser) fromNode(n Node) Position {
	start, _ := n.Offsets()
	return Position{Loc: n.Pos(), Start: start, End: p.prevEnd}
}

// --- statements ---

func (p *Parser) parseStatement(topLevel bool) (Statement, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	tok := p.tok
	if tok.Type == TokenPunct {
		switch tok.Value {
		case "{":
			return p.parseBlock()
		case ";":
			if err := p.next(); err != nil {
				return nil, err
			}
			return &EmptyStatement{Position: p.from(tok)}, nil
		}
	}
	if tok.Type == TokenIdentifier {
		switch tok.Value {
		case "const", "let", "var":
			decl, err := p.parseVariableDeclaration(true)
			if err != nil {
				return nil, err
			}
			if err := p.consumeSemicolon(); err != nil {
				return nil, err
			}
			return decl, nil
		case "if":
			return p.parseIf()
		case "for":
			return p.parseFor()
		case "while":
			return p.parseWhile()
		case "do":
			return p.parseDoWhile()
		case "try":
			return p.parseTry()
		case "throw":
			return p.parseThrow()
		case "return":
			return p.parseReturn()
		case "break", "continue":
			return p.parseJump()
		case "switch":
			return p.parseSwitch()
		case "function":
			return p.parseFunctionDeclaration(false, true)
		case "class":
			return p.parseClass(true)
		case "export":
			if !topLevel {
				return nil, p.errorAt(tok, "'export' may only appear at the top level")
			}
			return p.parseExport()
		case "import":
			nextTok, err := p.peek()
			if err != nil {
				return nil, err
			}
			if !nextTok.Is("(") && !nextTok.Is(".") {
				if !topLevel {
					return nil, p.errorAt(tok, "'import' may only appear at the top level")
				}
				return p.parseImport()
			}
		case "async":
			nextTok, err := p.peek()
			if err != nil {
				return nil, err
			}
			if nextTok.IsWord("function") && !nextTok.NewlineBefore {
				if err := p.next(); err != nil {
					return nil, err
				}
				fn, err := p.parseFunctionDeclaration(true, true)
				if err != nil {
					return nil, err
				}
				fn.Position = p.from(tok)
				return fn, nil
			}
		case "with":
			return nil, p.errorAt(tok, "'with' is not allowed in strict mode")
		case "debugger":
			return nil, p.errorAt(tok, "'debugger' statements are not supported")
		}
	}

	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.consumeSemicolon(); err != nil {
		return nil, err
	}
	return &ExpressionStatement{Position: p.fromNode(expr), Expression: expr}, nil
}

func (p *Parser) parseBlock() (*BlockStatement, error) {
	start := p.tok
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	block := &BlockStatement{}
	for !p.tok.Is("}") {
		if p.tok.Type == TokenEOF {
			return nil, p.unexpected()
		}
		stmt, err := p.parseStatement(false)
		if err != nil {
			return nil, err
		}
		block.Body = append(block.Body, stmt)
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	block.Position = p.from(start)
	return block, nil
}

// parseVariableDeclaration parses `const|let|var` bindings. Outside a for
// head, const and destructuring bindings require an initializer.
func (p *Parser) parseVariableDeclaration(requireInit bool) (*VariableDeclaration, error) {
	start := p.tok
	decl := &VariableDeclaration{Kind: start.Value}
	if err := p.next(); err != nil {
		return nil, err
	}
	for {
		declStart := p.tok
		target, err := p.parseBindingTarget()
		if err != nil {
			return nil, err
		}
		d := &VariableDeclarator{ID: target}
		if p.tok.Is("=") {
			if err := p.next(); err != nil {
				return nil, err
			}
			if d.Init, err = p.parseAssignment(); err != nil {
				return nil, err
			}
		} else if requireInit {
			if decl.Kind == "const" {
				return nil, p.errorAt(declStart, "missing initializer in const declaration")
			}
			if _, ok := target.(*Identifier); !ok {
				return nil, p.errorAt(declStart, "missing initializer in destructuring declaration")
			}
		}
		d.Position = p.from(declStart)
		decl.Declarations = append(decl.Declarations, d)

		if !p.tok.Is(",") {
			break
		}
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	decl.Position = p.from(start)
	return decl, nil
}

func (p *Parser) parseBindingTarget() (Expression, error) {
	switch {
	case p.tok.Is("{"):
		return p.parseObject()
	case p.tok.Is("["):
		return p.parseArray()
	}
	return p.parseBindingIdentifier()
}

func (p *Parser) parseBindingIdentifier() (*Identifier, error) {
	if p.tok.Type != TokenIdentifier || reservedWords[p.tok.Value] {
		return nil, p.unexpected()
	}
	id := &Identifier{Position: p.here(), Name: p.tok.Value}
	return id, p.next()
}

func (p *Parser) parseParenExpression() (Expression, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	saved := p.noIn
	p.noIn = false
	expr, err := p.parseExpression()
	p.noIn = saved
	if err != nil {
		return nil, err
	}
	return expr, p.expect(")")
}

func (p *Parser) parseIf() (Statement, error) {
	start := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	test, err := p.parseParenExpression()
	if err != nil {
		return nil, err
	}
	stmt := &IfStatement{Test: test}
	if stmt.Consequent, err = p.parseStatement(false); err != nil {
		return nil, err
	}
	if p.tok.IsWord("else") {
		if err := p.next(); err != nil {
			return nil, err
		}
		if stmt.Alternate, err = p.parseStatement(false); err != nil {
			return nil, err
		}
	}
	stmt.Position = p.from(start)
	return stmt, nil
}

func (p *Parser) parseFor() (Statement, error) {
	start := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.tok.IsWord("await") {
		return nil, p.errorAt(p.tok, "'for await' is not supported")
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}

	var init Node
	if !p.tok.Is(";") {
		p.noIn = true
		var err error
		if p.tok.IsWord("const") || p.tok.IsWord("let") || p.tok.IsWord("var") {
			init, err = p.parseVariableDeclaration(false)
		} else {
			init, err = p.parseExpression()
		}
		p.noIn = false
		if err != nil {
			return nil, err
		}

		if p.tok.IsWord("of") || p.tok.IsWord("in") {
			of := p.tok.IsWord("of")
			if err := p.next(); err != nil {
				return nil, err
			}
			right, err := p.parseAssignment()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			body, err := p.parseStatement(false)
			if err != nil {
				return nil, err
			}
			if of {
				return &ForOfStatement{Position: p.from(start), Left: init, Right: right, Body: body}, nil
			}
			return &ForInStatement{Position: p.from(start), Left: init, Right: right, Body: body}, nil
		}
		if decl, ok := init.(*VariableDeclaration); ok && decl.Kind == "const" {
			for _, d := range decl.Declarations {
				if d.Init == nil {
					return nil, p.errorAt(start, "missing initializer in const declaration")
				}
			}
		}
	}

	stmt := &ForStatement{Init: init}
	if err := p.expect(";"); err != nil {
		return nil, err
	}
	var err error
	if !p.tok.Is(";") {
		if stmt.Test, err = p.parseExpression(); err != nil {
			return nil, err
		}
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}
	if !p.tok.Is(")") {
		if stmt.Update, err = p.parseExpression(); err != nil {
			return nil, err
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	if stmt.Body, err = p.parseStatement(false); err != nil {
		return nil, err
	}
	stmt.Position = p.from(start)
	return stmt, nil
}

func (p *Parser) parseWhile() (Statement, error) {
	start := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	test, err := p.parseParenExpression()
	if err != nil {
		return nil, err
	}
	body, err := p.parseStatement(false)
	if err != nil {
		return nil, err
	}
	return &WhileStatement{Position: p.from(start), Test: test, Body: body}, nil
}

func (p *Parser) parseDoWhile() (Statement, error) {
	start := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	body, err := p.parseStatement(false)
	if err != nil {
		return nil, err
	}
	if err := p.expectWord("while"); err != nil {
		return nil, err
	}
	test, err := p.parseParenExpression()
	if err != nil {
		return nil, err
	}
	if p.tok.Is(";") {
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	return &DoWhileStatement{Position: p.from(start), Body: body, Test: test}, nil
}

func (p *Parser) parseTry() (Statement, error) {
	start := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	stmt := &TryStatement{}
	var err error
	if stmt.Block, err = p.parseBlock(); err != nil {
		return nil, err
	}
	if p.tok.IsWord("catch") {
		if err := p.next(); err != nil {
			return nil, err
		}
		if p.tok.Is("(") {
			if err := p.next(); err != nil {
				return nil, err
			}
			if stmt.Param, err = p.parseBindingTarget(); err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
		}
		if stmt.Handler, err = p.parseBlock(); err != nil {
			return nil, err
		}
	}
	if p.tok.IsWord("finally") {
		if err := p.next(); err != nil {
			return nil, err
		}
		if stmt.Finalizer, err = p.parseBlock(); err != nil {
			return nil, err
		}
	}
	if stmt.Handler == nil && stmt.Finalizer == nil {
		return nil, p.errorAt(p.tok, "missing catch or finally after try")
	}
	stmt.Position = p.from(start)
	return stmt, nil
}

func (p *Parser) parseThrow() (Statement, error) {
	start := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.tok.NewlineBefore {
		return nil, p.errorAt(p.tok, "illegal newline after throw")
	}
	arg, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.consumeSemicolon(); err != nil {
		return nil, err
	}
	return &ThrowStatement{Position: p.from(start), Argument: arg}, nil
}

func (p *Parser) parseReturn() (Statement, error) {
	start := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	stmt := &ReturnStatement{}
	if !p.tok.Is(";") && !p.tok.Is("}") && p.tok.Type != TokenEOF && !p.tok.NewlineBefore {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Argument = arg
	}
	if err := p.consumeSemicolon(); err != nil {
		return nil, err
	}
	stmt.Position = p.from(start)
	return stmt, nil
}

func (p *Parser) parseJump() (Statement, error) {
	start := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	var label string
	if p.tok.Type == TokenIdentifier && !p.tok.NewlineBefore && !reservedWords[p.tok.Value] {
		label = p.tok.Value
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	if err := p.consumeSemicolon(); err != nil {
		return nil, err
	}
	if start.Value == "break" {
		return &BreakStatement{Position: p.from(start), Label: label}, nil
	}
	return &ContinueStatement{Position: p.from(start), Label: label}, nil
}

func (p *Parser) parseSwitch() (Statement, error) {
	start := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	disc, err := p.parseParenExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	stmt := &SwitchStatement{Discriminant: disc}
	seenDefault := false
	for !p.tok.Is("}") {
		caseStart := p.tok
		c := &SwitchCase{}
		switch {
		case p.tok.IsWord("case"):
			if err := p.next(); err != nil {
				return nil, err
			}
			if c.Test, err = p.parseExpression(); err != nil {
				return nil, err
			}
		case p.tok.IsWord("default"):
			if seenDefault {
				return nil, p.errorAt(p.tok, "more than one default clause in switch statement")
			}
			seenDefault = true
			if err := p.next(); err != nil {
				return nil, err
			}
		default:
			return nil, p.unexpected()
		}
		if err := p.expect(":"); err != nil {
			return nil, err
		}
		for !p.tok.Is("}") && !p.tok.IsWord("case") && !p.tok.IsWord("default") {
			if p.tok.Type == TokenEOF {
				return nil, p.unexpected()
			}
			s, err := p.parseStatement(false)
			if err != nil {
				return nil, err
			}
			c.Consequent = append(c.Consequent, s)
		}
		c.Position = p.from(caseStart)
		stmt.Cases = append(stmt.Cases, c)
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	stmt.Position = p.from(start)
	return stmt, nil
}

// parseFunctionDeclaration expects the current token to be `function`.
func (p *Parser) parseFunctionDeclaration(async, requireName bool) (*FunctionDeclaration, error) {
	start := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	fn := &FunctionDeclaration{Async: async}
	if p.tok.Is("*") {
		fn.Generator = true
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	if !p.tok.Is("(") || requireName {
		id, err := p.parseBindingIdentifier()
		if err != nil {
			return nil, err
		}
		fn.ID = id
	}
	var err error
	if fn.Params, err = p.parseParams(); err != nil {
		return nil, err
	}
	if fn.Body, err = p.parseBlock(); err != nil {
		return nil, err
	}
	fn.Position = p.from(start)
	return fn, nil
}

func (p *Parser) parseParams() ([]Expression, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var params []Expression
	for !p.tok.Is(")") {
		if p.tok.Is("...") {
			start := p.tok
			if err := p.next(); err != nil {
				return nil, err
			}
			target, err := p.parseBindingTarget()
			if err != nil {
				return nil, err
			}
			params = append(params, &SpreadElement{Position: p.from(start), Argument: target})
			if !p.tok.Is(")") {
				return nil, p.errorAt(p.tok, "rest parameter must be last formal parameter")
			}
			break
		}
		target, err := p.parseBindingTarget()
		if err != nil {
			return nil, err
		}
		var param Expression = target
		if p.tok.Is("=") {
			if err := p.next(); err != nil {
				return nil, err
			}
			def, err := p.parseAssignment()
			if err != nil {
				return nil, err
			}
			param = &AssignmentExpression{Position: p.fromNode(target), Operator: "=", Left: target, Right: def}
		}
		params = append(params, param)
		if !p.tok.Is(")") {
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
	}
	return params, p.next()
}

// parseClass records the class header and skips its body, which is never
// evaluated.
func (p *Parser) parseClass(requireName bool) (*ClassDeclaration, error) {
	start := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	cls := &ClassDeclaration{}
	if p.tok.Type == TokenIdentifier && !p.tok.IsWord("extends") {
		id, err := p.parseBindingIdentifier()
		if err != nil {
			return nil, err
		}
		cls.ID = id
	} else if requireName {
		return nil, p.errorAt(p.tok, "class name required")
	}
	if p.tok.IsWord("extends") {
		if err := p.next(); err != nil {
			return nil, err
		}
		super, err := p.parseLeftHandSide()
		if err != nil {
			return nil, err
		}
		cls.SuperClass = super
	}
	if !p.tok.Is("{") {
		return nil, p.unexpected()
	}
	if err := p.skipBalanced(); err != nil {
		return nil, err
	}
	cls.Position = p.from(start)
	return cls, nil
}

// skipBalanced consumes a `{ ... }` group, following template substitutions.
func (p *Parser) skipBalanced() error {
	var stack []bool // true for template substitutions
	for {
		switch {
		case p.tok.Type == TokenEOF:
			return p.unexpected()
		case p.tok.Is("{"):
			stack = append(stack, false)
		case p.tok.Type == TokenTemplate && !p.tok.Tail:
			stack = append(stack, true)
		case p.tok.Is("}"):
			if len(stack) == 0 {
				return p.unexpected()
			}
			inTemplate := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if inTemplate {
				chunk, err := p.lexer.TemplateContinuation(p.tok.End)
				if err != nil {
					return err
				}
				p.prevEnd, p.tok = p.tok.End, chunk
				if !chunk.Tail {
					stack = append(stack, true)
				}
			} else if len(stack) == 0 {
				return p.next()
			}
		}
		if err := p.next(); err != nil {
			return err
		}
	}
}

func (p *Parser) parseExport() (Statement, error) {
	start := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}

	if p.tok.IsWord("default") {
		if p.seenDefault {
			return nil, p.errorAt(start, "duplicate export 'default'")
		}
		p.seenDefault = true
		if err := p.next(); err != nil {
			return nil, err
		}
		var decl Node
		var err error
		switch {
		case p.tok.IsWord("function"):
			decl, err = p.parseFunctionDeclaration(false, false)
		case p.tok.IsWord("class"):
			decl, err = p.parseClass(false)
		default:
			var expr Expression
			if expr, err = p.parseAssignment(); err == nil {
				decl = expr
				err = p.consumeSemicolon()
			}
		}
		if err != nil {
			return nil, err
		}
		return &ExportDefaultDeclaration{Position: p.from(start), Declaration: decl}, nil
	}

	stmt := &ExportNamedDeclaration{}
	switch {
	case p.tok.IsWord("const"), p.tok.IsWord("let"), p.tok.IsWord("var"),
		p.tok.IsWord("function"), p.tok.IsWord("class"), p.tok.IsWord("async"):
		decl, err := p.parseStatement(false)
		if err != nil {
			return nil, err
		}
		stmt.Declaration = decl
	case p.tok.Is("{"), p.tok.Is("*"):
		for !p.tok.Is("}") && !p.tok.IsWord("from") {
			if p.tok.Type == TokenEOF {
				return nil, p.unexpected()
			}
			if err := p.next(); err != nil {
				return nil, err
			}
		}
		if p.tok.Is("}") {
			if err := p.next(); err != nil {
				return nil, err
			}
		}
		if err := p.skipModuleSource(); err != nil {
			return nil, err
		}
	default:
		return nil, p.unexpected()
	}
	stmt.Position = p.from(start)
	return stmt, nil
}

func (p *Parser) parseImport() (Statement, error) {
	start := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	stmt := &ImportDeclaration{}
	if p.tok.Type == TokenString {
		stmt.Source = p.tok.Value
		if err := p.next(); err != nil {
			return nil, err
		}
	} else {
		for !p.tok.IsWord("from") {
			if p.tok.Type == TokenEOF || p.tok.Is(";") {
				return nil, p.unexpected()
			}
			if err := p.next(); err != nil {
				return nil, err
			}
		}
		source, err := p.parseModuleSource()
		if err != nil {
			return nil, err
		}
		stmt.Source = source
	}
	if err := p.consumeSemicolon(); err != nil {
		return nil, err
	}
	stmt.Position = p.from(start)
	return stmt, nil
}

// skipModuleSource consumes an optional `from "x"` clause and the statement
// terminator.
func (p *Parser) skipModuleSource() error {
	if p.tok.IsWord("from") {
		if _, err := p.parseModuleSource(); err != nil {
			return err
		}
	}
	return p.consumeSemicolon()
}

func (p *Parser) parseModuleSource() (string, error) {
	if err := p.expectWord("from"); err != nil {
		return "", err
	}
	if p.tok.Type != TokenString {
		return "", p.unexpected()
	}
	source := p.tok.Value
	return source, p.next()
}

// --- expressions ---

func (p *Parser) parseExpression() (Expression, error) {
	expr, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	if !p.tok.Is(",") {
		return expr, nil
	}
	seq := &SequenceExpression{Expressions: []Expression{expr}}
	for p.tok.Is(",") {
		if err := p.next(); err != nil {
			return nil, err
		}
		e, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		seq.Expressions = append(seq.Expressions, e)
	}
	seq.Position = p.fromNode(expr)
	return seq, nil
}

func (p *Parser) parseAssignment() (Expression, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	left, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	if p.tok.Type != TokenPunct || !assignmentOperators[p.tok.Value] {
		return left, nil
	}

	opTok := p.tok
	switch left.(type) {
	case *Identifier, *MemberExpression:
	case *ObjectExpression, *ArrayExpression:
		if opTok.Value != "=" {
			return nil, p.errorAt(opTok, "invalid left-hand side in assignment")
		}
	default:
		return nil, p.errorAt(opTok, "invalid left-hand side in assignment")
	}
	if m, ok := left.(*MemberExpression); ok && m.Optional {
		return nil, p.errorAt(opTok, "invalid left-hand side in assignment")
	}

	if err := p.next(); err != nil {
		return nil, err
	}
	right, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	return &AssignmentExpression{Position: p.fromNode(left), Operator: opTok.Value, Left: left, Right: right}, nil
}

func (p *Parser) parseConditional() (Expression, error) {
	test, err := p.parseBinary(0)
	if err != nil {
		return nil, err
	}
	if !p.tok.Is("?") {
		return test, nil
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	saved := p.noIn
	p.noIn = false
	consequent, err := p.parseAssignment()
	p.noIn = saved
	if err != nil {
		return nil, err
	}
	if err := p.expect(":"); err != nil {
		return nil, err
	}
	alternate, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	return &ConditionalExpression{Position: p.fromNode(test), Test: test, Consequent: consequent, Alternate: alternate}, nil
}

// binaryOp returns the operator at the current token and its precedence, or
// zero when the token does not continue a binary expression.
func (p *Parser) binaryOp() (string, int) {
	switch p.tok.Type {
	case TokenPunct:
		return p.tok.Value, binaryPrecedence[p.tok.Value]
	case TokenIdentifier:
		if p.tok.Value == "instanceof" || (p.tok.Value == "in" && !p.noIn) {
			return p.tok.Value, binaryPrecedence[p.tok.Value]
		}
	}
	return "", 0
}

// parseBinary is precedence climbing over binaryPrecedence.
func (p *Parser) parseBinary(minPrec int) (Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, prec := p.binaryOp()
		if prec == 0 || prec <= minPrec {
			return left, nil
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		rightPrec := prec
		if op == "**" {
			rightPrec = prec - 1
		}
		right, err := p.parseBinary(rightPrec)
		if err != nil {
			return nil, err
		}
		switch op {
		case "&&", "||", "??":
			left = &LogicalExpression{Position: p.fromNode(left), Operator: op, Left: left, Right: right}
		default:
			left = &BinaryExpression{Position: p.fromNode(left), Operator: op, Left: left, Right: right}
		}
	}
}

func (p *Parser) parseUnary() (Expression, error) {
	start := p.tok
	isUnary := (start.Type == TokenPunct && (start.Value == "!" || start.Value == "-" || start.Value == "+" || start.Value == "~")) ||
		start.IsWord("typeof") || start.IsWord("void") || start.IsWord("delete")
	isUpdate := start.Is("++") || start.Is("--")
	isAwait := start.IsWord("await")

	if isUnary || isUpdate || isAwait {
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		if err := p.next(); err != nil {
			return nil, err
		}
		arg, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		switch {
		case isUpdate:
			if !isSimpleTarget(arg) {
				return nil, p.errorAt(start, "invalid left-hand side expression in prefix operation")
			}
			return &UpdateExpression{Position: p.from(start), Operator: start.Value, Prefix: true, Argument: arg}, nil
		case isAwait:
			return &AwaitExpression{Position: p.from(start), Argument: arg}, nil
		}
		return &UnaryExpression{Position: p.from(start), Operator: start.Value, Argument: arg}, nil
	}

	expr, err := p.parseLeftHandSide()
	if err != nil {
		return nil, err
	}
	if (p.tok.Is("++") || p.tok.Is("--")) && !p.tok.NewlineBefore {
		if !isSimpleTarget(expr) {
			return nil, p.errorAt(p.tok, "invalid left-hand side expression in postfix operation")
		}
		op := p.tok.Value
		if err := p.next(); err != nil {
			return nil, err
		}
		return &UpdateExpression{Position: p.fromNode(expr), Operator: op, Argument: expr}, nil
	}
	return expr, nil
}

func isSimpleTarget(e Expression) bool {
	switch t := e.(type) {
	case *Identifier:
		return true
	case *MemberExpression:
		return !t.Optional
	}
	return false
}

// parseLeftHandSide parses a primary expression followed by member accesses,
// calls and tagged templates.
func (p *Parser) parseLeftHandSide() (Expression, error) {
	var expr Expression
	var err error
	if p.tok.IsWord("new") {
		expr, err = p.parseNew()
	} else {
		expr, err = p.parsePrimary()
	}
	if err != nil {
		return nil, err
	}
	return p.parseCallTail(expr, true)
}

func (p *Parser) parseCallTail(expr Expression, allowCalls bool) (Expression, error) {
	for {
		switch {
		case p.tok.Is("."):
			if err := p.next(); err != nil {
				return nil, err
			}
			prop, err := p.parsePropertyName()
			if err != nil {
				return nil, err
			}
			expr = &MemberExpression{Position: p.fromNode(expr), Object: expr, Property: prop}

		case p.tok.Is("?."):
			if !allowCalls {
				return nil, p.errorAt(p.tok, "invalid optional chain from new expression")
			}
			if err := p.next(); err != nil {
				return nil, err
			}
			switch {
			case p.tok.Is("("):
				args, err := p.parseArguments()
				if err != nil {
					return nil, err
				}
				expr = &CallExpression{Position: p.fromNode(expr), Callee: expr, Arguments: args, Optional: true}
			case p.tok.Is("["):
				prop, err := p.parseComputedKey()
				if err != nil {
					return nil, err
				}
				expr = &MemberExpression{Position: p.fromNode(expr), Object: expr, Property: prop, Computed: true, Optional: true}
			default:
				prop, err := p.parsePropertyName()
				if err != nil {
					return nil, err
				}
				expr = &MemberExpression{Position: p.fromNode(expr), Object: expr, Property: prop, Optional: true}
			}

		case p.tok.Is("["):
			prop, err := p.parseComputedKey()
			if err != nil {
				return nil, err
			}
			expr = &MemberExpression{Position: p.fromNode(expr), Object: expr, Property: prop, Computed: true}

		case p.tok.Is("(") && allowCalls:
			args, err := p.parseArguments()
			if err != nil {
				return nil, err
			}
			if id, ok := expr.(*Identifier); ok && id.Name == "async" && p.tok.Is("=>") && !p.tok.NewlineBefore {
				return p.parseArrowBody(id.Position, args, true)
			}
			expr = &CallExpression{Position: p.fromNode(expr), Callee: expr, Arguments: args}

		case p.tok.Type == TokenTemplate:
			quasi, err := p.parseTemplate()
			if err != nil {
				return nil, err
			}
			expr = &TaggedTemplateExpression{Position: p.fromNode(expr), Tag: expr, Quasi: quasi}

		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseNew() (Expression, error) {
	start := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.tok.Is(".") {
		return nil, p.errorAt(p.tok, "new.target is not supported")
	}
	var callee Expression
	var err error
	if p.tok.IsWord("new") {
		callee, err = p.parseNew()
	} else {
		callee, err = p.parsePrimary()
	}
	if err != nil {
		return nil, err
	}
	if callee, err = p.parseCallTail(callee, false); err != nil {
		return nil, err
	}
	expr := &NewExpression{Callee: callee}
	if p.tok.Is("(") {
		if expr.Arguments, err = p.parseArguments(); err != nil {
			return nil, err
		}
	}
	expr.Position = p.from(start)
	return expr, nil
}

// parsePropertyName parses the name after `.`; reserved words are allowed.
func (p *Parser) parsePropertyName() (*Identifier, error) {
	if p.tok.Type != TokenIdentifier {
		if p.tok.Is("#") {
			return nil, p.errorAt(p.tok, "private names are not supported")
		}
		return nil, p.unexpected()
	}
	id := &Identifier{Position: p.here(), Name: p.tok.Value}
	return id, p.next()
}

func (p *Parser) parseComputedKey() (Expression, error) {
	if err := p.expect("["); err != nil {
		return nil, err
	}
	saved := p.noIn
	p.noIn = false
	key, err := p.parseExpression()
	p.noIn = saved
	if err != nil {
		return nil, err
	}
	return key, p.expect("]")
}

func (p *Parser) parseArguments() ([]Expression, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	saved := p.noIn
	p.noIn = false
	defer func() { p.noIn = saved }()

	args := []Expression{}
	for !p.tok.Is(")") {
		arg, err := p.parseSpreadOrAssignment()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.tok.Is(")") {
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
	}
	return args, p.next()
}

func (p *Parser) parseSpreadOrAssignment() (Expression, error) {
	if !p.tok.Is("...") {
		return p.parseAssignment()
	}
	start := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	arg, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	return &SpreadElement{Position: p.from(start), Argument: arg}, nil
}

func (p *Parser) parsePrimary() (Expression, error) {
	tok := p.tok
	switch tok.Type {
	case TokenNumber:
		lit := &NumberLiteral{Position: p.here(), Value: tok.Num, Raw: tok.Raw}
		return lit, p.next()
	case TokenString:
		lit := &StringLiteral{Position: p.here(), Value: tok.Value}
		return lit, p.next()
	case TokenTemplate:
		return p.parseTemplate()
	case TokenIdentifier:
		return p.parseWord()
	case TokenPunct:
		switch tok.Value {
		case "(":
			return p.parseParenthesized()
		case "[":
			return p.parseArray()
		case "{":
			return p.parseObject()
		}
	}
	return nil, p.unexpected()
}

func (p *Parser) parseWord() (Expression, error) {
	tok := p.tok
	switch tok.Value {
	case "true", "false":
		lit := &BooleanLiteral{Position: p.here(), Value: tok.Value == "true"}
		return lit, p.next()
	case "null":
		lit := &NullLiteral{Position: p.here()}
		return lit, p.next()
	case "this":
		lit := &ThisExpression{Position: p.here()}
		return lit, p.next()
	case "function":
		return p.parseFunctionExpression(false)
	case "class":
		return p.parseClass(false)
	case "import":
		return p.parseImportCall()
	case "async":
		nextTok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if !nextTok.NewlineBefore {
			if nextTok.IsWord("function") {
				if err := p.next(); err != nil {
					return nil, err
				}
				fn, err := p.parseFunctionExpression(true)
				if err != nil {
					return nil, err
				}
				fn.Position = p.from(tok)
				return fn, nil
			}
			if nextTok.Type == TokenIdentifier && !reservedWords[nextTok.Value] {
				if err := p.next(); err != nil {
					return nil, err
				}
				param, err := p.parseBindingIdentifier()
				if err != nil {
					return nil, err
				}
				if !p.tok.Is("=>") {
					return nil, p.unexpected()
				}
				return p.parseArrowBody(Position{Loc: tokenLoc(tok), Start: tok.Start}, []Expression{param}, true)
			}
		}
	}

	if reservedWords[tok.Value] {
		return nil, p.unexpected()
	}
	id := &Identifier{Position: p.here(), Name: tok.Value}
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.tok.Is("=>") && !p.tok.NewlineBefore {
		return p.parseArrowBody(id.Position, []Expression{id}, false)
	}
	return id, nil
}

func (p *Parser) parseFunctionExpression(async bool) (*FunctionExpression, error) {
	decl, err := p.parseFunctionDeclaration(async, false)
	if err != nil {
		return nil, err
	}
	return &FunctionExpression{
		Position:  decl.Position,
		ID:        decl.ID,
		Params:    decl.Params,
		Body:      decl.Body,
		Async:     decl.Async,
		Generator: decl.Generator,
	}, nil
}

func (p *Parser) parseImportCall() (Expression, error) {
	start := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.tok.Is(".") {
		return nil, p.errorAt(p.tok, "import.meta is not supported")
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	source, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return &ImportExpression{Position: p.from(start), Source: source}, nil
}

// parseParenthesized handles both grouping and arrow parameter lists, which
// cannot be told apart until the closing parenthesis.
func (p *Parser) parseParenthesized() (Expression, error) {
	start := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	saved := p.noIn
	p.noIn = false

	var items []Expression
	hasRest := false
	for !p.tok.Is(")") {
		item, err := p.parseSpreadOrAssignment()
		if err != nil {
			p.noIn = saved
			return nil, err
		}
		if _, ok := item.(*SpreadElement); ok {
			hasRest = true
		}
		items = append(items, item)
		if !p.tok.Is(")") {
			if err := p.expect(","); err != nil {
				p.noIn = saved
				return nil, err
			}
			if hasRest {
				p.noIn = saved
				return nil, p.errorAt(p.tok, "rest parameter must be last formal parameter")
			}
		}
	}
	p.noIn = saved
	closing := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}

	if p.tok.Is("=>") && !p.tok.NewlineBefore {
		for _, item := range items {
			if !isParamTarget(item) {
				return nil, p.errorAt(start, "invalid arrow function parameters")
			}
		}
		return p.parseArrowBody(Position{Loc: tokenLoc(start), Start: start.Start}, items, false)
	}
	if len(items) == 0 || hasRest {
		return nil, p.errorAt(closing, "unexpected token ')'")
	}
	if len(items) == 1 {
		return items[0], nil
	}
	return &SequenceExpression{Position: Position{Loc: items[0].Pos(), Start: start.Start + 1, End: closing.Start}, Expressions: items}, nil
}

func isParamTarget(e Expression) bool {
	switch t := e.(type) {
	case *Identifier, *ObjectExpression, *ArrayExpression:
		return true
	case *AssignmentExpression:
		return t.Operator == "=" && isParamTarget(t.Left)
	case *SpreadElement:
		return isParamTarget(t.Argument)
	}
	return false
}

// parseArrowBody expects the current token to be `=>`.
func (p *Parser) parseArrowBody(pos Position, params []Expression, async bool) (Expression, error) {
	start := Token{Start: pos.Start, Line: pos.Loc.Line, Column: pos.Loc.Column}
	if err := p.expect("=>"); err != nil {
		return nil, err
	}
	arrow := &ArrowFunctionExpression{Params: params, Async: async}
	if p.tok.Is("{") {
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		arrow.Body = body
	} else {
		body, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		arrow.Body = body
	}
	arrow.Position = p.from(start)
	return arrow, nil
}

func (p *Parser) parseArray() (*ArrayExpression, error) {
	start := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	saved := p.noIn
	p.noIn = false
	defer func() { p.noIn = saved }()

	arr := &ArrayExpression{Elements: []Expression{}}
	for !p.tok.Is("]") {
		if p.tok.Is(",") {
			arr.Elements = append(arr.Elements, nil)
			if err := p.next(); err != nil {
				return nil, err
			}
			continue
		}
		el, err := p.parseSpreadOrAssignment()
		if err != nil {
			return nil, err
		}
		arr.Elements = append(arr.Elements, el)
		if !p.tok.Is("]") {
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	arr.Position = p.from(start)
	return arr, nil
}

func (p *Parser) parseObject() (*ObjectExpression, error) {
	start := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	saved := p.noIn
	p.noIn = false
	defer func() { p.noIn = saved }()

	obj := &ObjectExpression{Properties: []Node{}}
	for !p.tok.Is("}") {
		prop, err := p.parseObjectEntry()
		if err != nil {
			return nil, err
		}
		obj.Properties = append(obj.Properties, prop)
		if !p.tok.Is("}") {
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	obj.Position = p.from(start)
	return obj, nil
}

func (p *Parser) parseObjectEntry() (Node, error) {
	start := p.tok
	if p.tok.Is("...") {
		return p.parseSpreadOrAssignment()
	}

	prop := &Property{Kind: "init"}
	if p.tok.Is("*") {
		prop.Method = true
		if err := p.next(); err != nil {
			return nil, err
		}
	} else if p.tok.IsWord("get") || p.tok.IsWord("set") || p.tok.IsWord("async") {
		nextTok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if !nextTok.Is(":") && !nextTok.Is("(") && !nextTok.Is(",") && !nextTok.Is("}") && !nextTok.Is("=") {
			if !p.tok.IsWord("async") {
				prop.Kind = p.tok.Value
			}
			prop.Method = true
			if err := p.next(); err != nil {
				return nil, err
			}
			if p.tok.Is("*") {
				if err := p.next(); err != nil {
					return nil, err
				}
			}
		}
	}

	keyTok := p.tok
	switch keyTok.Type {
	case TokenIdentifier:
		prop.Key = &Identifier{Position: p.here(), Name: keyTok.Value}
	case TokenString:
		prop.Key = &StringLiteral{Position: p.here(), Value: keyTok.Value}
	case TokenNumber:
		prop.Key = &NumberLiteral{Position: p.here(), Value: keyTok.Num, Raw: keyTok.Raw}
	default:
		if !keyTok.Is("[") {
			return nil, p.unexpected()
		}
		key, err := p.parseComputedKey()
		if err != nil {
			return nil, err
		}
		prop.Key = key
		prop.Computed = true
	}
	if !prop.Computed {
		if err := p.next(); err != nil {
			return nil, err
		}
	}

	switch {
	case p.tok.Is("("):
		fnStart := p.tok
		params, err := p.parseParams()
		if err != nil {
			return nil, err
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		prop.Method = true
		prop.Value = &FunctionExpression{Position: p.from(fnStart), Params: params, Body: body}
	case prop.Method:
		return nil, p.unexpected()
	case p.tok.Is(":"):
		if err := p.next(); err != nil {
			return nil, err
		}
		value, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		prop.Value = value
	default:
		id, ok := prop.Key.(*Identifier)
		if !ok || prop.Computed || reservedWords[id.Name] {
			return nil, p.unexpected()
		}
		prop.Shorthand = true
		prop.Value = id
		if p.tok.Is("=") {
			// Only valid inside a destructuring pattern.
			if err := p.next(); err != nil {
				return nil, err
			}
			def, err := p.parseAssignment()
			if err != nil {
				return nil, err
			}
			prop.Value = &AssignmentExpression{Position: p.fromNode(id), Operator: "=", Left: id, Right: def}
		}
	}
	prop.Position = p.from(start)
	return prop, nil
}

// parseTemplate expects the current token to be the first template chunk.
func (p *Parser) parseTemplate() (*TemplateLiteral, error) {
	start := p.tok
	tpl := &TemplateLiteral{Quasis: []string{p.tok.Value}, Expressions: []Expression{}}
	saved := p.noIn
	p.noIn = false
	defer func() { p.noIn = saved }()

	for !p.tok.Tail {
		if err := p.next(); err != nil {
			return nil, err
		}
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if !p.tok.Is("}") {
			return nil, p.errorAt(p.tok, "expected '}' to close template substitution but found %s", p.tok.describe())
		}
		chunk, err := p.lexer.TemplateContinuation(p.tok.End)
		if err != nil {
			return nil, err
		}
		p.prevEnd, p.tok = p.tok.End, chunk
		tpl.Expressions = append(tpl.Expressions, expr)
		tpl.Quasis = append(tpl.Quasis, chunk.Value)
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	tpl.Position = p.from(start)
	return tpl, nil
}
