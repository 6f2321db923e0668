package parser

import "github.com/rendis/wfscript/pkg/schema"

// Node is implemented by every AST node. Type returns the ESTree node name,
// which error messages use to name the offending construct.
type Node interface {
	Type() string
	Pos() schema.Location
	Offsets() (start, end int)
}

// Expression is a Node that produces a value.
type Expression interface {
	Node
	exprNode()
}

// Statement is a Node that appears in a statement list.
type Statement interface {
	Node
	stmtNode()
}

// Position records where a node starts and the byte range it covers.
type Position struct {
	Loc        schema.Location
	Start, End int
}

func (p Position) Pos() schema.Location      { return p.Loc }
func (p Position) Offsets() (start, end int) { return p.Start, p.End }

// Program is the root node. Source keeps the text the offsets refer to.
type Program struct {
	Position
	Body   []Statement
	Source string
}

func (*Program) Type() string { return "Program" }

// --- Statements ---

// VariableDeclaration is `const|let|var a = 1, b = 2`.
type VariableDeclaration struct {
	Position
	Kind         string
	Declarations []*VariableDeclarator
}

// VariableDeclarator is one binding of a declaration. ID is an *Identifier
// or, for destructuring, an object/array pattern parsed as a literal.
type VariableDeclarator struct {
	Position
	ID   Expression
	Init Expression
}

// ExportDefaultDeclaration is `export default <expr>`.
type ExportDefaultDeclaration struct {
	Position
	Declaration Node
}

// ExportNamedDeclaration covers `export const ...`, `export function ...` and
// `export { ... }`.
type ExportNamedDeclaration struct {
	Position
	Declaration Statement
}

// ImportDeclaration is a static import.
type ImportDeclaration struct {
	Position
	Source string
}

type ExpressionStatement struct {
	Position
	Expression Expression
}

type EmptyStatement struct {
	Position
}

type BlockStatement struct {
	Position
	Body []Statement
}

type IfStatement struct {
	Position
	Test       Expression
	Consequent Statement
	Alternate  Statement
}

type ForStatement struct {
	Position
	Init   Node
	Test   Expression
	Update Expression
	Body   Statement
}

type ForInStatement struct {
	Position
	Left  Node
	Right Expression
	Body  Statement
}

type ForOfStatement struct {
	Position
	Left  Node
	Right Expression
	Body  Statement
}

type WhileStatement struct {
	Position
	Test Expression
	Body Statement
}

type DoWhileStatement struct {
	Position
	Body Statement
	Test Expression
}

type TryStatement struct {
	Position
	Block     *BlockStatement
	Param     Expression
	Handler   *BlockStatement
	Finalizer *BlockStatement
}

type ThrowStatement struct {
	Position
	Argument Expression
}

type ReturnStatement struct {
	Position
	Argument Expression
}

type BreakStatement struct {
	Position
	Label string
}

type ContinueStatement struct {
	Position
	Label string
}

type SwitchStatement struct {
	Position
	Discriminant Expression
	Cases        []*SwitchCase
}

// SwitchCase is one `case x:` or `default:` arm; Test is nil for default.
type SwitchCase struct {
	Position
	Test       Expression
	Consequent []Statement
}

type FunctionDeclaration struct {
	Position
	ID        *Identifier
	Params    []Expression
	Body      *BlockStatement
	Async     bool
	Generator bool
}

// ClassDeclaration is recognized so it can be rejected; its body is skipped.
type ClassDeclaration struct {
	Position
	ID         *Identifier
	SuperClass Expression
}

// --- Expressions ---

type Identifier struct {
	Position
	Name string
}

type NumberLiteral struct {
	Position
	Value float64
	Raw   string
}

type StringLiteral struct {
	Position
	Value string
}

type BooleanLiteral struct {
	Position
	Value bool
}

type NullLiteral struct {
	Position
}

// TemplateLiteral holds len(Expressions)+1 cooked static pieces.
type TemplateLiteral struct {
	Position
	Quasis      []string
	Expressions []Expression
}

type TaggedTemplateExpression struct {
	Position
	Tag   Expression
	Quasi *TemplateLiteral
}

// ObjectExpression entries are *Property or *SpreadElement.
type ObjectExpression struct {
	Position
	Properties []Node
}

// Property is one `key: value` entry. Key is an *Identifier, *StringLiteral
// or *NumberLiteral unless Computed is set.
type Property struct {
	Position
	Key       Expression
	Value     Expression
	Computed  bool
	Shorthand bool
	Method    bool
	Kind      string // init | get | set
}

// ArrayExpression elements may be nil for holes.
type ArrayExpression struct {
	Position
	Elements []Expression
}

type SpreadElement struct {
	Position
	Argument Expression
}

type UnaryExpression struct {
	Position
	Operator string
	Argument Expression
}

type UpdateExpression struct {
	Position
	Operator string
	Prefix   bool
	Argument Expression
}

type BinaryExpression struct {
	Position
	Operator string
	Left     Expression
	Right    Expression
}

type LogicalExpression struct {
	Position
	Operator string
	Left     Expression
	Right    Expression
}

type ConditionalExpression struct {
	Position
	Test       Expression
	Consequent Expression
	Alternate  Expression
}

type CallExpression struct {
	Position
	Callee    Expression
	Arguments []Expression
	Optional  bool
}

type NewExpression struct {
	Position
	Callee    Expression
	Arguments []Expression
}

// MemberExpression is `obj.prop` or `obj[expr]` (Computed).
type MemberExpression struct {
	Position
	Object   Expression
	Property Expression
	Computed bool
	Optional bool
}

type AssignmentExpression struct {
	Position
	Operator string
	Left     Expression
	Right    Expression
}

type SequenceExpression struct {
	Position
	Expressions []Expression
}

type ArrowFunctionExpression struct {
	Position
	Params []Expression
	Body   Node
	Async  bool
}

type FunctionExpression struct {
	Position
	ID        *Identifier
	Params    []Expression
	Body      *BlockStatement
	Async     bool
	Generator bool
}

type ThisExpression struct {
	Position
}

// ImportExpression is dynamic `import(source)`.
type ImportExpression struct {
	Position
	Source Expression
}

// AwaitExpression is recognized so it can be rejected.
type AwaitExpression struct {
	Position
	Argument Expression
}

func (*VariableDeclaration) Type() string      { return "VariableDeclaration" }
func (*VariableDeclarator) Type() string       { return "VariableDeclarator" }
func (*ExportDefaultDeclaration) Type() string { return "ExportDefaultDeclaration" }
func (*ExportNamedDeclaration) Type() string   { return "ExportNamedDeclaration" }
func (*ImportDeclaration) Type() string        { return "ImportDeclaration" }
func (*ExpressionStatement) Type() string      { return "ExpressionStatement" }
func (*EmptyStatement) Type() string           { return "EmptyStatement" }
func (*BlockStatement) Type() string           { return "BlockStatement" }
func (*IfStatement) Type() string              { return "IfStatement" }
func (*ForStatement) Type() string             { return "ForStatement" }
func (*ForInStatement) Type() string           { return "ForInStatement" }
func (*ForOfStatement) Type() string           { return "ForOfStatement" }
func (*WhileStatement) Type() string           { return "WhileStatement" }
func (*DoWhileStatement) Type() string         { return "DoWhileStatement" }
func (*TryStatement) Type() string             { return "TryStatement" }
func (*ThrowStatement) Type() string           { return "ThrowStatement" }
func (*ReturnStatement) Type() string          { return "ReturnStatement" }
func (*BreakStatement) Type() string           { return "BreakStatement" }
func (*ContinueStatement) Type() string        { return "ContinueStatement" }
func (*SwitchStatement) Type() string          { return "SwitchStatement" }
func (*SwitchCase) Type() string               { return "SwitchCase" }
func (*FunctionDeclaration) Type() string      { return "FunctionDeclaration" }
func (*ClassDeclaration) Type() string         { return "ClassDeclaration" }
func (*Identifier) Type() string               { return "Identifier" }
func (*NumberLiteral) Type() string            { return "NumberLiteral" }
func (*StringLiteral) Type() string            { return "StringLiteral" }
func (*BooleanLiteral) Type() string           { return "BooleanLiteral" }
func (*NullLiteral) Type() string              { return "NullLiteral" }
func (*TemplateLiteral) Type() string          { return "TemplateLiteral" }
func (*TaggedTemplateExpression) Type() string { return "TaggedTemplateExpression" }
func (*ObjectExpression) Type() string         { return "ObjectExpression" }
func (*Property) Type() string                 { return "Property" }
func (*ArrayExpression) Type() string          { return "ArrayExpression" }
func (*SpreadElement) Type() string            { return "SpreadElement" }
func (*UnaryExpression) Type() string          { return "UnaryExpression" }
func (*UpdateExpression) Type() string         { return "UpdateExpression" }
func (*BinaryExpression) Type() string         { return "BinaryExpression" }
func (*LogicalExpression) Type() string        { return "LogicalExpression" }
func (*ConditionalExpression) Type() string    { return "ConditionalExpression" }
func (*CallExpression) Type() string           { return "CallExpression" }
func (*NewExpression) Type() string            { return "NewExpression" }
func (*MemberExpression) Type() string         { return "MemberExpression" }
func (*AssignmentExpression) Type() string     { return "AssignmentExpression" }
func (*SequenceExpression) Type() string       { return "SequenceExpression" }
func (*ArrowFunctionExpression) Type() string  { return "ArrowFunctionExpression" }
func (*FunctionExpression) Type() string       { return "FunctionExpression" }
func (*ThisExpression) Type() string           { return "ThisExpression" }
func (*ImportExpression) Type() string         { return "ImportExpression" }
func (*AwaitExpression) Type() string          { return "AwaitExpression" }

func (*VariableDeclaration) stmtNode()      {}
func (*ExportDefaultDeclaration) stmtNode() {}
func (*ExportNamedDeclaration) stmtNode()   {}
func (*ImportDeclaration) stmtNode()        {}
func (*ExpressionStatement) stmtNode()      {}
func (*EmptyStatement) stmtNode()           {}
func (*BlockStatement) stmtNode()           {}
func (*IfStatement) stmtNode()              {}
func (*ForStatement) stmtNode()             {}
func (*ForInStatement) stmtNode()           {}
func (*ForOfStatement) stmtNode()           {}
func (*WhileStatement) stmtNode()           {}
func (*DoWhileStatement) stmtNode()         {}
func (*TryStatement) stmtNode()             {}
func (*ThrowStatement) stmtNode()           {}
func (*ReturnStatement) stmtNode()          {}
func (*BreakStatement) stmtNode()           {}
func (*ContinueStatement) stmtNode()        {}
func (*SwitchStatement) stmtNode()          {}
func (*FunctionDeclaration) stmtNode()      {}
func (*ClassDeclaration) stmtNode()         {}

func (*Identifier) exprNode()               {}
func (*NumberLiteral) exprNode()            {}
func (*StringLiteral) exprNode()            {}
func (*BooleanLiteral) exprNode()           {}
func (*NullLiteral) exprNode()              {}
func (*TemplateLiteral) exprNode()          {}
func (*TaggedTemplateExpression) exprNode() {}
func (*ObjectExpression) exprNode()         {}
func (*ArrayExpression) exprNode()          {}
func (*SpreadElement) exprNode()            {}
func (*UnaryExpression) exprNode()          {}
func (*UpdateExpression) exprNode()         {}
func (*BinaryExpression) exprNode()         {}
func (*LogicalExpression) exprNode()        {}
func (*ConditionalExpression) exprNode()    {}
func (*CallExpression) exprNode()           {}
func (*NewExpression) exprNode()            {}
func (*MemberExpression) exprNode()         {}
func (*AssignmentExpression) exprNode()     {}
func (*SequenceExpression) exprNode()       {}
func (*ArrowFunctionExpression) exprNode()  {}
func (*FunctionExpression) exprNode()       {}
func (*ThisExpression) exprNode()           {}
func (*ImportExpression) exprNode()         {}
func (*AwaitExpression) exprNode()          {}
func (*ClassDeclaration) exprNode()         {}
