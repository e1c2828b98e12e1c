// Package filter implements the small typed boolean expression language
// spec §4.3 describes: a grammar over build properties, a visitor-based
// evaluator, and a validator that rejects any expression whose top-level
// type is not boolean.
package filter

import "github.com/duckhq/duckwatch/internal/buildmodel"

// Property names a build attribute an expression can read.
type Property int

const (
	PropertyBranch Property = iota
	PropertyStatus
	PropertyProject
	PropertyDefinition
	PropertyBuild
	PropertyCollector
	PropertyProvider
)

// Operator is a relational comparison operator.
type Operator int

const (
	OpEq Operator = iota
	OpNeq
	OpGt
	OpGte
	OpLt
	OpLte
)

// ValueKind tags the dynamic type a Value carries.
type ValueKind int

const (
	KindInt ValueKind = iota
	KindString
	KindBool
	KindStatus
)

// Value is a typed literal or evaluation result. Exactly one of the
// fields matching Kind is meaningful.
type Value struct {
	Kind   ValueKind
	Int    int64
	Str    string
	Bool   bool
	Status buildmodel.Status
}

func IntValue(v int64) Value               { return Value{Kind: KindInt, Int: v} }
func StringValue(v string) Value           { return Value{Kind: KindString, Str: v} }
func BoolValue(v bool) Value               { return Value{Kind: KindBool, Bool: v} }
func StatusValue(v buildmodel.Status) Value { return Value{Kind: KindStatus, Status: v} }

// Expr is a node in the parsed abstract syntax tree.
type Expr interface {
	accept(ctx EvalContext) (Value, error)
}

// EvalContext supplies property values for the build (or the neutral
// stub used by Validate) an expression is evaluated against.
type EvalContext interface {
	Get(p Property) Value
}

type literalExpr struct{ value Value }

func (e literalExpr) accept(ctx EvalContext) (Value, error) { return e.value, nil }

type propertyExpr struct{ property Property }

func (e propertyExpr) accept(ctx EvalContext) (Value, error) { return ctx.Get(e.property), nil }

type notExpr struct{ operand Expr }

type andExpr struct{ left, right Expr }

type orExpr struct{ left, right Expr }

type compareExpr struct {
	left, right Expr
	op          Operator
}
