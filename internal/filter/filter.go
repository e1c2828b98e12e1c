package filter

import (
	"fmt"

	"github.com/duckhq/duckwatch/internal/buildmodel"
)

// BuildContext adapts a buildmodel.Build to EvalContext.
type BuildContext struct{ Build buildmodel.Build }

func (c BuildContext) Get(p Property) Value {
	switch p {
	case PropertyBranch:
		return StringValue(c.Build.Branch)
	case PropertyStatus:
		return StatusValue(c.Build.Status)
	case PropertyProject:
		return StringValue(c.Build.ProjectID)
	case PropertyDefinition:
		return StringValue(c.Build.DefinitionID)
	case PropertyBuild:
		return StringValue(c.Build.BuildID)
	case PropertyCollector:
		return StringValue(c.Build.Collector)
	case PropertyProvider:
		return StringValue(c.Build.Provider.String())
	default:
		return Value{}
	}
}

// stubContext is the neutral context Validate evaluates a parsed
// expression against: every property reads as its zero value, just
// enough to determine the expression's top-level result type without a
// real build on hand.
type stubContext struct{}

func (stubContext) Get(p Property) Value {
	if p == PropertyStatus {
		return StatusValue(buildmodel.StatusUnknown)
	}
	return StringValue("")
}

// Filter wraps an optional parsed, validated expression and evaluates
// it against builds. A nil expression (no filter configured) retains
// everything.
type Filter struct {
	expr Expr
}

// New parses and validates expression (if non-empty) and returns a
// Filter ready to evaluate builds against it.
func New(expression string) (*Filter, error) {
	if expression == "" {
		return &Filter{}, nil
	}
	expr, err := Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parsing filter expression: %w", err)
	}
	if err := Validate(expr); err != nil {
		return nil, fmt.Errorf("validating filter expression: %w", err)
	}
	return &Filter{expr: expr}, nil
}

// Validate rejects any expression whose top-level type, evaluated
// against the neutral stub context, is not boolean.
func Validate(expr Expr) error {
	v, err := expr.accept(stubContext{})
	if err != nil {
		return err
	}
	if v.Kind != KindBool {
		return fmt.Errorf("expression must evaluate to a boolean, got %s", kindName(v.Kind))
	}
	return nil
}

// Result is the outcome of evaluating a Filter against a build.
type Result int

const (
	Retain Result = iota
	Reject
)

// Evaluate returns Retain when no expression is configured, or the
// expression's result against b. A build is never silently retained on
// an evaluation error; the caller gets the error instead.
func (f *Filter) Evaluate(b buildmodel.Build) (Result, error) {
	if f.expr == nil {
		return Retain, nil
	}
	v, err := f.expr.accept(BuildContext{Build: b})
	if err != nil {
		return Reject, err
	}
	if v.Kind != KindBool {
		return Reject, fmt.Errorf("expression did not evaluate to a boolean")
	}
	if v.Bool {
		return Retain, nil
	}
	return Reject, nil
}
