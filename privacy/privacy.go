package privacy

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/mobilizeio/partitioned/statement"
)

// Policy decision sentinel errors. Rules wrap them; check with errors.Is.
var (
	// Allow terminates the evaluation with an allow decision.
	Allow = errors.New("partitioned/privacy: allow rule")

	// Deny terminates the evaluation with a deny decision.
	Deny = errors.New("partitioned/privacy: deny rule")

	// Skip continues the evaluation with the next rule.
	Skip = errors.New("partitioned/privacy: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted wrapped Deny decision.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// Rule decides whether a statement may run.
type Rule interface {
	EvalStatement(context.Context, statement.Statement) error
}

// RuleFunc is an adapter which allows the use of ordinary functions as
// rules.
type RuleFunc func(context.Context, statement.Statement) error

// EvalStatement returns f(ctx, st).
func (f RuleFunc) EvalStatement(ctx context.Context, st statement.Statement) error {
	return f(ctx, st)
}

// Policy combines rules, evaluated in order.
type Policy []Rule

// EvalStatement evaluates the rules of the policy. A decision attached to
// ctx with DecisionContext takes precedence over the rules.
func (p Policy) EvalStatement(ctx context.Context, st statement.Statement) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, rule := range p {
		switch decision := rule.EvalStatement(ctx, st); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return nil
}

// AlwaysAllowRule returns a rule that always allows.
func AlwaysAllowRule() Rule {
	return fixedDecision{Allow}
}

// AlwaysDenyRule returns a rule that always denies.
func AlwaysDenyRule() Rule {
	return fixedDecision{Deny}
}

// ContextRule creates a rule from a context evaluation function.
func ContextRule(eval func(context.Context) error) Rule {
	return RuleFunc(func(ctx context.Context, _ statement.Statement) error {
		return eval(ctx)
	})
}

// OnKind evaluates rule only on statements of the given kinds.
func OnKind(rule Rule, kinds ...statement.Kind) Rule {
	return RuleFunc(func(ctx context.Context, st statement.Statement) error {
		if slices.Contains(kinds, st.Kind()) {
			return rule.EvalStatement(ctx, st)
		}
		return Skip
	})
}

// DenyKindRule returns a rule denying statements of the given kinds.
func DenyKindRule(kinds ...statement.Kind) Rule {
	rule := RuleFunc(func(_ context.Context, st statement.Statement) error {
		return Denyf("partitioned/privacy: %s on %s is not allowed", st.Kind(), st.Table())
	})
	return OnKind(rule, kinds...)
}

type decisionCtxKey struct{}

// DecisionContext returns a context carrying a policy decision.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext retrieves the policy decision from the context.
// An Allow decision is returned as nil.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	if ok && errors.Is(decision, Allow) {
		decision = nil
	}
	return decision, ok
}

type fixedDecision struct {
	decision error
}

func (f fixedDecision) EvalStatement(context.Context, statement.Statement) error {
	return f.decision
}
