package privacy_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobilizeio/partitioned/privacy"
	"github.com/mobilizeio/partitioned/schema"
	"github.com/mobilizeio/partitioned/statement"
)

func statements(t *testing.T) (ins, upd, del, sel statement.Statement) {
	t.Helper()
	b := statement.NewBuilder()
	attrs := schema.NewAttributes("name", "x", "created_at", "2019-06-01")
	where := []statement.Constraint{statement.EQ("id", 1)}
	var err error
	ins, err = b.Insert("events_2019_06", attrs, "")
	require.NoError(t, err)
	upd, err = b.Update("events_2019_06", attrs, where)
	require.NoError(t, err)
	del, err = b.Delete("events_2019_06", where)
	require.NoError(t, err)
	sel, err = b.Select("events", nil, statement.Criteria{})
	require.NoError(t, err)
	return ins, upd, del, sel
}

func TestDecisions(t *testing.T) {
	err := privacy.Denyf("no %s", "access")
	assert.True(t, errors.Is(err, privacy.Deny))
	assert.Equal(t, "no access: partitioned/privacy: deny rule", err.Error())
	assert.True(t, errors.Is(privacy.Allowf("ok"), privacy.Allow))
	assert.True(t, errors.Is(privacy.Skipf("pass"), privacy.Skip))
}

func TestPolicy(t *testing.T) {
	ctx := context.Background()
	ins, _, _, sel := statements(t)

	t.Run("Empty", func(t *testing.T) {
		assert.NoError(t, privacy.Policy{}.EvalStatement(ctx, ins))
	})

	t.Run("FirstDecisionWins", func(t *testing.T) {
		p := privacy.Policy{privacy.AlwaysAllowRule(), privacy.AlwaysDenyRule()}
		assert.NoError(t, p.EvalStatement(ctx, ins))
		p = privacy.Policy{privacy.AlwaysDenyRule(), privacy.AlwaysAllowRule()}
		assert.True(t, errors.Is(p.EvalStatement(ctx, ins), privacy.Deny))
	})

	t.Run("SkipAndNil", func(t *testing.T) {
		p := privacy.Policy{
			privacy.RuleFunc(func(context.Context, statement.Statement) error { return nil }),
			privacy.ContextRule(func(context.Context) error { return privacy.Skip }),
			privacy.AlwaysDenyRule(),
		}
		assert.True(t, errors.Is(p.EvalStatement(ctx, sel), privacy.Deny))
	})

	t.Run("CustomError", func(t *testing.T) {
		boom := errors.New("boom")
		p := privacy.Policy{privacy.RuleFunc(func(context.Context, statement.Statement) error { return boom })}
		assert.Equal(t, boom, p.EvalStatement(ctx, ins))
	})

	t.Run("DecisionContext", func(t *testing.T) {
		p := privacy.Policy{privacy.AlwaysDenyRule()}
		allowed := privacy.DecisionContext(ctx, privacy.Allow)
		assert.NoError(t, p.EvalStatement(allowed, ins))

		skipped := privacy.DecisionContext(ctx, privacy.Skip)
		_, ok := privacy.DecisionFromContext(skipped)
		assert.False(t, ok)

		denied := privacy.DecisionContext(ctx, privacy.Denyf("maintenance"))
		assert.True(t, errors.Is(privacy.Policy{}.EvalStatement(denied, sel), privacy.Deny))
	})
}

func TestKindRules(t *testing.T) {
	ctx := context.Background()
	ins, upd, del, sel := statements(t)
	p := privacy.Policy{privacy.DenyKindRule(statement.KindDelete)}
	assert.NoError(t, p.EvalStatement(ctx, ins))
	assert.NoError(t, p.EvalStatement(ctx, upd))
	assert.NoError(t, p.EvalStatement(ctx, sel))
	err := p.EvalStatement(ctx, del)
	require.True(t, errors.Is(err, privacy.Deny))
	assert.Contains(t, err.Error(), "delete on events_2019_06 is not allowed")
}

func TestReadOnlyTables(t *testing.T) {
	ctx := context.Background()
	ins, upd, del, sel := statements(t)
	p := privacy.Policy{
		privacy.HasRole("archivist"),
		privacy.ReadOnlyTables(regexp.MustCompile(`^events_2019_`)),
	}
	for _, st := range []statement.Statement{ins, upd, del} {
		assert.True(t, errors.Is(p.EvalStatement(ctx, st), privacy.Deny), st.Kind().String())
	}
	assert.NoError(t, p.EvalStatement(ctx, sel))

	archivist := privacy.WithViewer(ctx, &privacy.SimpleViewer{UserID: "u1", Roles: []string{"archivist"}})
	assert.NoError(t, p.EvalStatement(archivist, del))

	reader := privacy.WithViewer(ctx, &privacy.SimpleViewer{UserID: "u2", Roles: []string{"reader"}})
	assert.Error(t, p.EvalStatement(reader, del))
}

func TestViewerRules(t *testing.T) {
	ctx := context.Background()
	ins, _, _, _ := statements(t)
	p := privacy.Policy{privacy.DenyIfNoViewer()}
	assert.True(t, errors.Is(p.EvalStatement(ctx, ins), privacy.Deny))

	viewer := &privacy.SimpleViewer{UserID: "u1"}
	ctx = privacy.WithViewer(ctx, viewer)
	assert.NoError(t, p.EvalStatement(ctx, ins))
	assert.Equal(t, "u1", privacy.ViewerFromContext(ctx).GetID())
}

func TestDenyLogicalScans(t *testing.T) {
	ctx := context.Background()
	ins, _, _, sel := statements(t)
	p := privacy.Policy{privacy.DenyLogicalScans("events")}
	err := p.EvalStatement(ctx, sel)
	require.True(t, errors.Is(err, privacy.Deny))
	assert.Contains(t, err.Error(), "select on events must target a partition")
	assert.NoError(t, p.EvalStatement(ctx, ins))
}
