package privacy

import (
	"context"
	"regexp"
	"slices"

	"github.com/mobilizeio/partitioned/statement"
)

// Viewer represents the authenticated caller.
type Viewer interface {
	GetID() string
	GetRoles() []string
}

type viewerCtxKey struct{}

// WithViewer returns a new context with the viewer attached.
func WithViewer(ctx context.Context, viewer Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, viewer)
}

// ViewerFromContext retrieves the viewer from the context, or nil.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// SimpleViewer is a basic Viewer.
type SimpleViewer struct {
	UserID string
	Roles  []string
}

// GetID returns the user ID.
func (v *SimpleViewer) GetID() string { return v.UserID }

// GetRoles returns the user's roles.
func (v *SimpleViewer) GetRoles() []string { return v.Roles }

// DenyIfNoViewer denies statements issued without a viewer in the context.
func DenyIfNoViewer() Rule {
	return ContextRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("partitioned/privacy: viewer required")
		}
		return Skip
	})
}

// HasRole allows statements of viewers with any of the given roles, and
// skips otherwise.
func HasRole(roles ...string) Rule {
	return ContextRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		for _, role := range roles {
			if slices.Contains(viewer.GetRoles(), role) {
				return Allow
			}
		}
		return Skip
	})
}

// ReadOnlyTables denies inserts, updates and deletes on physical tables
// matching re, such as archived partitions.
func ReadOnlyTables(re *regexp.Regexp) Rule {
	rule := RuleFunc(func(_ context.Context, st statement.Statement) error {
		if re.MatchString(st.Table()) {
			return Denyf("partitioned/privacy: %s is read-only", st.Table())
		}
		return Skip
	})
	return OnKind(rule, statement.KindInsert, statement.KindUpdate, statement.KindDelete)
}

// DenyLogicalScans denies selects on the given logical tables, forcing
// queries to pin every partition-key column.
func DenyLogicalScans(tables ...string) Rule {
	rule := RuleFunc(func(_ context.Context, st statement.Statement) error {
		if slices.Contains(tables, st.Table()) {
			return Denyf("partitioned/privacy: select on %s must target a partition", st.Table())
		}
		return Skip
	})
	return OnKind(rule, statement.KindSelect)
}
