// Package access classifies callers into principals and decides which operations each may perform.
package access

import (
	"context"
	"fmt"

	"github.com/bvabank/backend/internal/models"
)

type Kind int

const (
	Anonymous Kind = iota
	User
	Admin
)

func (k Kind) String() string {
	switch k {
	case User:
		return "user"
	case Admin:
		return "admin"
	}
	return "anonymous"
}

// Capability names an operation family guarded by the gate.
type Capability string

const (
	ManageAccounts     Capability = "manage_accounts"
	MutateBalances     Capability = "mutate_balances"
	ReviewTransactions Capability = "review_transactions"
	ReadAll            Capability = "read_all"
	ReadOwn            Capability = "read_own"
	SelfAdjust         Capability = "self_adjust"
)

var grants = map[Kind]map[Capability]bool{
	Admin: {
		ManageAccounts:     true,
		MutateBalances:     true,
		ReviewTransactions: true,
		ReadAll:            true,
	},
	User: {
		ReadOwn:    true,
		SelfAdjust: true,
	},
}

// Principal is the authenticated identity behind a request.
// AccountID is set only for User principals.
type Principal struct {
	Kind      Kind
	AccountID string
	Email     string
}

func (p Principal) Allows(c Capability) bool {
	return grants[p.Kind][c]
}

// Authorize returns ErrUnauthorized for anonymous callers and ErrForbidden when an
// authenticated principal lacks the capability.
func Authorize(p Principal, c Capability) error {
	if p.Kind == Anonymous {
		return fmt.Errorf("%w: credential required", models.ErrUnauthorized)
	}
	if !p.Allows(c) {
		return fmt.Errorf("%w: %s credential cannot %s", models.ErrForbidden, p.Kind, c)
	}
	return nil
}

type contextKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the request principal, or an Anonymous one if none was attached.
func FromContext(ctx context.Context) Principal {
	p, ok := ctx.Value(contextKey{}).(Principal)
	if !ok {
		return Principal{Kind: Anonymous}
	}
	return p
}
