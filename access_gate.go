package enrollment

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Capability is what a route requires of the caller.
type Capability string

const (
	CapabilityAuthenticated     Capability = "authenticated"
	CapabilityAdmin             Capability = "admin"
	CapabilityVerifiedAndActive Capability = "verified_and_active"
)

// DenyReason explains a negative Decision.
type DenyReason string

const (
	DenyNone            DenyReason = ""
	DenyUnauthenticated DenyReason = "unauthenticated"
	DenyNotAdmin        DenyReason = "not_admin"
	DenyPendingReview   DenyReason = "pending_review"
	DenyDeclined        DenyReason = "declined"
	DenyDeactivated     DenyReason = "deactivated"
	DenyUnknownAccount  DenyReason = "unknown_account"
)

// GateRoutes are the entry points denied callers are sent to.
type GateRoutes struct {
	Login        string
	AdminLogin   string
	Approval     string
	Resubmission string
}

// DefaultGateRoutes returns the standard entry points.
func DefaultGateRoutes() GateRoutes {
	return GateRoutes{
		Login:        "/login",
		AdminLogin:   "/login/admin",
		Approval:     "/approval",
		Resubmission: "/resubmission",
	}
}

// Decision is the outcome of a gate check.
type Decision struct {
	Allowed  bool       `json:"allowed"`
	Reason   DenyReason `json:"reason,omitempty"`
	Detail   string     `json:"detail,omitempty"`
	Redirect string     `json:"redirect,omitempty"`
	Account  *Account   `json:"-"`
}

// AccountFinder loads accounts by id.
type AccountFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
}

// AccessGate classifies a session principal against a capability.
// It only reads.
type AccessGate struct {
	accounts      AccountFinder
	adminUsername string
	routes        GateRoutes
	logger        Logger
}

// NewAccessGate returns a gate; an empty adminUsername falls back to "admin".
func NewAccessGate(accounts AccountFinder, adminUsername string) *AccessGate {
	adminUsername = strings.TrimSpace(adminUsername)
	if adminUsername == "" {
		adminUsername = DefaultAdminUsername
	}
	return &AccessGate{
		accounts:      accounts,
		adminUsername: adminUsername,
		routes:        DefaultGateRoutes(),
		logger:        defLogger{},
	}
}

func (g *AccessGate) WithLogger(l Logger) *AccessGate {
	g.logger = normalizeLogger(l)
	return g
}

func (g *AccessGate) WithRoutes(routes GateRoutes) *AccessGate {
	g.routes = routes
	return g
}

// Routes returns the configured entry points.
func (g *AccessGate) Routes() GateRoutes {
	return g.routes
}

// IsAdmin reports whether account is the reserved administrator.
func (g *AccessGate) IsAdmin(account *Account) bool {
	return account != nil && account.Username == g.adminUsername
}

// Check decides whether principal holds capability. Store failures while
// checking Admin deny instead of erroring; for VerifiedAndActive they are
// returned alongside a deny.
func (g *AccessGate) Check(ctx context.Context, principal *Principal, capability Capability) (Decision, error) {
	if principal == nil || principal.AccountID == uuid.Nil {
		redirect := g.routes.Login
		if capability == CapabilityAdmin {
			redirect = g.routes.AdminLogin
		}
		return g.deny(DenyUnauthenticated, "", redirect), nil
	}

	switch capability {
	case CapabilityAuthenticated:
		return Decision{Allowed: true}, nil
	case CapabilityAdmin:
		return g.checkAdmin(ctx, principal), nil
	case CapabilityVerifiedAndActive:
		return g.checkVerifiedAndActive(ctx, principal)
	}

	g.logger.Warn("access gate: unknown capability", "capability", capability)
	return g.deny(DenyUnauthenticated, "", g.routes.Login), nil
}

func (g *AccessGate) checkAdmin(ctx context.Context, principal *Principal) Decision {
	account, err := g.accounts.FindByID(ctx, principal.AccountID)
	if err != nil || account == nil {
		if err != nil && !IsNotFound(err) {
			g.logger.Error("access gate: admin lookup failed", "error", err)
		}
		return g.deny(DenyNotAdmin, "", g.routes.AdminLogin)
	}

	if !g.IsAdmin(account) {
		return g.deny(DenyNotAdmin, "", g.routes.AdminLogin)
	}

	return Decision{Allowed: true, Account: account}
}

func (g *AccessGate) checkVerifiedAndActive(ctx context.Context, principal *Principal) (Decision, error) {
	account, err := g.accounts.FindByID(ctx, principal.AccountID)
	if err != nil {
		if IsNotFound(err) {
			return g.deny(DenyUnknownAccount, "", g.routes.Login), nil
		}
		return g.deny(DenyUnknownAccount, "", g.routes.Login), err
	}

	status := account.AccessStatus()
	var decision Decision
	switch status.Kind {
	case AccessGranted:
		return Decision{Allowed: true, Account: account}, nil
	case AccessDeactivated:
		decision = g.deny(DenyDeactivated, status.Message(), g.routes.Approval)
	case AccessPendingReview:
		decision = g.deny(DenyPendingReview, status.Message(), g.routes.Approval)
	default:
		decision = g.deny(DenyDeclined, status.Reason, g.routes.Resubmission)
	}
	decision.Account = account
	return decision, nil
}

func (g *AccessGate) deny(reason DenyReason, detail, redirect string) Decision {
	return Decision{
		Allowed:  false,
		Reason:   reason,
		Detail:   detail,
		Redirect: redirect,
	}
}
