package enrollment

import (
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteGuard wires sessions and the access gate into the router.
type RouteGuard struct {
	store        SessionStore
	gate         *AccessGate
	cfg          Config
	now          func() time.Time
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

func NewRouteGuard(store SessionStore, gate *AccessGate, cfg Config) *RouteGuard {
	g := &RouteGuard{
		store:  store,
		gate:   gate,
		cfg:    cfg,
		now:    time.Now,
		Logger: defLogger{},
	}
	g.ErrorHandler = g.defaultErrHandler
	return g
}

func (g *RouteGuard) WithLogger(l Logger) *RouteGuard {
	g.Logger = normalizeLogger(l)
	return g
}

func (g *RouteGuard) WithClock(now func() time.Time) *RouteGuard {
	if now != nil {
		g.now = now
	}
	return g
}

// Gate returns the access gate used by RequireCapability.
func (g *RouteGuard) Gate() *AccessGate {
	return g.gate
}

func (g *RouteGuard) sessionTTL() time.Duration {
	if ttl := g.cfg.GetSessionTTL(); ttl > 0 {
		return ttl
	}
	return 24 * time.Hour
}

// Sessions loads the session named by the session cookie, exposes it and its
// principal on the request, and writes it back when it changed.
func (g *RouteGuard) Sessions() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			sess := g.loadSession(c)

			c.Locals(localsSessionKey, sess)
			if p, ok := sess.Principal(); ok {
				c.Locals(localsPrincipalKey, p)
				c.SetContext(WithPrincipalContext(c.Context(), p))
			}

			err := next(c)

			g.commitSession(c, sess)

			return err
		}
	}
}

func (g *RouteGuard) loadSession(c router.Context) *Session {
	if id := c.Cookies(g.cfg.GetSessionCookie()); id != "" {
		sess, err := g.store.Load(c.Context(), id)
		if err == nil {
			return sess
		}
		if !IsNotFound(err) {
			g.Logger.Error("failed to load session", "error", err)
		}
	}

	sess, err := NewSession(g.sessionTTL(), g.now())
	if err != nil {
		g.Logger.Error("failed to create session", "error", err)
		return &Session{Values: map[string]string{}}
	}
	// Only persisted once something is written to it.
	sess.dirty = false
	return sess
}

func (g *RouteGuard) commitSession(c router.Context, sess *Session) {
	if sess == nil || sess.ID == "" {
		return
	}

	if sess.Destroyed() {
		if err := g.store.Destroy(c.Context(), sess.ID); err != nil {
			g.Logger.Error("failed to destroy session", "error", err)
		}
		g.cookieDel(c, g.cfg.GetSessionCookie())
		return
	}

	if !sess.Dirty() {
		return
	}

	if err := g.store.Save(c.Context(), sess); err != nil {
		g.Logger.Error("failed to save session", "error", err)
		return
	}

	g.setCookie(c, g.cfg.GetSessionCookie(), sess.ID, sess.ExpiresAt)
}

// StartSession binds principal to the request's session under a fresh
// identifier and drops the previous one.
func (g *RouteGuard) StartSession(c router.Context, principal Principal) (*Session, error) {
	sess, ok := SessionFromRouter(c)
	if !ok {
		var err error
		if sess, err = NewSession(g.sessionTTL(), g.now()); err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create session")
		}
		c.Locals(localsSessionKey, sess)
	}

	old, err := sess.Regenerate()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to regenerate session")
	}
	if old != "" {
		if err := g.store.Destroy(c.Context(), old); err != nil {
			g.Logger.Warn("failed to drop previous session", "error", err)
		}
	}

	sess.Clear()
	sess.SetPrincipal(principal)
	sess.Touch(g.sessionTTL(), g.now())

	p := principal
	c.Locals(localsPrincipalKey, &p)
	c.SetContext(WithPrincipalContext(c.Context(), &p))

	return sess, nil
}

// EndSession invalidates the request's session and clears the token cookie.
func (g *RouteGuard) EndSession(c router.Context) {
	if sess, ok := SessionFromRouter(c); ok {
		sess.Invalidate()
	}
	g.cookieDel(c, g.cfg.GetTokenCookie())
}

// RequireCapability denies requests whose principal lacks capability.
func (g *RouteGuard) RequireCapability(capability Capability) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			principal, _ := PrincipalFromRouter(c)

			decision, err := g.gate.Check(c.Context(), principal, capability)
			if err != nil {
				g.Logger.Error("access gate check failed", "capability", capability, "error", err)
			}

			if !decision.Allowed {
				g.Logger.Info(
					"access denied",
					"capability", capability,
					"reason", decision.Reason,
					"path", c.OriginalURL(),
				)
				return g.deny(c, decision)
			}

			if decision.Account != nil {
				c.Locals(localsAccountKey, decision.Account)
				c.SetContext(WithAccountContext(c.Context(), decision.Account))
			}

			return next(c)
		}
	}
}

func (g *RouteGuard) deny(c router.Context, d Decision) error {
	if c.Method() == string(router.GET) && wantsHTML(c) {
		return c.Redirect(d.Redirect, http.StatusFound)
	}

	status := http.StatusForbidden
	if d.Reason == DenyUnauthenticated || d.Reason == DenyUnknownAccount {
		status = http.StatusUnauthorized
	}

	c.SetHeader("Location", d.Redirect)
	return c.JSON(status, d)
}

func wantsHTML(c router.Context) bool {
	return strings.Contains(c.GetString("Accept", ""), "text/html")
}

func (g *RouteGuard) setCookie(c router.Context, name, value string, expires time.Time) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    value,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   g.cfg.GetSecureCookies(),
		SameSite: "Lax",
	})
}

func (g *RouteGuard) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  g.now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   g.cfg.GetSecureCookies(),
		SameSite: "Lax",
	})
}

func (g *RouteGuard) defaultErrHandler(c router.Context, err error) error {
	status, richErr := StatusForError(err)

	g.Logger.Info(
		"request error",
		"error", richErr.Message,
		"category", richErr.Category,
		"text_code", richErr.TextCode,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	body := router.ViewContext{
		"error": richErr.Message,
		"code":  richErr.TextCode,
	}
	if status >= http.StatusInternalServerError {
		body["error"] = "An unexpected server error occurred"
	} else if len(richErr.Metadata) > 0 {
		body["metadata"] = richErr.Metadata
	}

	return c.JSON(status, body)
}

// StatusForError maps an error to an HTTP status and its rich form.
func StatusForError(err error) (int, *errors.Error) {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	if richErr.Code >= 400 && richErr.Code < 600 {
		return richErr.Code, richErr
	}

	switch richErr.Category {
	case errors.CategoryValidation, errors.CategoryBadInput:
		return http.StatusBadRequest, richErr
	case errors.CategoryConflict:
		return http.StatusConflict, richErr
	case errors.CategoryNotFound:
		return http.StatusNotFound, richErr
	case errors.CategoryAuth:
		return http.StatusUnauthorized, richErr
	case errors.CategoryAuthz:
		return http.StatusForbidden, richErr
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests, richErr
	}
	return http.StatusInternalServerError, richErr
}
