package enrollment

import (
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// RegisterEnrollmentRoutes mounts every public, student and admin route.
func RegisterEnrollmentRoutes[T any](app router.Router[T], controller *EnrollmentController) {
	guard := controller.Guard

	authenticated := guard.RequireCapability(CapabilityAuthenticated)
	student := guard.RequireCapability(CapabilityVerifiedAndActive)
	admin := guard.RequireCapability(CapabilityAdmin)

	app.Get("/health", controller.Health).SetName("health.get")

	app.Post("/login", controller.LoginPost).SetName("sign-in.post")
	app.Post("/login/admin", controller.AdminLoginPost).SetName("sign-in-admin.post")
	app.Post("/logout", controller.LogOut).SetName("sign-out.post")
	app.Get("/check-auth", controller.CheckAuth).SetName("check-auth.get")
	app.Post("/register", controller.RegistrationCreate).SetName("register.post")

	app.Get("/approval", controller.ApprovalShow, authenticated).SetName("approval.get")
	app.Post("/resubmission", controller.ResubmissionCreate, authenticated).SetName("resubmission.post")

	app.Get("/profile", controller.ProfileShow, student).SetName("profile.get")
	app.Post("/profile", controller.ProfileUpdate, student).SetName("profile.post")
	app.Post("/stats", controller.EmotionCreate, student).SetName("stats.post")
	app.Get("/user/stats", controller.EmotionIndex, student).SetName("user-stats.get")
	app.Get("/user/stats/chart", controller.EmotionChart, student).SetName("user-stats-chart.get")
	app.Delete("/emotion/:id", controller.EmotionDelete, student).SetName("emotion.delete")

	app.Post("/forgot-password", controller.PasswordResetPost).SetName("pwd-reset.post")
	app.Post("/change-password", controller.PasswordResetVerify).SetName("pwd-reset-verify.post")
	app.Post("/update-password", controller.PasswordResetExecute).SetName("pwd-reset-do.post")

	app.Get("/homeadmin/:filter", controller.AdminAccountsIndex, admin).SetName("admin-home.get")
	app.Get("/approval-request", controller.AdminPendingIndex, admin).SetName("admin-pending.get")
	app.Get("/declined-request", controller.AdminDeclinedIndex, admin).SetName("admin-declined.get")
	app.Post("/approve/:id", controller.reviewAction(ReviewApprove), admin).SetName("admin-approve.post")
	app.Post("/decline/:id", controller.reviewAction(ReviewDecline), admin).SetName("admin-decline.post")
	app.Post("/activate/:id", controller.reviewAction(ReviewActivate), admin).SetName("admin-activate.post")
	app.Post("/deactivate/:id", controller.reviewAction(ReviewDeactivate), admin).SetName("admin-deactivate.post")
	app.Get("/admin/accounts/:id/stats/chart", controller.AdminAccountChart, admin).SetName("admin-chart.get")
	app.Post("/admin/reset-password", controller.AdminResetPassword, admin).SetName("admin-pwd-reset.post")
}

type EnrollmentController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Config       Config
	Guard        *RouteGuard
	Machine      LifecycleMachine
	Verifier     *CredentialVerifier
	Rotator      *PasswordRotator
	OTP          *OTPManager
	Tokens       TokenService
	Mailer       Mailer
	Activity     ActivitySink
	ErrorHandler router.ErrorHandler
}

type EnrollmentControllerOption func(*EnrollmentController) *EnrollmentController

func WithControllerDebug(debug bool) EnrollmentControllerOption {
	return func(c *EnrollmentController) *EnrollmentController {
		c.Debug = debug
		return c
	}
}

func WithControllerLogger(l Logger) EnrollmentControllerOption {
	return func(c *EnrollmentController) *EnrollmentController {
		c.Logger = normalizeLogger(l)
		return c
	}
}

func WithControllerMailer(m Mailer) EnrollmentControllerOption {
	return func(c *EnrollmentController) *EnrollmentController {
		c.Mailer = m
		return c
	}
}

func WithControllerActivitySink(sink ActivitySink) EnrollmentControllerOption {
	return func(c *EnrollmentController) *EnrollmentController {
		c.Activity = normalizeActivitySink(sink)
		return c
	}
}

func WithControllerGuard(g *RouteGuard) EnrollmentControllerOption {
	return func(c *EnrollmentController) *EnrollmentController {
		c.Guard = g
		return c
	}
}

// NewEnrollmentController builds the controller and any collaborator not set
// through options from repo and cfg.
func NewEnrollmentController(repo RepositoryManager, cfg Config, opts ...EnrollmentControllerOption) *EnrollmentController {
	if repo == nil {
		panic("Missing RepositoryManager in enrollment controller...")
	}

	c := &EnrollmentController{
		Logger:   defLogger{},
		Repo:     repo,
		Config:   cfg,
		Activity: noopActivitySink{},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Guard == nil {
		gate := NewAccessGate(repo.Accounts(), cfg.GetAdminUsername()).WithLogger(c.Logger)
		c.Guard = NewRouteGuard(repo.Sessions(), gate, cfg).WithLogger(c.Logger)
	}
	if c.ErrorHandler == nil {
		c.ErrorHandler = c.Guard.ErrorHandler
	}
	if c.Machine == nil {
		c.Machine = NewLifecycleMachine(repo,
			WithStateMachineLogger(c.Logger),
			WithStateMachineActivitySink(c.Activity),
		)
	}
	if c.Verifier == nil {
		c.Verifier = NewCredentialVerifier(repo.Accounts()).
			WithLogger(c.Logger).
			WithActivitySink(c.Activity)
	}
	if c.Rotator == nil {
		c.Rotator = NewPasswordRotator(repo.Accounts(), cfg.GetMinPasswordLength()).
			WithLogger(c.Logger).
			WithActivitySink(c.Activity)
	}
	if c.OTP == nil {
		c.OTP = NewOTPManager(repo.Accounts(), c.Mailer, cfg.GetOTPTTL()).
			WithLogger(c.Logger).
			WithActivitySink(c.Activity)
	}
	if c.Tokens == nil {
		c.Tokens = NewTokenService([]byte(cfg.GetSigningKey()), cfg.GetTokenExpiration(), cfg.GetIssuer(), c.Logger)
	}

	return c
}

func (a *EnrollmentController) Health(ctx router.Context) error {
	return ctx.JSON(http.StatusOK, router.ViewContext{"status": "ok"})
}

func (a *EnrollmentController) debug(label string, payload any) {
	if !a.Debug {
		return
	}
	fmt.Printf("======= %s ======\n", label)
	fmt.Println(print.MaybePrettyJSON(payload))
	fmt.Println("=========================")
}

func (a *EnrollmentController) bind(ctx router.Context, payload interface{ Validate() error }) error {
	if err := ctx.Bind(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse payload").
			WithCode(goerrors.CodeBadRequest)
	}
	if err := payload.Validate(); err != nil {
		return newPayloadValidationError(err)
	}
	return nil
}

// landing is where a signed in account should go next.
func (a *EnrollmentController) landing(account *Account) string {
	if a.Guard.Gate().IsAdmin(account) {
		return "/homeadmin/" + string(FilterVerified)
	}
	routes := a.Guard.Gate().Routes()
	switch account.AccessStatus().Kind {
	case AccessGranted:
		return "/profile"
	case AccessDeclined:
		return routes.Resubmission
	default:
		return routes.Approval
	}
}

func (a *EnrollmentController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := a.bind(ctx, payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	account, err := a.Verifier.Verify(ctx.Context(), payload.Username, payload.Password)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return a.signIn(ctx, account)
}

func (a *EnrollmentController) AdminLoginPost(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := a.bind(ctx, payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	account, err := a.Verifier.Verify(ctx.Context(), payload.Username, payload.Password)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	principal := &Principal{AccountID: account.ID, Username: account.Username}
	decision, err := a.Guard.Gate().Check(ctx.Context(), principal, CapabilityAdmin)
	if err != nil || !decision.Allowed {
		return a.Guard.deny(ctx, decision)
	}

	return a.signIn(ctx, account)
}

func (a *EnrollmentController) signIn(ctx router.Context, account *Account) error {
	if _, err := a.Guard.StartSession(ctx, Principal{AccountID: account.ID, Username: account.Username}); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	role := RoleStudent
	if a.Guard.Gate().IsAdmin(account) {
		role = RoleAdmin
	}

	token, err := a.Tokens.Generate(account, role)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	a.Guard.setCookie(ctx, a.Config.GetTokenCookie(), token, a.Guard.now().Add(a.Tokens.TTL()))

	status := account.AccessStatus()
	return ctx.JSON(http.StatusOK, router.ViewContext{
		"account":  account,
		"status":   status,
		"message":  status.Message(),
		"redirect": a.landing(account),
	})
}

func (a *EnrollmentController) LogOut(ctx router.Context) error {
	a.Guard.EndSession(ctx)
	return ctx.JSON(http.StatusOK, router.ViewContext{
		"redirect": a.Guard.Gate().Routes().Login,
	})
}

func (a *EnrollmentController) CheckAuth(ctx router.Context) error {
	token := ctx.Cookies(a.Config.GetTokenCookie())
	if token == "" {
		header := ctx.GetString("Authorization", "")
		if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
			token = strings.TrimSpace(header[7:])
		}
	}

	if token == "" {
		return ctx.JSON(http.StatusUnauthorized, router.ViewContext{"authenticated": false})
	}

	claims, err := a.Tokens.Validate(token)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, router.ViewContext{
			"authenticated": false,
			"code":          TextCode(err),
		})
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"authenticated": true,
		"user_id":       claims.UserID(),
		"username":      claims.Username(),
		"role":          claims.Role(),
		"expires":       claims.Expires(),
	})
}

func (a *EnrollmentController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	a.debug("REGISTER", payload)

	var account *Account
	msg := RegisterAccountMessage{
		FullName:      payload.FullName,
		Username:      payload.Username,
		Semester:      payload.Semester,
		PersonalEmail: payload.PersonalEmail,
		GSuite:        payload.GSuite,
		MobileNumber:  payload.MobileNumber,
		Password:      payload.Password,
		Images:        payload.Images,
		OnResponse: func(acc *Account) {
			account = acc
		},
	}

	if err := NewRegisterAccountHandler(a.Machine, a.Rotator, a.Config.GetPhoneRegion()).Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("register account failed", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, router.ViewContext{
		"account":  account,
		"message":  "Registration received. Please wait for the admin to review it.",
		"redirect": a.Guard.Gate().Routes().Login,
	})
}

func (a *EnrollmentController) currentAccount(ctx router.Context) (*Account, error) {
	if account, ok := AccountFromRouter(ctx); ok {
		return account, nil
	}
	principal, ok := PrincipalFromRouter(ctx)
	if !ok {
		return nil, newUnauthorizedError("no signed in account")
	}
	return a.Repo.Accounts().FindByID(ctx.Context(), principal.AccountID)
}

func (a *EnrollmentController) ApprovalShow(ctx router.Context) error {
	account, err := a.currentAccount(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	status := account.AccessStatus()
	return ctx.JSON(http.StatusOK, router.ViewContext{
		"status":   status,
		"message":  status.Message(),
		"redirect": a.landing(account),
	})
}

func (a *EnrollmentController) ResubmissionCreate(ctx router.Context) error {
	payload := new(ProfilePayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	principal, _ := PrincipalFromRouter(ctx)

	var account *Account
	msg := ResubmitAccountMessage{ProfileMessage: payload.message()}
	msg.AccountID = principal.AccountID
	msg.OnResponse = func(acc *Account) { account = acc }

	if err := NewResubmitAccountHandler(a.Machine, a.Config.GetPhoneRegion()).Execute(ctx.Context(), msg); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"account":  account,
		"status":   account.AccessStatus(),
		"redirect": a.Guard.Gate().Routes().Approval,
	})
}

func (a *EnrollmentController) ProfileShow(ctx router.Context) error {
	account, err := a.currentAccount(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return ctx.JSON(http.StatusOK, router.ViewContext{
		"account":    account,
		"thumbnails": account.Thumbnails(),
	})
}

func (a *EnrollmentController) ProfileUpdate(ctx router.Context) error {
	payload := new(ProfilePayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	account, err := a.currentAccount(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	msg := UpdateProfileMessage{ProfileMessage: payload.message()}
	msg.AccountID = account.ID
	msg.OnResponse = func(acc *Account) { account = acc }

	if err := NewUpdateProfileHandler(a.Machine, a.Config.GetPhoneRegion()).Execute(ctx.Context(), msg); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{"account": account})
}

func (a *EnrollmentController) EmotionCreate(ctx router.Context) error {
	payload := new(EmotionPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	account, err := a.currentAccount(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	a.debug("EMOTION", payload)

	var sample *EmotionSample
	msg := SubmitEmotionMessage{
		AccountID:  account.ID,
		Happy:      payload.Happy,
		Neutral:    payload.Neutral,
		Sad:        payload.Sad,
		Angry:      payload.Angry,
		Fearful:    payload.Fearful,
		Disgusted:  payload.Disgusted,
		Surprised:  payload.Surprised,
		Total:      payload.Total,
		OnResponse: func(s *EmotionSample) { sample = s },
	}

	if err := NewSubmitEmotionHandler(a.Repo).Execute(ctx.Context(), msg); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, router.ViewContext{"sample": sample})
}

func (a *EnrollmentController) EmotionIndex(ctx router.Context) error {
	account, err := a.currentAccount(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	samples, err := a.Repo.EmotionSamples().ListByAccount(ctx.Context(), account.ID)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"samples": samples,
		"count":   account.EmotionCount,
	})
}

func (a *EnrollmentController) EmotionChart(ctx router.Context) error {
	account, err := a.currentAccount(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	sampleID := uuid.Nil
	if raw := ctx.Query("sample", ""); raw != "" {
		if sampleID, err = parseID(raw); err != nil {
			return a.ErrorHandler(ctx, err)
		}
	}

	series, err := ChartFor(ctx.Context(), a.Repo.EmotionSamples(), account.ID, sampleID)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, series)
}

func (a *EnrollmentController) EmotionDelete(ctx router.Context) error {
	sampleID, err := parseID(ctx.Param("id"))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	account, err := a.currentAccount(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	msg := DeleteEmotionMessage{AccountID: account.ID, SampleID: sampleID}
	if err := NewDeleteEmotionHandler(a.Repo).Execute(ctx.Context(), msg); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{"deleted": sampleID})
}

func (a *EnrollmentController) PasswordResetPost(ctx router.Context) error {
	payload := new(ForgotPasswordPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	sess, ok := SessionFromRouter(ctx)
	if !ok {
		return a.ErrorHandler(ctx, goerrors.New("session unavailable", goerrors.CategoryInternal))
	}

	var challenge *Challenge
	msg := InitializePasswordResetMessage{
		Username:   payload.Username,
		Session:    sess,
		OnResponse: func(c *Challenge) { challenge = c },
	}

	if err := NewInitializePasswordResetHandler(a.OTP).Execute(ctx.Context(), msg); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"message":    "A reset code was sent to your organizational email.",
		"expires_at": challenge.ExpiresAt,
	})
}

func (a *EnrollmentController) PasswordResetVerify(ctx router.Context) error {
	payload := new(VerifyCodePayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	sess, _ := SessionFromRouter(ctx)
	msg := VerifyPasswordResetMessage{Code: payload.Code()}
	if sess != nil {
		msg.Session = sess
	}

	if err := NewVerifyPasswordResetHandler(a.OTP).Execute(ctx.Context(), msg); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"message":  "Code verified. Choose a new password.",
		"redirect": "/update-password",
	})
}

func (a *EnrollmentController) PasswordResetExecute(ctx router.Context) error {
	payload := new(NewPasswordPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	sess, _ := SessionFromRouter(ctx)
	msg := FinalizePasswordResetMessage{Password: payload.Password}
	if sess != nil {
		msg.Session = sess
	}

	handler := NewFinalizePasswordResetHandler(a.OTP, a.Rotator).WithLogger(a.Logger)
	if err := handler.Execute(ctx.Context(), msg); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"message":  "Password updated.",
		"redirect": a.Guard.Gate().Routes().Login,
	})
}

func (a *EnrollmentController) AdminAccountsIndex(ctx router.Context) error {
	payload := AdminFilterPayload{Filter: ctx.Param("filter")}
	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, newPayloadValidationError(err))
	}

	accounts, err := a.Repo.Accounts().List(ctx.Context(), AccountFilter(payload.Filter))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	pending, err := a.Machine.PendingCount(ctx.Context())
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"filter":   payload.Filter,
		"accounts": accounts,
		"pending":  pending,
	})
}

func (a *EnrollmentController) AdminPendingIndex(ctx router.Context) error {
	accounts, err := a.Repo.Accounts().List(ctx.Context(), FilterPending)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"accounts": accounts,
		"pending":  len(accounts),
	})
}

func (a *EnrollmentController) AdminDeclinedIndex(ctx router.Context) error {
	accounts, err := a.Repo.Accounts().List(ctx.Context(), FilterDeclined)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{"accounts": accounts})
}

func (a *EnrollmentController) reviewAction(action ReviewAction) router.HandlerFunc {
	return func(ctx router.Context) error {
		id, err := parseID(ctx.Param("id"))
		if err != nil {
			return a.ErrorHandler(ctx, err)
		}

		msg := ReviewAccountMessage{
			AccountID: id,
			Action:    action,
		}

		if principal, ok := PrincipalFromRouter(ctx); ok {
			msg.Actor = ActorRef{ID: principal.AccountID.String(), Type: RoleAdmin}
		}

		if action == ReviewDecline {
			payload := new(DeclinePayload)
			if err := a.bind(ctx, payload); err != nil {
				return a.ErrorHandler(ctx, err)
			}
			msg.Reason = payload.Reason
		}

		var account *Account
		msg.OnResponse = func(acc *Account) { account = acc }

		if err := NewReviewAccountHandler(a.Machine).Execute(ctx.Context(), msg); err != nil {
			return a.ErrorHandler(ctx, err)
		}

		return ctx.JSON(http.StatusOK, router.ViewContext{"account": account})
	}
}

func (a *EnrollmentController) AdminAccountChart(ctx router.Context) error {
	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	series, err := ChartFor(ctx.Context(), a.Repo.EmotionSamples(), id, uuid.Nil)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, series)
}

func (a *EnrollmentController) AdminResetPassword(ctx router.Context) error {
	payload := new(NewPasswordPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	account, err := a.currentAccount(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	msg := ChangePasswordMessage{AccountID: account.ID, Password: payload.Password}
	if err := NewChangePasswordHandler(a.Rotator).Execute(ctx.Context(), msg); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{"message": "Password updated."})
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, goerrors.New("invalid identifier", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"id": raw})
	}
	return id, nil
}
