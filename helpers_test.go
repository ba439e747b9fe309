package enrollment_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	enrollment "github.com/emotionlab/go-enrollment"
	"github.com/emotionlab/go-enrollment/persistence"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func setupRepo(t *testing.T) (enrollment.RepositoryManager, *bun.DB) {
	t.Helper()

	db, err := persistence.Open(persistence.DialectSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	require.NoError(t, persistence.Migrate(context.Background(), db, enrollment.DialectMigrations))

	repo := enrollment.NewRepositoryManager(db)
	require.NoError(t, repo.Validate())
	return repo, db
}

type capturingSink struct {
	mu     sync.Mutex
	events []enrollment.ActivityEvent
}

func (s *capturingSink) Record(_ context.Context, event enrollment.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *capturingSink) types() []enrollment.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]enrollment.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

func (s *capturingSink) last() enrollment.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

type sentMail struct {
	to, subject, body string
}

type capturingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *capturingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return m.err
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testConfig struct {
	admin     string
	minLength int
	otpTTL    time.Duration
}

func (c testConfig) GetAdminUsername() string {
	if c.admin == "" {
		return enrollment.DefaultAdminUsername
	}
	return c.admin
}
func (c testConfig) GetSigningKey() string { return "test-signing-key" }
func (c testConfig) GetTokenExpiration() int { return 1 }
func (c testConfig) GetIssuer() string { return "enrollment-test" }
func (c testConfig) GetSessionCookie() string { return "sid" }
func (c testConfig) GetSessionTTL() time.Duration { return time.Hour }
func (c testConfig) GetTokenCookie() string { return "token" }
func (c testConfig) GetOTPTTL() time.Duration { return c.otpTTL }
func (c testConfig) GetMinPasswordLength() int { return c.minLength }
func (c testConfig) GetSecureCookies() bool { return false }
func (c testConfig) GetPhoneRegion() string { return enrollment.DefaultPhoneRegion }

var _ enrollment.Config = testConfig{}

// studentAccount returns a pending account whose unique fields derive from n.
func studentAccount(n int) *enrollment.Account {
	return &enrollment.Account{
		FullName:      fmt.Sprintf("Student %d", n),
		Username:      fmt.Sprintf("1RV21CS%03d", n),
		Semester:      "5",
		PersonalEmail: fmt.Sprintf("student%d@mail.test", n),
		GSuite:        fmt.Sprintf("student%d@college.test", n),
		MobileNumber:  fmt.Sprintf("+9198765432%02d", n),
		Images:        []enrollment.Image{{URL: "https://img.test/upload/a.png", Filename: "a"}},
	}
}

func registerStudent(t *testing.T, machine enrollment.LifecycleMachine, n int) *enrollment.Account {
	t.Helper()
	account := studentAccount(n)
	hash, err := enrollment.HashPassword("password123")
	require.NoError(t, err)
	account.PasswordHash = hash

	created, err := machine.Register(context.Background(), enrollment.ActorRef{Type: "account"}, account)
	require.NoError(t, err)
	return created
}

var adminActor = enrollment.ActorRef{ID: "admin", Type: "admin"}
