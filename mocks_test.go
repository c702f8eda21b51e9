package identity_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	identity "github.com/kunkhmer/go-identity"
)

// MockUserTracker implements identity.UserTracker
type MockUserTracker struct {
	mock.Mock
}

func (m *MockUserTracker) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*identity.User, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserTracker) TrackAttemptedLogin(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserTracker) TrackSucccessfulLogin(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockIdentityProvider implements identity.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyIdentity(ctx context.Context, identifier, password string) (identity.Identity, error) {
	args := m.Called(ctx, identifier, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(identity.Identity), args.Error(1)
}

func (m *MockIdentityProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (identity.Identity, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(identity.Identity), args.Error(1)
}

// MockIdentity implements identity.Identity
type MockIdentity struct {
	IDVal    string
	NameVal  string
	EmailVal string
	RoleVal  string
}

func (m MockIdentity) ID() string    { return m.IDVal }
func (m MockIdentity) Name() string  { return m.NameVal }
func (m MockIdentity) Email() string { return m.EmailVal }
func (m MockIdentity) Role() string  { return m.RoleVal }

// RecordingMailer captures the template context of every send so tests can
// read the activation code out of the "email".
type RecordingMailer struct {
	mu    sync.Mutex
	sends []RecordedMail
	done  chan struct{}
	fail  error
}

type RecordedMail struct {
	Template  string
	Recipient string
	Context   map[string]any
}

func NewRecordingMailer() *RecordingMailer {
	return &RecordingMailer{
		done: make(chan struct{}, 16),
	}
}

func (m *RecordingMailer) FailWith(err error) *RecordingMailer {
	m.fail = err
	return m
}

func (m *RecordingMailer) Send(ctx context.Context, template, recipient string, data map[string]any) error {
	m.mu.Lock()
	m.sends = append(m.sends, RecordedMail{
		Template:  template,
		Recipient: recipient,
		Context:   data,
	})
	m.mu.Unlock()

	m.done <- struct{}{}

	return m.fail
}

// WaitForSend blocks until a delivery attempt lands, then returns it.
func (m *RecordingMailer) WaitForSend(t *testing.T) RecordedMail {
	t.Helper()

	select {
	case <-m.done:
	case <-testTimeout(t):
		t.Fatal("timed out waiting for mail delivery")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	require.NotEmpty(t, m.sends)
	return m.sends[len(m.sends)-1]
}

func (m *RecordingMailer) Sends() []RecordedMail {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]RecordedMail, len(m.sends))
	copy(out, m.sends)
	return out
}

// testConfig implements identity.Config
type testConfig struct {
	signingKey      string
	tokenExpiration int
	issuer          string
	audience        []string
}

func (c testConfig) GetSigningKey() string { return c.signingKey }

func (c testConfig) GetTokenExpiration() int {
	if c.tokenExpiration == 0 {
		return 1
	}
	return c.tokenExpiration
}

func (c testConfig) GetActivationTTL() time.Duration {
	return identity.DefaultActivationTTL
}

func (c testConfig) GetIssuer() string { return c.issuer }

func (c testConfig) GetAudience() []string { return c.audience }

// newTestDB opens an isolated in-memory store with the users schema applied.
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)

	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	_, err = db.NewCreateTable().
		Model((*identity.User)(nil)).
		Exec(context.Background())
	require.NoError(t, err)

	return db
}

func testTimeout(t *testing.T) <-chan time.Time {
	t.Helper()
	return time.After(5 * time.Second)
}
