package auth

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"communityd/internal/observability"
)

// fakeStore is an in-memory CredentialStore. Find methods hand out copies so
// service-side record mutation never leaks into stored state, mirroring how
// a row read behaves.
type fakeStore struct {
	mu     sync.Mutex
	users  map[int64]*User
	nextID int64

	failureWrites  int
	successWrites  int
	passwordWrites int

	updateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[int64]*User), nextID: 1}
}

func (s *fakeStore) add(user User) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = s.nextID
	s.nextID++
	s.users[user.ID] = &user
	return &user
}

func (s *fakeStore) get(id int64) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.users[id]
}

func (s *fakeStore) FindByUsername(_ context.Context, username string) (*User, error) {
	return s.findWhere(func(u *User) bool { return u.Username == username })
}

func (s *fakeStore) FindByEmail(_ context.Context, email string) (*User, error) {
	return s.findWhere(func(u *User) bool { return u.Email == email })
}

func (s *fakeStore) FindByID(_ context.Context, id int64) (*User, error) {
	return s.findWhere(func(u *User) bool { return u.ID == id })
}

func (s *fakeStore) findWhere(match func(*User) bool) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) CreateUser(_ context.Context, user *User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == user.Username || u.Email == user.Email {
			return 0, ErrUserExists
		}
	}
	copied := *user
	copied.ID = s.nextID
	s.nextID++
	s.users[copied.ID] = &copied
	return copied.ID, nil
}

func (s *fakeStore) UpdatePassword(_ context.Context, userID int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.users[userID].PasswordHash = passwordHash
	s.passwordWrites++
	return nil
}

func (s *fakeStore) RecordLoginFailure(_ context.Context, userID int64, now int64, resetCounter bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[userID]
	attempts := u.FailedAttempts
	if resetCounter {
		attempts = 0
	}
	attempts++
	u.FailedAttempts = attempts
	u.LastFailedAt = now
	s.failureWrites++
	return attempts, nil
}

func (s *fakeStore) RecordLoginSuccess(_ context.Context, userID int64, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[userID]
	u.FailedAttempts = 0
	u.LastActiveAt = now
	s.successWrites++
	return nil
}

// fakeResets is an in-memory ResetTokenStore.
type fakeResets struct {
	mu     sync.Mutex
	tokens map[int64]*PasswordResetToken
	nextID int64
}

func newFakeResets() *fakeResets {
	return &fakeResets{tokens: make(map[int64]*PasswordResetToken), nextID: 1}
}

func (s *fakeResets) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

func (s *fakeResets) FindByToken(_ context.Context, token string) (*PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.tokens {
		if record.Token == token {
			copied := *record
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeResets) CreateResetToken(_ context.Context, token *PasswordResetToken) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *token
	copied.ID = s.nextID
	s.nextID++
	s.tokens[copied.ID] = &copied
	return copied.ID, nil
}

func (s *fakeResets) DeleteResetTokensForUser(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, record := range s.tokens {
		if record.UserID == userID {
			delete(s.tokens, id)
		}
	}
	return nil
}

func (s *fakeResets) DeleteResetToken(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, id)
	return nil
}

func (s *fakeResets) DeleteExpiredResetTokens(_ context.Context, now int64, _ int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, record := range s.tokens {
		if record.ExpiresAt < now {
			delete(s.tokens, id)
			deleted++
		}
	}
	return deleted, nil
}

type sentMail struct {
	to      string
	subject string
	body    string
}

type fakeMailer struct {
	mu    sync.Mutex
	sent  []sentMail
	fail  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (m *fakeMailer) lastBody() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].body
}

const testEpoch = int64(1_700_000_000_000)

// newTestService builds a Service on the fakes with a controllable clock.
// Moving the clock is just *clock = ... in the test.
func newTestService(store *fakeStore, resets *fakeResets, mailer *fakeMailer) (*Service, *int64) {
	svc := NewService(
		store, resets,
		NewTokenCodec("test-secret"),
		NewRevocationList(),
		mailer,
		observability.NewLoggerTo(io.Discard),
		"https://community.example",
	)
	clock := new(int64)
	*clock = testEpoch
	svc.now = func() int64 { return *clock }
	return svc, clock
}

func hashFor(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(hash)
}

func tokenFromBody(body string) string {
	idx := strings.LastIndex(body, "token=")
	if idx < 0 {
		return ""
	}
	rest := body[idx+len("token="):]
	if end := strings.IndexAny(rest, " \r\n"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}
