package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cinevault/auth-service/internal/user"
)

// fakeUserStore is an in-memory UserStore for service tests.
type fakeUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*user.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uuid.UUID]*user.User)}
}

func (s *fakeUserStore) Create(_ context.Context, nu user.NewUser) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == nu.Username {
			return nil, user.ErrDuplicateUsername
		}
		if nu.Email != "" && u.Email == nu.Email {
			return nil, user.ErrDuplicateEmail
		}
	}

	now := time.Now()
	u := &user.User{
		ID:                     uuid.New(),
		Username:               nu.Username,
		Email:                  nu.Email,
		ExternalID:             nu.ExternalID,
		Role:                   user.RoleCustomer,
		PasswordHash:           nu.PasswordHash,
		Type:                   nu.Type,
		EmailVerificationToken: nu.EmailVerificationToken,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	s.users[u.ID] = u
	return copyUser(u), nil
}

func (s *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *fakeUserStore) GetByUsername(_ context.Context, username string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *fakeUserStore) GetByResetToken(_ context.Context, resetToken string, now time.Time) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ResetToken == resetToken && resetToken != "" &&
			u.ResetExpiresAt != nil && u.ResetExpiresAt.After(now) {
			return copyUser(u), nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *fakeUserStore) UpdateLockout(_ context.Context, id uuid.UUID, failedCount int, lockedUntil *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return user.ErrNotFound
	}
	u.FailedLoginCount = failedCount
	u.LockedUntil = lockedUntil
	return nil
}

func (s *fakeUserStore) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return user.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (s *fakeUserStore) SetResetToken(_ context.Context, id uuid.UUID, resetToken string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return user.ErrNotFound
	}
	u.ResetToken = resetToken
	u.ResetExpiresAt = &expiresAt
	return nil
}

func (s *fakeUserStore) CompleteReset(_ context.Context, id uuid.UUID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return user.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.ResetToken = ""
	u.ResetExpiresAt = nil
	u.FailedLoginCount = 0
	u.LockedUntil = nil
	return nil
}

func (s *fakeUserStore) RecordLogin(_ context.Context, id uuid.UUID, ip, userAgent string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return user.ErrNotFound
	}
	u.LastLoginAt = &at
	u.LastLoginIP = ip
	u.LastLoginUserAgent = userAgent
	return nil
}

func (s *fakeUserStore) UpdateProfile(_ context.Context, id uuid.UUID, upd user.ProfileUpdate) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}

	for otherID, other := range s.users {
		if otherID == id {
			continue
		}
		if upd.Username != nil && other.Username == *upd.Username {
			return nil, user.ErrDuplicateUsername
		}
		if upd.Email != nil && other.Email == *upd.Email {
			return nil, user.ErrDuplicateEmail
		}
	}

	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.ResetEmailVerified {
		u.IsEmailVerified = false
		u.EmailVerificationToken = upd.EmailVerifyToken
	}
	u.UpdatedAt = time.Now()
	return copyUser(u), nil
}

func (s *fakeUserStore) MarkEmailVerified(_ context.Context, verificationToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if verificationToken != "" && u.EmailVerificationToken == verificationToken {
			u.IsEmailVerified = true
			u.EmailVerificationToken = ""
			return nil
		}
	}
	return user.ErrNotFound
}

func copyUser(u *user.User) *user.User {
	c := *u
	return &c
}

// sentEmail records one dispatched message.
type sentEmail struct {
	Kind  string
	To    string
	Token string
}

// fakeEmailService records sends instead of talking SMTP.
type fakeEmailService struct {
	mu   sync.Mutex
	sent []sentEmail
	done chan struct{}
}

func newFakeEmailService() *fakeEmailService {
	return &fakeEmailService{done: make(chan struct{}, 16)}
}

func (s *fakeEmailService) SendPasswordResetEmail(_ context.Context, toEmail, resetToken string) error {
	s.record(sentEmail{Kind: "reset", To: toEmail, Token: resetToken})
	return nil
}

func (s *fakeEmailService) SendVerificationEmail(_ context.Context, toEmail, verificationToken string) error {
	s.record(sentEmail{Kind: "verify", To: toEmail, Token: verificationToken})
	return nil
}

func (s *fakeEmailService) record(e sentEmail) {
	s.mu.Lock()
	s.sent = append(s.sent, e)
	s.mu.Unlock()
	s.done <- struct{}{}
}

// waitForSend blocks until one email has been dispatched; sends happen on a
// background goroutine.
func (s *fakeEmailService) waitForSend() bool {
	select {
	case <-s.done:
		return true
	case <-time.After(2 * time.Second):
		return false
	}
}

func (s *fakeEmailService) lastSent() (sentEmail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return sentEmail{}, false
	}
	return s.sent[len(s.sent)-1], true
}

func (s *fakeEmailService) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// fakePublisher records emitted events.
type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePublisher) Publish(_ context.Context, eventType string, _ uuid.UUID, _ map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func (p *fakePublisher) has(eventType string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e == eventType {
			return true
		}
	}
	return false
}
