package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"coursehub/internal/config"
	"coursehub/internal/ledger"
	"coursehub/internal/models"
	"coursehub/internal/repository"
	"coursehub/internal/security"
)

// --- Fakes ---

type fakeStore struct {
	mu       sync.Mutex
	byID     map[string]models.Account
	emailIdx map[string]string

	CreateFunc         func(account models.Account) error
	GetByIDFunc        func(id string) error
	UpdatePasswordFunc func(id string) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: map[string]models.Account{}, emailIdx: map[string]string{}}
}

func (f *fakeStore) Create(_ context.Context, account models.Account) (models.Account, error) {
	if f.CreateFunc != nil {
		if err := f.CreateFunc(account); err != nil {
			return models.Account{}, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	email := models.NormalizeEmail(account.Email)
	if _, ok := f.emailIdx[email]; ok {
		return models.Account{}, repository.ErrEmailTaken
	}
	account.Email = email
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	f.byID[account.ID] = account
	f.emailIdx[email] = account.ID
	return account, nil
}

func (f *fakeStore) FindByEmail(_ context.Context, email string) (models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.emailIdx[models.NormalizeEmail(email)]
	if !ok {
		return models.Account{}, repository.ErrAccountNotFound
	}
	return f.byID[id], nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (models.Account, error) {
	if f.GetByIDFunc != nil {
		if err := f.GetByIDFunc(id); err != nil {
			return models.Account{}, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.byID[id]
	if !ok {
		return models.Account{}, repository.ErrAccountNotFound
	}
	return account, nil
}

func (f *fakeStore) UpdatePassword(_ context.Context, id string, passwordHash []byte) error {
	if f.UpdatePasswordFunc != nil {
		if err := f.UpdatePasswordFunc(id); err != nil {
			return err
		}
	}
	return f.mutate(id, func(a *models.Account) {
		a.PasswordHash = passwordHash
		a.SocialOnly = false
	})
}

func (f *fakeStore) UpdateRole(_ context.Context, id string, role models.Role) error {
	return f.mutate(id, func(a *models.Account) { a.Role = role })
}

func (f *fakeStore) UpdateAvatar(_ context.Context, id string, avatar models.Avatar) error {
	return f.mutate(id, func(a *models.Account) { a.Avatar = &avatar })
}

func (f *fakeStore) mutate(id string, fn func(*models.Account)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.byID[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	fn(&account)
	account.UpdatedAt = time.Now()
	f.byID[id] = account
	return nil
}

func (f *fakeStore) seed(t *testing.T, account models.Account) models.Account {
	t.Helper()
	created, err := f.Create(context.Background(), account)
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return created
}

type sentMail struct {
	Recipient string
	Template  string
	Data      map[string]string
}

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, recipient string, template string, data map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, sentMail{Recipient: recipient, Template: template, Data: data})
	return nil
}

func (d *fakeDispatcher) messages() []sentMail {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]sentMail(nil), d.sent...)
}

type fakeAvatarStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	removed []string
	putErr  error
}

func (s *fakeAvatarStore) PutAvatar(_ context.Context, key string, body io.Reader, _ int64, _ string) (models.Avatar, error) {
	if s.putErr != nil {
		return models.Avatar{}, s.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return models.Avatar{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return models.Avatar{PublicID: key, URL: "https://cdn.test/" + key}, nil
}

func (s *fakeAvatarStore) RemoveAvatar(_ context.Context, publicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[publicID]; !ok {
		return errors.New("no such object")
	}
	delete(s.objects, publicID)
	s.removed = append(s.removed, publicID)
	return nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- Harness ---

var fastHashing = security.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

type harness struct {
	store      *fakeStore
	clock      *testClock
	hasher     security.PasswordHasher
	tokens     *security.Tokens
	ledger     *ledger.MemoryLedger
	dispatcher *fakeDispatcher
	mailer     *AsyncMailer
	avatars    *fakeAvatarStore

	sessions   *SessionService
	activation *ActivationService
	reset      *ResetService
	social     *SocialLinker
	accounts   *AccountService
}

func testSecurityConfig() config.SecurityConfig {
	return config.SecurityConfig{
		AccessSecret:     "access-secret-for-service-tests-000",
		RefreshSecret:    "refresh-secret-for-service-tests-00",
		ActivationSecret: "activation-secret-for-service-test",
		ResetSecret:      "reset-secret-for-service-tests-0000",
		AccessTTL:        15 * time.Minute,
		RefreshTTL:       72 * time.Hour,
		ActivationTTL:    5 * time.Minute,
		ResetTTL:         30 * time.Minute,
		CodeLength:       6,
		MaxCodeAttempts:  5,
		ResetURL:         "https://app.test/reset-password",
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := testSecurityConfig()
	log := zerolog.Nop()

	h := &harness{
		store:      newFakeStore(),
		clock:      &testClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)},
		hasher:     security.NewPasswordHasher(fastHashing),
		dispatcher: &fakeDispatcher{},
		avatars:    &fakeAvatarStore{objects: map[string][]byte{}},
	}
	h.tokens = security.NewTokens(security.TokenSettings{
		AccessSecret:     cfg.AccessSecret,
		RefreshSecret:    cfg.RefreshSecret,
		ActivationSecret: cfg.ActivationSecret,
		ResetSecret:      cfg.ResetSecret,
		AccessTTL:        cfg.AccessTTL,
		RefreshTTL:       cfg.RefreshTTL,
		ActivationTTL:    cfg.ActivationTTL,
		ResetTTL:         cfg.ResetTTL,
	}, h.clock.Now)
	h.ledger = ledger.NewMemoryLedger(h.clock.Now)
	h.mailer = NewAsyncMailer(h.dispatcher, time.Second, log)

	h.sessions = NewSessionService(h.store, h.tokens, h.hasher, h.ledger, log)
	h.activation = NewActivationService(h.store, h.tokens, h.hasher, h.ledger, h.mailer, cfg, log)
	h.reset = NewResetService(h.store, h.tokens, h.hasher, h.ledger, h.mailer, cfg, log)
	h.social = NewSocialLinker(h.store, h.sessions, log)
	h.accounts = NewAccountService(h.store, h.avatars, 1<<20, log)
	return h
}

// register runs the registration and returns the ticket with the mailed code.
func (h *harness) register(t *testing.T, email, name, password string) (ActivationTicket, string) {
	t.Helper()
	ticket, err := h.activation.Register(context.Background(), RegisterInput{Email: email, Name: name, Password: password})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	h.mailer.Wait()
	msgs := h.dispatcher.messages()
	if len(msgs) == 0 {
		t.Fatalf("no activation mail sent")
	}
	return ticket, msgs[len(msgs)-1].Data["code"]
}

func (h *harness) seedVerified(t *testing.T, email, password string, role models.Role) models.Account {
	t.Helper()
	hash, err := h.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return h.store.seed(t, models.Account{
		ID:           email + "-id",
		Email:        email,
		DisplayName:  "Seeded",
		PasswordHash: hash,
		Role:         role,
		Verified:     true,
	})
}

// wrongCode returns a code of the same length that differs from code.
func wrongCode(code string) string {
	if code[0] == '9' {
		return "0" + code[1:]
	}
	return string(code[0]+1) + code[1:]
}
