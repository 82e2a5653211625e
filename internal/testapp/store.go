package testapp

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Roles and account statuses.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"

	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountNotFound    = errors.New("account not found")
	ErrNotPending         = errors.New("account is not pending")
)

// Account is a registered user.
type Account struct {
	ID        string
	Name      string
	Email     string
	Role      string
	Status    string
	Reason    string
	CreatedAt time.Time

	hash []byte
}

// Store keeps accounts and sessions in memory.
type Store struct {
	mu       sync.RWMutex
	cost     int
	accounts map[string]*Account // by ID
	sessions map[string]string   // session token -> account ID
}

// NewStore returns an empty store hashing passwords at cost.
func NewStore(cost int) *Store {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &Store{
		cost:     cost,
		accounts: map[string]*Account{},
		sessions: map[string]string{},
	}
}

// Register creates an account. Students start pending; admins are approved.
func (s *Store) Register(name, email, password, role string) (Account, error) {
	email = normalizeEmail(email)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byEmail(email) != nil {
		return Account{}, ErrEmailTaken
	}
	a := &Account{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Email:     email,
		Role:      role,
		Status:    StatusPending,
		CreatedAt: time.Now(),
		hash:      hash,
	}
	if role == RoleAdmin {
		a.Status = StatusApproved
	}
	s.accounts[a.ID] = a
	return *a, nil
}

// Authenticate checks credentials and opens a session.
func (s *Store) Authenticate(email, password string) (Account, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.byEmail(normalizeEmail(email))
	if a == nil || bcrypt.CompareHashAndPassword(a.hash, []byte(password)) != nil {
		return Account{}, "", ErrInvalidCredentials
	}
	token := uuid.NewString()
	s.sessions[token] = a.ID
	return *a, token, nil
}

// Session resolves a session token.
func (s *Store) Session(token string) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[s.sessions[token]]
	if !ok {
		return Account{}, false
	}
	return *a, true
}

// EndSession drops a session token.
func (s *Store) EndSession(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// Pending lists pending students, oldest first.
func (s *Store) Pending() []Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Account
	for _, a := range s.accounts {
		if a.Role == RoleStudent && a.Status == StatusPending {
			out = append(out, *a)
		}
	}
	slices.SortFunc(out, func(a, b Account) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Email, b.Email)
	})
	return out
}

// Decide moves a pending student to approved or rejected.
func (s *Store) Decide(id, status, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok || a.Role != RoleStudent {
		return ErrAccountNotFound
	}
	if a.Status != StatusPending {
		return ErrNotPending
	}
	a.Status = status
	a.Reason = strings.TrimSpace(reason)
	return nil
}

// Lookup returns the account registered with email.
func (s *Store) Lookup(email string) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a := s.byEmail(normalizeEmail(email)); a != nil {
		return *a, true
	}
	return Account{}, false
}

func (s *Store) byEmail(email string) *Account {
	for _, a := range s.accounts {
		if a.Email == email {
			return a
		}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
