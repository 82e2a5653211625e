// Package identity generates the per-run student account used by a scenario.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Strategy names accepted in student.uniqueness.
const (
	StrategyUnixTime = "unix_time"
	StrategyUnixNano = "unix_nano"
	StrategyUUID     = "uuid"
)

// TokenPlaceholder is substituted in the email pattern.
const TokenPlaceholder = "{token}"

// maxAttempts bounds regeneration when a UsageChecker reports collisions.
const maxAttempts = 3

// ErrIdentityExhausted is returned when every candidate email was already used.
var ErrIdentityExhausted = errors.New("identity: no unused email after retries")

// Identity is the account registered during one run.
type Identity struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"-"`
	Token    string `json:"token"`
}

// UsageChecker reports whether an email was already registered by an earlier run.
type UsageChecker interface {
	EmailUsed(ctx context.Context, email string) (bool, error)
}

// Generator builds identities from a name, password and email pattern.
type Generator struct {
	Name     string
	Password string
	Pattern  string
	Strategy string
	Checker  UsageChecker

	now     func() time.Time
	newUUID func() string
}

// NewGenerator returns a Generator using the wall clock and random UUIDs.
func NewGenerator(name, password, pattern, strategy string) *Generator {
	return &Generator{
		Name:     name,
		Password: password,
		Pattern:  pattern,
		Strategy: strategy,
		now:      time.Now,
		newUUID:  uuid.NewString,
	}
}

// Next returns a fresh identity. With a Checker set, an email already used is
// retried with a random suffix up to maxAttempts times. Without one, clock
// tokens always carry a random suffix since nothing rules out a repeat.
func (g *Generator) Next(ctx context.Context) (Identity, error) {
	if !strings.Contains(g.Pattern, TokenPlaceholder) {
		return Identity{}, fmt.Errorf("identity: pattern %q lacks %s", g.Pattern, TokenPlaceholder)
	}
	base, err := g.token()
	if err != nil {
		return Identity{}, err
	}

	token := base
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 || (g.Checker == nil && g.Strategy != StrategyUUID) {
			token = base + "-" + g.suffix()
		}
		id := Identity{
			Name:     g.Name,
			Email:    strings.ReplaceAll(g.Pattern, TokenPlaceholder, token),
			Password: g.Password,
			Token:    token,
		}
		if g.Checker == nil {
			return id, nil
		}
		used, err := g.Checker.EmailUsed(ctx, id.Email)
		if err != nil {
			return Identity{}, fmt.Errorf("identity: checking %s: %w", id.Email, err)
		}
		if !used {
			return id, nil
		}
	}
	return Identity{}, fmt.Errorf("%w (%d attempts, last token %s)", ErrIdentityExhausted, maxAttempts, token)
}

func (g *Generator) token() (string, error) {
	switch g.Strategy {
	case "", StrategyUnixTime:
		return strconv.FormatInt(g.clock().Unix(), 10), nil
	case StrategyUnixNano:
		return strconv.FormatInt(g.clock().UnixNano(), 10), nil
	case StrategyUUID:
		return g.uuid(), nil
	default:
		return "", fmt.Errorf("identity: unknown strategy %q", g.Strategy)
	}
}

func (g *Generator) suffix() string {
	s := strings.ReplaceAll(g.uuid(), "-", "")
	if len(s) > 6 {
		s = s[:6]
	}
	return s
}

func (g *Generator) clock() time.Time {
	if g.now == nil {
		return time.Now()
	}
	return g.now()
}

func (g *Generator) uuid() string {
	if g.newUUID == nil {
		return uuid.NewString()
	}
	return g.newUUID()
}
