package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-provisioning-api/internal/domain"
	"github.com/go-provisioning-api/internal/infrastructure/recaptcha"
	"github.com/go-provisioning-api/internal/infrastructure/smtp"
	"github.com/go-provisioning-api/internal/pkg/id"
	pkgtoken "github.com/go-provisioning-api/internal/pkg/token"
)

// Messages shared between the lookup and redeem paths. "Not found" and
// "expired" are reported identically so callers can't distinguish guesses.
const (
	MsgInvalidOrExpired = "Invalid or expired link"
	MsgMissingFields    = "Missing token or password."
)

// Intent is the read-only answer to a token probe: whose email the token
// proves, and whether redeeming would create or update an account.
type Intent struct {
	Email string
	Mode  string // "create" | "update"
}

// RequestStore is the minimal interface the service requires from a
// pending-request store.
type RequestStore interface {
	Put(ctx context.Context, req *domain.PendingRequest) error
	GetByToken(ctx context.Context, token string, issuedAfter int64) (*domain.PendingRequest, error)
}

// Service is the token lifecycle manager: it issues pending requests, probes
// and redeems tokens, and drives the backend bound to its namespace.
//
// Tokens are deliberately not consumed on redemption: a still-unexpired token
// may be redeemed again, re-provisioning the same account with the new
// password. Only the clock ends a token's life.
type Service interface {
	IssueRequest(ctx context.Context, email, captchaToken string) error
	Lookup(ctx context.Context, token string) (*Intent, error)
	Redeem(ctx context.Context, token, password string) (string, error)
}

// ServiceDeps carries the collaborators for NewService.
type ServiceDeps struct {
	Requests RequestStore
	Verifier recaptcha.Verifier
	Mailer   smtp.Mailer
	Backend  Backend
	// LinkBase is the frontend URL redemption links are built from.
	LinkBase string
	// MinScore is the bot-verification confidence the verdict must exceed.
	MinScore float64
}

type service struct {
	requests RequestStore
	verifier recaptcha.Verifier
	mailer   smtp.Mailer
	backend  Backend
	linkBase string
	minScore float64
}

func NewService(deps ServiceDeps) Service {
	return &service{
		requests: deps.Requests,
		verifier: deps.Verifier,
		mailer:   deps.Mailer,
		backend:  deps.Backend,
		linkBase: deps.LinkBase,
		minScore: deps.MinScore,
	}
}

// IssueRequest verifies email ownership eligibility and, on success, writes
// exactly one pending request and sends one redemption email. Every business
// rejection (bad domain, failed bot check, missing fields) returns nil so the
// transport acknowledges generically and never leaks whether an email is
// known; the detail goes to the server log. Infrastructure failures do
// propagate.
func (s *service) IssueRequest(ctx context.Context, email, captchaToken string) error {
	if email == "" || captchaToken == "" {
		slog.Info("issue request missing email or captcha token", "backend", s.backend.Kind())
		return nil
	}
	if !domain.AllowedEmail(email) {
		slog.Info("issue request for disallowed email domain", "backend", s.backend.Kind(), "email", email)
		return nil
	}

	verdict, err := s.verifier.Verify(ctx, captchaToken)
	if err != nil {
		return err
	}
	if !verdict.Success || verdict.Score <= s.minScore {
		slog.Warn("captcha check failed",
			"backend", s.backend.Kind(),
			"success", verdict.Success,
			"score", verdict.Score)
		return nil
	}

	tok, err := pkgtoken.NewRequestToken()
	if err != nil {
		return err
	}
	now := time.Now()
	req := &domain.PendingRequest{
		RequestID: id.New(),
		Email:     email,
		Token:     tok,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(domain.RequestRetention).Unix(),
	}
	if err := s.requests.Put(ctx, req); err != nil {
		return err
	}

	link := fmt.Sprintf("%s?token=%s", s.linkBase, tok)
	body := fmt.Sprintf("Follow this link to choose your password:\r\n\r\n%s\r\n\r\nThe link is valid for one hour.", link)
	if err := s.mailer.SendEmail(email, "Your account request", body); err != nil {
		return err
	}

	slog.Info("pending request created", "backend", s.backend.Kind(), "email", email)
	return nil
}

// Lookup resolves a token to its email and create/update intent without
// consuming it. Returns domain.ErrNotFound for unknown and expired tokens
// alike.
func (s *service) Lookup(ctx context.Context, token string) (*Intent, error) {
	req, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	existing, err := s.backend.HasAccount(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	mode := "create"
	if existing {
		mode = "update"
	}
	return &Intent{Email: req.Email, Mode: mode}, nil
}

// Redeem turns a valid token plus a password into concrete credentials on the
// backend. Business failures come back as the message with a nil error;
// infrastructure failures come back as errors for the transport to 500.
func (s *service) Redeem(ctx context.Context, token, password string) (string, error) {
	if token == "" || password == "" {
		return MsgMissingFields, nil
	}

	req, err := s.resolve(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		return MsgInvalidOrExpired, nil
	}
	if err != nil {
		return "", err
	}

	account, existing, err := s.backend.DeriveIdentifier(ctx, req.Email)
	if err != nil {
		return "", err
	}
	if err := s.backend.Provision(ctx, account, password); err != nil {
		return "", err
	}

	msg := fmt.Sprintf("Added new account: %s", account)
	if existing {
		msg = fmt.Sprintf("Updated account: %s", account)
	}
	slog.Info("account provisioned", "backend", s.backend.Kind(), "email", req.Email, "account", account, "existing", existing)
	return msg, nil
}

func (s *service) resolve(ctx context.Context, token string) (*domain.PendingRequest, error) {
	cutoff := time.Now().Add(-domain.RequestTTL).Unix()
	return s.requests.GetByToken(ctx, token, cutoff)
}
