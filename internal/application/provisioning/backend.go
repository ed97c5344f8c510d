package provisioning

import (
	"context"
	"errors"
	"time"

	"github.com/go-provisioning-api/internal/domain"
	"github.com/go-provisioning-api/internal/pkg/id"
)

// AccountStore is the minimal interface the relational backend requires from
// the account-record store.
type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.AccountRecord, error)
	Last(ctx context.Context) (string, error)
	Put(ctx context.Context, a *domain.AccountRecord) error
}

// RoleProvisioner creates or re-provisions a database login.
type RoleProvisioner interface {
	Provision(ctx context.Context, account, password string) error
}

// Registrar registers a username on the federated chat server.
type Registrar interface {
	Register(ctx context.Context, username, password string) error
}

// Backend is the per-system half of the provisioning workflow: how a verified
// email becomes a login identifier, and how that identifier gets credentials.
// The token lifecycle above it is identical for every variant.
type Backend interface {
	Kind() string
	// HasAccount is a read-only probe used to distinguish create from update
	// intents; it must not allocate anything.
	HasAccount(ctx context.Context, email string) (bool, error)
	// DeriveIdentifier resolves the login identifier for email, reporting
	// whether it already existed. May allocate and persist a new identifier.
	DeriveIdentifier(ctx context.Context, email string) (string, bool, error)
	Provision(ctx context.Context, identifier, password string) error
}

type relationalBackend struct {
	accounts AccountStore
	db       RoleProvisioner
}

// NewRelationalBackend builds the database-login variant: sequentially
// assigned user%04d names recorded in the account store.
func NewRelationalBackend(accounts AccountStore, db RoleProvisioner) Backend {
	return &relationalBackend{accounts: accounts, db: db}
}

func (b *relationalBackend) Kind() string { return "sql" }

func (b *relationalBackend) HasAccount(ctx context.Context, email string) (bool, error) {
	_, err := b.accounts.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeriveIdentifier reuses the recorded account for a known email, otherwise
// allocates the next name and inserts the record before provisioning.
// Allocation reads the greatest existing name without a lock: two concurrent
// first-time redemptions can collide, and the create-if-absent semantics of
// the relational backend turn the loser into a password reset on the same
// login. Documented behavior, kept as-is.
func (b *relationalBackend) DeriveIdentifier(ctx context.Context, email string) (string, bool, error) {
	existing, err := b.accounts.GetByEmail(ctx, email)
	if err == nil {
		return existing.Account, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return "", false, err
	}

	last, err := b.accounts.Last(ctx)
	if err != nil {
		return "", false, err
	}
	account, err := domain.NextAccount(last)
	if err != nil {
		return "", false, err
	}
	rec := &domain.AccountRecord{
		AccountID: id.New(),
		Kind:      domain.AccountKind,
		Email:     email,
		Account:   account,
		CreatedAt: time.Now().Unix(),
	}
	if err := b.accounts.Put(ctx, rec); err != nil {
		return "", false, err
	}
	return account, false, nil
}

func (b *relationalBackend) Provision(ctx context.Context, identifier, password string) error {
	return b.db.Provision(ctx, identifier, password)
}

type federatedBackend struct {
	registrar Registrar
}

// NewFederatedBackend builds the chat-server variant: the identifier is the
// local part of the verified email, registered remotely on each redemption.
func NewFederatedBackend(registrar Registrar) Backend {
	return &federatedBackend{registrar: registrar}
}

func (b *federatedBackend) Kind() string { return "matrix" }

// HasAccount always reports false: the chat server owns its account state and
// every redemption presents as a create.
func (b *federatedBackend) HasAccount(ctx context.Context, email string) (bool, error) {
	return false, nil
}

func (b *federatedBackend) DeriveIdentifier(ctx context.Context, email string) (string, bool, error) {
	return domain.LocalPart(email), false, nil
}

func (b *federatedBackend) Provision(ctx context.Context, identifier, password string) error {
	return b.registrar.Register(ctx, identifier, password)
}
