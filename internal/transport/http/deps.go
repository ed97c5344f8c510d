package http

import (
	"github.com/go-provisioning-api/internal/application/provisioning"
	"github.com/go-provisioning-api/internal/infrastructure/recaptcha"
	"github.com/go-provisioning-api/internal/infrastructure/smtp"
)

// Deps holds all infrastructure dependencies for the router. Declared as the
// narrow interfaces the services consume so tests can swap in mocks.
type Deps struct {
	// Requests and MatrixRequests are same-shaped stores over disjoint
	// namespaces, one per provisioned system.
	Requests       provisioning.RequestStore
	MatrixRequests provisioning.RequestStore
	Accounts       provisioning.AccountStore
	Verifier       recaptcha.Verifier
	Mailer         smtp.Mailer
	DB             provisioning.RoleProvisioner
	Registrar      provisioning.Registrar
}
