package readiness

import (
	"errors"
	"fmt"
	"time"

	"github.com/imamik/exposer/internal/util/retry"
)

// Well-known subsystem names.
const (
	SecretStore = "secret-store"
	Gateway     = "gateway"
	CertManager = "cert-manager"
	ExternalDNS = "external-dns"
)

// ObjectRef names a namespaced object.
type ObjectRef struct {
	Namespace string `yaml:"namespace"`
	Name      string `yaml:"name"`
}

func (r ObjectRef) String() string {
	return r.Namespace + "/" + r.Name
}

// Subsystem declares how to tell whether a shared subsystem is live.
type Subsystem struct {
	Name       string     `yaml:"name"`
	Controller ObjectRef  `yaml:"controller"`
	Webhook    *ObjectRef `yaml:"webhook,omitempty"`
}

// Validate checks the declaration.
func (s Subsystem) Validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("subsystem name is required"))
	}
	if s.Controller.Namespace == "" || s.Controller.Name == "" {
		errs = append(errs, fmt.Errorf("subsystem %q: controller namespace and name are required", s.Name))
	}
	if s.Webhook != nil && (s.Webhook.Namespace == "" || s.Webhook.Name == "") {
		errs = append(errs, fmt.Errorf("subsystem %q: webhook namespace and name are required", s.Name))
	}
	return errors.Join(errs...)
}

// DefaultSubsystems returns declarations for the stock installations of
// external-secrets, Traefik, cert-manager and external-dns.
func DefaultSubsystems() []Subsystem {
	return []Subsystem{
		{
			Name:       SecretStore,
			Controller: ObjectRef{Namespace: "external-secrets", Name: "external-secrets"},
			Webhook:    &ObjectRef{Namespace: "external-secrets", Name: "external-secrets-webhook"},
		},
		{
			Name:       Gateway,
			Controller: ObjectRef{Namespace: "traefik", Name: "traefik"},
		},
		{
			Name:       CertManager,
			Controller: ObjectRef{Namespace: "cert-manager", Name: "cert-manager"},
			Webhook:    &ObjectRef{Namespace: "cert-manager", Name: "cert-manager-webhook"},
		},
		{
			Name:       ExternalDNS,
			Controller: ObjectRef{Namespace: "external-dns", Name: "external-dns"},
		},
	}
}

// Budget bounds how long a gate waits.
type Budget struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultBudget returns the default wait budget.
func DefaultBudget() Budget {
	return Budget{
		MaxAttempts:  10,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
	}
}

// probeAllowance is the time one probe check may take.
const probeAllowance = 15 * time.Second

// Limit is the longest a single resolution can take: every attempt waiting
// the maximum delay, plus one probe check per attempt.
func (b Budget) Limit() time.Duration {
	attempts := max(b.MaxAttempts, 1)
	return time.Duration(attempts) * (b.MaxDelay + probeAllowance)
}

// Options converts the budget to retry options.
func (b Budget) Options() []retry.Option {
	attempts := b.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return []retry.Option{
		retry.WithMaxRetries(attempts - 1),
		retry.WithInitialDelay(b.InitialDelay),
		retry.WithMaxDelay(b.MaxDelay),
	}
}
