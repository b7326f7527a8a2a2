package config

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/exposer/internal/credentials"
	"github.com/imamik/exposer/internal/workload"
)

// loadBalancerOptions are shown in the gateway load balancer selector.
// Populated by FetchLoadBalancerOptions when HCLOUD_TOKEN is available.
var loadBalancerOptions []huh.Option[string]

// FetchLoadBalancerOptions lists the project's load balancers for the wizard.
func FetchLoadBalancerOptions(ctx context.Context, client *hcloud.Client) error {
	lbs, err := client.LoadBalancer.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch load balancers: %w", err)
	}
	sort.Slice(lbs, func(i, j int) bool { return lbs[i].Name < lbs[j].Name })

	opts := []huh.Option[string]{huh.NewOption("None (enter hostname)", "")}
	for _, lb := range lbs {
		label := lb.Name
		if ip := lb.PublicNet.IPv4.IP; ip != nil {
			label += " (" + ip.String() + ")"
		}
		opts = append(opts, huh.NewOption(label, lb.Name))
	}
	loadBalancerOptions = opts
	return nil
}

// WizardResult holds the answers of the init wizard.
type WizardResult struct {
	Name            string
	BaseDomain      string
	Issuer          string
	GatewayHostname string
	LoadBalancer    string
	PublishDNS      bool
	SecretStore     string
	RegistrySecret  string
	AuthAddress     string
	WorkloadName    string
	WorkloadImage   string
	WorkloadPort    string
}

// RunWizard asks for the fields of a starter fleet file.
func RunWizard(ctx context.Context) (*WizardResult, error) {
	result := &WizardResult{
		Issuer:        "letsencrypt-production",
		PublishDNS:    true,
		WorkloadName:  "hello",
		WorkloadImage: "nginx:1.27",
		WorkloadPort:  "80",
	}

	gatewayGroup := huh.NewGroup(
		huh.NewInput().
			Title("Gateway hostname").
			Description("Shared public hostname DNS records point at (load balancer or tunnel)").
			Placeholder("lb.example.net").
			Value(&result.GatewayHostname),
	)
	if len(loadBalancerOptions) > 0 {
		gatewayGroup = huh.NewGroup(
			huh.NewSelect[string]().
				Title("Gateway load balancer").
				Description("Its reverse DNS name becomes the gateway hostname").
				Options(loadBalancerOptions...).
				Value(&result.LoadBalancer),
			huh.NewInput().
				Title("Gateway hostname").
				Description("Leave empty to discover it from the load balancer").
				Value(&result.GatewayHostname),
		)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Fleet name").
				Description("Labels every namespace the fleet creates (DNS-safe, lowercase)").
				Placeholder("apps").
				Value(&result.Name).
				Validate(validateName),
			huh.NewInput().
				Title("Base domain").
				Description("Workloads without a domain get <name>.<base domain>").
				Placeholder("example.com").
				Value(&result.BaseDomain).
				Validate(validateDomain),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("Cluster issuer").
				Description("cert-manager ClusterIssuer for route certificates. Leave empty to skip TLS.").
				Value(&result.Issuer),
			huh.NewConfirm().
				Title("Publish DNS records?").
				Description("external-dns DNSEndpoints in the base domain's zone").
				Value(&result.PublishDNS),
		),

		gatewayGroup,

		huh.NewGroup(
			huh.NewInput().
				Title("Secret store (optional)").
				Description("ClusterSecretStore credentials are synchronized from").
				Value(&result.SecretStore),
			huh.NewInput().
				Title("Registry credential (optional)").
				Description("Distributed to every namespace as an image pull secret").
				Value(&result.RegistrySecret),
			huh.NewInput().
				Title("Forward-auth address (optional)").
				Placeholder("https://auth.example.com/verify").
				Value(&result.AuthAddress),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("First workload name").
				Value(&result.WorkloadName).
				Validate(validateName),
			huh.NewInput().
				Title("Image").
				Value(&result.WorkloadImage),
			huh.NewInput().
				Title("Container port").
				Value(&result.WorkloadPort).
				Validate(validatePort),
		),
	)

	if err := form.RunWithContext(ctx); err != nil {
		return nil, fmt.Errorf("wizard canceled: %w", err)
	}
	return result, nil
}

// ToFleet converts the answers into a fleet file.
func (r *WizardResult) ToFleet() *Fleet {
	f := &Fleet{
		Name:       r.Name,
		BaseDomain: r.BaseDomain,
		Gateway: &Gateway{
			Name:         "traefik",
			Namespace:    "traefik",
			SectionName:  "websecure",
			Hostname:     r.GatewayHostname,
			LoadBalancer: r.LoadBalancer,
		},
	}
	if r.Issuer != "" {
		f.Issuer = &Issuer{Name: r.Issuer}
	}
	if r.PublishDNS && r.BaseDomain != "" {
		f.Zone = &Zone{Domain: r.BaseDomain, TTL: 300}
	}
	if r.SecretStore != "" {
		f.SecretStore = &SecretStore{Name: r.SecretStore, Kind: "ClusterSecretStore"}
		if r.RegistrySecret != "" {
			f.Credentials = []credentials.Provider{{
				ID:        r.RegistrySecret,
				Type:      credentials.TypeRegistry,
				FleetWide: true,
			}}
		}
	}
	if r.AuthAddress != "" {
		f.AuthBackend = &AuthBackend{Address: r.AuthAddress}
	}

	port, _ := strconv.Atoi(r.WorkloadPort)
	w := workload.Descriptor{
		Name:     r.WorkloadName,
		Image:    r.WorkloadImage,
		Port:     port,
		AuthMode: workload.AuthNone,
	}
	if f.Credentials != nil {
		w.PullSecrets = []string{r.RegistrySecret}
	}
	f.Workloads = []workload.Descriptor{w}
	return f
}

func validateName(s string) error {
	if s == "" {
		return fmt.Errorf("name is required")
	}
	if len(s) > 63 {
		return fmt.Errorf("name must be 63 characters or less")
	}
	for _, c := range s {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
			return fmt.Errorf("name can only contain lowercase letters, numbers, and hyphens")
		}
	}
	if s[0] == '-' || s[len(s)-1] == '-' {
		return fmt.Errorf("name cannot start or end with a hyphen")
	}
	return nil
}

func validateDomain(s string) error {
	if s == "" {
		return nil
	}
	if len(strings.Split(s, ".")) < 2 {
		return fmt.Errorf("invalid domain format (expected example.com)")
	}
	return nil
}

func validatePort(s string) error {
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}
