package handlers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/imamik/exposer/internal/config"
	"github.com/imamik/exposer/internal/platform/cloudflare"
	"github.com/imamik/exposer/internal/readiness"
	"github.com/imamik/exposer/internal/ui"
)

// ConflictFinder finds DNS records that clash with published hosts.
type ConflictFinder interface {
	GetZoneID(ctx context.Context, domain string) (string, error)
	FindConflicts(ctx context.Context, zoneID string, hosts []string, target string) ([]cloudflare.Conflict, error)
}

// newConflictFinder creates the DNS checker, or nil without a token.
var newConflictFinder = func() ConflictFinder {
	token := os.Getenv(envCloudflareToken)
	if token == "" {
		return nil
	}
	return cloudflare.NewClient(token)
}

// DoctorOptions configure the doctor command.
type DoctorOptions struct {
	ConfigPath string
	Kubeconfig string
}

// Doctor checks the fleet file, subsystem readiness and DNS conflicts.
//
// Cluster checks are skipped when no kubeconfig is reachable, and DNS checks
// are skipped without CF_API_TOKEN. A failed check makes the command fail;
// DNS conflicts are warnings.
func Doctor(ctx context.Context, opts DoctorOptions) error {
	printer := ui.NewPrinter(stdout, isInteractive())

	path, err := resolveConfigPath(opts.ConfigPath)
	if err != nil {
		return err
	}
	fleet, err := loadConfig(path)
	if err != nil {
		printer.Checks("Configuration", []ui.Check{{Name: path, Detail: err.Error()}})
		return fmt.Errorf("failed to load config: %w", err)
	}

	configChecks, hosts := doctorConfig(fleet, path)
	printer.Checks("Configuration", configChecks)

	clusterChecks := doctorCluster(ctx, fleet, opts.Kubeconfig)
	printer.Checks("Subsystems", clusterChecks)

	printer.Checks("DNS", doctorDNS(ctx, fleet, hosts))

	failed := 0
	for _, group := range [][]ui.Check{configChecks, clusterChecks} {
		for _, c := range group {
			if !c.OK && !c.Warn {
				failed++
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d checks failed", failed)
	}
	return nil
}

func doctorConfig(fleet *config.Fleet, path string) ([]ui.Check, []string) {
	checks := []ui.Check{{Name: "fleet file", OK: true, Detail: path}}

	workloads, fileErrs, err := fleet.LoadWorkloads(path)
	if err != nil {
		return append(checks, ui.Check{Name: "workloads", Detail: err.Error()}), nil
	}
	for _, fe := range fileErrs {
		checks = append(checks, ui.Check{Name: config.WorkloadNameFromPath(fe.Path), Detail: fe.Err.Error()})
	}

	var hosts []string
	for _, w := range workloads {
		d := w.WithDefaults()
		if d.Domain == "" && fleet.BaseDomain != "" {
			d.Domain = d.Name + "." + strings.TrimSuffix(fleet.BaseDomain, ".")
		}
		if err := d.Validate(); err != nil {
			checks = append(checks, ui.Check{Name: displayName(d.Name), Detail: err.Error()})
			continue
		}
		checks = append(checks, ui.Check{Name: d.Name, OK: true, Detail: d.Domain})
		hosts = append(hosts, d.Domain)
	}
	return checks, hosts
}

func displayName(name string) string {
	if name == "" {
		return "(unnamed)"
	}
	return name
}

func doctorCluster(ctx context.Context, fleet *config.Fleet, kubeconfig string) []ui.Check {
	c, err := newKubeClient(kubeconfig)
	if err != nil {
		return []ui.Check{{Name: "cluster", Warn: true, Detail: "skipped: " + err.Error()}}
	}

	version, err := c.ServerVersion(ctx)
	if err != nil {
		return []ui.Check{{Name: "cluster", Detail: err.Error()}}
	}
	checks := []ui.Check{{Name: "cluster", OK: true, Detail: version}}

	probe := readiness.NewKubeProbe(c.Reader())
	for _, s := range fleet.SubsystemDeclarations() {
		status, err := probe.Check(ctx, s)
		switch {
		case err != nil:
			checks = append(checks, ui.Check{Name: s.Name, Detail: err.Error()})
		case status.Ready:
			checks = append(checks, ui.Check{Name: s.Name, OK: true})
		default:
			checks = append(checks, ui.Check{Name: s.Name, Detail: status.Message})
		}
	}
	return checks
}

func doctorDNS(ctx context.Context, fleet *config.Fleet, hosts []string) []ui.Check {
	if fleet.Zone == nil {
		return []ui.Check{{Name: "zone", OK: true, Detail: "no zone configured"}}
	}
	finder := newConflictFinder()
	if finder == nil {
		return []ui.Check{{Name: "zone", Warn: true, Detail: "skipped: " + envCloudflareToken + " not set"}}
	}

	zoneID := fleet.Zone.ID
	if zoneID == "" {
		id, err := finder.GetZoneID(ctx, fleet.Zone.Domain)
		if err != nil {
			return []ui.Check{{Name: "zone", Warn: true, Detail: err.Error()}}
		}
		zoneID = id
	}
	checks := []ui.Check{{Name: "zone", OK: true, Detail: fleet.Zone.Domain + " (" + zoneID + ")"}}

	target := ""
	if fleet.Gateway != nil {
		target = fleet.Gateway.Hostname
	}
	conflicts, err := finder.FindConflicts(ctx, zoneID, hosts, target)
	if err != nil {
		return append(checks, ui.Check{Name: "records", Warn: true, Detail: err.Error()})
	}
	if len(conflicts) == 0 {
		return append(checks, ui.Check{Name: "records", OK: true, Detail: fmt.Sprintf("%d hosts free", len(hosts))})
	}
	for _, c := range conflicts {
		checks = append(checks, ui.Check{Name: c.Host, Warn: true, Detail: c.String()})
	}
	return checks
}
