package orchestrator

import (
	"context"
	"fmt"
	"io"

	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/config"
	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/logger"
	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/telemetry"
	"github.com/CodeMonkeyCybersecurity/osintrecon/pkg/cli/display"
	"github.com/CodeMonkeyCybersecurity/osintrecon/pkg/discovery/dns"
	"github.com/CodeMonkeyCybersecurity/osintrecon/pkg/discovery/external"
	"github.com/CodeMonkeyCybersecurity/osintrecon/pkg/discovery/harvest"
	"github.com/CodeMonkeyCybersecurity/osintrecon/pkg/discovery/whois"
)

// ReconFactory builds a Recon wired to the real network clients
type ReconFactory struct {
	config    *config.Config
	telemetry telemetry.Telemetry
	logger    *logger.Logger
	out       io.Writer
}

func NewReconFactory(cfg *config.Config, tel telemetry.Telemetry, log *logger.Logger, out io.Writer) *ReconFactory {
	return &ReconFactory{
		config:    cfg,
		telemetry: tel,
		logger:    log,
		out:       out,
	}
}

// Build constructs the pipeline. It only fails on invalid configuration.
func (f *ReconFactory) Build(ctx context.Context) (*Recon, error) {
	f.logger.Debugw("Building recon pipeline",
		"component", "factory",
		"nameserver", f.config.Resolver.Nameserver,
		"search_url", f.config.Harvest.SearchURL,
		"shodan_key_set", f.config.Shodan.APIKey != "",
	)

	harvester, err := harvest.NewHarvester(f.config.Harvest, f.logger)
	if err != nil {
		err = fmt.Errorf("failed to build email harvester: %w", err)
		f.logger.LogError(ctx, err, "recon.build", "component", "factory")
		return nil, err
	}

	return NewRecon(Components{
		Resolver:  dns.NewResolver(f.config.Resolver, f.logger),
		Whois:     whois.NewWhoisClient(f.config.Whois, f.logger),
		Hosts:     external.NewShodanClient(f.config.Shodan, f.logger),
		Harvester: harvester,
		Presenter: display.NewPrinter(f.out),
	}, f.telemetry, f.logger), nil
}
