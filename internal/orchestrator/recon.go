package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/logger"
	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/telemetry"
	"github.com/CodeMonkeyCybersecurity/osintrecon/pkg/cli/display"
	"github.com/CodeMonkeyCybersecurity/osintrecon/pkg/types"
	"github.com/google/uuid"
)

// lookupCount is the number of lookups attempted per run.
const lookupCount = 4

// ErrUnresolved is the host lookup failure when the domain had no address.
var ErrUnresolved = errors.New(display.Unresolved)

type Resolver interface {
	Resolve(ctx context.Context, domain string) (string, bool)
}

type RegistrationLookup interface {
	Lookup(ctx context.Context, domain string) types.LookupResult[types.Registration]
}

type HostLookup interface {
	LookupHost(ctx context.Context, ip string) types.LookupResult[types.HostIntel]
}

type EmailHarvester interface {
	Harvest(ctx context.Context, domain string) types.HarvestResult
}

// Presenter receives each result as soon as it is available.
type Presenter interface {
	ResolvedIP(ip string)
	Registration(r types.LookupResult[types.Registration])
	HostIntel(r types.LookupResult[types.HostIntel])
	HarvestError(err error)
	Summary(report *types.Report)
}

// Recon runs the four lookups for one domain in a fixed order and hands
// every result to the presenter.
type Recon struct {
	resolver  Resolver
	whois     RegistrationLookup
	hosts     HostLookup
	harvester EmailHarvester
	presenter Presenter
	telemetry telemetry.Telemetry
	logger    *logger.Logger
}

type Components struct {
	Resolver  Resolver
	Whois     RegistrationLookup
	Hosts     HostLookup
	Harvester EmailHarvester
	Presenter Presenter
}

func NewRecon(c Components, tel telemetry.Telemetry, log *logger.Logger) *Recon {
	if tel == nil {
		tel = telemetry.Noop()
	}
	return &Recon{
		resolver:  c.Resolver,
		whois:     c.Whois,
		hosts:     c.Hosts,
		harvester: c.Harvester,
		presenter: c.Presenter,
		telemetry: tel,
		logger:    log.WithComponent("orchestrator"),
	}
}

// Run performs one sequential reconnaissance pass over domain. Lookup
// failures end up in the report; Run itself never fails.
func (r *Recon) Run(ctx context.Context, domain string) *types.Report {
	report := &types.Report{
		RunID:     uuid.New().String(),
		Domain:    domain,
		StartedAt: time.Now(),
	}

	log := r.logger.WithRunID(report.RunID).WithTarget(domain)
	ctx, span := log.StartSpan(ctx, "recon.run")
	defer span.End()

	log.Infow("Starting reconnaissance", "domain", domain)
	failures := NewFailureAggregator()

	// Resolution gates the host lookup only.
	start := time.Now()
	ip, ok := r.resolver.Resolve(ctx, domain)
	r.record(ctx, log, types.LookupKindResolve, statusOf(ok), start)
	if ok {
		report.IP = ip
	} else {
		failures.Add(types.LookupKindResolve, ErrUnresolved)
	}
	r.presenter.ResolvedIP(report.IP)

	start = time.Now()
	report.Registration = r.whois.Lookup(ctx, domain)
	r.record(ctx, log, types.LookupKindRegistration, report.Registration.Status(), start)
	failures.Add(types.LookupKindRegistration, report.Registration.Err())
	r.presenter.Registration(report.Registration)

	if report.Resolved() {
		start = time.Now()
		report.Host = r.hosts.LookupHost(ctx, report.IP)
		r.record(ctx, log, types.LookupKindHost, report.Host.Status(), start)
		failures.Add(types.LookupKindHost, report.Host.Err())
	} else {
		log.Debugw("Skipping host lookup, domain did not resolve", "domain", domain)
		report.Host = types.Failure[types.HostIntel](ErrUnresolved, "")
	}
	r.presenter.HostIntel(report.Host)

	start = time.Now()
	report.Harvest = r.harvester.Harvest(ctx, domain)
	r.record(ctx, log, types.LookupKindHarvest, statusOf(report.Harvest.SearchErr == nil), start)
	if report.Harvest.SearchErr != nil {
		failures.Add(types.LookupKindHarvest, report.Harvest.SearchErr)
		log.Warnw("Email search failed, keeping partial results",
			"error", report.Harvest.SearchErr,
			"emails_found", len(report.Harvest.Emails))
	}
	r.presenter.HarvestError(report.Harvest.SearchErr)

	report.Duration = time.Since(report.StartedAt)
	r.presenter.Summary(report)

	fields := []interface{}{
		"ip", report.IP,
		"duration_ms", report.Duration.Milliseconds(),
		"summary", failures.Summary(lookupCount),
	}
	if failures.HasFailures() {
		log.Warnw("Reconnaissance finished with failures", append(fields,
			"failed_lookups", failures.Kinds(),
			"error", failures.Error())...)
	} else {
		log.Infow("Reconnaissance finished", fields...)
	}

	return report
}

func (r *Recon) record(ctx context.Context, log *logger.Logger, kind types.LookupKind, status types.LookupStatus, start time.Time) {
	log.WithLookup(string(kind)).LogDuration(ctx, string(kind), start, "status", status)
	r.telemetry.RecordLookup(ctx, kind, status, time.Since(start))
}

func statusOf(ok bool) types.LookupStatus {
	if ok {
		return types.LookupStatusSuccess
	}
	return types.LookupStatusFailed
}
