package whois

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/config"
	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/logger"
	"github.com/CodeMonkeyCybersecurity/osintrecon/pkg/types"
	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
)

// ErrNoResponse is returned when the WHOIS server answers with nothing.
var ErrNoResponse = errors.New("empty whois response")

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// Querier performs the raw WHOIS protocol exchange. *whois.Client satisfies it.
type Querier interface {
	Whois(domain string, servers ...string) (string, error)
}

// WhoisClient performs registration lookups
type WhoisClient struct {
	querier Querier
	server  string
	logger  *logger.Logger
}

// NewWhoisClient creates a WHOIS client backed by likexian/whois
func NewWhoisClient(cfg config.WhoisConfig, log *logger.Logger) *WhoisClient {
	client := whois.NewClient()
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return NewWhoisClientWithQuerier(client, cfg, log)
}

func NewWhoisClientWithQuerier(q Querier, cfg config.WhoisConfig, log *logger.Logger) *WhoisClient {
	return &WhoisClient{
		querier: q,
		server:  cfg.Server,
		logger:  log.WithComponent("whois"),
	}
}

// Lookup queries and parses the registration record of domain. Every
// failure comes back as a failed LookupResult carrying the error text.
func (w *WhoisClient) Lookup(ctx context.Context, domain string) types.LookupResult[types.Registration] {
	start := time.Now()
	ctx, span := w.logger.StartOperation(ctx, "whois.lookup", "domain", domain)

	reg, err := w.lookup(ctx, domain)
	w.logger.FinishOperation(ctx, span, "whois.lookup", start, err, "domain", domain)
	if err != nil {
		return types.Failure[types.Registration](err, "")
	}

	w.logger.Infow("WHOIS lookup completed",
		"domain", domain,
		"registrant", reg.Registrant,
		"registrar", reg.Registrar,
		"emails", reg.Emails.String())

	return types.Success(*reg)
}

func (w *WhoisClient) lookup(ctx context.Context, domain string) (*types.Registration, error) {
	raw, err := w.query(ctx, domain)
	if err != nil {
		return nil, err
	}

	parsed, err := whoisparser.Parse(raw)
	switch {
	case err == nil:
		return fromParsed(domain, parsed), nil
	case errors.Is(err, whoisparser.ErrNotFoundDomain):
		return nil, fmt.Errorf("no whois record for %s: %w", domain, err)
	case errors.Is(err, whoisparser.ErrReservedDomain),
		errors.Is(err, whoisparser.ErrPremiumDomain),
		errors.Is(err, whoisparser.ErrBlockedDomain),
		errors.Is(err, whoisparser.ErrDomainLimitExceed):
		return nil, fmt.Errorf("whois lookup for %s refused: %w", domain, err)
	}

	// Formats the parser does not know still carry key: value lines.
	w.logger.Debugw("WHOIS parser failed, falling back to manual extraction", "domain", domain, "error", err)
	reg, ok := parseManual(domain, raw)
	if !ok {
		return nil, fmt.Errorf("unparsable whois response for %s: %w", domain, err)
	}
	return reg, nil
}

// query runs the blocking protocol exchange so that ctx cancellation is
// honored even though the library takes no context.
func (w *WhoisClient) query(ctx context.Context, domain string) (string, error) {
	type answer struct {
		raw string
		err error
	}

	done := make(chan answer, 1)
	go func() {
		var servers []string
		if w.server != "" {
			servers = append(servers, w.server)
		}
		raw, err := w.querier.Whois(domain, servers...)
		done <- answer{raw: raw, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("whois lookup cancelled: %w", ctx.Err())
	case a := <-done:
		if a.err != nil {
			return "", fmt.Errorf("whois lookup failed: %w", a.err)
		}
		if strings.TrimSpace(a.raw) == "" {
			return "", ErrNoResponse
		}
		return a.raw, nil
	}
}

func fromParsed(domain string, parsed whoisparser.WhoisInfo) *types.Registration {
	reg := &types.Registration{Domain: domain}

	if d := parsed.Domain; d != nil {
		reg.CreatedDate = d.CreatedDate
		reg.ExpirationDate = d.ExpirationDate
		reg.NameServers = d.NameServers
	}
	if r := parsed.Registrar; r != nil {
		reg.Registrar = r.Name
	}
	if r := parsed.Registrant; r != nil {
		reg.Registrant = r.Name
		if reg.Registrant == "" {
			reg.Registrant = r.Organization
		}
	}

	var emails []string
	for _, contact := range []*whoisparser.Contact{
		parsed.Registrant,
		parsed.Administrative,
		parsed.Technical,
		parsed.Billing,
	} {
		if contact == nil {
			continue
		}
		emails = append(emails, emailPattern.FindAllString(contact.Email, -1)...)
	}
	reg.Emails = emailField(emails)

	return reg
}

// parseManual extracts what it can from raw key: value lines. The boolean
// is false when nothing useful was found.
func parseManual(domain, raw string) (*types.Registration, bool) {
	reg := &types.Registration{Domain: domain}
	var emails []string
	found := false

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "%") || strings.HasPrefix(line, "#") {
			continue
		}

		emails = append(emails, emailPattern.FindAllString(line, -1)...)

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		switch {
		case key == "registrant name" || key == "registrant":
			reg.Registrant = value
			found = true
		case (key == "registrant organization" || key == "org" || key == "organization") && reg.Registrant == "":
			reg.Registrant = value
			found = true
		case key == "registrar":
			reg.Registrar = value
			found = true
		case key == "creation date" || key == "created" || key == "registered on":
			if reg.CreatedDate == "" {
				reg.CreatedDate = value
			}
			found = true
		case strings.Contains(key, "expir"):
			if reg.ExpirationDate == "" {
				reg.ExpirationDate = value
			}
			found = true
		case key == "name server" || key == "nserver":
			reg.NameServers = append(reg.NameServers, strings.ToLower(value))
			found = true
		}
	}

	reg.Emails = emailField(emails)
	return reg, found || reg.Emails.Present()
}

// emailField keeps the distinct addresses in order of appearance: one
// address stays a single value, several become a list.
func emailField(emails []string) types.EmailField {
	seen := make(map[string]bool)
	var distinct []string
	for _, email := range emails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true
		distinct = append(distinct, email)
	}

	switch len(distinct) {
	case 0:
		return types.NoEmails()
	case 1:
		return types.SingleEmail(distinct[0])
	default:
		return types.EmailList(distinct)
	}
}
