package display

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/CodeMonkeyCybersecurity/osintrecon/pkg/types"
	"github.com/fatih/color"
)

const (
	NotAvailable = "Not available"
	Unknown      = "Unknown"
	NoneFound    = "None found"
	Unresolved   = "Could not resolve IP"

	summaryBanner = "========== OSINT SUMMARY =========="
)

// Printer renders lookup results as terminal text. Colors apply to headers
// and labels only and follow color.NoColor.
type Printer struct {
	w       io.Writer
	header  *color.Color
	label   *color.Color
	failure *color.Color
	good    *color.Color
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{
		w:       w,
		header:  color.New(color.FgCyan, color.Bold),
		label:   color.New(color.FgHiBlack),
		failure: color.New(color.FgRed),
		good:    color.New(color.FgGreen),
	}
}

func (p *Printer) ResolvedIP(ip string) {
	value := p.good.Sprint(ip)
	if ip == "" {
		value = p.failure.Sprint(Unresolved)
	}
	fmt.Fprintf(p.w, "%s %s\n", p.label.Sprint("Resolved IP:"), value)
}

func (p *Printer) Registration(r types.LookupResult[types.Registration]) {
	p.section("[ WHOIS ]")

	reg, ok := r.Value()
	if !ok {
		p.errorLine(r.Err(), r.Hint())
		return
	}

	p.field("Domain", orDefault(reg.Domain, NotAvailable))
	p.field("Registrant", orDefault(reg.Registrant, NotAvailable))
	p.field("Emails", formatEmails(reg.Emails))
	p.field("Registration date", orDefault(reg.CreatedDate, Unknown))
	p.field("Expiration date", orDefault(reg.ExpirationDate, Unknown))
}

func (p *Printer) HostIntel(r types.LookupResult[types.HostIntel]) {
	p.section("[ SHODAN ]")

	host, ok := r.Value()
	if !ok {
		p.errorLine(r.Err(), r.Hint())
		return
	}

	p.field("IP", host.IP)
	p.field("Organization", orDefault(host.Organization, Unknown))
	p.field("Operating system", orDefault(host.OS, Unknown))
	p.field("Open ports", orDefault(FormatPorts(host.Ports), "None"))

	if len(host.Services) == 0 {
		return
	}

	fmt.Fprintln(p.w, p.label.Sprint("Detected services:"))
	for _, svc := range host.Services {
		fmt.Fprintf(p.w, "- Port %d: %s\n", svc.Port, orDefault(svc.Product, Unknown))
		if svc.WAF != "" {
			fmt.Fprintf(p.w, "  WAF: %s\n", svc.WAF)
		}
		if location := joinPresent(svc.City, svc.Country); location != "" {
			fmt.Fprintf(p.w, "  Location: %s\n", location)
		}
		if len(svc.Hostnames) > 0 {
			fmt.Fprintf(p.w, "  Hostnames: %s\n", strings.Join(svc.Hostnames, ", "))
		}
	}
}

// HarvestError prints the search failure of a harvest; nothing otherwise.
func (p *Printer) HarvestError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(p.w, "%s %v\n", p.failure.Sprint("Email search error:"), err)
}

func (p *Printer) Summary(report *types.Report) {
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.header.Sprint(summaryBanner))

	whoisEmails := NotAvailable
	if reg, ok := report.Registration.Value(); ok {
		whoisEmails = formatEmails(reg.Emails)
	}
	p.field("WHOIS emails", whoisEmails)

	harvested := NoneFound
	if len(report.Harvest.Emails) > 0 {
		harvested = strings.Join(report.Harvest.Emails, ", ")
	}
	p.field("Search-harvested emails", harvested)

	host, ok := report.Host.Value()
	if !ok {
		p.field("Shodan", errText(report.Host.Err()))
		return
	}
	p.field("Open ports", orDefault(FormatPorts(host.Ports), "None"))
	p.field("Organization", orDefault(host.Organization, Unknown))
}

func (p *Printer) section(title string) {
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.header.Sprint(title))
}

func (p *Printer) field(name, value string) {
	fmt.Fprintf(p.w, "%s %s\n", p.label.Sprint(name+":"), value)
}

func (p *Printer) errorLine(err error, hint string) {
	fmt.Fprintf(p.w, "%s %s\n", p.failure.Sprint("Error:"), errText(err))
	if hint != "" {
		fmt.Fprintf(p.w, "%s %s\n", p.label.Sprint("Suggestion:"), hint)
	}
}

// FormatPorts renders ports as "80, 443".
func FormatPorts(ports []int) string {
	parts := make([]string, len(ports))
	for i, port := range ports {
		parts[i] = strconv.Itoa(port)
	}
	return strings.Join(parts, ", ")
}

// formatEmails prints one address as is and a list comma separated.
func formatEmails(emails types.EmailField) string {
	switch emails.Kind() {
	case types.EmailsSingle:
		email, _ := emails.Single()
		return email
	case types.EmailsList:
		list, _ := emails.List()
		return strings.Join(list, ", ")
	default:
		return NotAvailable
	}
}

func joinPresent(values ...string) string {
	var present []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			present = append(present, v)
		}
	}
	return strings.Join(present, ", ")
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func errText(err error) string {
	if err == nil {
		return Unknown
	}
	return err.Error()
}
