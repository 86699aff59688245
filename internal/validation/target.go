package validation

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

var ErrEmptyTarget = errors.New("no domain provided")

var (
	domainRegex = regexp.MustCompile(`^([a-z0-9]([a-z0-9\-]{0,61}[a-z0-9])?\.)+([a-z]{2,}|xn--[a-z0-9\-]+)$`)
	emailRegex  = regexp.MustCompile(`^[a-z0-9._%+-]+@[^@\s]+\.[^@\s.]{2,}$`)
)

// Target is the domain a run will investigate
type Target struct {
	Domain   string
	Kind     string // "domain", "url", "email", "ip"
	Warnings []string
}

// ParseTarget reduces user input to a lower-cased ASCII domain. URLs give
// their host and email addresses their domain part.
func ParseTarget(input string) (*Target, error) {
	raw := strings.ToLower(strings.TrimSpace(input))
	if raw == "" {
		return nil, ErrEmptyTarget
	}

	target := &Target{Kind: "domain"}
	host := raw

	switch {
	case strings.Contains(raw, "://"):
		parsedURL, err := url.Parse(raw)
		if err != nil || parsedURL.Hostname() == "" {
			return nil, fmt.Errorf("invalid URL %q", strings.TrimSpace(input))
		}
		target.Kind = "url"
		host = parsedURL.Hostname()
	case emailRegex.MatchString(raw):
		target.Kind = "email"
		host = raw[strings.LastIndex(raw, "@")+1:]
		target.Warnings = append(target.Warnings, "Email provided - investigating its domain "+host)
	}

	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return nil, ErrEmptyTarget
	}

	if ip := net.ParseIP(host); ip != nil {
		target.Kind = "ip"
		target.Domain = ip.String()
		if isPrivateHost(ip) {
			target.Warnings = append(target.Warnings, "Target is a private or local address; public sources will know little about it")
		}
		return target, nil
	}

	// Internationalized names are looked up in their punycode form.
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil || !domainRegex.MatchString(ascii) {
		return nil, fmt.Errorf("invalid domain %q", strings.TrimSpace(input))
	}
	target.Domain = ascii

	if isPrivateTLD(host) {
		target.Warnings = append(target.Warnings, "Target uses a private or reserved TLD; public sources will know little about it")
	}
	return target, nil
}

func isPrivateTLD(host string) bool {
	for _, tld := range []string{".local", ".internal", ".lan", ".test", ".localhost", ".invalid", ".example"} {
		if strings.HasSuffix(host, tld) {
			return true
		}
	}
	return false
}

// isPrivateHost checks if an IP is loopback, private or unspecified
func isPrivateHost(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
