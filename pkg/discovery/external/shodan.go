package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/config"
	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/httpclient"
	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/logger"
	"github.com/CodeMonkeyCybersecurity/osintrecon/pkg/types"
)

// ShodanHint is attached to every failed host lookup.
const ShodanHint = "Check your API key or try a well-known public IP such as scanme.shodan.io"

const maxResponseBytes = 10 << 20

var ErrMissingAPIKey = errors.New("shodan API key not configured")

// ShodanClient queries the Shodan host API
type ShodanClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *logger.Logger
}

// NewShodanClient creates a new Shodan client
func NewShodanClient(cfg config.ShodanConfig, log *logger.Logger) *ShodanClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.shodan.io"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &ShodanClient{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  httpclient.NewAPIClient(timeout),
		logger:  log.WithComponent("shodan"),
	}
}

// shodanHost mirrors the parts of /shodan/host/{ip} we display. Shodan
// sends null for unknown values, which decodes to the zero value.
type shodanHost struct {
	Error     string   `json:"error"`
	IP        string   `json:"ip_str"`
	Hostnames []string `json:"hostnames"`
	OS        string   `json:"os"`
	ASN       string   `json:"asn"`
	ISP       string   `json:"isp"`
	Org       string   `json:"org"`
	Country   string   `json:"country_name"`
	Ports     []int    `json:"ports"`
	Data      []struct {
		Port      int      `json:"port"`
		Transport string   `json:"transport"`
		Product   string   `json:"product"`
		Hostnames []string `json:"hostnames"`
		Location  *struct {
			City    string `json:"city"`
			Country string `json:"country_name"`
		} `json:"location"`
		HTTP *struct {
			WAF string `json:"waf"`
		} `json:"http"`
	} `json:"data"`
}

// LookupHost fetches everything Shodan has collected for ip. Failures carry
// ShodanHint as their remediation text.
func (s *ShodanClient) LookupHost(ctx context.Context, ip string) types.LookupResult[types.HostIntel] {
	start := time.Now()
	ctx, span := s.logger.StartOperation(ctx, "shodan.host", "ip", ip)

	host, err := s.lookupHost(ctx, ip)
	s.logger.FinishOperation(ctx, span, "shodan.host", start, err, "ip", ip)
	if err != nil {
		return types.Failure[types.HostIntel](err, ShodanHint)
	}

	s.logger.Infow("Shodan lookup completed",
		"ip", ip,
		"org", host.Organization,
		"ports", len(host.Ports),
		"services", len(host.Services))

	return types.Success(*host)
}

func (s *ShodanClient) lookupHost(ctx context.Context, ip string) (*types.HostIntel, error) {
	if s.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	endpoint, err := url.JoinPath(s.baseURL, "shodan", "host", ip)
	if err != nil {
		return nil, fmt.Errorf("invalid shodan base URL: %w", err)
	}
	query := url.Values{"key": {s.apiKey}}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		// The transport error embeds the URL, key included.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("shodan request failed: %w", err)
	}
	defer httpclient.CloseBody(resp)

	// endpoint carries no key, so it is safe to log.
	s.logger.LogHTTPRequest(ctx, http.MethodGet, endpoint, resp.StatusCode, time.Since(start))

	var hostInfo shodanHost
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&hostInfo)

	if hostInfo.Error != "" {
		return nil, fmt.Errorf("shodan API error: %s", hostInfo.Error)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("shodan API error: %s", resp.Status)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode shodan response: %w", decodeErr)
	}

	host := &types.HostIntel{
		IP:           hostInfo.IP,
		Organization: hostInfo.Org,
		OS:           hostInfo.OS,
		ISP:          hostInfo.ISP,
		ASN:          hostInfo.ASN,
		Country:      hostInfo.Country,
		Hostnames:    hostInfo.Hostnames,
		Ports:        hostInfo.Ports,
	}
	if host.IP == "" {
		host.IP = ip
	}
	if host.Ports == nil {
		host.Ports = []int{}
	}

	for _, data := range hostInfo.Data {
		svc := types.Service{
			Port:      data.Port,
			Transport: data.Transport,
			Product:   data.Product,
			Hostnames: data.Hostnames,
		}
		if data.Location != nil {
			svc.City = data.Location.City
			svc.Country = data.Location.Country
		}
		if data.HTTP != nil {
			svc.WAF = data.HTTP.WAF
		}
		host.Services = append(host.Services, svc)
	}

	return host, nil
}
