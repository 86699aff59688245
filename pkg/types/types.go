package types

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

type LookupKind string

const (
	LookupKindResolve      LookupKind = "resolve"
	LookupKindRegistration LookupKind = "whois"
	LookupKindHost         LookupKind = "shodan"
	LookupKindHarvest      LookupKind = "harvest"
)

type LookupStatus string

const (
	LookupStatusSuccess LookupStatus = "success"
	LookupStatusFailed  LookupStatus = "failed"
)

// ErrNotPerformed is carried by the zero LookupResult.
var ErrNotPerformed = errors.New("lookup not performed")

// LookupResult holds exactly one of a value or a failure. Build it with
// Success or Failure; the zero value reads as a failure.
type LookupResult[T any] struct {
	value T
	ok    bool
	err   error
	hint  string
}

func Success[T any](value T) LookupResult[T] {
	return LookupResult[T]{value: value, ok: true}
}

// Failure records err and an optional remediation hint for the user.
// A nil err is replaced by ErrNotPerformed so a failure always has a message.
func Failure[T any](err error, hint string) LookupResult[T] {
	if err == nil {
		err = ErrNotPerformed
	}
	return LookupResult[T]{err: err, hint: hint}
}

func (r LookupResult[T]) OK() bool {
	return r.ok
}

func (r LookupResult[T]) Value() (T, bool) {
	return r.value, r.ok
}

func (r LookupResult[T]) Err() error {
	if r.ok {
		return nil
	}
	if r.err == nil {
		return ErrNotPerformed
	}
	return r.err
}

func (r LookupResult[T]) Hint() string {
	return r.hint
}

func (r LookupResult[T]) Status() LookupStatus {
	if r.ok {
		return LookupStatusSuccess
	}
	return LookupStatusFailed
}

type EmailKind int

const (
	EmailsAbsent EmailKind = iota
	EmailsSingle
	EmailsList
)

// EmailField keeps the shape WHOIS data arrives in: nothing, one address,
// or several. Callers must look at Kind instead of assuming a list.
type EmailField struct {
	kind   EmailKind
	single string
	list   []string
}

func NoEmails() EmailField {
	return EmailField{kind: EmailsAbsent}
}

func SingleEmail(email string) EmailField {
	if email == "" {
		return NoEmails()
	}
	return EmailField{kind: EmailsSingle, single: email}
}

func EmailList(emails []string) EmailField {
	if len(emails) == 0 {
		return NoEmails()
	}
	list := make([]string, len(emails))
	copy(list, emails)
	return EmailField{kind: EmailsList, list: list}
}

func (e EmailField) Kind() EmailKind {
	return e.kind
}

func (e EmailField) Present() bool {
	return e.kind != EmailsAbsent
}

func (e EmailField) Single() (string, bool) {
	return e.single, e.kind == EmailsSingle
}

func (e EmailField) List() ([]string, bool) {
	if e.kind != EmailsList {
		return nil, false
	}
	list := make([]string, len(e.list))
	copy(list, e.list)
	return list, true
}

func (e EmailField) String() string {
	switch e.kind {
	case EmailsSingle:
		return e.single
	case EmailsList:
		return strings.Join(e.list, ", ")
	default:
		return ""
	}
}

// Registration is the parsed WHOIS record of a domain. Empty strings mean
// the upstream record did not carry the field.
type Registration struct {
	Domain         string
	Registrant     string
	Registrar      string
	Emails         EmailField
	CreatedDate    string
	ExpirationDate string
	NameServers    []string
}

// Service is one entry of the host intelligence "data" array.
type Service struct {
	Port      int
	Transport string
	Product   string
	City      string
	Country   string
	Hostnames []string
	WAF       string
}

type HostIntel struct {
	IP           string
	Organization string
	OS           string
	ISP          string
	ASN          string
	Country      string
	Hostnames    []string
	Ports        []int
	Services     []Service
}

// EmailSet deduplicates addresses by exact text. Safe for concurrent use.
type EmailSet struct {
	mu     sync.Mutex
	emails map[string]struct{}
}

func NewEmailSet() *EmailSet {
	return &EmailSet{emails: make(map[string]struct{})}
}

// Add inserts every address and reports how many were new.
func (s *EmailSet) Add(emails ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, email := range emails {
		if _, exists := s.emails[email]; exists {
			continue
		}
		s.emails[email] = struct{}{}
		added++
	}
	return added
}

func (s *EmailSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.emails)
}

func (s *EmailSet) Sorted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.emails))
	for email := range s.emails {
		out = append(out, email)
	}
	sort.Strings(out)
	return out
}

type HarvestResult struct {
	Query        string
	Emails       []string
	PagesVisited int
	PagesFailed  int
	SearchErr    error
}

// Report collects everything one run produced.
type Report struct {
	RunID        string
	Domain       string
	IP           string
	Registration LookupResult[Registration]
	Host         LookupResult[HostIntel]
	Harvest      HarvestResult
	StartedAt    time.Time
	Duration     time.Duration
}

func (r *Report) Resolved() bool {
	return r.IP != ""
}
