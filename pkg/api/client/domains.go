package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// DomainsService covers custom domains and their ACME certificates.
type DomainsService struct{ client *Client }

// Challenge types accepted by Create.
const (
	ChallengeHTTP01 = "http-01"
	ChallengeDNS01  = "dns-01"
)

// Domain is a custom domain with its certificate state.
type Domain struct {
	ID                 int          `json:"id"`
	Domain             string       `json:"domain"`
	Status             DomainStatus `json:"status"`
	ExpirationTime     *Millis      `json:"expiration_time,omitempty"`
	LastRenewed        *Millis      `json:"last_renewed,omitempty"`
	DNSChallengeToken  *string      `json:"dns_challenge_token,omitempty"`
	DNSChallengeValue  *string      `json:"dns_challenge_value,omitempty"`
	LastError          *string      `json:"last_error,omitempty"`
	LastErrorType      *string      `json:"last_error_type,omitempty"`
	IsWildcard         bool         `json:"is_wildcard"`
	VerificationMethod string       `json:"verification_method"`
	CreatedAt          Millis       `json:"created_at"`
	UpdatedAt          Millis       `json:"updated_at"`
	Certificate        *string      `json:"certificate,omitempty"`
}

// HasDNSChallenge reports whether the server already published DNS challenge data.
func (d Domain) HasDNSChallenge() bool {
	return (d.DNSChallengeToken != nil && *d.DNSChallengeToken != "") ||
		(d.DNSChallengeValue != nil && *d.DNSChallengeValue != "")
}

// TXTRecord is a DNS record the user must publish.
type TXTRecord struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DomainChallenge lists the TXT records for a DNS-01 challenge.
type DomainChallenge struct {
	Domain     string      `json:"domain"`
	TXTRecords []TXTRecord `json:"txt_records"`
	Status     string      `json:"status"`
}

// AcmeOrder is the server's view of an ACME order for a domain.
type AcmeOrder struct {
	ID             int             `json:"id"`
	OrderURL       string          `json:"order_url"`
	DomainID       int             `json:"domain_id"`
	Email          string          `json:"email"`
	Status         OrderStatus     `json:"status"`
	Identifiers    json.RawMessage `json:"identifiers"`
	Authorizations json.RawMessage `json:"authorizations,omitempty"`
	FinalizeURL    *string         `json:"finalize_url,omitempty"`
	CertificateURL *string         `json:"certificate_url,omitempty"`
	Error          *string         `json:"error,omitempty"`
	ErrorType      *string         `json:"error_type,omitempty"`
	CreatedAt      Millis          `json:"created_at"`
	UpdatedAt      Millis          `json:"updated_at"`
	ExpiresAt      *Millis         `json:"expires_at,omitempty"`
}

// HasAuthorizations reports whether the order carries authorization data.
func (o AcmeOrder) HasAuthorizations() bool {
	switch string(o.Authorizations) {
	case "", "null", "[]", "{}":
		return false
	}
	return true
}

// Provisioning is the outcome of a renew request: the certificate is either
// issued, waiting on a challenge, or failed.
type Provisioning struct {
	Type      string
	Domain    *Domain
	Challenge *DomainChallenge
	Message   string
}

// Provisioning outcome types.
const (
	ProvisionComplete = "complete"
	ProvisionPending  = "pending"
	ProvisionError    = "error"
)

func (p *Provisioning) UnmarshalJSON(data []byte) error {
	var head struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	p.Type = head.Type
	switch head.Type {
	case ProvisionComplete:
		p.Domain = new(Domain)
		return json.Unmarshal(data, p.Domain)
	case ProvisionPending:
		p.Challenge = new(DomainChallenge)
		return json.Unmarshal(data, p.Challenge)
	case ProvisionError:
		p.Message = head.Message
		return nil
	}
	return &UnknownStatusError{Kind: "provisioning", Value: head.Type}
}

// List returns every domain.
func (s *DomainsService) List(ctx context.Context) ([]Domain, error) {
	var out struct {
		Domains []Domain `json:"domains"`
	}
	if err := s.client.do(ctx, http.MethodGet, "/domains", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Domains, nil
}

// Get fetches a domain by name.
func (s *DomainsService) Get(ctx context.Context, domain string) (Domain, error) {
	var out Domain
	if err := s.client.do(ctx, http.MethodGet, pathf("/domains/%s", domain), nil, nil, &out); err != nil {
		return Domain{}, err
	}
	return out, nil
}

// Create registers a domain. An empty challenge type means http-01.
func (s *DomainsService) Create(ctx context.Context, domain, challengeType string) (Domain, error) {
	if challengeType == "" {
		challengeType = ChallengeHTTP01
	}
	if challengeType != ChallengeHTTP01 && challengeType != ChallengeDNS01 {
		return Domain{}, fmt.Errorf("unsupported challenge type %q", challengeType)
	}
	body := struct {
		Domain        string `json:"domain"`
		ChallengeType string `json:"challenge_type"`
	}{domain, challengeType}
	var out Domain
	if err := s.client.do(ctx, http.MethodPost, "/domains", nil, body, &out); err != nil {
		return Domain{}, err
	}
	return out, nil
}

// Delete removes a domain.
func (s *DomainsService) Delete(ctx context.Context, domain string) error {
	return s.client.do(ctx, http.MethodDelete, pathf("/domains/%s", domain), nil, nil, nil)
}

// Challenge returns the DNS records for a domain's pending challenge.
func (s *DomainsService) Challenge(ctx context.Context, domain string) (DomainChallenge, error) {
	var out DomainChallenge
	if err := s.client.do(ctx, http.MethodGet, pathf("/domains/%s/challenge", domain), nil, nil, &out); err != nil {
		return DomainChallenge{}, err
	}
	return out, nil
}

// Renew asks the server to reissue a domain's certificate.
func (s *DomainsService) Renew(ctx context.Context, domain string) (Provisioning, error) {
	var out Provisioning
	if err := s.client.do(ctx, http.MethodPost, pathf("/domains/%s/renew", domain), nil, nil, &out); err != nil {
		return Provisioning{}, err
	}
	return out, nil
}

// Order fetches the ACME order of a domain.
func (s *DomainsService) Order(ctx context.Context, domainID int) (AcmeOrder, error) {
	var out AcmeOrder
	if err := s.client.do(ctx, http.MethodGet, pathf("/domains/%d/order", domainID), nil, nil, &out); err != nil {
		return AcmeOrder{}, err
	}
	return out, nil
}

// CreateOrder starts an ACME order and returns the challenge to satisfy.
func (s *DomainsService) CreateOrder(ctx context.Context, domainID int) (DomainChallenge, error) {
	var out DomainChallenge
	if err := s.client.do(ctx, http.MethodPost, pathf("/domains/%d/order", domainID), nil, nil, &out); err != nil {
		return DomainChallenge{}, err
	}
	return out, nil
}

// FinalizeOrder validates the challenge and issues the certificate.
func (s *DomainsService) FinalizeOrder(ctx context.Context, domainID int) (Domain, error) {
	var out Domain
	if err := s.client.do(ctx, http.MethodPost, pathf("/domains/%d/order/finalize", domainID), nil, nil, &out); err != nil {
		return Domain{}, err
	}
	return out, nil
}

// CancelOrder drops the pending ACME order.
func (s *DomainsService) CancelOrder(ctx context.Context, domainID int) (Domain, error) {
	var out Domain
	if err := s.client.do(ctx, http.MethodDelete, pathf("/domains/%d/order", domainID), nil, nil, &out); err != nil {
		return Domain{}, err
	}
	return out, nil
}
