package client

import (
	"context"
	"net/http"
)

// EmailService covers sending domains for transactional email.
type EmailService struct{ client *Client }

// EmailDomain is a domain registered with an email provider.
type EmailDomain struct {
	ID                int               `json:"id"`
	ProviderID        int               `json:"provider_id"`
	Domain            string            `json:"domain"`
	Status            EmailDomainStatus `json:"status"`
	LastVerifiedAt    *string           `json:"last_verified_at,omitempty"`
	VerificationError *string           `json:"verification_error,omitempty"`
	CreatedAt         string            `json:"created_at"`
	UpdatedAt         string            `json:"updated_at"`
}

// DNSRecord is a record the user has to publish for an email domain.
type DNSRecord struct {
	RecordType string `json:"record_type"`
	Name       string `json:"name"`
	Value      string `json:"value"`
	Priority   *int   `json:"priority,omitempty"`
}

// EmailDomainDetails is an email domain plus the DNS records it needs.
type EmailDomainDetails struct {
	Domain     EmailDomain `json:"domain"`
	DNSRecords []DNSRecord `json:"dns_records"`
}

// ListDomains returns every email domain.
func (s *EmailService) ListDomains(ctx context.Context) ([]EmailDomain, error) {
	var out []EmailDomain
	if err := s.client.do(ctx, http.MethodGet, "/email-domains", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDomain fetches an email domain with its DNS records.
func (s *EmailService) GetDomain(ctx context.Context, id int) (EmailDomainDetails, error) {
	var out EmailDomainDetails
	if err := s.client.do(ctx, http.MethodGet, pathf("/email-domains/%d", id), nil, nil, &out); err != nil {
		return EmailDomainDetails{}, err
	}
	return out, nil
}

// CreateDomain registers a sending domain with a provider.
func (s *EmailService) CreateDomain(ctx context.Context, providerID int, domain string) (EmailDomainDetails, error) {
	body := struct {
		ProviderID int    `json:"provider_id"`
		Domain     string `json:"domain"`
	}{providerID, domain}
	var out EmailDomainDetails
	if err := s.client.do(ctx, http.MethodPost, "/email-domains", nil, body, &out); err != nil {
		return EmailDomainDetails{}, err
	}
	return out, nil
}

// VerifyDomain triggers a DNS verification run.
func (s *EmailService) VerifyDomain(ctx context.Context, id int) (EmailDomain, error) {
	var out EmailDomain
	if err := s.client.do(ctx, http.MethodPost, pathf("/email-domains/%d/verify", id), nil, nil, &out); err != nil {
		return EmailDomain{}, err
	}
	return out, nil
}

// DeleteDomain removes an email domain.
func (s *EmailService) DeleteDomain(ctx context.Context, id int) error {
	return s.client.do(ctx, http.MethodDelete, pathf("/email-domains/%d", id), nil, nil, nil)
}
