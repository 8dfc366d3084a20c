package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amirphl/iptv-reseller-automation/models"
)

// SigmaAdapter renews subscribers on Sigma-style reseller panels through their JSON API
type SigmaAdapter struct {
	defaultBaseURL string
	client         *http.Client
}

// NewSigmaAdapter creates a Sigma adapter; timeout bounds each HTTP call
func NewSigmaAdapter(defaultBaseURL string, timeout time.Duration) *SigmaAdapter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SigmaAdapter{
		defaultBaseURL: strings.TrimRight(defaultBaseURL, "/"),
		client:         &http.Client{Timeout: timeout},
	}
}

func (a *SigmaAdapter) Kind() models.ProviderKind { return models.ProviderKindSigma }

type sigmaLoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

type sigmaCustomer struct {
	ID        json.Number `json:"id"`
	Username  string      `json:"username"`
	ExpiresAt string      `json:"expires_at"`
	PackageID string      `json:"package_id"`
}

type sigmaCustomerList struct {
	Data []sigmaCustomer `json:"data"`
}

type sigmaRenewRequest struct {
	PackageID   string `json:"package_id,omitempty"`
	Connections int    `json:"connections"`
	Months      int    `json:"months"`
}

type sigmaRenewResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Data    sigmaCustomer `json:"data"`
}

func normalizeBaseURL(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return base
}

func (a *SigmaAdapter) Authenticate(ctx context.Context, creds ProviderCredentials) (*ProviderSession, error) {
	base := normalizeBaseURL(creds.BaseURL)
	if base == "" {
		base = a.defaultBaseURL
	}
	if base == "" {
		return nil, fmt.Errorf("%w: no panel base url", ErrProviderAuthFailed)
	}

	payload, _ := json.Marshal(map[string]string{"username": creds.Username, "password": creds.Password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/auth/login", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var out sigmaLoginResponse
	if err := a.do(req, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderAuthFailed, err)
	}
	if out.Token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrProviderAuthFailed)
	}

	session := &ProviderSession{Token: out.Token, BaseURL: base}
	if out.ExpiresIn > 0 {
		exp := time.Now().UTC().Add(time.Duration(out.ExpiresIn) * time.Second)
		session.ExpiresAt = &exp
	}
	return session, nil
}

func (a *SigmaAdapter) FindTarget(ctx context.Context, session *ProviderSession, query TargetQuery) (*ProviderTarget, error) {
	endpoint := session.BaseURL + "/api/customers?username=" + url.QueryEscape(query.ExternalUsername)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	a.authorize(req, session)

	var out sigmaCustomerList
	if err := a.do(req, &out); err != nil {
		return nil, err
	}
	for _, c := range out.Data {
		if strings.EqualFold(c.Username, query.ExternalUsername) {
			return &ProviderTarget{
				ID:       c.ID.String(),
				Username: c.Username,
				Raw:      map[string]any{"expires_at": c.ExpiresAt, "package_id": c.PackageID},
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, query.ExternalUsername)
}

func (a *SigmaAdapter) Renew(ctx context.Context, session *ProviderSession, target *ProviderTarget, durationUnits int) (*RenewOutcome, error) {
	if durationUnits <= 0 {
		durationUnits = 1
	}
	packageID, _ := target.Raw["package_id"].(string)
	payload, _ := json.Marshal(sigmaRenewRequest{PackageID: packageID, Connections: 1, Months: durationUnits})

	endpoint := fmt.Sprintf("%s/api/customers/%s/renew", session.BaseURL, url.PathEscape(target.ID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	a.authorize(req, session)

	var out sigmaRenewResponse
	if err := a.do(req, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("%w: %s", ErrProviderRenewFailed, out.Message)
	}

	outcome := &RenewOutcome{
		Success: true,
		Raw:     map[string]any{"message": out.Message, "customer_id": out.Data.ID.String()},
	}
	if exp, err := time.Parse(time.RFC3339, out.Data.ExpiresAt); err == nil {
		exp = exp.UTC()
		outcome.NewExpiry = &exp
	}
	return outcome, nil
}

func (a *SigmaAdapter) authorize(req *http.Request, session *ProviderSession) {
	req.Header.Set("Authorization", "Bearer "+session.Token)
	req.Header.Set("Accept", "application/json")
}

func (a *SigmaAdapter) do(req *http.Request, out any) error {
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sigma %s %s http status: %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode sigma response: %w", err)
	}
	return nil
}
