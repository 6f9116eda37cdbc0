// Package registry wraps the external authorities consulted during agent
// verification: the professional license registry, the insurance policy
// registry, and the company registration registry. Every lookup fails closed;
// an unreachable registry is a dependency error, never a silent pass.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/greia-app/verification-backend/pkg/config"
	pkgerrors "github.com/greia-app/verification-backend/pkg/errors"
)

var errBaseURLRequired = errors.New("registry base url is required")

// CheckResult is the normalized verdict returned by any registry lookup.
type CheckResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// LicenseCheckRequest identifies a professional license to validate.
type LicenseCheckRequest struct {
	Number           string `json:"number"`
	Type             string `json:"type"`
	IssuingAuthority string `json:"issuing_authority"`
	IssuingCountry   string `json:"issuing_country"`
	HolderFirstName  string `json:"holder_first_name"`
	HolderLastName   string `json:"holder_last_name"`
}

// InsuranceCheckRequest identifies an insurance policy to validate.
type InsuranceCheckRequest struct {
	Provider       string `json:"provider"`
	PolicyNumber   string `json:"policy_number"`
	Type           string `json:"type"`
	CoverageAmount string `json:"coverage_amount"`
	Currency       string `json:"currency"`
}

// CompanyCheckRequest identifies a company registration to validate.
type CompanyCheckRequest struct {
	CompanyName        string `json:"company_name"`
	RegistrationNumber string `json:"registration_number"`
	VATNumber          string `json:"vat_number,omitempty"`
}

// LicenseChecker validates license credentials against the licensing authority.
type LicenseChecker interface {
	CheckLicense(ctx context.Context, req LicenseCheckRequest) (*CheckResult, error)
}

// InsuranceChecker validates policy details against the insurer registry.
type InsuranceChecker interface {
	CheckInsurance(ctx context.Context, req InsuranceCheckRequest) (*CheckResult, error)
}

// CompanyChecker validates registration details against the company registry.
type CompanyChecker interface {
	CheckCompany(ctx context.Context, req CompanyCheckRequest) (*CheckResult, error)
}

type client struct {
	rest *resty.Client
}

func newRestClient(baseURL, apiKey string, cfg config.RegistriesConfig) (*client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	rest := resty.New().
		SetBaseURL(strings.TrimRight(trimmed, "/")).
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetHeader("Content-Type", "application/json")

	if key := strings.TrimSpace(apiKey); key != "" {
		rest.SetAuthToken(key)
	}

	return &client{rest: rest}, nil
}

func (c *client) verify(ctx context.Context, path string, body any) (*CheckResult, error) {
	result := &CheckResult{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(result).
		Post(path)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "registry request failed")
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, pkgerrors.Wrap(
			pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String())),
			"registry returned non-OK status",
		)
	}
	return result, nil
}

// LicenseClient talks to the professional license registry.
type LicenseClient struct {
	*client
}

// NewLicenseClient builds the license registry client from configuration.
func NewLicenseClient(cfg config.RegistriesConfig) (*LicenseClient, error) {
	c, err := newRestClient(cfg.LicenseBaseURL, cfg.LicenseAPIKey, cfg)
	if err != nil {
		return nil, fmt.Errorf("license registry: %w", err)
	}
	return &LicenseClient{client: c}, nil
}

// CheckLicense validates a license with the registry.
func (c *LicenseClient) CheckLicense(ctx context.Context, req LicenseCheckRequest) (*CheckResult, error) {
	if strings.TrimSpace(req.Number) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "license number is required")
	}
	return c.verify(ctx, "/v1/licenses/verify", req)
}

// InsuranceClient talks to the insurance policy registry.
type InsuranceClient struct {
	*client
}

// NewInsuranceClient builds the insurance registry client from configuration.
func NewInsuranceClient(cfg config.RegistriesConfig) (*InsuranceClient, error) {
	c, err := newRestClient(cfg.InsuranceBaseURL, cfg.InsuranceAPIKey, cfg)
	if err != nil {
		return nil, fmt.Errorf("insurance registry: %w", err)
	}
	return &InsuranceClient{client: c}, nil
}

// CheckInsurance validates a policy with the registry.
func (c *InsuranceClient) CheckInsurance(ctx context.Context, req InsuranceCheckRequest) (*CheckResult, error) {
	if strings.TrimSpace(req.PolicyNumber) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "policy number is required")
	}
	return c.verify(ctx, "/v1/policies/verify", req)
}

// CompanyClient talks to the company registration registry.
type CompanyClient struct {
	*client
}

// NewCompanyClient builds the company registry client from configuration.
func NewCompanyClient(cfg config.RegistriesConfig) (*CompanyClient, error) {
	c, err := newRestClient(cfg.CompanyBaseURL, cfg.CompanyAPIKey, cfg)
	if err != nil {
		return nil, fmt.Errorf("company registry: %w", err)
	}
	return &CompanyClient{client: c}, nil
}

// CheckCompany validates a company registration with the registry.
func (c *CompanyClient) CheckCompany(ctx context.Context, req CompanyCheckRequest) (*CheckResult, error) {
	if strings.TrimSpace(req.RegistrationNumber) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "registration number is required")
	}
	return c.verify(ctx, "/v1/companies/verify", req)
}
