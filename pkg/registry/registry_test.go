package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greia-app/verification-backend/pkg/config"
	pkgerrors "github.com/greia-app/verification-backend/pkg/errors"
)

func registriesConfig(url string) config.RegistriesConfig {
	return config.RegistriesConfig{
		LicenseBaseURL:   url,
		LicenseAPIKey:    "license-key",
		InsuranceBaseURL: url,
		CompanyBaseURL:   url,
		Timeout:          5 * time.Second,
	}
}

func TestNewLicenseClientRequiresBaseURL(t *testing.T) {
	_, err := NewLicenseClient(config.RegistriesConfig{})
	require.Error(t, err)
}

func TestCheckLicenseValid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/licenses/verify", r.URL.Path)
		assert.Equal(t, "Bearer license-key", r.Header.Get("Authorization"))

		var req LicenseCheckRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "LIC-9920", req.Number)

		_ = json.NewEncoder(w).Encode(CheckResult{Valid: true})
	}))
	defer server.Close()

	client, err := NewLicenseClient(registriesConfig(server.URL))
	require.NoError(t, err)

	result, err := client.CheckLicense(context.Background(), LicenseCheckRequest{
		Number:           "LIC-9920",
		Type:             "estate_agent",
		IssuingAuthority: "PSRA",
		IssuingCountry:   "IE",
	})
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestCheckLicenseRequiresNumber(t *testing.T) {
	client, err := NewLicenseClient(registriesConfig("http://localhost:1"))
	require.NoError(t, err)

	_, err = client.CheckLicense(context.Background(), LicenseCheckRequest{})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestCheckInsuranceInvalidPolicy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/policies/verify", r.URL.Path)
		_ = json.NewEncoder(w).Encode(CheckResult{Valid: false, Reason: "policy lapsed"})
	}))
	defer server.Close()

	client, err := NewInsuranceClient(registriesConfig(server.URL))
	require.NoError(t, err)

	result, err := client.CheckInsurance(context.Background(), InsuranceCheckRequest{
		Provider:     "Acme Underwriting",
		PolicyNumber: "POL-1",
	})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "policy lapsed", result.Reason)
}

func TestCheckCompanyRegistryDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance window", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewCompanyClient(registriesConfig(server.URL))
	require.NoError(t, err)

	_, err = client.CheckCompany(context.Background(), CompanyCheckRequest{
		CompanyName:        "Dunmore Estates Ltd",
		RegistrationNumber: "IE-648211",
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
}
