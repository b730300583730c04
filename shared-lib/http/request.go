package http

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/netalias/genalias/shared-lib/http/auth"
)

// UserAgent is sent with every request unless overridden.
const UserAgent = "genalias/1.0"

// NewGetRequest creates a new GET HTTP request with authentication and query parameters
func NewGetRequest(ctx context.Context, url string, auth *auth.AuthConfig, queryParams map[string]interface{}) (*http.Request, error) {
	finalURL, err := buildURLWithParams(url, queryParams)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL with parameters: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}

	if err := applyAuthentication(req, auth); err != nil {
		return nil, fmt.Errorf("failed to apply authentication: %w", err)
	}

	setDefaultHeaders(req)

	return req, nil
}

// Helper function to append query parameters to a URL
func buildURLWithParams(baseURL string, queryParams map[string]interface{}) (string, error) {
	if len(queryParams) == 0 {
		return baseURL, nil
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	for key, value := range queryParams {
		if value != nil {
			q.Set(key, fmt.Sprintf("%v", value))
		}
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Helper function to apply authentication to a request
func applyAuthentication(req *http.Request, authReq *auth.AuthConfig) error {
	if authReq == nil {
		return nil
	}
	if err := authReq.Validate(); err != nil {
		return err
	}

	switch authReq.Type {
	case auth.AuthTypeBasic:
		req.SetBasicAuth(authReq.Username, authReq.Password)

	case auth.AuthTypeBearer:
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", authReq.Token))

	case auth.AuthTypeCustom:
		for key, value := range authReq.Headers {
			if key != "" && value != "" {
				req.Header.Set(key, value)
			}
		}
	}

	return nil
}

// Helper function to set default headers
func setDefaultHeaders(req *http.Request) {
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/csv, text/plain, */*")
}
