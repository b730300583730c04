package http

import (
	"context"
	"testing"

	"github.com/netalias/genalias/shared-lib/http/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGetRequest_QueryParams(t *testing.T) {
	req, err := NewGetRequest(context.Background(), "https://example.com/dump.csv?x=1", nil, map[string]interface{}{
		"ref":  "master",
		"skip": nil,
	})
	require.NoError(t, err)
	assert.Equal(t, "master", req.URL.Query().Get("ref"))
	assert.Equal(t, "1", req.URL.Query().Get("x"))
	assert.False(t, req.URL.Query().Has("skip"))
	assert.Equal(t, UserAgent, req.Header.Get("User-Agent"))
}

func TestNewGetRequest_Authentication(t *testing.T) {
	tests := []struct {
		name    string
		auth    *auth.AuthConfig
		check   func(t *testing.T, username, password, authorization, custom string)
		wantErr string
	}{
		{
			name: "basic",
			auth: &auth.AuthConfig{Type: auth.AuthTypeBasic, Username: "u", Password: "p"},
			check: func(t *testing.T, username, password, _, _ string) {
				assert.Equal(t, "u", username)
				assert.Equal(t, "p", password)
			},
		},
		{
			name: "bearer",
			auth: &auth.AuthConfig{Type: auth.AuthTypeBearer, Token: "tok"},
			check: func(t *testing.T, _, _, authorization, _ string) {
				assert.Equal(t, "Bearer tok", authorization)
			},
		},
		{
			name: "custom",
			auth: &auth.AuthConfig{Type: auth.AuthTypeCustom, Headers: map[string]string{"X-Custom": "v"}},
			check: func(t *testing.T, _, _, _, custom string) {
				assert.Equal(t, "v", custom)
			},
		},
		{
			name:    "basic without password",
			auth:    &auth.AuthConfig{Type: auth.AuthTypeBasic, Username: "u"},
			wantErr: "username and password required",
		},
		{
			name:    "unknown type",
			auth:    &auth.AuthConfig{Type: "kerberos"},
			wantErr: "unsupported authentication type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewGetRequest(context.Background(), "https://example.com/", tt.auth, nil)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			username, password, _ := req.BasicAuth()
			tt.check(t, username, password, req.Header.Get("Authorization"), req.Header.Get("X-Custom"))
		})
	}
}
