package auth

import "fmt"

// AuthConfig holds authentication configuration for fetching dumps
type AuthConfig struct {
	Type     AuthType          `json:"type" mapstructure:"type"`
	Username string            `json:"username,omitempty" mapstructure:"username"`
	Password string            `json:"password,omitempty" mapstructure:"password"`
	Token    string            `json:"token,omitempty" mapstructure:"token"`
	Headers  map[string]string `json:"headers,omitempty" mapstructure:"headers"`
}

type AuthType string

const (
	AuthTypeNone   AuthType = "none"
	AuthTypeBasic  AuthType = "basic"
	AuthTypeBearer AuthType = "bearer"
	AuthTypeCustom AuthType = "custom"
)

// Validate checks that the fields required by the auth type are present.
func (a *AuthConfig) Validate() error {
	if a == nil {
		return nil
	}
	switch a.Type {
	case "", AuthTypeNone:
		return nil
	case AuthTypeBasic:
		if a.Username == "" || a.Password == "" {
			return fmt.Errorf("username and password required for basic authentication")
		}
	case AuthTypeBearer:
		if a.Token == "" {
			return fmt.Errorf("token required for bearer authentication")
		}
	case AuthTypeCustom:
		if len(a.Headers) == 0 {
			return fmt.Errorf("custom headers required for custom authentication")
		}
	default:
		return fmt.Errorf("unsupported authentication type: %s", a.Type)
	}
	return nil
}
