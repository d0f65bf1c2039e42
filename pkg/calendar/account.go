package calendar

import (
	"encoding/json"
	"fmt"

	"github.com/solutionstwo/voicebridge/pkg/kv"
)

// DefaultTokenURI is Google's OAuth2 token endpoint.
const DefaultTokenURI = "https://oauth2.googleapis.com/token"

// accountsPrefix is the KV namespace for persisted accounts.
var accountsPrefix = kv.Key{"calendar", "accounts"}

// Credentials are OAuth2 installed-app credentials with an offline
// refresh token. Service-account credentials are not supported.
type Credentials struct {
	Type         string `json:"type,omitzero" yaml:"type,omitempty"`
	ClientID     string `json:"client_id" yaml:"client_id"`
	ClientSecret string `json:"client_secret" yaml:"client_secret"`
	RefreshToken string `json:"refresh_token" yaml:"refresh_token"`
	TokenURI     string `json:"token_uri,omitzero" yaml:"token_uri,omitempty"`
}

// Account is a registered calendar account.
type Account struct {
	ID          string      `json:"id" yaml:"id"`
	Email       string      `json:"email,omitzero" yaml:"email,omitempty"`
	CalendarID  string      `json:"calendar_id,omitzero" yaml:"calendar_id,omitempty"`
	Credentials Credentials `json:"credentials" yaml:"credentials"`
}

// validate normalizes defaults and rejects unusable credentials.
func (a *Account) validate() error {
	if a.ID == "" {
		return fmt.Errorf("calendar: account id is required")
	}
	if a.Credentials.Type == "service_account" {
		return fmt.Errorf("calendar: account %s: service account credentials are not supported, use an OAuth refresh token", a.ID)
	}
	if a.Credentials.ClientID == "" || a.Credentials.ClientSecret == "" || a.Credentials.RefreshToken == "" {
		return fmt.Errorf("calendar: account %s: client_id, client_secret and refresh_token are required", a.ID)
	}
	if a.Credentials.TokenURI == "" {
		a.Credentials.TokenURI = DefaultTokenURI
	}
	if a.CalendarID == "" {
		a.CalendarID = "primary"
	}
	return nil
}

func encodeAccount(a Account) ([]byte, error) {
	return json.Marshal(a)
}

func decodeAccount(data []byte) (Account, error) {
	var a Account
	err := json.Unmarshal(data, &a)
	return a, err
}
