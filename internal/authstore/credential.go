package authstore

import (
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"
)

// CredentialType discriminates the Credential tagged union.
type CredentialType string

const (
	CredentialAPIKey CredentialType = "api_key"
	CredentialToken  CredentialType = "token"
	CredentialOAuth  CredentialType = "oauth"
)

// Credential is a closed sum type over the three ways this core authenticates
// to an upstream provider. It is discriminated by Type and, rather than
// modeled as an inheritance hierarchy, carries every variant's fields
// directly — unused fields for a given Type are simply zero.
//
// Unknown Type values are preserved verbatim (see codec.go) and skipped for
// routing purposes; this struct only models the three known variants.
type Credential struct {
	Type     CredentialType `json:"type"`
	Provider string         `json:"provider"`

	// api_key
	Key      string `json:"key,omitempty"`
	Email    string `json:"email,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	// token
	Expires int64 `json:"expires,omitempty"`

	// oauth
	OAuth    *oauth2.Token `json:"oauth,omitempty"`
	ClientID string        `json:"clientId,omitempty"`

	// Unknown holds the raw Type string when it isn't one of the three
	// known variants, and Extra preserves fields this struct doesn't model.
	Unknown string                      `json:"-"`
	Extra   map[string]json.RawMessage `json:"-"`
}

// KnownVariant reports whether c.Type is one of the three credentials this
// core knows how to route on.
func (c *Credential) KnownVariant() bool {
	if c == nil {
		return false
	}
	switch c.Type {
	case CredentialAPIKey, CredentialToken, CredentialOAuth:
		return true
	default:
		return false
	}
}

func (c *Credential) String() string {
	if c == nil {
		return "<nil credential>"
	}
	return fmt.Sprintf("%s/%s", c.Type, c.Provider)
}
