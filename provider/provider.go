// Package provider defines the supported authentication providers and the
// normalization of provider-specific claim payloads into a uniform Claim.
//
// Each OAuth provider returns identity attributes in its own shape. The
// extraction rules live in a table keyed by Provider, so adding a provider
// means adding one entry, not a new type.
package provider

import "strings"

// Provider identifies the origin of an authentication attempt.
type Provider string

const (
	Local  Provider = "local"
	Google Provider = "google"
	Apple  Provider = "apple"
	Kakao  Provider = "kakao"
)

// FromString maps a registration identifier to a Provider. Matching is
// case-insensitive; anything unrecognized falls back to Local.
func FromString(s string) Provider {
	switch strings.ToLower(s) {
	case string(Google):
		return Google
	case string(Apple):
		return Apple
	case string(Kakao):
		return Kakao
	default:
		return Local
	}
}

func (p Provider) String() string { return string(p) }
