package provider

import (
	"fmt"
	"strconv"
	"strings"
)

// Claim is the uniform identity record extracted from a provider payload.
// It is built fresh per authentication attempt and discarded after
// reconciliation.
type Claim struct {
	ExternalID  string
	DisplayName string
	Email       string
	AvatarURL   string
}

// UnsupportedProviderError is returned when no extraction rule is registered
// for the requested provider.
type UnsupportedProviderError struct {
	Provider Provider
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("provider: login with %s is not supported", e.Provider)
}

// MalformedClaimError is returned when a provider payload is missing a
// required identity field.
type MalformedClaimError struct {
	Provider Provider
	Field    string
}

func (e *MalformedClaimError) Error() string {
	return fmt.Sprintf("provider: %s claim is missing required field %q", e.Provider, e.Field)
}

type extractFunc func(attrs map[string]any) (*Claim, error)

// Local accounts never go through claim normalization, so the table has no
// entry for Local.
var extractors = map[Provider]extractFunc{
	Google: extractGoogle,
	Apple:  extractApple,
	Kakao:  extractKakao,
}

// Normalize converts a raw provider attribute map into a Claim using the
// provider's extraction rule.
func Normalize(p Provider, attrs map[string]any) (*Claim, error) {
	extract, ok := extractors[p]
	if !ok {
		return nil, &UnsupportedProviderError{Provider: p}
	}
	return extract(attrs)
}

func extractGoogle(attrs map[string]any) (*Claim, error) {
	sub := stringAttr(attrs, "sub")
	if sub == "" {
		return nil, &MalformedClaimError{Provider: Google, Field: "sub"}
	}
	return &Claim{
		ExternalID:  sub,
		DisplayName: stringAttr(attrs, "name"),
		Email:       stringAttr(attrs, "email"),
		AvatarURL:   stringAttr(attrs, "picture"),
	}, nil
}

// extractApple handles the two shapes Apple uses for the name attribute: a
// {firstName, lastName} object on first authentication and a plain string
// afterwards. Apple never supplies a profile image.
func extractApple(attrs map[string]any) (*Claim, error) {
	sub := stringAttr(attrs, "sub")
	if sub == "" {
		return nil, &MalformedClaimError{Provider: Apple, Field: "sub"}
	}

	name := "Apple User"
	switch v := attrs["name"].(type) {
	case map[string]any:
		full := strings.TrimSpace(stringAttr(v, "firstName") + " " + stringAttr(v, "lastName"))
		if full != "" {
			name = full
		}
	case string:
		if strings.TrimSpace(v) != "" {
			name = v
		}
	}

	return &Claim{
		ExternalID:  sub,
		DisplayName: name,
		Email:       stringAttr(attrs, "email"),
	}, nil
}

func extractKakao(attrs map[string]any) (*Claim, error) {
	id := numericAttr(attrs, "id")
	if id == "" {
		return nil, &MalformedClaimError{Provider: Kakao, Field: "id"}
	}

	claim := &Claim{
		ExternalID:  id,
		DisplayName: "Kakao User",
	}

	if props, ok := attrs["properties"].(map[string]any); ok {
		if nickname := stringAttr(props, "nickname"); nickname != "" {
			claim.DisplayName = nickname
		}
		claim.AvatarURL = stringAttr(props, "profile_image")
	}
	if account, ok := attrs["kakao_account"].(map[string]any); ok {
		claim.Email = stringAttr(account, "email")
	}

	return claim, nil
}

func stringAttr(attrs map[string]any, key string) string {
	s, _ := attrs[key].(string)
	return s
}

// numericAttr renders a numeric attribute as its decimal string form. Kakao
// sends its id as a number, which arrives as float64 or json.Number
// depending on the decoder.
func numericAttr(attrs map[string]any, key string) string {
	switch v := attrs[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}
