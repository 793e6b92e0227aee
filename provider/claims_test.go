package provider

import (
	"errors"
	"testing"
)

func TestFromString(t *testing.T) {
	cases := map[string]Provider{
		"google":   Google,
		"GOOGLE":   Google,
		"apple":    Apple,
		"kakao":    Kakao,
		"local":    Local,
		"":         Local,
		"linkedin": Local,
	}
	for in, want := range cases {
		if got := FromString(in); got != want {
			t.Errorf("FromString(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNormalizeGoogle(t *testing.T) {
	claim, err := Normalize(Google, map[string]any{
		"sub":     "g-123",
		"name":    "Ada Lovelace",
		"email":   "ada@example.com",
		"picture": "https://lh3.example.com/ada.png",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claim.ExternalID != "g-123" {
		t.Errorf("external id = %q, want g-123", claim.ExternalID)
	}
	if claim.DisplayName != "Ada Lovelace" {
		t.Errorf("name = %q", claim.DisplayName)
	}
	if claim.Email != "ada@example.com" {
		t.Errorf("email = %q", claim.Email)
	}
	if claim.AvatarURL != "https://lh3.example.com/ada.png" {
		t.Errorf("avatar = %q", claim.AvatarURL)
	}
}

func TestNormalizeGoogleMissingSub(t *testing.T) {
	_, err := Normalize(Google, map[string]any{"email": "ada@example.com"})
	var malformed *MalformedClaimError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedClaimError, got %v", err)
	}
	if malformed.Field != "sub" {
		t.Errorf("field = %q, want sub", malformed.Field)
	}
}

func TestNormalizeKakao(t *testing.T) {
	claim, err := Normalize(Kakao, map[string]any{
		"id": float64(9871234),
		"properties": map[string]any{
			"nickname":      "철수",
			"profile_image": "https://k.example.com/p.jpg",
		},
		"kakao_account": map[string]any{"email": "chulsoo@example.com"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claim.ExternalID != "9871234" {
		t.Errorf("external id = %q, want 9871234", claim.ExternalID)
	}
	if claim.DisplayName != "철수" {
		t.Errorf("name = %q", claim.DisplayName)
	}
	if claim.Email != "chulsoo@example.com" {
		t.Errorf("email = %q", claim.Email)
	}
	if claim.AvatarURL != "https://k.example.com/p.jpg" {
		t.Errorf("avatar = %q", claim.AvatarURL)
	}
}

func TestNormalizeKakaoMinimalPayload(t *testing.T) {
	claim, err := Normalize(Kakao, map[string]any{"id": float64(42)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claim.ExternalID != "42" {
		t.Errorf("external id = %q, want 42", claim.ExternalID)
	}
	if claim.DisplayName != "Kakao User" {
		t.Errorf("name = %q, want Kakao User", claim.DisplayName)
	}
	if claim.Email != "" {
		t.Errorf("email = %q, want empty", claim.Email)
	}
	if claim.AvatarURL != "" {
		t.Errorf("avatar = %q, want empty", claim.AvatarURL)
	}
}

func TestNormalizeAppleNameVariants(t *testing.T) {
	tests := []struct {
		desc  string
		attrs map[string]any
		want  string
	}{
		{
			desc: "composite name",
			attrs: map[string]any{
				"sub":  "a-1",
				"name": map[string]any{"firstName": "Grace", "lastName": "Hopper"},
			},
			want: "Grace Hopper",
		},
		{
			desc: "first name only",
			attrs: map[string]any{
				"sub":  "a-2",
				"name": map[string]any{"firstName": "Grace"},
			},
			want: "Grace",
		},
		{
			desc: "blank composite falls back",
			attrs: map[string]any{
				"sub":  "a-3",
				"name": map[string]any{"firstName": "", "lastName": " "},
			},
			want: "Apple User",
		},
		{
			desc:  "plain string name",
			attrs: map[string]any{"sub": "a-4", "name": "Grace Hopper"},
			want:  "Grace Hopper",
		},
		{
			desc:  "sub and email only",
			attrs: map[string]any{"sub": "a-5", "email": "grace@example.com"},
			want:  "Apple User",
		},
	}

	for _, tc := range tests {
		claim, err := Normalize(Apple, tc.attrs)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.desc, err)
		}
		if claim.DisplayName != tc.want {
			t.Errorf("%s: name = %q, want %q", tc.desc, claim.DisplayName, tc.want)
		}
		if claim.AvatarURL != "" {
			t.Errorf("%s: apple claims never carry an avatar, got %q", tc.desc, claim.AvatarURL)
		}
	}
}

func TestNormalizeUnsupported(t *testing.T) {
	_, err := Normalize(Local, map[string]any{"sub": "x"})
	var unsupported *UnsupportedProviderError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedProviderError, got %v", err)
	}

	// Unknown registration ids normalize to Local and are rejected the same way.
	_, err = Normalize(FromString("github"), map[string]any{"sub": "x"})
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedProviderError for unknown provider, got %v", err)
	}
}

func TestNormalizeExternalIDAlwaysPresent(t *testing.T) {
	attrs := map[Provider]map[string]any{
		Google: {"sub": "g", "name": "n", "email": "e@x.com"},
		Apple:  {"sub": "a", "email": "e@x.com"},
		Kakao:  {"id": float64(1)},
	}
	for p, a := range attrs {
		claim, err := Normalize(p, a)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", p, err)
		}
		if claim.ExternalID == "" {
			t.Errorf("%s: external id is empty", p)
		}
	}
}
