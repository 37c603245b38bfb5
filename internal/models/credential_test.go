package models

import "testing"

func TestCanonicalProviderID(t *testing.T) {
	cases := map[string]ProviderID{
		"groq":   ProviderGroq,
		"GROQ":   ProviderGroq,
		" Groq ": ProviderGroq,
		"OpenAI": ProviderOpenAI,
	}

	for input, want := range cases {
		if got := CanonicalProviderID(input); got != want {
			t.Errorf("CanonicalProviderID(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestProviderIDValid(t *testing.T) {
	for _, p := range SupportedProviders {
		if !p.Valid() {
			t.Errorf("%q should be valid", p)
		}
	}

	for _, s := range []string{"", "bedrock", "Groq"} {
		if ProviderID(s).Valid() {
			t.Errorf("%q should not be valid", s)
		}
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"alice-groq":        "alice-groq",
		"Alice Smith-GROQ":  "alice-smith-groq",
		"a__b..c":           "a-b-c",
		"--trimmed--":       "trimmed",
		"user@example.com!": "user-example-com",
	}

	for input, want := range cases {
		if got := Slugify(input); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestCredentialSlug(t *testing.T) {
	if got := CredentialSlug("Alice", ProviderGroq); got != "alice-groq" {
		t.Errorf("CredentialSlug = %q, want alice-groq", got)
	}
}
