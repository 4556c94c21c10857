package identity

import (
	"net/http/httptest"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"a@x.com":          "a@x.com",
		"  A@X.com \n":     "a@x.com",
		"":                 "",
		"   ":              "",
		"Mixed.Case@Ex.IO": "mixed.case@ex.io",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIPFromRequest(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.7:51234"
	if got := IPFromRequest(r); got != "203.0.113.7" {
		t.Errorf("expected host only, got %q", got)
	}

	r.RemoteAddr = "203.0.113.7"
	if got := IPFromRequest(r); got != "203.0.113.7" {
		t.Errorf("expected bare address to pass through, got %q", got)
	}
}
