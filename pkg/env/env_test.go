package env

import "testing"

func TestStringPrefersFirstSetKey(t *testing.T) {
	t.Setenv("CLUBLEDGER_LOG_FORMAT", "")
	t.Setenv("LOG_FORMAT", " console ")
	if got := String("json", "CLUBLEDGER_LOG_FORMAT", "LOG_FORMAT"); got != "console" {
		t.Fatalf("expected console, got %q", got)
	}
	t.Setenv("CLUBLEDGER_LOG_FORMAT", "json")
	if got := String("text", "CLUBLEDGER_LOG_FORMAT", "LOG_FORMAT"); got != "json" {
		t.Fatalf("expected json, got %q", got)
	}
	if got := String("fallback", "CLUBLEDGER_UNSET_KEY"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("CLUBLEDGER_LOG_NO_COLOR", "true")
	if !Bool(false, "CLUBLEDGER_LOG_NO_COLOR") {
		t.Fatal("expected true")
	}
	t.Setenv("CLUBLEDGER_LOG_NO_COLOR", "maybe")
	if Bool(false, "CLUBLEDGER_LOG_NO_COLOR") {
		t.Fatal("unparseable value should fall back")
	}
}
