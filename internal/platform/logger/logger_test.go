package logger

import "testing"

func TestRedactKVs(t *testing.T) {
	in := []any{"api_key", "sk-or-secret", "persona", "kirana_shop"}
	out := redactKVs(in)

	if out[1] != "[REDACTED]" {
		t.Fatalf("api_key value not redacted: %v", out[1])
	}
	if out[3] != "kirana_shop" {
		t.Fatalf("unrelated value changed: %v", out[3])
	}
	if in[1] != "sk-or-secret" {
		t.Fatalf("input mutated: %v", in[1])
	}
}

func TestRedactKVsOddLength(t *testing.T) {
	out := redactKVs([]any{"dangling"})
	if len(out) != 1 || out[0] != "dangling" {
		t.Fatalf("out=%v", out)
	}
}
