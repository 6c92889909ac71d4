package logger

import (
	"strings"
	"testing"
)

func TestSanitizeKVsHashesTraineeIDs(t *testing.T) {
	out := sanitizeKVs([]interface{}{"trainee_id", "emp-42", "pseudonym_id", "SwiftFox12", "db_password", "hunter2"})
	if len(out) != 6 {
		t.Fatalf("expected 6 values, got %d", len(out))
	}
	hashed, _ := out[1].(string)
	if !strings.HasPrefix(hashed, "hash:") || strings.Contains(hashed, "emp-42") {
		t.Fatalf("trainee_id not hashed: %v", out[1])
	}
	if out[3] != "SwiftFox12" {
		t.Fatalf("pseudonym should pass through, got %v", out[3])
	}
	if out[5] != "[REDACTED]" {
		t.Fatalf("password not redacted: %v", out[5])
	}
}

func TestSanitizeKVsOddLength(t *testing.T) {
	out := sanitizeKVs([]interface{}{"view", "program", "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestHashValueStable(t *testing.T) {
	if hashValue("a") != hashValue("a") {
		t.Fatalf("hash must be deterministic")
	}
	if hashValue("a") == hashValue("b") {
		t.Fatalf("distinct inputs should hash differently")
	}
	if hashValue("") != "" {
		t.Fatalf("empty input should stay empty")
	}
}
