package envutil

import (
	"testing"
	"time"
)

func TestIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("TW_TEST_INT", "nope")
	if got := Int("TW_TEST_INT", 7, nil); got != 7 {
		t.Fatalf("expected default 7, got %d", got)
	}
	t.Setenv("TW_TEST_INT", " 12 ")
	if got := Int("TW_TEST_INT", 7, nil); got != 12 {
		t.Fatalf("expected 12, got %d", got)
	}
}

func TestMillis(t *testing.T) {
	t.Setenv("TW_TEST_MS", "250")
	if got := Millis("TW_TEST_MS", time.Second, nil); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %s", got)
	}
	if got := Millis("TW_TEST_MS_UNSET", time.Second, nil); got != time.Second {
		t.Fatalf("expected default, got %s", got)
	}
}

func TestBoolAndList(t *testing.T) {
	t.Setenv("TW_TEST_BOOL", "off")
	if Bool("TW_TEST_BOOL", true, nil) {
		t.Fatalf("expected false")
	}
	t.Setenv("TW_TEST_LIST", "a, ,b")
	got := List("TW_TEST_LIST", nil, nil)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected list: %v", got)
	}
}
