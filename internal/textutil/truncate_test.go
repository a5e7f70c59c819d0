package textutil

import "testing"

func TestTruncateShortString(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("expected 'hello', got %q", got)
	}
}

func TestTruncateLongString(t *testing.T) {
	if got := Truncate("hello world", 5); got != "hello..." {
		t.Errorf("expected 'hello...', got %q", got)
	}
}

func TestTruncateExactLength(t *testing.T) {
	if got := Truncate("abc", 3); got != "abc" {
		t.Errorf("expected 'abc', got %q", got)
	}
}

func TestTruncateZeroMax(t *testing.T) {
	if got := Truncate("abc", 0); got != "abc" {
		t.Errorf("expected passthrough for non-positive max, got %q", got)
	}
}
