package cache

import (
	"testing"
)

func TestUsageDayKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		userID string
		day    string
		want   string
	}{
		{"simple", "user_1", "2026-08-30", "token:user_1:2026-08-30"},
		{"ulid user", "01J5XJ2M9Q", "2026-01-01", "token:01J5XJ2M9Q:2026-01-01"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := usageDayKey(tt.userID, tt.day); got != tt.want {
				t.Errorf("usageDayKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUsageModelKey(t *testing.T) {
	t.Parallel()

	got := usageModelKey("user_1", "2026-08-30", "gpt-4o-mini")
	want := "token:user_1:2026-08-30:gpt-4o-mini"
	if got != want {
		t.Errorf("usageModelKey() = %q, want %q", got, want)
	}
}

func TestParseCounter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want int64
	}{
		{"nil field", nil, 0},
		{"zero", "0", 0},
		{"count", "1200", 1200},
		{"large", "999999999", 999999999},
		{"garbage", "12ab", 0},
		{"empty string", "", 0},
		{"non-string", 42, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := parseCounter(tt.in); got != tt.want {
				t.Errorf("parseCounter(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestHashIP_DeterministicAndDistinct(t *testing.T) {
	t.Parallel()

	if hashIP("10.0.0.1") != hashIP("10.0.0.1") {
		t.Error("same IP should produce same hash")
	}
	if hashIP("10.0.0.1") == hashIP("10.0.0.2") {
		t.Error("different IPs should produce different hashes")
	}
	if len(hashIP("::1")) != 16 {
		t.Errorf("hash length = %d, want 16", len(hashIP("::1")))
	}
}
