package config_test

import (
	"strings"
	"testing"

	"regimen/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Council.ConstraintPenalty != 50 {
		t.Fatalf("expected constraint penalty 50, got %v", cfg.Council.ConstraintPenalty)
	}
	if cfg.Profile.StimulantCutoffHour != 16 {
		t.Fatalf("expected stimulant cutoff 16, got %d", cfg.Profile.StimulantCutoffHour)
	}
}

func TestFromYAMLRejectsBadBucket(t *testing.T) {
	yml := strings.Replace(config.GenerateDefault(), "bucket: morning", "bucket: brunch", 1)
	_, err := config.FromYAML([]byte(yml))
	if err == nil || !strings.Contains(err.Error(), "unknown bucket") {
		t.Fatalf("expected bucket validation error, got %v", err)
	}
}

func TestFromYAMLRejectsBadClock(t *testing.T) {
	yml := strings.Replace(config.GenerateDefault(), `wake_time: "06:30"`, `wake_time: "25:30"`, 1)
	_, err := config.FromYAML([]byte(yml))
	if err == nil {
		t.Fatalf("expected clock validation error")
	}
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"06:30", 390, true},
		{"00:00", 0, true},
		{"23:59", 1439, true},
		{"24:00", 0, false},
		{"630", 0, false},
		{"06:60", 0, false},
	}
	for _, tc := range cases {
		got, err := config.ParseClock(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("ParseClock(%q) = %d, %v; want %d", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseClock(%q) expected error", tc.in)
		}
	}
}
