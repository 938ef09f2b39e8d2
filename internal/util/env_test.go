package util

import (
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		val  string
		def  bool
		want bool
	}{
		{"", true, true},
		{"", false, false},
		{"true", false, true},
		{"ON", false, true},
		{" yes ", false, true},
		{"1", false, true},
		{"off", true, false},
		{"0", true, false},
		{"maybe", true, true},
	}
	for _, tt := range tests {
		t.Setenv("EXGRATIA_TEST_BOOL", tt.val)
		if got := ParseBoolEnv("EXGRATIA_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.val, tt.def, got, tt.want)
		}
	}
}

func TestParseDurationEnv(t *testing.T) {
	tests := []struct {
		val  string
		want time.Duration
	}{
		{"", 10 * time.Second},
		{"15", 15 * time.Second},
		{"250ms", 250 * time.Millisecond},
		{"2m", 2 * time.Minute},
		{"soon", 10 * time.Second},
		{"-5s", 10 * time.Second},
	}
	for _, tt := range tests {
		t.Setenv("EXGRATIA_TEST_DURATION", tt.val)
		if got := ParseDurationEnv("EXGRATIA_TEST_DURATION", 10*time.Second); got != tt.want {
			t.Errorf("ParseDurationEnv(%q) = %v, want %v", tt.val, got, tt.want)
		}
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("EXGRATIA_TEST_INT", "8")
	if got := ParseIntEnv("EXGRATIA_TEST_INT", 4); got != 8 {
		t.Errorf("got %d, want 8", got)
	}
	t.Setenv("EXGRATIA_TEST_INT", "eight")
	if got := ParseIntEnv("EXGRATIA_TEST_INT", 4); got != 4 {
		t.Errorf("got %d, want default 4", got)
	}
}
