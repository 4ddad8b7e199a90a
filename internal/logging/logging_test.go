package logging

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.in, zerolog.InfoLevel); got != tc.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewWithFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	log, closer, err := New(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info().Str("k", "v").Msg("hello")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
