package main

import (
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestSetupLogger(t *testing.T) {
	t.Cleanup(func() {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
		log.SetLevel(log.InfoLevel)
	})

	testCases := []struct {
		name      string
		format    string
		level     string
		wantLevel log.Level
		wantJSON  bool
		wantErr   bool
	}{
		{name: "text debug", format: "text", level: "debug", wantLevel: log.DebugLevel},
		{name: "json warn", format: " JSON ", level: "warn", wantLevel: log.WarnLevel, wantJSON: true},
		{name: "unknown format falls back to text", format: "xml", level: "error", wantLevel: log.ErrorLevel},
		{name: "invalid level falls back to info", format: "text", level: "loud", wantLevel: log.InfoLevel, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := setupLogger(tc.format, tc.level)
			if tc.wantErr != (err != nil) {
				t.Fatalf("unexpected error state: %v", err)
			}
			if got := log.GetLevel(); got != tc.wantLevel {
				t.Fatalf("expected level %s, got %s", tc.wantLevel, got)
			}
			_, isJSON := log.StandardLogger().Formatter.(*log.JSONFormatter)
			if isJSON != tc.wantJSON {
				t.Fatalf("expected json formatter=%v, got %T", tc.wantJSON, log.StandardLogger().Formatter)
			}
		})
	}
}
