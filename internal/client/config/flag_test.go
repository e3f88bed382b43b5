package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {

	// Test cases
	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "Test1 OK", args: []string{"cmd", "-a", "http://h:9090/api", "-w", "ws://h:9090/ws", "-t", "2s", "-d", "x.db", "-l", "debug", "-p", "fail-closed"}, expectPanic: false,
			expected: &Config{APIBaseURL: "http://h:9090/api", RealtimeURL: "ws://h:9090/ws", RequestTimeout: 2 * time.Second,
				DatabaseDSN: "x.db", LogLevel: "debug", ValidationPolicy: "fail-closed"}},
		{name: "Test2 unrelated flags ignored", args: []string{"cmd", "-c", "cfg.json", "-a", "http://h/api"}, expectPanic: false,
			expected: &Config{APIBaseURL: "http://h/api"}},
		{name: "Test3 incorrect timeout", args: []string{"cmd", "-t", "abc"}, expectPanic: true, expected: &Config{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withArgs(t, tt.args...)

			config := &Config{}

			if !tt.expectPanic {

				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
