package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_ReportsOrderStore(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
		wantBody   map[string]string
	}{
		{
			name:       "store reachable",
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{"status": "healthy"},
		},
		{
			name:       "store down",
			pingErr:    errors.New("dial tcp 10.0.0.5:5432: connection refused"),
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   map[string]string{"status": "unhealthy", "error": "order store unreachable"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			env.pinger.err = tt.pingErr

			status, raw := env.do(t, http.MethodGet, "/health", "", "")

			assert.Equal(t, tt.wantStatus, status)
			var body map[string]string
			require.NoError(t, json.Unmarshal(raw, &body))
			assert.Equal(t, tt.wantBody, body)
			assert.NotContains(t, string(raw), "10.0.0.5", "store address must not leak")
			assert.Equal(t, 1, env.pinger.pings)
		})
	}
}

func TestHealth_NeedsNoToken(t *testing.T) {
	env := newTestEnv()

	status, _ := env.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, status)

	// A staff token is accepted but not required.
	status, _ = env.do(t, http.MethodGet, "/health", "", token(t, "staff-1", testStaffRole))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, env.pinger.pings)
}
