package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// mockPinger implements Pinger for tests.
type mockPinger struct {
	pingErr error
}

func (m *mockPinger) PingContext(context.Context) error {
	return m.pingErr
}

// mockPolicyChecker implements PolicyChecker for tests.
type mockPolicyChecker struct {
	healthErr error
}

func (m *mockPolicyChecker) HealthCheck(context.Context) error {
	return m.healthErr
}

func TestCheck(t *testing.T) {
	testCases := []struct {
		name    string
		pinger  Pinger
		policy  PolicyChecker
		wantErr string
	}{
		{"nil dependencies", nil, nil, ""},
		{"all healthy", &mockPinger{}, &mockPolicyChecker{}, ""},
		{"ping fails", &mockPinger{pingErr: errors.New("connection refused")}, &mockPolicyChecker{}, "database"},
		{"policy fails", &mockPinger{}, &mockPolicyChecker{healthErr: errors.New("rego compile failed")}, "policy"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := NewChecker(tc.pinger, tc.policy).Check(context.Background())
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestServeHTTP(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker(&mockPinger{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = httptest.NewRecorder()
	NewChecker(&mockPinger{pingErr: errors.New("down")}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "SERVICE_UNAVAILABLE")
	assert.NotContains(t, rec.Body.String(), "down")
}

func TestUpdate_SetsServingStatus(t *testing.T) {
	hs := health.NewServer()
	pinger := &mockPinger{pingErr: errors.New("down")}
	c := NewChecker(pinger, nil)

	require.Error(t, c.Update(context.Background(), hs))
	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	pinger.pingErr = nil
	require.NoError(t, c.Update(context.Background(), hs))
	resp, err = hs.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
