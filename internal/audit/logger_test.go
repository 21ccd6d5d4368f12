package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"saas-core/backend/internal/audit/domain"
)

// mockAuditRepo implements the audit repository interface for tests.
type mockAuditRepo struct {
	entries   []*domain.AuditLog
	createErr error
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListByTenant(ctx context.Context, tenantID string, limit, offset int32) ([]*domain.AuditLog, error) {
	return m.entries, nil
}

func TestLogger_LogEvent_Success(t *testing.T) {
	repo := &mockAuditRepo{}
	ipExtractor := func(ctx context.Context) string {
		return "192.168.1.1"
	}
	logger := NewLogger(repo, ipExtractor, zerolog.Nop())

	logger.LogEvent(context.Background(), "tenant-1", "user-1", "login_success", "authentication", map[string]string{"session_id": "s1"})

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.TenantID != "tenant-1" {
		t.Errorf("tenant_id = %q, want %q", entry.TenantID, "tenant-1")
	}
	if entry.UserID != "user-1" {
		t.Errorf("user_id = %q, want %q", entry.UserID, "user-1")
	}
	if entry.Action != "login_success" || entry.Resource != "authentication" {
		t.Errorf("action/resource = %q/%q", entry.Action, entry.Resource)
	}
	if entry.IP != "192.168.1.1" {
		t.Errorf("ip = %q, want %q", entry.IP, "192.168.1.1")
	}
	var meta map[string]string
	if err := json.Unmarshal([]byte(entry.Metadata), &meta); err != nil || meta["session_id"] != "s1" {
		t.Errorf("metadata = %q (%v)", entry.Metadata, err)
	}
	if entry.ID == "" {
		t.Error("entry ID should be set")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("entry CreatedAt should be set")
	}
}

func TestLogger_LogEvent_Defaults(t *testing.T) {
	repo := &mockAuditRepo{}
	logger := NewLogger(repo, nil, zerolog.Nop())

	logger.LogEvent(context.Background(), "", "", "sessions_revoked", "session", nil)

	entry := repo.entries[0]
	if entry.TenantID != SentinelTenantID {
		t.Errorf("tenant_id = %q, want sentinel", entry.TenantID)
	}
	if entry.IP != "unknown" {
		t.Errorf("ip = %q, want unknown", entry.IP)
	}
	if entry.Metadata != "" {
		t.Errorf("metadata = %q, want empty", entry.Metadata)
	}
}

func TestLogger_LogEvent_RepoErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	repo := &mockAuditRepo{createErr: errors.New("db down")}
	logger := NewLogger(repo, nil, zerolog.New(&buf))

	logger.LogEvent(context.Background(), "tenant-1", "user-1", "logout", "session", nil)

	if buf.Len() == 0 {
		t.Fatal("repository failure should be logged")
	}
	if !bytes.Contains(buf.Bytes(), []byte("db down")) {
		t.Errorf("log = %s", buf.String())
	}
}

func TestLogger_NilSafe(t *testing.T) {
	var l *Logger
	l.LogEvent(context.Background(), "t", "u", "a", "r", nil)
	NewLogger(nil, nil, zerolog.Nop()).LogEvent(context.Background(), "t", "u", "a", "r", nil)
}
