package db

import "embed"

// MigrationFS embeds the schema migrations (tenants, users, refresh_sessions, audit_logs)
// applied by cmd/migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
