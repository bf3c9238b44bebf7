package repository

import (
	"context"
	"fmt"
	"strings"
)

var migrationStatements = []string{
	`DO $$ BEGIN CREATE TYPE call_status AS ENUM ('active', 'completed'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`CREATE TABLE IF NOT EXISTS calls (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		call_sid TEXT NOT NULL DEFAULT '',
		stream_sid TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ,
		status call_status NOT NULL DEFAULT 'active'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_calls_call_sid ON calls (call_sid) WHERE call_sid <> ''`,
	`CREATE INDEX IF NOT EXISTS idx_calls_active ON calls (started_at) WHERE status = 'active'`,
	`CREATE TABLE IF NOT EXISTS transcript_segments (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		call_id UUID NOT NULL REFERENCES calls(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		segment_index INTEGER NOT NULL,
		spoken_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE(call_id, segment_index)
	)`,
}

func RunMigration(ctx context.Context, db querier) error {
	for i, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement %d: %w", i, err)
		}
	}
	return nil
}
