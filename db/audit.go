package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/onnwee/rolemaster-relay/engine"
)

// AuditRecorder writes handled commands to command_audit. It satisfies engine.Auditor.
type AuditRecorder struct{ DB *sql.DB }

func (a *AuditRecorder) Record(ctx context.Context, e engine.Entry) error {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := a.DB.ExecContext(ctx,
		`INSERT INTO command_audit(corr_id, username, kind, dev_type, outcome, detail, created_at)
		 VALUES($1,$2,$3,NULLIF($4,''),$5,NULLIF($6,''),$7)`,
		e.CorrelationID, e.User, e.Kind, e.DevType, e.Outcome, e.Detail, at.UTC())
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. An empty user matches everyone.
func (a *AuditRecorder) Recent(ctx context.Context, user string, limit int) ([]engine.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.DB.QueryContext(ctx,
		`SELECT corr_id, username, kind, COALESCE(dev_type,''), outcome, COALESCE(detail,''), created_at
		 FROM command_audit
		 WHERE ($1 = '' OR username = $1)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`, user, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var out []engine.Entry
	for rows.Next() {
		var e engine.Entry
		if err := rows.Scan(&e.CorrelationID, &e.User, &e.Kind, &e.DevType, &e.Outcome, &e.Detail, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
