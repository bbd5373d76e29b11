package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"hotel_sync/internal/domain"
)

func (r *Repo) Append(ctx context.Context, e domain.AuditEntry) error {
	_, err := r.db.ExecContext(ctx, insertAuditSQL,
		e.ID,
		valStr(e.PropertyID),
		e.Service,
		e.Method,
		e.Endpoint,
		valJSON(e.RequestBody),
		valJSON(e.ResponseBody),
		e.StatusCode,
		valStr(e.Error),
		e.Duration.Milliseconds(),
		e.CreatedAt,
	)
	return err
}

// ListAudit returns entries oldest first within [Since, Until).
func (r *Repo) ListAudit(ctx context.Context, q domain.AuditQuery) ([]domain.AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	if q.PropertyID != "" {
		where = append(where, "property_id = ?")
		args = append(args, q.PropertyID)
	}
	if !q.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, q.Since)
	}
	if !q.Until.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, q.Until)
	}
	sqlStr := listAuditPrefix
	if len(where) > 0 {
		sqlStr += "WHERE " + strings.Join(where, " AND ") + "\n"
	}
	sqlStr += "ORDER BY created_at, id"
	if q.Limit > 0 {
		sqlStr += "\nLIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.AuditEntry{}
	for rows.Next() {
		var (
			e            domain.AuditEntry
			prop, errMsg sql.NullString
			reqB, respB  []byte
			durMS        int64
		)
		if err := rows.Scan(&e.ID, &prop, &e.Service, &e.Method, &e.Endpoint, &reqB, &respB,
			&e.StatusCode, &errMsg, &durMS, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.PropertyID, e.Error = prop.String, errMsg.String
		e.RequestBody, e.ResponseBody = reqB, respB
		e.Duration = time.Duration(durMS) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}
