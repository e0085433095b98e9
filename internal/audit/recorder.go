// Package audit mirrors lead history entries into an append-only Postgres
// table so operators can query changes outside the running agent.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/leadtriage/internal/leads"
	"github.com/wolfman30/leadtriage/pkg/logging"
)

const uniqueViolation = "23505"

// Record is one audited history entry.
type Record struct {
	ID         string            `json:"id"`
	LeadID     string            `json:"lead_id"`
	Action     string            `json:"action"`
	Detail     map[string]string `json:"detail,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Recorder writes lead history to the lead_audit table.
type Recorder struct {
	db     *sql.DB
	logger *logging.Logger
	tracer trace.Tracer
}

// NewRecorder creates an audit recorder backed by db.
func NewRecorder(db *sql.DB, logger *logging.Logger) *Recorder {
	if db == nil {
		panic("audit: db required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Recorder{
		db:     db,
		logger: logger.Component("audit"),
		tracer: otel.Tracer("leadtriage.internal.audit"),
	}
}

// RecordHistory inserts a history entry. Re-recording the same entry ID is a no-op.
func (r *Recorder) RecordHistory(ctx context.Context, leadID string, entry leads.HistoryEntry) error {
	if leadID == "" {
		return errors.New("audit: lead id required")
	}
	ctx, span := r.tracer.Start(ctx, "audit.record_history")
	defer span.End()

	detail := []byte("{}")
	if len(entry.Detail) > 0 {
		var err error
		if detail, err = json.Marshal(entry.Detail); err != nil {
			return fmt.Errorf("audit: marshal detail: %w", err)
		}
	}
	occurred := entry.Timestamp
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}

	query := `
		INSERT INTO lead_audit (id, lead_id, action, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query, entry.ID, leadID, entry.Action, detail, occurred)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			r.logger.Debug("history entry already audited", "lead_id", leadID, "entry_id", entry.ID)
			return nil
		}
		span.RecordError(err)
		return fmt.Errorf("audit: insert history entry: %w", err)
	}
	return nil
}

// History returns the audited entries for the given leads, oldest first.
func (r *Recorder) History(ctx context.Context, leadIDs ...string) ([]Record, error) {
	if len(leadIDs) == 0 {
		return []Record{}, nil
	}
	ctx, span := r.tracer.Start(ctx, "audit.history")
	defer span.End()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, lead_id, action, detail, occurred_at
		FROM lead_audit WHERE lead_id = ANY($1)
		ORDER BY occurred_at ASC, id ASC`, pq.Array(leadIDs))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("audit: query history: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var (
			rec Record
			raw []byte
		)
		if err := rows.Scan(&rec.ID, &rec.LeadID, &rec.Action, &raw, &rec.OccurredAt); err != nil {
			return nil, fmt.Errorf("audit: scan history: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &rec.Detail); err != nil {
				return nil, fmt.Errorf("audit: decode detail for %s: %w", rec.ID, err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

var _ leads.HistoryObserver = (*Recorder)(nil)
