package syncx

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

// Event is one row of the append-only event_log.
type Event struct {
	Offset    int64  `json:"offset"`
	SiteID    string `json:"site_id"`
	Type      string `json:"type"` // NormalizationConfigured, AttemptScored, QuizRescored, ContentIndexed, ...
	Key       string `json:"key"`  // natural key: questionID, attemptID, quizID, contentID
	DataJSON  string `json:"data"`
	CreatedAt int64  `json:"created_at"`
}

type EventRepo struct {
	db     *sql.DB
	siteID string
	rebind func(string) string
}

// NewEventRepo appends to event_log. rebind adapts ? placeholders to the
// driver; nil leaves the query unchanged.
func NewEventRepo(db *sql.DB, siteID string, rebind func(string) string) *EventRepo {
	if siteID == "" {
		siteID = "local"
	}
	if rebind == nil {
		rebind = func(q string) string { return q }
	}
	return &EventRepo{db: db, siteID: siteID, rebind: rebind}
}

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	if e.SiteID == "" {
		e.SiteID = r.siteID
	}
	if e.DataJSON == "" {
		e.DataJSON = "{}"
	}
	_, err := r.db.ExecContext(ctx, r.rebind(
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES (?,?,?,?,?)`),
		e.SiteID, e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return errors.Wrapf(err, "append event %s", e.Type)
}

// Since lists events with an offset greater than after, oldest first.
func (r *EventRepo) Since(ctx context.Context, after int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, r.rebind(
		`SELECT seq, site_id, typ, key, data, created_at FROM event_log
		 WHERE seq > ? ORDER BY seq LIMIT ?`), after, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list events")
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Offset, &e.SiteID, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "list events")
}
