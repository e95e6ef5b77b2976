package http

import (
	"context"
	"net/http"
	"strconv"

	syncx "github.com/mind-engage/mindengage-grading/internal/sync"
)

type EventFeed interface {
	Since(ctx context.Context, after int64, limit int) ([]syncx.Event, error)
}

// GET /events?after=<offset>&limit=<n>
func ListEventsHandler(feed EventFeed) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var after int64
		if v := q.Get("after"); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				http.Error(w, "after must be a non-negative offset", http.StatusBadRequest)
				return
			}
			after = n
		}
		limit, _ := strconv.Atoi(q.Get("limit"))
		events, err := feed.Since(r.Context(), after, limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if events == nil {
			events = []syncx.Event{}
		}
		writeJSON(w, http.StatusOK, events)
	}
}
