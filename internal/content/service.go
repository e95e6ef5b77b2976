package content

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-grading/internal/metrics"
	syncx "github.com/mind-engage/mindengage-grading/internal/sync"
)

type EventSink interface {
	Append(ctx context.Context, e syncx.Event) error
}

// Service persists content and then calls the indexer. An indexing failure
// is logged and counted; the stored row stays as written.
type Service struct {
	store   Store
	indexer Indexer
	events  EventSink
	log     *zap.Logger
	now     func() time.Time
}

func NewService(store Store, idx Indexer, events EventSink, log *zap.Logger) *Service {
	if idx == nil {
		idx = NopIndexer{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, indexer: idx, events: events, log: log, now: time.Now}
}

func (s *Service) Get(ctx context.Context, id string) (Content, error) {
	return s.store.Get(ctx, id)
}

// Save upserts c. Content with an empty body is stored but not indexed.
func (s *Service) Save(ctx context.Context, c Content) (Content, error) {
	if c.ID == "" || c.Title == "" {
		return Content{}, fmt.Errorf("%w: id and title are required", ErrInvalidContent)
	}
	if c.Type == "" {
		c.Type = "text"
	}
	c.UpdatedAt = s.now().Unix()
	if err := s.store.Put(ctx, c); err != nil {
		return Content{}, err
	}
	if c.Body == "" {
		return c, nil
	}

	err := s.indexer.Index(ctx, c)
	metrics.ObserveIndex("index", err)
	if err != nil {
		s.log.Warn("content index failed", zap.String("content_id", c.ID), zap.Error(err))
		return c, nil
	}
	s.emit(ctx, "ContentIndexed", c.ID, map[string]any{"course_id": c.CourseID, "title": c.Title})
	s.log.Info("content indexed", zap.String("content_id", c.ID), zap.String("course_id", c.CourseID))
	return c, nil
}

// Delete removes the row and then drops it from the index.
func (s *Service) Delete(ctx context.Context, id string) error {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	err = s.indexer.Remove(ctx, c)
	metrics.ObserveIndex("remove", err)
	if err != nil {
		s.log.Warn("content unindex failed", zap.String("content_id", id), zap.Error(err))
		return nil
	}
	s.emit(ctx, "ContentUnindexed", id, map[string]any{"course_id": c.CourseID})
	return nil
}

func (s *Service) emit(ctx context.Context, typ, key string, payload any) {
	if s.events == nil {
		return
	}
	buf, _ := json.Marshal(payload)
	if err := s.events.Append(ctx, syncx.Event{Type: typ, Key: key, DataJSON: string(buf)}); err != nil {
		s.log.Warn("event append failed", zap.String("type", typ), zap.Error(err))
	}
}
