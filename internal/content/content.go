// Package content keeps course content and pushes every change to the
// tutor's vector index through an explicit Indexer.
package content

import (
	"context"
	"errors"
)

var (
	ErrNotFound       = errors.New("content not found")
	ErrInvalidContent = errors.New("invalid content")
)

type Content struct {
	ID        string `json:"id"`
	CourseID  string `json:"course_id,omitempty"`
	ModuleID  string `json:"module_id,omitempty"`
	Title     string `json:"title"`
	Type      string `json:"content_type,omitempty"` // text, video, quiz, ...
	Body      string `json:"body,omitempty"`
	UpdatedAt int64  `json:"updated_at,omitempty"`
}

// Indexer is the narrow capability the persistence path calls after a
// content row changes.
type Indexer interface {
	Index(ctx context.Context, c Content) error
	Remove(ctx context.Context, c Content) error
}

// NopIndexer is used when no indexing service is configured.
type NopIndexer struct{}

func (NopIndexer) Index(context.Context, Content) error  { return nil }
func (NopIndexer) Remove(context.Context, Content) error { return nil }
