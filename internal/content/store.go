package content

import (
	"context"
	"database/sql"
	"sync"

	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-grading/internal/db"
)

type Store interface {
	Put(ctx context.Context, c Content) error
	Get(ctx context.Context, id string) (Content, error)
	Delete(ctx context.Context, id string) error
}

/* ---------------- in-memory ---------------- */

type memStore struct {
	mu   sync.RWMutex
	rows map[string]Content
}

func NewInMemoryStore() Store {
	return &memStore{rows: map[string]Content{}}
}

func (m *memStore) Put(_ context.Context, c Content) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[c.ID] = c
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (Content, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.rows[id]
	if !ok {
		return Content{}, ErrNotFound
	}
	return c, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

/* ---------------- SQL ---------------- */

type SQLStore struct {
	db     *sql.DB
	rebind func(string) string
}

func NewSQLStore(conn *sql.DB, driver db.Driver) *SQLStore {
	return &SQLStore{db: conn, rebind: db.Rebinder(driver)}
}

func (s *SQLStore) Put(ctx context.Context, c Content) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO contents (id,course_id,module_id,title,content_type,body,updated_at)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT (id) DO UPDATE SET course_id=EXCLUDED.course_id, module_id=EXCLUDED.module_id,
			title=EXCLUDED.title, content_type=EXCLUDED.content_type, body=EXCLUDED.body, updated_at=EXCLUDED.updated_at`),
		c.ID, c.CourseID, c.ModuleID, c.Title, c.Type, c.Body, c.UpdatedAt)
	return errors.Wrapf(err, "upsert content %s", c.ID)
}

func (s *SQLStore) Get(ctx context.Context, id string) (Content, error) {
	var c Content
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT id,course_id,module_id,title,content_type,body,updated_at
		FROM contents WHERE id=?`), id).
		Scan(&c.ID, &c.CourseID, &c.ModuleID, &c.Title, &c.Type, &c.Body, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Content{}, ErrNotFound
	}
	if err != nil {
		return Content{}, errors.Wrap(err, "get content")
	}
	return c, nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM contents WHERE id=?`), id)
	if err != nil {
		return errors.Wrapf(err, "delete content %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
