package checkpoint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/vecfeed/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn    func(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error
	hgetAllFn func(ctx context.Context, key string) (map[string]string, error)
	delFn     func(ctx context.Context, key string) error
	scanFn    func(ctx context.Context, pattern string) ([]string, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields, ttl)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}

func TestSave(t *testing.T) {
	var gotKey string
	var gotFields map[string]string
	var gotTTL time.Duration
	s := &mockStore{hsetFn: func(_ context.Context, key string, fields map[string]string, ttl time.Duration) error {
		gotKey, gotFields, gotTTL = key, fields, ttl
		return nil
	}}
	r := New(s, "vecfeed:", 24*time.Hour)
	r.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	if err := r.Save(context.Background(), "recruit", "jobs.parquet", "abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "vecfeed:checkpoint:recruit:jobs.parquet" {
		t.Errorf("unexpected key %q", gotKey)
	}
	if gotFields["id"] != "abc" || gotFields["saved_at"] != "2026-03-01T12:00:00Z" || gotTTL != 24*time.Hour {
		t.Errorf("unexpected fields %v ttl %s", gotFields, gotTTL)
	}
}

func TestSave_Error(t *testing.T) {
	s := &mockStore{hsetFn: func(context.Context, string, map[string]string, time.Duration) error {
		return &db.Error{Op: db.OpHSet, Err: errors.New("READONLY")}
	}}
	err := New(s, "", 0).Save(context.Background(), "recruit", "jobs.csv", "abc")
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(context.Context, string) (map[string]string, error)
		want    string
		wantErr bool
	}{
		{"stored", func(context.Context, string) (map[string]string, error) {
			return map[string]string{"id": "abc"}, nil
		}, "abc", false},
		{"missing", func(context.Context, string) (map[string]string, error) {
			return nil, db.ErrKeyNotFound
		}, "", false},
		{"store down", func(context.Context, string) (map[string]string, error) {
			return nil, errors.New("connection refused")
		}, "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := New(&mockStore{hgetAllFn: tc.fn}, "", 0)
			got, err := r.Load(context.Background(), "candidate", "cv.pkl")
			if (err != nil) != tc.wantErr {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestClear(t *testing.T) {
	var deleted string
	s := &mockStore{delFn: func(_ context.Context, key string) error {
		deleted = key
		return nil
	}}
	if err := New(s, "p:", 0).Clear(context.Background(), "skill_dic", "skills.csv"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != "p:checkpoint:skill_dic:skills.csv" {
		t.Errorf("unexpected key %q", deleted)
	}
}

func TestList(t *testing.T) {
	data := map[string]map[string]string{
		"checkpoint:recruit:b.csv": {"domain": "recruit", "file": "b.csv", "id": "2", "saved_at": "2026-03-01T12:00:00Z"},
		"checkpoint:recruit:a.csv": {"domain": "recruit", "file": "a.csv", "id": "1", "saved_at": "garbage"},
	}
	s := &mockStore{
		scanFn: func(_ context.Context, pattern string) ([]string, error) {
			if pattern != "checkpoint:recruit:*" {
				t.Errorf("unexpected pattern %q", pattern)
			}
			return []string{"checkpoint:recruit:b.csv", "checkpoint:recruit:gone.csv", "checkpoint:recruit:a.csv"}, nil
		},
		hgetAllFn: func(_ context.Context, key string) (map[string]string, error) {
			if m, ok := data[key]; ok {
				return m, nil
			}
			return nil, db.ErrKeyNotFound
		},
	}

	entries, err := New(s, "", 0).List(context.Background(), "recruit")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 || entries[0].File != "a.csv" || entries[1].ID != "2" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if !entries[0].SavedAt.IsZero() || entries[1].SavedAt.IsZero() {
		t.Errorf("unexpected timestamps %+v", entries)
	}
}
