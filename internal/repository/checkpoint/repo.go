// Package checkpoint persists the last streamed record id of completed runs.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kailas-cloud/vecfeed/internal/db"
)

// store is the consumer interface for checkpoint operations (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Hash fields of a stored checkpoint.
const (
	fieldDomain  = "domain"
	fieldFile    = "file"
	fieldID      = "id"
	fieldSavedAt = "saved_at"
)

// Entry is one stored checkpoint.
type Entry struct {
	Domain  string
	File    string
	ID      string
	SavedAt time.Time
}

// Repo stores checkpoints as hashes under {prefix}checkpoint:{domain}:{file}.
type Repo struct {
	store  store
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// New creates a checkpoint repository. ttl <= 0 keeps checkpoints forever.
func New(s store, prefix string, ttl time.Duration) *Repo {
	return &Repo{store: s, prefix: prefix, ttl: ttl, now: time.Now}
}

func (r *Repo) key(domain, file string) string {
	return r.prefix + "checkpoint:" + domain + ":" + file
}

// Load returns the stored id, or "" when none is stored.
func (r *Repo) Load(ctx context.Context, domain, file string) (string, error) {
	m, err := r.store.HGetAll(ctx, r.key(domain, file))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("load checkpoint %s/%s: %w", domain, file, err)
	}
	return m[fieldID], nil
}

// Save stores id as the checkpoint of (domain, file).
func (r *Repo) Save(ctx context.Context, domain, file, id string) error {
	fields := map[string]string{
		fieldDomain:  domain,
		fieldFile:    file,
		fieldID:      id,
		fieldSavedAt: r.now().UTC().Format(time.RFC3339),
	}
	if err := r.store.HSet(ctx, r.key(domain, file), fields, r.ttl); err != nil {
		return fmt.Errorf("save checkpoint %s/%s: %w", domain, file, err)
	}
	return nil
}

// Clear removes the checkpoint of (domain, file). Clearing a missing one is not an error.
func (r *Repo) Clear(ctx context.Context, domain, file string) error {
	if err := r.store.Del(ctx, r.key(domain, file)); err != nil {
		return fmt.Errorf("clear checkpoint %s/%s: %w", domain, file, err)
	}
	return nil
}

// List returns the checkpoints of a domain ordered by file. Keys that expire
// between the scan and the read are skipped.
func (r *Repo) List(ctx context.Context, domain string) ([]Entry, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"checkpoint:"+domain+":*")
	if err != nil {
		return nil, fmt.Errorf("list checkpoints %s: %w", domain, err)
	}

	out := make([]Entry, 0, len(keys))
	for _, key := range keys {
		m, err := r.store.HGetAll(ctx, key)
		if err != nil {
			if errors.Is(err, db.ErrKeyNotFound) {
				continue
			}
			return nil, fmt.Errorf("list checkpoints %s: %w", domain, err)
		}
		e := Entry{Domain: m[fieldDomain], File: m[fieldFile], ID: m[fieldID]}
		if ts, err := time.Parse(time.RFC3339, m[fieldSavedAt]); err == nil {
			e.SavedAt = ts
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].File < out[j].File })
	return out, nil
}
