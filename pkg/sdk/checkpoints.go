package vecfeed

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
)

// CheckpointService manages the stored checkpoints of one domain.
type CheckpointService struct {
	domain string
	client *Client
}

// List returns the checkpoints of the domain sorted by file name.
func (s *CheckpointService) List(ctx context.Context) (_ []Checkpoint, err error) {
	start := time.Now()
	defer func() { s.client.obs.observe("checkpoint.list", s.domain, start, err) }()

	if err := s.ready(); err != nil {
		return nil, err
	}
	entries, err := s.client.checkpoints.List(ctx, s.domain)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	return fromEntries(entries), nil
}

// Clear removes the checkpoint of a file so the next resumed run starts from
// the first record. Only the base name of file is used.
func (s *CheckpointService) Clear(ctx context.Context, file string) (err error) {
	start := time.Now()
	defer func() { s.client.obs.observe("checkpoint.clear", s.domain, start, err) }()

	if err := s.ready(); err != nil {
		return err
	}
	if err := s.client.checkpoints.Clear(ctx, s.domain, filepath.Base(file)); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

func (s *CheckpointService) ready() error {
	if s.client.checkpoints == nil {
		return ErrCheckpointsDisabled
	}
	if _, err := s.client.domains.Resolve(s.domain); err != nil {
		return fmt.Errorf("vecfeed: %w", err)
	}
	return nil
}
