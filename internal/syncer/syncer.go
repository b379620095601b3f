// Package syncer orchestrates one fetch+parse+persist pass across all
// configured channels in parallel.
package syncer

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"tubefeed/internal/fetcher"
	"tubefeed/internal/models"
	"tubefeed/internal/parser"
	"tubefeed/internal/storage"
)

// Syncer runs concurrent per-channel sync units over a shared HTTP client.
type Syncer struct {
	fetcher *fetcher.Fetcher
	parser  *parser.Parser
	store   *storage.Store
	log     *logrus.Logger
}

// New wires a Syncer from its collaborators.
func New(f *fetcher.Fetcher, p *parser.Parser, s *storage.Store, log *logrus.Logger) *Syncer {
	return &Syncer{fetcher: f, parser: p, store: s, log: log}
}

type outcome struct {
	added int
	err   error
}

// Sync launches one unit of work per channel, hidden ones included, and
// awaits them all. It returns the total of new entries and the error of the
// first failing channel in list order; every per-channel error is logged.
// One slow or failing channel never blocks its siblings, and a cancelled
// context makes in-flight units return promptly with partial results kept.
func (s *Syncer) Sync(ctx context.Context, channels []models.Channel) (int, error) {
	outcomes := make([]outcome, len(channels))
	done := make(chan int, len(channels))

	for i, ch := range channels {
		go func(i int, ch models.Channel) {
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = outcome{err: fmt.Errorf("sync %q: panic: %v", ch.ID, r)}
				}
				done <- i
			}()
			added, err := s.syncChannel(ctx, ch)
			outcomes[i] = outcome{added: added, err: err}
		}(i, ch)
	}

	for range channels {
		<-done
	}

	total := 0
	var firstErr error
	for i, out := range outcomes {
		if out.err != nil {
			s.log.WithField("channel", channels[i].ID).Error(out.err)
			if firstErr == nil {
				firstErr = out.err
			}
			continue
		}
		total += out.added
	}
	return total, firstErr
}

// syncChannel is one unit of work: fetch, parse, upsert the shadow feeds
// row, insert entries in document order. Inserts are idempotent by id, so
// replays are safe.
func (s *Syncer) syncChannel(ctx context.Context, ch models.Channel) (int, error) {
	body, err := s.fetcher.Fetch(ctx, ch.ID)
	if err != nil {
		return 0, fmt.Errorf("sync %q: %w", ch.ID, err)
	}

	entries, err := s.parser.Parse(body)
	if err != nil {
		return 0, fmt.Errorf("sync %q: %w", ch.ID, err)
	}

	if err := s.store.UpsertChannel(ctx, ch.ID, ch.Title); err != nil {
		return 0, fmt.Errorf("sync %q: %w", ch.ID, err)
	}
	added, err := s.store.AddEntries(ctx, entries)
	if err != nil {
		return 0, fmt.Errorf("sync %q: %w", ch.ID, err)
	}
	if added > 0 {
		s.log.WithFields(logrus.Fields{"channel": ch.Title, "new": added}).Info("new entries")
	}
	return added, nil
}
