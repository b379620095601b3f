// Package tubefeed aggregates a user-curated list of YouTube channels into a
// local sqlite store and exposes the combined state to UI front-ends.
//
// The Feeder is the single object the UI layers talk to: it wraps the store,
// the parallel sync engine and the lock-file-gated update scheduler.
package tubefeed

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"tubefeed/internal/config"
	"tubefeed/internal/fetcher"
	"tubefeed/internal/models"
	"tubefeed/internal/parser"
	"tubefeed/internal/storage"
	"tubefeed/internal/syncer"
	"tubefeed/internal/updater"
)

// Feeder is the facade over Store + Sync + Updater.
type Feeder struct {
	cfg     *config.Config
	store   *storage.Store
	fetcher *fetcher.Fetcher
	syncer  *syncer.Syncer
	log     *logrus.Logger

	updater    *updater.Updater
	updaterErr error // LockFileError: sync refused, reads continue

	channels []models.Channel // visible channels with refreshed stats
	titles   map[string]string
}

// NewFeeder opens the store and lock-file state and wires the sync pipeline.
// A malformed lock file does not fail construction; it only refuses sync.
func NewFeeder(cfg *config.Config, log *logrus.Logger) (*Feeder, error) {
	store, err := storage.NewStore(cfg.StoragePath, log)
	if err != nil {
		return nil, err
	}

	f := &Feeder{
		cfg:     cfg,
		store:   store,
		fetcher: fetcher.New(nil, log),
		log:     log,
		titles:  make(map[string]string),
	}
	f.syncer = syncer.New(f.fetcher, parser.New(cfg.SkipShorts, log), store, log)
	f.updater, f.updaterErr = updater.New(cfg.LockFile, cfg.UpdateInterval(), log)
	f.channels = cfg.Channels()
	if err := f.RefreshStats(context.Background()); err != nil {
		store.Close()
		return nil, err
	}
	return f, nil
}

// Close releases the store.
func (f *Feeder) Close() error {
	return f.store.Close()
}

// SetFeedURL overrides the feed URL template. Test hook.
func (f *Feeder) SetFeedURL(tmpl string) { f.fetcher.SetBaseURL(tmpl) }

// Channels returns the visible channel list with the stats from the last
// RefreshStats call.
func (f *Feeder) Channels() []Channel {
	return f.channels
}

// RefreshStats rewrites the derived fields (entries_count, unwatched_count,
// have_updates) on the visible channel list from one aggregate store pass.
// The current sort order is kept. The UI calls it after mark and sync
// operations; there are no hidden caches.
func (f *Feeder) RefreshStats(ctx context.Context) error {
	stats, err := f.store.SelectStats(ctx)
	if err != nil {
		return err
	}
	for i := range f.channels {
		st := stats[f.channels[i].ID]
		f.channels[i].Entries = st.Total
		f.channels[i].Unwatched = st.Unwatched
		f.channels[i].HaveUpdates = st.Unwatched > 0
	}
	return nil
}

// SortChannels reorders the in-memory channel list. The channels file keeps
// its order on disk.
func (f *Feeder) SortChannels(mode SortMode) {
	switch mode {
	case SortAlphabetic:
		slices.SortStableFunc(f.channels, func(a, b models.Channel) int {
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		})
	case SortUnwatchedFirst:
		slices.SortStableFunc(f.channels, func(a, b models.Channel) int {
			return b.Unwatched - a.Unwatched
		})
	case SortConfigOrder:
		pos := make(map[string]int, len(f.channels))
		for i, ch := range f.cfg.Channels() {
			pos[ch.ID] = i
		}
		slices.SortStableFunc(f.channels, func(a, b models.Channel) int {
			return pos[a.ID] - pos[b.ID]
		})
	}
}

// Channel looks up a visible channel by id.
func (f *Feeder) Channel(channelID string) (Channel, bool) {
	for _, ch := range f.channels {
		if ch.ID == channelID {
			return ch, true
		}
	}
	return Channel{}, false
}

// ChannelTitle returns the configured title for a channel id, memoized, or
// "Unknown" for channels no longer in config.
func (f *Feeder) ChannelTitle(channelID string) string {
	if title, ok := f.titles[channelID]; ok {
		return title
	}
	title := UnknownTitle
	for _, ch := range f.cfg.AllChannels() {
		if ch.ID == channelID {
			title = ch.Title
			break
		}
	}
	f.titles[channelID] = title
	return title
}

// Feed returns the aggregated feed across visible channels, newest first.
// includeUnknown also returns entries whose channel is no longer in config;
// hidden channels stay excluded either way.
func (f *Feeder) Feed(ctx context.Context, limit int, unwatchedFirst, includeUnknown bool) ([]Entry, error) {
	filter := storage.EntryFilter{Limit: limit, UnwatchedFirst: unwatchedFirst}
	if includeUnknown {
		filter.NotInChannels = f.hiddenIDs()
	} else {
		filter.InChannels = f.visibleIDs()
	}
	return f.store.SelectEntries(ctx, filter)
}

// ChannelFeed returns one channel's entries, newest first.
func (f *Feeder) ChannelFeed(ctx context.Context, channelID string, limit int, unwatchedFirst bool) ([]Entry, error) {
	return f.store.SelectEntries(ctx, storage.EntryFilter{
		ChannelID:      channelID,
		Limit:          limit,
		UnwatchedFirst: unwatchedFirst,
	})
}

// UnwatchedCount counts unviewed, non-deleted entries across visible
// channels.
func (f *Feeder) UnwatchedCount(ctx context.Context) (int, error) {
	return f.store.SelectEntriesCount(ctx, storage.EntryFilter{
		InChannels: f.visibleIDs(),
		IsViewed:   lo.ToPtr(false),
	})
}

// FeedStats aggregates (total, unwatched) across the visible channels, for
// the UIs' combined-feed header line.
func (f *Feeder) FeedStats() Stats {
	var st Stats
	for _, ch := range f.channels {
		st.Total += ch.Entries
		st.Unwatched += ch.Unwatched
	}
	return st
}

// TagsMap rolls up tags across the visible channel list. Recomputed on
// demand from the stats of the last refresh.
func (f *Feeder) TagsMap() map[string]*Tag {
	tags := make(map[string]*Tag)
	for _, ch := range f.channels {
		for _, title := range ch.Tags {
			tag, ok := tags[title]
			if !ok {
				tag = &Tag{Title: title}
				tags[title] = tag
			}
			tag.Channels = append(tag.Channels, ch)
			tag.Entries += ch.Entries
			tag.Unwatched += ch.Unwatched
			tag.HaveUpdates = tag.HaveUpdates || ch.HaveUpdates
		}
	}
	return tags
}

// MarkEntryAsWatched marks one entry; unwatched inverts.
func (f *Feeder) MarkEntryAsWatched(ctx context.Context, id string, unwatched bool) error {
	_, err := f.store.MarkEntryAsWatched(ctx, id, unwatched)
	return err
}

// MarkChannelAsWatched marks every entry of one channel; unwatched inverts.
func (f *Feeder) MarkChannelAsWatched(ctx context.Context, channelID string, unwatched bool) error {
	_, err := f.store.MarkChannelEntriesAsWatched(ctx, channelID, unwatched)
	return err
}

// MarkAllAsWatched marks every entry in the store; unwatched inverts.
func (f *Feeder) MarkAllAsWatched(ctx context.Context, unwatched bool) error {
	_, err := f.store.MarkAllEntriesAsWatched(ctx, unwatched)
	return err
}

// MarkEntryAsDeleted tombstones one entry.
func (f *Feeder) MarkEntryAsDeleted(ctx context.Context, id string) error {
	_, err := f.store.MarkEntryAsDeleted(ctx, id)
	return err
}

// MarkChannelAsDeleted tombstones every entry of one channel.
func (f *Feeder) MarkChannelAsDeleted(ctx context.Context, channelID string) error {
	_, err := f.store.MarkChannelEntriesAsDeleted(ctx, channelID)
	return err
}

// RestoreChannel clears the tombstone flag on a channel's entries.
func (f *Feeder) RestoreChannel(ctx context.Context, channelID string) error {
	_, err := f.store.RestoreChannel(ctx, channelID)
	return err
}

// CleanCache hard-deletes watched entries and compacts the backing file.
// force widens the predicate to tombstoned rows.
func (f *Feeder) CleanCache(ctx context.Context, force bool) (int64, error) {
	removed, err := f.store.DeleteOldEntries(ctx, force)
	if err != nil {
		return 0, err
	}
	if err := f.store.Vacuum(ctx); err != nil {
		return removed, err
	}
	return removed, nil
}

// DeleteInactive removes store rows for channels dropped from config and
// compacts the backing file. Routine sync never does this; it is an explicit
// user action.
func (f *Feeder) DeleteInactive(ctx context.Context) (int64, error) {
	active := lo.Map(f.cfg.AllChannels(), func(ch models.Channel, _ int) string { return ch.ID })
	removed, err := f.store.DeleteInactiveChannels(ctx, active)
	if err != nil {
		return 0, err
	}
	if err := f.store.Vacuum(ctx); err != nil {
		return removed, err
	}
	return removed, nil
}

// IsUpdateExpired reports whether the lock-file gate allows a sync pass.
// A malformed lock file refuses sync until repaired.
func (f *Feeder) IsUpdateExpired() bool {
	return f.updaterErr == nil && f.updater.IsUpdateExpired()
}

// SyncEntries runs one pass over all configured channels, hidden included,
// records the outcome in the lock file and refreshes channel stats. It
// returns the total of new entries and the first per-channel error, if any;
// no entries already written are rolled back on failure.
func (f *Feeder) SyncEntries(ctx context.Context) (int, error) {
	if f.updaterErr != nil {
		return 0, fmt.Errorf("sync refused: %w", f.updaterErr)
	}

	added, syncErr := f.syncer.Sync(ctx, f.cfg.AllChannels())
	if err := f.updater.RecordOutcome(syncErr != nil); err != nil {
		f.log.WithError(err).Error("can't record sync outcome")
	}
	if err := f.RefreshStats(ctx); err != nil {
		f.log.WithError(err).Error("can't refresh stats")
	}
	return added, syncErr
}

// LastUpdate returns the last successful sync time; ok is false when no
// sync ever succeeded or the lock file is unreadable.
func (f *Feeder) LastUpdate() (time.Time, bool) {
	if f.updaterErr != nil {
		return time.Time{}, false
	}
	return f.updater.LastSuccess()
}

func (f *Feeder) visibleIDs() []string {
	return lo.Map(f.channels, func(ch models.Channel, _ int) string { return ch.ID })
}

func (f *Feeder) hiddenIDs() []string {
	hidden := lo.Filter(f.cfg.AllChannels(), func(ch models.Channel, _ int) bool { return ch.Hidden })
	return lo.Map(hidden, func(ch models.Channel, _ int) string { return ch.ID })
}
