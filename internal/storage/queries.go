package storage

import (
	"context"
	"database/sql"

	sqlbuilder "github.com/huandu/go-sqlbuilder"

	"tubefeed/internal/models"
)

const entryColumns = "id, title, published, channel_id, is_viewed, is_deleted"

// EntryFilter narrows SelectEntries and SelectEntriesCount.
type EntryFilter struct {
	ChannelID      string   // empty means any
	Limit          int      // <= 0 means unlimited
	UnwatchedFirst bool     // promote unviewed rows, date order within groups
	InChannels     []string // nil means any channel present in the store
	NotInChannels  []string // channels to exclude
	IsViewed       *bool    // nil means both
	IsDeleted      *bool    // nil means false
}

func (f EntryFilter) apply(sb *sqlbuilder.SelectBuilder) {
	if f.ChannelID != "" {
		sb.Where(sb.Equal("channel_id", f.ChannelID))
	}
	if f.InChannels != nil {
		if len(f.InChannels) == 0 {
			sb.Where("1 = 0")
		} else {
			ids := make([]any, len(f.InChannels))
			for i, id := range f.InChannels {
				ids[i] = id
			}
			sb.Where(sb.In("channel_id", ids...))
		}
	}
	if len(f.NotInChannels) > 0 {
		ids := make([]any, len(f.NotInChannels))
		for i, id := range f.NotInChannels {
			ids[i] = id
		}
		sb.Where(sb.NotIn("channel_id", ids...))
	}
	if f.IsViewed != nil {
		sb.Where(sb.Equal("is_viewed", *f.IsViewed))
	}
	deleted := false
	if f.IsDeleted != nil {
		deleted = *f.IsDeleted
	}
	sb.Where(sb.Equal("is_deleted", deleted))
}

// UpsertChannel creates or refreshes the shadow feeds row for a channel and
// marks it active again.
func (s *Store) UpsertChannel(ctx context.Context, channelID, title string) error {
	return s.withTx(ctx, "upsert channel", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tb_feeds (channel_id, title, is_active) VALUES (?, ?, 1)
			ON CONFLICT (channel_id) DO UPDATE SET title = excluded.title, is_active = 1`,
			channelID, title)
		return err
	})
}

// AddEntries bulk-inserts entries in one transaction, ignoring rows whose id
// already exists. Existing rows are never overwritten. Returns the number of
// genuinely new rows.
func (s *Store) AddEntries(ctx context.Context, entries []models.Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	var added int64
	err := s.withTx(ctx, "add entries", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			"INSERT OR IGNORE INTO tb_entries (id, title, published, channel_id) VALUES (?, ?, ?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, e := range entries {
			res, err := stmt.ExecContext(ctx, e.ID, e.Title, e.Published.UTC(), e.ChannelID)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			added += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.WithField("count", added).Debug("added entries")
	return int(added), nil
}

// SelectEntries returns entries ordered by published DESC. UnwatchedFirst
// promotes unviewed rows to the front while preserving date order within
// each partition.
func (s *Store) SelectEntries(ctx context.Context, f EntryFilter) ([]models.Entry, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(entryColumns).From("tb_entries")
	f.apply(sb)
	if f.UnwatchedFirst {
		sb.OrderBy("is_viewed ASC", "published DESC")
	} else {
		sb.OrderBy("published DESC")
	}
	if f.Limit > 0 {
		sb.Limit(f.Limit)
	}

	query, args := sb.Build()
	s.log.WithField("query", query).Debug("select entries")

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "select entries", Err: err}
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		var e models.Entry
		if err := rows.Scan(&e.ID, &e.Title, &e.Published, &e.ChannelID, &e.IsViewed, &e.IsDeleted); err != nil {
			return nil, &StorageError{Op: "scan entry", Err: err}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "select entries", Err: err}
	}
	return entries, nil
}

// SelectEntriesCount counts entries matching the filter.
func (s *Store) SelectEntriesCount(ctx context.Context, f EntryFilter) (int, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("COUNT(*)").From("tb_entries")
	f.apply(sb)

	query, args := sb.Build()
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, &StorageError{Op: "count entries", Err: err}
	}
	return count, nil
}

// SelectStats returns per-channel (total, unwatched, deleted) counts in one
// pass. Tombstoned rows are excluded from total and unwatched.
func (s *Store) SelectStats(ctx context.Context) (map[string]models.Stats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT channel_id,
		       SUM(is_deleted = 0),
		       SUM(is_viewed = 0 AND is_deleted = 0),
		       SUM(is_deleted = 1)
		FROM tb_entries GROUP BY channel_id`)
	if err != nil {
		return nil, &StorageError{Op: "select stats", Err: err}
	}
	defer rows.Close()

	stats := make(map[string]models.Stats)
	for rows.Next() {
		var channelID string
		var st models.Stats
		if err := rows.Scan(&channelID, &st.Total, &st.Unwatched, &st.Deleted); err != nil {
			return nil, &StorageError{Op: "scan stats", Err: err}
		}
		stats[channelID] = st
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "select stats", Err: err}
	}
	return stats, nil
}

// MarkEntryAsWatched flips is_viewed for one entry; unwatched true inverts
// the operation. Idempotent, absent ids affect zero rows.
func (s *Store) MarkEntryAsWatched(ctx context.Context, id string, unwatched bool) (int64, error) {
	return s.markWatched(ctx, "id", id, unwatched)
}

// MarkChannelEntriesAsWatched flips is_viewed for every entry of a channel.
func (s *Store) MarkChannelEntriesAsWatched(ctx context.Context, channelID string, unwatched bool) (int64, error) {
	return s.markWatched(ctx, "channel_id", channelID, unwatched)
}

// MarkAllEntriesAsWatched flips is_viewed for every entry in the store.
func (s *Store) MarkAllEntriesAsWatched(ctx context.Context, unwatched bool) (int64, error) {
	return s.markWatched(ctx, "", "", unwatched)
}

func (s *Store) markWatched(ctx context.Context, column, value string, unwatched bool) (int64, error) {
	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update("tb_entries").Set(ub.Assign("is_viewed", !unwatched))
	if column != "" {
		ub.Where(ub.Equal(column, value))
	}

	query, args := ub.Build()
	var affected int64
	err := s.withTx(ctx, "mark watched", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

// MarkEntryAsDeleted tombstones one entry.
func (s *Store) MarkEntryAsDeleted(ctx context.Context, id string) (int64, error) {
	return s.exec(ctx, "mark entry deleted",
		"UPDATE tb_entries SET is_deleted = 1 WHERE id = ?", id)
}

// MarkChannelEntriesAsDeleted tombstones every entry of a channel.
func (s *Store) MarkChannelEntriesAsDeleted(ctx context.Context, channelID string) (int64, error) {
	return s.exec(ctx, "mark channel deleted",
		"UPDATE tb_entries SET is_deleted = 1 WHERE channel_id = ?", channelID)
}

// RestoreChannel clears the tombstone flag for every entry of a channel.
// is_viewed is left untouched.
func (s *Store) RestoreChannel(ctx context.Context, channelID string) (int64, error) {
	return s.exec(ctx, "restore channel",
		"UPDATE tb_entries SET is_deleted = 0 WHERE channel_id = ?", channelID)
}

// DeleteOldEntries hard-deletes watched, non-tombstoned rows. With force it
// also reclaims tombstoned rows. Returns the number removed.
func (s *Store) DeleteOldEntries(ctx context.Context, force bool) (int64, error) {
	predicate := "is_viewed = 1 AND is_deleted = 0"
	if force {
		predicate = "is_viewed = 1 OR is_deleted = 1"
	}
	return s.exec(ctx, "delete old entries", "DELETE FROM tb_entries WHERE "+predicate)
}

// DeleteInactiveChannels deactivates feeds rows absent from active and
// removes them; the FK cascade removes their entries. Returns the number of
// entries removed.
func (s *Store) DeleteInactiveChannels(ctx context.Context, active []string) (int64, error) {
	var removed int64
	err := s.withTx(ctx, "delete inactive channels", func(tx *sql.Tx) error {
		ub := sqlbuilder.SQLite.NewUpdateBuilder()
		ub.Update("tb_feeds").Set(ub.Assign("is_active", 0))
		if len(active) > 0 {
			ids := make([]any, len(active))
			for i, id := range active {
				ids[i] = id
			}
			ub.Where(ub.NotIn("channel_id", ids...))
		}
		query, args := ub.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}

		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM tb_entries
			WHERE channel_id IN (SELECT channel_id FROM tb_feeds WHERE is_active = 0)`,
		).Scan(&removed); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, "DELETE FROM tb_feeds WHERE is_active = 0")
		return err
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *Store) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	var affected int64
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	s.log.WithField("rows", affected).Debugf("%s", op)
	return affected, nil
}
