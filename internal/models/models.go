// Package models holds the value types shared between the store, the sync
// pipeline and the Feeder facade.
package models

import "time"

// Entry is a single video item within a channel. Identity is the 11-char
// video id; the store deduplicates on it alone.
type Entry struct {
	ID        string
	Title     string
	Published time.Time
	ChannelID string
	IsViewed  bool
	IsDeleted bool
}

// Channel is one feed source from the channels file. The trailing fields are
// derived at query time and never written back to disk; Extra keeps unknown
// YAML keys intact across a re-dump.
type Channel struct {
	ID     string         `yaml:"channel_id"`
	Title  string         `yaml:"title"`
	Tags   []string       `yaml:"tags,omitempty"`
	Hidden bool           `yaml:"hidden,omitempty"`
	Extra  map[string]any `yaml:",inline"`

	Entries     int  `yaml:"-"`
	Unwatched   int  `yaml:"-"`
	HaveUpdates bool `yaml:"-"`
}

// Stats is a per-channel aggregate row from the store.
type Stats struct {
	Total     int
	Unwatched int
	Deleted   int
}

// Tag is a user-supplied grouping label rolled up across channels.
type Tag struct {
	Title       string
	Channels    []Channel
	Entries     int
	Unwatched   int
	HaveUpdates bool
}
