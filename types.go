package tubefeed

import "tubefeed/internal/models"

// Aliases so front-ends only import the root package.
type (
	// Channel is one configured feed source with derived stats.
	Channel = models.Channel
	// Entry is one video item.
	Entry = models.Entry
	// Tag is a user-supplied grouping label rolled up across channels.
	Tag = models.Tag
	// Stats is a per-channel aggregate.
	Stats = models.Stats
)

// UnknownTitle is returned for channels no longer present in config.
const UnknownTitle = "Unknown"

// SortMode orders the in-memory channel list. Sorting never mutates the
// channels file.
type SortMode int

const (
	SortConfigOrder SortMode = iota
	SortAlphabetic
	SortUnwatchedFirst
)
