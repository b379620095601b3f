// Package parser decodes a YouTube Atom feed payload into entries.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"

	"tubefeed/internal/models"
)

var (
	rxVideoID   = regexp.MustCompile(`^[A-Za-z0-9\-_]{11}$`)
	rxChannelID = regexp.MustCompile(`^[A-Za-z0-9\-_]{24}$`)
)

// ParseError reports a payload whose root element cannot be read as XML.
// Individual bad entries never produce it; they are skipped with a warning.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse feed: %v", e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// Parser turns raw Atom payloads into validated entries. The yt: namespace
// elements (videoId, channelId) arrive through gofeed's extension map.
type Parser struct {
	fp         *gofeed.Parser
	policy     *bluemonday.Policy
	skipShorts bool
	log        *logrus.Logger
}

// New creates a Parser. With skipShorts set, entries whose link path marks
// them as short-form are dropped.
func New(skipShorts bool, log *logrus.Logger) *Parser {
	return &Parser{
		fp:         gofeed.NewParser(),
		policy:     bluemonday.StrictPolicy(),
		skipShorts: skipShorts,
		log:        log,
	}
}

// Parse decodes one feed payload. Entries missing a valid yt:videoId or
// yt:channelId are skipped and logged; the returned slice preserves document
// order. Only an unreadable root element yields a *ParseError.
func (p *Parser) Parse(data []byte) ([]models.Entry, error) {
	feed, err := p.fp.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	now := time.Now().UTC()
	entries := make([]models.Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		id := ytExtension(item, "videoId")
		if !rxVideoID.MatchString(id) {
			p.log.WithField("id", id).Warn("skipping entry with invalid video id")
			continue
		}
		channelID := ytExtension(item, "channelId")
		if !rxChannelID.MatchString(channelID) {
			p.log.WithFields(logrus.Fields{"id": id, "channel_id": channelID}).
				Warn("skipping entry with invalid channel id")
			continue
		}
		if p.skipShorts && isShort(item.Link) {
			p.log.WithField("id", id).Debug("skipping short")
			continue
		}

		title := strings.TrimSpace(p.policy.Sanitize(item.Title))
		if title == "" {
			title = "-"
		}

		published := now
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			published = item.UpdatedParsed.UTC()
		}

		entries = append(entries, models.Entry{
			ID:        id,
			Title:     title,
			Published: published,
			ChannelID: channelID,
		})
	}
	return entries, nil
}

// ytExtension reads a yt:-namespaced child element value from an item.
func ytExtension(item *gofeed.Item, name string) string {
	ns, ok := item.Extensions["yt"]
	if !ok {
		return ""
	}
	values, ok := ns[name]
	if !ok || len(values) == 0 {
		return ""
	}
	return values[0].Value
}

func isShort(link string) bool {
	return strings.Contains(link, "/shorts/")
}
