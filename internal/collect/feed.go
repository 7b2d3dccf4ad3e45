package collect

import (
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const defaultMaxPerFeed = 20

// FeedEntry is one feed item normalized into unit-source form.
type FeedEntry struct {
	URL           string
	Title         string
	PublishedDate string // YYYY-MM-DD or empty
	Content       string
	Source        string
}

// FeedConfig is a single configured RSS/Atom source.
type FeedConfig struct {
	URL  string
	Name string
}

// FeedParser pulls entries from configured RSS/Atom feeds.
type FeedParser struct {
	feeds      []FeedConfig
	maxPerFeed int
	parser     *gofeed.Parser
}

// NewFeedParser creates a FeedParser. maxPerFeed <= 0 uses the default cap.
func NewFeedParser(feeds []FeedConfig, maxPerFeed int) *FeedParser {
	if maxPerFeed <= 0 {
		maxPerFeed = defaultMaxPerFeed
	}
	return &FeedParser{
		feeds:      feeds,
		maxPerFeed: maxPerFeed,
		parser:     gofeed.NewParser(),
	}
}

// ParseAll fetches every configured feed and returns the entries published
// within the last daysBack days. Feeds that fail to parse are logged and
// skipped; one broken source must not sink a collection run.
func (fp *FeedParser) ParseAll(daysBack int) []FeedEntry {
	cutoff := time.Now().AddDate(0, 0, -daysBack)

	var all []FeedEntry
	for _, fc := range fp.feeds {
		name := fc.Name
		if name == "" {
			name = extractSourceName(fc.URL)
		}

		entries, err := fp.parseFeed(fc.URL, name, cutoff)
		if err != nil {
			log.Printf("Failed to parse feed %s: %v", fc.URL, err)
			continue
		}
		all = append(all, entries...)
		log.Printf("Parsed %d entries from %s (within %d days)", len(entries), name, daysBack)
	}
	return all
}

func (fp *FeedParser) parseFeed(feedURL, sourceName string, cutoff time.Time) ([]FeedEntry, error) {
	feed, err := fp.parser.ParseURL(feedURL)
	if err != nil {
		return nil, err
	}

	var entries []FeedEntry
	for _, item := range feed.Items {
		if len(entries) >= fp.maxPerFeed {
			break
		}
		entry, ok := entryFromItem(item, sourceName)
		if ok && isWithinWindow(entry.PublishedDate, cutoff) {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// entryFromItem normalizes a feed item. Items without a resolvable URL or a
// title cannot become units and are dropped.
func entryFromItem(item *gofeed.Item, source string) (FeedEntry, bool) {
	itemURL := item.Link
	if itemURL == "" {
		itemURL = item.GUID
	}
	title := strings.TrimSpace(item.Title)
	if itemURL == "" || title == "" {
		return FeedEntry{}, false
	}

	entry := FeedEntry{URL: itemURL, Title: title, Source: source}

	switch {
	case item.PublishedParsed != nil:
		entry.PublishedDate = item.PublishedParsed.Format("2006-01-02")
	case item.UpdatedParsed != nil:
		entry.PublishedDate = item.UpdatedParsed.Format("2006-01-02")
	}

	if item.Content != "" {
		entry.Content = stripHTML(item.Content)
	} else if item.Description != "" {
		entry.Content = stripHTML(item.Description)
	}
	return entry, true
}

// isWithinWindow accepts entries with unparseable or missing dates; dropping
// them would silently lose sources that never set a publish date.
func isWithinWindow(publishedDate string, cutoff time.Time) bool {
	if publishedDate == "" {
		return true
	}
	pub, err := time.Parse("2006-01-02", publishedDate)
	if err != nil {
		return true
	}
	return !pub.Before(cutoff)
}

var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
)

// stripHTML removes tags, decodes the common entities, and collapses
// whitespace. Feed summaries only need to be readable text; full-page
// extraction is the fetch package's job.
func stripHTML(text string) string {
	var b strings.Builder
	inTag := false
	for _, r := range text {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(entityReplacer.Replace(b.String())), " ")
}

// extractSourceName derives a display name from a feed URL's host, e.g.
// "https://feeds.bbci.co.uk/..." -> "Co". Two-level TLDs are not special
// cased; explicit feed names in the config override this.
func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())
	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	name := host
	if parts := strings.Split(host, "."); len(parts) >= 2 {
		name = parts[len(parts)-2]
	}
	if name == "" {
		return feedURL
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
