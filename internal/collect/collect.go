// Package collect turns feed entries and news search results into units of
// an annotation job.
package collect

import (
	"encoding/json"
	"fmt"
	"log"

	"unitcoder/internal/config"
	"unitcoder/internal/database"
	"unitcoder/internal/token"
)

// Result holds the results of a collection run.
type Result struct {
	TotalFound int
	NewUnits   int
	Duplicates int
	Sources    map[string]int
}

// Collector gathers documents from RSS feeds and NewsAPI and stores them as
// units, deduplicated by URL.
type Collector struct {
	db         *database.DB
	feedParser *FeedParser
	newsClient *NewsAPIClient
	newsQuery  string
	daysBack   int
}

// NewCollector creates a collector from the configured sources.
func NewCollector(cfg *config.Config, db *database.DB) *Collector {
	c := &Collector{
		db:       db,
		daysBack: cfg.Collect.DaysBack,
	}

	if len(cfg.Sources.Feeds) > 0 {
		feeds := make([]FeedConfig, len(cfg.Sources.Feeds))
		for i, f := range cfg.Sources.Feeds {
			feeds[i] = FeedConfig{URL: f.URL, Name: f.Name}
		}
		c.feedParser = NewFeedParser(feeds, cfg.Collect.MaxPerFeed)
	}

	apiCfg := cfg.Sources.APIs.NewsAPI
	if apiCfg.Enabled {
		c.newsClient = NewNewsAPIClient(apiCfg.APIKeyEnv)
		c.newsQuery = apiCfg.Query
	}

	return c
}

// Collect gathers entries from all configured sources and appends them to
// the job as units.
func (c *Collector) Collect(jobID int64) (*Result, error) {
	r := &Result{Sources: make(map[string]int)}

	if c.feedParser != nil {
		log.Println("Collecting from RSS feeds...")
		entries := c.feedParser.ParseAll(c.daysBack)
		r.TotalFound += len(entries)
		for _, entry := range entries {
			if err := c.insertUnit(jobID, entry, r); err != nil {
				return nil, err
			}
		}
	}

	if c.newsClient != nil && c.newsClient.IsConfigured() {
		log.Println("Collecting from NewsAPI...")
		entries := c.newsClient.Search(c.newsQuery, c.daysBack, 100)
		r.TotalFound += len(entries)
		for _, entry := range entries {
			if err := c.insertUnit(jobID, entry, r); err != nil {
				return nil, err
			}
		}
	}

	log.Printf("Collection complete: %d found, %d new, %d duplicates", r.TotalFound, r.NewUnits, r.Duplicates)
	return r, nil
}

// insertUnit stores one entry as a unit. The entry URL doubles as the
// unit's external id; the unique constraint absorbs duplicates.
func (c *Collector) insertUnit(jobID int64, entry FeedEntry, r *Result) error {
	fields := UnitFields(entry)
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encoding fields for %s: %w", entry.URL, err)
	}

	url := entry.URL
	id, err := c.db.InsertUnit(jobID, entry.URL, &url, string(data))
	if err != nil {
		return fmt.Errorf("storing unit %s: %w", entry.URL, err)
	}
	if id > 0 {
		r.NewUnits++
		r.Sources[entry.Source]++
	} else {
		r.Duplicates++
	}
	return nil
}

// UnitFields maps a feed entry to annotatable unit fields. The body may be
// empty; the fetch step fills it in later from the URL.
func UnitFields(entry FeedEntry) []token.Field {
	fields := []token.Field{
		{Name: "title", Value: entry.Title},
	}
	if entry.Source != "" || entry.PublishedDate != "" {
		meta := entry.Source
		if entry.PublishedDate != "" {
			if meta != "" {
				meta += ", "
			}
			meta += entry.PublishedDate
		}
		fields = append(fields, token.Field{Name: "meta", Value: meta})
	}
	fields = append(fields, token.Field{Name: "body", Value: entry.Content})
	return fields
}
