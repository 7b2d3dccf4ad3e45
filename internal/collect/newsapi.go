package collect

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const newsAPIBaseURL = "https://newsapi.org/v2/everything"

// newsAPIResponse mirrors the subset of the /v2/everything response we use.
type newsAPIResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		URL         string `json:"url"`
		Title       string `json:"title"`
		PublishedAt string `json:"publishedAt"`
		Content     string `json:"content"`
		Description string `json:"description"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// NewsAPIClient searches NewsAPI for units matching a configured query.
type NewsAPIClient struct {
	apiKey string
	client *http.Client
}

// NewNewsAPIClient creates a client reading its key from the named
// environment variable.
func NewNewsAPIClient(apiKeyEnv string) *NewsAPIClient {
	return &NewsAPIClient{
		apiKey: os.Getenv(apiKeyEnv),
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// IsConfigured reports whether an API key is available.
func (c *NewsAPIClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Search returns entries matching query from the last daysBack days. All
// failures are logged and yield an empty result; a broken search API must
// not sink a collection run.
func (c *NewsAPIClient) Search(query string, daysBack, pageSize int) []FeedEntry {
	if c.apiKey == "" {
		log.Println("NewsAPI not configured, skipping search")
		return nil
	}
	if pageSize > 100 {
		pageSize = 100
	}

	now := time.Now()
	params := url.Values{
		"q":        {query},
		"from":     {now.AddDate(0, 0, -daysBack).Format("2006-01-02")},
		"to":       {now.Format("2006-01-02")},
		"language": {"en"},
		"pageSize": {strconv.Itoa(pageSize)},
		"sortBy":   {"relevancy"},
	}

	req, err := http.NewRequest("GET", newsAPIBaseURL+"?"+params.Encode(), nil)
	if err != nil {
		log.Printf("NewsAPI request error: %v", err)
		return nil
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Printf("NewsAPI error: %v", err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Printf("NewsAPI HTTP error: %d", resp.StatusCode)
		return nil
	}

	var result newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Printf("NewsAPI decode error: %v", err)
		return nil
	}
	if result.Status != "ok" {
		log.Printf("NewsAPI status: %s", result.Status)
		return nil
	}

	var entries []FeedEntry
	for _, a := range result.Articles {
		// NewsAPI tombstones withdrawn articles instead of omitting them.
		if a.URL == "" || a.Title == "" || a.Title == "[Removed]" || a.URL == "https://removed.com" {
			continue
		}

		entry := FeedEntry{
			URL:     a.URL,
			Title:   strings.TrimSpace(a.Title),
			Source:  "NewsAPI",
			Content: strings.TrimSpace(a.Content),
		}
		if entry.Content == "" {
			entry.Content = strings.TrimSpace(a.Description)
		}
		if a.Source.Name != "" {
			entry.Source = a.Source.Name
		}
		if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			entry.PublishedDate = t.Format("2006-01-02")
		}
		entries = append(entries, entry)
	}

	log.Printf("Fetched %d entries from NewsAPI for query: %s", len(entries), query)
	return entries
}
