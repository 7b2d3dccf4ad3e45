// Package fetch fills unit bodies with readable article text extracted
// from their source URLs.
package fetch

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"unitcoder/internal/database"
	"unitcoder/internal/token"
)

// Result holds the results of a body fetch run.
type Result struct {
	Fetched int
	Failed  int
}

// BodyFetcher fetches full unit text via HTTP + readability extraction.
type BodyFetcher struct {
	db     *database.DB
	client *http.Client
}

// NewBodyFetcher creates a new body fetcher.
func NewBodyFetcher(db *database.DB, timeout time.Duration) *BodyFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &BodyFetcher{
		db: db,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// FetchMissingBodies fetches body text for a job's units that only carry
// feed metadata so far. A failing domain is skipped for the rest of the run.
func (f *BodyFetcher) FetchMissingBodies(jobID int64) *Result {
	units, err := f.db.GetUnitsNeedingFetch(jobID)
	if err != nil {
		log.Printf("Error getting units needing fetch: %v", err)
		return &Result{}
	}

	if len(units) == 0 {
		log.Println("No units need body fetching")
		return &Result{}
	}

	result := &Result{}
	failedDomains := make(map[string]struct{})

	for _, unit := range units {
		u, _ := url.Parse(*unit.URL)
		domain := ""
		if u != nil {
			domain = strings.ToLower(u.Host)
		}

		if _, failed := failedDomains[domain]; failed {
			f.db.MarkUnitFetchAttempted(unit.ID)
			result.Failed++
			continue
		}

		body, httpErr := f.fetchBody(*unit.URL)
		if httpErr != nil {
			f.db.MarkUnitFetchAttempted(unit.ID)
			result.Failed++
			if domain != "" {
				failedDomains[domain] = struct{}{}
			}
			log.Printf("HTTP error for %s - skipping remaining from %s", *unit.URL, domain)
			continue
		}

		if body != "" {
			if err := f.storeBody(unit, body); err != nil {
				log.Printf("Error storing body for %s: %v", unit.ExternalID, err)
				result.Failed++
				continue
			}
			result.Fetched++
			log.Printf("Fetched body for: %s", unit.ExternalID)
		} else {
			f.db.MarkUnitFetchAttempted(unit.ID)
			result.Failed++
			log.Printf("No extractable content from: %s", *unit.URL)
		}
	}

	log.Printf("Body fetch complete: %d fetched, %d failed", result.Fetched, result.Failed)
	return result
}

// storeBody writes the extracted text into the unit's body field, keeping
// the other fields untouched.
func (f *BodyFetcher) storeBody(unit database.Unit, body string) error {
	var fields []token.Field
	if err := json.Unmarshal([]byte(unit.FieldsJSON), &fields); err != nil {
		return err
	}

	replaced := false
	for i := range fields {
		if fields[i].Name == "body" {
			fields[i].Value = body
			replaced = true
			break
		}
	}
	if !replaced {
		fields = append(fields, token.Field{Name: "body", Value: body})
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return f.db.UpdateUnitFields(unit.ID, string(data))
}

func (f *BodyFetcher) fetchBody(unitURL string) (string, error) {
	req, err := http.NewRequest("GET", unitURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "unitcoder/1.0 (annotation tool)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil // connection error, not HTTP error
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil
	}

	parsedURL, _ := url.Parse(unitURL)
	article, err := readability.FromReader(strings.NewReader(string(bodyBytes)), parsedURL)
	if err != nil {
		return "", nil
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) > 100 {
		return text, nil
	}
	return "", nil
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
