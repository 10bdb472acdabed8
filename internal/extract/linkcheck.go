package extract

import (
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/pagegrab/pagegrab/internal/logger"
)

// LinkCheckResult records one validated link.
type LinkCheckResult struct {
	URL    string `json:"url"`
	Status int    `json:"status,omitempty"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// LinkCheckConfig tunes link validation.
type LinkCheckConfig struct {
	// Limit bounds how many links are checked; 0 checks all.
	Limit     int
	Timeout   time.Duration
	UserAgent string
}

// CheckLinks fetches each extracted link once and records whether it
// resolves. Checks run sequentially with a fresh collector, the same way the
// rest of a run is sequential; dead or unreachable links are a result, not
// an error.
func CheckLinks(urls []string, cfg LinkCheckConfig) []LinkCheckResult {
	if cfg.Limit > 0 && len(urls) > cfg.Limit {
		urls = urls[:cfg.Limit]
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	results := make([]LinkCheckResult, 0, len(urls))

	for _, target := range urls {
		result := LinkCheckResult{URL: target}

		c := colly.NewCollector(colly.UserAgent(cfg.UserAgent))
		c.SetRequestTimeout(cfg.Timeout)

		c.OnResponse(func(r *colly.Response) {
			result.Status = r.StatusCode
			result.OK = r.StatusCode >= 200 && r.StatusCode < 400
		})
		c.OnError(func(r *colly.Response, err error) {
			if r != nil {
				result.Status = r.StatusCode
			}
			result.Error = err.Error()
		})

		if err := c.Visit(target); err != nil && result.Error == "" {
			result.Error = err.Error()
		}
		c.Wait()

		results = append(results, result)
	}

	ok := 0
	for _, r := range results {
		if r.OK {
			ok++
		}
	}
	logger.Info("link check complete", "checked", len(results), "ok", ok)

	return results
}
