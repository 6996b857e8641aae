package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"device-research/internal/common/logger"
	"device-research/internal/llm"
)

var (
	ErrWebSearchTimeout = errors.New("WEB_SEARCH_TIMEOUT")
	ErrWebSearchFailed  = errors.New("WEB_SEARCH_FAILED")
)

const (
	NoWebResults = "No current web results found."

	topResults = 3

	summaryInstruction  = "Summarize these current web search results clearly and concisely. Highlight the most important and recent information."
	fallbackInstruction = "Provide information based on your knowledge. Be clear that this is from your training data and may not reflect the most recent developments."
)

type Config struct {
	SearchAPIBaseURL string
	SearchAPIKey     string
	SearchEngineID   string
	Timeout          time.Duration
	MaxResults       int

	Summary  llm.CallSettings
	Fallback llm.CallSettings
}

type Result struct {
	URL     string
	Title   string
	Snippet string
}

// Searcher queries a custom-search style JSON API and condenses the top
// results with the completion service when one is available.
type Searcher struct {
	config    *Config
	client    *http.Client
	completer llm.Completer
	logger    logger.Logger
	now       func() time.Time
}

// NewSearcher accepts a nil completer; results are then returned unsummarised
// and search failures are not backed by a knowledge answer.
func NewSearcher(config *Config, completer llm.Completer, log logger.Logger) *Searcher {
	cfg := *config
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	return &Searcher{
		config:    &cfg,
		client:    &http.Client{Timeout: cfg.Timeout},
		completer: completer,
		logger:    log.With(map[string]interface{}{"component": "web-search"}),
		now:       time.Now,
	}
}

func (s *Searcher) Run(ctx context.Context, query string) (string, error) {
	results, err := s.search(ctx, query)
	if err != nil {
		s.logger.Warn("web search failed, falling back to model knowledge", map[string]interface{}{
			"error": err.Error(),
		})
		answer, fbErr := s.fallback(ctx, query)
		if fbErr != nil {
			return "", err
		}
		return answer, nil
	}

	if len(results) == 0 {
		return NoWebResults, nil
	}
	if len(results) > topResults {
		results = results[:topResults]
	}

	web := formatResults(results)
	if s.completer == nil {
		return "**Current Web Results:**\n" + web, nil
	}

	summary, err := s.completer.Complete(ctx, llm.Request{
		CallSite: "web_summary",
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: summaryInstruction},
			{Role: llm.RoleUser, Content: fmt.Sprintf("Query: %s\n\nCurrent Web Results:\n%s", query, web)},
		},
		Settings: s.config.Summary,
	})
	if err != nil {
		s.logger.Warn("web result summary failed", map[string]interface{}{"error": err.Error()})
		return "**Current Web Results:**\n" + web, nil
	}

	return fmt.Sprintf("**Current Web Search Results (%s):**\n%s\n\n---\n**Sources:**\n%s",
		s.now().Format("January 2006"), summary, web), nil
}

func (s *Searcher) search(ctx context.Context, query string) ([]Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.buildSearchURL(query), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebSearchFailed, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded ||
			strings.Contains(err.Error(), "Client.Timeout") ||
			strings.Contains(err.Error(), "deadline") {
			return nil, ErrWebSearchTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrWebSearchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: search API returned %d", ErrWebSearchFailed, resp.StatusCode)
	}

	var apiResponse struct {
		Items []struct {
			Link    string `json:"link"`
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebSearchFailed, err)
	}

	seen := make(map[string]bool)
	var results []Result
	for _, item := range apiResponse.Items {
		if item.Link != "" && seen[item.Link] {
			continue
		}
		seen[item.Link] = true
		results = append(results, Result{URL: item.Link, Title: item.Title, Snippet: item.Snippet})
	}

	s.logger.Info("web search completed", map[string]interface{}{
		"resultCount": len(results),
	})
	return results, nil
}

func (s *Searcher) buildSearchURL(query string) string {
	params := url.Values{}
	params.Add("key", s.config.SearchAPIKey)
	params.Add("cx", s.config.SearchEngineID)
	params.Add("q", query)
	params.Add("num", strconv.Itoa(s.config.MaxResults))
	return s.config.SearchAPIBaseURL + "?" + params.Encode()
}

func (s *Searcher) fallback(ctx context.Context, query string) (string, error) {
	if s.completer == nil {
		return "", llm.ErrNotConfigured
	}
	answer, err := s.completer.Complete(ctx, llm.Request{
		CallSite: "web_fallback",
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: fallbackInstruction},
			{Role: llm.RoleUser, Content: "Provide information about: " + query},
		},
		Settings: s.config.Fallback,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("**Knowledge Base Response:**\n%s\n\n*Note: Web search temporarily unavailable. This information is based on training data.*", answer), nil
}

func formatResults(results []Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		title := r.Title
		if title == "" {
			title = "No title"
		}
		snippet := r.Snippet
		if snippet == "" {
			snippet = "No description"
		}
		parts = append(parts, fmt.Sprintf("**%s**\n%s\n*Source: %s*", title, snippet, r.URL))
	}
	return strings.Join(parts, "\n\n")
}
