package docsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"device-research/internal/common/logger"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var (
	ErrDocumentSearchFailed  = errors.New("DOCUMENT_SEARCH_FAILED")
	ErrDocumentSearchTimeout = errors.New("DOCUMENT_SEARCH_TIMEOUT")
)

const (
	NoDocumentsFound = "No relevant documents found."

	passageLimit = 600
)

type Config struct {
	Index      string
	MaxResults int
	Timeout    time.Duration
}

// Searcher answers free-text questions from device documents indexed in
// Elasticsearch.
type Searcher struct {
	config   *Config
	esClient *elasticsearch.Client
	logger   logger.Logger
}

func NewSearcher(config *Config, esClient *elasticsearch.Client, log logger.Logger) *Searcher {
	cfg := *config
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	return &Searcher{
		config:   &cfg,
		esClient: esClient,
		logger:   log.With(map[string]interface{}{"component": "document-search", "index": cfg.Index}),
	}
}

type passage struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Source  string `json:"source"`
	Page    int    `json:"page"`
}

// Run returns the best matching passages as text.
func (s *Searcher) Run(ctx context.Context, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	passages, err := s.search(ctx, query)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", ErrDocumentSearchTimeout
		}
		return "", fmt.Errorf("%w: %v", ErrDocumentSearchFailed, err)
	}

	s.logger.Info("document search completed", map[string]interface{}{
		"resultCount": len(passages),
	})

	if len(passages) == 0 {
		return NoDocumentsFound, nil
	}
	return formatPassages(passages), nil
}

func (s *Searcher) search(ctx context.Context, query string) ([]passage, error) {
	body, err := json.Marshal(map[string]interface{}{
		"size": s.config.MaxResults,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"title^2", "content"},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	req := esapi.SearchRequest{
		Index: []string{s.config.Index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.esClient)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search failed: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Source passage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, err
	}

	out := make([]passage, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		if strings.TrimSpace(hit.Source.Content) == "" {
			continue
		}
		out = append(out, hit.Source)
	}
	return out, nil
}

func formatPassages(passages []passage) string {
	parts := make([]string, 0, len(passages))
	for _, p := range passages {
		header := p.Title
		if header == "" {
			header = "Untitled document"
		}
		if p.Source != "" {
			header = fmt.Sprintf("%s (%s", header, p.Source)
			if p.Page > 0 {
				header += fmt.Sprintf(", p. %d", p.Page)
			}
			header += ")"
		}

		content := strings.TrimSpace(p.Content)
		if r := []rune(content); len(r) > passageLimit {
			content = string(r[:passageLimit]) + "..."
		}
		parts = append(parts, fmt.Sprintf("**%s**\n%s", header, content))
	}
	return strings.Join(parts, "\n\n")
}
