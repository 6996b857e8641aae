package fda

import (
	"context"
	"fmt"
	"sync"

	"device-research/internal/common/logger"
)

const DefaultLimit = 5

// Querier is the single sub-resource backend the Tool aggregates over.
type Querier interface {
	Query(ctx context.Context, query string, sr SubResource, limit int) (*Response, error)
}

// Tool answers a device query against one sub-resource or, for All, the
// recall, adverse-event, clearance and approval sub-resources merged.
type Tool struct {
	querier Querier
	logger  logger.Logger
}

func NewTool(q Querier, log logger.Logger) *Tool {
	return &Tool{
		querier: q,
		logger:  log.With(map[string]interface{}{"component": "fda-tool"}),
	}
}

// Run never fails: single sub-resource errors are rendered into the text.
func (t *Tool) Run(ctx context.Context, query string, sr SubResource, limit int) string {
	report, err := t.Search(ctx, query, sr, limit)
	if err != nil {
		return fmt.Sprintf("Error searching FDA database: %v", err)
	}
	return report
}

// Search is Run with single sub-resource failures returned as errors.
// Failures inside All are logged and the sub-resource is left out.
func (t *Tool) Search(ctx context.Context, query string, sr SubResource, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if sr == "" {
		sr = All
	}

	if sr == All {
		return t.searchAll(ctx, query, limit), nil
	}

	resp, err := t.querier.Query(ctx, query, sr, limit)
	if err != nil {
		t.logger.Warn("FDA query failed", map[string]interface{}{
			"subResource": string(sr),
			"error":       err.Error(),
		})
		return "", err
	}
	if len(resp.Results) == 0 {
		return fmt.Sprintf("No results found in the FDA %s database for the query: '%s'. Please try a different search term.", sr, query), nil
	}

	t.logger.Info("FDA query completed", map[string]interface{}{
		"subResource": string(sr),
		"resultCount": len(resp.Results),
	})
	return Format(sr, resp.Results), nil
}

func (t *Tool) searchAll(ctx context.Context, query string, limit int) string {
	perResource := limit / 2
	if perResource < 2 {
		perResource = 2
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	responses := make(map[SubResource]*Response, len(allOrder))

	for _, sr := range allOrder {
		wg.Add(1)
		go func(sr SubResource) {
			defer wg.Done()
			resp, err := t.querier.Query(ctx, query, sr, perResource)
			if err != nil {
				t.logger.Warn("FDA sub-resource skipped", map[string]interface{}{
					"subResource": string(sr),
					"error":       err.Error(),
				})
				return
			}
			if len(resp.Results) == 0 {
				return
			}
			mu.Lock()
			responses[sr] = resp
			mu.Unlock()
		}(sr)
	}
	wg.Wait()

	if len(responses) == 0 {
		return fmt.Sprintf("No results found in any FDA database for the query: '%s'. Please try a different search term or check the FDA website directly at https://www.fda.gov/medical-devices", query)
	}

	t.logger.Info("FDA combined search completed", map[string]interface{}{
		"subResources": len(responses),
	})
	return FormatAll(responses)
}
