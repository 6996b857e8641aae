package agent

import (
	stderrors "errors"
	"fmt"
	"testing"

	"device-research/internal/common/errors"
	"device-research/internal/docsearch"
	"device-research/internal/fda"
	"device-research/internal/llm"
	"device-research/internal/websearch"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errors.ErrorCode
	}{
		{"fda upstream", &fda.UpstreamError{SubResource: fda.Recall, StatusCode: 503}, errors.ErrCodeFDAUpstream},
		{"fda transport", fmt.Errorf("%w: dial tcp", fda.ErrTransport), errors.ErrCodeFDATransport},
		{"document timeout", fmt.Errorf("%w: after 45s", docsearch.ErrDocumentSearchTimeout), errors.ErrCodeDocumentSearchTimeout},
		{"document failure", fmt.Errorf("%w: index missing", docsearch.ErrDocumentSearchFailed), errors.ErrCodeDocumentSearchFailed},
		{"web timeout", websearch.ErrWebSearchTimeout, errors.ErrCodeWebSearchTimeout},
		{"web failure", fmt.Errorf("%w: 403", websearch.ErrWebSearchFailed), errors.ErrCodeWebSearchFailed},
		{"completion timeout", llm.ErrLLMTimeout, errors.ErrCodeLLMTimeout},
		{"completion failure", fmt.Errorf("%w: 400", llm.ErrLLMSynthesisFailed), errors.ErrCodeLLMSynthesisFailed},
		{"completion not configured", llm.ErrNotConfigured, errors.ErrCodeLLMSynthesisFailed},
		{"anything else", stderrors.New("boom"), errors.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err).Code)
		})
	}
}
