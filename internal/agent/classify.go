package agent

import (
	stderrors "errors"

	"device-research/internal/common/errors"
	"device-research/internal/docsearch"
	"device-research/internal/fda"
	"device-research/internal/llm"
	"device-research/internal/websearch"
)

// classify maps a collaborator failure onto the shared error catalogue so
// source failures are logged with the same codes the workers report.
func classify(err error) *errors.StandardError {
	var upstream *fda.UpstreamError
	switch {
	case stderrors.As(err, &upstream):
		return errors.NewFDAUpstreamError(upstream.StatusCode, err)
	case stderrors.Is(err, fda.ErrTransport):
		return errors.NewFDATransportError(err)
	case stderrors.Is(err, docsearch.ErrDocumentSearchTimeout):
		return errors.NewDocumentSearchTimeoutError()
	case stderrors.Is(err, docsearch.ErrDocumentSearchFailed):
		return errors.NewDocumentSearchFailedError(err)
	case stderrors.Is(err, websearch.ErrWebSearchTimeout):
		return errors.NewWebSearchTimeoutError()
	case stderrors.Is(err, websearch.ErrWebSearchFailed):
		return errors.NewWebSearchFailedError(err)
	case stderrors.Is(err, llm.ErrLLMTimeout):
		return errors.NewLLMTimeoutError()
	case stderrors.Is(err, llm.ErrLLMSynthesisFailed), stderrors.Is(err, llm.ErrNotConfigured):
		return errors.NewLLMSynthesisFailedError(err)
	default:
		return errors.NewInternalError(err)
	}
}
