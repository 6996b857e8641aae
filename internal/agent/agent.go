package agent

import (
	"context"
	"fmt"
	"strings"

	"device-research/internal/common/errors"
	"device-research/internal/common/logger"
	"device-research/internal/common/metrics"
	"device-research/internal/docsearch"
	"device-research/internal/fda"
	"device-research/internal/llm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// minDocumentChars is the amount of non-whitespace output a document search
// must return before it counts as evidence.
const minDocumentChars = 20

// Source is a free-text collaborator such as document or web search.
type Source interface {
	Run(ctx context.Context, query string) (string, error)
}

// RegulatorySearcher is satisfied by *fda.Tool.
type RegulatorySearcher interface {
	Search(ctx context.Context, query string, sr fda.SubResource, limit int) (string, error)
}

// Sources holds the configured collaborators. A nil field is skipped.
type Sources struct {
	Documents  Source
	Regulatory RegulatorySearcher
	Web        Source
}

type Config struct {
	Instructions    string
	Synthesis       llm.CallSettings
	RegulatoryLimit int
}

// Turn is the outcome of one processed utterance.
type Turn struct {
	Answer   string
	Evidence Evidence
	Prompt   string
}

type Agent struct {
	config    *Config
	sources   Sources
	completer llm.Completer
	logger    logger.Logger
	tracer    trace.Tracer
}

func New(config *Config, sources Sources, completer llm.Completer, log logger.Logger) *Agent {
	cfg := *config
	if cfg.RegulatoryLimit <= 0 {
		cfg.RegulatoryLimit = fda.DefaultLimit
	}
	return &Agent{
		config:    &cfg,
		sources:   sources,
		completer: completer,
		logger:    log.With(map[string]interface{}{"component": "research-agent"}),
		tracer:    otel.Tracer("device-research/agent"),
	}
}

// Process answers one utterance and never fails.
func (a *Agent) Process(ctx context.Context, input string) string {
	return a.Run(ctx, input).Answer
}

// Run gathers evidence from the configured sources, then synthesises an
// answer. Any panic is turned into an apology answer.
func (a *Agent) Run(ctx context.Context, input string) (turn *Turn) {
	ctx, span := a.tracer.Start(ctx, "agent.turn")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("turn aborted", map[string]interface{}{"panic": fmt.Sprint(r)})
			turn = &Turn{Answer: fmt.Sprintf("I encountered an error processing your request: %v", r)}
		}
	}()

	var evidence Evidence
	evidence = a.documentStep(ctx, input, evidence)
	evidence = a.regulatoryStep(ctx, input, evidence)
	evidence = a.webStep(ctx, input, evidence)

	prompt := BuildPrompt(input, evidence)
	answer := a.synthesize(ctx, prompt)

	span.SetAttributes(
		attribute.Int("evidence.blocks", len(evidence)),
		attribute.StringSlice("evidence.sources", evidence.Sources()),
	)
	a.logger.Info("turn processed", map[string]interface{}{
		"evidenceBlocks": len(evidence),
	})
	return &Turn{Answer: answer, Evidence: evidence, Prompt: prompt}
}

func (a *Agent) documentStep(ctx context.Context, input string, evidence Evidence) Evidence {
	if a.sources.Documents == nil {
		return evidence
	}

	out, err := invoke(func() (string, error) { return a.sources.Documents.Run(ctx, input) })
	if err != nil {
		a.recordSource("documents", "error", err)
		return evidence.Append(EvidenceBlock{
			Label:  LabelDocuments,
			Text:   fmt.Sprintf("**Document Search Error:** %v", err),
			Failed: true,
		})
	}
	if strings.TrimSpace(out) == docsearch.NoDocumentsFound || len(strings.Join(strings.Fields(out), "")) <= minDocumentChars {
		a.recordSource("documents", "empty", nil)
		return evidence
	}

	a.recordSource("documents", "ok", nil)
	return evidence.Append(EvidenceBlock{Label: LabelDocuments, Text: out})
}

func (a *Agent) regulatoryStep(ctx context.Context, input string, evidence Evidence) Evidence {
	if a.sources.Regulatory == nil {
		return evidence
	}
	haystack := evidence.Haystack(input)
	if !needsRegulatory(haystack) {
		a.recordSource("regulatory", "skipped", nil)
		return evidence
	}

	query, sr := regulatoryParams(haystack)
	a.logger.Debug("regulatory lookup", map[string]interface{}{
		"query":       query,
		"subResource": string(sr),
	})

	out, err := invoke(func() (string, error) {
		return a.sources.Regulatory.Search(ctx, query, sr, a.config.RegulatoryLimit)
	})
	if err != nil {
		a.recordSource("regulatory", "error", err)
		return evidence.Append(EvidenceBlock{
			Label:  LabelRegulatory,
			Text:   fmt.Sprintf("**FDA Search Error:** %v", err),
			Failed: true,
		})
	}
	if out == "" {
		a.recordSource("regulatory", "empty", nil)
		return evidence
	}

	a.recordSource("regulatory", "ok", nil)
	return evidence.Append(EvidenceBlock{Label: LabelRegulatory, Text: out})
}

func (a *Agent) webStep(ctx context.Context, input string, evidence Evidence) Evidence {
	if a.sources.Web == nil || !wantsWeb(input) {
		return evidence
	}

	out, err := invoke(func() (string, error) { return a.sources.Web.Run(ctx, input) })
	if err != nil {
		a.recordSource("web", "error", err)
		return evidence.Append(EvidenceBlock{
			Label:  LabelWeb,
			Text:   fmt.Sprintf("**Web Search Error:** %v", err),
			Failed: true,
		})
	}

	a.recordSource("web", "ok", nil)
	return evidence.Append(EvidenceBlock{Label: LabelWeb, Text: out})
}

func (a *Agent) synthesize(ctx context.Context, prompt string) string {
	if a.completer == nil {
		return fmt.Sprintf("Error generating response: %v", llm.ErrNotConfigured)
	}

	answer, err := a.completer.Complete(ctx, llm.Request{
		CallSite: "synthesis",
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: a.config.Instructions},
			{Role: llm.RoleUser, Content: prompt},
		},
		Settings: a.config.Synthesis,
	})
	if err != nil {
		a.logger.Error("synthesis failed", map[string]interface{}{
			"error":     err.Error(),
			"errorCode": string(classify(err).Code),
		})
		return fmt.Sprintf("Error generating response: %v", err)
	}
	return answer
}

func (a *Agent) recordSource(source, outcome string, err error) {
	metrics.SourceRequests.WithLabelValues(source, outcome).Inc()
	if err != nil {
		stdErr := classify(err)
		a.logger.Warn("evidence source failed", map[string]interface{}{
			"source":    source,
			"error":     err.Error(),
			"errorCode": string(stdErr.Code),
			"category":  errors.GetErrorCategory(stdErr.Code),
		})
	}
}

// invoke runs one collaborator call, converting a panic into an error.
func invoke(fn func() (string, error)) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return fn()
}
