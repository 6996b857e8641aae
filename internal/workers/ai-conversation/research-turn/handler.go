// internal/workers/ai-conversation/research-turn/handler.go
package researchturn

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"device-research/internal/agent"
	"device-research/internal/audit"
	"device-research/internal/common/camunda"
	"device-research/internal/common/config"
	"device-research/internal/common/errors"
	"device-research/internal/common/logger"
	"device-research/internal/common/metrics"
	"device-research/internal/common/observability"
	"device-research/internal/common/validation"
	"device-research/internal/session"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const TaskType = "research-turn"

var schema = validation.MustCompile(inputSchema)

// Researcher is satisfied by *agent.Agent.
type Researcher interface {
	Run(ctx context.Context, input string) *agent.Turn
}

// History is satisfied by *session.Store.
type History interface {
	Recent(ctx context.Context, sessionID string) ([]session.Message, error)
	Append(ctx context.Context, sessionID string, messages ...session.Message) error
}

// AuditLog is satisfied by *audit.Log.
type AuditLog interface {
	Record(ctx context.Context, turn *audit.Turn) error
}

type Handler struct {
	config       *Config
	logger       logger.Logger
	camunda      *camunda.Client
	agent        Researcher
	history      History
	audit        AuditLog
	obs          *observability.Observability
	errorHandler *errors.ErrorHandler
	jobWorker    worker.JobWorker
}

// HandlerOptions wires the worker. History, Audit and Observability are optional.
type HandlerOptions struct {
	AppConfig     *config.Config
	CustomConfig  *Config
	Camunda       *camunda.Client
	Agent         Researcher
	History       History
	Audit         AuditLog
	Observability *observability.Observability
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Agent == nil {
		return nil, fmt.Errorf("%s requires an agent", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.With(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:       workerConfig,
		logger:       log,
		camunda:      opts.Camunda,
		agent:        opts.Agent,
		history:      opts.History,
		audit:        opts.Audit,
		obs:          opts.Observability,
		errorHandler: errors.NewErrorHandler(log),
	}, nil
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()
	if appConfig != nil {
		if workerCfg, exists := appConfig.Workers[TaskType]; exists {
			cfg.Enabled = workerCfg.Enabled
			if workerCfg.MaxJobsActive > 0 {
				cfg.MaxJobsActive = workerCfg.MaxJobsActive
			}
			if workerCfg.Timeout > 0 {
				cfg.Timeout = config.GetDuration(workerCfg.Timeout)
			}
		}
	}
	return cfg
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := parseInput(job.GetVariables())
	var output *Output
	if err == nil {
		output, err = h.Execute(ctx, input)
	}

	cmdCtx, cmdCancel := camunda.CommandContext()
	defer cmdCancel()

	if err == nil {
		h.completeJob(cmdCtx, client, job, output)
		metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
		h.record(cmdCtx, "completed", time.Since(startTime))
		return
	}

	metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode(err)).Inc()
	h.record(cmdCtx, "failed", time.Since(startTime))
	h.errorHandler.HandleJobError(cmdCtx, client, job, err)
}

func parseInput(variables string) (*Input, error) {
	result, err := schema.ValidateJSON(variables)
	if err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	if !result.Valid {
		return nil, errors.NewInvalidInputError(result.Error())
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	return &input, nil
}

// Execute answers one question, folding in the session's recent messages
// when a session id is given.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, errors.NewInvalidInputError("question is required")
	}

	if h.obs != nil {
		var span trace.Span
		ctx, span = h.obs.StartSpan(ctx, "research-turn.execute", attribute.String("session.id", input.SessionID))
		defer span.End()
	}

	utterance := question
	if h.history != nil && input.SessionID != "" {
		recent, err := h.history.Recent(ctx, input.SessionID)
		if err != nil {
			return nil, errors.NewSessionStoreFailedError(err)
		}
		utterance = session.RenderPrompt(recent, question)
	}

	started := time.Now()
	turn := h.agent.Run(ctx, utterance)
	elapsed := time.Since(started)

	output := &Output{
		TurnID:        uuid.New().String(),
		Answer:        turn.Answer,
		Sources:       turn.Evidence.Sources(),
		EvidenceCount: len(turn.Evidence),
	}
	if output.Sources == nil {
		output.Sources = []string{}
	}

	if h.history != nil && input.SessionID != "" {
		if err := h.history.Append(ctx, input.SessionID,
			session.Message{Role: session.RoleUser, Content: question},
			session.Message{Role: session.RoleAssistant, Content: turn.Answer},
		); err != nil {
			h.logger.Warn("failed to store session history", map[string]interface{}{
				"sessionId": input.SessionID,
				"error":     err.Error(),
			})
		}
	}

	h.writeAudit(ctx, output, input, question, elapsed)

	h.logger.Info("research turn completed", map[string]interface{}{
		"turnId":        output.TurnID,
		"evidenceCount": output.EvidenceCount,
		"sources":       output.Sources,
		"durationMs":    elapsed.Milliseconds(),
	})
	return output, nil
}

// writeAudit never fails the turn.
func (h *Handler) writeAudit(ctx context.Context, output *Output, input *Input, question string, elapsed time.Duration) {
	if h.audit == nil {
		return
	}
	err := h.audit.Record(ctx, &audit.Turn{
		ID:        uuid.MustParse(output.TurnID),
		SessionID: input.SessionID,
		Question:  question,
		Sources:   output.Sources,
		Answer:    output.Answer,
		Duration:  elapsed,
	})
	if err != nil {
		stdErr := errors.NewAuditWriteFailedError(err)
		h.logger.Warn("turn audit failed", map[string]interface{}{
			"turnId":    output.TurnID,
			"errorCode": string(stdErr.Code),
			"error":     stdErr.Details,
		})
	}
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
	}
}

func (h *Handler) record(ctx context.Context, status string, d time.Duration) {
	if h.obs == nil {
		return
	}
	h.obs.RecordJobProcessed(ctx, TaskType, status)
	h.obs.RecordJobDuration(ctx, TaskType, d, status)
}

func errorCode(err error) string {
	if stdErr, ok := err.(*errors.StandardError); ok {
		return string(stdErr.Code)
	}
	return string(errors.ErrCodeInternal)
}

func (h *Handler) Register() error {
	if !h.config.Enabled {
		h.logger.Info("worker is disabled, skipping registration", nil)
		return nil
	}
	if h.camunda == nil {
		return fmt.Errorf("%s: camunda client not configured", TaskType)
	}

	h.jobWorker = h.camunda.OpenWorker(camunda.WorkerOptions{
		TaskType:      TaskType,
		MaxJobsActive: h.config.MaxJobsActive,
		Timeout:       h.config.Timeout,
	}, h.Handle, h.logger)
	return nil
}

func (h *Handler) Close() {
	if h.jobWorker != nil {
		h.jobWorker.Close()
		h.jobWorker = nil
	}
}

func (h *Handler) GetTaskType() string {
	return TaskType
}
