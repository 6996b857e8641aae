// internal/workers/data-access/fda-lookup/handler.go
package fdalookup

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"device-research/internal/common/camunda"
	"device-research/internal/common/config"
	"device-research/internal/common/errors"
	"device-research/internal/common/logger"
	"device-research/internal/common/metrics"
	"device-research/internal/common/validation"
	"device-research/internal/fda"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "fda-lookup"

var schema = validation.MustCompile(inputSchema)

// Searcher is satisfied by *fda.Tool.
type Searcher interface {
	Search(ctx context.Context, query string, sr fda.SubResource, limit int) (string, error)
}

type Handler struct {
	config       *Config
	logger       logger.Logger
	camunda      *camunda.Client
	searcher     Searcher
	errorHandler *errors.ErrorHandler
	jobWorker    worker.JobWorker
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Camunda      *camunda.Client
	Searcher     Searcher
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Searcher == nil {
		return nil, fmt.Errorf("%s requires a searcher", TaskType)
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
		searcher:     opts.Searcher,
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

	var input Input
	result, err := schema.ValidateJSON(job.GetVariables())
	switch {
	case err != nil:
		err = errors.NewInvalidInputError(err.Error())
	case !result.Valid:
		err = errors.NewInvalidInputError(result.Error())
	default:
		if jsonErr := json.Unmarshal([]byte(job.GetVariables()), &input); jsonErr != nil {
			err = errors.NewInvalidInputError(jsonErr.Error())
		}
	}

	var output *Output
	if err == nil {
		output, err = h.Execute(ctx, &input)
	}

	cmdCtx, cmdCancel := camunda.CommandContext()
	defer cmdCancel()

	if err != nil {
		code := string(errors.ErrCodeInternal)
		if stdErr, ok := err.(*errors.StandardError); ok {
			code = string(stdErr.Code)
		}
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
		h.errorHandler.HandleJobError(cmdCtx, client, job, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(cmdCtx); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

// Execute runs one lookup. An empty database means all sub-resources, where
// individual failures are already folded into the report.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	sr, err := fda.ParseSubResource(input.Database)
	if err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}

	report, err := h.searcher.Search(ctx, input.Query, sr, input.Limit)
	if err != nil {
		return nil, toStandardError(err)
	}

	return &Output{Report: report, Database: sr.String()}, nil
}

func toStandardError(err error) *errors.StandardError {
	var upstream *fda.UpstreamError
	switch {
	case stderrors.As(err, &upstream):
		return errors.NewFDAUpstreamError(upstream.StatusCode, err)
	case stderrors.Is(err, fda.ErrTransport):
		return errors.NewFDATransportError(err)
	default:
		return errors.NewInternalError(err)
	}
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
