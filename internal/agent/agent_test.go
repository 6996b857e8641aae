package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"device-research/internal/common/logger"
	"device-research/internal/docsearch"
	"device-research/internal/fda"
	"device-research/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Run(ctx context.Context, query string) (string, error) {
	args := m.Called(ctx, query)
	return args.String(0), args.Error(1)
}

type mockRegulatory struct {
	mock.Mock
}

func (m *mockRegulatory) Search(ctx context.Context, query string, sr fda.SubResource, limit int) (string, error) {
	args := m.Called(ctx, query, sr, limit)
	return args.String(0), args.Error(1)
}

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func createTestConfig() *Config {
	return &Config{
		Instructions:    "You are a medical device research assistant.",
		Synthesis:       llm.CallSettings{Temperature: 0.7, MaxTokens: 2000},
		RegulatoryLimit: 5,
	}
}

func labels(e Evidence) []string {
	out := make([]string, len(e))
	for i, b := range e {
		out[i] = b.Label
	}
	return out
}

func TestAgent_Run_LatestRecallOnInsulinPumps(t *testing.T) {
	const utterance = "what is the latest recall on insulin pumps"

	docs := new(mockSource)
	docs.On("Run", mock.Anything, utterance).Return("  too short  ", nil)
	regulatory := new(mockRegulatory)
	regulatory.On("Search", mock.Anything, "insulin pump", fda.Recall, 5).Return("## FDA RECALL Database Results", nil)
	web := new(mockSource)
	web.On("Run", mock.Anything, utterance).Return("**Current Web Results:**", nil)
	completer := new(mockCompleter)
	completer.On("Complete", mock.Anything, mock.Anything).Return("Final answer.", nil)

	agent := New(createTestConfig(), Sources{Documents: docs, Regulatory: regulatory, Web: web}, completer, logger.NewTestLogger(t))
	turn := agent.Run(context.Background(), utterance)

	assert.Equal(t, "Final answer.", turn.Answer)
	assert.Equal(t, []string{LabelRegulatory, LabelWeb}, labels(turn.Evidence))
	assert.Contains(t, turn.Prompt, "Information Found:\n## FDA Database Results\n## FDA RECALL Database Results\n\n## Web Search Results\n**Current Web Results:**")
	regulatory.AssertExpectations(t)
	web.AssertExpectations(t)
}

func TestAgent_Run_AllThreeSourcesInOrder(t *testing.T) {
	const utterance = "Any recent FDA news on the Everion monitor?"

	docs := new(mockSource)
	docs.On("Run", mock.Anything, utterance).Return("Everion continuously monitors vital signs of patients.", nil)
	regulatory := new(mockRegulatory)
	regulatory.On("Search", mock.Anything, "everion", fda.All, 5).Return("# FDA Medical Device Database Results", nil)
	web := new(mockSource)
	web.On("Run", mock.Anything, utterance).Return("web", nil)
	completer := new(mockCompleter)
	completer.On("Complete", mock.Anything, mock.Anything).Return("ok", nil)

	turn := New(createTestConfig(), Sources{Documents: docs, Regulatory: regulatory, Web: web}, completer, logger.NewNoOpLogger()).
		Run(context.Background(), utterance)

	assert.Equal(t, []string{LabelDocuments, LabelRegulatory, LabelWeb}, labels(turn.Evidence))
	assert.Equal(t, []string{LabelDocuments, LabelRegulatory, LabelWeb}, turn.Evidence.Sources())
	regulatory.AssertExpectations(t)
}

func TestAgent_Run_NoKeywordsOnlyCompleter(t *testing.T) {
	const utterance = "How should I store my reading glasses?"

	completer := new(mockCompleter)
	completer.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return req.CallSite == "synthesis" &&
			len(req.Messages) == 2 &&
			req.Messages[0].Role == llm.RoleSystem &&
			req.Messages[0].Content == "You are a medical device research assistant." &&
			req.Messages[1].Role == llm.RoleUser &&
			req.Settings == llm.CallSettings{Temperature: 0.7, MaxTokens: 2000}
	})).Return("Keep them in a case.", nil)

	turn := New(createTestConfig(), Sources{}, completer, logger.NewNoOpLogger()).Run(context.Background(), utterance)

	assert.Empty(t, turn.Evidence)
	assert.Equal(t, "Keep them in a case.", turn.Answer)
	assert.Equal(t, "User Question: "+utterance+"\n\nNo additional information was found from the search tools. "+
		"Please provide the best answer you can and suggest what specific information the user might want to search for.", turn.Prompt)
	completer.AssertExpectations(t)
}

func TestAgent_Run_NoKeywordsSkipsRegulatoryAndWeb(t *testing.T) {
	regulatory := new(mockRegulatory)
	web := new(mockSource)
	completer := new(mockCompleter)
	completer.On("Complete", mock.Anything, mock.Anything).Return("ok", nil)

	turn := New(createTestConfig(), Sources{Regulatory: regulatory, Web: web}, completer, logger.NewNoOpLogger()).
		Run(context.Background(), "tell me a joke")

	assert.Empty(t, turn.Evidence)
	regulatory.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	web.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestAgent_Run_RegulatoryTriggeredByDocuments(t *testing.T) {
	docs := new(mockSource)
	docs.On("Run", mock.Anything, "tell me about our product").Return("Our stent received 510k clearance in 2019.", nil)
	regulatory := new(mockRegulatory)
	regulatory.On("Search", mock.Anything, "stent", fda.Clearance, 5).Return("clearances", nil)
	completer := new(mockCompleter)
	completer.On("Complete", mock.Anything, mock.Anything).Return("ok", nil)

	turn := New(createTestConfig(), Sources{Documents: docs, Regulatory: regulatory}, completer, logger.NewNoOpLogger()).
		Run(context.Background(), "tell me about our product")

	assert.Equal(t, []string{LabelDocuments, LabelRegulatory}, labels(turn.Evidence))
	regulatory.AssertExpectations(t)
}

func TestAgent_Run_FailuresBecomeErrorBlocks(t *testing.T) {
	const utterance = "latest FDA recall for pacemaker"

	docs := new(mockSource)
	docs.On("Run", mock.Anything, utterance).Return("", errors.New("DOCUMENT_SEARCH_TIMEOUT"))
	regulatory := new(mockRegulatory)
	regulatory.On("Search", mock.Anything, "pacemaker", fda.Recall, 5).Return("", &fda.UpstreamError{SubResource: fda.Recall, StatusCode: 503})
	web := new(mockSource)
	web.On("Run", mock.Anything, utterance).Run(func(mock.Arguments) { panic("nil map") })
	completer := new(mockCompleter)
	completer.On("Complete", mock.Anything, mock.Anything).Return("partial answer", nil)

	turn := New(createTestConfig(), Sources{Documents: docs, Regulatory: regulatory, Web: web}, completer, logger.NewNoOpLogger()).
		Run(context.Background(), utterance)

	require.Len(t, turn.Evidence, 3)
	for _, b := range turn.Evidence {
		assert.True(t, b.Failed)
	}
	assert.Equal(t, "**Document Search Error:** DOCUMENT_SEARCH_TIMEOUT", turn.Evidence[0].Text)
	assert.Equal(t, "**FDA Search Error:** API error: 503", turn.Evidence[1].Text)
	assert.Equal(t, "**Web Search Error:** nil map", turn.Evidence[2].Text)
	assert.Empty(t, turn.Evidence.Sources())
	assert.Contains(t, turn.Prompt, "Information Found:\n**Document Search Error:**")
	assert.Equal(t, "partial answer", turn.Answer)
}

func TestAgent_Run_CompletionError(t *testing.T) {
	completer := new(mockCompleter)
	completer.On("Complete", mock.Anything, mock.Anything).Return("", llm.ErrLLMTimeout)

	answer := New(createTestConfig(), Sources{}, completer, logger.NewNoOpLogger()).Process(context.Background(), "hello")

	assert.Equal(t, "Error generating response: LLM_TIMEOUT", answer)
}

func TestAgent_Run_NoCompleter(t *testing.T) {
	answer := New(createTestConfig(), Sources{}, nil, logger.NewNoOpLogger()).Process(context.Background(), "hello")

	assert.True(t, strings.HasPrefix(answer, "Error generating response: "))
}

func TestAgent_Run_RecoversFromPanic(t *testing.T) {
	completer := new(mockCompleter)
	completer.On("Complete", mock.Anything, mock.Anything).Run(func(mock.Arguments) { panic("boom") })

	var answer string
	require.NotPanics(t, func() {
		answer = New(createTestConfig(), Sources{}, completer, logger.NewNoOpLogger()).Process(context.Background(), "hello")
	})
	assert.Equal(t, "I encountered an error processing your request: boom", answer)
}

func TestNew_DefaultRegulatoryLimit(t *testing.T) {
	cfg := &Config{}
	a := New(cfg, Sources{}, nil, logger.NewNoOpLogger())
	assert.Equal(t, fda.DefaultLimit, a.config.RegulatoryLimit)
	assert.Zero(t, cfg.RegulatoryLimit)
}

func TestAgent_Run_NoDocumentsFoundIsNotEvidence(t *testing.T) {
	const utterance = "How do I clean the sensor housing?"

	docs := new(mockSource)
	docs.On("Run", mock.Anything, utterance).Return(docsearch.NoDocumentsFound, nil)
	completer := new(mockCompleter)
	completer.On("Complete", mock.Anything, mock.Anything).Return("General guidance.", nil)

	turn := New(createTestConfig(), Sources{Documents: docs}, completer, logger.NewTestLogger(t)).
		Run(context.Background(), utterance)

	assert.Empty(t, turn.Evidence)
	assert.Contains(t, turn.Prompt, "No additional information was found")
	assert.NotContains(t, turn.Prompt, LabelDocuments)
	docs.AssertExpectations(t)
}
