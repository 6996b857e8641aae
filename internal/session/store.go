package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"device-research/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Config struct {
	KeyPrefix     string
	HistoryWindow int
	TTL           time.Duration
}

// Store keeps a bounded per-session message list in Redis.
type Store struct {
	config *Config
	redis  *redis.Client
	logger logger.Logger
}

func NewStore(config *Config, redisClient *redis.Client, log logger.Logger) *Store {
	cfg := *config
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "research:session:"
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 3
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Store{
		config: &cfg,
		redis:  redisClient,
		logger: log.With(map[string]interface{}{"component": "session-store"}),
	}
}

func (s *Store) key(sessionID string) string {
	return s.config.KeyPrefix + sessionID
}

// Recent returns up to HistoryWindow of the latest messages, oldest first.
func (s *Store) Recent(ctx context.Context, sessionID string) ([]Message, error) {
	raw, err := s.redis.LRange(ctx, s.key(sessionID), int64(-s.config.HistoryWindow), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session history: %w", err)
	}

	messages := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			s.logger.Warn("skipping malformed history entry", map[string]interface{}{
				"sessionId": sessionID,
				"error":     err.Error(),
			})
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Append stores the messages and trims the list to twice the window so a
// full exchange is always available.
func (s *Store) Append(ctx context.Context, sessionID string, messages ...Message) error {
	if len(messages) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(messages))
	for _, msg := range messages {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to encode history entry: %w", err)
		}
		values = append(values, data)
	}

	key := s.key(sessionID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.LTrim(ctx, key, int64(-2*s.config.HistoryWindow), -1)
	pipe.Expire(ctx, key, s.config.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write session history: %w", err)
	}
	return nil
}

// RenderPrompt folds prior messages into the utterance handed to the agent.
func RenderPrompt(history []Message, question string) string {
	if len(history) == 0 {
		return question
	}
	var b strings.Builder
	b.WriteString("Recent conversation:\n")
	for _, msg := range history {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	b.WriteString("\nCurrent question: ")
	b.WriteString(question)
	return b.String()
}
