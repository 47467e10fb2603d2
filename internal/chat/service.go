package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hoeteam/openchat/internal/llm"
	"github.com/hoeteam/openchat/internal/models"
	"github.com/hoeteam/openchat/internal/settings"
	"go.uber.org/zap"
)

// ErrNoActiveModel is returned when no usable model configuration is
// selected (none stored, or the active one is missing its key or model name).
var ErrNoActiveModel = errors.New("no valid model configuration selected")

// Sender performs one chat completion call.
type Sender interface {
	SendChat(ctx context.Context, messages []llm.APIMessage, cfg models.ModelConfig) (string, error)
}

// Service owns the in-memory transcript and drives chat sends. Messages are
// appended strictly in user-send / assistant-reply order; a new send cancels
// any send still in flight.
type Service struct {
	sender Sender
	repo   *settings.Repository
	logger *zap.Logger

	mu         sync.Mutex
	transcript []models.Message
	inFlight   *inFlightSend
}

type inFlightSend struct {
	cancel context.CancelFunc
}

func NewService(sender Sender, repo *settings.Repository, logger *zap.Logger) *Service {
	return &Service{
		sender: sender,
		repo:   repo,
		logger: logger,
	}
}

// Messages returns a snapshot of the transcript.
func (s *Service) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Clear drops the transcript.
func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = nil
}

// ActiveModel returns the currently selected configuration, or nil.
func (s *Service) ActiveModel(ctx context.Context) (*models.ModelConfig, error) {
	return s.repo.CurrentModel(ctx)
}

// UseModel switches the active configuration and clears the transcript;
// conversations never carry across configurations.
func (s *Service) UseModel(ctx context.Context, modelID string) error {
	if err := s.repo.SetCurrentModel(ctx, modelID); err != nil {
		return err
	}
	s.mu.Lock()
	if s.inFlight != nil {
		s.inFlight.cancel()
		s.inFlight = nil
	}
	s.transcript = nil
	s.mu.Unlock()
	return nil
}

// Send appends the user's text to the transcript, performs the chat call,
// and appends the reply. API failures also land in the transcript as a
// failed assistant turn so the conversation always shows what happened;
// cancellation propagates without appending anything. Failed turns are
// excluded from subsequent outbound transcripts.
func (s *Service) Send(ctx context.Context, text string) (*models.Message, error) {
	cfg, err := s.repo.CurrentModel(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil || cfg.APIKey == "" || cfg.ModelName == "" {
		return nil, ErrNoActiveModel
	}

	userMessage := models.Message{
		ID:        uuid.New().String(),
		Text:      text,
		Role:      models.RoleUser,
		Timestamp: time.Now(),
	}

	s.mu.Lock()
	if s.inFlight != nil {
		// Latest request wins: abandon the send still in flight.
		s.inFlight.cancel()
	}
	sendCtx, cancel := context.WithCancel(ctx)
	call := &inFlightSend{cancel: cancel}
	s.inFlight = call
	s.transcript = append(s.transcript, userMessage)
	apiMessages := s.buildAPIMessages()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		cancel()
		// A superseded send must not clear its successor's slot.
		if s.inFlight == call {
			s.inFlight = nil
		}
		s.mu.Unlock()
	}()

	reply, err := s.sender.SendChat(sendCtx, apiMessages, *cfg)
	if err != nil {
		if sendCtx.Err() != nil {
			return nil, sendCtx.Err()
		}
		s.logger.Warn("chat send failed",
			zap.String("model_id", cfg.ID),
			zap.Error(err))
		failed := s.append(models.Message{
			ID:        uuid.New().String(),
			Text:      "LLM API error: " + err.Error(),
			Role:      models.RoleAssistant,
			Timestamp: time.Now(),
			Failed:    true,
		})
		return &failed, nil
	}

	assistant := s.append(models.Message{
		ID:        uuid.New().String(),
		Text:      reply,
		Role:      models.RoleAssistant,
		Timestamp: time.Now(),
	})
	return &assistant, nil
}

func (s *Service) append(m models.Message) models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, m)
	return m
}

// buildAPIMessages converts the transcript to wire turns, skipping failed
// assistant turns. Caller must hold s.mu.
func (s *Service) buildAPIMessages() []llm.APIMessage {
	out := make([]llm.APIMessage, 0, len(s.transcript))
	for _, m := range s.transcript {
		if m.Failed {
			continue
		}
		role := "assistant"
		if m.Role == models.RoleUser {
			role = "user"
		}
		out = append(out, llm.APIMessage{Role: role, Content: m.Text})
	}
	return out
}
