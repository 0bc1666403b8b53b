package chat

import (
	"context"
	"fmt"
	"strings"

	"jan-server/services/dispatch-api/internal/domain/clock"
	"jan-server/services/dispatch-api/internal/domain/outcome"
	"jan-server/services/dispatch-api/internal/domain/provider"
	"jan-server/services/dispatch-api/internal/domain/txn"
	"jan-server/services/dispatch-api/internal/utils/idgen"
	"jan-server/services/dispatch-api/internal/utils/platformerrors"
)

type CreateSessionInput struct {
	OwnerID      string
	ProviderCode string
	ModelID      *string // selects a model-scoped key pool when set
	ModelName    string
	SystemPrompt string
	Title        string
}

// SessionService creates sessions (pinning a key at creation) and reads transcripts.
type SessionService struct {
	tx        txn.Runner
	sessions  SessionRepository
	messages  MessageRepository
	providers provider.ProviderRepository
	selector  *provider.KeySelector
	clock     clock.Clock
}

func NewSessionService(
	tx txn.Runner,
	sessions SessionRepository,
	messages MessageRepository,
	providers provider.ProviderRepository,
	selector *provider.KeySelector,
	clk clock.Clock,
) *SessionService {
	return &SessionService{
		tx:        tx,
		sessions:  sessions,
		messages:  messages,
		providers: providers,
		selector:  selector,
		clock:     clk,
	}
}

// CreateSession claims a key from the provider's pool and pins the new session to it.
func (s *SessionService) CreateSession(ctx context.Context, in CreateSessionInput) (*Session, error) {
	if strings.TrimSpace(in.OwnerID) == "" {
		return nil, outcome.Validation("owner_id is required")
	}
	if strings.TrimSpace(in.ProviderCode) == "" {
		return nil, outcome.Validation("provider is required")
	}

	var created *Session
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		p, err := s.providers.FindByCode(ctx, in.ProviderCode)
		if err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load provider")
		}
		if p == nil {
			return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
				fmt.Sprintf("provider %q not found", in.ProviderCode), nil, "6a2f8d1e-4c7b-4e93-a0d5-2b8e6f1c9a37")
		}

		key, err := s.selector.SelectKey(ctx, p, in.ModelID)
		if err != nil {
			return err
		}

		model := strings.TrimSpace(in.ModelName)
		if model == "" && key.ModelID != nil {
			model = *key.ModelID
		}

		publicID, err := idgen.GenerateSecureID("chat", 16)
		if err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate session id")
		}
		now := s.clock.Now()
		session := &Session{
			PublicID:   publicID,
			OwnerID:    in.OwnerID,
			ProviderID: p.ID,
			KeyID:      key.ID,
			ModelName:  p.ModelOrDefault(model),
			Title:      strings.TrimSpace(in.Title),
			Status:     SessionStatusActive,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.sessions.Create(ctx, session); err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create session")
		}

		if prompt := strings.TrimSpace(in.SystemPrompt); prompt != "" {
			msg, err := NewMessage(session.ID, RoleSystem, prompt, nil, now)
			if err != nil {
				return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to build system message")
			}
			if err := s.messages.Append(ctx, msg); err != nil {
				return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to store system message")
			}
		}

		created = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetSession returns the session or a NotFound platform error.
func (s *SessionService) GetSession(ctx context.Context, publicID string) (*Session, error) {
	if !idgen.ValidateIDFormat(publicID, "chat") {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"invalid session id", nil, "0e7b3a9c-2d6f-4f18-b4c1-8a5e9d2f7b63")
	}
	session, err := s.sessions.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load session")
	}
	if session == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
			"session not found", nil, "9d4c1f7a-5b2e-4a86-93f0-6c8b1e4d2a95")
	}
	return session, nil
}

// ListMessages returns the session transcript in order.
func (s *SessionService) ListMessages(ctx context.Context, publicID string) ([]*Message, error) {
	session, err := s.GetSession(ctx, publicID)
	if err != nil {
		return nil, err
	}
	messages, err := s.messages.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list messages")
	}
	return messages, nil
}
