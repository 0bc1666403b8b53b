package dispatch

import (
	"context"
	"fmt"
	"strings"

	"jan-server/services/dispatch-api/internal/domain/chat"
	"jan-server/services/dispatch-api/internal/domain/clock"
	"jan-server/services/dispatch-api/internal/domain/outcome"
	"jan-server/services/dispatch-api/internal/domain/provider"
	"jan-server/services/dispatch-api/internal/domain/txn"
	"jan-server/services/dispatch-api/internal/infrastructure/logger"
	"jan-server/services/dispatch-api/internal/infrastructure/metrics"
	"jan-server/services/dispatch-api/internal/utils/crypto"
	"jan-server/services/dispatch-api/internal/utils/platformerrors"
)

type Config struct {
	// KeySecret decrypts the stored provider credentials.
	KeySecret string
}

type SendResult struct {
	AssistantMessage *chat.Message     `json:"assistant_message"`
	SessionStatus    chat.SessionStatus `json:"session_status"`
}

// Orchestrator runs one message exchange against a session's pinned key.
type Orchestrator struct {
	tx        txn.Runner
	sessions  chat.SessionRepository
	messages  chat.MessageRepository
	providers provider.ProviderRepository
	keys      provider.KeyRepository
	completer Completer
	clock     clock.Clock
	cfg       Config
}

func NewOrchestrator(
	tx txn.Runner,
	sessions chat.SessionRepository,
	messages chat.MessageRepository,
	providers provider.ProviderRepository,
	keys provider.KeyRepository,
	completer Completer,
	clk clock.Clock,
	cfg Config,
) *Orchestrator {
	return &Orchestrator{
		tx:        tx,
		sessions:  sessions,
		messages:  messages,
		providers: providers,
		keys:      keys,
		completer: completer,
		clock:     clk,
		cfg:       cfg,
	}
}

// exchange is the state loaded for one send.
type exchange struct {
	session  *chat.Session
	key      *provider.ProviderKey
	provider *provider.Provider
}

// SendMessage appends text as a user turn, calls the session's provider with the full
// history and stores the reply. Only a rate limit changes key or session state; every
// other failure leaves the user turn persisted and the state untouched.
func (o *Orchestrator) SendMessage(ctx context.Context, sessionPublicID, text string) (*SendResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, outcome.Validation("message text is required")
	}

	ex, err := o.prepare(ctx, sessionPublicID)
	if err != nil {
		return nil, err
	}

	apiKey, err := crypto.DecryptString(o.cfg.KeySecret, ex.key.EncryptedKey)
	if err != nil {
		return nil, outcome.Unavailable("provider credential could not be decrypted", err)
	}

	var turns []Turn
	err = o.tx.InTx(ctx, func(ctx context.Context) error {
		userMsg, err := chat.NewMessage(ex.session.ID, chat.RoleUser, text, nil, o.clock.Now())
		if err != nil {
			return err
		}
		if err := o.messages.Append(ctx, userMsg); err != nil {
			return err
		}
		history, err := o.messages.ListBySession(ctx, ex.session.ID)
		if err != nil {
			return err
		}
		turns = make([]Turn, 0, len(history))
		for _, m := range history {
			turns = append(turns, Turn{Role: m.Role, Content: m.Content})
		}
		return nil
	})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to record user message")
	}

	completion, callErr := o.completer.Complete(ctx, CompletionRequest{
		Provider: ex.provider,
		Model:    ex.provider.ModelOrDefault(ex.session.ModelName),
		APIKey:   apiKey,
		Turns:    turns,
	})

	// The user turn is already committed; results are stored even if the caller went away.
	persistCtx := context.WithoutCancel(ctx)

	if callErr != nil {
		oe, ok := outcome.As(callErr)
		if !ok {
			return nil, outcome.Unavailable("provider call failed", callErr)
		}
		if oe.Kind == outcome.KindRateLimited {
			return nil, o.park(persistCtx, ex, oe)
		}
		return nil, oe
	}

	var assistant *chat.Message
	err = o.tx.InTx(persistCtx, func(ctx context.Context) error {
		now := o.clock.Now()
		tokens := completion.TokenUsage
		msg, err := chat.NewMessage(ex.session.ID, chat.RoleAssistant, completion.Text, &tokens, now)
		if err != nil {
			return err
		}
		if err := o.messages.Append(ctx, msg); err != nil {
			return err
		}
		if err := o.keys.TouchLastUsed(ctx, ex.key.ID, now); err != nil {
			return err
		}
		assistant = msg
		return nil
	})
	if err != nil {
		return nil, platformerrors.AsError(persistCtx, platformerrors.LayerDomain, err, "failed to record assistant message")
	}

	return &SendResult{AssistantMessage: assistant, SessionStatus: chat.SessionStatusActive}, nil
}

// prepare loads the session with its pinned key and provider and applies the lazy
// recovery check. A cooling-down key short-circuits with RateLimited.
func (o *Orchestrator) prepare(ctx context.Context, sessionPublicID string) (*exchange, error) {
	var (
		ex      *exchange
		blocked error
	)
	err := o.tx.InTx(ctx, func(ctx context.Context) error {
		session, err := o.sessions.FindByPublicID(ctx, sessionPublicID)
		if err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load session")
		}
		if session == nil {
			return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
				"session not found", nil, "4f8a2c6e-1d3b-4e97-a5c0-7b2e9f1d6a38")
		}
		key, err := o.keys.FindByID(ctx, session.KeyID)
		if err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load pinned key")
		}
		p, err := o.providers.FindByID(ctx, session.ProviderID)
		if err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load provider")
		}
		if key == nil || p == nil {
			return outcome.Unavailable("session is pinned to a missing key or provider", nil)
		}
		if key.Status == provider.KeyStatusDisabled {
			return outcome.Unavailable(fmt.Sprintf("pinned key %d is disabled", key.ID), nil)
		}
		if !p.Enabled {
			return outcome.Unavailable(fmt.Sprintf("provider %s is disabled", p.Code), nil)
		}

		now := o.clock.Now()
		if key.CoolingDown(now) {
			if session.Status == chat.SessionStatusActive {
				// The key was parked by another session; park this one too.
				if _, err := o.sessions.MarkPending(ctx, session.ID, now); err != nil {
					return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to park session")
				}
				metrics.RecordSessionTransition(p.Code, "parked")
			}
			blocked = outcome.RateLimited(*key.RateLimitResetAt)
			return nil
		}

		if key.Status == provider.KeyStatusRateLimited {
			recovered, err := o.keys.Recover(ctx, key.ID, now)
			if err != nil {
				return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to recover key")
			}
			if recovered {
				log := logger.GetLogger()
				log.Info().Uint("key_id", key.ID).Str("provider", p.Code).Msg("rate-limited key recovered on send")
			}
			key.Status = provider.KeyStatusActive
			key.RateLimitResetAt = nil
		}
		if session.Status == chat.SessionStatusPendingRateLimit {
			reactivated, err := o.sessions.Reactivate(ctx, session.ID, now)
			if err != nil {
				return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to reactivate session")
			}
			if reactivated {
				metrics.RecordSessionTransition(p.Code, "recovered")
			}
			session.Status = chat.SessionStatusActive
		}

		ex = &exchange{session: session, key: key, provider: p}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if blocked != nil {
		return nil, blocked
	}
	return ex, nil
}

// park records a provider rate limit against the pinned key and session.
func (o *Orchestrator) park(ctx context.Context, ex *exchange, limited *outcome.Error) error {
	err := o.tx.InTx(ctx, func(ctx context.Context) error {
		now := o.clock.Now()
		if _, err := o.keys.MarkRateLimited(ctx, ex.key.ID, *limited.ResetAt, now); err != nil {
			return err
		}
		if _, err := o.sessions.MarkPending(ctx, ex.session.ID, now); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to park rate-limited session")
	}

	metrics.RecordSessionTransition(ex.provider.Code, "parked")
	log := logger.GetLogger()
	log.Warn().
		Uint("key_id", ex.key.ID).
		Str("session_id", ex.session.PublicID).
		Str("provider", ex.provider.Code).
		Time("reset_at", *limited.ResetAt).
		Msg("provider rate limit, session parked")
	return limited
}
