package notification

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rxchain/rxchain/internal/platform/apperr"
	"github.com/rxchain/rxchain/internal/platform/auth"
	"github.com/rxchain/rxchain/internal/platform/clock"
)

type Service struct {
	store  Store
	clock  clock.Clock
	logger zerolog.Logger
}

func NewService(store Store, clk clock.Clock, logger zerolog.Logger) *Service {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Service{store: store, clock: clk, logger: logger.With().Str("component", "notification").Logger()}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Send stores a notification for m.UserID. It never fails the caller:
// problems are logged and dropped.
func (s *Service) Send(ctx context.Context, m Message) {
	if strings.TrimSpace(m.UserID) == "" {
		s.logger.Warn().Str("notification_type", string(m.Type)).Msg("notification without recipient dropped")
		return
	}
	n := &Notification{
		ID:                uuid.New(),
		UserID:            m.UserID,
		Title:             m.Title,
		Message:           m.Message,
		Type:              m.Type,
		RelatedEntityType: optional(m.RelatedEntityType),
		RelatedEntityID:   optional(m.RelatedEntityID),
		CreatedAt:         s.clock.Now(),
	}
	if err := s.store.Create(ctx, n); err != nil {
		s.logger.Error().Err(err).
			Str("user_id", m.UserID).
			Str("notification_type", string(m.Type)).
			Str("related_entity_id", m.RelatedEntityID).
			Msg("notification not stored")
	}
}

func (s *Service) List(ctx context.Context, unreadOnly bool, limit, offset int) ([]*Notification, int, error) {
	caller, err := auth.Authorize(ctx, auth.OpReadNotifications)
	if err != nil {
		return nil, 0, err
	}
	return s.store.ListByUser(ctx, caller.ID, unreadOnly, limit, offset)
}

func (s *Service) MarkRead(ctx context.Context, id uuid.UUID) (*Notification, error) {
	caller, err := auth.Authorize(ctx, auth.OpReadNotifications)
	if err != nil {
		return nil, err
	}
	return s.store.MarkRead(ctx, caller.ID, id, s.clock.Now())
}

func (s *Service) MarkAllRead(ctx context.Context) (int, error) {
	caller, err := auth.Authorize(ctx, auth.OpReadNotifications)
	if err != nil {
		return 0, err
	}
	return s.store.MarkAllRead(ctx, caller.ID, s.clock.Now())
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	caller, err := auth.Authorize(ctx, auth.OpReadNotifications)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, caller.ID, id)
}

func notFound(id uuid.UUID) error {
	return apperr.NotFound("notification %s not found", id)
}
