package notification

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rxchain/rxchain/internal/platform/events"
)

// Directory resolves who should hear about a new request.
type Directory interface {
	OrganizationIDs(ctx context.Context, orgType string) ([]string, error)
	MemberIDs(ctx context.Context, orgID, role string) ([]string, error)
}

// Sender stores one notification.
type Sender interface {
	Send(ctx context.Context, m Message)
}

const maxFanOut = 8

var eventTypes = map[events.Type]Type{
	events.RequestCreated:   TypeRequestCreated,
	events.RequestApproved:  TypeRequestApproved,
	events.RequestRejected:  TypeRequestRejected,
	events.RequestCancelled: TypeRequestCancelled,
	events.RequestInTransit: TypeRequestInTransit,
	events.RequestDelivered: TypeRequestDelivered,
}

// Dispatcher turns request events into notifications. A new request goes
// to every manufacturer user; every later step goes to the requesting
// consumer.
type Dispatcher struct {
	sender    Sender
	dir       Directory
	templates *TemplateEngine
	logger    zerolog.Logger
}

func NewDispatcher(sender Sender, dir Directory, templates *TemplateEngine, logger zerolog.Logger) *Dispatcher {
	if templates == nil {
		templates = NewTemplateEngine()
	}
	return &Dispatcher{
		sender:    sender,
		dir:       dir,
		templates: templates,
		logger:    logger.With().Str("component", "notification_dispatcher").Logger(),
	}
}

// Publish implements events.Publisher. Events without a notification type
// are ignored.
func (d *Dispatcher) Publish(ctx context.Context, e events.Event) error {
	typ, ok := eventTypes[e.Type]
	if !ok {
		return nil
	}
	title, message, err := d.templates.Render(typ, e.Attributes)
	if err != nil {
		return err
	}
	msg := Message{
		Title:             title,
		Message:           message,
		Type:              typ,
		RelatedEntityType: EntityMedicationRequest,
		RelatedEntityID:   e.SubjectID,
	}

	if e.Type != events.RequestCreated {
		msg.UserID = e.Attr("consumer_id")
		d.sender.Send(ctx, msg)
		return nil
	}
	return d.broadcast(ctx, msg)
}

func (d *Dispatcher) broadcast(ctx context.Context, msg Message) error {
	orgIDs, err := d.dir.OrganizationIDs(ctx, "manufacturer")
	if err != nil {
		return fmt.Errorf("resolve manufacturer organizations: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFanOut)
	for _, orgID := range orgIDs {
		orgID := orgID
		g.Go(func() error {
			users, err := d.dir.MemberIDs(gctx, orgID, "manufacturer")
			if err != nil {
				d.logger.Warn().Err(err).Str("org_id", orgID).Msg("manufacturer members not resolved")
				return nil
			}
			for _, u := range users {
				m := msg
				m.UserID = u
				d.sender.Send(gctx, m)
			}
			return nil
		})
	}
	return g.Wait()
}
