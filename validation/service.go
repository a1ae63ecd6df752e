package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gatecheck/entities"
	"gatecheck/gate"
	"gatecheck/sign"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/sirupsen/logrus"
)

type TicketRepository interface {
	FindByID(ctx context.Context, ticketID string) (entities.Ticket, error)
}

type PermissionGate interface {
	CanManage(ctx context.Context, actorID, eventID string, capability gate.Capability) (bool, error)
}

type Result struct {
	Accepted bool                    `json:"accepted"`
	Reason   string                  `json:"reason,omitempty"`
	Ticket   *entities.TicketSummary `json:"ticket,omitempty"`

	// Set when the rejection is "already used", for operator context.
	UsedAt *time.Time `json:"used_at,omitempty"`
	UsedBy *string    `json:"used_by,omitempty"`
}

// Service answers "is this presented token a redeemable ticket" without
// mutating anything. The decision order is fixed: token trust, existence,
// permission, then status.
type Service struct {
	tokens  sign.TokenCodec
	tickets TicketRepository
	gate    PermissionGate
}

func NewService(tokens sign.TokenCodec, tickets TicketRepository, permissionGate PermissionGate) Service {
	if tickets == nil {
		panic("tickets repository is required")
	}
	if permissionGate == nil {
		panic("permission gate is required")
	}
	return Service{
		tokens:  tokens,
		tickets: tickets,
		gate:    permissionGate,
	}
}

func (s Service) Validate(ctx context.Context, rawToken, actorID string) (Result, error) {
	token, err := s.tokens.Decode(ctx, rawToken)
	if errors.Is(err, entities.ErrUntrustedToken) {
		return Result{Reason: entities.ReasonUntrustedToken}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("could not decode token: %w", err)
	}

	ticket, err := s.tickets.FindByID(ctx, token.TicketID)
	if errors.Is(err, entities.ErrTicketNotFound) {
		return Result{Reason: entities.ReasonNotFound}, nil
	}
	if err != nil {
		return Result{}, err
	}

	// A token is bound to the event it was issued for; a mismatch means the
	// payload was spliced and the ticket lookup must not leak anything.
	if ticket.EventID != token.EventID {
		return Result{Reason: entities.ReasonUntrustedToken}, nil
	}

	allowed, err := s.gate.CanManage(ctx, actorID, ticket.EventID, gate.CapabilityValidate)
	if err != nil {
		return Result{}, err
	}
	if !allowed {
		return Result{Reason: entities.ReasonForbidden}, nil
	}

	switch ticket.Status {
	case entities.TicketStatusUsed:
		log.FromContext(ctx).WithFields(logrus.Fields{
			"ticket_id": ticket.TicketID,
			"used_by":   ticket.UsedBy,
		}).Info("Validation of an already used ticket")
		summary := ticket.Summary()
		return Result{
			Reason: entities.ReasonAlreadyUsed,
			Ticket: &summary,
			UsedAt: ticket.UsedAt,
			UsedBy: ticket.UsedBy,
		}, nil
	case entities.TicketStatusCancelled:
		return Result{Reason: entities.ReasonCancelled}, nil
	case entities.TicketStatusTransferred:
		return Result{Reason: entities.ReasonTransferred}, nil
	}

	summary := ticket.Summary()
	return Result{Accepted: true, Ticket: &summary}, nil
}
