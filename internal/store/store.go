package store

import (
	"context"
	"errors"

	"github.com/groblegark/scout/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrIllegalTransition is returned when a status update would violate the
// event lifecycle. Re-applying the current status is not an error.
var ErrIllegalTransition = errors.New("illegal status transition")

// Store defines the persistence interface for the event lifecycle. All
// writes are safe to repeat with the same arguments.
type Store interface {
	// Events
	CreateEvent(ctx context.Context, event *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, int, error) // returns events, total count, error
	GetEventsByStatus(ctx context.Context, status model.Status) ([]*model.Event, error)
	UpdateEvent(ctx context.Context, event *model.Event) error
	UpdateEventStatus(ctx context.Context, id string, status model.Status) error
	SaveEventScore(ctx context.Context, id string, score model.ScoreFactors) error
	FindEventBySource(ctx context.Context, source, title string) (*model.Event, error)

	// Approval requests
	CreateApproval(ctx context.Context, req *model.ApprovalRequest) error
	GetApproval(ctx context.Context, id string) (*model.ApprovalRequest, error)
	OpenApprovalForEvent(ctx context.Context, eventID string) (*model.ApprovalRequest, error)
	ListOpenApprovals(ctx context.Context) ([]*model.ApprovalRequest, error)
	ResolveApproval(ctx context.Context, id string, resp *model.ApprovalResponse) error
	ExpireApproval(ctx context.Context, id string) error
	MarkApprovalReminded(ctx context.Context, id string) error

	// Registration results
	SaveRegistrationResult(ctx context.Context, result *model.RegistrationResult) error
	GetRegistrationResult(ctx context.Context, eventID string) (*model.RegistrationResult, error)

	// Lifecycle
	Close() error
}
