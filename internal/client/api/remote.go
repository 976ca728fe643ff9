package api

import (
	"context"
	"errors"

	"github.com/iudanet/entitysync/internal/models"
	"github.com/iudanet/entitysync/pkg/api"
)

//go:generate moq -out remote_mock.go . Remote

// ErrUnreachable indicates that the server could not be reached.
var ErrUnreachable = errors.New("server unreachable")

// OutcomeKind classifies the result of a remote write.
type OutcomeKind int

const (
	// OutcomeOK - сервер принял операцию
	OutcomeOK OutcomeKind = iota
	// OutcomeUnreachable - сервер недоступен, нужно работать локально
	OutcomeUnreachable
	// OutcomeRejected - сервер ответил, но с ошибками
	OutcomeRejected
)

// String returns the outcome name used in logs and metrics.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeUnreachable:
		return "unreachable"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Outcome is the result of a remote write.
// Results are only meaningful when the server was reached.
type Outcome struct {
	Results []models.TransactionResult
	Kind    OutcomeKind
}

// Unreachable returns the outcome of a write that never reached the server.
func Unreachable() Outcome {
	return Outcome{Kind: OutcomeUnreachable}
}

// OutcomeFromResults classifies server results by the presence of errors.
func OutcomeFromResults(results []models.TransactionResult) Outcome {
	kind := OutcomeOK
	if len(models.CollectErrors(results)) > 0 {
		kind = OutcomeRejected
	}
	return Outcome{Kind: kind, Results: results}
}

// Errors aggregates the errors of every result.
func (o Outcome) Errors() []string {
	return models.CollectErrors(o.Results)
}

// Remote defines the server operations the sync engine relies on.
// Writes never report connectivity problems as errors: they return an
// Unreachable outcome so the caller can fall back to local storage.
type Remote interface {
	// SaveEntity creates or updates a single entity
	SaveEntity(ctx context.Context, typ string, e models.Entity) (Outcome, error)

	// SaveEntities creates or updates entities of several types at once
	SaveEntities(ctx context.Context, batch models.Batch) (Outcome, error)

	// DeleteEntity deletes a single entity
	DeleteEntity(ctx context.Context, typ string, id int64) (Outcome, error)

	// DeleteEntities deletes several entities of one type
	DeleteEntities(ctx context.Context, typ string, ids []int64) (Outcome, error)

	// UpdateServer pushes changes accumulated offline
	UpdateServer(ctx context.Context, req api.UpdateServerRequest) (Outcome, error)

	// GetChangesSince pulls server changes after the watermark.
	// Returns an error wrapping ErrUnreachable when the server can't be reached.
	GetChangesSince(ctx context.Context, token string) (*api.Changes, error)
}
