package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/uitchat/admissions-rag/internal/core/domain"
	"github.com/uitchat/admissions-rag/internal/infrastructure/resilience"
)

// classifyNATSError decides whether a failed queue call may be retried and
// whether it counts against the breaker. Context cancellation is the caller
// abandoning the ingest job, not a broker fault.
func classifyNATSError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err),
		errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrDisconnected):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

// wrapTemporaryIfNeeded marks retryable broker failures as temporary so a
// queue outage surfaces as 503 on the admin ingest route instead of 500.
func wrapTemporaryIfNeeded(op string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if class := classifyNATSError(err); class.Retryable {
		return domain.WrapError(domain.ErrTemporary, op, err)
	}
	return err
}
