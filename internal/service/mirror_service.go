package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/telhawk-systems/issuemirror/internal/dlq"
	"github.com/telhawk-systems/issuemirror/internal/extractor"
	"github.com/telhawk-systems/issuemirror/internal/logging"
	"github.com/telhawk-systems/issuemirror/internal/metrics"
	"github.com/telhawk-systems/issuemirror/internal/middleware"
	"github.com/telhawk-systems/issuemirror/internal/models"
	"github.com/telhawk-systems/issuemirror/internal/reconciler"
)

// ErrInvalidPayload is returned when the body is not a JSON object.
var ErrInvalidPayload = errors.New("invalid webhook payload")

// deadLetterTimeout bounds a single dead-letter publish.
const deadLetterTimeout = 5 * time.Second

// Webhook outcomes, also used as metric labels.
const (
	OutcomeIgnored    = "ignored"
	OutcomeMalformed  = "malformed"
	OutcomeReconciled = "reconciled"
	OutcomeFailed     = "failed"
)

// Reconciler is satisfied by *reconciler.Reconciler.
type Reconciler interface {
	Reconcile(ctx context.Context, rec models.NormalizedRecord) (reconciler.Result, error)
}

// Outcome reports what happened to one delivery. The webhook is acknowledged
// the same way for every outcome; Outcome exists for logs, tests and replay.
type Outcome struct {
	ObjectKind string                   `json:"object_kind" yaml:"object_kind"`
	Status     string                   `json:"status" yaml:"status"`
	Record     *models.NormalizedRecord `json:"record,omitempty" yaml:"record,omitempty"`
	Result     *reconciler.Result       `json:"result,omitempty" yaml:"result,omitempty"`
	Error      string                   `json:"error,omitempty" yaml:"error,omitempty"`
}

type MirrorService struct {
	reconciler Reconciler
	dlq        dlq.Writer
	logger     *logging.Logger
}

func NewMirrorService(r Reconciler, dead dlq.Writer, logger *logging.Logger) *MirrorService {
	if dead == nil {
		dead = dlq.NoOp{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &MirrorService{reconciler: r, dlq: dead, logger: logger}
}

// HandlePayload mirrors one raw webhook body. It only returns an error when
// body cannot be read as an event at all; reconciliation failures are
// reported in the Outcome.
func (s *MirrorService) HandlePayload(ctx context.Context, body []byte) (Outcome, error) {
	var envelope models.Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		metrics.WebhooksTotal.WithLabelValues("", OutcomeMalformed).Inc()
		return Outcome{Status: OutcomeMalformed, Error: err.Error()}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if envelope.ObjectKind != models.ObjectKindIssue {
		metrics.WebhooksTotal.WithLabelValues(envelope.ObjectKind, OutcomeIgnored).Inc()
		s.logger.DebugContext(ctx, "Ignoring non-issue webhook", logging.ObjectKind(envelope.ObjectKind))
		return Outcome{ObjectKind: envelope.ObjectKind, Status: OutcomeIgnored}, nil
	}

	var event models.IssueEvent
	if err := json.Unmarshal(body, &event); err != nil {
		metrics.WebhooksTotal.WithLabelValues(models.ObjectKindIssue, OutcomeMalformed).Inc()
		s.logger.WarnContext(ctx, "Issue webhook could not be decoded", logging.Error(err))
		return Outcome{ObjectKind: models.ObjectKindIssue, Status: OutcomeMalformed, Error: err.Error()}, nil
	}

	return s.HandleEvent(ctx, &event), nil
}

// HandleEvent normalizes and reconciles a decoded issue event. Once started,
// reconciliation and dead-lettering are not cut short by the caller going
// away; the Notion client timeout and lock wait still bound them.
func (s *MirrorService) HandleEvent(ctx context.Context, event *models.IssueEvent) Outcome {
	ctx = context.WithoutCancel(ctx)
	rec := extractor.Normalize(event)
	outcome := Outcome{ObjectKind: event.ObjectKind, Record: &rec}

	result, err := s.reconciler.Reconcile(ctx, rec)
	outcome.Result = &result

	if err != nil {
		outcome.Status = OutcomeFailed
		outcome.Error = err.Error()
		metrics.WebhooksTotal.WithLabelValues(models.ObjectKindIssue, OutcomeFailed).Inc()
		s.logger.ErrorContext(ctx, "Reconciliation failed",
			logging.IssueID(rec.IssueID),
			logging.Action(string(result.Action)),
			logging.Error(err),
		)
		s.deadLetter(ctx, rec, result, err)
		return outcome
	}

	outcome.Status = OutcomeReconciled
	metrics.WebhooksTotal.WithLabelValues(models.ObjectKindIssue, OutcomeReconciled).Inc()
	s.logger.InfoContext(ctx, "Issue mirrored",
		logging.IssueID(rec.IssueID),
		logging.Action(string(result.Action)),
		logging.PageID(result.PageID),
	)
	return outcome
}

func (s *MirrorService) deadLetter(ctx context.Context, rec models.NormalizedRecord, result reconciler.Result, cause error) {
	entry := dlq.FailedReconciliation{
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(ctx),
		Action:    string(result.Action),
		PageID:    result.PageID,
		Error:     cause.Error(),
		Record:    rec,
	}
	writeCtx, cancel := context.WithTimeout(ctx, deadLetterTimeout)
	defer cancel()
	if err := s.dlq.Write(writeCtx, entry); err != nil {
		s.logger.ErrorContext(ctx, "Failed to dead-letter reconciliation",
			logging.IssueID(rec.IssueID),
			logging.Error(err),
		)
	}
}
