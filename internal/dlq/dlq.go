// Package dlq records reconciliations that could not be written to Notion so
// they can be inspected and replayed by hand.
package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/telhawk-systems/issuemirror/internal/metrics"
	"github.com/telhawk-systems/issuemirror/internal/models"
)

// SubjectPrefix is prepended to the failed action to form the subject.
const SubjectPrefix = "issuemirror.dlq."

// FailedReconciliation is one dead-lettered event.
type FailedReconciliation struct {
	Timestamp time.Time               `json:"timestamp"`
	RequestID string                  `json:"request_id,omitempty"`
	Action    string                  `json:"action"`
	PageID    string                  `json:"page_id,omitempty"`
	Error     string                  `json:"error"`
	Record    models.NormalizedRecord `json:"record"`
}

// Writer accepts failed reconciliations.
type Writer interface {
	Write(ctx context.Context, entry FailedReconciliation) error
}

// Publisher is the transport a Queue writes to.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Queue serializes entries and hands them to a Publisher.
type Queue struct {
	pub Publisher
}

func NewQueue(pub Publisher) *Queue {
	return &Queue{pub: pub}
}

func (q *Queue) Write(ctx context.Context, entry FailedReconciliation) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		metrics.DeadLettersTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("marshal dlq entry: %w", err)
	}

	if err := q.pub.Publish(ctx, SubjectPrefix+entry.Action, data); err != nil {
		metrics.DeadLettersTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("publish dlq entry: %w", err)
	}

	metrics.DeadLettersTotal.WithLabelValues("published").Inc()
	return nil
}

// NoOp discards entries.
type NoOp struct{}

func (NoOp) Write(context.Context, FailedReconciliation) error {
	return nil
}
