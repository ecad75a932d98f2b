package dlq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telhawk-systems/issuemirror/internal/models"
)

type recordingPublisher struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, data []byte) error {
	if p.err != nil {
		return p.err
	}
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func TestQueue_Write(t *testing.T) {
	pub := &recordingPublisher{}
	q := NewQueue(pub)

	entry := FailedReconciliation{
		RequestID: "req-1",
		Action:    "create",
		Error:     "notion create: status 400",
		Record:    models.NormalizedRecord{IssueID: "42", Title: "Fix crash"},
	}
	require.NoError(t, q.Write(context.Background(), entry))

	require.Len(t, pub.subjects, 1)
	assert.Equal(t, "issuemirror.dlq.create", pub.subjects[0])

	var got FailedReconciliation
	require.NoError(t, json.Unmarshal(pub.payloads[0], &got))
	assert.Equal(t, "42", got.Record.IssueID)
	assert.Equal(t, "req-1", got.RequestID)
	assert.False(t, got.Timestamp.IsZero())
}

func TestQueue_WriteKeepsTimestamp(t *testing.T) {
	pub := &recordingPublisher{}
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, NewQueue(pub).Write(context.Background(), FailedReconciliation{Timestamp: ts, Action: "update"}))

	var got FailedReconciliation
	require.NoError(t, json.Unmarshal(pub.payloads[0], &got))
	assert.True(t, ts.Equal(got.Timestamp))
}

func TestQueue_PublishError(t *testing.T) {
	q := NewQueue(&recordingPublisher{err: errors.New("nats down")})

	err := q.Write(context.Background(), FailedReconciliation{Action: "create"})
	assert.ErrorContains(t, err, "nats down")
}

func TestNoOp(t *testing.T) {
	var w Writer = NoOp{}
	assert.NoError(t, w.Write(context.Background(), FailedReconciliation{}))
}
