package dlq

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// StreamName is the JetStream stream holding dead letters.
const StreamName = "ISSUEMIRROR_DLQ"

// JetStreamPublisher publishes dead letters to a durable JetStream stream,
// so every instance writes to the same place.
type JetStreamPublisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
}

// NewJetStreamPublisher connects to url and creates or updates the stream.
func NewJetStreamPublisher(ctx context.Context, url string) (*JetStreamPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("issuemirror-dlq"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectPrefix + ">"},
		MaxAge:    7 * 24 * time.Hour,
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create dlq stream: %w", err)
	}

	return &JetStreamPublisher{conn: conn, js: js, stream: stream}, nil
}

func (p *JetStreamPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	_, err := p.js.Publish(ctx, subject, data)
	return err
}

// Pending returns the number of messages currently in the stream.
func (p *JetStreamPublisher) Pending(ctx context.Context) (uint64, error) {
	info, err := p.stream.Info(ctx)
	if err != nil {
		return 0, fmt.Errorf("dlq stream info: %w", err)
	}
	return info.State.Msgs, nil
}

func (p *JetStreamPublisher) Close() error {
	return p.conn.Drain()
}
