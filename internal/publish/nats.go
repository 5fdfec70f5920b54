package publish

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/neon/internal/buildcontext"
	"git.home.luguber.info/inful/neon/internal/config"
	"git.home.luguber.info/inful/neon/internal/foundation/errors"
	"git.home.luguber.info/inful/neon/internal/logfields"
	"git.home.luguber.info/inful/neon/internal/pipeline"
	"git.home.luguber.info/inful/neon/internal/retry"
)

// DefaultSubject is used when a nats target does not name one.
const DefaultSubject = "neon.nightly"

const natsConnectTimeout = 10 * time.Second

// Announcement is the JSON message published for a finished build.
type Announcement struct {
	RunID       string             `json:"run_id"`
	Target      string             `json:"target"`
	Artifact    *pipeline.Artifact `json:"artifact"`
	ArchiveName string             `json:"archive_name"`
	Checksum    string             `json:"sha256"`
	Timestamp   time.Time          `json:"timestamp"`
}

// NATSTarget announces the artifact on a NATS subject, through JetStream when
// the target asks for it.
type NATSTarget struct {
	target  config.PublishTarget
	retrier *retry.Retrier
}

// NewNATSTarget returns a nats target. Announcements are stamped with the
// retrier's clock.
func NewNATSTarget(t config.PublishTarget, r *retry.Retrier) *NATSTarget {
	if r == nil {
		r = retry.New(retry.NewPolicy("", 0, 0, 0))
	}
	return &NATSTarget{target: t, retrier: r}
}

func (n *NATSTarget) clock() clockwork.Clock {
	if n.retrier.Clock == nil {
		return clockwork.NewRealClock()
	}
	return n.retrier.Clock
}

func (n *NATSTarget) Name() string { return n.target.Name }

func (n *NATSTarget) subject() string {
	if n.target.Subject != "" {
		return n.target.Subject
	}
	return DefaultSubject
}

func (n *NATSTarget) Publish(ctx context.Context, bc *buildcontext.Context, _ *config.Config, a *pipeline.Artifact) error {
	if err := requireArchive(n.target.Name, a); err != nil {
		return err
	}
	data, err := json.Marshal(n.announcement(bc, a))
	if err != nil {
		return errors.PublishError("failed to marshal announcement").WithCause(err).Build()
	}

	err = n.retrier.Do(ctx, "nats publish "+n.target.Name, func(ctx context.Context) error {
		return n.send(ctx, data)
	})
	if err != nil {
		return publishError(n.target.Name, "nats announcement failed", err)
	}
	slog.Info("Artifact announced",
		logfields.Target(n.target.Name),
		logfields.URL(n.target.URL),
		slog.String("subject", n.subject()))
	return nil
}

func (n *NATSTarget) announcement(bc *buildcontext.Context, a *pipeline.Artifact) Announcement {
	return Announcement{
		RunID:       bc.RunID(),
		Target:      n.target.Name,
		Artifact:    a,
		ArchiveName: filepath.Base(a.Archive),
		Checksum:    a.Checksum,
		Timestamp:   n.clock().Now().UTC(),
	}
}

func (n *NATSTarget) send(ctx context.Context, data []byte) error {
	conn, err := nats.Connect(n.target.URL,
		nats.Name("neon"),
		nats.Timeout(natsConnectTimeout),
		nats.NoReconnect())
	if err != nil {
		return errors.NetworkError("failed to connect to NATS").
			WithCause(err).
			WithContext("url", n.target.URL).
			Build()
	}
	defer conn.Close()

	if n.target.JetStream {
		js, err := jetstream.New(conn)
		if err != nil {
			return errors.PublishError("failed to create JetStream context").WithCause(err).Build()
		}
		if _, err := js.Publish(ctx, n.subject(), data); err != nil {
			return errors.NetworkError("failed to publish to JetStream").
				WithCause(err).
				WithContext("subject", n.subject()).
				Build()
		}
		return nil
	}

	if err := conn.Publish(n.subject(), data); err != nil {
		return errors.NetworkError("failed to publish announcement").WithCause(err).Build()
	}
	flushCtx, cancel := context.WithTimeout(ctx, natsConnectTimeout)
	defer cancel()
	if err := conn.FlushWithContext(flushCtx); err != nil {
		return errors.NetworkError("failed to flush announcement").WithCause(err).Build()
	}
	return nil
}
