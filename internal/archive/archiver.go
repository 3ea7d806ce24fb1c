package archive

import (
	"context"
	"fmt"
	"time"
)

const (
	// writeTimeout bounds one insert from the MQTT delivery goroutine.
	writeTimeout = 2 * time.Second

	// pruneInterval is how often expired messages are deleted.
	pruneInterval = time.Hour
)

// Logger is the logging surface the archiver needs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Archiver stores every message it is handed and prunes old ones.
type Archiver struct {
	repo      Repository
	retention time.Duration
	logger    Logger
	now       func() time.Time
}

// NewArchiver creates an archiver over repo. Zero retention keeps messages forever.
func NewArchiver(repo Repository, retention time.Duration, logger Logger) *Archiver {
	return &Archiver{
		repo:      repo,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Handle archives one message. It has the mqtt.MessageHandler signature.
func (a *Archiver) Handle(topic string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	// The transport may reuse its buffer after the handler returns.
	data := make([]byte, len(payload))
	copy(data, payload)

	msg := &Message{
		Topic:      topic,
		Payload:    data,
		ReceivedAt: a.now().UTC(),
	}
	if err := a.repo.Create(ctx, msg); err != nil {
		return fmt.Errorf("archiving message on %s: %w", topic, err)
	}
	return nil
}

// Prune deletes messages older than the retention period.
func (a *Archiver) Prune(ctx context.Context) (int64, error) {
	if a.retention <= 0 {
		return 0, nil
	}
	return a.repo.DeleteBefore(ctx, a.now().Add(-a.retention))
}

// Run prunes once immediately and then every pruneInterval until ctx is done.
func (a *Archiver) Run(ctx context.Context) {
	if a.retention <= 0 {
		return
	}

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		if n, err := a.Prune(ctx); err != nil {
			a.logger.Warn("archive prune failed", "error", err)
		} else if n > 0 {
			a.logger.Info("archive pruned", "deleted", n, "retention", a.retention)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
