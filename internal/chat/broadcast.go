package chat

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/omochice/linechat/pkg/protocol"
)

// Broadcaster fans message frames out to every registered session.
type Broadcaster struct {
	registry *Registry
	timeout  time.Duration
	log      logrus.FieldLogger
}

// NewBroadcaster creates a Broadcaster over registry. A positive timeout
// bounds each individual send.
func NewBroadcaster(registry *Registry, timeout time.Duration, log logrus.FieldLogger) *Broadcaster {
	return &Broadcaster{registry: registry, timeout: timeout, log: log}
}

// Broadcast sends text to every session except exclude (nil excludes no
// one) in registration order and returns the number of successful sends.
// A failing peer is logged and skipped.
func (b *Broadcaster) Broadcast(ctx context.Context, exclude *Session, text string) int {
	peers := b.registry.Snapshot(exclude)
	payload := []byte(clip(text))

	delivered := 0
	for _, p := range peers {
		if err := b.send(ctx, p, payload); err != nil {
			b.log.WithFields(logrus.Fields{
				"ip":   p.IP,
				"port": p.Port,
				"name": p.Name,
			}).WithError(err).Warn("broadcast failed")
			continue
		}
		delivered++
	}
	return delivered
}

func (b *Broadcaster) send(ctx context.Context, p Peer, payload []byte) error {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	return p.Conn.Send(ctx, protocol.FrameMessage, payload)
}
