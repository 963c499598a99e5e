package monitor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"perp-trader/internal/events"
)

// Monitor watches the event bus and emits alerts for messages matching its rules.
type Monitor struct {
	Bus   *events.Bus
	Sink  AlertSink
	Rules []Rule
	Log   *logrus.Entry
}

// Start subscribes to the bus and evaluates rules until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	if m.Bus == nil || m.Sink == nil {
		if m.Log != nil {
			m.Log.Warn("monitor not fully configured; skipping")
		}
		return
	}
	if m.Rules == nil {
		m.Rules = DefaultRules()
	}
	stream, unsub := m.Bus.SubscribeAll(50)
	go func() {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-stream:
				if !ok {
					return
				}
				m.evaluate(msg)
			}
		}
	}()
}

func (m *Monitor) evaluate(msg events.Message) {
	for _, rule := range m.Rules {
		text, fired := rule(msg)
		if !fired {
			continue
		}
		if err := m.Sink.Send(formatAlert(msg.Time, text)); err != nil && m.Log != nil {
			m.Log.WithError(err).Warn("alert delivery failed")
		}
	}
}

func formatAlert(at time.Time, text string) string {
	return "[" + at.Format(time.RFC3339) + "] " + text
}
