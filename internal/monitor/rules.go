package monitor

import (
	"fmt"

	"perp-trader/internal/events"
	"perp-trader/internal/state"
)

// Rule inspects one bus message and returns an alert text when it fires.
type Rule func(events.Message) (string, bool)

// DefaultRules alert on rejected orders and symbols entering the error state.
func DefaultRules() []Rule {
	return []Rule{rejectedOrder, symbolErrored}
}

func rejectedOrder(msg events.Message) (string, bool) {
	if msg.Type != events.EventOrderRejected {
		return "", false
	}
	o, ok := msg.Payload.(events.OrderEvent)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("order rejected: %s %s %g: %s", o.Symbol, o.Side, o.Qty, o.Error), true
}

func symbolErrored(msg events.Message) (string, bool) {
	if msg.Type != events.EventStatusChange {
		return "", false
	}
	s, ok := msg.Payload.(events.StatusChange)
	if !ok || s.Status != string(state.StatusError) {
		return "", false
	}
	return fmt.Sprintf("symbol %s in error state: %s", s.Symbol, s.Reason), true
}
