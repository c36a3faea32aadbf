package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// wizard
	"wizard.opened":  {},
	"wizard.closed":  {},
	"wizard.advance": {},
	"wizard.retreat": {},
	"wizard.select":  {},

	// step data
	"step.updated":   {},
	"step.discarded": {},

	// recommendations
	"recommend.requested": {},
	"recommend.received":  {},
	"recommend.failed":    {},
	"recommend.reset":     {},
	"recommend.applied":   {},

	// validation
	"validate.requested": {},
	"validate.completed": {},
	"validate.failed":    {},

	// scoping conversation
	"scope.message_sent":     {},
	"scope.message_received": {},
	"scope.extracted":        {},
	"scope.adjusted":         {},
	"scope.confirmed":        {},

	// channel
	"channel.connected":    {},
	"channel.disconnected": {},
	"channel.error":        {},

	// impact previews
	"impact.requested": {},
	"impact.failed":    {},

	// suggestion feedback
	"suggestion.feedback": {},

	// launch
	"challenge.launched":      {},
	"challenge.launch_failed": {},

	// system
	"system.startup":         {},
	"system.shutdown":        {},
	"system.error":           {},
	"system.monitor_started": {},
}

// Validate reports whether event is a known event name.
func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
