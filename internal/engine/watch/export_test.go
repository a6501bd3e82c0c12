package watch

import "go.trai.ch/tint/internal/core/ports"

// ApplyEvents exposes the event folding step to tests.
func (e *Engine) ApplyEvents(events []ports.WatchEvent) {
	e.applyEvents(events)
}
