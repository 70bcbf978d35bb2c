package core

import (
	"fmt"

	"github.com/google/uuid"
)

// NewEventID returns a fresh event id, e.g. "evt_1b4e28ba-...".
func NewEventID() string {
	return fmt.Sprintf("evt_%s", uuid.NewString())
}

// NewTraceID returns a fresh trace id, e.g. "trace_1b4e28ba-...".
func NewTraceID() string {
	return fmt.Sprintf("trace_%s", uuid.NewString())
}

// NewAlertID returns a fresh alert id, e.g. "alert_1b4e28ba-...".
func NewAlertID() string {
	return fmt.Sprintf("alert_%s", uuid.NewString())
}
