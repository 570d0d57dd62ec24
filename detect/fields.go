package detect

import (
	"time"

	"argus/core"
)

// ResolveField looks up a field value on an event: well-known top-level
// attributes first, then the metadata map. Unresolved fields report
// present=false and are treated as non-matching by every modifier; resolution
// never fails.
func ResolveField(event *core.SecurityEvent, field string) (core.FieldValue, bool) {
	switch field {
	case "id":
		return core.StringValue(event.ID), true
	case "timestamp":
		return core.StringValue(event.Timestamp.UTC().Format(time.RFC3339)), true
	case "source":
		return core.StringValue(event.Source), true
	case "severity":
		return core.StringValue(string(event.Severity)), true
	case "category":
		return core.StringValue(event.Category), true
	case "description":
		return core.StringValue(event.Description), true
	case "host":
		return core.StringValue(event.Host), true
	}

	value, ok := event.Metadata[field]
	return value, ok
}
