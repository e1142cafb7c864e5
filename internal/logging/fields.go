package logging

// Standardized attribute keys shared across components so log consumers can
// filter without guessing spellings.
const (
	FieldComponent = "component"

	FieldKey = "key"

	FieldKind = "kind"

	FieldProvider = "provider"

	FieldTaskID = "task_id"

	FieldGeneration = "generation"

	FieldEventType = "event_type"

	FieldErrorHint = "error_hint"
)
