package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldSessionID is the standardized structured logging key for casting session identifiers.
	FieldSessionID = "session_id"
	// FieldSpeaker is the standardized structured logging key for screenplay speaker names.
	FieldSpeaker = "speaker"
	// FieldProvider is the standardized structured logging key for TTS provider names.
	FieldProvider = "provider"
	// FieldVoice is the standardized structured logging key for voice identifiers.
	FieldVoice = "voice"
	// FieldVersion is the standardized structured logging key for session document versions.
	FieldVersion = "version"
	// FieldGeneration is the standardized structured logging key for cache publish generations.
	FieldGeneration = "generation"
	// FieldEventType is the standardized structured logging key for machine-readable event names.
	FieldEventType = "event_type"
	// FieldErrorHint is the standardized structured logging key for operator next steps.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized structured logging key for the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)
