package logging

// Standardized field names for structured logging, shared by every package so
// a single submission can be followed across the workflow in the log output.
const (
	FieldFile        = "file_path"
	FieldDirectory   = "directory"
	FieldSubmission  = "submission_id"
	FieldToken       = "token"
	FieldState       = "state"
	FieldAttempt     = "attempt"
	FieldPoll        = "poll"
	FieldTrackingKey = "tracking_key"
	FieldMismatches  = "mismatches"
	FieldInstitution = "institution"
	FieldComponent   = "component"
	FieldOperation   = "operation"
	FieldStatus      = "status"
	FieldError       = "error"
	FieldDuration    = "duration_ms"
	FieldCount       = "count"
	FieldMatched     = "matched"
	FieldRemoteAddr  = "remote_addr"
)
