package logging

// Canonical field names for structured logging.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldTaskID    = "task_id"

	FieldKind      = "kind"
	FieldRule      = "rule"
	FieldToken     = "token"
	FieldArgs      = "args"
	FieldExitCode  = "exit_code"
	FieldLine      = "line"
	FieldPath      = "path"
	FieldDuration  = "duration"
	FieldStatus    = "status"
	FieldMethod    = "method"
	FieldRoute     = "route"
	FieldClientIP  = "client_ip"
	FieldOutputLen = "output_bytes"
)
