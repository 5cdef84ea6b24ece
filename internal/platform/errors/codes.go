// Package errors provides structured, code-carrying errors for the game
// master pipeline.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Generation errors
	CodeGenerationFailed     Code = "GENERATION_FAILED"
	CodeRetryBudgetExhausted Code = "RETRY_BUDGET_EXHAUSTED"
	CodeToolRoundsExceeded   Code = "TOOL_ROUNDS_EXCEEDED"

	// Data model errors
	CodeUnknownRole Code = "UNKNOWN_ROLE"

	// Adventure errors
	CodeAdventureInvalid         Code = "ADVENTURE_INVALID"
	CodeCharacterNotFound        Code = "CHARACTER_NOT_FOUND"
	CodeCharacterAlreadySelected Code = "CHARACTER_ALREADY_SELECTED"

	// Pipeline configuration errors
	CodePipelineInvalid Code = "PIPELINE_INVALID"

	// Capability errors
	CodeCapabilityUnknown         Code = "CAPABILITY_UNKNOWN"
	CodeCapabilityDuplicate       Code = "CAPABILITY_DUPLICATE"
	CodeCapabilityMissingArgument Code = "CAPABILITY_MISSING_ARGUMENT"
	CodeCapabilityFailed          Code = "CAPABILITY_FAILED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// Severity classifies how far an error unwinds a session.
type Severity int

const (
	// SeverityTransient aborts the current exchange; the session continues.
	SeverityTransient Severity = iota
	// SeverityFatal ends the session or fails startup.
	SeverityFatal
)

// Severity maps domain codes to their unwinding behavior.
func (c Code) Severity() Severity {
	switch c {
	case CodeUnknownRole,
		CodeAdventureInvalid,
		CodePipelineInvalid,
		CodeCapabilityUnknown,
		CodeCapabilityDuplicate:
		return SeverityFatal
	default:
		return SeverityTransient
	}
}
