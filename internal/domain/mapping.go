package domain

import "time"

// MappingConfidence classifies how a contract-to-event assignment was made.
type MappingConfidence string

const (
	// ConfidenceLLMVerified marks assignments produced by vector-similarity
	// candidate generation gated by language-model verification.
	ConfidenceLLMVerified MappingConfidence = "embedding+llm-verified"

	// ConfidenceManual marks assignments made by an operator.
	ConfidenceManual MappingConfidence = "manual"
)

// Mapping is the audit trail of one (source, native id) → event assignment.
// One row per pair, overwritten if the contract is ever re-mapped, so every
// assignment stays independently reversible.
type Mapping struct {
	Source     string
	SourceID   string
	EventID    string
	Confidence MappingConfidence
	Agent      string // identifier of the process or operator that mapped it
	MappedAt   time.Time
}
