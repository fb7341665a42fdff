package types

type RevocationRequest struct {
	CredentialID string `json:"credential_id"`
	EpochID      int64  `json:"epoch_id"`
	IssuerID     string `json:"issuer_id,omitempty"`
	PrimeValue   string `json:"prime_value,omitempty"`
}

// RevokeResult is what a revocation caller gets back from the adapter.  The
// external commit is the source of truth; Recorded reports whether the local
// ledger caught up in the same call.
type RevokeResult struct {
	CredentialID string `json:"credential_id"`
	EpochID      int64  `json:"epoch_id"`
	PrimeValue   string `json:"prime_value,omitempty"`
	Recorded     bool   `json:"recorded"`
}

type BatchItem struct {
	CredentialID string `json:"credential_id"`
	PrimeValue   string `json:"prime_value,omitempty"`
	EpochID      int64  `json:"epoch_id"`
	IssuerID     string `json:"issuer_id,omitempty"`
}

type AddToBatchRequest struct {
	Items []BatchItem `json:"items"`
}

// ProcessBatchResult is a structured outcome, not an error channel: batch
// processing is called defensively in pipelines, so expected failures (empty
// batch, already processed) come back as Success=false with a message.
type ProcessBatchResult struct {
	Success         bool   `json:"success"`
	ItemCount       int    `json:"item_count,omitempty"`
	ExecutionTimeMs int64  `json:"execution_time_ms,omitempty"`
	Error           string `json:"error,omitempty"`
}
