package types

// Decision method tags.  Each verification resolves through exactly one of
// these paths; the tag is returned to the caller and recorded verbatim as
// the operation_type of the matching metric row.
const (
	// MethodFilterTrusted: the upstream membership filter said "not revoked".
	// The filter has no false negatives, so the verdict is trusted outright.
	MethodFilterTrusted = "bloom-filter"

	// MethodDefinitive: a revocation fact exists in the ledger.
	MethodDefinitive = "sql-definitive"

	// MethodFalsePositiveCache: the filter flagged the credential but the
	// discrepancy was already on record as a known false positive.
	MethodFalsePositiveCache = "false-positive-cache"

	// MethodNewFalsePositive: first observed discrepancy for this
	// (credential, epoch); recorded and trusted as valid.
	MethodNewFalsePositive = "new-false-positive"

	// MethodExternal: the ledger could not resolve the verification and the
	// external collaborator's own verdict was returned unmodified.
	MethodExternal = "external"

	// OpBatchRevocation tags per-epoch-group timings during batch processing.
	OpBatchRevocation = "batch-revocation"
)

// EpochUnknown is recorded when the external revocation commit carries no
// epoch metadata.
const EpochUnknown int64 = -1

type VerifyRequest struct {
	CredentialID    string `json:"credential_id"`
	EpochID         int64  `json:"epoch_id"`
	PossiblyRevoked bool   `json:"possibly_revoked"`
}

type VerifyResult struct {
	Valid          bool   `json:"valid"`
	Method         string `json:"method"`
	RevocationTime string `json:"revocation_time,omitempty"` // RFC3339, sql-definitive only
	Occurrences    int64  `json:"occurrences,omitempty"`
	Optimized      bool   `json:"optimized,omitempty"`
}

type BatchVerifyRequest struct {
	Credentials []VerifyRequest `json:"credentials"`
}

type BatchVerifyResponse struct {
	Results map[string]VerifyResult `json:"results"`
}
