package types

type EpochCount struct {
	EpochID int64 `json:"epoch_id"`
	Count   int64 `json:"count"`
}

type BatchStats struct {
	TotalBatches     int64 `json:"total_batches"`
	ProcessedBatches int64 `json:"processed_batches"`
	PendingBatches   int64 `json:"pending_batches"`
	TotalItems       int64 `json:"total_items"`
}

// PerformanceMetric aggregates the append-only metric log per operation type.
type PerformanceMetric struct {
	OperationType  string  `json:"operation_type"`
	Count          int64   `json:"count"`
	AvgExecutionMs float64 `json:"avg_execution_ms"`
	FalsePositives int64   `json:"false_positives"`
}

type RevocationStats struct {
	TotalRevocations int64               `json:"total_revocations"`
	ByEpoch          []EpochCount        `json:"revocations_by_epoch"`
	Batches          BatchStats          `json:"batch_stats"`
	Performance      []PerformanceMetric `json:"performance_metrics"`
}

type FalsePositiveStats struct {
	Total             int64        `json:"total"`
	ByEpoch           []EpochCount `json:"counts_by_epoch"`
	ProblematicEpochs []int64      `json:"problematic_epochs,omitempty"`
	Recommendation    string       `json:"recommendation"`
}
