package optimization

import "context"

// MarketData supplies the historical inputs of an optimization run.
// Implementations return assets in a stable order shared by both methods.
type MarketData interface {
	ReturnMatrix(ctx context.Context, tickers []string) (*ReturnMatrix, error)
	LatestCloses(ctx context.Context, tickers []string) ([]float64, error)
}

// AllocationStore persists selected allocations.
type AllocationStore interface {
	SaveAllocations(ctx context.Context, results []*AllocationResult) error
}

// RunCache keeps recent run results for retrieval by ID.
type RunCache interface {
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
}

// RunArchiver ships finished runs to long-term storage.
type RunArchiver interface {
	ArchiveRun(ctx context.Context, run *RunResult) error
}
