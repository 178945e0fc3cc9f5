// Package store persists allocation results and task metadata as keyed JSON
// documents, with interchangeable local-file and S3 backends.
package store

import (
	"context"
	"math/rand"
	"time"

	"github.com/quantfold/allocator-bot/internal/modules/allocation"
)

// TaskRecord is the resolved task stored alongside its allocation under the
// same id. Created once when an allocation succeeds, never mutated.
type TaskRecord struct {
	AssetSymbols     []string `json:"asset_symbols"`
	TotalInvestment  float64  `json:"total_investment"`
	StartDate        string   `json:"start_date"`
	EndDate          string   `json:"end_date"`
	RiskFreeRate     float64  `json:"risk_free_rate"`
	TargetReturn     float64  `json:"target_return"`
	TargetVolatility float64  `json:"target_volatility"`
	Date             string   `json:"date"`
}

// Store is the persistence contract for allocations and tasks. Saves are
// read-modify-write over the whole backing document; a missing document
// loads as an empty collection, never an error.
//
// Both implementations serialize their own saves through a mutex, so two
// concurrent saves within one process cannot lose each other's write.
// Cross-process writers still race; the backends provide no conditional-put
// protection.
type Store interface {
	SaveAllocation(ctx context.Context, id string, rows []allocation.Row) error
	LoadAllocations(ctx context.Context) (map[string][]allocation.Row, error)
	SaveTask(ctx context.Context, id string, task TaskRecord) error
	LoadTasks(ctx context.Context) (map[string]TaskRecord, error)
}

const base36Chars = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewID generates a short opaque identifier: a 2-character base-36 encoding
// of the truncated millisecond timestamp plus a 2-character random base-36
// suffix. Collisions are improbable enough to accept, not eliminated.
func NewID() string {
	timestamp := int(time.Now().UnixMilli() % 1000)

	encoded := ""
	for timestamp > 0 {
		encoded = string(base36Chars[timestamp%36]) + encoded
		timestamp /= 36
	}
	for len(encoded) < 2 {
		encoded = "0" + encoded
	}

	suffix := make([]byte, 2)
	for i := range suffix {
		suffix[i] = base36Chars[rand.Intn(len(base36Chars))]
	}

	return encoded + string(suffix)
}
