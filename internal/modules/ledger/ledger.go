// Package ledger is the append-only action journal. Every confirmed
// action lands here with the snapshots it was decided against, so any
// past decision can be reconstructed exactly as the user saw it.
package ledger

import (
	"time"

	"github.com/blumarkets/layers/internal/domain"
)

// Entry is one immutable journal record. Entries are never updated or
// deleted once written.
type Entry struct {
	ID             string                   `json:"id"` // ULID, sorts by creation time
	IdempotencyKey string                   `json:"idempotency_key"`
	Kind           domain.ActionKind        `json:"kind"`
	Payload        domain.ActionPayload     `json:"payload"`
	Before         domain.PortfolioSnapshot `json:"before"`
	After          domain.PortfolioSnapshot `json:"after"`
	Boundary       domain.Boundary          `json:"boundary"`
	FrictionCopy   []string                 `json:"friction_copy,omitempty"`
	CreatedAt      time.Time                `json:"created_at"`
}
