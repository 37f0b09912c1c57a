// Package events provides event management functionality.
package events

import (
	"time"
)

// EventType represents different event types
type EventType string

const (
	ErrorOccurred EventType = "ERROR_OCCURRED"

	// Portfolio lifecycle
	FundsAdded       EventType = "FUNDS_ADDED"
	TradeCommitted   EventType = "TRADE_COMMITTED"
	RebalanceApplied EventType = "REBALANCE_APPLIED"
	TargetChanged    EventType = "TARGET_CHANGED"

	// Lending and protection
	LoanOpened          EventType = "LOAN_OPENED"
	LoanRepaid          EventType = "LOAN_REPAID"
	LoanClosed          EventType = "LOAN_CLOSED"
	ProtectionPurchased EventType = "PROTECTION_PURCHASED"
	ProtectionExpired   EventType = "PROTECTION_EXPIRED"

	// Market data
	PriceUpdated    EventType = "PRICE_UPDATED"
	PricefeedStatus EventType = "PRICEFEED_STATUS"

	// Background jobs
	BoundaryAlert     EventType = "BOUNDARY_ALERT"
	InstallmentDue    EventType = "INSTALLMENT_DUE"
	SnapshotRecorded  EventType = "SNAPSHOT_RECORDED"
	SimulationStarted EventType = "SIMULATION_STARTED"
	SimulationDone    EventType = "SIMULATION_DONE"
)

// Event represents a system event with typed data
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}
