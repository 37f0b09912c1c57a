package events

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// FundsAddedData contains data for FundsAdded events
type FundsAddedData struct {
	AmountIRR float64 `json:"amount_irr"`
	CashIRR   float64 `json:"cash_irr"`
}

// EventType returns the event type for FundsAddedData
func (d *FundsAddedData) EventType() EventType { return FundsAdded }

// TradeCommittedData contains data for TradeCommitted events
type TradeCommittedData struct {
	TradeID   string  `json:"trade_id"`
	Side      string  `json:"side"`
	AssetID   string  `json:"asset_id"`
	AmountIRR float64 `json:"amount_irr"`
	Quantity  float64 `json:"quantity"`
	SpreadIRR float64 `json:"spread_irr"`
	Boundary  string  `json:"boundary"`
}

// EventType returns the event type for TradeCommittedData
func (d *TradeCommittedData) EventType() EventType { return TradeCommitted }

// RebalanceAppliedData contains data for RebalanceApplied events
type RebalanceAppliedData struct {
	Trades        int     `json:"trades"`
	ResidualDrift float64 `json:"residual_drift"`
	DeployedCash  bool    `json:"deployed_cash"`
}

// EventType returns the event type for RebalanceAppliedData
func (d *RebalanceAppliedData) EventType() EventType { return RebalanceApplied }

// TargetChangedData contains data for TargetChanged events
type TargetChangedData struct {
	RiskScore  int     `json:"risk_score"`
	Foundation float64 `json:"foundation"`
	Growth     float64 `json:"growth"`
	Upside     float64 `json:"upside"`
}

// EventType returns the event type for TargetChangedData
func (d *TargetChangedData) EventType() EventType { return TargetChanged }

// LoanOpenedData contains data for LoanOpened events
type LoanOpenedData struct {
	LoanID            string  `json:"loan_id"`
	CollateralAssetID string  `json:"collateral_asset_id"`
	PrincipalIRR      float64 `json:"principal_irr"`
	DurationDays      int     `json:"duration_days"`
}

// EventType returns the event type for LoanOpenedData
func (d *LoanOpenedData) EventType() EventType { return LoanOpened }

// LoanRepaidData contains data for LoanRepaid events
type LoanRepaidData struct {
	LoanID     string  `json:"loan_id"`
	AmountIRR  float64 `json:"amount_irr"`
	Settlement bool    `json:"settlement"`
	Closed     bool    `json:"closed"`
}

// EventType returns the event type for LoanRepaidData
func (d *LoanRepaidData) EventType() EventType { return LoanRepaid }

// ProtectionPurchasedData contains data for ProtectionPurchased events
type ProtectionPurchasedData struct {
	ProtectionID string  `json:"protection_id"`
	AssetID      string  `json:"asset_id"`
	NotionalIRR  float64 `json:"notional_irr"`
	PremiumIRR   float64 `json:"premium_irr"`
	DurationDays int     `json:"duration_days"`
}

// EventType returns the event type for ProtectionPurchasedData
func (d *ProtectionPurchasedData) EventType() EventType { return ProtectionPurchased }

// PriceUpdatedData contains data for PriceUpdated events
type PriceUpdatedData struct {
	Assets int     `json:"assets"`
	FxRate float64 `json:"fx_rate"`
}

// EventType returns the event type for PriceUpdatedData
func (d *PriceUpdatedData) EventType() EventType { return PriceUpdated }

// PricefeedStatusData contains data for PricefeedStatus events
type PricefeedStatusData struct {
	Connected bool   `json:"connected"`
	Source    string `json:"source"`
}

// EventType returns the event type for PricefeedStatusData
func (d *PricefeedStatusData) EventType() EventType { return PricefeedStatus }

// BoundaryAlertData contains data for BoundaryAlert events
type BoundaryAlertData struct {
	Boundary string  `json:"boundary"`
	Drift    float64 `json:"drift"`
}

// EventType returns the event type for BoundaryAlertData
func (d *BoundaryAlertData) EventType() EventType { return BoundaryAlert }

// InstallmentDueData contains data for InstallmentDue events
type InstallmentDueData struct {
	LoanID    string  `json:"loan_id"`
	Seq       int     `json:"seq"`
	AmountIRR float64 `json:"amount_irr"`
	DueAt     string  `json:"due_at"`
}

// EventType returns the event type for InstallmentDueData
func (d *InstallmentDueData) EventType() EventType { return InstallmentDue }

// SnapshotRecordedData contains data for SnapshotRecorded events
type SnapshotRecordedData struct {
	TotalValueIRR float64 `json:"total_value_irr"`
	Drift         float64 `json:"drift"`
}

// EventType returns the event type for SnapshotRecordedData
func (d *SnapshotRecordedData) EventType() EventType { return SnapshotRecorded }

// SimulationDoneData contains data for SimulationDone events
type SimulationDoneData struct {
	Scenario    string  `json:"scenario"`
	Days        int     `json:"days"`
	NetReturn   float64 `json:"net_return"`
	MaxDrawdown float64 `json:"max_drawdown"`
	FeesIRR     float64 `json:"fees_irr"`
}

// EventType returns the event type for SimulationDoneData
func (d *SimulationDoneData) EventType() EventType { return SimulationDone }

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType { return ErrorOccurred }
