// Package profiler converts risk questionnaire answers into a 1-10 risk
// score, a target layer allocation and a profile label.
package profiler

import "github.com/blumarkets/layers/internal/domain"

// Dimension tags a question with the aspect of risk it measures.
type Dimension string

const (
	DimCapacity    Dimension = "CAPACITY"    // financial ability to absorb losses
	DimWillingness Dimension = "WILLINGNESS" // psychological tolerance
	DimHorizon     Dimension = "HORIZON"     // investment time frame
	DimGoal        Dimension = "GOAL"        // what the money is for
)

// Behavioral flags attached to specific answer options.
const (
	FlagPanicSeller    = "panic_seller"
	FlagGambler        = "gambler"
	FlagHighProportion = "high_proportion"
	FlagInexperienced  = "inexperienced"
	FlagHorizonUnder1Y = "horizon_lt_1y"
	FlagHorizon1To3Y   = "horizon_1_3y"
)

// QuestionID identifies a questionnaire question.
type QuestionID string

// Canonical question IDs.
const (
	QIncomeStability   QuestionID = "income_stability"
	QSavingsProportion QuestionID = "savings_proportion"
	QExperience        QuestionID = "experience"
	QLossTolerance     QuestionID = "loss_tolerance"
	QCrashReaction     QuestionID = "crash_reaction"
	QRiskAppetite      QuestionID = "risk_appetite"
	QHorizon           QuestionID = "horizon"
	QGoal              QuestionID = "goal"
)

// Option is one selectable answer with its score contribution and any
// behavioral flags it raises.
type Option struct {
	Text  string   `json:"text"`
	Score float64  `json:"score"` // 1..10
	Flags []string `json:"flags,omitempty"`
}

// Question is one questionnaire entry.
type Question struct {
	ID        QuestionID `json:"id"`
	Text      string     `json:"text"`
	Dimension Dimension  `json:"dimension"`
	Weight    float64    `json:"weight"`
	Options   []Option   `json:"options"`
}

// RiskProfile is the scored outcome. Always produced, even for partial
// input, so the questionnaire UI can show a live preview.
type RiskProfile struct {
	Score      int                     `json:"score"` // 1..10
	Allocation domain.TargetAllocation `json:"allocation"`
	Label      string                  `json:"label"`
	LabelFA    string                  `json:"label_fa"`
	Dimensions map[Dimension]float64   `json:"dimensions"`
	Flags      []string                `json:"flags,omitempty"`
}
