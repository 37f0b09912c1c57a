package profiler

import "github.com/blumarkets/layers/internal/domain"

// tier maps one discrete risk score to its target allocation and label.
type tier struct {
	Allocation domain.TargetAllocation
	Label      string
	LabelFA    string
}

// tiers is the product-owned lookup table for scores 1-10. The tiers are
// a product decision, not a continuous function; do not interpolate.
// Every allocation respects the FOUNDATION floor and UPSIDE ceiling.
var tiers = map[int]tier{
	1:  {domain.TargetAllocation{Foundation: 0.80, Growth: 0.15, Upside: 0.05}, "Very Conservative", "بسیار محتاط"},
	2:  {domain.TargetAllocation{Foundation: 0.75, Growth: 0.20, Upside: 0.05}, "Conservative", "محتاط"},
	3:  {domain.TargetAllocation{Foundation: 0.70, Growth: 0.22, Upside: 0.08}, "Cautious", "محافظه‌کار"},
	4:  {domain.TargetAllocation{Foundation: 0.60, Growth: 0.30, Upside: 0.10}, "Moderately Cautious", "نسبتاً محتاط"},
	5:  {domain.TargetAllocation{Foundation: 0.55, Growth: 0.33, Upside: 0.12}, "Balanced", "متعادل"},
	6:  {domain.TargetAllocation{Foundation: 0.50, Growth: 0.35, Upside: 0.15}, "Balanced Growth", "رشد متعادل"},
	7:  {domain.TargetAllocation{Foundation: 0.45, Growth: 0.38, Upside: 0.17}, "Growth", "رشدمحور"},
	8:  {domain.TargetAllocation{Foundation: 0.40, Growth: 0.40, Upside: 0.20}, "Aggressive Growth", "رشد تهاجمی"},
	9:  {domain.TargetAllocation{Foundation: 0.35, Growth: 0.40, Upside: 0.25}, "Aggressive", "تهاجمی"},
	10: {domain.TargetAllocation{Foundation: 0.30, Growth: 0.40, Upside: 0.30}, "Very Aggressive", "بسیار تهاجمی"},
}
