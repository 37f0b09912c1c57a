package profiler

// DefaultQuestionnaire returns the canonical eight-question form. Option
// scores run 1 (most cautious) to 10 (most aggressive).
func DefaultQuestionnaire() []Question {
	return []Question{
		{
			ID:        QIncomeStability,
			Text:      "How stable is your monthly income?",
			Dimension: DimCapacity,
			Weight:    1.0,
			Options: []Option{
				{Text: "No regular income", Score: 1},
				{Text: "Irregular, varies month to month", Score: 4},
				{Text: "Stable salary", Score: 7},
				{Text: "Stable salary plus other income", Score: 10},
			},
		},
		{
			ID:        QSavingsProportion,
			Text:      "What share of your total savings are you investing?",
			Dimension: DimCapacity,
			Weight:    1.5,
			Options: []Option{
				{Text: "Almost all of it", Score: 1, Flags: []string{FlagHighProportion}},
				{Text: "More than half", Score: 3, Flags: []string{FlagHighProportion}},
				{Text: "Around a quarter", Score: 7},
				{Text: "A small fraction", Score: 10},
			},
		},
		{
			ID:        QExperience,
			Text:      "How much investing experience do you have?",
			Dimension: DimCapacity,
			Weight:    1.0,
			Options: []Option{
				{Text: "None at all", Score: 2, Flags: []string{FlagInexperienced}},
				{Text: "Bank deposits and gold only", Score: 4, Flags: []string{FlagInexperienced}},
				{Text: "Stocks or funds for a few years", Score: 7},
				{Text: "Active in volatile markets for years", Score: 10},
			},
		},
		{
			ID:        QLossTolerance,
			Text:      "What is the largest temporary loss you could accept?",
			Dimension: DimWillingness,
			Weight:    1.5,
			Options: []Option{
				{Text: "Under 5%", Score: 1},
				{Text: "Up to 15%", Score: 4},
				{Text: "Up to 30%", Score: 7},
				{Text: "More than 30%", Score: 10},
			},
		},
		{
			ID:        QCrashReaction,
			Text:      "Your portfolio drops 20% in a month. What do you do?",
			Dimension: DimWillingness,
			Weight:    1.5,
			Options: []Option{
				{Text: "Sell everything immediately", Score: 1, Flags: []string{FlagPanicSeller}},
				{Text: "Sell part of it to feel safer", Score: 3},
				{Text: "Hold and wait it out", Score: 7},
				{Text: "Buy more at the lower price", Score: 10},
			},
		},
		{
			ID:        QRiskAppetite,
			Text:      "Which statement sounds most like you?",
			Dimension: DimWillingness,
			Weight:    1.0,
			Options: []Option{
				{Text: "I avoid risk wherever possible", Score: 2},
				{Text: "I accept small risks for modest returns", Score: 5},
				{Text: "I take real risks for real returns", Score: 8},
				{Text: "I chase the biggest win, whatever the odds", Score: 10, Flags: []string{FlagGambler}},
			},
		},
		{
			ID:        QHorizon,
			Text:      "When will you need this money?",
			Dimension: DimHorizon,
			Weight:    1.0,
			Options: []Option{
				{Text: "Within a year", Score: 1, Flags: []string{FlagHorizonUnder1Y}},
				{Text: "In one to three years", Score: 4, Flags: []string{FlagHorizon1To3Y}},
				{Text: "In three to five years", Score: 7},
				{Text: "Not for at least five years", Score: 10},
			},
		},
		{
			ID:        QGoal,
			Text:      "What is the main goal for this portfolio?",
			Dimension: DimGoal,
			Weight:    1.0,
			Options: []Option{
				{Text: "Preserve what I have against inflation", Score: 2},
				{Text: "Generate steady income", Score: 5},
				{Text: "Grow my wealth over time", Score: 7},
				{Text: "Maximize growth aggressively", Score: 9},
			},
		},
	}
}
