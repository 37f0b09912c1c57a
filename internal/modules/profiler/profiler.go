package profiler

import (
	"math"
	"sort"
)

// neutralScore is assumed for any dimension with no answered questions,
// so partial input always produces a profile.
const neutralScore = 5.0

// Thresholds for the contradictory-signal penalty: claiming panic
// behavior in the simulated crash while claiming high loss tolerance.
const (
	panicScoreMax     = 2.0
	toleranceScoreMin = 7.0
)

// Profiler scores questionnaires against a fixed question set.
type Profiler struct {
	questions map[QuestionID]Question
}

// New creates a profiler over the default questionnaire.
func New() *Profiler {
	return NewWithQuestions(DefaultQuestionnaire())
}

// NewWithQuestions creates a profiler over an explicit question set.
func NewWithQuestions(questions []Question) *Profiler {
	m := make(map[QuestionID]Question, len(questions))
	for _, q := range questions {
		m[q.ID] = q
	}
	return &Profiler{questions: m}
}

// Questions returns the question set in canonical order.
func (p *Profiler) Questions() []Question {
	out := make([]Question, 0, len(p.questions))
	for _, q := range p.questions {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Score converts answers (question ID to chosen option index) into a
// risk profile. Unknown question IDs and out-of-range option indices are
// ignored; missing dimensions default to the neutral midpoint. The
// function is total: it always returns a profile.
func (p *Profiler) Score(answers map[QuestionID]int) RiskProfile {
	type accum struct{ weighted, weights float64 }
	dims := make(map[Dimension]*accum)
	flags := make(map[string]bool)

	var crashScore, toleranceScore *float64

	for id, optIdx := range answers {
		q, ok := p.questions[id]
		if !ok {
			continue
		}
		if optIdx < 0 || optIdx >= len(q.Options) {
			continue
		}
		opt := q.Options[optIdx]

		a := dims[q.Dimension]
		if a == nil {
			a = &accum{}
			dims[q.Dimension] = a
		}
		a.weighted += opt.Score * q.Weight
		a.weights += q.Weight

		for _, f := range opt.Flags {
			flags[f] = true
		}

		s := opt.Score
		switch id {
		case QCrashReaction:
			crashScore = &s
		case QLossTolerance:
			toleranceScore = &s
		}
	}

	dimScore := func(d Dimension) float64 {
		a := dims[d]
		if a == nil || a.weights == 0 {
			return neutralScore
		}
		return a.weighted / a.weights
	}

	capacity := dimScore(DimCapacity)
	willingness := dimScore(DimWillingness)
	horizon := dimScore(DimHorizon)
	goal := dimScore(DimGoal)

	// A self-described gambler's willingness contribution is capped at 7
	// before recombining with capacity.
	if flags[FlagGambler] {
		willingness = math.Min(willingness, 7)
	}

	// Conservative dominance: the more cautious of the two financial and
	// psychological dimensions bounds the result.
	base := math.Min(capacity, willingness)

	// Horizon hard caps only ever lower the score.
	if flags[FlagHorizonUnder1Y] {
		base = math.Min(base, 3)
	} else if flags[FlagHorizon1To3Y] {
		base = math.Min(base, 5)
	}

	// Contradictory signals: panic behavior in the simulated crash and a
	// claimed tolerance for deep losses cannot both be true. The
	// conservative answer wins.
	if crashScore != nil && toleranceScore != nil &&
		*crashScore <= panicScoreMax && *toleranceScore >= toleranceScoreMin {
		base -= 1
	}

	// Flag-based overrides, regardless of arithmetic.
	if flags[FlagPanicSeller] {
		base = math.Min(base, 3)
	}
	if flags[FlagGambler] && (flags[FlagHighProportion] || flags[FlagInexperienced]) {
		base = math.Min(base, 5)
	}

	score := int(math.Round(clamp(base, 1, 10)))
	t := tiers[score]

	profile := RiskProfile{
		Score:      score,
		Allocation: t.Allocation,
		Label:      t.Label,
		LabelFA:    t.LabelFA,
		Dimensions: map[Dimension]float64{
			DimCapacity:    round2(capacity),
			DimWillingness: round2(willingness),
			DimHorizon:     round2(horizon),
			DimGoal:        round2(goal),
		},
	}
	for f := range flags {
		profile.Flags = append(profile.Flags, f)
	}
	sort.Strings(profile.Flags)
	return profile
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// round2 rounds to 2 decimal places
func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
