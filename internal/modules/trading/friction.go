package trading

import "github.com/blumarkets/layers/internal/domain"

// Friction copy is indexed by boundary, not by drift magnitude: two
// trades with the same boundary always get the same copy.
var (
	driftCopy = []string{
		"This trade moves your portfolio away from your target mix.",
		"You can rebalance later, but small drifts add up over time.",
	}
	structuralCopy = []string{
		"This trade significantly changes the structure of your portfolio.",
		"Your risk profile was built around your target mix; this moves you well away from it.",
	}
	stressCopy = []string{
		"This trade pushes your portfolio outside its safety limits.",
		"Proceeding leaves you exposed to losses beyond what your risk profile supports.",
	}
	stressSellCopy = "Selling from your safety layer in stressed conditions can lock in losses permanently."
)

// FrictionCopy returns the cautionary lines for a boundary. SAFE has
// none; STRESS carries an extra sell-specific caution.
func FrictionCopy(b domain.Boundary, side domain.TradeSide) []string {
	switch b {
	case domain.BoundaryDrift:
		return append([]string(nil), driftCopy...)
	case domain.BoundaryStructural:
		return append([]string(nil), structuralCopy...)
	case domain.BoundaryStress:
		lines := append([]string(nil), stressCopy...)
		if side == domain.SideSell {
			lines = append(lines, stressSellCopy)
		}
		return lines
	}
	return nil
}
