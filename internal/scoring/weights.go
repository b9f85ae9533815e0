package scoring

// Score contributions. One product's raw score is the sum of every rule that
// fires, then divided by contentKeywords*damping.
const (
	keywordHit     = 1.0
	nameHit        = 0.5
	phraseHit      = 0.4
	themeBonus     = 0.3
	themePenalty   = -0.2
	aiFieldHit     = 0.3
	varietyHit     = 0.3
	titleProximity = 0.5
	paletteHit     = 0.5

	damping = 1.5

	// titleWords is how many leading words of the product text count as
	// the title for proximity bonuses.
	titleWords = 3

	// proximityShare: prices at or above this share of the ceiling get the
	// proximity boost.
	proximityShare = 0.8
	proximityBoost = 1.15
	leakPenalty    = 0.7

	// budgetOnlyBase is the raw score of an in-budget product when the
	// query named nothing but a price.
	budgetOnlyBase = 0.5
)
