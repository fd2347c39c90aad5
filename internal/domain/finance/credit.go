package finance

// CreditRating is the categorical score gating loan eligibility.
type CreditRating string

const (
	RatingExcellent CreditRating = "EXCELLENT"
	RatingGood      CreditRating = "GOOD"
	RatingFair      CreditRating = "FAIR"
	RatingPoor      CreditRating = "POOR"
	RatingJunk      CreditRating = "JUNK"
)

// Rank orders ratings; higher is better.
func (r CreditRating) Rank() int {
	switch r {
	case RatingExcellent:
		return 4
	case RatingGood:
		return 3
	case RatingFair:
		return 2
	case RatingPoor:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether r is as good as min.
func (r CreditRating) AtLeast(min CreditRating) bool {
	return r.Rank() >= min.Rank()
}

// RatingForScore maps a numeric score to a category.
func RatingForScore(score int) CreditRating {
	switch {
	case score >= 80:
		return RatingExcellent
	case score >= 60:
		return RatingGood
	case score >= 40:
		return RatingFair
	case score >= 20:
		return RatingPoor
	default:
		return RatingJunk
	}
}
