package types

// ScoreBand buckets a match score for display.
type ScoreBand int

const (
	BandVeryLow ScoreBand = iota
	BandLow
	BandMedium
	BandHigh
)

// BandFor returns the band a score falls into.
func BandFor(score float64) ScoreBand {
	switch {
	case score >= 90:
		return BandHigh
	case score >= 70:
		return BandMedium
	case score >= 50:
		return BandLow
	default:
		return BandVeryLow
	}
}

func (b ScoreBand) String() string {
	switch b {
	case BandHigh:
		return "High Match"
	case BandMedium:
		return "Medium Match"
	case BandLow:
		return "Low Match"
	default:
		return "Very Low Match"
	}
}
