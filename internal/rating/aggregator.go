package rating

// Score carries the rating detail one party submits for a completed session.
// Component scores are stored per-session for auditing; only Overall feeds the
// interpreter-level running average.
type Score struct {
	Overall         int
	Punctuality     int
	Professionalism int
	Accuracy        int
	Communication   int
	Comment         string
}

// InRange reports whether a score value fits the 1-5 scale.
func InRange(value int) bool {
	return value >= 1 && value <= 5
}

// Aggregate is an interpreter's running rating state. Average is always the
// arithmetic mean of exactly Total rating values.
type Aggregate struct {
	Average float64
	Total   int
}

// Fold incorporates one overall score into the running mean.
func Fold(agg Aggregate, overall int) Aggregate {
	if agg.Total < 0 {
		agg = Aggregate{}
	}
	total := agg.Total + 1
	return Aggregate{
		Average: (agg.Average*float64(agg.Total) + float64(overall)) / float64(total),
		Total:   total,
	}
}
