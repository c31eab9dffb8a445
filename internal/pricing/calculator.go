package pricing

// BillingKind selects how a session's base cost is derived.
type BillingKind string

const (
	// BillingHourly bills whole hours rounded up from the session duration.
	BillingHourly BillingKind = "hourly"
	// BillingPerWord bills translation work by word count.
	BillingPerWord BillingKind = "per_word"
)

// Fee is an additional charge attached to a session on top of the base cost.
type Fee struct {
	Label  string
	Amount float64
}

// RateStructure captures how an interpreter charges for work.
type RateStructure struct {
	HourlyRate   float64
	MinimumHours int
	RatePerWord  float64
	// Specializations maps a specialization key to a multiplier applied to
	// the base cost when the session's specialization matches.
	Specializations map[string]float64
}

// Input collects the session parameters that feed a cost computation.
type Input struct {
	Kind            BillingKind
	DurationMinutes int
	HourlyRate      float64
	MinimumHours    int
	RatePerWord     float64
	WordCount       int
	Specialization  string
	Multipliers     map[string]float64
	AdditionalFees  []Fee
}

// Quote is the cost breakdown produced for a session.
type Quote struct {
	BaseCost float64
	Fees     float64
	Total    float64
}

// Compute derives the cost quote for a session. The computation is pure:
// calling it twice with the same input yields the same quote.
func Compute(in Input) Quote {
	var base float64
	switch in.Kind {
	case BillingPerWord:
		base = in.RatePerWord * float64(in.WordCount)
	default:
		base = in.HourlyRate * float64(billableHours(in.DurationMinutes, in.MinimumHours))
	}

	if in.Specialization != "" {
		if multiplier, ok := in.Multipliers[in.Specialization]; ok && multiplier > 0 {
			base *= multiplier
		}
	}

	var fees float64
	for _, fee := range in.AdditionalFees {
		fees += fee.Amount
	}

	return Quote{BaseCost: base, Fees: fees, Total: base + fees}
}

// billableHours rounds the duration up to whole hours and applies the
// minimum-hours floor.
func billableHours(minutes, minimumHours int) int {
	if minutes < 0 {
		minutes = 0
	}
	hours := minutes / 60
	if minutes%60 != 0 {
		hours++
	}
	if hours < minimumHours {
		hours = minimumHours
	}
	return hours
}
