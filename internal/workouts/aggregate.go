package workouts

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultReps substitutes a missing reps value in the weighted-average and
// power-score formulas. The plain reps average deliberately does NOT use it:
// the number shown to the user reflects only recorded reps.
const DefaultReps = 10

// Comparison relates a day's power score to the best score among all other
// days for the same (exercise, muscle group) pair.
type Comparison string

const (
	ComparisonRecord Comparison = "record"
	ComparisonUp     Comparison = "up"
	ComparisonDown   Comparison = "down"
	ComparisonSame   Comparison = "same"
	ComparisonNone   Comparison = "none"
)

// DaySummary holds the aggregated stats of all sets logged on one local
// calendar day for a single (exercise, muscle group) pair.
type DaySummary struct {
	Day time.Time `json:"day"`
	// Sets is the number of sets that landed in this day's bucket.
	Sets int `json:"sets"`
	// WeightedAverage is the reps-weighted mean weight in kilos, rounded to
	// one decimal (half away from zero). Nil when no set of the day carries
	// a usable weight.
	WeightedAverage *float64 `json:"weightedAverage"`
	// AverageReps is the plain mean of recorded reps, rounded to the nearest
	// integer. Nil when no set of the day has reps recorded.
	AverageReps *int `json:"averageReps"`
	// PowerScore is round(avgWeight * totalReps), with missing weights and
	// reps counted as zero. Always >= 0.
	PowerScore int        `json:"powerScore"`
	Comparison Comparison `json:"comparison"`
}

// GroupByLocalDay buckets sets by their calendar day in loc. Soft-deleted
// sets and sets without a timestamp are skipped. Rows within a bucket are
// sorted ascending by timestamp so they are directly presentable; the bucket
// keys carry no ordering guarantee.
func GroupByLocalDay(sets []Set, loc *time.Location) map[time.Time][]Set {
	if loc == nil {
		loc = time.UTC
	}

	day2sets := make(map[time.Time][]Set)
	for _, s := range sets {
		if s.Deleted || s.Timestamp.IsZero() {
			continue
		}
		t := s.Timestamp.In(loc)
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		day2sets[day] = append(day2sets[day], s)
	}

	for day := range day2sets {
		rows := day2sets[day]
		sort.Slice(rows, func(i, j int) bool {
			return rows[i].Timestamp.Before(rows[j].Timestamp)
		})
	}

	return day2sets
}

// WeightedAverageWeight computes sum(weight * effectiveReps) / sum(effectiveReps)
// over the rows that carry a weight, where effectiveReps falls back to
// DefaultReps when reps are missing or zero. Rows without a weight are left
// out of both sums. Returns nil when no row has a usable weight.
//
// The quotient is rounded to one decimal, half away from zero. Rounding the
// final quotient (rather than an intermediate product) is the canonical rule
// here.
func WeightedAverageWeight(rows []Set) *float64 {
	var weightedSum float64
	var repsSum int
	for _, s := range rows {
		if s.Deleted || s.Weight == nil {
			continue
		}
		reps := effectiveReps(s)
		weightedSum += *s.Weight * float64(reps)
		repsSum += reps
	}

	if repsSum == 0 {
		return nil
	}

	avg, _ := decimal.NewFromFloat(weightedSum).
		Div(decimal.NewFromInt(int64(repsSum))).
		Round(1).
		Float64()
	return &avg
}

// AverageReps computes the arithmetic mean of the recorded reps, rounded to
// the nearest integer. Rows without reps do not participate at all, there is
// no DefaultReps fallback in this one. Returns nil when no row has reps.
func AverageReps(rows []Set) *int {
	var repsSum, count int
	for _, s := range rows {
		if s.Deleted || s.Reps == nil {
			continue
		}
		repsSum += *s.Reps
		count++
	}

	if count == 0 {
		return nil
	}

	avg := int(math.Round(float64(repsSum) / float64(count)))
	return &avg
}

// PowerScore is the composite effort metric for a day's rows:
// round(avgWeight * totalReps), where avgWeight is the plain mean over all
// rows with missing weights counted as zero, and totalReps is the sum of
// reps with missing reps counted as zero.
func PowerScore(rows []Set) int {
	var weightSum float64
	var totalReps int
	count := 0
	for _, s := range rows {
		if s.Deleted {
			continue
		}
		count++
		if s.Weight != nil {
			weightSum += *s.Weight
		}
		if s.Reps != nil {
			totalReps += *s.Reps
		}
	}

	if count == 0 {
		return 0
	}

	avgWeight := weightSum / float64(count)
	score := int(math.Round(avgWeight * float64(totalReps)))
	if score < 0 {
		return 0
	}
	return score
}

// CompareToHistory relates target's power score to the best score among
// otherDays. A tie is always ComparisonSame, never a record, and a new best
// of zero is not a record either.
func CompareToHistory(target DaySummary, otherDays []DaySummary) Comparison {
	if len(otherDays) == 0 {
		return ComparisonNone
	}

	bestOther := 0
	for _, day := range otherDays {
		if day.PowerScore > bestOther {
			bestOther = day.PowerScore
		}
	}

	switch {
	case target.PowerScore > bestOther && target.PowerScore > 0:
		return ComparisonRecord
	case target.PowerScore > bestOther:
		return ComparisonUp
	case target.PowerScore < bestOther:
		return ComparisonDown
	default:
		return ComparisonSame
	}
}

// BuildSummaries turns the full list of sets for one (exercise, muscle group)
// pair into per-day summaries, sorted ascending by day. The most recent day
// carries its comparison against all older days; older days stay at
// ComparisonNone since only the latest one is ever displayed with an
// indicator.
//
// The function is pure: same sets and same location always produce the same
// output, and a nil input behaves like an empty list.
func BuildSummaries(sets []Set, loc *time.Location) []DaySummary {
	day2sets := GroupByLocalDay(sets, loc)

	summaries := make([]DaySummary, 0, len(day2sets))
	for day, rows := range day2sets {
		summaries = append(summaries, DaySummary{
			Day:             day,
			Sets:            len(rows),
			WeightedAverage: WeightedAverageWeight(rows),
			AverageReps:     AverageReps(rows),
			PowerScore:      PowerScore(rows),
			Comparison:      ComparisonNone,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Day.Before(summaries[j].Day)
	})

	if len(summaries) > 0 {
		last := len(summaries) - 1
		summaries[last].Comparison = CompareToHistory(summaries[last], summaries[:last])
	}

	return summaries
}

func effectiveReps(s Set) int {
	if s.Reps != nil && *s.Reps > 0 {
		return *s.Reps
	}
	return DefaultReps
}
