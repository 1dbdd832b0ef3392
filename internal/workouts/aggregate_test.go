package workouts_test

import (
	"testing"
	"time"

	"github.com/2beens/ironlog/internal/workouts"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// INFO: https://github.com/go-redis/redis/issues/1029
		goleak.IgnoreTopFunction(
			"github.com/go-redis/redis/v8/internal/pool.(*ConnPool).reaper",
		),
	)
}

func ptrF(f float64) *float64 { return &f }
func ptrI(i int) *int         { return &i }

func randomSets(n int) []workouts.Set {
	sets := make([]workouts.Set, 0, n)
	for i := 0; i < n; i++ {
		s := workouts.Set{
			ID:          i + 1,
			OwnerID:     "serj",
			Exercise:    gofakeit.RandomString([]string{"bench-press", "squat", "deadlift"}),
			MuscleGroup: gofakeit.RandomString([]string{"chest", "legs", "back"}),
			Timestamp:   gofakeit.DateRange(
				time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			),
		}
		if gofakeit.Bool() {
			s.Weight = ptrF(float64(gofakeit.IntRange(20, 150)))
		}
		if gofakeit.Bool() {
			s.Reps = ptrI(gofakeit.IntRange(1, 15))
		}
		if gofakeit.IntRange(0, 9) == 0 {
			s.Deleted = true
		}
		sets = append(sets, s)
	}
	return sets
}

func TestBuildSummaries_Pure(t *testing.T) {
	sets := randomSets(200)

	first := workouts.BuildSummaries(sets, time.UTC)
	second := workouts.BuildSummaries(sets, time.UTC)
	assert.Equal(t, first, second)

	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	first = workouts.BuildSummaries(sets, berlin)
	second = workouts.BuildSummaries(sets, berlin)
	assert.Equal(t, first, second)
}

func TestBuildSummaries_NilAndEmptyInput(t *testing.T) {
	assert.Empty(t, workouts.BuildSummaries(nil, time.UTC))
	assert.Empty(t, workouts.BuildSummaries([]workouts.Set{}, time.UTC))
	assert.Empty(t, workouts.BuildSummaries(nil, nil))
}

func TestGroupByLocalDay_SkipsDeletedAndZeroTimestamps(t *testing.T) {
	day := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	sets := []workouts.Set{
		{ID: 1, Weight: ptrF(100), Reps: ptrI(10), Timestamp: day},
		{ID: 2, Weight: ptrF(500), Reps: ptrI(50), Timestamp: day, Deleted: true},
		{ID: 3, Weight: ptrF(60), Reps: ptrI(8)}, // no timestamp
	}

	day2sets := workouts.GroupByLocalDay(sets, time.UTC)
	require.Len(t, day2sets, 1)
	bucket := day2sets[time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)]
	require.Len(t, bucket, 1)
	assert.Equal(t, 1, bucket[0].ID)
}

func TestGroupByLocalDay_DayBoundary(t *testing.T) {
	late := time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)
	justAfterMidnight := time.Date(2024, 1, 2, 0, 1, 0, 0, time.UTC)
	earlySameDay := time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC)
	lateSameDay := time.Date(2024, 1, 1, 23, 55, 0, 0, time.UTC)

	day2sets := workouts.GroupByLocalDay([]workouts.Set{
		{ID: 1, Timestamp: late},
		{ID: 2, Timestamp: justAfterMidnight},
	}, time.UTC)
	assert.Len(t, day2sets, 2)

	day2sets = workouts.GroupByLocalDay([]workouts.Set{
		{ID: 1, Timestamp: earlySameDay},
		{ID: 2, Timestamp: lateSameDay},
	}, time.UTC)
	require.Len(t, day2sets, 1)
	bucket := day2sets[time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)]
	assert.Len(t, bucket, 2)
}

func TestGroupByLocalDay_TimezoneMatters(t *testing.T) {
	// 23:30 UTC on Jan 1st is already Jan 2nd in Berlin
	ts := time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC)
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	day2sets := workouts.GroupByLocalDay([]workouts.Set{{ID: 1, Timestamp: ts}}, berlin)
	require.Len(t, day2sets, 1)
	assert.Len(t, day2sets[time.Date(2024, 1, 2, 0, 0, 0, 0, berlin)], 1)

	day2sets = workouts.GroupByLocalDay([]workouts.Set{{ID: 1, Timestamp: ts}}, time.UTC)
	require.Len(t, day2sets, 1)
	assert.Len(t, day2sets[time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)], 1)
}

func TestGroupByLocalDay_BucketRowsAscending(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	t3 := time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)

	day2sets := workouts.GroupByLocalDay([]workouts.Set{
		{ID: 1, Timestamp: t1},
		{ID: 2, Timestamp: t2},
		{ID: 3, Timestamp: t3},
	}, time.UTC)
	bucket := day2sets[time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)]
	require.Len(t, bucket, 3)
	assert.Equal(t, []int{2, 3, 1}, []int{bucket[0].ID, bucket[1].ID, bucket[2].ID})
}

func TestWeightedAverageWeight(t *testing.T) {
	t.Run("no rows with weight yields nil", func(t *testing.T) {
		assert.Nil(t, workouts.WeightedAverageWeight(nil))
		assert.Nil(t, workouts.WeightedAverageWeight([]workouts.Set{
			{Reps: ptrI(10)},
			{Reps: ptrI(8)},
		}))
	})

	t.Run("missing reps default to 10", func(t *testing.T) {
		avg := workouts.WeightedAverageWeight([]workouts.Set{
			{Weight: ptrF(100)},
		})
		require.NotNil(t, avg)
		assert.Equal(t, 100.0, *avg)

		// 100kg x 10 (defaulted) + 120kg x 5 -> (1000+600)/15 = 106.66.. -> 106.7
		avg = workouts.WeightedAverageWeight([]workouts.Set{
			{Weight: ptrF(100)},
			{Weight: ptrF(120), Reps: ptrI(5)},
		})
		require.NotNil(t, avg)
		assert.Equal(t, 106.7, *avg)
	})

	t.Run("rows without weight fully excluded", func(t *testing.T) {
		// weightless row's reps must not drag the average down
		avg := workouts.WeightedAverageWeight([]workouts.Set{
			{Weight: ptrF(80), Reps: ptrI(10)},
			{Reps: ptrI(100)},
		})
		require.NotNil(t, avg)
		assert.Equal(t, 80.0, *avg)
	})

	t.Run("quotient rounded to one decimal", func(t *testing.T) {
		// (100*8 + 110*6) / 14 = 104.2857..
		avg := workouts.WeightedAverageWeight([]workouts.Set{
			{Weight: ptrF(100), Reps: ptrI(8)},
			{Weight: ptrF(110), Reps: ptrI(6)},
		})
		require.NotNil(t, avg)
		assert.Equal(t, 104.3, *avg)
	})
}

func TestAverageReps(t *testing.T) {
	t.Run("no rows with reps yields nil, no default", func(t *testing.T) {
		assert.Nil(t, workouts.AverageReps(nil))
		assert.Nil(t, workouts.AverageReps([]workouts.Set{
			{Weight: ptrF(100)},
		}))
	})

	t.Run("mean of present reps, rounded", func(t *testing.T) {
		avgReps := workouts.AverageReps([]workouts.Set{
			{Weight: ptrF(100), Reps: ptrI(8)},
			{Weight: ptrF(110), Reps: ptrI(6)},
			{Weight: ptrF(50)}, // missing reps, not counted
		})
		require.NotNil(t, avgReps)
		assert.Equal(t, 7, *avgReps)

		// (10 + 11) / 2 = 10.5 -> 11
		avgReps = workouts.AverageReps([]workouts.Set{
			{Reps: ptrI(10)},
			{Reps: ptrI(11)},
		})
		require.NotNil(t, avgReps)
		assert.Equal(t, 11, *avgReps)
	})
}

// weighted average sees the missing reps as 10, the plain average ignores the
// row altogether
func TestRepsDefaultAsymmetry(t *testing.T) {
	rows := []workouts.Set{{Weight: ptrF(100)}}

	avg := workouts.WeightedAverageWeight(rows)
	require.NotNil(t, avg)
	assert.Equal(t, 100.0, *avg)

	assert.Nil(t, workouts.AverageReps(rows))
}

func TestPowerScore(t *testing.T) {
	assert.Equal(t, 0, workouts.PowerScore(nil))
	assert.Equal(t, 0, workouts.PowerScore([]workouts.Set{{Weight: ptrF(100)}}))

	// avg(100, 110) * (8 + 6) = 105 * 14 = 1470
	assert.Equal(t, 1470, workouts.PowerScore([]workouts.Set{
		{Weight: ptrF(100), Reps: ptrI(8)},
		{Weight: ptrF(110), Reps: ptrI(6)},
	}))

	// missing weight counts as zero in the average: avg(0, 100) * 10 = 500
	assert.Equal(t, 500, workouts.PowerScore([]workouts.Set{
		{Reps: ptrI(5)},
		{Weight: ptrF(100), Reps: ptrI(5)},
	}))
}

func TestPowerScore_MonotonicInWeight(t *testing.T) {
	for i := 0; i < 100; i++ {
		reps := gofakeit.IntRange(1, 15)
		lowWeight := float64(gofakeit.IntRange(20, 80))
		highWeight := lowWeight + float64(gofakeit.IntRange(0, 50))

		low := workouts.PowerScore([]workouts.Set{{Weight: &lowWeight, Reps: &reps}})
		high := workouts.PowerScore([]workouts.Set{{Weight: &highWeight, Reps: &reps}})
		assert.GreaterOrEqual(t, high, low)
	}
}

func TestCompareToHistory(t *testing.T) {
	target := workouts.DaySummary{PowerScore: 1000}

	assert.Equal(t, workouts.ComparisonNone, workouts.CompareToHistory(target, nil))
	assert.Equal(
		t,
		workouts.ComparisonRecord,
		workouts.CompareToHistory(target, []workouts.DaySummary{{PowerScore: 900}}),
	)
	assert.Equal(
		t,
		workouts.ComparisonDown,
		workouts.CompareToHistory(target, []workouts.DaySummary{{PowerScore: 1100}}),
	)

	// a tie is always SAME, never a record
	assert.Equal(
		t,
		workouts.ComparisonSame,
		workouts.CompareToHistory(target, []workouts.DaySummary{{PowerScore: 1000}}),
	)
	assert.Equal(
		t,
		workouts.ComparisonSame,
		workouts.CompareToHistory(
			workouts.DaySummary{PowerScore: 0},
			[]workouts.DaySummary{{PowerScore: 0}},
		),
	)
}

func TestBuildSummaries_EndToEnd(t *testing.T) {
	d1 := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, -3)

	sets := []workouts.Set{
		{ID: 1, Weight: ptrF(100), Reps: ptrI(8), Timestamp: d1.Add(17 * time.Hour)},
		{ID: 2, Weight: ptrF(110), Reps: ptrI(6), Timestamp: d1.Add(18 * time.Hour)},
		{ID: 3, Weight: ptrF(90), Reps: ptrI(10), Timestamp: d2.Add(17 * time.Hour)},
	}

	summaries := workouts.BuildSummaries(sets, time.UTC)
	require.Len(t, summaries, 2)

	// oldest day first
	older, latest := summaries[0], summaries[1]

	assert.Equal(t, d2, older.Day)
	assert.Equal(t, 1, older.Sets)
	assert.Equal(t, 900, older.PowerScore)
	assert.Equal(t, workouts.ComparisonNone, older.Comparison)

	assert.Equal(t, d1, latest.Day)
	assert.Equal(t, 2, latest.Sets)
	require.NotNil(t, latest.WeightedAverage)
	assert.Equal(t, 104.3, *latest.WeightedAverage)
	require.NotNil(t, latest.AverageReps)
	assert.Equal(t, 7, *latest.AverageReps)
	assert.Equal(t, 1470, latest.PowerScore)
	assert.Equal(t, workouts.ComparisonRecord, latest.Comparison)
}

func TestBuildSummaries_DeletedNeverCounted(t *testing.T) {
	day := time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)
	sets := []workouts.Set{
		{ID: 1, Weight: ptrF(100), Reps: ptrI(10), Timestamp: day},
		{ID: 2, Weight: ptrF(999), Reps: ptrI(99), Timestamp: day, Deleted: true},
	}

	summaries := workouts.BuildSummaries(sets, time.UTC)
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].Sets)
	require.NotNil(t, summaries[0].WeightedAverage)
	assert.Equal(t, 100.0, *summaries[0].WeightedAverage)
	assert.Equal(t, 1000, summaries[0].PowerScore)
}
