package workouts

import "time"

// Set is a single logged performance of an exercise: one weight x reps entry
// at a point in time. Weight and Reps are pointers because the client may
// submit a set without them; the aggregation formulas substitute defaults
// where they need to.
type Set struct {
	ID          int       `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Exercise    string    `json:"exercise"`
	MuscleGroup string    `json:"muscleGroup"`
	Weight      *float64  `json:"weight"` // kilograms
	Reps        *int      `json:"reps"`
	Timestamp   time.Time `json:"timestamp"`
	Deleted     bool      `json:"deleted,omitempty"`
}

// Pair is one distinct (muscle group, exercise) combination the owner has
// logged sets for. Used for autocomplete and per-exercise views.
type Pair struct {
	MuscleGroup string `json:"muscleGroup"`
	Exercise    string `json:"exercise"`
}
