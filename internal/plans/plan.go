package plans

import "time"

// Routine is one planned exercise of a day plan.
type Routine struct {
	MuscleGroup string `json:"muscleGroup"`
	Exercise    string `json:"exercise"`
	// Series is the planned number of sets.
	Series int `json:"series"`
}

// Plan is the workout routine of one weekday, e.g. "monday is chest day". One
// plan per (owner, day).
type Plan struct {
	ID          int       `json:"id"`
	OwnerID     string    `json:"-"`
	Day         string    `json:"day"`
	Description string    `json:"description"`
	Routines    []Routine `json:"routines"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Weekdays are the valid Plan.Day values, lowercase english day names.
var Weekdays = map[string]bool{
	"monday":    true,
	"tuesday":   true,
	"wednesday": true,
	"thursday":  true,
	"friday":    true,
	"saturday":  true,
	"sunday":    true,
}
