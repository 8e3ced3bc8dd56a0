package models

// DaysPerWeek is the number of study days in every curriculum week
const DaysPerWeek = 6

// Position is a (week, day) point in the curriculum. Positions are ordered
// lexicographically: first by week, then by day.
type Position struct {
	Week int `json:"week"`
	Day  int `json:"day"`
}

// StartPosition is where every new learner begins
var StartPosition = Position{Week: 1, Day: 1}

// Before reports whether p comes strictly before o
func (p Position) Before(o Position) bool {
	if p.Week != o.Week {
		return p.Week < o.Week
	}
	return p.Day < o.Day
}

// AtMost reports whether p <= o
func (p Position) AtMost(o Position) bool {
	return !o.Before(p)
}

// Next returns the following study day, rolling over to day 1 of the next week after day 6
func (p Position) Next() Position {
	if p.Day >= DaysPerWeek {
		return Position{Week: p.Week + 1, Day: 1}
	}
	return Position{Week: p.Week, Day: p.Day + 1}
}

// Valid reports whether p addresses a real study day
func (p Position) Valid() bool {
	return p.Week >= 1 && p.Day >= 1 && p.Day <= DaysPerWeek
}
