package suitability

import "strconv"

// Score is the cyclist-friendliness tier of a way. Higher is better; Unusable excludes the way.
type Score int8

const (
	Unusable Score = -1

	MinTier Score = 1
	MaxTier Score = 6
)

func (s Score) IsUsable() bool {
	return s != Unusable
}

func (s Score) String() string {
	if s == Unusable {
		return "unusable"
	}
	return strconv.Itoa(int(s))
}

func clamp(s, lo, hi Score) Score {
	if s < lo {
		return lo
	}
	if s > hi {
		return hi
	}
	return s
}
