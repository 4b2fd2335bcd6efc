package content

import (
	"math"
	"time"
)

// LinearInt is an integer that grows by PerLevel for every level above 1.
type LinearInt struct {
	Base     int `yaml:"base"`
	PerLevel int `yaml:"per_level"`
}

// Get returns the value at level.
func (l LinearInt) Get(level int) int {
	return l.Base + l.PerLevel*(level-1)
}

// LinearFloat is a float that grows by PerLevel for every level above 1.
type LinearFloat struct {
	Base     float64 `yaml:"base"`
	PerLevel float64 `yaml:"per_level"`
}

// Get returns the value at level.
func (l LinearFloat) Get(level int) float64 {
	return l.Base + l.PerLevel*float64(level-1)
}

// Duration interprets the value at level as seconds.
func (l LinearFloat) Duration(level int) time.Duration {
	s := l.Get(level)
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}

// ExponentialInt grows as Multiplier * Base^(level-1).
type ExponentialInt struct {
	Multiplier float64 `yaml:"multiplier"`
	Base       float64 `yaml:"base"`
}

// Get returns the value at level.
func (e ExponentialInt) Get(level int) int64 {
	return int64(e.Multiplier * math.Pow(e.Base, float64(level-1)))
}

// Seconds converts a float seconds value from a definition into a duration.
func Seconds(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
