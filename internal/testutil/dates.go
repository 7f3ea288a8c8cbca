package testutil

import (
	"time"

	"github.com/wonny/radar/backend/internal/contracts"
)

// Day parses YYYYMMDD and panics on malformed input
func Day(s string) time.Time {
	t, err := contracts.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Days returns n consecutive calendar days starting at start
func Days(start time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}
