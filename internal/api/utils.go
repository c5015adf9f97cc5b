package api

import "time"

func secondsSince(t time.Time) float64 {
	return time.Since(t).Seconds()
}
