package storyboard

import (
	"math"

	"github.com/GoodnightSam/JGL-Assistant/internal/textutil"
)

// assignTimings computes shot timings locally from per-shot word counts at
// the configured narration rate, clamps each duration into
// [minSeconds, maxSeconds], and tiles the results over [0, total]. The
// model never supplies timings; this keeps them deterministic for a given
// shot list.
func assignTimings(shots []Shot, wordsPerMinute int, minSeconds, maxSeconds float64) float64 {
	secondsPerWord := 60.0 / float64(wordsPerMinute)
	cursor := 0.0
	for i := range shots {
		words := textutil.WordCount(shots[i].ScriptText)
		duration := float64(words) * secondsPerWord
		if duration < minSeconds {
			duration = minSeconds
		}
		if duration > maxSeconds {
			duration = maxSeconds
		}
		duration = roundTenth(duration)
		shots[i].StartSeconds = roundTenth(cursor)
		cursor += duration
		shots[i].EndSeconds = roundTenth(cursor)
	}
	return roundTenth(cursor)
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
