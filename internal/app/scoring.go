package app

import "math"

// SpeedScore converts response latency into points for a correct answer.
// Full speed is worth 1000 points, decaying linearly to the floor of 1 at the
// time limit. Correct-but-late answers still earn the floor, never zero.
// Incorrect answers are scored 0 by the caller and never reach this function.
func SpeedScore(timeLimitMS, responseTimeMS int64) int {
	if timeLimitMS <= 0 || responseTimeMS >= timeLimitMS {
		return 1
	}
	points := int(math.Ceil(1000 * float64(timeLimitMS-responseTimeMS) / float64(timeLimitMS)))
	if points < 1 {
		return 1
	}
	return points
}
