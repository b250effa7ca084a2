package features

import "time"

const (
	minBackToBackGap = 23 * time.Hour
	maxBackToBackGap = 25 * time.Hour
)

// ComputeBackToBack flags each game of a newest-first window that was played
// within [23h, 25h] of the next older game. The oldest game is always 0.
//
// Only the older neighbour is consulted, so in a back-to-back pair the newer
// game carries the flag and the older one does not.
func ComputeBackToBack(window []GameRecord) []int {
	flags := make([]int, len(window))
	for i := 0; i+1 < len(window); i++ {
		gap := window[i].Timestamp.Sub(window[i+1].Timestamp)
		if gap >= minBackToBackGap && gap <= maxBackToBackGap {
			flags[i] = 1
		}
	}
	return flags
}
