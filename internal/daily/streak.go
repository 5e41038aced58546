package daily

// ComputeStreak counts consecutive solved days ending today, or ending yesterday
// when today has not been solved yet. solved may be in any order.
func ComputeStreak(today string, solved []string) int {
	days := make(map[string]struct{}, len(solved))
	for _, d := range solved {
		days[d] = struct{}{}
	}

	cursor := today
	if _, ok := days[cursor]; !ok {
		prev, err := ShiftDateKey(cursor, -1)
		if err != nil {
			return 0
		}
		cursor = prev
	}

	streak := 0
	for {
		if _, ok := days[cursor]; !ok {
			return streak
		}
		streak++
		prev, err := ShiftDateKey(cursor, -1)
		if err != nil {
			return streak
		}
		cursor = prev
	}
}
