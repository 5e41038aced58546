package bot

import (
	"fmt"
	"strings"

	"github.com/susu3304/ruesquiz/internal/daily"
)

// FormatLeaderboard renders a leaderboard as a Discord code block.
func FormatLeaderboard(board *daily.Leaderboard) string {
	if len(board.Entries) == 0 {
		return fmt.Sprintf("Personne n'a encore joué le %s.", board.Date)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Classement du %s\n```\n", board.Date)
	for rank, e := range board.Entries {
		name := e.Username
		if name == "" {
			name = "anonyme"
		}
		name = truncate(name, 20)

		result := fmt.Sprintf("%d/%d ✗", e.AttemptsUsed, daily.MaxAttempts)
		if e.Solved {
			result = fmt.Sprintf("%d/%d ✓", e.AttemptsUsed, daily.MaxAttempts)
			if e.SolvedAt != nil {
				result += " " + daily.TimeOfDay(*e.SolvedAt)
			}
		}
		fmt.Fprintf(&sb, "%2d. %-20s %s\n", rank+1, name, result)
	}
	sb.WriteString("```")
	return sb.String()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
