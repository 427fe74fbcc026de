package analytics

type BadgeID string

const (
	BadgeQuickThinker BadgeID = "quick_thinker"
	BadgeLightning    BadgeID = "lightning"
	BadgeCenturion    BadgeID = "centurion"
	BadgeVeteran      BadgeID = "veteran"
	BadgeMarathon     BadgeID = "marathon"
)

type Badge struct {
	ID          BadgeID `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
}

var AllBadges = map[BadgeID]Badge{
	BadgeQuickThinker: {ID: BadgeQuickThinker, Name: "Quick Thinker", Description: "Average solve time under 3 seconds", Icon: "🧠"},
	BadgeLightning:    {ID: BadgeLightning, Name: "Lightning", Description: "Solved a question in under a second", Icon: "⚡"},
	BadgeCenturion:    {ID: BadgeCenturion, Name: "Centurion", Description: "100+ questions solved", Icon: "💯"},
	BadgeVeteran:      {ID: BadgeVeteran, Name: "Veteran", Description: "Won rounds in 10+ rooms", Icon: "🏅"},
	BadgeMarathon:     {ID: BadgeMarathon, Name: "Marathon", Description: "30+ wins in a single room", Icon: "🏃"},
}

// EvaluateBadges checks which badges a player has earned from their solved
// rounds.
func EvaluateBadges(stats PlayerStats) []Badge {
	var earned []Badge

	if stats.Wins > 0 && stats.AvgSolveMs > 0 && stats.AvgSolveMs < 3000 {
		earned = append(earned, AllBadges[BadgeQuickThinker])
	}
	if stats.Wins > 0 && stats.FastestMs > 0 && stats.FastestMs < 1000 {
		earned = append(earned, AllBadges[BadgeLightning])
	}
	if stats.Wins >= 100 {
		earned = append(earned, AllBadges[BadgeCenturion])
	}
	if stats.Rooms >= 10 {
		earned = append(earned, AllBadges[BadgeVeteran])
	}
	if stats.BestRoomWins >= 30 {
		earned = append(earned, AllBadges[BadgeMarathon])
	}

	return earned
}
