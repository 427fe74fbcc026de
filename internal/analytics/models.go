package analytics

import "time"

type PlayerStats struct {
	Name         string  `json:"name"`
	Wins         int     `json:"wins"`
	Rooms        int     `json:"rooms"`
	AvgSolveMs   float64 `json:"avgSolveMs"`
	FastestMs    int     `json:"fastestMs"`
	BestRoomWins int     `json:"bestRoomWins"`
	Rank         int     `json:"rank"`
	Badges       []Badge `json:"badges"`
}

type RoomSummary struct {
	RoomCode   string        `json:"roomCode"`
	Rounds     int           `json:"rounds"`
	Solved     int           `json:"solved"`
	Expired    int           `json:"expired"`
	Resets     int           `json:"resets"`
	FirstRound *time.Time    `json:"firstRound"`
	LastRound  *time.Time    `json:"lastRound"`
	Players    []PlayerStats `json:"players"`
}
