package domain

const (
	EventNameScoreRecorded      = "score.recorded"
	EventNameStatsDrifted       = "stats.drifted"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventScoreRecorded struct {
	Score Score
}

func (EventScoreRecorded) Name() string { return EventNameScoreRecorded }

// EventStatsDrifted is published when a score was committed but folding it into the
// aggregates failed. Handlers rebuild the affected aggregates from the ledger.
type EventStatsDrifted struct {
	ScoreID string
	QuizID  string
	UserID  string
}

func (EventStatsDrifted) Name() string { return EventNameStatsDrifted }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
