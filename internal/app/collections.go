package app

// Collection names used by the core. The working and permanent item
// collections are distinct: approval copies an item across the publication
// boundary and later draft edits never touch the permanent copy.
const (
	colItems       = "quizItems"
	colPermanent   = "permanentQuizItems"
	colRevisions   = "quizEditHistory"
	colAttempts    = "quizAttempts"
	colProgress    = "userProgress"
	colScores      = "userScores"
	colProfiles    = "users"
	colLeaderboard = "topScores"
)

// leaderboardDocID is the singleton cached snapshot document.
const leaderboardDocID = "latest"
