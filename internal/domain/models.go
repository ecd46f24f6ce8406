package domain

import "time"

// AnswerType discriminates the quiz item variants. Each type enumerates its
// own required answer fields on QuizItem.
type AnswerType string

const (
	// AnswerSingleChoice expects exactly one correct option index.
	AnswerSingleChoice AnswerType = "single-choice"
	// AnswerMultiSelect expects a set of correct option indices.
	AnswerMultiSelect AnswerType = "multi-select"
	// AnswerOrdering asks the user to sort the options; no correctness check.
	AnswerOrdering AnswerType = "ordering"
	// AnswerShortAnswer is free text; no correctness check.
	AnswerShortAnswer AnswerType = "short-answer"
)

// MaxOptions caps the ordered option list of a quiz item.
const MaxOptions = 6

// ForkRef records the provenance of a forked quiz item.
type ForkRef struct {
	ItemID    string `json:"itemId"`
	Version   int    `json:"version"`
	Title     string `json:"title,omitempty"`
	Permanent bool   `json:"permanent"`
}

// Citation is a titled source reference, optionally with a URL.
type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// PodcastEpisode points at supporting audio for an item.
type PodcastEpisode struct {
	Title       string `json:"title,omitempty"`
	EpisodeURL  string `json:"episodeUrl,omitempty"`
	AudioURL    string `json:"audioUrl,omitempty"`
	Description string `json:"description,omitempty"`
	StartTime   int    `json:"startTime,omitempty"`
}

// ItemMeta is the optional media/citation/reference bag attached to an item.
type ItemMeta struct {
	VideoURL     string          `json:"videoUrl,omitempty"`
	ImageURL     string          `json:"imageUrl,omitempty"`
	ImageAltText string          `json:"imageAltText,omitempty"`
	Caution      string          `json:"caution,omitempty"`
	CautionLevel string          `json:"cautionLevel,omitempty"`
	Citations    []Citation      `json:"citations,omitempty"`
	References   []string        `json:"references,omitempty"`
	Podcast      *PodcastEpisode `json:"podcast,omitempty"`
}

// QuizItem is a question under editorial control. Version starts at 1 and
// increases by exactly 1 on every persisted mutation.
type QuizItem struct {
	ID       string     `json:"id,omitempty"`
	LegacyID int        `json:"legacyId,omitempty"` // numeric id of imported static content
	Title    string     `json:"title"`
	Subtitle string     `json:"subtitle,omitempty"`
	Question string     `json:"question"`
	Answer   AnswerType `json:"answerType"`

	Options []string `json:"options"` // ordered, at most MaxOptions

	// CorrectOption is the index into Options for single-choice items.
	CorrectOption int `json:"correctOption,omitempty"`
	// CorrectOptions are the indices for multi-select items.
	CorrectOptions []int `json:"correctOptions,omitempty"`
	// NoneOfTheAbove permits a single correct option on multi-select items.
	NoneOfTheAbove bool `json:"noneOfTheAbove,omitempty"`

	Explanation  string   `json:"explanation,omitempty"`
	Explanation2 string   `json:"explanation2,omitempty"`
	Meta         ItemMeta `json:"meta,omitempty"`

	Status     Status   `json:"status"`
	Version    int      `json:"version"`
	OwnerID    string   `json:"ownerUserId,omitempty"`
	OwnerEmail string   `json:"ownerEmail,omitempty"`
	ForkedFrom *ForkRef `json:"forkedFrom,omitempty"`

	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
	SubmittedAt time.Time `json:"submittedAt,omitempty"`
	ApprovedAt  time.Time `json:"approvedAt,omitempty"`
}

// RevisionRecord is an immutable edit-history entry. Revision numbers align
// with the item version at the time of the edit.
type RevisionRecord struct {
	ItemID      string         `json:"quizItemId"`
	AuthorID    string         `json:"authorUserId"`
	AuthorEmail string         `json:"authorEmail,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Revision    int            `json:"revisionNumber"`
	Message     string         `json:"versionMessage"`
	Before      map[string]any `json:"before,omitempty"`
	After       map[string]any `json:"after"`
	Status      Status         `json:"status"`
}

// QuizSet is a named, ordered list of quiz item ids. Read-only reference data.
type QuizSet struct {
	Name          string   `json:"setName"`
	BasicMode     bool     `json:"basicMode"`
	InProgress    bool     `json:"inProgress,omitempty"` // excluded from published totals
	Items         []string `json:"items"`
	DisplayLevel  int      `json:"displayLevel,omitempty"`
	DisplayColumn int      `json:"displayColumn,omitempty"`
}

// RawAttempt is one persisted quiz-taking session outcome. Later attempts at
// the same quiz by the same user supersede earlier ones during aggregation.
type RawAttempt struct {
	UserID         string    `json:"userId"`
	Email          string    `json:"userEmail,omitempty"`
	QuizID         string    `json:"quizId"`
	TotalCorrect   int       `json:"totalCorrect"`
	TotalQuestions int       `json:"totalQuestions"`
	CompletedAt    time.Time `json:"completedAt"`
}

// ScoreRecord is one user's row in the leaderboard.
type ScoreRecord struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Username    string    `json:"username,omitempty"`
	Email       string    `json:"email,omitempty"`
	TotalScore  int       `json:"totalScore"`
	QuizCount   int       `json:"quizCount"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// LeaderboardSnapshot is the cached ranked score table. Only the aggregator
// writes it; readers never merge into it.
type LeaderboardSnapshot struct {
	Scores                  []ScoreRecord `json:"scores"`
	TotalAvailableQuestions int           `json:"totalAvailableQuestions"`
	LastUpdated             time.Time     `json:"lastUpdated"`
}

// Progress tracks which quizzes a user completed and which items they
// answered correctly.
type Progress struct {
	UserID           string    `json:"userId,omitempty"`
	CompletedQuizzes []string  `json:"completedQuizzes"`
	CorrectQuizItems []string  `json:"correctQuizItems"`
	LastUpdated      time.Time `json:"lastUpdated"`
}

// Profile is the stored user profile consulted for display names.
type Profile struct {
	UserID   string `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// StatusMessage is the user-visible outcome of a save/submit/accept/approve.
type StatusMessage struct {
	Message string `json:"message"`
	Type    string `json:"type"` // "success" or "error"
	Show    bool   `json:"show"`
}
