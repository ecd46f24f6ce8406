package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// Placeholder content seeded into a fresh authoring template. Fields still
// equal to their placeholder are treated as unset by validation.
const (
	PlaceholderQuestion    = "What is your question?"
	PlaceholderExplanation = "Here is why option 1 is correct..."
)

var placeholderOptions = []string{
	"First option",
	"Second option",
	"Third option",
	"Fourth option",
	"Fifth option",
	"Sixth option",
}

// NewDraftTemplate returns the starting point for a new authoring session.
func NewDraftTemplate() QuizItem {
	return QuizItem{
		Question:    PlaceholderQuestion,
		Answer:      AnswerSingleChoice,
		Options:     append([]string(nil), placeholderOptions[:5]...),
		Explanation: PlaceholderExplanation,
		Status:      StatusDraft,
		Version:     1,
	}
}

// ValidationResult is the structured outcome of ValidateItem. It is never an
// error; callers inspect Valid.
type ValidationResult struct {
	Valid         bool     `json:"valid"`
	Errors        []string `json:"errors"`
	InvalidFields []string `json:"invalidFields"`
}

func (r *ValidationResult) add(field, message string) {
	r.Errors = append(r.Errors, message)
	for _, f := range r.InvalidFields {
		if f == field {
			return
		}
	}
	r.InvalidFields = append(r.InvalidFields, field)
}

// ValidateItem checks quiz item content. Pure function, no I/O.
func ValidateItem(item QuizItem) ValidationResult {
	res := ValidationResult{}

	if strings.TrimSpace(item.Title) == "" {
		res.add("title", "title is required")
	}
	if strings.TrimSpace(item.Question) == "" || item.Question == PlaceholderQuestion {
		res.add("question", "question is required")
	}
	if len(item.Options) > MaxOptions {
		res.add("options", fmt.Sprintf("at most %d options are allowed", MaxOptions))
	}

	switch item.Answer {
	case AnswerSingleChoice:
		real := realOptionIndices(item.Options)
		if len(real) < 2 {
			res.add("options", "single-choice questions require at least 2 options")
			for i, opt := range item.Options {
				if isPlaceholderOption(i, opt) {
					res.add(fmt.Sprintf("option%d", i+1), fmt.Sprintf("option %d is empty or unchanged", i+1))
				}
			}
		}
		if item.CorrectOption < 0 || item.CorrectOption >= len(item.Options) {
			res.add("correctOption", "select a valid correct answer")
		} else if isPlaceholderOption(item.CorrectOption, item.Options[item.CorrectOption]) {
			res.add(fmt.Sprintf("option%d", item.CorrectOption+1), "the correct answer cannot be an unchanged option")
		}
	case AnswerMultiSelect:
		real := realOptionIndices(item.Options)
		if len(real) < 2 {
			res.add("options", "multi-select questions require at least 2 options")
		}
		distinct := distinctInRange(item.CorrectOptions, len(item.Options))
		switch {
		case item.NoneOfTheAbove && len(distinct) != 1:
			res.add("correctOptions", `"none of the above" questions require exactly 1 correct answer`)
		case !item.NoneOfTheAbove && len(distinct) < 2:
			res.add("correctOptions", "multi-select questions require at least 2 correct answers")
		}
		for _, idx := range distinct {
			if isPlaceholderOption(idx, item.Options[idx]) {
				res.add(fmt.Sprintf("option%d", idx+1), fmt.Sprintf("correct answer option %d is unchanged", idx+1))
			}
		}
	case AnswerOrdering, AnswerShortAnswer:
		// No answer-key rules for these variants.
	default:
		res.add("answerType", "unknown answer type")
	}

	if strings.TrimSpace(item.Explanation) == "" || item.Explanation == PlaceholderExplanation {
		res.add("explanation", "explanation is required")
	}

	checkURL(&res, "videoUrl", item.Meta.VideoURL)
	checkURL(&res, "imageUrl", item.Meta.ImageURL)
	if item.Meta.Podcast != nil {
		checkURL(&res, "podcastEpisodeUrl", item.Meta.Podcast.EpisodeURL)
		checkURL(&res, "podcastAudioUrl", item.Meta.Podcast.AudioURL)
	}
	for i, c := range item.Meta.Citations {
		if strings.TrimSpace(c.Title) == "" {
			res.add(fmt.Sprintf("citation-%d-title", i), fmt.Sprintf("citation %d requires a title", i+1))
		}
		checkURL(&res, fmt.Sprintf("citation-%d-url", i), c.URL)
	}

	res.Valid = len(res.Errors) == 0
	return res
}

func checkURL(res *ValidationResult, field, raw string) {
	if raw == "" {
		return
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		res.add(field, "invalid "+field)
	}
}

func isPlaceholderOption(index int, opt string) bool {
	if strings.TrimSpace(opt) == "" {
		return true
	}
	return index < len(placeholderOptions) && opt == placeholderOptions[index]
}

func realOptionIndices(options []string) []int {
	var out []int
	for i, opt := range options {
		if !isPlaceholderOption(i, opt) {
			out = append(out, i)
		}
	}
	return out
}

func distinctInRange(indices []int, n int) []int {
	seen := make(map[int]struct{}, len(indices))
	var out []int
	for _, idx := range indices {
		if idx < 0 || idx >= n {
			continue
		}
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	return out
}
