package domain

import "testing"

func validSingleChoice() QuizItem {
	return QuizItem{
		Title:         "Capitals",
		Question:      "What is the capital of France?",
		Answer:        AnswerSingleChoice,
		Options:       []string{"Paris", "Lyon", "Nice"},
		CorrectOption: 0,
		Explanation:   "Paris has been the capital since 987.",
	}
}

func TestValidateAcceptsCompleteSingleChoice(t *testing.T) {
	res := ValidateItem(validSingleChoice())
	if !res.Valid {
		t.Fatalf("expected valid, got errors: %v", res.Errors)
	}
	if len(res.Errors) != 0 || len(res.InvalidFields) != 0 {
		t.Fatalf("expected no errors, got %v / %v", res.Errors, res.InvalidFields)
	}
}

func TestValidateTreatsPlaceholdersAsUnset(t *testing.T) {
	item := NewDraftTemplate()
	item.Title = "Drafted"
	res := ValidateItem(item)
	if res.Valid {
		t.Fatalf("expected template content to be invalid")
	}
	wantFields := map[string]bool{"question": false, "explanation": false}
	for _, f := range res.InvalidFields {
		if _, ok := wantFields[f]; ok {
			wantFields[f] = true
		}
	}
	for f, seen := range wantFields {
		if !seen {
			t.Fatalf("expected %q in invalid fields, got %v", f, res.InvalidFields)
		}
	}
}

func TestValidateSingleChoiceCorrectOptionOutOfRange(t *testing.T) {
	item := validSingleChoice()
	item.CorrectOption = 7
	res := ValidateItem(item)
	if res.Valid {
		t.Fatalf("expected invalid for out-of-range correct option")
	}
	if !hasField(res, "correctOption") {
		t.Fatalf("expected correctOption flagged, got %v", res.InvalidFields)
	}
}

func TestValidateMultiSelectNeedsTwoCorrect(t *testing.T) {
	item := validSingleChoice()
	item.Answer = AnswerMultiSelect
	item.CorrectOptions = []int{0}
	res := ValidateItem(item)
	if res.Valid {
		t.Fatalf("expected invalid with one correct answer")
	}
	if !hasField(res, "correctOptions") {
		t.Fatalf("expected correctOptions flagged, got %v", res.InvalidFields)
	}
}

func TestValidateNoneOfTheAbovePermitsSingleCorrect(t *testing.T) {
	item := validSingleChoice()
	item.Answer = AnswerMultiSelect
	item.NoneOfTheAbove = true
	item.CorrectOptions = []int{2}
	res := ValidateItem(item)
	if !res.Valid {
		t.Fatalf("expected valid, got errors: %v", res.Errors)
	}

	item.CorrectOptions = []int{0, 2}
	res = ValidateItem(item)
	if res.Valid {
		t.Fatalf("expected invalid with two correct answers under none-of-the-above")
	}
}

func TestValidateMultiSelectDeduplicatesIndices(t *testing.T) {
	item := validSingleChoice()
	item.Answer = AnswerMultiSelect
	item.CorrectOptions = []int{1, 1, 9}
	res := ValidateItem(item)
	if res.Valid {
		t.Fatalf("expected invalid: duplicates and out-of-range collapse to one answer")
	}
}

func TestValidateRejectsTooManyOptions(t *testing.T) {
	item := validSingleChoice()
	item.Options = []string{"a", "b", "c", "d", "e", "f", "g"}
	res := ValidateItem(item)
	if res.Valid {
		t.Fatalf("expected invalid with %d options", len(item.Options))
	}
	if !hasField(res, "options") {
		t.Fatalf("expected options flagged, got %v", res.InvalidFields)
	}
}

func TestValidateChecksURLs(t *testing.T) {
	item := validSingleChoice()
	item.Meta.VideoURL = "not a url"
	item.Meta.Citations = []Citation{{Title: "Source", URL: "https://example.com/a"}, {URL: "https://example.com/b"}}
	res := ValidateItem(item)
	if res.Valid {
		t.Fatalf("expected invalid for malformed video url and untitled citation")
	}
	if !hasField(res, "videoUrl") {
		t.Fatalf("expected videoUrl flagged, got %v", res.InvalidFields)
	}
	if !hasField(res, "citation-1-title") {
		t.Fatalf("expected citation title flagged, got %v", res.InvalidFields)
	}
}

func TestValidateInvalidFieldsAreDeduplicated(t *testing.T) {
	item := QuizItem{Answer: AnswerSingleChoice}
	res := ValidateItem(item)
	seen := map[string]int{}
	for _, f := range res.InvalidFields {
		seen[f]++
		if seen[f] > 1 {
			t.Fatalf("field %q listed twice in %v", f, res.InvalidFields)
		}
	}
}

func hasField(res ValidationResult, field string) bool {
	for _, f := range res.InvalidFields {
		if f == field {
			return true
		}
	}
	return false
}
