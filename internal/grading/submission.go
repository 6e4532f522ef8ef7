package grading

import "github.com/recoagua/backend/internal/models"

// Submission is what a user sent for one block. The concrete type is chosen
// by the block's question type, so each variant only carries the fields that
// question type reads.
type Submission interface {
	isSubmission()
}

// ChoiceSubmission selects answers of a multiple-choice or true/false block.
type ChoiceSubmission struct {
	AnswerIDs []int64
}

// OrderSubmission lists answer ids in the order the user arranged them.
type OrderSubmission struct {
	AnswerIDs []int64
}

// PairSubmission selects relational pairs of a matching block.
type PairSubmission struct {
	PairIDs []int64
}

// TextSubmission is a free-text answer to an open-ended block.
type TextSubmission struct {
	Text string
}

func (ChoiceSubmission) isSubmission() {}
func (OrderSubmission) isSubmission()  {}
func (PairSubmission) isSubmission()   {}
func (TextSubmission) isSubmission()   {}

// FromRequest builds the variant for qt out of the wire request. Fields that
// do not belong to qt are ignored; missing fields give an empty variant,
// which grades as incorrect.
func FromRequest(qt models.QuestionType, req models.SubmitBlockResponseRequest) Submission {
	switch qt {
	case models.QuestionMultipleChoice, models.QuestionTrueFalse:
		return ChoiceSubmission{AnswerIDs: req.SelectedAnswerIDs}
	case models.QuestionOrdering:
		return OrderSubmission{AnswerIDs: req.SelectedAnswerIDs}
	case models.QuestionMatching:
		// A single-pair submission is the one-element case of a multi-pair one.
		if len(req.RelationalPairIDs) > 0 {
			return PairSubmission{PairIDs: req.RelationalPairIDs}
		}
		if req.RelationalPairID != nil {
			return PairSubmission{PairIDs: []int64{*req.RelationalPairID}}
		}
		return PairSubmission{}
	case models.QuestionOpenEnded:
		if req.CustomAnswer != nil {
			return TextSubmission{Text: *req.CustomAnswer}
		}
		return TextSubmission{}
	}
	return nil
}

// Distinct returns ids with duplicates removed, keeping first occurrence order.
func Distinct(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
