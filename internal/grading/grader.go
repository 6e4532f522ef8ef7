// Package grading decides whether a submission answers a question block
// correctly. Grading is pure: no I/O and no partial credit.
package grading

import (
	"fmt"
	"sort"

	"github.com/recoagua/backend/internal/models"
)

// Grade returns whether sub is a correct answer to block. It fails only when
// the block is not a gradable question; a wrong, empty, or mismatched
// submission is simply incorrect.
func Grade(block *models.Block, sub Submission) (bool, error) {
	if !block.IsQuestion() {
		return false, fmt.Errorf("block %d: %w", block.ID, models.ErrNotGradable)
	}

	switch *block.QuestionType {
	case models.QuestionMultipleChoice:
		s, ok := sub.(ChoiceSubmission)
		if !ok || len(s.AnswerIDs) == 0 {
			return false, nil
		}
		return sameSet(s.AnswerIDs, correctAnswerIDs(block)), nil

	case models.QuestionTrueFalse:
		s, ok := sub.(ChoiceSubmission)
		if !ok || len(s.AnswerIDs) != 1 {
			return false, nil
		}
		for _, id := range correctAnswerIDs(block) {
			if id == s.AnswerIDs[0] {
				return true, nil
			}
		}
		return false, nil

	case models.QuestionOpenEnded:
		// Never auto-graded.
		return false, nil

	case models.QuestionMatching:
		s, ok := sub.(PairSubmission)
		if !ok || len(s.PairIDs) == 0 {
			return false, nil
		}
		return sameSet(s.PairIDs, correctPairIDs(block)), nil

	case models.QuestionOrdering:
		s, ok := sub.(OrderSubmission)
		if !ok || len(s.AnswerIDs) == 0 {
			return false, nil
		}
		want := CanonicalOrder(block)
		if len(s.AnswerIDs) != len(want) {
			return false, nil
		}
		for i := range want {
			if s.AnswerIDs[i] != want[i] {
				return false, nil
			}
		}
		return true, nil
	}

	return false, nil
}

// CanonicalOrder returns the block's answer ids sorted by their order index.
func CanonicalOrder(block *models.Block) []int64 {
	answers := make([]models.BlockAnswer, len(block.Answers))
	copy(answers, block.Answers)
	sort.SliceStable(answers, func(i, j int) bool {
		return answers[i].Order < answers[j].Order
	})
	ids := make([]int64, len(answers))
	for i, a := range answers {
		ids[i] = a.ID
	}
	return ids
}

func correctAnswerIDs(block *models.Block) []int64 {
	var ids []int64
	for _, a := range block.Answers {
		if a.IsCorrect {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

func correctPairIDs(block *models.Block) []int64 {
	var ids []int64
	for _, p := range block.RelationalPairs {
		if p.CorrectPair {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// sameSet compares a and b as sets.
func sameSet(a, b []int64) bool {
	as := make(map[int64]bool, len(a))
	for _, id := range a {
		as[id] = true
	}
	bs := make(map[int64]bool, len(b))
	for _, id := range b {
		bs[id] = true
	}
	if len(as) != len(bs) {
		return false
	}
	for id := range as {
		if !bs[id] {
			return false
		}
	}
	return true
}
