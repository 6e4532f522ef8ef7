package gamification

import (
	"context"
	"fmt"
	"time"

	"github.com/recoagua/backend/internal/grading"
	"github.com/recoagua/backend/internal/models"
)

// ReferencePolicy decides what happens to submitted ids that do not belong
// to the block.
type ReferencePolicy int

const (
	// SkipUnknown drops unknown ids and records the rest.
	SkipUnknown ReferencePolicy = iota
	// RejectUnknown fails the submission with ErrUnknownReference.
	RejectUnknown
)

func ParseReferencePolicy(s string) ReferencePolicy {
	if s == "strict" {
		return RejectUnknown
	}
	return SkipUnknown
}

// Recorder persists one response row per submission plus one detail row per
// distinct submitted element.
type Recorder struct {
	Policy ReferencePolicy
}

// Record stores the response. In RejectUnknown mode the references are
// checked before anything is written.
func (r Recorder) Record(ctx context.Context, repos Repos, userID int64, block *models.Block, sub grading.Submission, correct bool, now time.Time) (*models.UserBlockResponse, error) {
	details, err := r.details(block, sub)
	if err != nil {
		return nil, err
	}

	resp := &models.UserBlockResponse{
		UserID:      userID,
		BlockID:     block.ID,
		IsCorrect:   correct,
		SubmittedAt: now,
	}
	if err := repos.Responses().CreateResponse(ctx, resp); err != nil {
		return nil, fmt.Errorf("create response: %w", err)
	}

	for i := range details {
		details[i].ResponseID = resp.ID
		if err := repos.Responses().CreateAnswerDetail(ctx, &details[i]); err != nil {
			return nil, fmt.Errorf("create answer detail: %w", err)
		}
	}
	resp.AnswerDetails = details
	return resp, nil
}

func (r Recorder) details(block *models.Block, sub grading.Submission) ([]models.UserAnswerDetail, error) {
	details := []models.UserAnswerDetail{}

	answers := func(ids []int64) error {
		for _, id := range grading.Distinct(ids) {
			if !block.HasAnswer(id) {
				if r.Policy == RejectUnknown {
					return fmt.Errorf("answer %d on block %d: %w", id, block.ID, models.ErrUnknownReference)
				}
				continue
			}
			id := id
			details = append(details, models.UserAnswerDetail{AnswerID: &id})
		}
		return nil
	}

	switch s := sub.(type) {
	case grading.ChoiceSubmission:
		if err := answers(s.AnswerIDs); err != nil {
			return nil, err
		}
	case grading.OrderSubmission:
		if err := answers(s.AnswerIDs); err != nil {
			return nil, err
		}
	case grading.PairSubmission:
		for _, id := range grading.Distinct(s.PairIDs) {
			if !block.HasRelationalPair(id) {
				if r.Policy == RejectUnknown {
					return nil, fmt.Errorf("relational pair %d on block %d: %w", id, block.ID, models.ErrUnknownReference)
				}
				continue
			}
			id := id
			details = append(details, models.UserAnswerDetail{RelationalPairID: &id})
		}
	case grading.TextSubmission:
		if s.Text != "" {
			text := s.Text
			details = append(details, models.UserAnswerDetail{CustomAnswer: &text})
		}
	}
	return details, nil
}
