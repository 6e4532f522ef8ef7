package gamification

import (
	"context"
	"fmt"

	"github.com/recoagua/backend/internal/events"
	"github.com/recoagua/backend/internal/models"
)

// StartChallenge creates an in-progress record for the user.
func (s *Service) StartChallenge(ctx context.Context, userID, challengeID int64) (*models.UserChallenge, error) {
	var uc *models.UserChallenge
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos Repos) error {
		if _, err := repos.Users().LockUser(ctx, userID); err != nil {
			return err
		}
		challenge, err := repos.Challenges().GetChallenge(ctx, challengeID)
		if err != nil {
			return err
		}
		existing, err := repos.Challenges().FindUserChallenge(ctx, userID, challengeID)
		if err != nil {
			return fmt.Errorf("find user challenge: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("challenge %d: %w", challengeID, models.ErrAlreadyStarted)
		}

		uc = &models.UserChallenge{
			UserID:           userID,
			ChallengeID:      challengeID,
			Challenge:        challenge,
			CompletionStatus: models.ChallengeInProgress,
			CreatedAt:        s.now(),
		}
		if err := repos.Challenges().CreateUserChallenge(ctx, uc); err != nil {
			return fmt.Errorf("create user challenge: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return uc, nil
}

// CompleteChallenge marks the challenge completed and awards its score once.
// A repeat call returns the completed record with nothing awarded. A missing
// user challenge is created on the fly.
func (s *Service) CompleteChallenge(ctx context.Context, userID, challengeID int64) (*models.CompleteChallengeResponse, error) {
	var (
		resp    *models.CompleteChallengeResponse
		pending []events.Event
	)

	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos Repos) error {
		user, err := repos.Users().LockUser(ctx, userID)
		if err != nil {
			return err
		}
		challenge, err := repos.Challenges().GetChallenge(ctx, challengeID)
		if err != nil {
			return err
		}

		uc, err := repos.Challenges().FindUserChallenge(ctx, userID, challengeID)
		if err != nil {
			return fmt.Errorf("find user challenge: %w", err)
		}
		if uc == nil {
			uc = &models.UserChallenge{
				UserID:           userID,
				ChallengeID:      challengeID,
				CompletionStatus: models.ChallengeInProgress,
				CreatedAt:        s.now(),
			}
			if err := repos.Challenges().CreateUserChallenge(ctx, uc); err != nil {
				return fmt.Errorf("create user challenge: %w", err)
			}
		}

		if uc.CompletionStatus == models.ChallengeCompleted {
			resp = &models.CompleteChallengeResponse{
				UserChallengeID:  uc.ID,
				CompletionStatus: uc.CompletionStatus,
				AwardedBadges:    []models.Badge{},
			}
			return nil
		}

		now := s.now()
		uc.CompletionStatus = models.ChallengeCompleted
		uc.CompletedAt = &now
		uc.EarnedPoints = challenge.Score
		if err := repos.Challenges().SaveUserChallenge(ctx, uc); err != nil {
			return fmt.Errorf("save user challenge: %w", err)
		}

		reward, err := s.rewards.Grant(ctx, repos, user, challenge.Score, now)
		if err != nil {
			return err
		}

		completed, err := repos.Challenges().CountCompleted(ctx, userID)
		if err != nil {
			return fmt.Errorf("count completed challenges: %w", err)
		}
		challengeBadges, err := s.badges.CheckAndAward(ctx, repos, userID, models.TriggerChallengesCompleted, int64(completed), now)
		if err != nil {
			return err
		}

		awarded := append([]models.Badge{}, reward.Badges...)
		awarded = append(awarded, challengeBadges...)

		resp = &models.CompleteChallengeResponse{
			UserChallengeID:  uc.ID,
			CompletionStatus: uc.CompletionStatus,
			XPAwarded:        challenge.Score,
			LeveledUp:        reward.Experience.LeveledUp,
			NewLevel:         reward.Experience.NewLevel,
			AwardedBadges:    awarded,
		}

		pending = append(pending, events.New(events.ChallengeCompleted, userID, now, map[string]interface{}{
			"challenge_id": challengeID,
			"points":       challenge.Score,
		}))
		pending = append(pending, rewardEvents(userID, now, resp.LeveledUp, resp.NewLevel, awarded)...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, pending)
	return resp, nil
}

func (s *Service) ListUserChallenges(ctx context.Context, userID int64) ([]models.UserChallenge, error) {
	var out []models.UserChallenge
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos Repos) error {
		var err error
		out, err = repos.Challenges().ListUserChallenges(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.UserChallenge{}
	}
	return out, nil
}
