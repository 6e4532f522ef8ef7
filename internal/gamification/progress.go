package gamification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/recoagua/backend/internal/models"
)

// ProgressOutcome is what one response did to the user's module progress.
type ProgressOutcome struct {
	Progress      models.UserProgress
	FirstCorrect  bool
	Completed     bool
	Module        *models.Module
	EarnedPoints  int64
	LeveledUp     bool
	NewLevel      *models.Level
	AwardedBadges []models.Badge
}

// ProgressTracker applies a recorded response to the user's progress.
type ProgressTracker struct {
	Badges  BadgeEvaluator
	Rewards Rewards
}

// Apply runs the post-recording steps for resp in order: progress upsert,
// first-correct gate with the blocks_completed pass, completion check with
// the experience award and points pass, then the progress write.
func (t ProgressTracker) Apply(ctx context.Context, repos Repos, user *models.User, block *models.Block, resp *models.UserBlockResponse, now time.Time) (*ProgressOutcome, error) {
	module, err := repos.Content().GetModule(ctx, block.ModuleID)
	if errors.Is(err, models.ErrModuleNotFound) {
		return nil, fmt.Errorf("block %d references module %d: %w", block.ID, block.ModuleID, models.ErrInvariantViolation)
	}
	if err != nil {
		return nil, fmt.Errorf("get module: %w", err)
	}

	progress, err := repos.Progress().FindOrCreate(ctx, user.ID, module.GuideID, module.ID)
	if err != nil {
		return nil, fmt.Errorf("upsert progress: %w", err)
	}

	out := &ProgressOutcome{Module: module, AwardedBadges: []models.Badge{}}

	if resp.IsCorrect {
		prior, err := repos.Responses().CountPriorCorrect(ctx, user.ID, block.ID, resp.ID)
		if err != nil {
			return nil, fmt.Errorf("count prior correct: %w", err)
		}
		if prior == 0 {
			out.FirstCorrect = true
			blocks, err := repos.Responses().CountCorrectBlocks(ctx, user.ID)
			if err != nil {
				return nil, fmt.Errorf("count correct blocks: %w", err)
			}
			badges, err := t.Badges.CheckAndAward(ctx, repos, user.ID, models.TriggerBlocksCompleted, int64(blocks), now)
			if err != nil {
				return nil, err
			}
			out.AwardedBadges = append(out.AwardedBadges, badges...)
		}
	}

	// Completed is terminal.
	if progress.CompletionStatus != models.StatusCompleted {
		answered, err := repos.Responses().CountAnsweredBlocks(ctx, user.ID, module.ID)
		if err != nil {
			return nil, fmt.Errorf("count answered blocks: %w", err)
		}

		if module.TotalBlocks() > 0 && answered >= module.TotalBlocks() {
			completedAt := now
			progress.CompletionStatus = models.StatusCompleted
			progress.CompletedAt = &completedAt
			progress.EarnedPoints = module.Points

			reward, err := t.Rewards.Grant(ctx, repos, user, module.Points, now)
			if err != nil {
				return nil, err
			}
			out.Completed = true
			out.EarnedPoints = module.Points
			out.LeveledUp = reward.Experience.LeveledUp
			out.NewLevel = reward.Experience.NewLevel
			out.AwardedBadges = append(out.AwardedBadges, reward.Badges...)
		} else {
			progress.CompletionStatus = models.StatusInProgress
		}
	}

	if err := repos.Progress().Save(ctx, progress); err != nil {
		return nil, fmt.Errorf("save progress: %w", err)
	}
	out.Progress = *progress
	return out, nil
}
