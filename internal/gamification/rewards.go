package gamification

import (
	"context"
	"fmt"
	"time"

	"github.com/recoagua/backend/internal/models"
)

// Rewards adds experience and runs the badge passes that follow it.
type Rewards struct {
	Leveling Leveling
	Badges   BadgeEvaluator
	// LevelBadges enables level_reached badges on level-up.
	LevelBadges bool
}

type Reward struct {
	Experience *models.ExperienceResult
	Badges     []models.Badge
}

// Grant adds points to user, then evaluates points badges against the new
// experience and, on a level-up, level_reached badges against the new
// level's rank.
func (rw Rewards) Grant(ctx context.Context, repos Repos, user *models.User, points int64, now time.Time) (*Reward, error) {
	exp, err := rw.Leveling.AddExperience(ctx, repos, user, points)
	if err != nil {
		return nil, err
	}

	badges, err := rw.Badges.CheckAndAward(ctx, repos, user.ID, models.TriggerPoints, user.Experience, now)
	if err != nil {
		return nil, err
	}

	if exp.LeveledUp && rw.LevelBadges {
		levels, err := repos.Levels().ListLevels(ctx)
		if err != nil {
			return nil, fmt.Errorf("list levels: %w", err)
		}
		rank := LevelRank(levels, exp.NewLevel.ID)
		levelBadges, err := rw.Badges.CheckAndAward(ctx, repos, user.ID, models.TriggerLevelReached, rank, now)
		if err != nil {
			return nil, err
		}
		badges = append(badges, levelBadges...)
	}

	return &Reward{Experience: exp, Badges: badges}, nil
}
