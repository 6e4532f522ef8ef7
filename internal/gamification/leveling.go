package gamification

import (
	"context"
	"fmt"

	"github.com/recoagua/backend/internal/models"
)

// LevelFor returns the level with the greatest threshold at or below points,
// or nil when points is below the lowest threshold. levels must be sorted by
// RequiredPoints ascending.
func LevelFor(levels []models.Level, points int64) *models.Level {
	var current *models.Level
	for i := range levels {
		if levels[i].RequiredPoints > points {
			break
		}
		current = &levels[i]
	}
	return current
}

// NextLevel returns the first level above points, or nil at the top of the ladder.
func NextLevel(levels []models.Level, points int64) *models.Level {
	for i := range levels {
		if levels[i].RequiredPoints > points {
			return &levels[i]
		}
	}
	return nil
}

// LevelsObtained returns every level whose threshold is at or below points.
func LevelsObtained(levels []models.Level, points int64) []models.Level {
	out := []models.Level{}
	for _, l := range levels {
		if l.RequiredPoints > points {
			break
		}
		out = append(out, l)
	}
	return out
}

// LevelRank is the 1-based position of levelID on the ladder, 0 if absent.
func LevelRank(levels []models.Level, levelID int64) int64 {
	for i, l := range levels {
		if l.ID == levelID {
			return int64(i + 1)
		}
	}
	return 0
}

// Leveling adds experience to users and recomputes their level.
type Leveling struct{}

// AddExperience adds points to user's experience, recomputes the level and
// persists both. user is updated in place and also returned in the result.
func (Leveling) AddExperience(ctx context.Context, repos Repos, user *models.User, points int64) (*models.ExperienceResult, error) {
	if points < 0 {
		return nil, fmt.Errorf("add %d experience: %w", points, models.ErrNegativeExperience)
	}

	levels, err := repos.Levels().ListLevels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}

	experience := user.Experience + points
	level := LevelFor(levels, experience)

	var levelID *int64
	if level != nil {
		id := level.ID
		levelID = &id
	}
	leveledUp := level != nil && (user.LevelID == nil || *user.LevelID != level.ID)

	if err := repos.Users().UpdateExperience(ctx, user.ID, experience, levelID); err != nil {
		return nil, fmt.Errorf("update experience: %w", err)
	}
	user.Experience = experience
	user.LevelID = levelID

	result := &models.ExperienceResult{User: *user, LeveledUp: leveledUp}
	if leveledUp {
		result.NewLevel = level
	}
	return result, nil
}
