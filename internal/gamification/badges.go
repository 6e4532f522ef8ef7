package gamification

import (
	"context"
	"fmt"
	"time"

	"github.com/recoagua/backend/internal/models"
)

// Qualifying filters badges down to those whose threshold is met by counter.
func Qualifying(badges []models.Badge, counter int64) []models.Badge {
	var out []models.Badge
	for _, b := range badges {
		if b.Status == models.BadgeActive && b.Threshold <= counter {
			out = append(out, b)
		}
	}
	return out
}

// BadgeEvaluator grants counter-driven badges.
type BadgeEvaluator struct{}

// CheckAndAward grants every active badge of trigger whose threshold is at or
// below counter and that the user does not hold yet. It returns only the
// badges granted by this call. Manual badges are refused.
func (BadgeEvaluator) CheckAndAward(ctx context.Context, repos Repos, userID int64, trigger models.BadgeTriggerType, counter int64, now time.Time) ([]models.Badge, error) {
	if trigger == models.TriggerManual {
		return nil, fmt.Errorf("evaluate %s badges: %w", trigger, models.ErrManualOnly)
	}

	candidates, err := repos.Badges().ListActiveByTrigger(ctx, trigger)
	if err != nil {
		return nil, fmt.Errorf("list %s badges: %w", trigger, err)
	}

	awarded := []models.Badge{}
	for _, b := range Qualifying(candidates, counter) {
		has, err := repos.Badges().HasBadge(ctx, userID, b.ID)
		if err != nil {
			return nil, fmt.Errorf("check badge %d: %w", b.ID, err)
		}
		if has {
			continue
		}
		granted, err := repos.Badges().Grant(ctx, userID, b.ID, now)
		if err != nil {
			return nil, fmt.Errorf("grant badge %d: %w", b.ID, err)
		}
		if granted {
			awarded = append(awarded, b)
		}
	}
	return awarded, nil
}

// GrantManual grants a manual badge to a user. It reports false when the user
// already holds it.
func (BadgeEvaluator) GrantManual(ctx context.Context, repos Repos, userID, badgeID int64, now time.Time) (*models.Badge, bool, error) {
	badge, err := repos.Badges().GetBadge(ctx, badgeID)
	if err != nil {
		return nil, false, err
	}
	if badge.TriggerType != models.TriggerManual || badge.Status != models.BadgeActive {
		return nil, false, fmt.Errorf("badge %d is %s/%s: %w", badgeID, badge.TriggerType, badge.Status, models.ErrNotManual)
	}
	granted, err := repos.Badges().Grant(ctx, userID, badgeID, now)
	if err != nil {
		return nil, false, fmt.Errorf("grant badge %d: %w", badgeID, err)
	}
	return badge, granted, nil
}
