package gamification

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/recoagua/backend/internal/events"
	"github.com/recoagua/backend/internal/grading"
	"github.com/recoagua/backend/internal/logger"
	"github.com/recoagua/backend/internal/models"
)

type Options struct {
	ReferencePolicy ReferencePolicy
	LevelBadges     bool
	Publisher       events.Publisher
	Logger          *logger.Logger
	Now             func() time.Time
}

type Service struct {
	uow       UnitOfWork
	recorder  Recorder
	tracker   ProgressTracker
	rewards   Rewards
	badges    BadgeEvaluator
	publisher events.Publisher
	log       *logger.Logger
	now       func() time.Time
}

func NewService(uow UnitOfWork, opts Options) *Service {
	if opts.Publisher == nil {
		opts.Publisher = events.NopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	rewards := Rewards{LevelBadges: opts.LevelBadges}
	return &Service{
		uow:       uow,
		recorder:  Recorder{Policy: opts.ReferencePolicy},
		tracker:   ProgressTracker{Rewards: rewards},
		rewards:   rewards,
		publisher: opts.Publisher,
		log:       opts.Logger.With("component", "gamification"),
		now:       opts.Now,
	}
}

// ── Block Responses ─────────────────────────────────────

// SubmitBlockResponse grades, records and applies one submission. All writes
// happen in one transaction; events go out after it commits.
func (s *Service) SubmitBlockResponse(ctx context.Context, userID, blockID int64, req models.SubmitBlockResponseRequest) (*models.SubmitBlockResponseResult, error) {
	var (
		result  *models.SubmitBlockResponseResult
		pending []events.Event
	)

	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos Repos) error {
		user, err := repos.Users().LockUser(ctx, userID)
		if err != nil {
			return err
		}
		block, err := repos.Content().GetBlock(ctx, blockID)
		if err != nil {
			return err
		}

		var qt models.QuestionType
		if block.QuestionType != nil {
			qt = *block.QuestionType
		}
		sub := grading.FromRequest(qt, req)
		correct, err := grading.Grade(block, sub)
		if err != nil {
			return err
		}

		now := s.now()
		resp, err := s.recorder.Record(ctx, repos, user.ID, block, sub, correct, now)
		if err != nil {
			return err
		}

		outcome, err := s.tracker.Apply(ctx, repos, user, block, resp, now)
		if err != nil {
			return err
		}

		result = &models.SubmitBlockResponseResult{
			ResponseID:    resp.ID,
			BlockID:       block.ID,
			IsCorrect:     correct,
			EarnedPoints:  outcome.EarnedPoints,
			LeveledUp:     outcome.LeveledUp,
			NewLevel:      outcome.NewLevel,
			AwardedBadges: outcome.AwardedBadges,
			SubmittedAt:   resp.SubmittedAt,
			Progress:      outcome.Progress,
		}

		if outcome.Completed {
			pending = append(pending, events.New(events.ModuleCompleted, user.ID, now, map[string]interface{}{
				"module_id": outcome.Module.ID,
				"guide_id":  outcome.Module.GuideID,
				"points":    outcome.EarnedPoints,
			}))
		}
		pending = append(pending, rewardEvents(user.ID, now, outcome.LeveledUp, outcome.NewLevel, outcome.AwardedBadges)...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("block response recorded",
		"user_id", userID, "block_id", blockID, "correct", result.IsCorrect, "earned_points", result.EarnedPoints)
	s.publish(ctx, pending)
	return result, nil
}

func (s *Service) ListResponses(ctx context.Context, userID int64, blockID *int64) ([]models.UserBlockResponse, error) {
	var out []models.UserBlockResponse
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos Repos) error {
		var err error
		out, err = repos.Responses().ListResponses(ctx, userID, blockID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.UserBlockResponse{}
	}
	return out, nil
}

func (s *Service) UserResponseStats(ctx context.Context, userID int64) (*models.ResponseStats, error) {
	var stats models.ResponseStats
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos Repos) error {
		var err error
		stats, err = repos.Responses().UserStats(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return finishStats(stats), nil
}

func (s *Service) BlockStats(ctx context.Context, blockID int64) (*models.ResponseStats, error) {
	var stats models.ResponseStats
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos Repos) error {
		if _, err := repos.Content().GetBlock(ctx, blockID); err != nil {
			return err
		}
		var err error
		stats, err = repos.Responses().BlockStats(ctx, blockID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return finishStats(stats), nil
}

func finishStats(stats models.ResponseStats) *models.ResponseStats {
	stats.IncorrectResponses = stats.TotalResponses - stats.CorrectResponses
	stats.AccuracyRate = percent(stats.CorrectResponses, stats.TotalResponses)
	return &stats
}

// percent returns part/whole as a percentage rounded to two decimals.
func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*10000) / 100
}

// ── Progress ────────────────────────────────────────────

func (s *Service) GuideProgress(ctx context.Context, userID, guideID int64) (*models.GuideProgressResponse, error) {
	resp := &models.GuideProgressResponse{GuideID: guideID, Progress: []models.UserProgress{}}
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos Repos) error {
		if _, err := repos.Content().GetGuide(ctx, guideID); err != nil {
			return err
		}
		modules, err := repos.Content().ListGuideModules(ctx, guideID)
		if err != nil {
			return fmt.Errorf("list guide modules: %w", err)
		}
		rows, err := repos.Progress().ListByGuide(ctx, userID, guideID)
		if err != nil {
			return fmt.Errorf("list guide progress: %w", err)
		}

		order := make(map[int64]int, len(modules))
		for _, m := range modules {
			order[m.ID] = m.Order
		}
		sort.SliceStable(rows, func(i, j int) bool {
			return order[rows[i].ModuleID] < order[rows[j].ModuleID]
		})

		resp.Progress = append(resp.Progress, rows...)
		resp.Stats.TotalModules = len(modules)
		for _, p := range rows {
			if p.CompletionStatus == models.StatusCompleted {
				resp.Stats.CompletedModules++
			}
			resp.Stats.TotalPointsEarned += p.EarnedPoints
		}
		resp.Stats.CompletionPercentage = percent(resp.Stats.CompletedModules, resp.Stats.TotalModules)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Service) ProgressStats(ctx context.Context, userID int64) (*models.ProgressStats, error) {
	stats := &models.ProgressStats{}
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos Repos) error {
		rows, err := repos.Progress().ListByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("list progress: %w", err)
		}

		completedByGuide := map[int64]int{}
		for _, p := range rows {
			stats.TotalModulesStarted++
			stats.TotalPointsEarned += p.EarnedPoints
			if p.CompletionStatus == models.StatusCompleted {
				stats.CompletedModules++
				completedByGuide[p.GuideID]++
			}
		}

		for guideID, completed := range completedByGuide {
			modules, err := repos.Content().ListGuideModules(ctx, guideID)
			if err != nil {
				return fmt.Errorf("list guide modules: %w", err)
			}
			if len(modules) > 0 && completed >= len(modules) {
				stats.CompletedGuides++
			}
		}
		stats.CompletionRate = percent(stats.CompletedModules, stats.TotalModulesStarted)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// ── Profile & Badges ────────────────────────────────────

func (s *Service) Profile(ctx context.Context, userID int64) (*models.ProfileResponse, error) {
	var resp *models.ProfileResponse
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos Repos) error {
		user, err := repos.Users().GetUser(ctx, userID)
		if err != nil {
			return err
		}
		levels, err := repos.Levels().ListLevels(ctx)
		if err != nil {
			return fmt.Errorf("list levels: %w", err)
		}
		badges, err := repos.Badges().ListUserBadges(ctx, userID)
		if err != nil {
			return fmt.Errorf("list user badges: %w", err)
		}
		if badges == nil {
			badges = []models.UserBadge{}
		}

		resp = &models.ProfileResponse{
			UserID:         user.ID,
			DisplayName:    user.DisplayName(),
			Experience:     user.Experience,
			Level:          LevelFor(levels, user.Experience),
			NextLevel:      NextLevel(levels, user.Experience),
			LevelsObtained: LevelsObtained(levels, user.Experience),
			Badges:         badges,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Service) ListUserBadges(ctx context.Context, userID int64) ([]models.UserBadge, error) {
	var out []models.UserBadge
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos Repos) error {
		var err error
		out, err = repos.Badges().ListUserBadges(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.UserBadge{}
	}
	return out, nil
}

// GrantManualBadge gives a manual badge to a user on behalf of an admin.
func (s *Service) GrantManualBadge(ctx context.Context, userID, badgeID int64) (*models.ManualBadgeResponse, error) {
	var (
		badge   *models.Badge
		granted bool
	)
	now := s.now()
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos Repos) error {
		if _, err := repos.Users().LockUser(ctx, userID); err != nil {
			return err
		}
		var err error
		badge, granted, err = s.badges.GrantManual(ctx, repos, userID, badgeID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	if granted {
		s.log.Info("manual badge granted", "user_id", userID, "badge_id", badgeID)
		s.publish(ctx, rewardEvents(userID, now, false, nil, []models.Badge{*badge}))
	}
	return &models.ManualBadgeResponse{UserID: userID, BadgeID: badgeID, Granted: granted}, nil
}

// ── Events ──────────────────────────────────────────────

func rewardEvents(userID int64, at time.Time, leveledUp bool, level *models.Level, badges []models.Badge) []events.Event {
	var out []events.Event
	if leveledUp && level != nil {
		out = append(out, events.New(events.LevelUp, userID, at, map[string]interface{}{
			"level_id":        level.ID,
			"level_name":      level.Name,
			"required_points": level.RequiredPoints,
		}))
	}
	for _, b := range badges {
		out = append(out, events.New(events.BadgeAwarded, userID, at, map[string]interface{}{
			"badge_id":     b.ID,
			"badge_name":   b.Name,
			"trigger_type": b.TriggerType,
		}))
	}
	return out
}

// publish sends committed outcomes. Failures are logged and dropped.
func (s *Service) publish(ctx context.Context, evts []events.Event) {
	for _, evt := range evts {
		switch evt.Type {
		case events.LevelUp:
			s.log.Info("level up", "user_id", evt.UserID, "level", evt.Data["level_name"])
		case events.BadgeAwarded:
			s.log.Info("badge awarded", "user_id", evt.UserID, "badge", evt.Data["badge_name"])
		case events.ModuleCompleted:
			s.log.Info("module completed", "user_id", evt.UserID, "module_id", evt.Data["module_id"])
		}
		if err := s.publisher.Publish(ctx, evt); err != nil {
			s.log.Warn("failed to publish event", "type", evt.Type, "user_id", evt.UserID, "error", err)
		}
	}
}
