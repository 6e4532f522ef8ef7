package gamification

import (
	"context"
	"time"

	"github.com/recoagua/backend/internal/models"
)

// Repos is the set of repositories bound to one transaction. Every engine
// operation runs against a single Repos and either commits all of its
// writes or none.
type Repos interface {
	Users() UserRepository
	Content() ContentRepository
	Levels() LevelRepository
	Responses() ResponseRepository
	Progress() ProgressRepository
	Badges() BadgeRepository
	Challenges() ChallengeRepository
}

// UnitOfWork runs fn inside a transaction. An error from fn rolls back.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error
}

type UserRepository interface {
	// LockUser loads the user and holds a row lock until the transaction ends.
	// Engine operations for one user are serialized on this lock.
	LockUser(ctx context.Context, userID int64) (*models.User, error)
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	UpdateExperience(ctx context.Context, userID int64, experience int64, levelID *int64) error
}

type ContentRepository interface {
	GetBlock(ctx context.Context, blockID int64) (*models.Block, error)
	GetModule(ctx context.Context, moduleID int64) (*models.Module, error)
	GetGuide(ctx context.Context, guideID int64) (*models.Guide, error)
	ListGuideModules(ctx context.Context, guideID int64) ([]models.Module, error)
}

type LevelRepository interface {
	// ListLevels returns the ladder ordered by RequiredPoints ascending.
	ListLevels(ctx context.Context) ([]models.Level, error)
}

type ResponseRepository interface {
	CreateResponse(ctx context.Context, resp *models.UserBlockResponse) error
	CreateAnswerDetail(ctx context.Context, detail *models.UserAnswerDetail) error
	// CountPriorCorrect counts the user's correct responses to blockID other
	// than excludeID.
	CountPriorCorrect(ctx context.Context, userID, blockID, excludeID int64) (int, error)
	// CountCorrectBlocks counts distinct blocks the user answered correctly.
	CountCorrectBlocks(ctx context.Context, userID int64) (int, error)
	// CountAnsweredBlocks counts distinct blocks of moduleID with at least one
	// response from the user, correct or not.
	CountAnsweredBlocks(ctx context.Context, userID, moduleID int64) (int, error)
	ListResponses(ctx context.Context, userID int64, blockID *int64) ([]models.UserBlockResponse, error)
	UserStats(ctx context.Context, userID int64) (models.ResponseStats, error)
	BlockStats(ctx context.Context, blockID int64) (models.ResponseStats, error)
}

type ProgressRepository interface {
	// FindOrCreate returns the user's progress row for the module, creating
	// it as in_progress with zero points when absent.
	FindOrCreate(ctx context.Context, userID, guideID, moduleID int64) (*models.UserProgress, error)
	Save(ctx context.Context, p *models.UserProgress) error
	ListByGuide(ctx context.Context, userID, guideID int64) ([]models.UserProgress, error)
	ListByUser(ctx context.Context, userID int64) ([]models.UserProgress, error)
}

type BadgeRepository interface {
	GetBadge(ctx context.Context, badgeID int64) (*models.Badge, error)
	ListActiveByTrigger(ctx context.Context, trigger models.BadgeTriggerType) ([]models.Badge, error)
	HasBadge(ctx context.Context, userID, badgeID int64) (bool, error)
	// Grant inserts the (user, badge) pair and reports whether it was new.
	Grant(ctx context.Context, userID, badgeID int64, at time.Time) (bool, error)
	ListUserBadges(ctx context.Context, userID int64) ([]models.UserBadge, error)
}

type ChallengeRepository interface {
	GetChallenge(ctx context.Context, challengeID int64) (*models.Challenge, error)
	// FindUserChallenge returns nil, nil when the user has no record.
	FindUserChallenge(ctx context.Context, userID, challengeID int64) (*models.UserChallenge, error)
	CreateUserChallenge(ctx context.Context, uc *models.UserChallenge) error
	SaveUserChallenge(ctx context.Context, uc *models.UserChallenge) error
	CountCompleted(ctx context.Context, userID int64) (int, error)
	ListUserChallenges(ctx context.Context, userID int64) ([]models.UserChallenge, error)
}
