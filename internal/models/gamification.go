package models

import "time"

// ── Levels & Badges ───────────────────────────────────────

type Level struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	RequiredPoints int64  `json:"required_points"`
	Rewards        string `json:"rewards,omitempty"`
}

type BadgeTriggerType string

const (
	TriggerPoints              BadgeTriggerType = "points"
	TriggerBlocksCompleted     BadgeTriggerType = "blocks_completed"
	TriggerChallengesCompleted BadgeTriggerType = "challenges_completed"
	TriggerLevelReached        BadgeTriggerType = "level_reached"
	TriggerManual              BadgeTriggerType = "manual"
)

type BadgeStatus string

const (
	BadgeActive   BadgeStatus = "active"
	BadgeInactive BadgeStatus = "inactive"
)

type Badge struct {
	ID           int64            `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	ImageURL     string           `json:"image_url,omitempty"`
	Requirements string           `json:"requirements,omitempty"`
	TriggerType  BadgeTriggerType `json:"trigger_type"`
	Threshold    int64            `json:"threshold"`
	Status       BadgeStatus      `json:"status"`
}

type UserBadge struct {
	UserID   int64     `json:"user_id"`
	Badge    Badge     `json:"badge"`
	EarnedAt time.Time `json:"earned_at"`
}

// ── Challenges ────────────────────────────────────────────

type ChallengeCompletionStatus string

const (
	ChallengeNotStarted ChallengeCompletionStatus = "not_started"
	ChallengeInProgress ChallengeCompletionStatus = "in_progress"
	ChallengeCompleted  ChallengeCompletionStatus = "completed"
	ChallengeFailed     ChallengeCompletionStatus = "failed"
)

type Challenge struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Score       int64  `json:"score"`
}

type UserChallenge struct {
	ID               int64                     `json:"id"`
	UserID           int64                     `json:"user_id"`
	ChallengeID      int64                     `json:"challenge_id"`
	Challenge        *Challenge                `json:"challenge,omitempty"`
	CompletionStatus ChallengeCompletionStatus `json:"completion_status"`
	EarnedPoints     int64                     `json:"earned_points"`
	CompletedAt      *time.Time                `json:"completed_at,omitempty"`
	CreatedAt        time.Time                 `json:"created_at"`
}

// ── Engine Results ────────────────────────────────────────

// ExperienceResult is returned by the leveling service after an award.
type ExperienceResult struct {
	User      User   `json:"user"`
	LeveledUp bool   `json:"leveled_up"`
	NewLevel  *Level `json:"new_level"`
}

type CompleteChallengeResponse struct {
	UserChallengeID  int64                     `json:"user_challenge_id"`
	CompletionStatus ChallengeCompletionStatus `json:"completion_status"`
	XPAwarded        int64                     `json:"xp_awarded"`
	LeveledUp        bool                      `json:"leveled_up"`
	NewLevel         *Level                    `json:"new_level"`
	AwardedBadges    []Badge                   `json:"awarded_badges"`
}

type ProfileResponse struct {
	UserID         int64       `json:"user_id"`
	DisplayName    string      `json:"display_name"`
	Experience     int64       `json:"experience"`
	Level          *Level      `json:"level"`
	NextLevel      *Level      `json:"next_level"`
	LevelsObtained []Level     `json:"levels_obtained"`
	Badges         []UserBadge `json:"badges"`
}

type ManualBadgeResponse struct {
	UserID  int64 `json:"user_id"`
	BadgeID int64 `json:"badge_id"`
	Granted bool  `json:"granted"`
}
