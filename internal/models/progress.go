package models

import "time"

// ── Responses ─────────────────────────────────────────────

type UserBlockResponse struct {
	ID            int64              `json:"id"`
	UserID        int64              `json:"user_id"`
	BlockID       int64              `json:"block_id"`
	IsCorrect     bool               `json:"is_correct"`
	SubmittedAt   time.Time          `json:"submitted_at"`
	AnswerDetails []UserAnswerDetail `json:"answer_details,omitempty"`
}

// UserAnswerDetail captures one submitted element. Exactly one of AnswerID,
// CustomAnswer, RelationalPairID is set.
type UserAnswerDetail struct {
	ID               int64   `json:"id"`
	ResponseID       int64   `json:"response_id"`
	AnswerID         *int64  `json:"answer_id,omitempty"`
	CustomAnswer     *string `json:"custom_answer,omitempty"`
	RelationalPairID *int64  `json:"relational_pair_id,omitempty"`
}

// ── Progress ──────────────────────────────────────────────

type CompletionStatus string

const (
	StatusNotStarted CompletionStatus = "not_started"
	StatusInProgress CompletionStatus = "in_progress"
	StatusCompleted  CompletionStatus = "completed"
)

type UserProgress struct {
	ID               int64            `json:"id"`
	UserID           int64            `json:"user_id"`
	GuideID          int64            `json:"guide_id"`
	ModuleID         int64            `json:"module_id"`
	CompletionStatus CompletionStatus `json:"completion_status"`
	EarnedPoints     int64            `json:"earned_points"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
}

// ── Request Types ─────────────────────────────────────────

// SubmitBlockResponseRequest is the wire shape of a submission. Which fields
// matter depends on the block's question type.
type SubmitBlockResponseRequest struct {
	SelectedAnswerIDs []int64 `json:"selected_answer_ids,omitempty"`
	CustomAnswer      *string `json:"custom_answer,omitempty"`
	RelationalPairIDs []int64 `json:"relational_pair_ids,omitempty"`
	RelationalPairID  *int64  `json:"relational_pair_id,omitempty"`
}

// ── Response Types ────────────────────────────────────────

type SubmitBlockResponseResult struct {
	ResponseID    int64        `json:"response_id"`
	BlockID       int64        `json:"block_id"`
	IsCorrect     bool         `json:"is_correct"`
	EarnedPoints  int64        `json:"earned_points"`
	LeveledUp     bool         `json:"leveled_up"`
	NewLevel      *Level       `json:"new_level"`
	AwardedBadges []Badge      `json:"awarded_badges"`
	SubmittedAt   time.Time    `json:"submitted_at"`
	Progress      UserProgress `json:"progress"`
}

type ResponseStats struct {
	TotalResponses     int     `json:"total_responses"`
	CorrectResponses   int     `json:"correct_responses"`
	IncorrectResponses int     `json:"incorrect_responses"`
	AccuracyRate       float64 `json:"accuracy_rate"`
	UniqueUsers        int     `json:"unique_users,omitempty"`
}

type GuideProgressStats struct {
	TotalModules         int     `json:"total_modules"`
	CompletedModules     int     `json:"completed_modules"`
	TotalPointsEarned    int64   `json:"total_points_earned"`
	CompletionPercentage float64 `json:"completion_percentage"`
}

type GuideProgressResponse struct {
	GuideID  int64              `json:"guide_id"`
	Progress []UserProgress     `json:"progress"`
	Stats    GuideProgressStats `json:"stats"`
}

type ProgressStats struct {
	TotalModulesStarted int     `json:"total_modules_started"`
	CompletedModules    int     `json:"completed_modules"`
	TotalPointsEarned   int64   `json:"total_points_earned"`
	CompletedGuides     int     `json:"completed_guides"`
	CompletionRate      float64 `json:"completion_rate"`
}
