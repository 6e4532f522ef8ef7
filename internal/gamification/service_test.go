package gamification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/recoagua/backend/internal/events"
	"github.com/recoagua/backend/internal/models"
)

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newTestService(db *fakeDB, opts Options) (*Service, *events.Recorder) {
	rec := &events.Recorder{}
	opts.Publisher = rec
	opts.Now = func() time.Time { return fixedNow }
	return NewService(db, opts), rec
}

// twoBlockModule seeds guide 1 / module 1 worth 25 points with two
// multiple-choice blocks: 1 (correct answer 11) and 2 (correct answer 21).
func twoBlockModule() *fakeDB {
	db := newFakeDB()
	db.addLevels(0, 1000, 5000)
	db.addUser(1, "Ana Pérez")
	db.addGuide(1)
	db.addModule(1, 1, 1, 25)
	db.addBlock(mcBlock(1, 1, 10, 11))
	db.addBlock(mcBlock(2, 1, 15, 21))
	return db
}

func choose(ids ...int64) models.SubmitBlockResponseRequest {
	return models.SubmitBlockResponseRequest{SelectedAnswerIDs: ids}
}

func TestSubmit_ModuleCompletionAwardsOnce(t *testing.T) {
	ctx := context.Background()
	db := twoBlockModule()
	svc, _ := newTestService(db, Options{})

	first, err := svc.SubmitBlockResponse(ctx, 1, 1, choose(11))
	if err != nil {
		t.Fatalf("submit block 1: %v", err)
	}
	if !first.IsCorrect || first.EarnedPoints != 0 {
		t.Errorf("block 1: correct = %v, earned = %d, want true, 0", first.IsCorrect, first.EarnedPoints)
	}
	if first.Progress.CompletionStatus != models.StatusInProgress {
		t.Errorf("block 1: status = %s, want in_progress", first.Progress.CompletionStatus)
	}

	second, err := svc.SubmitBlockResponse(ctx, 1, 2, choose(21))
	if err != nil {
		t.Fatalf("submit block 2: %v", err)
	}
	if second.EarnedPoints != 25 {
		t.Errorf("block 2: earned = %d, want 25", second.EarnedPoints)
	}
	if second.Progress.CompletionStatus != models.StatusCompleted || second.Progress.EarnedPoints != 25 {
		t.Errorf("block 2: progress = %+v, want completed with 25", second.Progress)
	}
	if second.Progress.CompletedAt == nil || !second.Progress.CompletedAt.Equal(fixedNow) {
		t.Errorf("block 2: completedAt = %v, want %v", second.Progress.CompletedAt, fixedNow)
	}
	if got := db.user(1).Experience; got != 25 {
		t.Errorf("experience = %d, want 25", got)
	}

	third, err := svc.SubmitBlockResponse(ctx, 1, 2, choose(21))
	if err != nil {
		t.Fatalf("resubmit block 2: %v", err)
	}
	if third.EarnedPoints != 0 || third.LeveledUp {
		t.Errorf("resubmit: earned = %d, leveledUp = %v, want 0, false", third.EarnedPoints, third.LeveledUp)
	}
	if got := db.user(1).Experience; got != 25 {
		t.Errorf("experience after resubmit = %d, want 25", got)
	}
	if got := len(db.state.responses); got != 3 {
		t.Errorf("response rows = %d, want 3", got)
	}
}

func TestSubmit_CompletionCountsAttemptsNotCorrectness(t *testing.T) {
	ctx := context.Background()
	db := twoBlockModule()
	svc, _ := newTestService(db, Options{})

	if _, err := svc.SubmitBlockResponse(ctx, 1, 1, choose(12)); err != nil {
		t.Fatal(err)
	}
	res, err := svc.SubmitBlockResponse(ctx, 1, 2, choose())
	if err != nil {
		t.Fatal(err)
	}
	if res.IsCorrect {
		t.Error("empty submission graded correct")
	}
	if res.Progress.CompletionStatus != models.StatusCompleted || res.EarnedPoints != 25 {
		t.Errorf("progress = %+v, earned = %d, want completed, 25", res.Progress, res.EarnedPoints)
	}
}

func TestSubmit_BlocksCompletedBadgeCountsBlocksOnce(t *testing.T) {
	ctx := context.Background()
	db := twoBlockModule()
	db.addBadge(100, models.TriggerBlocksCompleted, 1)
	db.addBadge(101, models.TriggerBlocksCompleted, 2)
	svc, _ := newTestService(db, Options{})

	first, _ := svc.SubmitBlockResponse(ctx, 1, 1, choose(11))
	if len(first.AwardedBadges) != 1 || first.AwardedBadges[0].ID != 100 {
		t.Errorf("first correct: badges = %v, want [100]", first.AwardedBadges)
	}

	again, _ := svc.SubmitBlockResponse(ctx, 1, 1, choose(11))
	if len(again.AwardedBadges) != 0 {
		t.Errorf("repeat correct: badges = %v, want none", again.AwardedBadges)
	}

	// Two correct rows for block 1 must still count as one block.
	db.state.badges[102] = models.Badge{ID: 102, TriggerType: models.TriggerBlocksCompleted, Threshold: 3, Status: models.BadgeActive}
	other, _ := svc.SubmitBlockResponse(ctx, 1, 2, choose(21))
	ids := map[int64]bool{}
	for _, b := range other.AwardedBadges {
		ids[b.ID] = true
	}
	if !ids[101] || ids[102] {
		t.Errorf("second block: badges = %v, want 101 and not 102", other.AwardedBadges)
	}
}

func TestSubmit_LevelUpAndPointsBadge(t *testing.T) {
	ctx := context.Background()
	db := newFakeDB()
	db.addLevels(0, 1000, 5000)
	db.addUser(1, "Ana")
	db.addGuide(1)
	db.addModule(1, 1, 1, 1000)
	db.addBlock(mcBlock(1, 1, 1000, 11))
	db.addBadge(200, models.TriggerPoints, 1000)
	db.addBadge(201, models.TriggerLevelReached, 2)
	svc, rec := newTestService(db, Options{LevelBadges: true})

	res, err := svc.SubmitBlockResponse(ctx, 1, 1, choose(11))
	if err != nil {
		t.Fatal(err)
	}
	if !res.LeveledUp || res.NewLevel == nil || res.NewLevel.RequiredPoints != 1000 {
		t.Errorf("leveledUp = %v, newLevel = %v, want true at 1000", res.LeveledUp, res.NewLevel)
	}
	if len(res.AwardedBadges) != 2 {
		t.Errorf("badges = %v, want points and level_reached", res.AwardedBadges)
	}

	if n := len(rec.OfType(events.ModuleCompleted)); n != 1 {
		t.Errorf("module_completed events = %d, want 1", n)
	}
	if n := len(rec.OfType(events.LevelUp)); n != 1 {
		t.Errorf("level_up events = %d, want 1", n)
	}
	if n := len(rec.OfType(events.BadgeAwarded)); n != 2 {
		t.Errorf("badge_awarded events = %d, want 2", n)
	}
}

func TestSubmit_LevelBadgesDisabled(t *testing.T) {
	ctx := context.Background()
	db := newFakeDB()
	db.addLevels(0, 1000)
	db.addUser(1, "Ana")
	db.addGuide(1)
	db.addModule(1, 1, 1, 1000)
	db.addBlock(mcBlock(1, 1, 0, 11))
	db.addBadge(201, models.TriggerLevelReached, 1)
	svc, _ := newTestService(db, Options{LevelBadges: false})

	res, err := svc.SubmitBlockResponse(ctx, 1, 1, choose(11))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.AwardedBadges) != 0 {
		t.Errorf("badges = %v, want none", res.AwardedBadges)
	}
}

func TestSubmit_Errors(t *testing.T) {
	ctx := context.Background()
	db := twoBlockModule()
	db.addBlock(models.Block{ID: 3, ModuleID: 1, Type: models.BlockVideo})
	db.state.blocks[4] = models.Block{ID: 4, ModuleID: 99, Type: models.BlockQuestion, QuestionType: qtype(models.QuestionTrueFalse),
		Answers: []models.BlockAnswer{{ID: 41, BlockID: 4, IsCorrect: true}}}
	db.state.blocks[5] = models.Block{ID: 5, ModuleID: 1, Type: models.BlockImage, QuestionType: qtype(models.QuestionTrueFalse),
		Answers: []models.BlockAnswer{{ID: 41, BlockID: 5, IsCorrect: true}}}
	svc, rec := newTestService(db, Options{})

	tests := []struct {
		name    string
		userID  int64
		blockID int64
		want    error
	}{
		{"missing user", 9, 1, models.ErrUserNotFound},
		{"missing block", 1, 99, models.ErrBlockNotFound},
		{"not a question", 1, 3, models.ErrNotGradable},
		{"image block with question type", 1, 5, models.ErrNotGradable},
		{"orphan block", 1, 4, models.ErrInvariantViolation},
	}
	for _, tt := range tests {
		_, err := svc.SubmitBlockResponse(ctx, tt.userID, tt.blockID, choose(41))
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: error = %v, want %v", tt.name, err, tt.want)
		}
	}
	if got := len(db.state.responses); got != 0 {
		t.Errorf("response rows after failures = %d, want 0", got)
	}
	if got := len(rec.Events); got != 0 {
		t.Errorf("events after failures = %d, want 0", got)
	}
}

func TestSubmit_StrictPolicyLeavesNoState(t *testing.T) {
	ctx := context.Background()
	db := twoBlockModule()
	svc, _ := newTestService(db, Options{ReferencePolicy: RejectUnknown})

	_, err := svc.SubmitBlockResponse(ctx, 1, 1, choose(11, 999))
	if !errors.Is(err, models.ErrUnknownReference) {
		t.Fatalf("error = %v, want ErrUnknownReference", err)
	}
	if len(db.state.responses) != 0 || len(db.state.progress) != 0 {
		t.Errorf("state written: %d responses, %d progress rows", len(db.state.responses), len(db.state.progress))
	}
}

func TestCompleteChallenge_Twice(t *testing.T) {
	ctx := context.Background()
	db := newFakeDB()
	db.addLevels(0, 1000, 5000)
	db.addUser(1, "Ana")
	db.addChallenge(7, 100)
	db.addBadge(300, models.TriggerChallengesCompleted, 1)
	svc, _ := newTestService(db, Options{})

	first, err := svc.CompleteChallenge(ctx, 1, 7)
	if err != nil {
		t.Fatal(err)
	}
	if first.XPAwarded != 100 || first.CompletionStatus != models.ChallengeCompleted {
		t.Errorf("first: xp = %d, status = %s, want 100, completed", first.XPAwarded, first.CompletionStatus)
	}
	if !first.LeveledUp {
		t.Error("first: leveledUp = false, want true (first level attained)")
	}
	if len(first.AwardedBadges) != 1 || first.AwardedBadges[0].ID != 300 {
		t.Errorf("first: badges = %v, want [300]", first.AwardedBadges)
	}

	second, err := svc.CompleteChallenge(ctx, 1, 7)
	if err != nil {
		t.Fatal(err)
	}
	if second.XPAwarded != 0 || second.LeveledUp || second.CompletionStatus != models.ChallengeCompleted {
		t.Errorf("second: %+v, want xp 0, no level-up, completed", second)
	}
	if second.UserChallengeID != first.UserChallengeID {
		t.Errorf("second: user challenge id = %d, want %d", second.UserChallengeID, first.UserChallengeID)
	}
	if got := db.user(1).Experience; got != 100 {
		t.Errorf("experience = %d, want 100", got)
	}
}

func TestStartChallenge(t *testing.T) {
	ctx := context.Background()
	db := newFakeDB()
	db.addUser(1, "Ana")
	db.addChallenge(7, 100)
	svc, _ := newTestService(db, Options{})

	uc, err := svc.StartChallenge(ctx, 1, 7)
	if err != nil {
		t.Fatal(err)
	}
	if uc.CompletionStatus != models.ChallengeInProgress {
		t.Errorf("status = %s, want in_progress", uc.CompletionStatus)
	}
	if _, err := svc.StartChallenge(ctx, 1, 7); !errors.Is(err, models.ErrAlreadyStarted) {
		t.Errorf("second start error = %v, want ErrAlreadyStarted", err)
	}
	if _, err := svc.StartChallenge(ctx, 1, 8); !errors.Is(err, models.ErrChallengeNotFound) {
		t.Errorf("missing challenge error = %v, want ErrChallengeNotFound", err)
	}

	res, err := svc.CompleteChallenge(ctx, 1, 7)
	if err != nil {
		t.Fatal(err)
	}
	if res.UserChallengeID != uc.ID {
		t.Errorf("complete used user challenge %d, want %d", res.UserChallengeID, uc.ID)
	}
	list, _ := svc.ListUserChallenges(ctx, 1)
	if len(list) != 1 {
		t.Errorf("ListUserChallenges = %d rows, want 1", len(list))
	}
}

func TestGrantManualBadge(t *testing.T) {
	ctx := context.Background()
	db := newFakeDB()
	db.addUser(1, "Ana")
	db.addBadge(400, models.TriggerManual, 0)
	db.addBadge(401, models.TriggerPoints, 10)
	svc, rec := newTestService(db, Options{})

	res, err := svc.GrantManualBadge(ctx, 1, 400)
	if err != nil || !res.Granted {
		t.Fatalf("first grant = %+v, %v, want granted", res, err)
	}
	res, err = svc.GrantManualBadge(ctx, 1, 400)
	if err != nil || res.Granted {
		t.Errorf("second grant = %+v, %v, want not granted", res, err)
	}
	if _, err := svc.GrantManualBadge(ctx, 1, 401); !errors.Is(err, models.ErrNotManual) {
		t.Errorf("grant points badge error = %v, want ErrNotManual", err)
	}
	if _, err := svc.GrantManualBadge(ctx, 1, 499); !errors.Is(err, models.ErrBadgeNotFound) {
		t.Errorf("grant missing badge error = %v, want ErrBadgeNotFound", err)
	}
	if n := len(rec.OfType(events.BadgeAwarded)); n != 1 {
		t.Errorf("badge_awarded events = %d, want 1", n)
	}
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	db := twoBlockModule()
	db.addModule(2, 1, 2, 50)
	db.addBlock(mcBlock(3, 2, 5, 31))
	db.addUser(2, "Luis")
	svc, _ := newTestService(db, Options{})

	svc.SubmitBlockResponse(ctx, 1, 1, choose(11))
	svc.SubmitBlockResponse(ctx, 1, 2, choose(22))
	svc.SubmitBlockResponse(ctx, 1, 3, choose(31))
	svc.SubmitBlockResponse(ctx, 2, 1, choose(12))

	stats, err := svc.UserResponseStats(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalResponses != 3 || stats.CorrectResponses != 2 || stats.IncorrectResponses != 1 {
		t.Errorf("user stats = %+v, want 3/2/1", stats)
	}
	if stats.AccuracyRate != 66.67 {
		t.Errorf("accuracy = %v, want 66.67", stats.AccuracyRate)
	}

	block, err := svc.BlockStats(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if block.TotalResponses != 2 || block.UniqueUsers != 2 || block.AccuracyRate != 50 {
		t.Errorf("block stats = %+v, want 2 responses, 2 users, 50%%", block)
	}
	if _, err := svc.BlockStats(ctx, 99); !errors.Is(err, models.ErrBlockNotFound) {
		t.Errorf("BlockStats(99) error = %v, want ErrBlockNotFound", err)
	}

	list, _ := svc.ListResponses(ctx, 1, nil)
	if len(list) != 3 || list[0].BlockID != 3 {
		t.Errorf("ListResponses = %d rows, first block %d, want 3 rows newest first", len(list), list[0].BlockID)
	}
	blockID := int64(2)
	if list, _ := svc.ListResponses(ctx, 1, &blockID); len(list) != 1 || len(list[0].AnswerDetails) != 1 {
		t.Errorf("ListResponses(block 2) = %+v, want one row with one detail", list)
	}

	guide, err := svc.GuideProgress(ctx, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if guide.Stats.TotalModules != 2 || guide.Stats.CompletedModules != 2 || guide.Stats.TotalPointsEarned != 75 {
		t.Errorf("guide stats = %+v, want 2 modules, 2 completed, 75 points", guide.Stats)
	}
	if guide.Progress[0].ModuleID != 1 {
		t.Errorf("guide progress first module = %d, want 1", guide.Progress[0].ModuleID)
	}
	if _, err := svc.GuideProgress(ctx, 1, 9); !errors.Is(err, models.ErrGuideNotFound) {
		t.Errorf("GuideProgress(9) error = %v, want ErrGuideNotFound", err)
	}

	ps, _ := svc.ProgressStats(ctx, 1)
	if ps.TotalModulesStarted != 2 || ps.CompletedModules != 2 || ps.CompletedGuides != 1 || ps.CompletionRate != 100 {
		t.Errorf("progress stats = %+v", ps)
	}
	ps2, _ := svc.ProgressStats(ctx, 2)
	if ps2.TotalModulesStarted != 1 || ps2.CompletedModules != 0 || ps2.CompletedGuides != 0 {
		t.Errorf("progress stats user 2 = %+v", ps2)
	}

	profile, err := svc.Profile(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if profile.Experience != 75 || profile.Level == nil || profile.Level.RequiredPoints != 0 {
		t.Errorf("profile = %+v, want 75 xp at level 0", profile)
	}
	if profile.NextLevel == nil || profile.NextLevel.RequiredPoints != 1000 {
		t.Errorf("next level = %v, want 1000", profile.NextLevel)
	}
	if profile.DisplayName != "Ana P." {
		t.Errorf("display name = %q, want %q", profile.DisplayName, "Ana P.")
	}
}

// failingStore is a UnitOfWork whose transactions never start.
type failingStore struct{ err error }

func (f failingStore) WithinTx(context.Context, func(context.Context, Repos) error) error {
	return f.err
}

func TestListQueries_ReturnNilOnError(t *testing.T) {
	ctx := context.Background()
	down := errors.New("connection refused")
	svc := NewService(failingStore{err: down}, Options{})

	responses, err := svc.ListResponses(ctx, 1, nil)
	if !errors.Is(err, down) || responses != nil {
		t.Errorf("ListResponses = %v, %v, want nil, %v", responses, err, down)
	}
	badges, err := svc.ListUserBadges(ctx, 1)
	if !errors.Is(err, down) || badges != nil {
		t.Errorf("ListUserBadges = %v, %v, want nil, %v", badges, err, down)
	}
	challenges, err := svc.ListUserChallenges(ctx, 1)
	if !errors.Is(err, down) || challenges != nil {
		t.Errorf("ListUserChallenges = %v, %v, want nil, %v", challenges, err, down)
	}
}
