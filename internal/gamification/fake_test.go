package gamification

import (
	"context"
	"sort"
	"time"

	"github.com/recoagua/backend/internal/models"
)

// fakeDB is an in-memory UnitOfWork. Each transaction works on a copy of the
// state that replaces the committed state only when fn succeeds.
type fakeDB struct {
	state *fakeState
}

type fakeState struct {
	nextID int64

	users          map[int64]models.User
	guides         map[int64]models.Guide
	modules        map[int64]models.Module
	blocks         map[int64]models.Block
	levels         []models.Level
	badges         map[int64]models.Badge
	challenges     map[int64]models.Challenge
	responses      []models.UserBlockResponse
	details        []models.UserAnswerDetail
	progress       []models.UserProgress
	userBadges     []models.UserBadge
	userChallenges []models.UserChallenge
}

func newFakeDB() *fakeDB {
	return &fakeDB{state: &fakeState{
		nextID:     1000,
		users:      map[int64]models.User{},
		guides:     map[int64]models.Guide{},
		modules:    map[int64]models.Module{},
		blocks:     map[int64]models.Block{},
		badges:     map[int64]models.Badge{},
		challenges: map[int64]models.Challenge{},
	}}
}

func (db *fakeDB) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error {
	tx := db.state.clone()
	if err := fn(ctx, fakeRepos{tx}); err != nil {
		return err
	}
	db.state = tx
	return nil
}

func (s *fakeState) clone() *fakeState {
	c := *s
	c.users = copyMap(s.users)
	c.guides = copyMap(s.guides)
	c.modules = copyMap(s.modules)
	c.blocks = copyMap(s.blocks)
	c.badges = copyMap(s.badges)
	c.challenges = copyMap(s.challenges)
	c.levels = append([]models.Level(nil), s.levels...)
	c.responses = append([]models.UserBlockResponse(nil), s.responses...)
	c.details = append([]models.UserAnswerDetail(nil), s.details...)
	c.progress = append([]models.UserProgress(nil), s.progress...)
	c.userBadges = append([]models.UserBadge(nil), s.userBadges...)
	c.userChallenges = append([]models.UserChallenge(nil), s.userChallenges...)
	return &c
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *fakeState) id() int64 {
	s.nextID++
	return s.nextID
}

// ── Seeding helpers ─────────────────────────────────────

func (db *fakeDB) addUser(id int64, name string) {
	db.state.users[id] = models.User{ID: id, Name: name, Email: name + "@recoagua.test", Role: models.RoleUser}
}

func (db *fakeDB) addLevels(thresholds ...int64) {
	for i, th := range thresholds {
		db.state.levels = append(db.state.levels, models.Level{ID: int64(i + 1), Name: levelName(i), RequiredPoints: th})
	}
	sort.Slice(db.state.levels, func(i, j int) bool {
		return db.state.levels[i].RequiredPoints < db.state.levels[j].RequiredPoints
	})
}

func levelName(i int) string {
	return []string{"Novato acuático", "Guardián del agua", "Maestro del agua", "Leyenda"}[i%4]
}

func (db *fakeDB) addGuide(id int64) {
	db.state.guides[id] = models.Guide{ID: id, Title: "Guía"}
}

func (db *fakeDB) addModule(id, guideID int64, order int, points int64) {
	db.state.modules[id] = models.Module{ID: id, GuideID: guideID, Title: "Módulo", Order: order, Points: points}
}

// addBlock registers b and appends it to its module's block list.
func (db *fakeDB) addBlock(b models.Block) {
	db.state.blocks[b.ID] = b
	if m, ok := db.state.modules[b.ModuleID]; ok {
		m.BlockIDs = append(m.BlockIDs, b.ID)
		db.state.modules[b.ModuleID] = m
	}
}

func (db *fakeDB) addBadge(id int64, trigger models.BadgeTriggerType, threshold int64) {
	db.state.badges[id] = models.Badge{ID: id, Name: string(trigger), TriggerType: trigger, Threshold: threshold, Status: models.BadgeActive}
}

func (db *fakeDB) addChallenge(id int64, score int64) {
	db.state.challenges[id] = models.Challenge{ID: id, Name: "Calculadora", Score: score}
}

func (db *fakeDB) user(id int64) models.User {
	return db.state.users[id]
}

func (db *fakeDB) badgeCount(userID int64) int {
	n := 0
	for _, ub := range db.state.userBadges {
		if ub.UserID == userID {
			n++
		}
	}
	return n
}

func qtype(t models.QuestionType) *models.QuestionType {
	return &t
}

// mcBlock builds a multiple-choice block whose answer ids are id*10+1..
// with the listed answers flagged correct.
func mcBlock(id, moduleID int64, points int64, correct ...int64) models.Block {
	b := models.Block{ID: id, ModuleID: moduleID, Type: models.BlockQuestion, QuestionType: qtype(models.QuestionMultipleChoice), Points: points}
	for i := int64(1); i <= 3; i++ {
		aid := id*10 + i
		ok := false
		for _, c := range correct {
			if c == aid {
				ok = true
			}
		}
		b.Answers = append(b.Answers, models.BlockAnswer{ID: aid, BlockID: id, Text: "opción", IsCorrect: ok, Order: int(i)})
	}
	return b
}

// ── Repositories ────────────────────────────────────────

type fakeRepos struct{ s *fakeState }

func (r fakeRepos) Users() UserRepository           { return fakeUsers(r) }
func (r fakeRepos) Content() ContentRepository      { return fakeContent(r) }
func (r fakeRepos) Levels() LevelRepository         { return fakeLevels(r) }
func (r fakeRepos) Responses() ResponseRepository   { return fakeResponses(r) }
func (r fakeRepos) Progress() ProgressRepository    { return fakeProgress(r) }
func (r fakeRepos) Badges() BadgeRepository         { return fakeBadges(r) }
func (r fakeRepos) Challenges() ChallengeRepository { return fakeChallenges(r) }

type fakeUsers struct{ s *fakeState }

func (f fakeUsers) LockUser(ctx context.Context, userID int64) (*models.User, error) {
	return f.GetUser(ctx, userID)
}

func (f fakeUsers) GetUser(_ context.Context, userID int64) (*models.User, error) {
	u, ok := f.s.users[userID]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return &u, nil
}

func (f fakeUsers) UpdateExperience(_ context.Context, userID int64, experience int64, levelID *int64) error {
	u, ok := f.s.users[userID]
	if !ok {
		return models.ErrUserNotFound
	}
	u.Experience = experience
	u.LevelID = levelID
	f.s.users[userID] = u
	return nil
}

type fakeContent struct{ s *fakeState }

func (f fakeContent) GetBlock(_ context.Context, blockID int64) (*models.Block, error) {
	b, ok := f.s.blocks[blockID]
	if !ok {
		return nil, models.ErrBlockNotFound
	}
	return &b, nil
}

func (f fakeContent) GetModule(_ context.Context, moduleID int64) (*models.Module, error) {
	m, ok := f.s.modules[moduleID]
	if !ok {
		return nil, models.ErrModuleNotFound
	}
	return &m, nil
}

func (f fakeContent) GetGuide(_ context.Context, guideID int64) (*models.Guide, error) {
	g, ok := f.s.guides[guideID]
	if !ok {
		return nil, models.ErrGuideNotFound
	}
	return &g, nil
}

func (f fakeContent) ListGuideModules(_ context.Context, guideID int64) ([]models.Module, error) {
	var out []models.Module
	for _, m := range f.s.modules {
		if m.GuideID == guideID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

type fakeLevels struct{ s *fakeState }

func (f fakeLevels) ListLevels(context.Context) ([]models.Level, error) {
	return append([]models.Level(nil), f.s.levels...), nil
}

type fakeResponses struct{ s *fakeState }

func (f fakeResponses) CreateResponse(_ context.Context, resp *models.UserBlockResponse) error {
	resp.ID = f.s.id()
	stored := *resp
	stored.AnswerDetails = nil
	f.s.responses = append(f.s.responses, stored)
	return nil
}

func (f fakeResponses) CreateAnswerDetail(_ context.Context, d *models.UserAnswerDetail) error {
	d.ID = f.s.id()
	f.s.details = append(f.s.details, *d)
	return nil
}

func (f fakeResponses) CountPriorCorrect(_ context.Context, userID, blockID, excludeID int64) (int, error) {
	n := 0
	for _, r := range f.s.responses {
		if r.UserID == userID && r.BlockID == blockID && r.IsCorrect && r.ID != excludeID {
			n++
		}
	}
	return n, nil
}

func (f fakeResponses) CountCorrectBlocks(_ context.Context, userID int64) (int, error) {
	seen := map[int64]bool{}
	for _, r := range f.s.responses {
		if r.UserID == userID && r.IsCorrect {
			seen[r.BlockID] = true
		}
	}
	return len(seen), nil
}

func (f fakeResponses) CountAnsweredBlocks(_ context.Context, userID, moduleID int64) (int, error) {
	seen := map[int64]bool{}
	for _, r := range f.s.responses {
		if r.UserID == userID && f.s.blocks[r.BlockID].ModuleID == moduleID {
			seen[r.BlockID] = true
		}
	}
	return len(seen), nil
}

func (f fakeResponses) ListResponses(_ context.Context, userID int64, blockID *int64) ([]models.UserBlockResponse, error) {
	var out []models.UserBlockResponse
	for i := len(f.s.responses) - 1; i >= 0; i-- {
		r := f.s.responses[i]
		if r.UserID != userID || (blockID != nil && r.BlockID != *blockID) {
			continue
		}
		for _, d := range f.s.details {
			if d.ResponseID == r.ID {
				r.AnswerDetails = append(r.AnswerDetails, d)
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func (f fakeResponses) UserStats(_ context.Context, userID int64) (models.ResponseStats, error) {
	var st models.ResponseStats
	for _, r := range f.s.responses {
		if r.UserID == userID {
			st.TotalResponses++
			if r.IsCorrect {
				st.CorrectResponses++
			}
		}
	}
	return st, nil
}

func (f fakeResponses) BlockStats(_ context.Context, blockID int64) (models.ResponseStats, error) {
	var st models.ResponseStats
	users := map[int64]bool{}
	for _, r := range f.s.responses {
		if r.BlockID == blockID {
			st.TotalResponses++
			if r.IsCorrect {
				st.CorrectResponses++
			}
			users[r.UserID] = true
		}
	}
	st.UniqueUsers = len(users)
	return st, nil
}

type fakeProgress struct{ s *fakeState }

func (f fakeProgress) FindOrCreate(_ context.Context, userID, guideID, moduleID int64) (*models.UserProgress, error) {
	for _, p := range f.s.progress {
		if p.UserID == userID && p.GuideID == guideID && p.ModuleID == moduleID {
			return &p, nil
		}
	}
	p := models.UserProgress{ID: f.s.id(), UserID: userID, GuideID: guideID, ModuleID: moduleID, CompletionStatus: models.StatusInProgress}
	f.s.progress = append(f.s.progress, p)
	return &p, nil
}

func (f fakeProgress) Save(_ context.Context, p *models.UserProgress) error {
	for i := range f.s.progress {
		if f.s.progress[i].ID == p.ID {
			f.s.progress[i] = *p
			return nil
		}
	}
	return nil
}

func (f fakeProgress) ListByGuide(_ context.Context, userID, guideID int64) ([]models.UserProgress, error) {
	var out []models.UserProgress
	for _, p := range f.s.progress {
		if p.UserID == userID && p.GuideID == guideID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f fakeProgress) ListByUser(_ context.Context, userID int64) ([]models.UserProgress, error) {
	var out []models.UserProgress
	for _, p := range f.s.progress {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeBadges struct{ s *fakeState }

func (f fakeBadges) GetBadge(_ context.Context, badgeID int64) (*models.Badge, error) {
	b, ok := f.s.badges[badgeID]
	if !ok {
		return nil, models.ErrBadgeNotFound
	}
	return &b, nil
}

func (f fakeBadges) ListActiveByTrigger(_ context.Context, trigger models.BadgeTriggerType) ([]models.Badge, error) {
	var out []models.Badge
	for _, b := range f.s.badges {
		if b.TriggerType == trigger && b.Status == models.BadgeActive {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeBadges) HasBadge(_ context.Context, userID, badgeID int64) (bool, error) {
	for _, ub := range f.s.userBadges {
		if ub.UserID == userID && ub.Badge.ID == badgeID {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeBadges) Grant(ctx context.Context, userID, badgeID int64, at time.Time) (bool, error) {
	if has, _ := f.HasBadge(ctx, userID, badgeID); has {
		return false, nil
	}
	f.s.userBadges = append(f.s.userBadges, models.UserBadge{UserID: userID, Badge: f.s.badges[badgeID], EarnedAt: at})
	return true, nil
}

func (f fakeBadges) ListUserBadges(_ context.Context, userID int64) ([]models.UserBadge, error) {
	var out []models.UserBadge
	for _, ub := range f.s.userBadges {
		if ub.UserID == userID {
			out = append(out, ub)
		}
	}
	return out, nil
}

type fakeChallenges struct{ s *fakeState }

func (f fakeChallenges) GetChallenge(_ context.Context, challengeID int64) (*models.Challenge, error) {
	c, ok := f.s.challenges[challengeID]
	if !ok {
		return nil, models.ErrChallengeNotFound
	}
	return &c, nil
}

func (f fakeChallenges) FindUserChallenge(_ context.Context, userID, challengeID int64) (*models.UserChallenge, error) {
	for _, uc := range f.s.userChallenges {
		if uc.UserID == userID && uc.ChallengeID == challengeID {
			return &uc, nil
		}
	}
	return nil, nil
}

func (f fakeChallenges) CreateUserChallenge(_ context.Context, uc *models.UserChallenge) error {
	uc.ID = f.s.id()
	f.s.userChallenges = append(f.s.userChallenges, *uc)
	return nil
}

func (f fakeChallenges) SaveUserChallenge(_ context.Context, uc *models.UserChallenge) error {
	for i := range f.s.userChallenges {
		if f.s.userChallenges[i].ID == uc.ID {
			f.s.userChallenges[i] = *uc
		}
	}
	return nil
}

func (f fakeChallenges) CountCompleted(_ context.Context, userID int64) (int, error) {
	n := 0
	for _, uc := range f.s.userChallenges {
		if uc.UserID == userID && uc.CompletionStatus == models.ChallengeCompleted {
			n++
		}
	}
	return n, nil
}

func (f fakeChallenges) ListUserChallenges(_ context.Context, userID int64) ([]models.UserChallenge, error) {
	var out []models.UserChallenge
	for _, uc := range f.s.userChallenges {
		if uc.UserID == userID {
			out = append(out, uc)
		}
	}
	return out, nil
}
