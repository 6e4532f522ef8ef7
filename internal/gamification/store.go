package gamification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/recoagua/backend/internal/models"
)

// Store is the PostgreSQL UnitOfWork.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, txRepos{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type txRepos struct {
	tx *sql.Tx
}

func (r txRepos) Users() UserRepository           { return userStore{r.tx} }
func (r txRepos) Content() ContentRepository      { return contentStore{r.tx} }
func (r txRepos) Levels() LevelRepository         { return levelStore{r.tx} }
func (r txRepos) Responses() ResponseRepository   { return responseStore{r.tx} }
func (r txRepos) Progress() ProgressRepository    { return progressStore{r.tx} }
func (r txRepos) Badges() BadgeRepository         { return badgeStore{r.tx} }
func (r txRepos) Challenges() ChallengeRepository { return challengeStore{r.tx} }

// ── Users ───────────────────────────────────────────────

type userStore struct{ tx *sql.Tx }

const userColumns = `id, email, name, password, role, experience, level_id, created_at, updated_at`

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Password, &u.Role,
		&u.Experience, &u.LevelID, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (s userStore) LockUser(ctx context.Context, userID int64) (*models.User, error) {
	return scanUser(s.tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, userID))
}

func (s userStore) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	return scanUser(s.tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
}

func (s userStore) UpdateExperience(ctx context.Context, userID int64, experience int64, levelID *int64) error {
	res, err := s.tx.ExecContext(ctx,
		`UPDATE users SET experience = $2, level_id = $3, updated_at = NOW() WHERE id = $1`,
		userID, experience, levelID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// ── Content ─────────────────────────────────────────────

type contentStore struct{ tx *sql.Tx }

func (s contentStore) GetBlock(ctx context.Context, blockID int64) (*models.Block, error) {
	var (
		b  models.Block
		qt sql.NullString
	)
	err := s.tx.QueryRowContext(ctx,
		`SELECT id, module_id, type, question_type, position, statement, points
		 FROM blocks WHERE id = $1`, blockID,
	).Scan(&b.ID, &b.ModuleID, &b.Type, &qt, &b.Order, &b.Statement, &b.Points)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrBlockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get block: %w", err)
	}
	if qt.Valid {
		t := models.QuestionType(qt.String)
		b.QuestionType = &t
	}

	rows, err := s.tx.QueryContext(ctx,
		`SELECT id, block_id, text, is_correct, position
		 FROM block_answers WHERE block_id = $1 ORDER BY position, id`, blockID)
	if err != nil {
		return nil, fmt.Errorf("get block answers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a models.BlockAnswer
		if err := rows.Scan(&a.ID, &a.BlockID, &a.Text, &a.IsCorrect, &a.Order); err != nil {
			return nil, err
		}
		b.Answers = append(b.Answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pairRows, err := s.tx.QueryContext(ctx,
		`SELECT id, block_id, left_item, right_item, correct_pair
		 FROM relational_pairs WHERE block_id = $1 ORDER BY id`, blockID)
	if err != nil {
		return nil, fmt.Errorf("get relational pairs: %w", err)
	}
	defer pairRows.Close()
	for pairRows.Next() {
		var p models.RelationalPair
		if err := pairRows.Scan(&p.ID, &p.BlockID, &p.LeftItem, &p.RightItem, &p.CorrectPair); err != nil {
			return nil, err
		}
		b.RelationalPairs = append(b.RelationalPairs, p)
	}
	return &b, pairRows.Err()
}

func (s contentStore) GetModule(ctx context.Context, moduleID int64) (*models.Module, error) {
	var m models.Module
	err := s.tx.QueryRowContext(ctx,
		`SELECT id, guide_id, title, position, points FROM modules WHERE id = $1`, moduleID,
	).Scan(&m.ID, &m.GuideID, &m.Title, &m.Order, &m.Points)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrModuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get module: %w", err)
	}

	ids, err := s.blockIDs(ctx, []int64{m.ID})
	if err != nil {
		return nil, err
	}
	m.BlockIDs = ids[m.ID]
	return &m, nil
}

func (s contentStore) GetGuide(ctx context.Context, guideID int64) (*models.Guide, error) {
	var g models.Guide
	err := s.tx.QueryRowContext(ctx,
		`SELECT id, title FROM guides WHERE id = $1`, guideID,
	).Scan(&g.ID, &g.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrGuideNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get guide: %w", err)
	}
	return &g, nil
}

func (s contentStore) ListGuideModules(ctx context.Context, guideID int64) ([]models.Module, error) {
	rows, err := s.tx.QueryContext(ctx,
		`SELECT id, guide_id, title, position, points
		 FROM modules WHERE guide_id = $1 ORDER BY position, id`, guideID)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	defer rows.Close()

	var modules []models.Module
	var ids []int64
	for rows.Next() {
		var m models.Module
		if err := rows.Scan(&m.ID, &m.GuideID, &m.Title, &m.Order, &m.Points); err != nil {
			return nil, err
		}
		modules = append(modules, m)
		ids = append(ids, m.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return modules, nil
	}

	blockIDs, err := s.blockIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range modules {
		modules[i].BlockIDs = blockIDs[modules[i].ID]
	}
	return modules, nil
}

// blockIDs maps each module to its block ids in display order.
func (s contentStore) blockIDs(ctx context.Context, moduleIDs []int64) (map[int64][]int64, error) {
	rows, err := s.tx.QueryContext(ctx,
		`SELECT module_id, id FROM blocks
		 WHERE module_id = ANY($1) ORDER BY module_id, position, id`, pq.Array(moduleIDs))
	if err != nil {
		return nil, fmt.Errorf("list module blocks: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]int64, len(moduleIDs))
	for rows.Next() {
		var moduleID, blockID int64
		if err := rows.Scan(&moduleID, &blockID); err != nil {
			return nil, err
		}
		out[moduleID] = append(out[moduleID], blockID)
	}
	return out, rows.Err()
}

// ── Levels ──────────────────────────────────────────────

type levelStore struct{ tx *sql.Tx }

func (s levelStore) ListLevels(ctx context.Context) ([]models.Level, error) {
	rows, err := s.tx.QueryContext(ctx,
		`SELECT id, name, description, required_points, rewards
		 FROM levels ORDER BY required_points`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var levels []models.Level
	for rows.Next() {
		var l models.Level
		if err := rows.Scan(&l.ID, &l.Name, &l.Description, &l.RequiredPoints, &l.Rewards); err != nil {
			return nil, err
		}
		levels = append(levels, l)
	}
	return levels, rows.Err()
}

// ── Responses ───────────────────────────────────────────

type responseStore struct{ tx *sql.Tx }

func (s responseStore) CreateResponse(ctx context.Context, resp *models.UserBlockResponse) error {
	return s.tx.QueryRowContext(ctx,
		`INSERT INTO user_block_responses (user_id, block_id, is_correct, submitted_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		resp.UserID, resp.BlockID, resp.IsCorrect, resp.SubmittedAt,
	).Scan(&resp.ID)
}

func (s responseStore) CreateAnswerDetail(ctx context.Context, d *models.UserAnswerDetail) error {
	return s.tx.QueryRowContext(ctx,
		`INSERT INTO user_answer_details (response_id, answer_id, custom_answer, relational_pair_id)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		d.ResponseID, d.AnswerID, d.CustomAnswer, d.RelationalPairID,
	).Scan(&d.ID)
}

func (s responseStore) CountPriorCorrect(ctx context.Context, userID, blockID, excludeID int64) (int, error) {
	var n int
	err := s.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_block_responses
		 WHERE user_id = $1 AND block_id = $2 AND is_correct AND id <> $3`,
		userID, blockID, excludeID,
	).Scan(&n)
	return n, err
}

func (s responseStore) CountCorrectBlocks(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.tx.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT block_id) FROM user_block_responses
		 WHERE user_id = $1 AND is_correct`, userID,
	).Scan(&n)
	return n, err
}

func (s responseStore) CountAnsweredBlocks(ctx context.Context, userID, moduleID int64) (int, error) {
	var n int
	err := s.tx.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT r.block_id)
		 FROM user_block_responses r
		 JOIN blocks b ON b.id = r.block_id
		 WHERE r.user_id = $1 AND b.module_id = $2`,
		userID, moduleID,
	).Scan(&n)
	return n, err
}

func (s responseStore) ListResponses(ctx context.Context, userID int64, blockID *int64) ([]models.UserBlockResponse, error) {
	rows, err := s.tx.QueryContext(ctx,
		`SELECT id, user_id, block_id, is_correct, submitted_at
		 FROM user_block_responses
		 WHERE user_id = $1 AND ($2::BIGINT IS NULL OR block_id = $2)
		 ORDER BY submitted_at DESC, id DESC`,
		userID, blockID,
	)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	var out []models.UserBlockResponse
	index := map[int64]int{}
	var ids []int64
	for rows.Next() {
		var r models.UserBlockResponse
		if err := rows.Scan(&r.ID, &r.UserID, &r.BlockID, &r.IsCorrect, &r.SubmittedAt); err != nil {
			return nil, err
		}
		index[r.ID] = len(out)
		ids = append(ids, r.ID)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	detailRows, err := s.tx.QueryContext(ctx,
		`SELECT id, response_id, answer_id, custom_answer, relational_pair_id
		 FROM user_answer_details WHERE response_id = ANY($1) ORDER BY id`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("list answer details: %w", err)
	}
	defer detailRows.Close()
	for detailRows.Next() {
		var d models.UserAnswerDetail
		if err := detailRows.Scan(&d.ID, &d.ResponseID, &d.AnswerID, &d.CustomAnswer, &d.RelationalPairID); err != nil {
			return nil, err
		}
		i := index[d.ResponseID]
		out[i].AnswerDetails = append(out[i].AnswerDetails, d)
	}
	return out, detailRows.Err()
}

func (s responseStore) UserStats(ctx context.Context, userID int64) (models.ResponseStats, error) {
	var st models.ResponseStats
	err := s.tx.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_correct)
		 FROM user_block_responses WHERE user_id = $1`, userID,
	).Scan(&st.TotalResponses, &st.CorrectResponses)
	return st, err
}

func (s responseStore) BlockStats(ctx context.Context, blockID int64) (models.ResponseStats, error) {
	var st models.ResponseStats
	err := s.tx.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_correct), COUNT(DISTINCT user_id)
		 FROM user_block_responses WHERE block_id = $1`, blockID,
	).Scan(&st.TotalResponses, &st.CorrectResponses, &st.UniqueUsers)
	return st, err
}

// ── Progress ────────────────────────────────────────────

type progressStore struct{ tx *sql.Tx }

const progressColumns = `p.id, p.user_id, p.guide_id, p.module_id, p.completion_status, p.earned_points, p.completed_at`

func scanProgress(sc interface{ Scan(...any) error }) (models.UserProgress, error) {
	var p models.UserProgress
	err := sc.Scan(&p.ID, &p.UserID, &p.GuideID, &p.ModuleID, &p.CompletionStatus, &p.EarnedPoints, &p.CompletedAt)
	return p, err
}

func (s progressStore) FindOrCreate(ctx context.Context, userID, guideID, moduleID int64) (*models.UserProgress, error) {
	_, err := s.tx.ExecContext(ctx,
		`INSERT INTO user_progress (user_id, guide_id, module_id, completion_status, earned_points)
		 VALUES ($1, $2, $3, 'in_progress', 0)
		 ON CONFLICT (user_id, guide_id, module_id) DO NOTHING`,
		userID, guideID, moduleID,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert progress: %w", err)
	}

	p, err := scanProgress(s.tx.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM user_progress p
		 WHERE p.user_id = $1 AND p.guide_id = $2 AND p.module_id = $3
		 FOR UPDATE`,
		userID, guideID, moduleID,
	))
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return &p, nil
}

func (s progressStore) Save(ctx context.Context, p *models.UserProgress) error {
	_, err := s.tx.ExecContext(ctx,
		`UPDATE user_progress SET
		    completion_status = $2, earned_points = $3, completed_at = $4, updated_at = NOW()
		 WHERE id = $1`,
		p.ID, p.CompletionStatus, p.EarnedPoints, p.CompletedAt,
	)
	return err
}

func (s progressStore) list(ctx context.Context, query string, args ...any) ([]models.UserProgress, error) {
	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.UserProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s progressStore) ListByGuide(ctx context.Context, userID, guideID int64) ([]models.UserProgress, error) {
	return s.list(ctx,
		`SELECT `+progressColumns+` FROM user_progress p
		 JOIN modules m ON m.id = p.module_id
		 WHERE p.user_id = $1 AND p.guide_id = $2
		 ORDER BY m.position, m.id`,
		userID, guideID,
	)
}

func (s progressStore) ListByUser(ctx context.Context, userID int64) ([]models.UserProgress, error) {
	return s.list(ctx,
		`SELECT `+progressColumns+` FROM user_progress p
		 WHERE p.user_id = $1 ORDER BY p.guide_id, p.module_id`,
		userID,
	)
}

// ── Badges ──────────────────────────────────────────────

type badgeStore struct{ tx *sql.Tx }

const badgeColumns = `b.id, b.name, b.description, b.image_url, b.requirements, b.trigger_type, b.threshold, b.status`

func scanBadge(sc interface{ Scan(...any) error }, extra ...any) (models.Badge, error) {
	var b models.Badge
	dest := append([]any{&b.ID, &b.Name, &b.Description, &b.ImageURL, &b.Requirements,
		&b.TriggerType, &b.Threshold, &b.Status}, extra...)
	err := sc.Scan(dest...)
	return b, err
}

func (s badgeStore) GetBadge(ctx context.Context, badgeID int64) (*models.Badge, error) {
	b, err := scanBadge(s.tx.QueryRowContext(ctx,
		`SELECT `+badgeColumns+` FROM badges b WHERE b.id = $1`, badgeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrBadgeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get badge: %w", err)
	}
	return &b, nil
}

func (s badgeStore) ListActiveByTrigger(ctx context.Context, trigger models.BadgeTriggerType) ([]models.Badge, error) {
	rows, err := s.tx.QueryContext(ctx,
		`SELECT `+badgeColumns+` FROM badges b
		 WHERE b.trigger_type = $1 AND b.status = 'active'
		 ORDER BY b.threshold, b.id`, trigger)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Badge
	for rows.Next() {
		b, err := scanBadge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s badgeStore) HasBadge(ctx context.Context, userID, badgeID int64) (bool, error) {
	var exists bool
	err := s.tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM user_badges WHERE user_id = $1 AND badge_id = $2)`,
		userID, badgeID,
	).Scan(&exists)
	return exists, err
}

func (s badgeStore) Grant(ctx context.Context, userID, badgeID int64, at time.Time) (bool, error) {
	res, err := s.tx.ExecContext(ctx,
		`INSERT INTO user_badges (user_id, badge_id, earned_at) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, badge_id) DO NOTHING`,
		userID, badgeID, at,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s badgeStore) ListUserBadges(ctx context.Context, userID int64) ([]models.UserBadge, error) {
	rows, err := s.tx.QueryContext(ctx,
		`SELECT `+badgeColumns+`, ub.earned_at
		 FROM user_badges ub
		 JOIN badges b ON b.id = ub.badge_id
		 WHERE ub.user_id = $1
		 ORDER BY ub.earned_at, b.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.UserBadge
	for rows.Next() {
		ub := models.UserBadge{UserID: userID}
		b, err := scanBadge(rows, &ub.EarnedAt)
		if err != nil {
			return nil, err
		}
		ub.Badge = b
		out = append(out, ub)
	}
	return out, rows.Err()
}

// ── Challenges ──────────────────────────────────────────

type challengeStore struct{ tx *sql.Tx }

func (s challengeStore) GetChallenge(ctx context.Context, challengeID int64) (*models.Challenge, error) {
	var c models.Challenge
	err := s.tx.QueryRowContext(ctx,
		`SELECT id, name, description, score FROM challenges WHERE id = $1`, challengeID,
	).Scan(&c.ID, &c.Name, &c.Description, &c.Score)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	return &c, nil
}

func (s challengeStore) FindUserChallenge(ctx context.Context, userID, challengeID int64) (*models.UserChallenge, error) {
	var uc models.UserChallenge
	err := s.tx.QueryRowContext(ctx,
		`SELECT id, user_id, challenge_id, completion_status, earned_points, completed_at, created_at
		 FROM user_challenges WHERE user_id = $1 AND challenge_id = $2`,
		userID, challengeID,
	).Scan(&uc.ID, &uc.UserID, &uc.ChallengeID, &uc.CompletionStatus, &uc.EarnedPoints, &uc.CompletedAt, &uc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &uc, nil
}

func (s challengeStore) CreateUserChallenge(ctx context.Context, uc *models.UserChallenge) error {
	return s.tx.QueryRowContext(ctx,
		`INSERT INTO user_challenges (user_id, challenge_id, completion_status, earned_points, completed_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		uc.UserID, uc.ChallengeID, uc.CompletionStatus, uc.EarnedPoints, uc.CompletedAt, uc.CreatedAt,
	).Scan(&uc.ID)
}

func (s challengeStore) SaveUserChallenge(ctx context.Context, uc *models.UserChallenge) error {
	_, err := s.tx.ExecContext(ctx,
		`UPDATE user_challenges SET completion_status = $2, earned_points = $3, completed_at = $4
		 WHERE id = $1`,
		uc.ID, uc.CompletionStatus, uc.EarnedPoints, uc.CompletedAt,
	)
	return err
}

func (s challengeStore) CountCompleted(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_challenges WHERE user_id = $1 AND completion_status = 'completed'`,
		userID,
	).Scan(&n)
	return n, err
}

func (s challengeStore) ListUserChallenges(ctx context.Context, userID int64) ([]models.UserChallenge, error) {
	rows, err := s.tx.QueryContext(ctx,
		`SELECT uc.id, uc.user_id, uc.challenge_id, uc.completion_status, uc.earned_points,
		        uc.completed_at, uc.created_at, c.name, c.description, c.score
		 FROM user_challenges uc
		 JOIN challenges c ON c.id = uc.challenge_id
		 WHERE uc.user_id = $1
		 ORDER BY uc.created_at DESC, uc.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.UserChallenge
	for rows.Next() {
		var uc models.UserChallenge
		c := &models.Challenge{}
		if err := rows.Scan(&uc.ID, &uc.UserID, &uc.ChallengeID, &uc.CompletionStatus, &uc.EarnedPoints,
			&uc.CompletedAt, &uc.CreatedAt, &c.Name, &c.Description, &c.Score); err != nil {
			return nil, err
		}
		c.ID = uc.ChallengeID
		uc.Challenge = c
		out = append(out, uc)
	}
	return out, rows.Err()
}
