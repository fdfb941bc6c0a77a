package sqlxrepos

import (
	"context"
	"time"

	"github.com/friendsofgo/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/catalog"
)

// releaseCols is the tri-field release shape as stored.
type releaseCols struct {
	Released             bool      `db:"released"`
	ScheduledReleaseTime null.Time `db:"scheduled_release_time"`
	ActualReleaseTime    null.Time `db:"actual_release_time"`
}

func (rc releaseCols) unpack() catalog.ReleaseState {
	return catalog.ReleaseState{
		Released:             rc.Released,
		ScheduledReleaseTime: rc.ScheduledReleaseTime.Ptr(),
		ActualReleaseTime:    rc.ActualReleaseTime.Ptr(),
	}
}

func packReleaseCols(rs catalog.ReleaseState) releaseCols {
	return releaseCols{
		Released:             rs.Released,
		ScheduledReleaseTime: null.TimeFromPtr(rs.ScheduledReleaseTime),
		ActualReleaseTime:    null.TimeFromPtr(rs.ActualReleaseTime),
	}
}

type moduleRow struct {
	ID       string `db:"id"`
	CohortID string `db:"cohort_id"`
	Number   int    `db:"number"`
	Name     string `db:"name"`
	IsActive bool   `db:"is_active"`
	releaseCols
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r moduleRow) unpack() catalog.Module {
	return catalog.Module{
		ID:           r.ID,
		CohortID:     r.CohortID,
		Number:       r.Number,
		Name:         r.Name,
		IsActive:     r.IsActive,
		ReleaseState: r.releaseCols.unpack(),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func packModule(m catalog.Module) moduleRow {
	return moduleRow{
		ID:          m.ID,
		CohortID:    m.CohortID,
		Number:      m.Number,
		Name:        m.Name,
		IsActive:    m.IsActive,
		releaseCols: packReleaseCols(m.ReleaseState),
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

type topicRow struct {
	ID       string      `db:"id"`
	CohortID string      `db:"cohort_id"`
	ModuleID null.String `db:"module_id"`
	Number   int         `db:"number"`
	Title    string      `db:"title"`
	Body     string      `db:"body"`
	IsActive bool        `db:"is_active"`
	releaseCols
	Deadline    null.Time `db:"deadline"`
	Points      int       `db:"points"`
	BonusPoints int       `db:"bonus_points"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r topicRow) unpack() catalog.Topic {
	return catalog.Topic{
		ID:           r.ID,
		CohortID:     r.CohortID,
		ModuleID:     r.ModuleID.String,
		Number:       r.Number,
		Title:        r.Title,
		Body:         r.Body,
		IsActive:     r.IsActive,
		ReleaseState: r.releaseCols.unpack(),
		Deadline:     r.Deadline.Ptr(),
		Points:       r.Points,
		BonusPoints:  r.BonusPoints,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func packTopic(t catalog.Topic) topicRow {
	return topicRow{
		ID:          t.ID,
		CohortID:    t.CohortID,
		ModuleID:    null.NewString(t.ModuleID, t.ModuleID != ""),
		Number:      t.Number,
		Title:       t.Title,
		Body:        t.Body,
		IsActive:    t.IsActive,
		releaseCols: packReleaseCols(t.ReleaseState),
		Deadline:    null.TimeFromPtr(t.Deadline),
		Points:      t.Points,
		BonusPoints: t.BonusPoints,
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
	}
}

type sectionRow struct {
	ID        string    `db:"id"`
	TopicID   string    `db:"topic_id"`
	Index     int       `db:"order_index"`
	Title     string    `db:"title"`
	Body      string    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r sectionRow) unpack() catalog.Section {
	return catalog.Section{
		ID:        r.ID,
		TopicID:   r.TopicID,
		Index:     r.Index,
		Title:     r.Title,
		Body:      r.Body,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func packSection(s catalog.Section) sectionRow {
	return sectionRow{
		ID:        s.ID,
		TopicID:   s.TopicID,
		Index:     s.Index,
		Title:     s.Title,
		Body:      s.Body,
		CreatedAt: s.CreatedAt.UTC(),
		UpdatedAt: s.UpdatedAt.UTC(),
	}
}

type miniQuestionRow struct {
	ID        string `db:"id"`
	SectionID string `db:"section_id"`
	Index     int    `db:"order_index"`
	Prompt    string `db:"prompt"`
	IsActive  bool   `db:"is_active"`
	releaseCols
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r miniQuestionRow) unpack() catalog.MiniQuestion {
	return catalog.MiniQuestion{
		ID:           r.ID,
		SectionID:    r.SectionID,
		Index:        r.Index,
		Prompt:       r.Prompt,
		IsActive:     r.IsActive,
		ReleaseState: r.releaseCols.unpack(),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func packMiniQuestion(mq catalog.MiniQuestion) miniQuestionRow {
	return miniQuestionRow{
		ID:          mq.ID,
		SectionID:   mq.SectionID,
		Index:       mq.Index,
		Prompt:      mq.Prompt,
		IsActive:    mq.IsActive,
		releaseCols: packReleaseCols(mq.ReleaseState),
		CreatedAt:   mq.CreatedAt.UTC(),
		UpdatedAt:   mq.UpdatedAt.UTC(),
	}
}

type catalogRepository struct {
	exec core.DBExecutor
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(exec core.DBExecutor) *catalogRepository {
	return &catalogRepository{exec: exec}
}

func (repo catalogRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo catalogRepository) CreateModule(ctx context.Context, m catalog.Module, exec ...core.DBExecutor) (catalog.Module, error) {
	m.ID = uuid.New().String()
	row := packModule(m)

	query := `INSERT INTO module (id, cohort_id, number, name, is_active, released, scheduled_release_time, actual_release_time, created_at, updated_at)
VALUES (:id, :cohort_id, :number, :name, :is_active, :released, :scheduled_release_time, :actual_release_time, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), query, row); err != nil {
		if isUniqueViolation(err) {
			return catalog.Module{}, catalog.ErrModuleExists
		}
		return catalog.Module{}, errors.Wrap(err, "inserting module")
	}
	return row.unpack(), nil
}

func (repo catalogRepository) GetModule(ctx context.Context, id string, exec ...core.DBExecutor) (catalog.Module, error) {
	if _, err := uuid.Parse(id); err != nil {
		return catalog.Module{}, catalog.ErrNotFound
	}
	exe := repo.getExec(exec)

	var row moduleRow
	if err := exe.GetContext(ctx, &row, exe.Rebind(`SELECT * FROM module WHERE id = ?`), id); err != nil {
		return catalog.Module{}, trapNoRowsErr(err, catalog.ErrNotFound, "finding module")
	}
	return row.unpack(), nil
}

func (repo catalogRepository) QueryModules(ctx context.Context, cohortID string, exec ...core.DBExecutor) ([]catalog.Module, error) {
	exe := repo.getExec(exec)

	var rows []moduleRow
	query := `SELECT * FROM module WHERE cohort_id = ? ORDER BY number ASC`
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(query), cohortID); err != nil {
		return nil, errors.Wrap(err, "querying modules")
	}

	modules := make([]catalog.Module, 0, len(rows))
	for _, row := range rows {
		modules = append(modules, row.unpack())
	}
	return modules, nil
}

func (repo catalogRepository) UpdateModule(ctx context.Context, m catalog.Module, exec ...core.DBExecutor) (catalog.Module, error) {
	row := packModule(m)

	query := `UPDATE module
SET name = :name, is_active = :is_active, released = :released,
    scheduled_release_time = :scheduled_release_time, actual_release_time = :actual_release_time, updated_at = :updated_at
WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), query, row)
	if err != nil {
		return catalog.Module{}, errors.Wrap(err, "updating module")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.Module{}, catalog.ErrNotFound
	}
	return row.unpack(), nil
}

func (repo catalogRepository) CreateTopic(ctx context.Context, t catalog.Topic, exec ...core.DBExecutor) (catalog.Topic, error) {
	t.ID = uuid.New().String()
	row := packTopic(t)

	query := `INSERT INTO topic (id, cohort_id, module_id, number, title, body, is_active, released, scheduled_release_time, actual_release_time, deadline, points, bonus_points, created_at, updated_at)
VALUES (:id, :cohort_id, :module_id, :number, :title, :body, :is_active, :released, :scheduled_release_time, :actual_release_time, :deadline, :points, :bonus_points, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), query, row); err != nil {
		if isUniqueViolation(err) {
			return catalog.Topic{}, catalog.ErrTopicExists
		}
		return catalog.Topic{}, errors.Wrap(err, "inserting topic")
	}
	return row.unpack(), nil
}

func (repo catalogRepository) GetTopic(ctx context.Context, id string, exec ...core.DBExecutor) (catalog.Topic, error) {
	if _, err := uuid.Parse(id); err != nil {
		return catalog.Topic{}, catalog.ErrNotFound
	}
	exe := repo.getExec(exec)

	var row topicRow
	if err := exe.GetContext(ctx, &row, exe.Rebind(`SELECT * FROM topic WHERE id = ?`), id); err != nil {
		return catalog.Topic{}, trapNoRowsErr(err, catalog.ErrNotFound, "finding topic")
	}
	return row.unpack(), nil
}

func (repo catalogRepository) QueryTopics(ctx context.Context, cohortID string, exec ...core.DBExecutor) ([]catalog.Topic, error) {
	exe := repo.getExec(exec)

	var rows []topicRow
	query := `SELECT * FROM topic WHERE cohort_id = ? ORDER BY number ASC`
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(query), cohortID); err != nil {
		return nil, errors.Wrap(err, "querying topics")
	}

	topics := make([]catalog.Topic, 0, len(rows))
	for _, row := range rows {
		topics = append(topics, row.unpack())
	}
	return topics, nil
}

func (repo catalogRepository) UpdateTopic(ctx context.Context, t catalog.Topic, exec ...core.DBExecutor) (catalog.Topic, error) {
	row := packTopic(t)

	query := `UPDATE topic
SET title = :title, body = :body, is_active = :is_active, released = :released,
    scheduled_release_time = :scheduled_release_time, actual_release_time = :actual_release_time,
    deadline = :deadline, points = :points, bonus_points = :bonus_points, updated_at = :updated_at
WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), query, row)
	if err != nil {
		return catalog.Topic{}, errors.Wrap(err, "updating topic")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.Topic{}, catalog.ErrNotFound
	}
	return row.unpack(), nil
}

func (repo catalogRepository) CreateSection(ctx context.Context, s catalog.Section, exec ...core.DBExecutor) (catalog.Section, error) {
	s.ID = uuid.New().String()
	row := packSection(s)

	query := `INSERT INTO content_section (id, topic_id, order_index, title, body, created_at, updated_at)
VALUES (:id, :topic_id, :order_index, :title, :body, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), query, row); err != nil {
		return catalog.Section{}, errors.Wrap(err, "inserting section")
	}
	return row.unpack(), nil
}

func (repo catalogRepository) GetSection(ctx context.Context, id string, exec ...core.DBExecutor) (catalog.Section, error) {
	if _, err := uuid.Parse(id); err != nil {
		return catalog.Section{}, catalog.ErrNotFound
	}
	exe := repo.getExec(exec)

	var row sectionRow
	if err := exe.GetContext(ctx, &row, exe.Rebind(`SELECT * FROM content_section WHERE id = ?`), id); err != nil {
		return catalog.Section{}, trapNoRowsErr(err, catalog.ErrNotFound, "finding section")
	}
	return row.unpack(), nil
}

func (repo catalogRepository) QuerySections(ctx context.Context, topicIDs []string, exec ...core.DBExecutor) ([]catalog.Section, error) {
	if len(topicIDs) == 0 {
		return []catalog.Section{}, nil
	}
	exe := repo.getExec(exec)

	query, args, err := sqlx.In(`SELECT * FROM content_section WHERE topic_id IN (?) ORDER BY order_index ASC, id ASC`, topicIDs)
	if err != nil {
		return nil, errors.Wrap(err, "expanding topic ids")
	}
	var rows []sectionRow
	if err = exe.SelectContext(ctx, &rows, exe.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying sections")
	}

	sections := make([]catalog.Section, 0, len(rows))
	for _, row := range rows {
		sections = append(sections, row.unpack())
	}
	return sections, nil
}

func (repo catalogRepository) CreateMiniQuestion(ctx context.Context, mq catalog.MiniQuestion, exec ...core.DBExecutor) (catalog.MiniQuestion, error) {
	mq.ID = uuid.New().String()
	row := packMiniQuestion(mq)

	query := `INSERT INTO mini_question (id, section_id, order_index, prompt, is_active, released, scheduled_release_time, actual_release_time, created_at, updated_at)
VALUES (:id, :section_id, :order_index, :prompt, :is_active, :released, :scheduled_release_time, :actual_release_time, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), query, row); err != nil {
		return catalog.MiniQuestion{}, errors.Wrap(err, "inserting mini question")
	}
	return row.unpack(), nil
}

func (repo catalogRepository) GetMiniQuestion(ctx context.Context, id string, exec ...core.DBExecutor) (catalog.MiniQuestion, error) {
	if _, err := uuid.Parse(id); err != nil {
		return catalog.MiniQuestion{}, catalog.ErrNotFound
	}
	exe := repo.getExec(exec)

	var row miniQuestionRow
	if err := exe.GetContext(ctx, &row, exe.Rebind(`SELECT * FROM mini_question WHERE id = ?`), id); err != nil {
		return catalog.MiniQuestion{}, trapNoRowsErr(err, catalog.ErrNotFound, "finding mini question")
	}
	return row.unpack(), nil
}

func (repo catalogRepository) QueryMiniQuestions(ctx context.Context, sectionIDs []string, exec ...core.DBExecutor) ([]catalog.MiniQuestion, error) {
	if len(sectionIDs) == 0 {
		return []catalog.MiniQuestion{}, nil
	}
	exe := repo.getExec(exec)

	query, args, err := sqlx.In(`SELECT * FROM mini_question WHERE section_id IN (?) ORDER BY order_index ASC, id ASC`, sectionIDs)
	if err != nil {
		return nil, errors.Wrap(err, "expanding section ids")
	}
	var rows []miniQuestionRow
	if err = exe.SelectContext(ctx, &rows, exe.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying mini questions")
	}

	minis := make([]catalog.MiniQuestion, 0, len(rows))
	for _, row := range rows {
		minis = append(minis, row.unpack())
	}
	return minis, nil
}

func (repo catalogRepository) UpdateMiniQuestion(ctx context.Context, mq catalog.MiniQuestion, exec ...core.DBExecutor) (catalog.MiniQuestion, error) {
	row := packMiniQuestion(mq)

	query := `UPDATE mini_question
SET prompt = :prompt, is_active = :is_active, released = :released,
    scheduled_release_time = :scheduled_release_time, actual_release_time = :actual_release_time, updated_at = :updated_at
WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), query, row)
	if err != nil {
		return catalog.MiniQuestion{}, errors.Wrap(err, "updating mini question")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.MiniQuestion{}, catalog.ErrNotFound
	}
	return row.unpack(), nil
}
