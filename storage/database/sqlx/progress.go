package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/friendsofgo/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/progress"
)

type answerRow struct {
	ID            string      `db:"id"`
	UserID        string      `db:"user_id"`
	TopicID       string      `db:"topic_id"`
	CohortID      string      `db:"cohort_id"`
	Content       string      `db:"content"`
	AttachmentURL null.String `db:"attachment_url"`
	Status        string      `db:"status"`
	Grade         null.Int    `db:"grade"`
	Feedback      null.String `db:"feedback"`

	ResubmissionRequested   bool        `db:"resubmission_requested"`
	ResubmissionRequestedAt null.Time   `db:"resubmission_requested_at"`
	ResubmissionRequestedBy null.String `db:"resubmission_requested_by"`
	ResubmissionApproved    bool        `db:"resubmission_approved"`

	SubmittedAt time.Time `db:"submitted_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r answerRow) unpack() progress.Answer {
	return progress.Answer{
		ID:                      r.ID,
		TopicID:                 r.TopicID,
		UserID:                  r.UserID,
		CohortID:                r.CohortID,
		Content:                 r.Content,
		AttachmentURL:           r.AttachmentURL.String,
		Status:                  progress.AnswerStatus(r.Status),
		Grade:                   r.Grade.Ptr(),
		Feedback:                r.Feedback.String,
		ResubmissionRequested:   r.ResubmissionRequested,
		ResubmissionApproved:    r.ResubmissionApproved,
		ResubmissionRequestedAt: r.ResubmissionRequestedAt.Ptr(),
		ResubmissionRequestedBy: r.ResubmissionRequestedBy.String,
		SubmittedAt:             r.SubmittedAt,
		UpdatedAt:               r.UpdatedAt,
	}
}

func packAnswer(a progress.Answer) answerRow {
	return answerRow{
		ID:                      a.ID,
		UserID:                  a.UserID,
		TopicID:                 a.TopicID,
		CohortID:                a.CohortID,
		Content:                 a.Content,
		AttachmentURL:           null.NewString(a.AttachmentURL, a.AttachmentURL != ""),
		Status:                  string(a.Status),
		Grade:                   null.IntFromPtr(a.Grade),
		Feedback:                null.NewString(a.Feedback, a.Feedback != ""),
		ResubmissionRequested:   a.ResubmissionRequested,
		ResubmissionRequestedAt: null.TimeFromPtr(a.ResubmissionRequestedAt),
		ResubmissionRequestedBy: null.NewString(a.ResubmissionRequestedBy, a.ResubmissionRequestedBy != ""),
		ResubmissionApproved:    a.ResubmissionApproved,
		SubmittedAt:             a.SubmittedAt.UTC(),
		UpdatedAt:               a.UpdatedAt.UTC(),
	}
}

type miniAnswerRow struct {
	ID             string      `db:"id"`
	UserID         string      `db:"user_id"`
	MiniQuestionID string      `db:"mini_question_id"`
	CohortID       string      `db:"cohort_id"`
	Link           null.String `db:"link"`
	Notes          string      `db:"notes"`

	ResubmissionRequested   bool        `db:"resubmission_requested"`
	ResubmissionRequestedAt null.Time   `db:"resubmission_requested_at"`
	ResubmissionRequestedBy null.String `db:"resubmission_requested_by"`

	SubmittedAt time.Time `db:"submitted_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r miniAnswerRow) unpack() progress.MiniAnswer {
	return progress.MiniAnswer{
		ID:                      r.ID,
		MiniQuestionID:          r.MiniQuestionID,
		UserID:                  r.UserID,
		CohortID:                r.CohortID,
		Link:                    r.Link.String,
		Notes:                   r.Notes,
		ResubmissionRequested:   r.ResubmissionRequested,
		ResubmissionRequestedAt: r.ResubmissionRequestedAt.Ptr(),
		ResubmissionRequestedBy: r.ResubmissionRequestedBy.String,
		SubmittedAt:             r.SubmittedAt,
		UpdatedAt:               r.UpdatedAt,
	}
}

func packMiniAnswer(ma progress.MiniAnswer) miniAnswerRow {
	return miniAnswerRow{
		ID:                      ma.ID,
		UserID:                  ma.UserID,
		MiniQuestionID:          ma.MiniQuestionID,
		CohortID:                ma.CohortID,
		Link:                    null.NewString(ma.Link, ma.Link != ""),
		Notes:                   ma.Notes,
		ResubmissionRequested:   ma.ResubmissionRequested,
		ResubmissionRequestedAt: null.TimeFromPtr(ma.ResubmissionRequestedAt),
		ResubmissionRequestedBy: null.NewString(ma.ResubmissionRequestedBy, ma.ResubmissionRequestedBy != ""),
		SubmittedAt:             ma.SubmittedAt.UTC(),
		UpdatedAt:               ma.UpdatedAt.UTC(),
	}
}

type progressRepository struct {
	exec core.DBExecutor
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(exec core.DBExecutor) *progressRepository {
	return &progressRepository{exec: exec}
}

func (repo progressRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo progressRepository) CreateAnswer(ctx context.Context, a progress.Answer, exec ...core.DBExecutor) (progress.Answer, error) {
	a.ID = uuid.New().String()
	row := packAnswer(a)

	query := `INSERT INTO answer (id, user_id, topic_id, cohort_id, content, attachment_url, status, grade, feedback, resubmission_requested, resubmission_requested_at, resubmission_requested_by, resubmission_approved, submitted_at, updated_at)
VALUES (:id, :user_id, :topic_id, :cohort_id, :content, :attachment_url, :status, :grade, :feedback, :resubmission_requested, :resubmission_requested_at, :resubmission_requested_by, :resubmission_approved, :submitted_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), query, row); err != nil {
		return progress.Answer{}, errors.Wrap(err, "inserting answer")
	}
	return row.unpack(), nil
}

func answerConds(filter *progress.AnswerFilter) ([]string, []interface{}) {
	var conds []string
	var args []interface{}
	if filter == nil {
		return conds, args
	}
	if filter.ID != "" {
		conds = append(conds, `id = ?`)
		args = append(args, filter.ID)
	}
	if filter.UserID != "" {
		conds = append(conds, `user_id = ?`)
		args = append(args, filter.UserID)
	}
	if filter.TopicID != "" {
		conds = append(conds, `topic_id = ?`)
		args = append(args, filter.TopicID)
	}
	if filter.CohortID != "" {
		conds = append(conds, `cohort_id = ?`)
		args = append(args, filter.CohortID)
	}
	if filter.Status != "" {
		conds = append(conds, `status = ?`)
		args = append(args, string(filter.Status))
	}
	return conds, args
}

func (repo progressRepository) GetAnswer(ctx context.Context, filter progress.AnswerFilter, exec ...core.DBExecutor) (progress.Answer, error) {
	if filter.ID != "" {
		if _, err := uuid.Parse(filter.ID); err != nil {
			return progress.Answer{}, progress.ErrAnswerNotFound
		}
	}
	exe := repo.getExec(exec)

	conds, args := answerConds(&filter)
	if len(conds) == 0 {
		return progress.Answer{}, progress.ErrAnswerNotFound
	}

	var row answerRow
	query := `SELECT * FROM answer WHERE ` + strings.Join(conds, " AND ")
	if err := exe.GetContext(ctx, &row, exe.Rebind(query), args...); err != nil {
		return progress.Answer{}, trapNoRowsErr(err, progress.ErrAnswerNotFound, "finding answer")
	}
	return row.unpack(), nil
}

func (repo progressRepository) QueryAnswers(ctx context.Context, filter *progress.AnswerFilter, exec ...core.DBExecutor) ([]progress.Answer, error) {
	exe := repo.getExec(exec)

	conds, args := answerConds(filter)
	query := `SELECT * FROM answer`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY submitted_at DESC, id DESC`

	var rows []answerRow
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying answers")
	}

	answers := make([]progress.Answer, 0, len(rows))
	for _, row := range rows {
		answers = append(answers, row.unpack())
	}
	return answers, nil
}

func (repo progressRepository) UpdateAnswer(ctx context.Context, a progress.Answer, exec ...core.DBExecutor) (progress.Answer, error) {
	row := packAnswer(a)

	query := `UPDATE answer
SET content = :content, attachment_url = :attachment_url, status = :status, grade = :grade, feedback = :feedback,
    resubmission_requested = :resubmission_requested, resubmission_requested_at = :resubmission_requested_at,
    resubmission_requested_by = :resubmission_requested_by, resubmission_approved = :resubmission_approved,
    submitted_at = :submitted_at, updated_at = :updated_at
WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), query, row)
	if err != nil {
		return progress.Answer{}, errors.Wrap(err, "updating answer")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return progress.Answer{}, progress.ErrAnswerNotFound
	}
	return row.unpack(), nil
}

func (repo progressRepository) CreateMiniAnswer(ctx context.Context, ma progress.MiniAnswer, exec ...core.DBExecutor) (progress.MiniAnswer, error) {
	ma.ID = uuid.New().String()
	row := packMiniAnswer(ma)

	query := `INSERT INTO mini_answer (id, user_id, mini_question_id, cohort_id, link, notes, resubmission_requested, resubmission_requested_at, resubmission_requested_by, submitted_at, updated_at)
VALUES (:id, :user_id, :mini_question_id, :cohort_id, :link, :notes, :resubmission_requested, :resubmission_requested_at, :resubmission_requested_by, :submitted_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), query, row); err != nil {
		return progress.MiniAnswer{}, errors.Wrap(err, "inserting mini answer")
	}
	return row.unpack(), nil
}

func miniAnswerConds(filter *progress.MiniAnswerFilter) ([]string, []interface{}) {
	var conds []string
	var args []interface{}
	if filter == nil {
		return conds, args
	}
	if filter.ID != "" {
		conds = append(conds, `id = ?`)
		args = append(args, filter.ID)
	}
	if filter.UserID != "" {
		conds = append(conds, `user_id = ?`)
		args = append(args, filter.UserID)
	}
	if filter.MiniQuestionID != "" {
		conds = append(conds, `mini_question_id = ?`)
		args = append(args, filter.MiniQuestionID)
	}
	if filter.CohortID != "" {
		conds = append(conds, `cohort_id = ?`)
		args = append(args, filter.CohortID)
	}
	return conds, args
}

func (repo progressRepository) GetMiniAnswer(ctx context.Context, filter progress.MiniAnswerFilter, exec ...core.DBExecutor) (progress.MiniAnswer, error) {
	if filter.ID != "" {
		if _, err := uuid.Parse(filter.ID); err != nil {
			return progress.MiniAnswer{}, progress.ErrMiniAnswerNotFound
		}
	}
	exe := repo.getExec(exec)

	conds, args := miniAnswerConds(&filter)
	if len(conds) == 0 {
		return progress.MiniAnswer{}, progress.ErrMiniAnswerNotFound
	}

	var row miniAnswerRow
	query := `SELECT * FROM mini_answer WHERE ` + strings.Join(conds, " AND ")
	if err := exe.GetContext(ctx, &row, exe.Rebind(query), args...); err != nil {
		return progress.MiniAnswer{}, trapNoRowsErr(err, progress.ErrMiniAnswerNotFound, "finding mini answer")
	}
	return row.unpack(), nil
}

func (repo progressRepository) QueryMiniAnswers(ctx context.Context, filter *progress.MiniAnswerFilter, exec ...core.DBExecutor) ([]progress.MiniAnswer, error) {
	exe := repo.getExec(exec)

	conds, args := miniAnswerConds(filter)
	query := `SELECT * FROM mini_answer`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY submitted_at DESC, id DESC`

	var rows []miniAnswerRow
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying mini answers")
	}

	minis := make([]progress.MiniAnswer, 0, len(rows))
	for _, row := range rows {
		minis = append(minis, row.unpack())
	}
	return minis, nil
}

func (repo progressRepository) UpdateMiniAnswer(ctx context.Context, ma progress.MiniAnswer, exec ...core.DBExecutor) (progress.MiniAnswer, error) {
	row := packMiniAnswer(ma)

	query := `UPDATE mini_answer
SET link = :link, notes = :notes,
    resubmission_requested = :resubmission_requested, resubmission_requested_at = :resubmission_requested_at,
    resubmission_requested_by = :resubmission_requested_by, submitted_at = :submitted_at, updated_at = :updated_at
WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), query, row)
	if err != nil {
		return progress.MiniAnswer{}, errors.Wrap(err, "updating mini answer")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return progress.MiniAnswer{}, progress.ErrMiniAnswerNotFound
	}
	return row.unpack(), nil
}
