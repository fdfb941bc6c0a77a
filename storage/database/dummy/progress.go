package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/progress"
)

type progressRepository struct {
	answers     *answerTable
	miniAnswers *miniAnswerTable
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) *progressRepository {
	return &progressRepository{answers: db.answer, miniAnswers: db.miniAnswer}
}

func matchAnswer(a progress.Answer, filter *progress.AnswerFilter) bool {
	if filter == nil {
		return true
	}
	if filter.ID != "" && a.ID != filter.ID {
		return false
	}
	if filter.UserID != "" && a.UserID != filter.UserID {
		return false
	}
	if filter.TopicID != "" && a.TopicID != filter.TopicID {
		return false
	}
	if filter.CohortID != "" && a.CohortID != filter.CohortID {
		return false
	}
	if filter.Status != "" && a.Status != filter.Status {
		return false
	}
	return true
}

func matchMiniAnswer(ma progress.MiniAnswer, filter *progress.MiniAnswerFilter) bool {
	if filter == nil {
		return true
	}
	if filter.ID != "" && ma.ID != filter.ID {
		return false
	}
	if filter.UserID != "" && ma.UserID != filter.UserID {
		return false
	}
	if filter.MiniQuestionID != "" && ma.MiniQuestionID != filter.MiniQuestionID {
		return false
	}
	if filter.CohortID != "" && ma.CohortID != filter.CohortID {
		return false
	}
	return true
}

func (repo *progressRepository) CreateAnswer(ctx context.Context, a progress.Answer, exec ...core.DBExecutor) (progress.Answer, error) {
	repo.answers.Lock()
	defer repo.answers.Unlock()

	a.ID = uuid.New().String()
	repo.answers.table[a.ID] = &a
	return a, nil
}

func (repo *progressRepository) GetAnswer(ctx context.Context, filter progress.AnswerFilter, exec ...core.DBExecutor) (progress.Answer, error) {
	repo.answers.RLock()
	defer repo.answers.RUnlock()

	if filter == (progress.AnswerFilter{}) {
		return progress.Answer{}, progress.ErrAnswerNotFound
	}
	for _, a := range repo.answers.table {
		if matchAnswer(*a, &filter) {
			return *a, nil
		}
	}
	return progress.Answer{}, progress.ErrAnswerNotFound
}

func (repo *progressRepository) QueryAnswers(ctx context.Context, filter *progress.AnswerFilter, exec ...core.DBExecutor) ([]progress.Answer, error) {
	repo.answers.RLock()
	defer repo.answers.RUnlock()

	answers := make([]progress.Answer, 0, len(repo.answers.table))
	for _, a := range repo.answers.table {
		if matchAnswer(*a, filter) {
			answers = append(answers, *a)
		}
	}
	sort.Slice(answers, func(i, j int) bool {
		if answers[i].SubmittedAt.Equal(answers[j].SubmittedAt) {
			return answers[i].ID > answers[j].ID
		}
		return answers[i].SubmittedAt.After(answers[j].SubmittedAt)
	})
	return answers, nil
}

func (repo *progressRepository) UpdateAnswer(ctx context.Context, a progress.Answer, exec ...core.DBExecutor) (progress.Answer, error) {
	repo.answers.Lock()
	defer repo.answers.Unlock()

	if _, ok := repo.answers.table[a.ID]; !ok {
		return progress.Answer{}, progress.ErrAnswerNotFound
	}
	repo.answers.table[a.ID] = &a
	return a, nil
}

func (repo *progressRepository) CreateMiniAnswer(ctx context.Context, ma progress.MiniAnswer, exec ...core.DBExecutor) (progress.MiniAnswer, error) {
	repo.miniAnswers.Lock()
	defer repo.miniAnswers.Unlock()

	ma.ID = uuid.New().String()
	repo.miniAnswers.table[ma.ID] = &ma
	return ma, nil
}

func (repo *progressRepository) GetMiniAnswer(ctx context.Context, filter progress.MiniAnswerFilter, exec ...core.DBExecutor) (progress.MiniAnswer, error) {
	repo.miniAnswers.RLock()
	defer repo.miniAnswers.RUnlock()

	if filter == (progress.MiniAnswerFilter{}) {
		return progress.MiniAnswer{}, progress.ErrMiniAnswerNotFound
	}
	for _, ma := range repo.miniAnswers.table {
		if matchMiniAnswer(*ma, &filter) {
			return *ma, nil
		}
	}
	return progress.MiniAnswer{}, progress.ErrMiniAnswerNotFound
}

func (repo *progressRepository) QueryMiniAnswers(ctx context.Context, filter *progress.MiniAnswerFilter, exec ...core.DBExecutor) ([]progress.MiniAnswer, error) {
	repo.miniAnswers.RLock()
	defer repo.miniAnswers.RUnlock()

	minis := make([]progress.MiniAnswer, 0, len(repo.miniAnswers.table))
	for _, ma := range repo.miniAnswers.table {
		if matchMiniAnswer(*ma, filter) {
			minis = append(minis, *ma)
		}
	}
	sort.Slice(minis, func(i, j int) bool {
		if minis[i].SubmittedAt.Equal(minis[j].SubmittedAt) {
			return minis[i].ID > minis[j].ID
		}
		return minis[i].SubmittedAt.After(minis[j].SubmittedAt)
	})
	return minis, nil
}

func (repo *progressRepository) UpdateMiniAnswer(ctx context.Context, ma progress.MiniAnswer, exec ...core.DBExecutor) (progress.MiniAnswer, error) {
	repo.miniAnswers.Lock()
	defer repo.miniAnswers.Unlock()

	if _, ok := repo.miniAnswers.table[ma.ID]; !ok {
		return progress.MiniAnswer{}, progress.ErrMiniAnswerNotFound
	}
	repo.miniAnswers.table[ma.ID] = &ma
	return ma, nil
}
