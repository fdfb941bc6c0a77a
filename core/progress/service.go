package progress

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/catalog"
	"github.com/mwalimu/darasa/core/cohort"
)

var (
	// errors
	ErrAnswerNotFound      = errors.New("answer not found")
	ErrMiniAnswerNotFound  = errors.New("mini answer not found")
	ErrTopicLocked         = errors.New("topic is locked")
	ErrPrereqsIncomplete   = errors.New("mini questions are still unanswered")
	ErrNotGradable         = errors.New("answer is not awaiting grading")
	ErrResubmissionNotOpen = errors.New("answer was not sent back for resubmission")
	ErrStaleResubmission   = errors.New("answer is not open for resubmission")
)

type (
	Repository interface {
		CreateAnswer(ctx context.Context, a Answer, exec ...core.DBExecutor) (Answer, error)
		GetAnswer(ctx context.Context, filter AnswerFilter, exec ...core.DBExecutor) (Answer, error)
		QueryAnswers(ctx context.Context, filter *AnswerFilter, exec ...core.DBExecutor) ([]Answer, error)
		UpdateAnswer(ctx context.Context, a Answer, exec ...core.DBExecutor) (Answer, error)

		CreateMiniAnswer(ctx context.Context, ma MiniAnswer, exec ...core.DBExecutor) (MiniAnswer, error)
		GetMiniAnswer(ctx context.Context, filter MiniAnswerFilter, exec ...core.DBExecutor) (MiniAnswer, error)
		QueryMiniAnswers(ctx context.Context, filter *MiniAnswerFilter, exec ...core.DBExecutor) ([]MiniAnswer, error)
		UpdateMiniAnswer(ctx context.Context, ma MiniAnswer, exec ...core.DBExecutor) (MiniAnswer, error)
	}

	Service interface {
		// Board returns the learner's dashboard. A learner with no enrolled
		// membership gets an empty board, not an error.
		Board(ctx context.Context, userID string) ([]TopicProgress, error)
		ComputeProgress(ctx context.Context, userID, cohortID string) ([]TopicProgress, error)
		TopicDetail(ctx context.Context, userID, topicID string) (TopicDetail, error)

		SubmitAnswer(ctx context.Context, userID, topicID string, na NewAnswer) (Answer, error)
		SubmitMiniAnswer(ctx context.Context, userID, miniQuestionID string, nma NewMiniAnswer) (MiniAnswer, error)

		GetAnswer(ctx context.Context, id string) (Answer, error)
		QueryAnswers(ctx context.Context, filter *AnswerFilter) ([]Answer, error)
		GradeAnswer(ctx context.Context, id string, ga GradeAnswer) (Answer, error)
		RequestResubmission(ctx context.Context, id, requestedBy string) (Answer, error)
		ApproveResubmission(ctx context.Context, id string) (Answer, error)
		RequestMiniResubmission(ctx context.Context, id, requestedBy string) (MiniAnswer, error)
	}

	service struct {
		repo       Repository
		cohortSvc  cohort.Service
		catalogSvc catalog.Service
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository, cohortSvc cohort.Service, catalogSvc catalog.Service) Service {
	return &service{
		repo:       repo,
		cohortSvc:  cohortSvc,
		catalogSvc: catalogSvc,
	}
}

func (svc *service) SubmitAnswer(ctx context.Context, userID, topicID string, na NewAnswer) (Answer, error) {
	mbr, err := svc.cohortSvc.ResolveMembership(ctx, userID)
	if err != nil {
		return Answer{}, err
	}
	topic, err := svc.catalogSvc.GetTopic(ctx, topicID)
	if err != nil {
		return Answer{}, err
	}
	if err = mbr.GuardCohort(topic.CohortID); err != nil {
		return Answer{}, err
	}

	// derive the same row the learner's board would show
	snap, err := svc.loadSnapshot(ctx, mbr)
	if err != nil {
		return Answer{}, err
	}
	row, ok := findRow(deriveProgress(snap), topicID)
	if !ok {
		// hidden content is indistinguishable from absent content
		return Answer{}, catalog.ErrNotFound
	}
	switch row.Status {
	case TopicLocked:
		return Answer{}, ErrTopicLocked
	case TopicMiniQuestionsRequired:
		return Answer{}, ErrPrereqsIncomplete
	}

	now := core.Now()
	if row.Answer == nil {
		a := Answer{
			TopicID:       topic.ID,
			UserID:        mbr.UserID,
			CohortID:      mbr.CohortID,
			Content:       na.Content,
			AttachmentURL: na.AttachmentURL,
			Status:        AnswerPending,
			SubmittedAt:   now,
			UpdatedAt:     now,
		}
		return svc.repo.CreateAnswer(ctx, a)
	}

	a := *row.Answer
	switch {
	case a.Status == AnswerPending:
		// not graded yet, overwrite in place
	case a.Status == AnswerNeedsResubmission && a.ResubmissionRequested && a.ResubmissionApproved:
		a.Status = AnswerPending
		a.Grade = nil
		a.ResubmissionRequested = false
		a.ResubmissionApproved = false
		a.ResubmissionRequestedAt = nil
		a.ResubmissionRequestedBy = ""
	default:
		return Answer{}, ErrStaleResubmission
	}
	a.Content = na.Content
	a.AttachmentURL = na.AttachmentURL
	a.SubmittedAt = now
	a.UpdatedAt = now
	return svc.repo.UpdateAnswer(ctx, a)
}

func (svc *service) SubmitMiniAnswer(ctx context.Context, userID, miniQuestionID string, nma NewMiniAnswer) (MiniAnswer, error) {
	mbr, err := svc.cohortSvc.ResolveMembership(ctx, userID)
	if err != nil {
		return MiniAnswer{}, err
	}
	mq, err := svc.catalogSvc.GetMiniQuestion(ctx, miniQuestionID)
	if err != nil {
		return MiniAnswer{}, err
	}
	section, err := svc.catalogSvc.GetSection(ctx, mq.SectionID)
	if err != nil {
		return MiniAnswer{}, err
	}
	topic, err := svc.catalogSvc.GetTopic(ctx, section.TopicID)
	if err != nil {
		return MiniAnswer{}, err
	}
	if err = mbr.GuardCohort(topic.CohortID); err != nil {
		return MiniAnswer{}, err
	}

	coh, err := svc.cohortSvc.GetByID(ctx, mbr.CohortID)
	if err != nil {
		return MiniAnswer{}, err
	}
	var mod *catalog.Module
	if topic.ModuleID != "" {
		m, merr := svc.catalogSvc.GetModule(ctx, topic.ModuleID)
		if merr != nil {
			return MiniAnswer{}, merr
		}
		mod = &m
	}
	if !catalog.MiniQuestionVisible(coh, mod, topic, mq) {
		return MiniAnswer{}, catalog.ErrNotFound
	}

	now := core.Now()
	existing, err := svc.repo.GetMiniAnswer(ctx, MiniAnswerFilter{UserID: mbr.UserID, MiniQuestionID: mq.ID})
	if err == ErrMiniAnswerNotFound {
		ma := MiniAnswer{
			MiniQuestionID: mq.ID,
			UserID:         mbr.UserID,
			CohortID:       mbr.CohortID,
			Link:           nma.Link,
			Notes:          nma.Notes,
			SubmittedAt:    now,
			UpdatedAt:      now,
		}
		return svc.repo.CreateMiniAnswer(ctx, ma)
	} else if err != nil {
		return MiniAnswer{}, err
	}

	if !existing.ResubmissionRequested {
		return MiniAnswer{}, ErrStaleResubmission
	}
	existing.Link = nma.Link
	existing.Notes = nma.Notes
	existing.ResubmissionRequested = false
	existing.ResubmissionRequestedAt = nil
	existing.ResubmissionRequestedBy = ""
	existing.SubmittedAt = now
	existing.UpdatedAt = now
	return svc.repo.UpdateMiniAnswer(ctx, existing)
}

func (svc *service) GetAnswer(ctx context.Context, id string) (Answer, error) {
	return svc.repo.GetAnswer(ctx, AnswerFilter{ID: id})
}

func (svc *service) QueryAnswers(ctx context.Context, filter *AnswerFilter) ([]Answer, error) {
	return svc.repo.QueryAnswers(ctx, filter)
}

func (svc *service) GradeAnswer(ctx context.Context, id string, ga GradeAnswer) (Answer, error) {
	a, err := svc.repo.GetAnswer(ctx, AnswerFilter{ID: id})
	if err != nil {
		return Answer{}, err
	}
	if a.Status != AnswerPending {
		return Answer{}, ErrNotGradable
	}
	a.Status = ga.Status
	a.Grade = ga.Grade
	a.Feedback = ga.Feedback
	a.UpdatedAt = core.Now()
	return svc.repo.UpdateAnswer(ctx, a)
}

func (svc *service) RequestResubmission(ctx context.Context, id, requestedBy string) (Answer, error) {
	a, err := svc.repo.GetAnswer(ctx, AnswerFilter{ID: id})
	if err != nil {
		return Answer{}, err
	}
	if a.Status != AnswerNeedsResubmission {
		return Answer{}, ErrResubmissionNotOpen
	}
	now := core.Now()
	a.ResubmissionRequested = true
	a.ResubmissionRequestedAt = &now
	a.ResubmissionRequestedBy = requestedBy
	a.UpdatedAt = now
	return svc.repo.UpdateAnswer(ctx, a)
}

func (svc *service) ApproveResubmission(ctx context.Context, id string) (Answer, error) {
	a, err := svc.repo.GetAnswer(ctx, AnswerFilter{ID: id})
	if err != nil {
		return Answer{}, err
	}
	if a.Status != AnswerNeedsResubmission {
		return Answer{}, ErrResubmissionNotOpen
	}
	a.ResubmissionApproved = true
	a.UpdatedAt = core.Now()
	return svc.repo.UpdateAnswer(ctx, a)
}

func (svc *service) RequestMiniResubmission(ctx context.Context, id, requestedBy string) (MiniAnswer, error) {
	ma, err := svc.repo.GetMiniAnswer(ctx, MiniAnswerFilter{ID: id})
	if err != nil {
		return MiniAnswer{}, err
	}
	now := core.Now()
	ma.ResubmissionRequested = true
	ma.ResubmissionRequestedAt = &now
	ma.ResubmissionRequestedBy = requestedBy
	ma.UpdatedAt = now
	return svc.repo.UpdateMiniAnswer(ctx, ma)
}
