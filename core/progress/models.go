package progress

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/catalog"
)

type AnswerStatus string

const (
	// AnswerPending is the state of every fresh or resubmitted answer.
	AnswerPending AnswerStatus = "pending"
	// AnswerApproved is terminal. Approved answers advance the learner's step.
	AnswerApproved AnswerStatus = "approved"
	// AnswerNeedsResubmission marks a graded answer the mentor sent back.
	AnswerNeedsResubmission AnswerStatus = "needs_resubmission"
)

type TopicStatus string

const (
	TopicAvailable             TopicStatus = "available"
	TopicMiniQuestionsRequired TopicStatus = "mini_questions_required"
	TopicCompleted             TopicStatus = "completed"
	TopicSubmitted             TopicStatus = "submitted"
	TopicLocked                TopicStatus = "locked"
)

type (
	// Answer is a learner's submission against a topic.
	// One per (user, topic, cohort).
	Answer struct {
		ID            string       `json:"id"`
		TopicID       string       `json:"topic_id"`
		UserID        string       `json:"user_id"`
		CohortID      string       `json:"cohort_id"`
		Content       string       `json:"content"`
		AttachmentURL string       `json:"attachment_url,omitempty"`
		Status        AnswerStatus `json:"status"`
		Grade         *int         `json:"grade,omitempty"`
		Feedback      string       `json:"feedback,omitempty"`

		// Resubmission gates. Both must be set before a learner may
		// overwrite a graded answer.
		ResubmissionRequested   bool       `json:"resubmission_requested"`
		ResubmissionApproved    bool       `json:"resubmission_approved"`
		ResubmissionRequestedAt *time.Time `json:"resubmission_requested_at,omitempty"`
		ResubmissionRequestedBy string     `json:"resubmission_requested_by,omitempty"`

		SubmittedAt time.Time `json:"submitted_at"` // UTC
		UpdatedAt   time.Time `json:"updated_at"`   // UTC
	}

	// MiniAnswer is a learner's submission against a mini question.
	// One per (user, mini question, cohort). Submission alone satisfies the
	// prerequisite; mini answers are never graded.
	MiniAnswer struct {
		ID             string `json:"id"`
		MiniQuestionID string `json:"mini_question_id"`
		UserID         string `json:"user_id"`
		CohortID       string `json:"cohort_id"`
		Link           string `json:"link,omitempty"`
		Notes          string `json:"notes,omitempty"`

		ResubmissionRequested   bool       `json:"resubmission_requested"`
		ResubmissionRequestedAt *time.Time `json:"resubmission_requested_at,omitempty"`
		ResubmissionRequestedBy string     `json:"resubmission_requested_by,omitempty"`

		SubmittedAt time.Time `json:"submitted_at"` // UTC
		UpdatedAt   time.Time `json:"updated_at"`   // UTC
	}

	// TopicProgress is a topic as one learner sees it right now.
	TopicProgress struct {
		catalog.Topic
		Status       TopicStatus `json:"status"`
		PrereqsDone  int         `json:"prereqs_done"`
		PrereqsTotal int         `json:"prereqs_total"`
		Answer       *Answer     `json:"answer,omitempty"`
	}

	// MiniQuestionProgress is a mini question as one learner sees it.
	MiniQuestionProgress struct {
		catalog.MiniQuestion
		Submitted bool        `json:"submitted"`
		Answer    *MiniAnswer `json:"answer,omitempty"`
	}

	SectionDetail struct {
		catalog.Section
		MiniQuestions []MiniQuestionProgress `json:"mini_questions"`
	}

	// TopicDetail is the full learner view of one topic: the progress row
	// plus its sections and visible mini questions.
	TopicDetail struct {
		TopicProgress
		Sections []SectionDetail `json:"sections"`
	}
)

type NewAnswer struct {
	Content       string `json:"content" validate:"required"`
	AttachmentURL string `json:"attachment_url" validate:"omitempty,url"`
}

func (na *NewAnswer) Validate(validate *validator.Validate) error {
	na.Content = core.CleanString(na.Content)
	na.AttachmentURL = core.CleanString(na.AttachmentURL)
	if err := validate.Struct(na); err != nil {
		return err
	}
	return nil
}

type NewMiniAnswer struct {
	Link  string `json:"link" validate:"omitempty,url"`
	Notes string `json:"notes" validate:"required_without=Link"`
}

func (nma *NewMiniAnswer) Validate(validate *validator.Validate) error {
	nma.Link = core.CleanString(nma.Link)
	nma.Notes = core.CleanString(nma.Notes)
	if err := validate.Struct(nma); err != nil {
		return err
	}
	return nil
}

// GradeAnswer is a mentor's verdict on a pending answer.
type GradeAnswer struct {
	Status   AnswerStatus `json:"status" validate:"required,oneof=approved needs_resubmission"`
	Grade    *int         `json:"grade" validate:"omitempty,min=0"`
	Feedback string       `json:"feedback"`
}

func (ga *GradeAnswer) Validate(validate *validator.Validate) error {
	ga.Feedback = core.CleanString(ga.Feedback)
	if err := validate.Struct(ga); err != nil {
		return err
	}
	return nil
}

type (
	AnswerFilter struct {
		ID       string
		UserID   string
		TopicID  string
		CohortID string
		Status   AnswerStatus
	}

	MiniAnswerFilter struct {
		ID             string
		UserID         string
		MiniQuestionID string
		CohortID       string
	}
)
