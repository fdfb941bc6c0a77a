package progress

import (
	"context"
	"sort"

	"github.com/mwalimu/darasa/core/catalog"
	"github.com/mwalimu/darasa/core/cohort"
)

// snapshot is everything one progress derivation reads. It is loaded in a
// handful of batched queries and never mutated, so derivations can run
// concurrently with scheduler ticks and admin edits.
type snapshot struct {
	cohort      cohort.Cohort
	content     catalog.Content
	answers     []Answer
	miniAnswers []MiniAnswer
}

func (svc *service) loadSnapshot(ctx context.Context, mbr cohort.Membership) (snapshot, error) {
	coh, err := svc.cohortSvc.GetByID(ctx, mbr.CohortID)
	if err != nil {
		return snapshot{}, err
	}
	content, err := svc.catalogSvc.LoadCohortContent(ctx, mbr.CohortID)
	if err != nil {
		return snapshot{}, err
	}
	answers, err := svc.repo.QueryAnswers(ctx, &AnswerFilter{UserID: mbr.UserID, CohortID: mbr.CohortID})
	if err != nil {
		return snapshot{}, err
	}
	miniAnswers, err := svc.repo.QueryMiniAnswers(ctx, &MiniAnswerFilter{UserID: mbr.UserID, CohortID: mbr.CohortID})
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{
		cohort:      coh,
		content:     content,
		answers:     answers,
		miniAnswers: miniAnswers,
	}, nil
}

func (svc *service) Board(ctx context.Context, userID string) ([]TopicProgress, error) {
	mbr, err := svc.cohortSvc.ResolveMembership(ctx, userID)
	if err != nil {
		if err == cohort.ErrNotEnrolled {
			return []TopicProgress{}, nil
		}
		return nil, err
	}
	snap, err := svc.loadSnapshot(ctx, mbr)
	if err != nil {
		return nil, err
	}
	return deriveProgress(snap), nil
}

func (svc *service) ComputeProgress(ctx context.Context, userID, cohortID string) ([]TopicProgress, error) {
	mbr, err := svc.cohortSvc.ResolveMembership(ctx, userID)
	if err != nil {
		if err == cohort.ErrNotEnrolled {
			return []TopicProgress{}, nil
		}
		return nil, err
	}
	// enrollment elsewhere grants nothing here
	if mbr.CohortID != cohortID {
		return []TopicProgress{}, nil
	}
	snap, err := svc.loadSnapshot(ctx, mbr)
	if err != nil {
		return nil, err
	}
	return deriveProgress(snap), nil
}

func (svc *service) TopicDetail(ctx context.Context, userID, topicID string) (TopicDetail, error) {
	mbr, err := svc.cohortSvc.ResolveMembership(ctx, userID)
	if err != nil {
		return TopicDetail{}, err
	}
	snap, err := svc.loadSnapshot(ctx, mbr)
	if err != nil {
		return TopicDetail{}, err
	}
	row, ok := findRow(deriveProgress(snap), topicID)
	if !ok {
		return TopicDetail{}, catalog.ErrNotFound
	}
	if row.Status == TopicLocked {
		return TopicDetail{}, ErrTopicLocked
	}

	miniAnswerByMQ := make(map[string]MiniAnswer, len(snap.miniAnswers))
	for _, ma := range snap.miniAnswers {
		miniAnswerByMQ[ma.MiniQuestionID] = ma
	}

	var sections []catalog.Section
	for _, s := range snap.content.Sections {
		if s.TopicID == topicID {
			sections = append(sections, s)
		}
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].Index < sections[j].Index })

	mod := snap.content.ModuleByID(row.ModuleID)
	detail := TopicDetail{TopicProgress: row}
	for _, s := range sections {
		sd := SectionDetail{Section: s}

		var minis []catalog.MiniQuestion
		for _, mq := range snap.content.MiniQuestions {
			if mq.SectionID == s.ID {
				minis = append(minis, mq)
			}
		}
		sort.Slice(minis, func(i, j int) bool { return minis[i].Index < minis[j].Index })

		for _, mq := range minis {
			if !catalog.MiniQuestionVisible(snap.cohort, mod, row.Topic, mq) {
				continue
			}
			mqp := MiniQuestionProgress{MiniQuestion: mq}
			if ma, found := miniAnswerByMQ[mq.ID]; found {
				mqp.Submitted = true
				mqp.Answer = &ma
			}
			sd.MiniQuestions = append(sd.MiniQuestions, mqp)
		}
		detail.Sections = append(detail.Sections, sd)
	}
	return detail, nil
}

// deriveProgress computes every visible topic's status for one learner from a
// read snapshot. Raw release flags are never trusted alone; visibility is
// recomputed through the cascade predicates on every call.
func deriveProgress(snap snapshot) []TopicProgress {
	answerByTopic := make(map[string]Answer, len(snap.answers))
	for _, a := range snap.answers {
		answerByTopic[a.TopicID] = a
	}
	answeredMinis := make(map[string]bool, len(snap.miniAnswers))
	for _, ma := range snap.miniAnswers {
		answeredMinis[ma.MiniQuestionID] = true
	}
	sectionsByTopic := make(map[string][]catalog.Section, len(snap.content.Sections))
	for _, s := range snap.content.Sections {
		sectionsByTopic[s.TopicID] = append(sectionsByTopic[s.TopicID], s)
	}
	minisBySection := make(map[string][]catalog.MiniQuestion, len(snap.content.MiniQuestions))
	for _, mq := range snap.content.MiniQuestions {
		minisBySection[mq.SectionID] = append(minisBySection[mq.SectionID], mq)
	}

	visible := make([]catalog.Topic, 0, len(snap.content.Topics))
	for _, t := range snap.content.Topics {
		if catalog.TopicVisible(snap.cohort, snap.content.ModuleByID(t.ModuleID), t) {
			visible = append(visible, t)
		}
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].Number < visible[j].Number })

	// the highest position holding an approved answer fixes the step window:
	// a learner may attempt one position past their confirmed progress
	currentStep := 0
	for i, t := range visible {
		if a, ok := answerByTopic[t.ID]; ok && a.Status == AnswerApproved {
			currentStep = i + 1
		}
	}

	rows := make([]TopicProgress, 0, len(visible))
	for i, t := range visible {
		mod := snap.content.ModuleByID(t.ModuleID)

		var done, total int
		for _, s := range sectionsByTopic[t.ID] {
			for _, mq := range minisBySection[s.ID] {
				if !catalog.MiniQuestionVisible(snap.cohort, mod, t, mq) {
					continue
				}
				total++
				if answeredMinis[mq.ID] {
					done++
				}
			}
		}

		row := TopicProgress{Topic: t, PrereqsDone: done, PrereqsTotal: total}
		if a, ok := answerByTopic[t.ID]; ok {
			row.Answer = &a
		}
		row.Status = deriveStatus(i+1 <= currentStep+1, done, total, row.Answer)
		rows = append(rows, row)
	}
	return rows
}

func deriveStatus(inWindow bool, done, total int, answer *Answer) TopicStatus {
	if !inWindow {
		return TopicLocked
	}
	if done < total {
		return TopicMiniQuestionsRequired
	}
	if answer == nil {
		return TopicAvailable
	}
	switch {
	case answer.Status == AnswerApproved:
		return TopicCompleted
	case answer.Status == AnswerNeedsResubmission && answer.ResubmissionRequested && answer.ResubmissionApproved:
		// open for resubmission
		return TopicAvailable
	default:
		return TopicSubmitted
	}
}

func findRow(rows []TopicProgress, topicID string) (TopicProgress, bool) {
	for _, row := range rows {
		if row.ID == topicID {
			return row, true
		}
	}
	return TopicProgress{}, false
}
