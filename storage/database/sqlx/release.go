package sqlxrepos

import (
	"context"
	"time"

	"github.com/friendsofgo/errors"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/catalog"
	"github.com/mwalimu/darasa/core/release"
)

// releaseRepository backs the release clock: due-row scans and flag flips.
// The flips filter on the current flag so a tick that lost the race is a no-op.
type releaseRepository struct {
	exec core.DBExecutor
}

var _ release.Repository = (*releaseRepository)(nil) // interface compliance check

func NewReleaseRepository(exec core.DBExecutor) *releaseRepository {
	return &releaseRepository{exec: exec}
}

func (repo releaseRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo releaseRepository) ReleasableModules(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]catalog.Module, error) {
	exe := repo.getExec(exec)

	query := `SELECT * FROM module
WHERE released = false AND scheduled_release_time IS NOT NULL AND scheduled_release_time <= ?
ORDER BY scheduled_release_time ASC, id ASC`
	var rows []moduleRow
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(query), now.UTC()); err != nil {
		return nil, errors.Wrap(err, "scanning releasable modules")
	}

	modules := make([]catalog.Module, 0, len(rows))
	for _, row := range rows {
		modules = append(modules, row.unpack())
	}
	return modules, nil
}

func (repo releaseRepository) ReleaseModule(ctx context.Context, id string, now time.Time, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)

	query := `UPDATE module SET released = true, actual_release_time = ?, updated_at = ? WHERE id = ? AND released = false`
	if _, err := exe.ExecContext(ctx, exe.Rebind(query), now.UTC(), now.UTC(), id); err != nil {
		return errors.Wrap(err, "releasing module")
	}
	return nil
}

func (repo releaseRepository) RetractableModules(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]catalog.Module, error) {
	exe := repo.getExec(exec)

	query := `SELECT * FROM module
WHERE released = true AND scheduled_release_time IS NOT NULL AND scheduled_release_time > ?
ORDER BY scheduled_release_time ASC, id ASC`
	var rows []moduleRow
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(query), now.UTC()); err != nil {
		return nil, errors.Wrap(err, "scanning retractable modules")
	}

	modules := make([]catalog.Module, 0, len(rows))
	for _, row := range rows {
		modules = append(modules, row.unpack())
	}
	return modules, nil
}

func (repo releaseRepository) RetractModule(ctx context.Context, id string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)

	query := `UPDATE module SET released = false, actual_release_time = NULL, updated_at = ? WHERE id = ? AND released = true`
	if _, err := exe.ExecContext(ctx, exe.Rebind(query), core.Now(), id); err != nil {
		return errors.Wrap(err, "retracting module")
	}
	return nil
}

// ReleasableTopics applies the parent gate in the scan: a due topic under an
// unreleased module stays pending until a later tick.
func (repo releaseRepository) ReleasableTopics(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]catalog.Topic, error) {
	exe := repo.getExec(exec)

	query := `SELECT t.* FROM topic t
LEFT JOIN module m ON m.id = t.module_id
WHERE t.released = false AND t.scheduled_release_time IS NOT NULL AND t.scheduled_release_time <= ?
  AND (t.module_id IS NULL OR m.released = true)
ORDER BY t.scheduled_release_time ASC, t.id ASC`
	var rows []topicRow
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(query), now.UTC()); err != nil {
		return nil, errors.Wrap(err, "scanning releasable topics")
	}

	topics := make([]catalog.Topic, 0, len(rows))
	for _, row := range rows {
		topics = append(topics, row.unpack())
	}
	return topics, nil
}

func (repo releaseRepository) ReleaseTopic(ctx context.Context, id string, now time.Time, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)

	query := `UPDATE topic SET released = true, actual_release_time = ?, updated_at = ? WHERE id = ? AND released = false`
	if _, err := exe.ExecContext(ctx, exe.Rebind(query), now.UTC(), now.UTC(), id); err != nil {
		return errors.Wrap(err, "releasing topic")
	}
	return nil
}

func (repo releaseRepository) RetractableTopics(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]catalog.Topic, error) {
	exe := repo.getExec(exec)

	query := `SELECT * FROM topic
WHERE released = true AND scheduled_release_time IS NOT NULL AND scheduled_release_time > ?
ORDER BY scheduled_release_time ASC, id ASC`
	var rows []topicRow
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(query), now.UTC()); err != nil {
		return nil, errors.Wrap(err, "scanning retractable topics")
	}

	topics := make([]catalog.Topic, 0, len(rows))
	for _, row := range rows {
		topics = append(topics, row.unpack())
	}
	return topics, nil
}

func (repo releaseRepository) RetractTopic(ctx context.Context, id string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)

	query := `UPDATE topic SET released = false, actual_release_time = NULL, updated_at = ? WHERE id = ? AND released = true`
	if _, err := exe.ExecContext(ctx, exe.Rebind(query), core.Now(), id); err != nil {
		return errors.Wrap(err, "retracting topic")
	}
	return nil
}

// ReleasableMiniQuestions gates on the owning topic: sections carry no release
// flag, so the topic is the nearest released ancestor that matters.
func (repo releaseRepository) ReleasableMiniQuestions(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]catalog.MiniQuestion, error) {
	exe := repo.getExec(exec)

	query := `SELECT mq.* FROM mini_question mq
JOIN content_section cs ON cs.id = mq.section_id
JOIN topic t ON t.id = cs.topic_id
WHERE mq.released = false AND mq.scheduled_release_time IS NOT NULL AND mq.scheduled_release_time <= ?
  AND t.released = true
ORDER BY mq.scheduled_release_time ASC, mq.id ASC`
	var rows []miniQuestionRow
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(query), now.UTC()); err != nil {
		return nil, errors.Wrap(err, "scanning releasable mini questions")
	}

	minis := make([]catalog.MiniQuestion, 0, len(rows))
	for _, row := range rows {
		minis = append(minis, row.unpack())
	}
	return minis, nil
}

func (repo releaseRepository) ReleaseMiniQuestion(ctx context.Context, id string, now time.Time, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)

	query := `UPDATE mini_question SET released = true, actual_release_time = ?, updated_at = ? WHERE id = ? AND released = false`
	if _, err := exe.ExecContext(ctx, exe.Rebind(query), now.UTC(), now.UTC(), id); err != nil {
		return errors.Wrap(err, "releasing mini question")
	}
	return nil
}

func (repo releaseRepository) RetractableMiniQuestions(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]catalog.MiniQuestion, error) {
	exe := repo.getExec(exec)

	query := `SELECT * FROM mini_question
WHERE released = true AND scheduled_release_time IS NOT NULL AND scheduled_release_time > ?
ORDER BY scheduled_release_time ASC, id ASC`
	var rows []miniQuestionRow
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(query), now.UTC()); err != nil {
		return nil, errors.Wrap(err, "scanning retractable mini questions")
	}

	minis := make([]catalog.MiniQuestion, 0, len(rows))
	for _, row := range rows {
		minis = append(minis, row.unpack())
	}
	return minis, nil
}

func (repo releaseRepository) RetractMiniQuestion(ctx context.Context, id string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)

	query := `UPDATE mini_question SET released = false, actual_release_time = NULL, updated_at = ? WHERE id = ? AND released = true`
	if _, err := exe.ExecContext(ctx, exe.Rebind(query), core.Now(), id); err != nil {
		return errors.Wrap(err, "retracting mini question")
	}
	return nil
}
