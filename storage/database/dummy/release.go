package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/catalog"
	"github.com/mwalimu/darasa/core/release"
)

// releaseRepository feeds the release clock from the in-memory tables. Flips
// re-check the flag under the write lock, like the sql WHERE guard.
type releaseRepository struct {
	db *DB
}

var _ release.Repository = (*releaseRepository)(nil) // interface compliance check

func NewReleaseRepository(db *DB) *releaseRepository {
	return &releaseRepository{db: db}
}

func (repo *releaseRepository) ReleasableModules(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]catalog.Module, error) {
	repo.db.module.RLock()
	defer repo.db.module.RUnlock()

	var modules []catalog.Module
	for _, m := range repo.db.module.table {
		if m.DueAt(now) {
			modules = append(modules, *m)
		}
	}
	sortModulesBySchedule(modules)
	return modules, nil
}

func (repo *releaseRepository) ReleaseModule(ctx context.Context, id string, now time.Time, exec ...core.DBExecutor) error {
	repo.db.module.Lock()
	defer repo.db.module.Unlock()

	if m, ok := repo.db.module.table[id]; ok && !m.Released {
		m.Released = true
		m.ActualReleaseTime = core.TimePtr(now)
		m.UpdatedAt = now
	}
	return nil
}

func (repo *releaseRepository) RetractableModules(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]catalog.Module, error) {
	repo.db.module.RLock()
	defer repo.db.module.RUnlock()

	var modules []catalog.Module
	for _, m := range repo.db.module.table {
		if m.RetractableAt(now) {
			modules = append(modules, *m)
		}
	}
	sortModulesBySchedule(modules)
	return modules, nil
}

func (repo *releaseRepository) RetractModule(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.module.Lock()
	defer repo.db.module.Unlock()

	if m, ok := repo.db.module.table[id]; ok && m.Released {
		m.Released = false
		m.ActualReleaseTime = nil
		m.UpdatedAt = core.Now()
	}
	return nil
}

// ReleasableTopics holds back a due topic whose module is absent or unreleased.
func (repo *releaseRepository) ReleasableTopics(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]catalog.Topic, error) {
	repo.db.module.RLock()
	defer repo.db.module.RUnlock()
	repo.db.topic.RLock()
	defer repo.db.topic.RUnlock()

	var topics []catalog.Topic
	for _, t := range repo.db.topic.table {
		if !t.DueAt(now) {
			continue
		}
		if t.ModuleID != "" {
			m, ok := repo.db.module.table[t.ModuleID]
			if !ok || !m.Released {
				continue
			}
		}
		topics = append(topics, *t)
	}
	sortTopicsBySchedule(topics)
	return topics, nil
}

func (repo *releaseRepository) ReleaseTopic(ctx context.Context, id string, now time.Time, exec ...core.DBExecutor) error {
	repo.db.topic.Lock()
	defer repo.db.topic.Unlock()

	if t, ok := repo.db.topic.table[id]; ok && !t.Released {
		t.Released = true
		t.ActualReleaseTime = core.TimePtr(now)
		t.UpdatedAt = now
	}
	return nil
}

func (repo *releaseRepository) RetractableTopics(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]catalog.Topic, error) {
	repo.db.topic.RLock()
	defer repo.db.topic.RUnlock()

	var topics []catalog.Topic
	for _, t := range repo.db.topic.table {
		if t.RetractableAt(now) {
			topics = append(topics, *t)
		}
	}
	sortTopicsBySchedule(topics)
	return topics, nil
}

func (repo *releaseRepository) RetractTopic(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.topic.Lock()
	defer repo.db.topic.Unlock()

	if t, ok := repo.db.topic.table[id]; ok && t.Released {
		t.Released = false
		t.ActualReleaseTime = nil
		t.UpdatedAt = core.Now()
	}
	return nil
}

// ReleasableMiniQuestions gates on the owning topic via the section.
func (repo *releaseRepository) ReleasableMiniQuestions(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]catalog.MiniQuestion, error) {
	repo.db.topic.RLock()
	defer repo.db.topic.RUnlock()
	repo.db.section.RLock()
	defer repo.db.section.RUnlock()
	repo.db.mini.RLock()
	defer repo.db.mini.RUnlock()

	var minis []catalog.MiniQuestion
	for _, mq := range repo.db.mini.table {
		if !mq.DueAt(now) {
			continue
		}
		s, ok := repo.db.section.table[mq.SectionID]
		if !ok {
			continue
		}
		t, ok := repo.db.topic.table[s.TopicID]
		if !ok || !t.Released {
			continue
		}
		minis = append(minis, *mq)
	}
	sortMinisBySchedule(minis)
	return minis, nil
}

func (repo *releaseRepository) ReleaseMiniQuestion(ctx context.Context, id string, now time.Time, exec ...core.DBExecutor) error {
	repo.db.mini.Lock()
	defer repo.db.mini.Unlock()

	if mq, ok := repo.db.mini.table[id]; ok && !mq.Released {
		mq.Released = true
		mq.ActualReleaseTime = core.TimePtr(now)
		mq.UpdatedAt = now
	}
	return nil
}

func (repo *releaseRepository) RetractableMiniQuestions(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]catalog.MiniQuestion, error) {
	repo.db.mini.RLock()
	defer repo.db.mini.RUnlock()

	var minis []catalog.MiniQuestion
	for _, mq := range repo.db.mini.table {
		if mq.RetractableAt(now) {
			minis = append(minis, *mq)
		}
	}
	sortMinisBySchedule(minis)
	return minis, nil
}

func (repo *releaseRepository) RetractMiniQuestion(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.mini.Lock()
	defer repo.db.mini.Unlock()

	if mq, ok := repo.db.mini.table[id]; ok && mq.Released {
		mq.Released = false
		mq.ActualReleaseTime = nil
		mq.UpdatedAt = core.Now()
	}
	return nil
}

func sortModulesBySchedule(modules []catalog.Module) {
	sort.Slice(modules, func(i, j int) bool {
		si, sj := modules[i].ScheduledReleaseTime, modules[j].ScheduledReleaseTime
		if si.Equal(*sj) {
			return modules[i].ID < modules[j].ID
		}
		return si.Before(*sj)
	})
}

func sortTopicsBySchedule(topics []catalog.Topic) {
	sort.Slice(topics, func(i, j int) bool {
		si, sj := topics[i].ScheduledReleaseTime, topics[j].ScheduledReleaseTime
		if si.Equal(*sj) {
			return topics[i].ID < topics[j].ID
		}
		return si.Before(*sj)
	})
}

func sortMinisBySchedule(minis []catalog.MiniQuestion) {
	sort.Slice(minis, func(i, j int) bool {
		si, sj := minis[i].ScheduledReleaseTime, minis[j].ScheduledReleaseTime
		if si.Equal(*sj) {
			return minis[i].ID < minis[j].ID
		}
		return si.Before(*sj)
	})
}
