package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/catalog"
)

type catalogRepository struct {
	modules  *moduleTable
	topics   *topicTable
	sections *sectionTable
	minis    *miniQuestionTable
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *DB) *catalogRepository {
	return &catalogRepository{
		modules:  db.module,
		topics:   db.topic,
		sections: db.section,
		minis:    db.mini,
	}
}

func (repo *catalogRepository) CreateModule(ctx context.Context, m catalog.Module, exec ...core.DBExecutor) (catalog.Module, error) {
	repo.modules.Lock()
	defer repo.modules.Unlock()

	for _, existing := range repo.modules.table {
		if existing.CohortID == m.CohortID && existing.Number == m.Number {
			return catalog.Module{}, catalog.ErrModuleExists
		}
	}

	m.ID = uuid.New().String()
	repo.modules.table[m.ID] = &m
	return m, nil
}

func (repo *catalogRepository) GetModule(ctx context.Context, id string, exec ...core.DBExecutor) (catalog.Module, error) {
	repo.modules.RLock()
	defer repo.modules.RUnlock()

	if m, ok := repo.modules.table[id]; ok {
		return *m, nil
	}
	return catalog.Module{}, catalog.ErrNotFound
}

func (repo *catalogRepository) QueryModules(ctx context.Context, cohortID string, exec ...core.DBExecutor) ([]catalog.Module, error) {
	repo.modules.RLock()
	defer repo.modules.RUnlock()

	modules := make([]catalog.Module, 0, len(repo.modules.table))
	for _, m := range repo.modules.table {
		if m.CohortID == cohortID {
			modules = append(modules, *m)
		}
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].Number < modules[j].Number })
	return modules, nil
}

func (repo *catalogRepository) UpdateModule(ctx context.Context, m catalog.Module, exec ...core.DBExecutor) (catalog.Module, error) {
	repo.modules.Lock()
	defer repo.modules.Unlock()

	if _, ok := repo.modules.table[m.ID]; !ok {
		return catalog.Module{}, catalog.ErrNotFound
	}
	repo.modules.table[m.ID] = &m
	return m, nil
}

func (repo *catalogRepository) CreateTopic(ctx context.Context, t catalog.Topic, exec ...core.DBExecutor) (catalog.Topic, error) {
	repo.topics.Lock()
	defer repo.topics.Unlock()

	for _, existing := range repo.topics.table {
		if existing.CohortID == t.CohortID && existing.Number == t.Number {
			return catalog.Topic{}, catalog.ErrTopicExists
		}
	}

	t.ID = uuid.New().String()
	repo.topics.table[t.ID] = &t
	return t, nil
}

func (repo *catalogRepository) GetTopic(ctx context.Context, id string, exec ...core.DBExecutor) (catalog.Topic, error) {
	repo.topics.RLock()
	defer repo.topics.RUnlock()

	if t, ok := repo.topics.table[id]; ok {
		return *t, nil
	}
	return catalog.Topic{}, catalog.ErrNotFound
}

func (repo *catalogRepository) QueryTopics(ctx context.Context, cohortID string, exec ...core.DBExecutor) ([]catalog.Topic, error) {
	repo.topics.RLock()
	defer repo.topics.RUnlock()

	topics := make([]catalog.Topic, 0, len(repo.topics.table))
	for _, t := range repo.topics.table {
		if t.CohortID == cohortID {
			topics = append(topics, *t)
		}
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].Number < topics[j].Number })
	return topics, nil
}

func (repo *catalogRepository) UpdateTopic(ctx context.Context, t catalog.Topic, exec ...core.DBExecutor) (catalog.Topic, error) {
	repo.topics.Lock()
	defer repo.topics.Unlock()

	if _, ok := repo.topics.table[t.ID]; !ok {
		return catalog.Topic{}, catalog.ErrNotFound
	}
	repo.topics.table[t.ID] = &t
	return t, nil
}

func (repo *catalogRepository) CreateSection(ctx context.Context, s catalog.Section, exec ...core.DBExecutor) (catalog.Section, error) {
	repo.sections.Lock()
	defer repo.sections.Unlock()

	s.ID = uuid.New().String()
	repo.sections.table[s.ID] = &s
	return s, nil
}

func (repo *catalogRepository) GetSection(ctx context.Context, id string, exec ...core.DBExecutor) (catalog.Section, error) {
	repo.sections.RLock()
	defer repo.sections.RUnlock()

	if s, ok := repo.sections.table[id]; ok {
		return *s, nil
	}
	return catalog.Section{}, catalog.ErrNotFound
}

func (repo *catalogRepository) QuerySections(ctx context.Context, topicIDs []string, exec ...core.DBExecutor) ([]catalog.Section, error) {
	if len(topicIDs) == 0 {
		return []catalog.Section{}, nil
	}
	repo.sections.RLock()
	defer repo.sections.RUnlock()

	wanted := make(map[string]bool, len(topicIDs))
	for _, id := range topicIDs {
		wanted[id] = true
	}

	sections := make([]catalog.Section, 0, len(repo.sections.table))
	for _, s := range repo.sections.table {
		if wanted[s.TopicID] {
			sections = append(sections, *s)
		}
	}
	sort.Slice(sections, func(i, j int) bool {
		if sections[i].Index == sections[j].Index {
			return sections[i].ID < sections[j].ID
		}
		return sections[i].Index < sections[j].Index
	})
	return sections, nil
}

func (repo *catalogRepository) CreateMiniQuestion(ctx context.Context, mq catalog.MiniQuestion, exec ...core.DBExecutor) (catalog.MiniQuestion, error) {
	repo.minis.Lock()
	defer repo.minis.Unlock()

	mq.ID = uuid.New().String()
	repo.minis.table[mq.ID] = &mq
	return mq, nil
}

func (repo *catalogRepository) GetMiniQuestion(ctx context.Context, id string, exec ...core.DBExecutor) (catalog.MiniQuestion, error) {
	repo.minis.RLock()
	defer repo.minis.RUnlock()

	if mq, ok := repo.minis.table[id]; ok {
		return *mq, nil
	}
	return catalog.MiniQuestion{}, catalog.ErrNotFound
}

func (repo *catalogRepository) QueryMiniQuestions(ctx context.Context, sectionIDs []string, exec ...core.DBExecutor) ([]catalog.MiniQuestion, error) {
	if len(sectionIDs) == 0 {
		return []catalog.MiniQuestion{}, nil
	}
	repo.minis.RLock()
	defer repo.minis.RUnlock()

	wanted := make(map[string]bool, len(sectionIDs))
	for _, id := range sectionIDs {
		wanted[id] = true
	}

	minis := make([]catalog.MiniQuestion, 0, len(repo.minis.table))
	for _, mq := range repo.minis.table {
		if wanted[mq.SectionID] {
			minis = append(minis, *mq)
		}
	}
	sort.Slice(minis, func(i, j int) bool {
		if minis[i].Index == minis[j].Index {
			return minis[i].ID < minis[j].ID
		}
		return minis[i].Index < minis[j].Index
	})
	return minis, nil
}

func (repo *catalogRepository) UpdateMiniQuestion(ctx context.Context, mq catalog.MiniQuestion, exec ...core.DBExecutor) (catalog.MiniQuestion, error) {
	repo.minis.Lock()
	defer repo.minis.Unlock()

	if _, ok := repo.minis.table[mq.ID]; !ok {
		return catalog.MiniQuestion{}, catalog.ErrNotFound
	}
	repo.minis.table[mq.ID] = &mq
	return mq, nil
}
