// Package dummydb provides in-memory repositories for tests and local
// experiments. Semantics mirror the sqlx repositories: uuid keys assigned at
// insert, full-row updates, sentinel errors on missing rows.
package dummydb

import (
	"sync"

	"github.com/mwalimu/darasa/core/catalog"
	"github.com/mwalimu/darasa/core/cohort"
	"github.com/mwalimu/darasa/core/progress"
	"github.com/mwalimu/darasa/core/user"
)

type (
	DB struct {
		user       *userTable
		cohort     *cohortTable
		membership *membershipTable
		module     *moduleTable
		topic      *topicTable
		section    *sectionTable
		mini       *miniQuestionTable
		answer     *answerTable
		miniAnswer *miniAnswerTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	cohortTable struct {
		sync.RWMutex
		table map[string]*cohort.Cohort
	}

	membershipTable struct {
		sync.RWMutex
		table map[string]*cohort.Membership
	}

	moduleTable struct {
		sync.RWMutex
		table map[string]*catalog.Module
	}

	topicTable struct {
		sync.RWMutex
		table map[string]*catalog.Topic
	}

	sectionTable struct {
		sync.RWMutex
		table map[string]*catalog.Section
	}

	miniQuestionTable struct {
		sync.RWMutex
		table map[string]*catalog.MiniQuestion
	}

	answerTable struct {
		sync.RWMutex
		table map[string]*progress.Answer
	}

	miniAnswerTable struct {
		sync.RWMutex
		table map[string]*progress.MiniAnswer
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		cohort:     &cohortTable{table: make(map[string]*cohort.Cohort)},
		membership: &membershipTable{table: make(map[string]*cohort.Membership)},
		module:     &moduleTable{table: make(map[string]*catalog.Module)},
		topic:      &topicTable{table: make(map[string]*catalog.Topic)},
		section:    &sectionTable{table: make(map[string]*catalog.Section)},
		mini:       &miniQuestionTable{table: make(map[string]*catalog.MiniQuestion)},
		answer:     &answerTable{table: make(map[string]*progress.Answer)},
		miniAnswer: &miniAnswerTable{table: make(map[string]*progress.MiniAnswer)},
	}
	return db, nil
}

// Reset empties every table.
func (db *DB) Reset() {
	db.user.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.Unlock()

	db.cohort.Lock()
	db.cohort.table = make(map[string]*cohort.Cohort)
	db.cohort.Unlock()

	db.membership.Lock()
	db.membership.table = make(map[string]*cohort.Membership)
	db.membership.Unlock()

	db.module.Lock()
	db.module.table = make(map[string]*catalog.Module)
	db.module.Unlock()

	db.topic.Lock()
	db.topic.table = make(map[string]*catalog.Topic)
	db.topic.Unlock()

	db.section.Lock()
	db.section.table = make(map[string]*catalog.Section)
	db.section.Unlock()

	db.mini.Lock()
	db.mini.table = make(map[string]*catalog.MiniQuestion)
	db.mini.Unlock()

	db.answer.Lock()
	db.answer.table = make(map[string]*progress.Answer)
	db.answer.Unlock()

	db.miniAnswer.Lock()
	db.miniAnswer.table = make(map[string]*progress.MiniAnswer)
	db.miniAnswer.Unlock()
}
