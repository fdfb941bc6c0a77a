package catalog

import (
	"github.com/mwalimu/darasa/core/cohort"
)

// Effective visibility is recomputed on every read, never cached: an entity is
// visible only while its own flags AND its whole ancestor chain hold. Raw
// Released flags record intent; these predicates are the authority, so
// retracting a parent hides the subtree without touching descendant rows.

// ModuleVisible reports whether a module is effectively visible.
func ModuleVisible(c cohort.Cohort, m Module) bool {
	return c.IsActive && m.IsActive && m.Released
}

// TopicVisible reports whether a topic is effectively visible. mod is the
// topic's parent module; pass nil for a moduleless topic.
func TopicVisible(c cohort.Cohort, mod *Module, t Topic) bool {
	if !(c.IsActive && t.IsActive && t.Released) {
		return false
	}
	if t.ModuleID == "" {
		return true
	}
	// fail closed on a dangling module reference
	if mod == nil || mod.ID != t.ModuleID {
		return false
	}
	return ModuleVisible(c, *mod)
}

// MiniQuestionVisible reports whether a mini question is effectively visible.
func MiniQuestionVisible(c cohort.Cohort, mod *Module, t Topic, mq MiniQuestion) bool {
	return mq.IsActive && mq.Released && TopicVisible(c, mod, t)
}
