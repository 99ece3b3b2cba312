package repository

import (
	"sync/atomic"

	"github.com/rollout/rox-go/internal/model"
)

// ExperimentRepository stores the current experiment list behind an
// atomically-swapped pointer, so flag evaluations reading concurrently
// with a configuration apply never observe a partially-written list
// (§5 "replace the list pointer atomically").
type ExperimentRepository struct {
	list atomic.Pointer[[]*model.ExperimentModel]
}

func NewExperimentRepository() *ExperimentRepository {
	r := &ExperimentRepository{}
	empty := []*model.ExperimentModel{}
	r.list.Store(&empty)
	return r
}

// SetExperiments atomically replaces the stored list with deep copies of
// experiments, per §3's "copied when installed in the repository".
func (r *ExperimentRepository) SetExperiments(experiments []*model.ExperimentModel) {
	copied := make([]*model.ExperimentModel, len(experiments))
	for i, e := range experiments {
		copied[i] = e.Clone()
	}
	r.list.Store(&copied)
}

func (r *ExperimentRepository) GetAllExperiments() []*model.ExperimentModel {
	return *r.list.Load()
}

// GetExperimentByFlag returns the first experiment whose FlagNames
// contains flagName (§4.5).
func (r *ExperimentRepository) GetExperimentByFlag(flagName string) *model.ExperimentModel {
	for _, e := range *r.list.Load() {
		for _, name := range e.FlagNames {
			if name == flagName {
				return e
			}
		}
	}
	return nil
}

func (r *ExperimentRepository) GetExperimentByName(name string) *model.ExperimentModel {
	for _, e := range *r.list.Load() {
		if e.Name == name {
			return e
		}
	}
	return nil
}
