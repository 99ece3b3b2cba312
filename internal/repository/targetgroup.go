package repository

import (
	"sync/atomic"

	"github.com/rollout/rox-go/internal/model"
)

// TargetGroupRepository mirrors ExperimentRepository's atomic-swap
// pattern (§4.5).
type TargetGroupRepository struct {
	list atomic.Pointer[[]*model.TargetGroupModel]
}

func NewTargetGroupRepository() *TargetGroupRepository {
	r := &TargetGroupRepository{}
	empty := []*model.TargetGroupModel{}
	r.list.Store(&empty)
	return r
}

func (r *TargetGroupRepository) SetTargetGroups(groups []*model.TargetGroupModel) {
	copied := make([]*model.TargetGroupModel, len(groups))
	for i, g := range groups {
		copied[i] = g.Clone()
	}
	r.list.Store(&copied)
}

func (r *TargetGroupRepository) GetTargetGroup(id string) (*model.TargetGroupModel, bool) {
	for _, g := range *r.list.Load() {
		if g.ID == id {
			return g, true
		}
	}
	return nil, false
}

func (r *TargetGroupRepository) GetAllTargetGroups() []*model.TargetGroupModel {
	return *r.list.Load()
}
