package reporting

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rollout/rox-go/internal/model"
)

func TestInvokerDelegateRunsBeforeHandlers(t *testing.T) {
	inv := NewInvoker()
	var order []string

	inv.SetDelegate(func(model.ReportingValue, *Experiment, model.Context) {
		order = append(order, "delegate")
	})
	inv.Register(func(model.ReportingValue, *Experiment, model.Context) {
		order = append(order, "handler1")
	})
	inv.Register(func(model.ReportingValue, *Experiment, model.Context) {
		order = append(order, "handler2")
	})

	inv.Invoke(model.ReportingValue{Name: "true"}, nil, model.Context{})

	assert.Equal(t, []string{"delegate", "handler1", "handler2"}, order)
}

func TestInvokerSnapshotsExperiment(t *testing.T) {
	inv := NewInvoker()
	var got *Experiment
	inv.Register(func(_ model.ReportingValue, experiment *Experiment, _ model.Context) {
		got = experiment
	})

	exp := &model.ExperimentModel{ID: "1", Name: "exp", Archived: true}
	inv.Invoke(model.ReportingValue{Name: "true"}, exp, model.Context{})

	assert.Equal(t, "exp", got.Name)
	assert.Equal(t, "1", got.Identifier)
	assert.True(t, got.Archived)
}

func TestInvokerNilExperimentSnapshotsNil(t *testing.T) {
	inv := NewInvoker()
	var called bool
	var got *Experiment
	inv.Register(func(_ model.ReportingValue, experiment *Experiment, _ model.Context) {
		called = true
		got = experiment
	})

	inv.Invoke(model.ReportingValue{Name: "true"}, nil, model.Context{})

	assert.True(t, called)
	assert.Nil(t, got)
}
