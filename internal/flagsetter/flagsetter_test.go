package flagsetter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollout/rox-go/internal/model"
	"github.com/rollout/rox-go/internal/repository"
	"github.com/rollout/rox-go/internal/roxx"
)

type noopSink struct{}

func (noopSink) Invoke(model.ReportingValue, *model.ExperimentModel, model.Context) {}

func TestSetExperimentsBindsAndUnbinds(t *testing.T) {
	flags := repository.NewFlagRepository()
	experiments := repository.NewExperimentRepository()
	parser := roxx.NewParser()

	flag := model.NewFlag("flag", model.BoolKind, "false", []string{"true", "false"})
	other := model.NewFlag("other", model.BoolKind, "false", []string{"true", "false"})
	require.NoError(t, flags.AddFlag(flag))
	require.NoError(t, flags.AddFlag(other))

	fs := New(flags, experiments, parser, noopSink{})

	experiments.SetExperiments([]*model.ExperimentModel{
		{ID: "1", Name: "exp1", Condition: "and(true, or(true,true))", FlagNames: []string{"flag"}},
	})
	fs.SetExperiments()

	assert.Equal(t, "and(true, or(true,true))", flag.Condition())
	assert.NotNil(t, flag.Experiment())
	assert.Equal(t, "", other.Condition())
	assert.Nil(t, other.Experiment())
}

func TestSetExperimentsIsIdempotent(t *testing.T) {
	flags := repository.NewFlagRepository()
	experiments := repository.NewExperimentRepository()
	parser := roxx.NewParser()

	flag := model.NewFlag("flag", model.BoolKind, "false", []string{"true", "false"})
	require.NoError(t, flags.AddFlag(flag))

	fs := New(flags, experiments, parser, noopSink{})
	experiments.SetExperiments([]*model.ExperimentModel{
		{ID: "1", Name: "exp1", Condition: "true", FlagNames: []string{"flag"}},
	})

	fs.SetExperiments()
	firstCondition := flag.Condition()
	firstExperiment := flag.Experiment()

	fs.SetExperiments()
	assert.Equal(t, firstCondition, flag.Condition())
	assert.Equal(t, firstExperiment, flag.Experiment())
}

func TestPostHocFlagBinding(t *testing.T) {
	flags := repository.NewFlagRepository()
	experiments := repository.NewExperimentRepository()
	parser := roxx.NewParser()

	_ = New(flags, experiments, parser, noopSink{})
	experiments.SetExperiments([]*model.ExperimentModel{
		{ID: "1", Name: "exp1", Condition: "true", FlagNames: []string{"late"}},
	})

	late := model.NewFlag("late", model.BoolKind, "false", []string{"true", "false"})
	require.NoError(t, flags.AddFlag(late))

	assert.Equal(t, "true", late.Condition())
	assert.NotNil(t, late.Experiment())
}
