// Package flagsetter implements the binding algorithm of §4.6: rebinding
// every flag to its governing experiment whenever the experiment list
// changes, and binding newly-registered flags post-hoc.
package flagsetter

import (
	"github.com/rollout/rox-go/internal/model"
	"github.com/rollout/rox-go/internal/repository"
	"github.com/rollout/rox-go/internal/roxx"
)

// FlagSetter rebinds flags to experiments. Constructed once by the
// orchestrator and wired to the flag repository's add-callback so flags
// registered after the first configuration apply still get bound (§4.6
// "observes the flag repository").
type FlagSetter struct {
	flags       *repository.FlagRepository
	experiments *repository.ExperimentRepository
	parser      *roxx.Parser
	sink        model.ImpressionInvoker
}

func New(
	flags *repository.FlagRepository,
	experiments *repository.ExperimentRepository,
	parser *roxx.Parser,
	sink model.ImpressionInvoker,
) *FlagSetter {
	fs := &FlagSetter{flags: flags, experiments: experiments, parser: parser, sink: sink}
	flags.AddFlagAddedCallback(fs.onFlagAdded)
	return fs
}

// SetExperiments re-binds every flag named by an experiment's FlagNames,
// then clears the binding of every flag that was not targeted by any
// experiment. Deterministic given the current experiment list, so running
// it twice in a row with unchanged input yields the same bindings
// (§8 invariant 5). Unbind still wires the impression sink: a flag with no
// governing experiment must keep emitting impressions on every read
// (§4.4 step 3, GLOSSARY "Impression"), just with a nil experiment.
func (fs *FlagSetter) SetExperiments() {
	bound := make(map[string]bool)
	for _, experiment := range fs.experiments.GetAllExperiments() {
		for _, flagName := range experiment.FlagNames {
			flag, ok := fs.flags.GetFlag(flagName)
			if !ok {
				continue
			}
			flag.Bind(fs.parser, experiment.Condition, experiment, fs.sink)
			bound[flagName] = true
		}
	}
	for _, flag := range fs.flags.GetAllFlags() {
		if !bound[flag.Name] {
			flag.Unbind(fs.sink)
		}
	}
}

func (fs *FlagSetter) onFlagAdded(flag *model.Flag) {
	experiment := fs.experiments.GetExperimentByFlag(flag.Name)
	if experiment == nil {
		flag.Unbind(fs.sink)
		return
	}
	flag.Bind(fs.parser, experiment.Condition, experiment, fs.sink)
}
