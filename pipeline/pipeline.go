// Package pipeline sequences type registry generation stages.
//
// Stages run strictly one after another in dependency order. The first
// failure is terminal: every stage that has not started is marked Skipped and
// the run returns that failure. Nothing is retried.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/protoreg/descriptor"
	"github.com/teranos/protoreg/errors"
	"github.com/teranos/protoreg/generator"
	"github.com/teranos/protoreg/logger"
)

// Stage generates one registry from one descriptor variant.
type Stage struct {
	Name    string
	Variant descriptor.Variant
	Target  generator.Target
	// After names stages that must complete successfully first
	After []string
}

// DefaultStages returns the two-stage graph: main, then test after main.
func DefaultStages(mainTarget, testTarget generator.Target) []Stage {
	return []Stage{
		{Name: string(descriptor.Main), Variant: descriptor.Main, Target: mainTarget},
		{Name: string(descriptor.Test), Variant: descriptor.Test, Target: testTarget, After: []string{string(descriptor.Main)}},
	}
}

// Locator resolves a variant to its descriptor set.
type Locator interface {
	Locate(v descriptor.Variant) (descriptor.Set, error)
}

// Invoker builds and runs generator commands.
type Invoker interface {
	Command(set descriptor.Set, target generator.Target) generator.Command
	Invoke(ctx context.Context, set descriptor.Set, target generator.Target) error
}

// Options configure a Pipeline.
type Options struct {
	// Stamps enables up-to-date checks; nil always regenerates
	Stamps *StampStore
	// ToolVersion is recorded in stamps and checked for compatibility
	ToolVersion string
}

// Pipeline runs stages in a fixed topological order.
type Pipeline struct {
	order   []Stage
	locator Locator
	invoker Invoker
	opts    Options
	log     *zap.SugaredLogger
}

// New validates the stage graph and fixes its execution order. Stages keep
// their declared order wherever dependencies allow.
func New(stages []Stage, locator Locator, invoker Invoker, opts Options) (*Pipeline, error) {
	order, err := sortStages(stages)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		order:   order,
		locator: locator,
		invoker: invoker,
		opts:    opts,
		log:     logger.ComponentLogger("pipeline"),
	}, nil
}

func sortStages(stages []Stage) ([]Stage, error) {
	if len(stages) == 0 {
		return nil, errors.NewInvalidRequestError("pipeline has no stages")
	}

	index := make(map[string]int, len(stages))
	for i, st := range stages {
		if st.Name == "" {
			return nil, errors.NewInvalidRequestError("stage %d has no name", i)
		}
		if _, dup := index[st.Name]; dup {
			return nil, errors.NewInvalidRequestError("duplicate stage %q", st.Name)
		}
		if err := st.Target.Validate(); err != nil {
			return nil, errors.Wrapf(err, "stage %q", st.Name)
		}
		index[st.Name] = i
	}

	indegree := make([]int, len(stages))
	dependents := make([][]int, len(stages))
	for i, st := range stages {
		for _, dep := range st.After {
			j, ok := index[dep]
			if !ok {
				return nil, errors.NewInvalidRequestError("stage %q runs after unknown stage %q", st.Name, dep)
			}
			if j == i {
				return nil, errors.NewInvalidRequestError("stage %q depends on itself", st.Name)
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	// Kahn's algorithm, always taking the lowest declared index that is ready
	done := make([]bool, len(stages))
	order := make([]Stage, 0, len(stages))
	for len(order) < len(stages) {
		next := -1
		for i := range stages {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, errors.NewInvalidRequestError("stage dependencies form a cycle")
		}
		done[next] = true
		order = append(order, stages[next])
		for _, d := range dependents[next] {
			indegree[d]--
		}
	}
	return order, nil
}

// Stages returns the stages in execution order.
func (p *Pipeline) Stages() []Stage {
	return append([]Stage(nil), p.order...)
}

// Select returns a pipeline restricted to the named stages and everything
// they transitively run after.
func (p *Pipeline) Select(names ...string) (*Pipeline, error) {
	byName := make(map[string]Stage, len(p.order))
	for _, st := range p.order {
		byName[st.Name] = st
	}

	keep := make(map[string]bool)
	var visit func(name string) error
	visit = func(name string) error {
		st, ok := byName[name]
		if !ok {
			return errors.NewNotFoundError("unknown stage %q", name)
		}
		if keep[name] {
			return nil
		}
		keep[name] = true
		for _, dep := range st.After {
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	selected := make([]Stage, 0, len(keep))
	for _, st := range p.order {
		if keep[st.Name] {
			selected = append(selected, st)
		}
	}
	return &Pipeline{order: selected, locator: p.locator, invoker: p.invoker, opts: p.opts, log: p.log}, nil
}

// StageReport is the outcome of one stage.
type StageReport struct {
	Name       string        `json:"name" yaml:"name"`
	Variant    string        `json:"variant" yaml:"variant"`
	State      State         `json:"state" yaml:"state"`
	Descriptor string        `json:"descriptor,omitempty" yaml:"descriptor,omitempty"`
	Output     string        `json:"output" yaml:"output"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	Err        error         `json:"-" yaml:"-"`
}

// Report is the outcome of one pipeline run.
type Report struct {
	RunID  string        `json:"run_id" yaml:"run_id"`
	Stages []StageReport `json:"stages" yaml:"stages"`
}

// Failed returns the failed stage, or nil.
func (r *Report) Failed() *StageReport {
	for i := range r.Stages {
		if r.Stages[i].State == Failed {
			return &r.Stages[i]
		}
	}
	return nil
}

// Stage returns the report for name, or nil.
func (r *Report) Stage(name string) *StageReport {
	for i := range r.Stages {
		if r.Stages[i].Name == name {
			return &r.Stages[i]
		}
	}
	return nil
}

// Run executes every stage in order. It returns the report in all cases and
// the first stage error, wrapped with the stage name.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), Stages: make([]StageReport, len(p.order))}
	ctx = logger.WithRunID(ctx, report.RunID)

	var runErr error
	for i, st := range p.order {
		rep := &report.Stages[i]
		rep.Name = st.Name
		rep.Variant = string(st.Variant)
		rep.Output = st.Target.Destination()

		if runErr != nil {
			if err := transition(st.Name, &rep.State, Skipped); err != nil {
				return report, err
			}
			p.log.Warnw("Stage skipped after earlier failure", logger.FieldStage, st.Name)
			continue
		}

		start := time.Now()
		err := p.runStage(logger.WithStage(ctx, st.Name), st, rep)
		rep.Duration = time.Since(start)
		p.log.Debugw("Stage finished",
			logger.FieldRunID, report.RunID,
			logger.FieldStage, st.Name,
			logger.FieldVariant, rep.Variant,
			logger.FieldState, rep.State.String(),
			logger.FieldDurationMS, rep.Duration.Milliseconds())
		if err != nil {
			if errors.IsAssertionFailure(err) {
				return report, err
			}
			rep.Err = err
			runErr = errors.Wrapf(err, "stage %q", st.Name)
		}
	}
	return report, runErr
}

func (p *Pipeline) runStage(ctx context.Context, st Stage, rep *StageReport) error {
	log := logger.LoggerFromContext(ctx)

	if err := transition(st.Name, &rep.State, LocatingDescriptor); err != nil {
		return err
	}
	set, err := p.locator.Locate(st.Variant)
	if err != nil {
		return p.fail(st, rep, err)
	}
	rep.Descriptor = set.Path

	cmd := p.invoker.Command(set, st.Target)
	descriptorSHA := p.upToDate(ctx, st, set, cmd)
	if descriptorSHA == "" {
		// up to date
		return transition(st.Name, &rep.State, UpToDate)
	}

	if err := transition(st.Name, &rep.State, Invoking); err != nil {
		return err
	}
	log.Infow("Generating type registry",
		logger.FieldVariant, string(st.Variant),
		logger.FieldDescriptor, set.Path,
		logger.FieldOutput, st.Target.Destination())

	if err := p.invoker.Invoke(ctx, set, st.Target); err != nil {
		return p.fail(st, rep, err)
	}
	if err := transition(st.Name, &rep.State, Completed); err != nil {
		return err
	}

	p.saveStamp(ctx, st, descriptorSHA, cmd)
	return nil
}

func (p *Pipeline) fail(st Stage, rep *StageReport, cause error) error {
	if err := transition(st.Name, &rep.State, Failed); err != nil {
		return err
	}
	if p.opts.Stamps != nil {
		if err := p.opts.Stamps.Delete(st.Name); err != nil {
			p.log.Warnw("Failed to clear stamp", logger.FieldStage, st.Name, logger.FieldError, err)
		}
	}
	return cause
}

// upToDate returns "" when the stage can be skipped. Otherwise it returns the
// descriptor digest to record after generation, or "-" when stamps are off or
// the digest could not be computed.
func (p *Pipeline) upToDate(ctx context.Context, st Stage, set descriptor.Set, cmd generator.Command) string {
	if p.opts.Stamps == nil {
		return "-"
	}
	log := logger.LoggerFromContext(ctx)

	descriptorSHA, err := descriptor.Digest(set.Path)
	if err != nil {
		log.Debugw("Cannot hash descriptor, regenerating", logger.FieldError, err)
		return "-"
	}

	stamp, err := p.opts.Stamps.Load(st.Name)
	if err != nil || stamp == nil {
		return descriptorSHA
	}
	if !stamp.Matches(p.opts.ToolVersion, descriptorSHA, cmd.Argv()) {
		log.Debugw("Stage inputs changed")
		return descriptorSHA
	}
	outputSHA, err := descriptor.Digest(st.Target.Destination())
	if err != nil || outputSHA != stamp.OutputSHA256 {
		log.Debugw("Generated registry missing or modified")
		return descriptorSHA
	}

	log.Infow("Type registry up to date", logger.FieldOutput, st.Target.Destination())
	return ""
}

func (p *Pipeline) saveStamp(ctx context.Context, st Stage, descriptorSHA string, cmd generator.Command) {
	if p.opts.Stamps == nil || descriptorSHA == "-" {
		return
	}
	log := logger.LoggerFromContext(ctx)

	outputSHA, err := descriptor.Digest(st.Target.Destination())
	if err != nil {
		log.Warnw("Generator reported success but output is unreadable", logger.FieldError, err)
		return
	}
	stamp := &Stamp{
		ToolVersion:      p.opts.ToolVersion,
		DescriptorSHA256: descriptorSHA,
		Command:          cmd.Argv(),
		OutputSHA256:     outputSHA,
		GeneratedAt:      time.Now().UTC().Truncate(time.Second),
	}
	if err := p.opts.Stamps.Save(st.Name, stamp); err != nil {
		log.Warnw("Failed to record stamp", logger.FieldError, err)
	}
}
