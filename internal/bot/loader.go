package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// Module is a unit of commands. Contribute registers its handlers and is
// called at most once per loader.
type Module interface {
	Name() string
	Contribute(r Registrar) error
}

// LoadError reports a module that could not be contributed
type LoadError struct {
	Module string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("module %q failed to load: %v", e.Module, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Report lists the outcome of a Load call
type Report struct {
	Loaded []string
	Failed []*LoadError
}

// Err joins every load failure, or returns nil
func (r Report) Err() error {
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Loader contributes modules to a registrar, isolating failing modules
type Loader struct {
	registrar Registrar
	logger    *slog.Logger
	loaded    map[string]bool
}

// NewLoader creates a loader bound to registrar
func NewLoader(registrar Registrar, logger *slog.Logger) *Loader {
	return &Loader{
		registrar: registrar,
		logger:    logger,
		loaded:    make(map[string]bool),
	}
}

// Load contributes modules in lexicographic order of their names. A module
// whose Contribute fails or panics registers nothing and the rest still load.
func (l *Loader) Load(modules ...Module) Report {
	sorted := slices.Clone(modules)
	slices.SortStableFunc(sorted, func(a, b Module) int {
		return strings.Compare(a.Name(), b.Name())
	})

	var report Report
	for _, m := range sorted {
		name := m.Name()
		if l.loaded[name] {
			l.logger.Warn("module already loaded, skipping", "module", name)
			continue
		}

		if err := l.contribute(m); err != nil {
			loadErr := &LoadError{Module: name, Err: err}
			report.Failed = append(report.Failed, loadErr)
			l.logger.Error("failed to load module", "module", name, "error", err)
			continue
		}

		l.loaded[name] = true
		report.Loaded = append(report.Loaded, name)
	}

	l.logger.Info("modules loaded", "loaded", report.Loaded, "failed", len(report.Failed))
	return report
}

// contribute stages the module's registrations and commits them only when
// Contribute succeeds
func (l *Loader) contribute(m Module) (err error) {
	staged := &stagingRegistrar{}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if err := m.Contribute(staged); err != nil {
		return err
	}

	for _, reg := range staged.regs {
		l.registrar.Register(reg.name, reg.handler, reg.opts...)
	}
	l.logger.Debug("module contributed", "module", m.Name(), "commands", len(staged.regs))
	return nil
}

type registration struct {
	name    string
	handler Handler
	opts    []Option
}

type stagingRegistrar struct {
	regs []registration
}

func (s *stagingRegistrar) Register(name string, handler Handler, opts ...Option) {
	mustValidate(name, handler)
	s.regs = append(s.regs, registration{name: name, handler: handler, opts: opts})
}

// Select picks modules from catalog. An empty enabled list selects every
// module; names in disabled are always dropped. Enabled names missing from the
// catalog are returned as load errors.
func Select(catalog []Module, enabled []string, disabled []string) ([]Module, []*LoadError) {
	byName := make(map[string]Module, len(catalog))
	for _, m := range catalog {
		byName[m.Name()] = m
	}

	var missing []*LoadError
	selected := catalog
	if len(enabled) > 0 {
		selected = nil
		for _, name := range enabled {
			m, ok := byName[name]
			if !ok {
				missing = append(missing, &LoadError{Module: name, Err: errors.New("no such module")})
				continue
			}
			selected = append(selected, m)
		}
	}

	out := make([]Module, 0, len(selected))
	for _, m := range selected {
		if slices.Contains(disabled, m.Name()) {
			continue
		}
		out = append(out, m)
	}
	return out, missing
}
