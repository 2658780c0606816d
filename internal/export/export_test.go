package export

import (
	"context"

	"github.com/feedops/courier/internal/domain"
)

// Shared test doubles for the export package.

type fakeEntity struct {
	typ string
	id  int64
}

func (f fakeEntity) EntityType() string { return f.typ }
func (f fakeEntity) EntityID() int64    { return f.id }

type fakeFilter struct {
	typeOK    bool
	typeErr   error
	updatesOK bool
	updatesErr error
	stateOK   bool
	stateErr  error

	typeCalls    int
	updatesCalls int
	stateCalls   int
}

func (f *fakeFilter) FilterByInstanceType(domain.Entity) (bool, error) {
	f.typeCalls++
	return f.typeOK, f.typeErr
}

func (f *fakeFilter) FilterByUpdates(domain.Entity, []string) (bool, error) {
	f.updatesCalls++
	return f.updatesOK, f.updatesErr
}

func (f *fakeFilter) FilterByState(domain.Entity) (bool, error) {
	f.stateCalls++
	return f.stateOK, f.stateErr
}

func passingFilter() *fakeFilter {
	return &fakeFilter{typeOK: true, updatesOK: true, stateOK: true}
}

type fakeMaker struct {
	data   []byte
	err    error
	name   string
	dir    string
	dirErr error
	checks []Validator
}

func (m *fakeMaker) Output(context.Context) ([]byte, error) { return m.data, m.err }
func (m *fakeMaker) Filename() string                       { return m.name }
func (m *fakeMaker) RelativeDir() (string, error)           { return m.dir, m.dirErr }
func (m *fakeMaker) Validators() []Validator                { return m.checks }

type fakeSupervisor struct {
	makers    []OutputMaker
	makersErr error
	related   []domain.Entity
}

func (s *fakeSupervisor) OutputMakers() ([]OutputMaker, error) { return s.makers, s.makersErr }
func (s *fakeSupervisor) RelatedItems() []domain.Entity        { return s.related }

// staticSupervisor returns the same supervisor for every entity.
func staticSupervisor(sup Supervisor) func(*Rule, domain.Entity) (Supervisor, error) {
	return func(*Rule, domain.Entity) (Supervisor, error) { return sup, nil }
}
