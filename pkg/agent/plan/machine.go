package plan

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrInvalidTransition = errors.New("invalid plan state transition")
	ErrNoApprovedGroups  = errors.New("no approved groups to execute")
	ErrGroupOutOfRange   = errors.New("group index out of range")
)

type StateTag string

const (
	TagIdle      StateTag = "idle"
	TagReviewing StateTag = "reviewing"
	TagExecuting StateTag = "executing"
	TagComplete  StateTag = "complete"
)

// State is a closed set: Idle, Reviewing, Executing, Complete.
type State interface {
	Tag() StateTag
	sealed()
}

type Idle struct{}

type Reviewing struct {
	Plan    *Plan
	Cursor  int
	Context *ExecutionContext
}

type Executing struct {
	Plan            *Plan
	Context         *ExecutionContext
	CancelRequested bool
}

type Complete struct {
	Plan   *Plan
	Report *Report
}

func (Idle) Tag() StateTag       { return TagIdle }
func (*Reviewing) Tag() StateTag { return TagReviewing }
func (*Executing) Tag() StateTag { return TagExecuting }
func (*Complete) Tag() StateTag  { return TagComplete }

func (Idle) sealed()       {}
func (*Reviewing) sealed() {}
func (*Executing) sealed() {}
func (*Complete) sealed()  {}

// Machine owns the plan of one session. All methods are safe for concurrent use.
type Machine struct {
	mu    sync.Mutex
	state State
}

func NewMachine() *Machine {
	return &Machine{state: Idle{}}
}

func (m *Machine) Tag() StateTag {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Tag()
}

// Snapshot returns the current tag and a copy of the plan, if any.
func (m *Machine) Snapshot() (StateTag, *Plan, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch s := m.state.(type) {
	case *Reviewing:
		return s.Tag(), s.Plan.Clone(), s.Cursor
	case *Executing:
		return s.Tag(), s.Plan.Clone(), -1
	case *Complete:
		return s.Tag(), s.Plan.Clone(), -1
	default:
		return TagIdle, nil, -1
	}
}

// LastReport returns the report of the most recent completed execution.
func (m *Machine) LastReport() *Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.state.(*Complete); ok {
		return c.Report
	}
	return nil
}

// StartPlan validates p and enters Reviewing with every group pending.
// A plan under review is replaced; an executing plan is not.
func (m *Machine) StartPlan(p *Plan) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.(*Executing); ok {
		return fmt.Errorf("%w: cannot start a plan while one is executing", ErrInvalidTransition)
	}
	owned := p.Clone()
	owned.Normalize()
	m.state = &Reviewing{Plan: owned, Cursor: 0, Context: NewExecutionContext()}
	return nil
}

func (m *Machine) Approve(index int) error {
	return m.decide(index, StatusApproved)
}

func (m *Machine) Skip(index int) error {
	return m.decide(index, StatusSkipped)
}

func (m *Machine) decide(index int, status GroupStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.state.(*Reviewing)
	if !ok {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, status, m.state.Tag())
	}
	if index < 0 || index >= len(r.Plan.Groups) {
		return fmt.Errorf("%w: %d", ErrGroupOutOfRange, index)
	}
	r.Plan.Groups[index].Status = status
	r.Cursor = nextPending(r.Plan, index)
	return nil
}

// ReviseGroup patches group index in place and resets its status to pending.
// Every other group is left untouched.
func (m *Machine) ReviseGroup(index int, g Group) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.state.(*Reviewing)
	if !ok {
		return fmt.Errorf("%w: revise from %s", ErrInvalidTransition, m.state.Tag())
	}
	if index < 0 || index >= len(r.Plan.Groups) {
		return fmt.Errorf("%w: %d", ErrGroupOutOfRange, index)
	}
	revised := g.clone()
	if revised.Id == "" {
		revised.Id = r.Plan.Groups[index].Id
	}
	revised.Status = StatusPending
	r.Plan.Groups[index] = revised
	r.Cursor = index
	return nil
}

// Cancel discards a plan under review. During execution the request is
// recorded and honoured when the executor returns.
func (m *Machine) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch s := m.state.(type) {
	case *Reviewing:
		m.state = Idle{}
		return nil
	case *Executing:
		s.CancelRequested = true
		return nil
	default:
		return fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, m.state.Tag())
	}
}

// BeginExecution moves Reviewing to Executing and hands out the plan and a
// fresh context for the executor.
func (m *Machine) BeginExecution() (*Plan, *ExecutionContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.state.(*Reviewing)
	if !ok {
		return nil, nil, fmt.Errorf("%w: execute from %s", ErrInvalidTransition, m.state.Tag())
	}
	approved := false
	for _, g := range r.Plan.Groups {
		if g.Status == StatusApproved {
			approved = true
			break
		}
	}
	if !approved {
		return nil, nil, ErrNoApprovedGroups
	}
	m.state = &Executing{Plan: r.Plan, Context: r.Context}
	return r.Plan.Clone(), r.Context, nil
}

// Finish records the executor's report. The machine lands in Complete, or in
// Idle when a cancel arrived during execution.
func (m *Machine) Finish(report *Report) (StateTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.state.(*Executing)
	if !ok {
		return m.state.Tag(), fmt.Errorf("%w: finish from %s", ErrInvalidTransition, m.state.Tag())
	}
	if e.CancelRequested {
		m.state = Idle{}
		return TagIdle, nil
	}
	m.state = &Complete{Plan: e.Plan, Report: report}
	return TagComplete, nil
}

func nextPending(p *Plan, from int) int {
	for i := from + 1; i < len(p.Groups); i++ {
		if p.Groups[i].Status == StatusPending {
			return i
		}
	}
	for i := 0; i <= from && i < len(p.Groups); i++ {
		if p.Groups[i].Status == StatusPending {
			return i
		}
	}
	return -1
}
