package planning

import (
	"context"
	"sort"
	"time"

	"dailyplan/internal/apperr"
	"dailyplan/internal/model"
	"dailyplan/internal/service"
)

// Step is one page of the planning wizard.
type Step int

const (
	StepPick Step = iota
	StepEstimate
	StepPrioritize
	StepSchedule
	StepSummary
)

var stepNames = [...]string{"pick", "estimate", "prioritize", "schedule", "summary"}

func (s Step) String() string {
	if s < StepPick || s > StepSummary {
		return "unknown"
	}
	return stepNames[s]
}

// CapacityReader is satisfied by service.CapacityService.
type CapacityReader interface {
	Compute(ctx context.Context, userID uint, date time.Time) (service.Capacity, error)
}

// CandidateLister is satisfied by service.SuggestionService.
type CandidateLister interface {
	Suggest(ctx context.Context, userID uint, date time.Time) ([]model.PlanningCandidate, error)
}

// Committer is satisfied by service.PlanService.
type Committer interface {
	Commit(ctx context.Context, in service.CommitInput) (service.CommitResult, error)
}

// Entry is a candidate together with the edits made to it in this session.
type Entry struct {
	Candidate       model.PlanningCandidate
	Selected        bool
	EstimateMinutes int
	Priority        model.CandidatePriority
}

// Session is the in-memory state of one planning wizard. Nothing is persisted
// until Next commits from the summary step; dropping the session discards it.
// A Session is not safe for concurrent use.
type Session struct {
	UserID uint
	Date   time.Time

	step         Step
	capacity     service.Capacity
	entries      []Entry
	autoSchedule bool
	result       *service.CommitResult
}

func NewSession(userID uint, date time.Time) *Session {
	return &Session{
		UserID:       userID,
		Date:         model.DateOf(date),
		step:         StepPick,
		autoSchedule: true,
	}
}

// Load enters the pick step, fetching the capacity snapshot and fresh
// candidates for the session date. Earlier edits are discarded.
func (s *Session) Load(ctx context.Context, capacity CapacityReader, candidates CandidateLister) error {
	c, err := capacity.Compute(ctx, s.UserID, s.Date)
	if err != nil {
		return err
	}
	list, err := candidates.Suggest(ctx, s.UserID, s.Date)
	if err != nil {
		return err
	}

	entries := make([]Entry, len(list))
	for i, cand := range list {
		entries[i] = Entry{
			Candidate:       cand,
			EstimateMinutes: cand.EstimateMinutes,
			Priority:        cand.Priority,
		}
	}
	s.capacity = c
	s.entries = entries
	s.step = StepPick
	s.result = nil
	return nil
}

func (s *Session) Step() Step { return s.step }
func (s *Session) Capacity() service.Capacity { return s.capacity }
func (s *Session) AutoSchedule() bool { return s.autoSchedule }
func (s *Session) SetAutoSchedule(enabled bool) { s.autoSchedule = enabled }
func (s *Session) Len() int { return len(s.entries) }

// Committed reports whether the plan was already committed.
func (s *Session) Committed() bool { return s.result != nil }

// Entries returns a copy of all entries in candidate order.
func (s *Session) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Session) Entry(i int) (Entry, bool) {
	if i < 0 || i >= len(s.entries) {
		return Entry{}, false
	}
	return s.entries[i], true
}

// Toggle flips the selection of entry i.
func (s *Session) Toggle(i int) error {
	e, err := s.entry("toggle candidate", i)
	if err != nil {
		return err
	}
	e.Selected = !e.Selected
	return nil
}

func (s *Session) SetEstimate(i, minutes int) error {
	e, err := s.entry("set estimate", i)
	if err != nil {
		return err
	}
	if minutes < 0 {
		return apperr.Validation("set estimate", "estimate must not be negative")
	}
	e.EstimateMinutes = minutes
	return nil
}

// AdjustEstimate adds delta minutes to entry i, flooring at zero.
func (s *Session) AdjustEstimate(i, delta int) error {
	e, err := s.entry("adjust estimate", i)
	if err != nil {
		return err
	}
	e.EstimateMinutes += delta
	if e.EstimateMinutes < 0 {
		e.EstimateMinutes = 0
	}
	return nil
}

func (s *Session) SetPriority(i int, p model.CandidatePriority) error {
	e, err := s.entry("set priority", i)
	if err != nil {
		return err
	}
	if !p.Valid() {
		return apperr.Validation("set priority", "unknown priority %q", p)
	}
	e.Priority = p
	return nil
}

// CyclePriority rotates entry i through low, medium and high.
func (s *Session) CyclePriority(i int) error {
	e, err := s.entry("cycle priority", i)
	if err != nil {
		return err
	}
	switch e.Priority {
	case model.CandidateLow:
		e.Priority = model.CandidateMedium
	case model.CandidateMedium:
		e.Priority = model.CandidateHigh
	default:
		e.Priority = model.CandidateLow
	}
	return nil
}

// Selected returns the selected entries in candidate order.
func (s *Session) Selected() []Entry {
	var out []Entry
	for _, e := range s.entries {
		if e.Selected {
			out = append(out, e)
		}
	}
	return out
}

// SortedByPriority returns the selected entries ordered high to low, keeping
// candidate order within a tier. The session itself is not reordered.
func (s *Session) SortedByPriority() []Entry {
	out := s.Selected()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority.Rank() > out[j].Priority.Rank()
	})
	return out
}

func (s *Session) TotalPlannedMinutes() int {
	total := 0
	for _, e := range s.entries {
		if e.Selected {
			total += e.EstimateMinutes
		}
	}
	return total
}

// RemainingCapacity is the available capacity minus the selected estimates.
// It goes negative when the selection does not fit.
func (s *Session) RemainingCapacity() int {
	return s.capacity.AvailableMinutes - s.TotalPlannedMinutes()
}

func (s *Session) IsOverCapacity() bool {
	return s.RemainingCapacity() < 0
}

// Selections converts the selected entries into commit input.
func (s *Session) Selections() []service.Selection {
	selected := s.Selected()
	out := make([]service.Selection, 0, len(selected))
	for _, e := range selected {
		out = append(out, service.Selection{
			Source:          e.Candidate.Source,
			SourceID:        e.Candidate.SourceID,
			TaskID:          e.Candidate.TaskID,
			Title:           e.Candidate.Title,
			Description:     e.Candidate.Description,
			EstimateMinutes: e.EstimateMinutes,
			Priority:        e.Priority,
		})
	}
	return out
}

// Next advances one step. Leaving pick requires a selection. On the summary
// step Next commits the plan and returns the result; the step stays summary.
func (s *Session) Next(ctx context.Context, committer Committer) (*service.CommitResult, error) {
	if s.result != nil {
		return nil, apperr.Validation("next step", "plan already committed")
	}
	switch s.step {
	case StepPick:
		if len(s.Selected()) == 0 {
			return nil, apperr.Validation("next step", "select at least one task")
		}
	case StepSummary:
		result, err := committer.Commit(ctx, service.CommitInput{
			UserID:       s.UserID,
			Date:         s.Date,
			Selections:   s.Selections(),
			AutoSchedule: s.autoSchedule,
		})
		if err != nil {
			return nil, err
		}
		s.result = &result
		return s.result, nil
	}
	s.step++
	return nil, nil
}

// Back moves one step back, keeping everything entered so far.
// It reports false on the first step.
func (s *Session) Back() bool {
	if s.step == StepPick || s.result != nil {
		return false
	}
	s.step--
	return true
}

func (s *Session) entry(op string, i int) (*Entry, error) {
	if s.result != nil {
		return nil, apperr.Validation(op, "plan already committed")
	}
	if i < 0 || i >= len(s.entries) {
		return nil, apperr.NotFound(op, "candidate %d not in session", i)
	}
	return &s.entries[i], nil
}
