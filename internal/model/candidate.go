package model

import "strings"

// CandidateSource names where a planning candidate came from.
type CandidateSource string

const (
	SourceBacklog CandidateSource = "backlog"
	SourceGmail   CandidateSource = "gmail"
	SourceGitHub  CandidateSource = "github"
	SourceNotion  CandidateSource = "notion"
	SourceAsana   CandidateSource = "asana"
	SourceLinear  CandidateSource = "linear"
)

// Valid reports whether s is a known source.
func (s CandidateSource) Valid() bool {
	switch s {
	case SourceBacklog, SourceGmail, SourceGitHub, SourceNotion, SourceAsana, SourceLinear:
		return true
	}
	return false
}

// CandidatePriority is the three-tier priority scale used while planning.
type CandidatePriority string

const (
	CandidateLow    CandidatePriority = "low"
	CandidateMedium CandidatePriority = "medium"
	CandidateHigh   CandidatePriority = "high"
)

const (
	DefaultCandidateEstimate = 30
	DefaultCandidatePriority = CandidateMedium
)

// Rank orders candidate priorities from low (0) to high (2).
func (p CandidatePriority) Rank() int {
	switch p {
	case CandidateHigh:
		return 2
	case CandidateMedium:
		return 1
	default:
		return 0
	}
}

// Valid reports whether p is on the three-tier scale.
func (p CandidatePriority) Valid() bool {
	return p == CandidateLow || p == CandidateMedium || p == CandidateHigh
}

// TaskPriority upper-cases the candidate priority to the task enum.
func (p CandidatePriority) TaskPriority() Priority {
	if !p.Valid() {
		return PriorityMedium
	}
	return Priority(strings.ToUpper(string(p)))
}

// CandidatePriorityOf lower-cases a task priority onto the three-tier scale.
// URGENT folds into high; anything unknown becomes medium.
func CandidatePriorityOf(p Priority) CandidatePriority {
	switch p {
	case PriorityUrgent, PriorityHigh:
		return CandidateHigh
	case PriorityLow:
		return CandidateLow
	case PriorityMedium:
		return CandidateMedium
	}
	return DefaultCandidatePriority
}

// PlanningCandidate is an ephemeral suggestion for what to plan. It is never persisted.
type PlanningCandidate struct {
	Source          CandidateSource   `json:"source"`
	SourceID        string            `json:"sourceId"`
	TaskID          *uint             `json:"taskId,omitempty"`
	Title           string            `json:"title"`
	Description     string            `json:"description,omitempty"`
	EstimateMinutes int               `json:"estimateMinutes"`
	Priority        CandidatePriority `json:"priority"`
}

// Key identifies the candidate within one planning session.
func (c PlanningCandidate) Key() string {
	return string(c.Source) + ":" + c.SourceID
}

// Normalize fills defaults for external candidates whose source did not provide them.
func (c PlanningCandidate) Normalize() PlanningCandidate {
	if c.EstimateMinutes <= 0 {
		c.EstimateMinutes = DefaultCandidateEstimate
	}
	if !c.Priority.Valid() {
		c.Priority = DefaultCandidatePriority
	}
	c.Title = strings.TrimSpace(c.Title)
	return c
}
