package domain

import (
	"errors"
	"sort"
	"strings"
	"time"
)

const (
	// UrgencyWindow is how far ahead an open deadline counts as urgent.
	UrgencyWindow = 7 * 24 * time.Hour

	// DispatchResponseDays is the registry's usual statutory response window.
	DispatchResponseDays = 60

	// DeadlineTitlePrefix prefixes drafts created from a dispatch.
	DeadlineTitlePrefix = "Prazo: "
)

// RequiresAction reports whether the holder must act on d.
func RequiresAction(d Dispatch) bool {
	return d.Status == DispatchPendingAction
}

// IsUrgent reports whether dl is open and due before now+7 days.
// Overdue deadlines are urgent as well.
func IsUrgent(dl Deadline, now time.Time) bool {
	return !dl.IsCompleted && dl.Date.Before(now.Add(UrgencyWindow))
}

// NeedsAttention is the single predicate behind the dashboard counter, the
// process list indicator, and the pending-items feed.
func NeedsAttention(p Process, now time.Time) bool {
	for _, d := range p.Dispatches {
		if RequiresAction(d) {
			return true
		}
	}
	for _, dl := range p.Deadlines {
		if IsUrgent(dl, now) {
			return true
		}
	}
	return false
}

// Urgency is a coarse bucket for a deadline relative to now.
type Urgency string

const (
	UrgencyCompleted Urgency = "completed"
	UrgencyOverdue   Urgency = "overdue"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyUpcoming  Urgency = "upcoming"
)

// UrgencyOf buckets dl. Days are compared by calendar date in now's location.
func UrgencyOf(dl Deadline, now time.Time) Urgency {
	switch {
	case dl.IsCompleted:
		return UrgencyCompleted
	case StartOfDay(dl.Date.In(now.Location())).Before(StartOfDay(now)):
		return UrgencyOverdue
	case IsUrgent(dl, now):
		return UrgencyUrgent
	default:
		return UrgencyUpcoming
	}
}

// PendingDeadlines counts the open deadlines of p.
func PendingDeadlines(p Process) int {
	n := 0
	for _, dl := range p.Deadlines {
		if !dl.IsCompleted {
			n++
		}
	}
	return n
}

// Summary holds the dashboard counters.
type Summary struct {
	Active         int `json:"active"`
	Attention      int `json:"attention"`
	GoodStanding   int `json:"in_good_standing"`
	OpenDeadlines  int `json:"open_deadlines"`
	UrgentDeadline int `json:"urgent_deadlines"`
}

// Summarize computes dashboard counters for ps at now.
func Summarize(ps []Process, now time.Time) Summary {
	s := Summary{Active: len(ps)}
	for _, p := range ps {
		if NeedsAttention(p, now) {
			s.Attention++
		}
		s.OpenDeadlines += PendingDeadlines(p)
		for _, dl := range p.Deadlines {
			if IsUrgent(dl, now) {
				s.UrgentDeadline++
			}
		}
	}
	s.GoodStanding = s.Active - s.Attention
	return s
}

// DeadlineDraft is the pre-filled form for a new deadline.
type DeadlineDraft struct {
	Title        string    `json:"title"`
	Date         time.Time `json:"date"`
	DispatchCode string    `json:"dispatch_code,omitempty"`
}

// NewDeadlineDraft applies the default-deadline policy. With a dispatch the
// draft is titled after its code and due in 60 days; otherwise the title is
// empty and the date is tomorrow.
func NewDeadlineDraft(d *Dispatch, now time.Time) DeadlineDraft {
	today := StartOfDay(now)
	if d == nil {
		return DeadlineDraft{Date: today.AddDate(0, 0, 1)}
	}
	return DeadlineDraft{
		Title:        DeadlineTitlePrefix + d.Code,
		Date:         today.AddDate(0, 0, DispatchResponseDays),
		DispatchCode: d.Code,
	}
}

// Validation errors for deadline input.
var (
	ErrDeadlineTitleRequired = errors.New("deadline title is required")
	ErrDeadlineDateRequired  = errors.New("deadline date is required")
)

// Validate checks the fields a user must supply.
func (d DeadlineDraft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return ErrDeadlineTitleRequired
	}
	if d.Date.IsZero() {
		return ErrDeadlineDateRequired
	}
	return nil
}

// SortDeadlines orders deadlines by date ascending, ties broken by id.
// It returns a sorted copy.
func SortDeadlines(in []Deadline) []Deadline {
	out := append([]Deadline(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseDate accepts a calendar date (YYYY-MM-DD, read as UTC midnight) or an
// RFC 3339 timestamp. Blank input yields the zero time and no error.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
