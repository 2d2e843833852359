package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRecord marks a stored record that cannot be repaired.
var ErrInvalidRecord = errors.New("invalid record")

// Sanitize checks a process read from storage. Records without identity are
// rejected; malformed nested dispatches/deadlines are dropped and reported in
// the returned notes so the caller can log them.
func (p Process) Sanitize() (Process, []string, error) {
	if strings.TrimSpace(p.ID) == "" {
		return p, nil, fmt.Errorf("%w: process without id", ErrInvalidRecord)
	}
	if strings.TrimSpace(p.CaseNumber) == "" {
		return p, nil, fmt.Errorf("%w: process %s without case number", ErrInvalidRecord, p.ID)
	}

	var notes []string
	out := p
	out.Dispatches = make([]Dispatch, 0, len(p.Dispatches))
	for _, d := range p.Dispatches {
		if strings.TrimSpace(d.Code) == "" || !d.Status.Valid() {
			notes = append(notes, fmt.Sprintf("process %s: dropped dispatch %q (status %q)", p.ID, d.Code, d.Status))
			continue
		}
		out.Dispatches = append(out.Dispatches, d)
	}

	seen := make(map[string]struct{}, len(p.Deadlines))
	out.Deadlines = make([]Deadline, 0, len(p.Deadlines))
	for _, dl := range p.Deadlines {
		if _, dup := seen[dl.ID]; dup || strings.TrimSpace(dl.ID) == "" ||
			strings.TrimSpace(dl.Title) == "" || dl.Date.IsZero() {
			notes = append(notes, fmt.Sprintf("process %s: dropped deadline %q", p.ID, dl.ID))
			continue
		}
		seen[dl.ID] = struct{}{}
		out.Deadlines = append(out.Deadlines, dl)
	}
	return out, notes, nil
}

// Sanitize checks a chat read from storage, dropping malformed messages.
func (c Chat) Sanitize() (Chat, []string, error) {
	if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.SpecialistID) == "" {
		return c, nil, fmt.Errorf("%w: chat without id or specialist", ErrInvalidRecord)
	}
	var notes []string
	out := c
	out.Messages = make([]Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		if strings.TrimSpace(m.ID) == "" || (m.Sender != SenderUser && m.Sender != SenderSpecialist) {
			notes = append(notes, fmt.Sprintf("chat %s: dropped message %q", c.ID, m.ID))
			continue
		}
		out.Messages = append(out.Messages, m)
	}
	return out, notes, nil
}

// Validate checks a stored user.
func (u User) Validate() error {
	if strings.TrimSpace(u.ID) == "" || strings.TrimSpace(u.Name) == "" || strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("%w: user without id, name or email", ErrInvalidRecord)
	}
	if u.Type != UserIndividual && u.Type != UserCompany {
		return fmt.Errorf("%w: user type %q", ErrInvalidRecord, u.Type)
	}
	return nil
}
