// Package services – ProcessService
//
// ProcessService is the per-user store of tracked processes. Each user's
// collection is loaded lazily from the persistence gateway, kept in memory,
// and written back in full after every mutation. All mutations are
// read-modify-write under a single mutex, so concurrent deadline additions on
// the same process are all preserved.
//
// Observability: public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-trademark-backend/internal/domain"
	"github.com/tbourn/go-trademark-backend/internal/explain"
	"github.com/tbourn/go-trademark-backend/internal/notify"
	"github.com/tbourn/go-trademark-backend/internal/registry"
	"github.com/tbourn/go-trademark-backend/internal/repo"
)

// DeadlineInput is the user-supplied part of a new deadline.
type DeadlineInput struct {
	Title        string
	Date         time.Time
	DispatchCode string
}

// ProcessService owns the process collections of all users.
type ProcessService struct {
	KV        repo.KVGateway
	Registry  registry.Gateway
	Scheduler notify.Scheduler
	Explainer explain.Explainer

	// Now and NewID are overridable in tests.
	Now   func() time.Time
	NewID func() string

	mu    sync.Mutex // guards locks and users, never held across I/O
	locks map[string]*sync.Mutex
	users map[string][]domain.Process
}

// NewProcessService wires a store with default clock and id generator.
func NewProcessService(kv repo.KVGateway, reg registry.Gateway, sched notify.Scheduler, exp explain.Explainer) *ProcessService {
	return &ProcessService{
		KV:        kv,
		Registry:  reg,
		Scheduler: sched,
		Explainer: exp,
		Now:       time.Now,
		NewID:     uuid.NewString,
	}
}

func (s *ProcessService) tracer() trace.Tracer { return otel.Tracer("services/ProcessService") }

func (s *ProcessService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *ProcessService) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

// lock serializes the calls of one user; other users proceed in parallel.
// It returns the unlock function.
func (s *ProcessService) lock(userID string) func() {
	s.mu.Lock()
	if s.locks == nil {
		s.locks = make(map[string]*sync.Mutex)
	}
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *ProcessService) cache(userID string, ps []domain.Process) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string][]domain.Process)
	}
	s.users[userID] = ps
}

// state returns the user's collection, loading it on first use. Caller holds
// the user's lock.
func (s *ProcessService) state(ctx context.Context, userID string) ([]domain.Process, error) {
	s.mu.Lock()
	ps, ok := s.users[userID]
	s.mu.Unlock()
	if ok {
		return ps, nil
	}
	raw, err := loadCollection[domain.Process](ctx, s.KV, repo.UserKey(userID, repo.KeyProcesses))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	ps = make([]domain.Process, 0, len(raw))
	for _, p := range raw {
		clean, notes, err := p.Sanitize()
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("dropping stored process")
			continue
		}
		for _, n := range notes {
			log.Ctx(ctx).Warn().Str("user_id", userID).Msg(n)
		}
		ps = append(ps, clean)
	}
	s.cache(userID, ps)
	return ps, nil
}

// commit replaces the user's collection and persists it. Caller holds the
// user's lock.
func (s *ProcessService) commit(ctx context.Context, userID string, ps []domain.Process) {
	s.cache(userID, ps)
	persist(ctx, s.KV, repo.UserKey(userID, repo.KeyProcesses), repo.KeyProcesses, ps)
}

func indexOf(ps []domain.Process, id string) int {
	for i := range ps {
		if ps[i].ID == id {
			return i
		}
	}
	return -1
}

func present(p domain.Process) domain.Process {
	out := p.Clone()
	out.Deadlines = domain.SortDeadlines(out.Deadlines)
	return out
}

// Lookup validates number and queries the registry.
func (s *ProcessService) Lookup(ctx context.Context, number string) (*domain.CaseSnapshot, error) {
	ctx, span := s.tracer().Start(ctx, "Lookup", trace.WithAttributes(attribute.String("case.number", number)))
	defer span.End()

	n, err := registry.NormalizeNumber(number)
	if err != nil {
		return nil, ErrInvalidCaseNumber
	}
	snap, err := s.Registry.Search(ctx, n)
	switch {
	case err == nil:
		return snap, nil
	case errors.Is(err, registry.ErrNotFound):
		return nil, ErrCaseNotFound
	default:
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
}

// AddProcess appends a new process built from snap and persists the collection.
func (s *ProcessService) AddProcess(ctx context.Context, userID string, snap domain.CaseSnapshot) (domain.Process, error) {
	ctx, span := s.tracer().Start(ctx, "AddProcess", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("case.number", snap.Number),
	))
	defer span.End()

	defer s.lock(userID)()
	ps, err := s.state(ctx, userID)
	if err != nil {
		return domain.Process{}, err
	}
	p := domain.Process{
		ID:            s.newID(),
		CaseNumber:    snap.Number,
		BrandName:     snap.Brand,
		NiceClass:     snap.Class,
		Owner:         snap.Owner,
		Specification: snap.Specification,
		Status:        snap.Status,
		DepositDate:   snap.DepositDate,
		Dispatches:    append([]domain.Dispatch{}, snap.Dispatches...),
		Deadlines:     []domain.Deadline{},
		LastUpdate:    s.now().UTC(),
	}
	next := append(append(make([]domain.Process, 0, len(ps)+1), ps...), p)
	s.commit(ctx, userID, next)
	return p.Clone(), nil
}

// Track looks number up in the registry and adds the result.
func (s *ProcessService) Track(ctx context.Context, userID, number string) (domain.Process, error) {
	snap, err := s.Lookup(ctx, number)
	if err != nil {
		return domain.Process{}, err
	}
	return s.AddProcess(ctx, userID, *snap)
}

// UpdateDeadlines replaces the deadlines of processID with mutate applied to
// the current ones. It is a silent no-op (ok=false) when the process is missing.
func (s *ProcessService) UpdateDeadlines(ctx context.Context, userID, processID string, mutate func([]domain.Deadline) []domain.Deadline) (domain.Process, bool, error) {
	defer s.lock(userID)()
	return s.updateDeadlinesLocked(ctx, userID, processID, mutate)
}

func (s *ProcessService) updateDeadlinesLocked(ctx context.Context, userID, processID string, mutate func([]domain.Deadline) []domain.Deadline) (domain.Process, bool, error) {
	ps, err := s.state(ctx, userID)
	if err != nil {
		return domain.Process{}, false, err
	}
	i := indexOf(ps, processID)
	if i < 0 {
		return domain.Process{}, false, nil
	}
	next := append([]domain.Process(nil), ps...)
	p := next[i].Clone()
	p.Deadlines = mutate(p.Deadlines)
	if p.Deadlines == nil {
		p.Deadlines = []domain.Deadline{}
	}
	next[i] = p
	s.commit(ctx, userID, next)
	return present(p), true, nil
}

// AddDeadline validates in, schedules its notification and appends it to
// the process. Nothing is scheduled when validation fails.
func (s *ProcessService) AddDeadline(ctx context.Context, userID, processID string, in DeadlineInput) (domain.Deadline, error) {
	ctx, span := s.tracer().Start(ctx, "AddDeadline", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("process.id", processID),
	))
	defer span.End()

	in.Title = strings.TrimSpace(in.Title)
	in.DispatchCode = strings.TrimSpace(in.DispatchCode)
	switch err := (domain.DeadlineDraft{Title: in.Title, Date: in.Date}).Validate(); {
	case errors.Is(err, domain.ErrDeadlineTitleRequired):
		return domain.Deadline{}, ErrEmptyTitle
	case errors.Is(err, domain.ErrDeadlineDateRequired):
		return domain.Deadline{}, ErrEmptyDate
	}

	defer s.lock(userID)()
	ps, err := s.state(ctx, userID)
	if err != nil {
		return domain.Deadline{}, err
	}
	if indexOf(ps, processID) < 0 {
		return domain.Deadline{}, ErrProcessNotFound
	}

	dl := domain.Deadline{
		ID:           s.newID(),
		Title:        in.Title,
		Date:         in.Date.UTC(),
		DispatchCode: in.DispatchCode,
	}
	if s.Scheduler != nil {
		s.Scheduler.Schedule(ctx, dl.Title, dl.Date)
	}
	_, _, err = s.updateDeadlinesLocked(ctx, userID, processID, func(cur []domain.Deadline) []domain.Deadline {
		return append(cur, dl)
	})
	if err != nil {
		return domain.Deadline{}, err
	}
	return dl, nil
}

// ToggleDeadline flips the completion flag of a deadline.
func (s *ProcessService) ToggleDeadline(ctx context.Context, userID, processID, deadlineID string) (domain.Deadline, error) {
	defer s.lock(userID)()
	var (
		out   domain.Deadline
		found bool
	)
	_, ok, err := s.updateDeadlinesLocked(ctx, userID, processID, func(cur []domain.Deadline) []domain.Deadline {
		for i := range cur {
			if cur[i].ID == deadlineID {
				cur[i].IsCompleted = !cur[i].IsCompleted
				out, found = cur[i], true
			}
		}
		return cur
	})
	switch {
	case err != nil:
		return domain.Deadline{}, err
	case !ok:
		return domain.Deadline{}, ErrProcessNotFound
	case !found:
		return domain.Deadline{}, ErrDeadlineNotFound
	}
	return out, nil
}

// RemoveDeadline deletes a deadline. Removing an absent deadline is a no-op.
func (s *ProcessService) RemoveDeadline(ctx context.Context, userID, processID, deadlineID string) error {
	defer s.lock(userID)()
	_, ok, err := s.updateDeadlinesLocked(ctx, userID, processID, func(cur []domain.Deadline) []domain.Deadline {
		out := cur[:0]
		for _, dl := range cur {
			if dl.ID != deadlineID {
				out = append(out, dl)
			}
		}
		return out
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrProcessNotFound
	}
	return nil
}

// DeleteProcess removes a process with its deadlines. Idempotent.
func (s *ProcessService) DeleteProcess(ctx context.Context, userID, processID string) error {
	ctx, span := s.tracer().Start(ctx, "DeleteProcess", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("process.id", processID),
	))
	defer span.End()

	defer s.lock(userID)()
	ps, err := s.state(ctx, userID)
	if err != nil {
		return err
	}
	i := indexOf(ps, processID)
	if i < 0 {
		return nil
	}
	next := make([]domain.Process, 0, len(ps)-1)
	next = append(next, ps[:i]...)
	next = append(next, ps[i+1:]...)
	s.commit(ctx, userID, next)
	return nil
}

// List returns every process in insertion order, deadlines sorted by date.
func (s *ProcessService) List(ctx context.Context, userID string) ([]domain.Process, error) {
	defer s.lock(userID)()
	ps, err := s.state(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Process, 0, len(ps))
	for _, p := range ps {
		out = append(out, present(p))
	}
	return out, nil
}

// Get returns one process.
func (s *ProcessService) Get(ctx context.Context, userID, processID string) (domain.Process, error) {
	defer s.lock(userID)()
	ps, err := s.state(ctx, userID)
	if err != nil {
		return domain.Process{}, err
	}
	i := indexOf(ps, processID)
	if i < 0 {
		return domain.Process{}, ErrProcessNotFound
	}
	return present(ps[i]), nil
}

// AttentionList returns the processes that need attention now, in insertion order.
func (s *ProcessService) AttentionList(ctx context.Context, userID string) ([]domain.Process, error) {
	ps, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]domain.Process, 0, len(ps))
	for _, p := range ps {
		if domain.NeedsAttention(p, now) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Dashboard summarises the user's processes.
func (s *ProcessService) Dashboard(ctx context.Context, userID string) (domain.Summary, error) {
	ps, err := s.List(ctx, userID)
	if err != nil {
		return domain.Summary{}, err
	}
	return domain.Summarize(ps, s.now()), nil
}

// DeadlineDraft pre-fills a deadline form, tied to dispatchCode when given.
func (s *ProcessService) DeadlineDraft(ctx context.Context, userID, processID, dispatchCode string) (domain.DeadlineDraft, error) {
	p, err := s.Get(ctx, userID, processID)
	if err != nil {
		return domain.DeadlineDraft{}, err
	}
	if strings.TrimSpace(dispatchCode) == "" {
		return domain.NewDeadlineDraft(nil, s.now()), nil
	}
	d, ok := p.FindDispatch(dispatchCode)
	if !ok {
		return domain.DeadlineDraft{}, ErrDispatchNotFound
	}
	return domain.NewDeadlineDraft(&d, s.now()), nil
}

// Explain asks the explanation gateway about one dispatch of a process.
// The store lock is not held during the call.
func (s *ProcessService) Explain(ctx context.Context, userID, processID, code string) (string, error) {
	ctx, span := s.tracer().Start(ctx, "Explain", trace.WithAttributes(
		attribute.String("process.id", processID),
		attribute.String("dispatch.code", code),
	))
	defer span.End()

	p, err := s.Get(ctx, userID, processID)
	if err != nil {
		return "", err
	}
	d, ok := p.FindDispatch(code)
	if !ok {
		return "", ErrDispatchNotFound
	}
	if s.Explainer == nil {
		return explain.MsgNotConfigured, nil
	}
	return s.Explainer.Explain(ctx, d), nil
}

// Revision returns a cheap fingerprint of the user's collection for ETags:
// the number of processes and the latest LastUpdate.
func (s *ProcessService) Revision(ctx context.Context, userID string) (int, time.Time, error) {
	defer s.lock(userID)()
	ps, err := s.state(ctx, userID)
	if err != nil {
		return 0, time.Time{}, err
	}
	var last time.Time
	for _, p := range ps {
		if p.LastUpdate.After(last) {
			last = p.LastUpdate
		}
	}
	return len(ps), last, nil
}
