package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempts/internal/model"
	"github.com/stemsi/exstem-attempts/internal/repository"
)

type outcomeCall struct {
	OwnerID     int
	ModuleID    uuid.UUID
	Percentage  float64
	CompletedAt time.Time
}

// memState is one consistent copy of everything the transactional stores own.
type memState struct {
	attempts   map[uuid.UUID]model.Attempt
	snapshots  map[uuid.UUID][]model.SnapshotItem
	outcomes   []outcomeCall
	nextItemID int64
}

func (s *memState) clone() *memState {
	c := &memState{
		attempts:   make(map[uuid.UUID]model.Attempt, len(s.attempts)),
		snapshots:  make(map[uuid.UUID][]model.SnapshotItem, len(s.snapshots)),
		outcomes:   append([]outcomeCall(nil), s.outcomes...),
		nextItemID: s.nextItemID,
	}
	for k, v := range s.attempts {
		c.attempts[k] = v
	}
	for k, v := range s.snapshots {
		c.snapshots[k] = append([]model.SnapshotItem(nil), v...)
	}
	return c
}

// memDB serializes transactions, which stands in for the row locks taken by
// LockOpen and LockByID, and discards the working copy on error.
type memDB struct {
	txMu      sync.Mutex
	dataMu    sync.Mutex
	committed *memState

	txCount    int
	outcomeErr error
}

func newMemDB() *memDB {
	return &memDB{committed: &memState{
		attempts:  make(map[uuid.UUID]model.Attempt),
		snapshots: make(map[uuid.UUID][]model.SnapshotItem),
	}}
}

func (db *memDB) WithTx(ctx context.Context, fn func(ctx context.Context, s repository.Stores) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.dataMu.Lock()
	work := db.committed.clone()
	db.txCount++
	db.dataMu.Unlock()

	if err := fn(ctx, db.stores(work)); err != nil {
		return err
	}

	db.dataMu.Lock()
	db.committed = work
	db.dataMu.Unlock()
	return nil
}

func (db *memDB) stores(tx *memState) repository.Stores {
	return repository.Stores{
		Attempts:  &memAttempts{db: db, tx: tx},
		Snapshots: &memSnapshots{db: db, tx: tx},
		Outcomes:  &memOutcomes{db: db, tx: tx},
	}
}

// view runs fn against the working copy inside a transaction or the committed state otherwise.
func (db *memDB) view(tx *memState, fn func(s *memState)) {
	if tx != nil {
		fn(tx)
		return
	}
	db.dataMu.Lock()
	defer db.dataMu.Unlock()
	fn(db.committed)
}

func (db *memDB) attempt(id uuid.UUID) model.Attempt {
	db.dataMu.Lock()
	defer db.dataMu.Unlock()
	return db.committed.attempts[id]
}

func (db *memDB) attemptCount() int {
	db.dataMu.Lock()
	defer db.dataMu.Unlock()
	return len(db.committed.attempts)
}

func (db *memDB) openCount(ownerID int, assessmentID uuid.UUID, kind model.AttemptKind) int {
	db.dataMu.Lock()
	defer db.dataMu.Unlock()
	n := 0
	for _, a := range db.committed.attempts {
		if a.OwnerID == ownerID && a.AssessmentID == assessmentID && a.Kind == kind && a.FinishedAt == nil {
			n++
		}
	}
	return n
}

func (db *memDB) snapshotLen(attemptID uuid.UUID) int {
	db.dataMu.Lock()
	defer db.dataMu.Unlock()
	return len(db.committed.snapshots[attemptID])
}

func (db *memDB) outcomeCalls() []outcomeCall {
	db.dataMu.Lock()
	defer db.dataMu.Unlock()
	return append([]outcomeCall(nil), db.committed.outcomes...)
}

type memAttempts struct {
	db *memDB
	tx *memState
}

func (m *memAttempts) find(ownerID int, assessmentID uuid.UUID, kind model.AttemptKind) (*model.Attempt, error) {
	var found *model.Attempt
	m.db.view(m.tx, func(s *memState) {
		for _, a := range s.attempts {
			if a.OwnerID == ownerID && a.AssessmentID == assessmentID && a.Kind == kind && a.FinishedAt == nil {
				a := a
				found = &a
				return
			}
		}
	})
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return found, nil
}

func (m *memAttempts) FindOpen(_ context.Context, ownerID int, assessmentID uuid.UUID, kind model.AttemptKind) (*model.Attempt, error) {
	return m.find(ownerID, assessmentID, kind)
}

func (m *memAttempts) LockOpen(_ context.Context, ownerID int, assessmentID uuid.UUID, kind model.AttemptKind) (*model.Attempt, error) {
	return m.find(ownerID, assessmentID, kind)
}

func (m *memAttempts) GetByID(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	var (
		a  model.Attempt
		ok bool
	)
	m.db.view(m.tx, func(s *memState) { a, ok = s.attempts[id] })
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (m *memAttempts) LockByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return m.GetByID(ctx, id)
}

func (m *memAttempts) Create(_ context.Context, a *model.Attempt) error {
	var err error
	m.db.view(m.tx, func(s *memState) {
		for _, other := range s.attempts {
			if other.OwnerID == a.OwnerID && other.AssessmentID == a.AssessmentID && other.Kind == a.Kind && other.FinishedAt == nil {
				err = errors.New("duplicate open attempt")
				return
			}
		}
		a.ID = uuid.New()
		s.attempts[a.ID] = *a
	})
	return err
}

func (m *memAttempts) Finalize(_ context.Context, a *model.Attempt) error {
	var err error
	m.db.view(m.tx, func(s *memState) {
		cur, ok := s.attempts[a.ID]
		if !ok || cur.FinishedAt != nil {
			err = repository.ErrAlreadyFinished
			return
		}
		s.attempts[a.ID] = *a
	})
	return err
}

func (m *memAttempts) ListByOwner(_ context.Context, ownerID int, assessmentID uuid.UUID, kind model.AttemptKind) ([]model.Attempt, error) {
	var out []model.Attempt
	m.db.view(m.tx, func(s *memState) {
		for _, a := range s.attempts {
			if a.OwnerID == ownerID && a.AssessmentID == assessmentID && a.Kind == kind {
				out = append(out, a)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

type memSnapshots struct {
	db *memDB
	tx *memState
}

func (m *memSnapshots) InsertBatch(_ context.Context, attemptID uuid.UUID, questionIDs []uuid.UUID) error {
	m.db.view(m.tx, func(s *memState) {
		for i, qid := range questionIDs {
			s.nextItemID++
			s.snapshots[attemptID] = append(s.snapshots[attemptID], model.SnapshotItem{
				ID:         s.nextItemID,
				AttemptID:  attemptID,
				QuestionID: qid,
				Position:   i + 1,
			})
		}
	})
	return nil
}

func (m *memSnapshots) ListByAttempt(_ context.Context, attemptID uuid.UUID) ([]model.SnapshotItem, error) {
	var out []model.SnapshotItem
	m.db.view(m.tx, func(s *memState) {
		out = append(out, s.snapshots[attemptID]...)
	})
	return out, nil
}

func (m *memSnapshots) SaveGrades(_ context.Context, attemptID uuid.UUID, items []model.SnapshotItem) error {
	var err error
	m.db.view(m.tx, func(s *memState) {
		rows := s.snapshots[attemptID]
		byID := make(map[int64]int, len(rows))
		for i, r := range rows {
			byID[r.ID] = i
		}
		for _, it := range items {
			i, ok := byID[it.ID]
			if !ok {
				err = errors.New("grade for unknown snapshot row")
				return
			}
			rows[i].SubmittedAnswer = it.SubmittedAnswer
			rows[i].CorrectAnswer = it.CorrectAnswer
			rows[i].IsCorrect = it.IsCorrect
		}
	})
	return err
}

type memOutcomes struct {
	db *memDB
	tx *memState
}

func (m *memOutcomes) ApplyPassOutcome(_ context.Context, ownerID int, moduleID uuid.UUID, percentage float64, completedAt time.Time) error {
	if m.db.outcomeErr != nil {
		return m.db.outcomeErr
	}
	m.db.view(m.tx, func(s *memState) {
		s.outcomes = append(s.outcomes, outcomeCall{ownerID, moduleID, percentage, completedAt})
	})
	return nil
}

type fakeBank struct {
	mu        sync.Mutex
	order     map[uuid.UUID][]uuid.UUID
	questions map[uuid.UUID]model.QuestionRef
	err       error
}

func newFakeBank() *fakeBank {
	return &fakeBank{
		order:     make(map[uuid.UUID][]uuid.UUID),
		questions: make(map[uuid.UUID]model.QuestionRef),
	}
}

func (b *fakeBank) add(assessmentID uuid.UUID, prompt string, key model.OptionKey) uuid.UUID {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := model.QuestionRef{
		ID:     uuid.New(),
		Prompt: prompt,
		Options: []model.Option{
			{Key: model.OptionA, Text: "A"},
			{Key: model.OptionB, Text: "B"},
			{Key: model.OptionC, Text: "C"},
			{Key: model.OptionD, Text: "D"},
		},
		CorrectKey: key,
	}
	b.questions[q.ID] = q
	b.order[assessmentID] = append(b.order[assessmentID], q.ID)
	return q.ID
}

func (b *fakeBank) setKey(id uuid.UUID, key model.OptionKey) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.questions[id]
	q.CorrectKey = key
	b.questions[id] = q
}

func (b *fakeBank) SelectQuestions(_ context.Context, assessmentID uuid.UUID, count int) ([]model.QuestionRef, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	var out []model.QuestionRef
	for _, id := range b.order[assessmentID] {
		if len(out) == count {
			break
		}
		out = append(out, b.questions[id])
	}
	return out, nil
}

func (b *fakeBank) ResolveCorrectKeys(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]model.OptionKey, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	keys := make(map[uuid.UUID]model.OptionKey)
	for _, id := range ids {
		if q, ok := b.questions[id]; ok {
			keys[id] = q.CorrectKey
		}
	}
	return keys, nil
}

func (b *fakeBank) PublicQuestions(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]model.PublicQuestion, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[uuid.UUID]model.PublicQuestion)
	for _, id := range ids {
		if q, ok := b.questions[id]; ok {
			out[id] = q.Public()
		}
	}
	return out, nil
}

type fakePolicies struct {
	mu       sync.Mutex
	policies map[uuid.UUID]model.AssessmentPolicy
}

func (p *fakePolicies) GetPolicy(_ context.Context, id uuid.UUID) (*model.AssessmentPolicy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pol, ok := p.policies[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &pol, nil
}

func (p *fakePolicies) set(pol model.AssessmentPolicy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.policies[pol.AssessmentID] = pol
}

type fakeEnrollment struct {
	enrolled map[int]map[uuid.UUID]bool
}

func (e *fakeEnrollment) IsEnrolled(_ context.Context, ownerID int, moduleID uuid.UUID) (bool, error) {
	return e.enrolled[ownerID][moduleID], nil
}

type fakeAudit struct {
	mu     sync.Mutex
	events []model.AttemptEvent
}

func (a *fakeAudit) Publish(_ context.Context, ev model.AttemptEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
}

func (a *fakeAudit) types() []model.AttemptEventType {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.AttemptEventType, len(a.events))
	for i, ev := range a.events {
		out[i] = ev.Type
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// harness wires an AttemptService to in-memory collaborators with one
// enrolled learner and one assessment.
type harness struct {
	svc        *AttemptService
	db         *memDB
	bank       *fakeBank
	policies   *fakePolicies
	enrollment *fakeEnrollment
	audit      *fakeAudit
	clock      *fakeClock

	learner      model.Actor
	moduleID     uuid.UUID
	assessmentID uuid.UUID
}

func newHarness(durationMinutes int, passingGrade float64, limit int) *harness {
	h := &harness{
		db:         newMemDB(),
		bank:       newFakeBank(),
		policies:   &fakePolicies{policies: make(map[uuid.UUID]model.AssessmentPolicy)},
		enrollment: &fakeEnrollment{enrolled: make(map[int]map[uuid.UUID]bool)},
		audit:      &fakeAudit{},
		clock:      &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		learner:    model.Actor{ID: 7},
		moduleID:   uuid.New(),
	}
	h.assessmentID = uuid.New()
	h.policies.set(model.AssessmentPolicy{
		AssessmentID:    h.assessmentID,
		ModuleID:        h.moduleID,
		Title:           "Module quiz",
		DurationMinutes: durationMinutes,
		PassingGrade:    passingGrade,
		QuestionsLimit:  limit,
	})
	h.enrollment.enrolled[h.learner.ID] = map[uuid.UUID]bool{h.moduleID: true}

	h.svc = NewAttemptService(AttemptDeps{
		Tx:         h.db,
		Attempts:   &memAttempts{db: h.db},
		Snapshots:  &memSnapshots{db: h.db},
		Bank:       h.bank,
		Policies:   h.policies,
		Enrollment: h.enrollment,
		Audit:      h.audit,
		Log:        zerolog.Nop(),
		Now:        h.clock.Now,
	})
	return h
}
