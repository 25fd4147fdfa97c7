package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/garyjia/travel-reimbursement/internal/application/dispatcher"
	"github.com/garyjia/travel-reimbursement/internal/application/port"
	"github.com/garyjia/travel-reimbursement/internal/domain/entity"
	"github.com/garyjia/travel-reimbursement/internal/domain/event"
)

type mockExpenseRepo struct {
	mu        sync.Mutex
	expenses  map[string]*entity.ExpenseRecord
	updateErr error
}

func newMockExpenseRepo(expenses ...*entity.ExpenseRecord) *mockExpenseRepo {
	m := &mockExpenseRepo{expenses: make(map[string]*entity.ExpenseRecord)}
	for _, e := range expenses {
		m.expenses[e.ID] = e
	}
	return m
}

func (m *mockExpenseRepo) Save(ctx context.Context, expense *entity.ExpenseRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	expense.Version++
	c := *expense
	m.expenses[expense.ID] = &c
	return nil
}

func (m *mockExpenseRepo) Find(ctx context.Context, id string) (*entity.ExpenseRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.expenses[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	c := *e
	return &c, nil
}

func (m *mockExpenseRepo) UpdateStatus(ctx context.Context, id string, status entity.ApprovalStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	e, ok := m.expenses[id]
	if !ok {
		return port.ErrNotFound
	}
	e.ApprovalStatus = status
	e.Version++
	return nil
}

func (m *mockExpenseRepo) TransitionStatus(ctx context.Context, id string, expectedVersion int, status entity.ApprovalStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	e, ok := m.expenses[id]
	if !ok {
		return port.ErrNotFound
	}
	if e.Version != expectedVersion {
		return port.ErrVersionConflict
	}
	e.ApprovalStatus = status
	e.Version++
	return nil
}

func (m *mockExpenseRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.expenses, id)
	return nil
}

func (m *mockExpenseRepo) List(ctx context.Context, filter port.ExpenseFilter) ([]*entity.ExpenseRecord, error) {
	return nil, nil
}

func (m *mockExpenseRepo) status(id string) entity.ApprovalStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expenses[id].ApprovalStatus
}

type mockWorkflowRepo struct {
	mu        sync.Mutex
	workflows map[string]*entity.ApprovalWorkflow
	order     []string

	// conflicts makes the next n Update calls fail with ErrVersionConflict
	conflicts   int
	updateCalls int
}

func newMockWorkflowRepo() *mockWorkflowRepo {
	return &mockWorkflowRepo{workflows: make(map[string]*entity.ApprovalWorkflow)}
}

func (m *mockWorkflowRepo) Create(ctx context.Context, wf *entity.ApprovalWorkflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf.Version = 1
	m.workflows[wf.ID] = wf.Clone()
	m.order = append(m.order, wf.ID)
	return nil
}

func (m *mockWorkflowRepo) GetByID(ctx context.Context, id string) (*entity.ApprovalWorkflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf, ok := m.workflows[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return wf.Clone(), nil
}

func (m *mockWorkflowRepo) GetLatestByExpenseID(ctx context.Context, expenseID string) (*entity.ApprovalWorkflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		if wf := m.workflows[m.order[i]]; wf.ExpenseID == expenseID {
			return wf.Clone(), nil
		}
	}
	return nil, port.ErrNotFound
}

func (m *mockWorkflowRepo) Update(ctx context.Context, wf *entity.ApprovalWorkflow, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.conflicts > 0 {
		m.conflicts--
		return port.ErrVersionConflict
	}
	stored, ok := m.workflows[wf.ID]
	if !ok {
		return port.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return port.ErrVersionConflict
	}
	wf.Version = expectedVersion + 1
	m.workflows[wf.ID] = wf.Clone()
	return nil
}

func (m *mockWorkflowRepo) ListActive(ctx context.Context, limit int) ([]*entity.ApprovalWorkflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*entity.ApprovalWorkflow
	for _, id := range m.order {
		if wf := m.workflows[id]; wf.Status == entity.ApprovalStatusInReview {
			result = append(result, wf.Clone())
		}
	}
	return result, nil
}

type mockTxManager struct {
	commitErr error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	return fn(ctx)
}

type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(eventType event.Type, name string, handler dispatcher.Handler) {}

func (m *mockDispatcher) Unsubscribe(eventType event.Type, name string) {}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	_ = m.Dispatch(ctx, evt)
}

func (m *mockDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo {
	return nil
}

func (m *mockDispatcher) Close() error {
	return nil
}

func (m *mockDispatcher) types() []event.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]event.Type, len(m.events))
	for i, e := range m.events {
		types[i] = e.Type
	}
	return types
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
