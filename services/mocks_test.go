package services

import (
	"context"
	"time"

	"checkout-service/models"
	"checkout-service/repository"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v80"
	"gorm.io/gorm"
)

// ---- mock order repository ----

type mockOrderRepo struct {
	created       []*models.Order
	createErrs    []error // popped per Create call; nil slice means no error
	sessionSets   map[uuid.UUID]string
	sessionSetErr error

	ordersByRef    map[string]*models.Order
	ordersByIntent map[string]*models.Order
	findOrder      *models.Order
	findErr        error
	listOrders     []models.Order
	listTotal      int64
	listErr        error

	saved []*models.Order
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{
		sessionSets:    map[uuid.UUID]string{},
		ordersByRef:    map[string]*models.Order{},
		ordersByIntent: map[string]*models.Order{},
	}
}

func (m *mockOrderRepo) Create(_ context.Context, order *models.Order) error {
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		if err != nil {
			return err
		}
	}
	cp := *order
	m.created = append(m.created, &cp)
	return nil
}

func (m *mockOrderRepo) SetStripeSession(_ context.Context, orderID uuid.UUID, sessionID string) error {
	if m.sessionSetErr != nil {
		return m.sessionSetErr
	}
	m.sessionSets[orderID] = sessionID
	return nil
}

func (m *mockOrderRepo) FindByReferenceAndUser(_ context.Context, _, _ string) (*models.Order, error) {
	return m.findOrder, m.findErr
}

func (m *mockOrderRepo) ListByUser(_ context.Context, _, _ string, _, _ int) ([]models.Order, int64, error) {
	return m.listOrders, m.listTotal, m.listErr
}

func (m *mockOrderRepo) LockByReference(_ context.Context, reference string) (*models.Order, error) {
	if o, ok := m.ordersByRef[reference]; ok {
		return o, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockOrderRepo) LockByPaymentIntent(_ context.Context, intentID string) (*models.Order, error) {
	if o, ok := m.ordersByIntent[intentID]; ok {
		return o, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockOrderRepo) Save(_ context.Context, order *models.Order) error {
	cp := *order
	m.saved = append(m.saved, &cp)
	return nil
}

// ---- mock event ledger ----

type mockLedger struct {
	exists    bool
	existsErr error
	recordErr error
	recorded  []*models.ProcessedEvent
}

func (m *mockLedger) Exists(_ context.Context, _ string) (bool, error) {
	return m.exists, m.existsErr
}

func (m *mockLedger) Record(_ context.Context, ev *models.ProcessedEvent) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.recorded = append(m.recorded, ev)
	return nil
}

// ---- stub unit of work: runs fn against the mocks, no real transaction ----

type stubUnitOfWork struct {
	orders *mockOrderRepo
	ledger *mockLedger
	called bool
}

func (u *stubUnitOfWork) Do(_ context.Context, fn func(repository.OrderRepository, repository.EventLedger) error) error {
	u.called = true
	return fn(u.orders, u.ledger)
}

// ---- stub event verifier ----

type stubVerifier struct {
	event stripe.Event
	err   error
}

func (v *stubVerifier) VerifyEvent(_ []byte, _ string) (stripe.Event, error) {
	return v.event, v.err
}

// ---- mock payment gateway ----

type mockGateway struct {
	session   *CheckoutSessionInfo
	err       error
	gotOrders []*models.Order
}

func (g *mockGateway) CreateSession(_ context.Context, order *models.Order) (*CheckoutSessionInfo, error) {
	cp := *order
	g.gotOrders = append(g.gotOrders, &cp)
	if g.err != nil {
		return nil, g.err
	}
	return g.session, nil
}

// ---- mock event publisher ----

type mockPublisher struct {
	events []models.OrderEvent
	err    error
}

func (p *mockPublisher) Publish(_ context.Context, event models.OrderEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

// fixedClock returns a deterministic now func for tests.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
