package services_test

import (
	"context"
	"strings"
	"sync"

	"delivery-core/models"
	"delivery-core/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Mock Order Repository ---

type mockOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*models.Order

	createErr error
	findErr   error
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[uuid.UUID]*models.Order)}
}

func (m *mockOrderRepo) Create(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *mockOrderRepo) FindByID(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	o, ok := m.orders[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) FindByCustomerID(_ context.Context, customerID uuid.UUID, _, _ int) ([]models.Order, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.Order
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			result = append(result, *o)
		}
	}
	return result, int64(len(result)), nil
}

func (m *mockOrderRepo) TransitionStatus(_ context.Context, orderID uuid.UUID, from, to models.OrderStatus, extra map[string]interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if o.Status != from {
		return false, nil
	}
	o.Status = to
	if reason, ok := extra["cancel_reason"].(string); ok {
		o.CancelReason = &reason
	}
	return true, nil
}

func (m *mockOrderRepo) AssignWorker(_ context.Context, orderID, workerID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	o.DeliveryWorkerID = &workerID
	return nil
}

// --- Mock Wallet Repository ---

type mockWalletRepo struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]*models.Wallet
	txns    []models.WalletTransaction

	// conflictsLeft makes the next N appends fail with ErrBalanceConflict,
	// to exercise the retry path.
	conflictsLeft int
}

func newMockWalletRepo() *mockWalletRepo {
	return &mockWalletRepo{wallets: make(map[uuid.UUID]*models.Wallet)}
}

func (m *mockWalletRepo) GetOrCreate(_ context.Context, userID uuid.UUID) (*models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[userID]
	if !ok {
		w = &models.Wallet{UserID: userID, Balance: decimal.Zero}
		m.wallets[userID] = w
	}
	cp := *w
	return &cp, nil
}

func (m *mockWalletRepo) Append(_ context.Context, txn *models.WalletTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflictsLeft > 0 {
		m.conflictsLeft--
		return repository.ErrBalanceConflict
	}
	w, ok := m.wallets[txn.UserID]
	if !ok || !w.Balance.Equal(txn.BalanceBefore) {
		return repository.ErrBalanceConflict
	}
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	w.Balance = txn.BalanceAfter
	m.txns = append(m.txns, *txn)
	return nil
}

func (m *mockWalletRepo) ListTransactions(_ context.Context, userID uuid.UUID, _, _ int) ([]models.WalletTransaction, int64, error) {
	all, _ := m.AllTransactions(context.Background(), userID)
	return all, int64(len(all)), nil
}

func (m *mockWalletRepo) AllTransactions(_ context.Context, userID uuid.UUID) ([]models.WalletTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.WalletTransaction
	for _, t := range m.txns {
		if t.UserID == userID {
			result = append(result, t)
		}
	}
	return result, nil
}

func (m *mockWalletRepo) OrderTotals(_ context.Context, userID, orderID uuid.UUID) (decimal.Decimal, decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	debits, refunds := decimal.Zero, decimal.Zero
	for _, t := range m.txns {
		if t.UserID != userID || t.OrderID == nil || *t.OrderID != orderID {
			continue
		}
		switch t.Type {
		case models.TransactionTypeDebit:
			debits = debits.Add(t.Amount)
		case models.TransactionTypeRefund:
			refunds = refunds.Add(t.Amount)
		}
	}
	return debits, refunds, nil
}

// --- Mock Promotion Repository ---

type mockPromotionRepo struct {
	mu     sync.Mutex
	promos map[uuid.UUID]*models.Promotion
}

func newMockPromotionRepo() *mockPromotionRepo {
	return &mockPromotionRepo{promos: make(map[uuid.UUID]*models.Promotion)}
}

func (m *mockPromotionRepo) Create(_ context.Context, promo *models.Promotion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.promos {
		if p.Code == promo.Code {
			return repository.ErrDuplicate
		}
	}
	if promo.ID == uuid.Nil {
		promo.ID = uuid.New()
	}
	cp := *promo
	m.promos[promo.ID] = &cp
	return nil
}

func (m *mockPromotionRepo) FindByCode(_ context.Context, code string) (*models.Promotion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.promos {
		if strings.EqualFold(p.Code, code) && p.IsActive {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockPromotionRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Promotion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.promos[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPromotionRepo) ConsumeSlot(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.promos[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if !p.IsActive {
		return false, nil
	}
	if p.UsageLimit > 0 && p.UsedCount >= p.UsageLimit {
		return false, nil
	}
	p.UsedCount++
	return true, nil
}

func (m *mockPromotionRepo) ReleaseSlot(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.promos[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.UsedCount > 0 {
		p.UsedCount--
	}
	return nil
}

func (m *mockPromotionRepo) Deactivate(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.promos {
		if strings.EqualFold(p.Code, code) {
			p.IsActive = false
			return nil
		}
	}
	return repository.ErrNotFound
}

// --- Mock Delivery Repository ---

type mockDeliveryRepo struct {
	mu        sync.Mutex
	trackings map[uuid.UUID]*models.DeliveryTracking
}

func newMockDeliveryRepo() *mockDeliveryRepo {
	return &mockDeliveryRepo{trackings: make(map[uuid.UUID]*models.DeliveryTracking)}
}

func (m *mockDeliveryRepo) Create(_ context.Context, tracking *models.DeliveryTracking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.trackings {
		if t.OrderID == tracking.OrderID {
			return repository.ErrDuplicate
		}
	}
	if tracking.ID == uuid.Nil {
		tracking.ID = uuid.New()
	}
	cp := *tracking
	m.trackings[tracking.ID] = &cp
	return nil
}

func (m *mockDeliveryRepo) FindByID(_ context.Context, id uuid.UUID) (*models.DeliveryTracking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trackings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockDeliveryRepo) FindByOrderID(_ context.Context, orderID uuid.UUID) (*models.DeliveryTracking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.trackings {
		if t.OrderID == orderID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockDeliveryRepo) AdvanceStatus(_ context.Context, id uuid.UUID, from, to models.DeliveryStatus, lat, lng *float64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trackings[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if t.Status != from {
		return false, nil
	}
	t.Status = to
	t.Latitude = lat
	t.Longitude = lng
	return true, nil
}

// --- Mock Review Repository ---

// mockReviewRepo applies the aggregate update against the shared catalog
// mock, mirroring the single-transaction write of the real repository.
type mockReviewRepo struct {
	mu      sync.Mutex
	reviews map[uuid.UUID]*models.Review
	catalog *mockCatalogRepo
}

func newMockReviewRepo(catalog *mockCatalogRepo) *mockReviewRepo {
	return &mockReviewRepo{reviews: make(map[uuid.UUID]*models.Review), catalog: catalog}
}

func (m *mockReviewRepo) FindByOrderID(_ context.Context, orderID uuid.UUID) (*models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reviews {
		if r.OrderID == orderID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockReviewRepo) CreateWithRating(_ context.Context, review *models.Review, averageRating float64, totalReviews int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reviews {
		if r.OrderID == review.OrderID {
			return repository.ErrDuplicate
		}
	}
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	cp := *review
	m.reviews[review.ID] = &cp
	m.catalog.setRating(review.RestaurantID, averageRating, totalReviews)
	return nil
}

// --- Mock Catalog Repository ---

type mockCatalogRepo struct {
	mu          sync.Mutex
	restaurants map[uuid.UUID]*models.Restaurant
	menuItems   map[uuid.UUID]*models.MenuItem
	regions     map[uuid.UUID]*models.Region
}

func newMockCatalogRepo() *mockCatalogRepo {
	return &mockCatalogRepo{
		restaurants: make(map[uuid.UUID]*models.Restaurant),
		menuItems:   make(map[uuid.UUID]*models.MenuItem),
		regions:     make(map[uuid.UUID]*models.Region),
	}
}

func (m *mockCatalogRepo) addRestaurant(r *models.Restaurant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	m.restaurants[r.ID] = r
}

func (m *mockCatalogRepo) addMenuItem(item *models.MenuItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	m.menuItems[item.ID] = item
}

func (m *mockCatalogRepo) setRating(restaurantID uuid.UUID, average float64, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.restaurants[restaurantID]; ok {
		r.AverageRating = average
		r.TotalReviews = total
	}
}

func (m *mockCatalogRepo) GetRestaurant(_ context.Context, id uuid.UUID) (*models.Restaurant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.restaurants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockCatalogRepo) GetMenuItem(_ context.Context, id uuid.UUID) (*models.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.menuItems[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (m *mockCatalogRepo) GetRegion(_ context.Context, id uuid.UUID) (*models.Region, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockCatalogRepo) GetRegionParent(_ context.Context, region *models.Region) (*models.Region, error) {
	if region.ParentID == nil {
		return nil, nil
	}
	return m.GetRegion(context.Background(), *region.ParentID)
}

// --- Mock Kafka Producer ---

type mockProducer struct {
	mu        sync.Mutex
	published []string // message keys in publish order
}

func (m *mockProducer) Publish(_ context.Context, key string, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, key)
	return nil
}

func (m *mockProducer) Close() error { return nil }

func (m *mockProducer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}
