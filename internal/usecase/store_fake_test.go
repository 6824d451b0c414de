package usecase

import (
	"context"
	"errors"
	"maps"
	"sort"
	"sync"
	"time"

	"theater/internal/domain/model"
	repo "theater/internal/repository"

	"github.com/shopspring/decimal"
)

// =====================
// インメモリのストア（WithinTxは直列実行、エラーならロールバック）
// =====================

type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	base   time.Time

	users        map[int64]model.User
	movies       map[int64]model.Movie
	carts        map[int64]model.Cart
	cartItems    map[int64]model.CartItem
	orders       map[int64]model.Order
	orderItems   map[int64]model.OrderItem
	payments     map[int64]model.Payment
	paymentItems map[int64]model.PaymentItem

	failPaymentItems bool
	txCount          int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		base:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		users:        map[int64]model.User{},
		movies:       map[int64]model.Movie{},
		carts:        map[int64]model.Cart{},
		cartItems:    map[int64]model.CartItem{},
		orders:       map[int64]model.Order{},
		orderItems:   map[int64]model.OrderItem{},
		payments:     map[int64]model.Payment{},
		paymentItems: map[int64]model.PaymentItem{},
	}
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

// IDが大きいほど新しい
func (s *fakeStore) stamp(id int64) time.Time {
	return s.base.Add(time.Duration(id) * time.Second)
}

type fakeSnapshot struct {
	nextID       int64
	users        map[int64]model.User
	movies       map[int64]model.Movie
	carts        map[int64]model.Cart
	cartItems    map[int64]model.CartItem
	orders       map[int64]model.Order
	orderItems   map[int64]model.OrderItem
	payments     map[int64]model.Payment
	paymentItems map[int64]model.PaymentItem
}

func (s *fakeStore) snapshot() fakeSnapshot {
	return fakeSnapshot{
		nextID:       s.nextID,
		users:        maps.Clone(s.users),
		movies:       maps.Clone(s.movies),
		carts:        maps.Clone(s.carts),
		cartItems:    maps.Clone(s.cartItems),
		orders:       maps.Clone(s.orders),
		orderItems:   maps.Clone(s.orderItems),
		payments:     maps.Clone(s.payments),
		paymentItems: maps.Clone(s.paymentItems),
	}
}

func (s *fakeStore) restore(snap fakeSnapshot) {
	s.nextID = snap.nextID
	s.users = snap.users
	s.movies = snap.movies
	s.carts = snap.carts
	s.cartItems = snap.cartItems
	s.orders = snap.orders
	s.orderItems = snap.orderItems
	s.payments = snap.payments
	s.paymentItems = snap.paymentItems
}

func (s *fakeStore) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++

	snap := s.snapshot()
	if err := fn(fakeRepos{s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// テストのseed/検査用（ロック付き）
func (s *fakeStore) locked(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

func (s *fakeStore) movieRef(id int64) *model.Movie {
	m, ok := s.movies[id]
	if !ok {
		return nil
	}
	return &m
}

func (s *fakeStore) hydrateOrder(o model.Order) model.Order {
	o.Items = []model.OrderItem{}
	for _, it := range s.orderItems {
		if it.OrderID == o.ID {
			it.Movie = s.movieRef(it.MovieID)
			o.Items = append(o.Items, it)
		}
	}
	sort.Slice(o.Items, func(i, j int) bool { return o.Items[i].ID < o.Items[j].ID })
	return o
}

func (s *fakeStore) hydratePayment(p model.Payment) model.Payment {
	p.Items = []model.PaymentItem{}
	for _, it := range s.paymentItems {
		if it.PaymentID == p.ID {
			it.Movie = s.movieRef(it.MovieID)
			p.Items = append(p.Items, it)
		}
	}
	sort.Slice(p.Items, func(i, j int) bool { return p.Items[i].ID < p.Items[j].ID })
	if o, ok := s.orders[p.OrderID]; ok {
		p.Order = &o
	}
	return p
}

func paginate[T any](items []T, page, limit int) []T {
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

type fakeRepos struct{ s *fakeStore }

func (r fakeRepos) Orders() repo.OrderRepository             { return fakeOrders(r) }
func (r fakeRepos) OrderItems() repo.OrderItemRepository     { return fakeOrderItems(r) }
func (r fakeRepos) Carts() repo.CartRepository               { return fakeCarts(r) }
func (r fakeRepos) CartItems() repo.CartItemRepository       { return fakeCarts(r) }
func (r fakeRepos) Movies() repo.MovieRepository             { return fakeMovies(r) }
func (r fakeRepos) Payments() repo.PaymentRepository         { return fakePayments(r) }
func (r fakeRepos) PaymentItems() repo.PaymentItemRepository { return fakePaymentItems(r) }

// ---- orders ----

type fakeOrders struct{ s *fakeStore }

func (f fakeOrders) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	o, ok := f.s.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return f.s.hydrateOrder(o), nil
}

func (f fakeOrders) FindByIDForUser(ctx context.Context, orderID int64, userID int64) (model.Order, error) {
	o, ok := f.s.orders[orderID]
	if !ok || o.UserID != userID {
		return model.Order{}, repo.ErrNotFound
	}
	return f.s.hydrateOrder(o), nil
}

func (f fakeOrders) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	var list []model.Order
	for _, o := range f.s.orders {
		if o.UserID == userID {
			list = append(list, f.s.hydrateOrder(o))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return paginate(list, page, limit), int64(len(list)), nil
}

func (f fakeOrders) Create(ctx context.Context, order model.Order) (int64, error) {
	order.ID = f.s.id()
	order.CreatedAt = f.s.stamp(order.ID)
	order.UpdatedAt = order.CreatedAt
	order.Items = nil
	f.s.orders[order.ID] = order
	return order.ID, nil
}

func (f fakeOrders) UpdateStatusIf(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus) (bool, error) {
	o, ok := f.s.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	f.s.orders[orderID] = o
	return true, nil
}

func (f fakeOrders) PurchasedMovieIDs(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	set := map[int64]struct{}{}
	for _, it := range f.s.orderItems {
		o := f.s.orders[it.OrderID]
		if o.UserID == userID && o.Status == model.OrderStatusPaid {
			set[it.MovieID] = struct{}{}
		}
	}
	return set, nil
}

func (f fakeOrders) HasPendingOrderFor(ctx context.Context, userID int64, movieIDs []int64) (bool, error) {
	want := map[int64]bool{}
	for _, id := range movieIDs {
		want[id] = true
	}
	for _, it := range f.s.orderItems {
		o := f.s.orders[it.OrderID]
		if o.UserID == userID && o.Status == model.OrderStatusPending && want[it.MovieID] {
			return true, nil
		}
	}
	return false, nil
}

type fakeOrderItems struct{ s *fakeStore }

func (f fakeOrderItems) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	for _, it := range items {
		it.ID = f.s.id()
		it.OrderID = orderID
		it.Movie = nil
		f.s.orderItems[it.ID] = it
	}
	return nil
}

func (f fakeOrderItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	return f.s.hydrateOrder(model.Order{ID: orderID}).Items, nil
}

// ---- carts ----

type fakeCarts struct{ s *fakeStore }

func (f fakeCarts) FindByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	for _, c := range f.s.carts {
		if c.UserID == userID {
			return c, nil
		}
	}
	return model.Cart{}, repo.ErrNotFound
}

func (f fakeCarts) GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	if c, err := f.FindByUserID(ctx, userID); err == nil {
		return c, nil
	}
	c := model.Cart{ID: f.s.id(), UserID: userID}
	f.s.carts[c.ID] = c
	return c, nil
}

func (f fakeCarts) LockByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	return f.FindByUserID(ctx, userID)
}

func (f fakeCarts) Clear(ctx context.Context, cartID int64) error {
	for id, it := range f.s.cartItems {
		if it.CartID == cartID {
			delete(f.s.cartItems, id)
		}
	}
	return nil
}

func (f fakeCarts) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	items := []model.CartItem{}
	for _, it := range f.s.cartItems {
		if it.CartID == cartID {
			it.Movie = f.s.movieRef(it.MovieID)
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (f fakeCarts) Add(ctx context.Context, cartID int64, movieID int64) (model.CartItem, error) {
	for _, it := range f.s.cartItems {
		if it.CartID == cartID && it.MovieID == movieID {
			return model.CartItem{}, repo.ErrAlreadyExists
		}
	}
	it := model.CartItem{ID: f.s.id(), CartID: cartID, MovieID: movieID}
	it.AddedAt = f.s.stamp(it.ID)
	f.s.cartItems[it.ID] = it
	return it, nil
}

func (f fakeCarts) DeleteFromCart(ctx context.Context, cartID int64, cartItemID int64) error {
	it, ok := f.s.cartItems[cartItemID]
	if !ok || it.CartID != cartID {
		return repo.ErrNotFound
	}
	delete(f.s.cartItems, cartItemID)
	return nil
}

// ---- movies ----

type fakeMovies struct{ s *fakeStore }

func (f fakeMovies) FindByID(ctx context.Context, id int64) (model.Movie, error) {
	m, ok := f.s.movies[id]
	if !ok {
		return model.Movie{}, repo.ErrNotFound
	}
	return m, nil
}

func (f fakeMovies) Create(ctx context.Context, m model.Movie) (model.Movie, error) {
	m.ID = f.s.id()
	f.s.movies[m.ID] = m
	return m, nil
}

// ---- payments ----

type fakePayments struct{ s *fakeStore }

func (f fakePayments) Create(ctx context.Context, p model.Payment) (int64, error) {
	for _, ex := range f.s.payments {
		if ex.OrderID == p.OrderID {
			return 0, repo.ErrAlreadyExists
		}
	}
	p.ID = f.s.id()
	p.CreatedAt = f.s.stamp(p.ID)
	p.Items = nil
	p.Order = nil
	f.s.payments[p.ID] = p
	return p.ID, nil
}

func (f fakePayments) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Payment, int64, error) {
	var list []model.Payment
	for _, p := range f.s.payments {
		if p.UserID == userID {
			list = append(list, f.s.hydratePayment(p))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return paginate(list, page, limit), int64(len(list)), nil
}

func (f fakePayments) FindByIDForUser(ctx context.Context, paymentID int64, userID int64) (model.Payment, error) {
	p, ok := f.s.payments[paymentID]
	if !ok || p.UserID != userID {
		return model.Payment{}, repo.ErrNotFound
	}
	return f.s.hydratePayment(p), nil
}

func (f fakePayments) FindByOrderID(ctx context.Context, orderID int64) (model.Payment, error) {
	for _, p := range f.s.payments {
		if p.OrderID == orderID {
			return p, nil
		}
	}
	return model.Payment{}, repo.ErrNotFound
}

type fakePaymentItems struct{ s *fakeStore }

func (f fakePaymentItems) CreateBulk(ctx context.Context, paymentID int64, items []model.PaymentItem) error {
	if f.s.failPaymentItems {
		return errors.New("insert payment_items: connection reset")
	}
	for _, it := range items {
		it.ID = f.s.id()
		it.PaymentID = paymentID
		it.Movie = nil
		f.s.paymentItems[it.ID] = it
	}
	return nil
}

// ---- users（Tx外で使う）----

type fakeUsers struct{ s *fakeStore }

func (f fakeUsers) Create(ctx context.Context, user *model.User) error {
	f.s.locked(func() {
		user.ID = f.s.id()
		f.s.users[user.ID] = *user
	})
	return nil
}

func (f fakeUsers) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	var out *model.User
	f.s.locked(func() {
		if u, ok := f.s.users[userID]; ok {
			out = &u
		}
	})
	return out, nil
}

var (
	_ repo.TransactionManager = (*fakeStore)(nil)
	_ repo.UserRepository     = fakeUsers{}
)

// =====================
// seed helpers
// =====================

func (s *fakeStore) seedUser(email string, active bool) int64 {
	var id int64
	s.locked(func() {
		id = s.id()
		s.users[id] = model.User{ID: id, Email: email, IsActive: active}
	})
	return id
}

func (s *fakeStore) seedMovie(name string, price string, active bool, status model.MovieStatus) int64 {
	var id int64
	s.locked(func() {
		id = s.id()
		s.movies[id] = model.Movie{
			ID:       id,
			Name:     name,
			Price:    decimal.RequireFromString(price),
			IsActive: active,
			Status:   status,
		}
	})
	return id
}

func (s *fakeStore) seedReleased(name, price string) int64 {
	return s.seedMovie(name, price, true, model.MovieStatusReleased)
}

func (s *fakeStore) setMovie(id int64, fn func(m *model.Movie)) {
	s.locked(func() {
		m := s.movies[id]
		fn(&m)
		s.movies[id] = m
	})
}

func (s *fakeStore) fillCart(userID int64, movieIDs ...int64) {
	_ = s.WithinTx(context.Background(), func(r repo.TxRepos) error {
		cart, _ := r.Carts().GetOrCreateByUserID(context.Background(), userID)
		for _, id := range movieIDs {
			_, _ = r.CartItems().Add(context.Background(), cart.ID, id)
		}
		return nil
	})
}

// 直接ステータス付きの注文を作る
func (s *fakeStore) seedOrder(userID int64, status model.OrderStatus, movieIDs ...int64) int64 {
	var orderID int64
	_ = s.WithinTx(context.Background(), func(r repo.TxRepos) error {
		total := decimal.Zero
		items := make([]model.OrderItem, 0, len(movieIDs))
		for _, id := range movieIDs {
			price := s.movies[id].Price
			total = total.Add(price)
			items = append(items, model.OrderItem{MovieID: id, PriceAtOrder: price})
		}
		orderID, _ = r.Orders().Create(context.Background(), model.Order{UserID: userID, Status: status, TotalAmount: total})
		return r.OrderItems().CreateBulk(context.Background(), orderID, items)
	})
	return orderID
}

func (s *fakeStore) orderStatus(orderID int64) model.OrderStatus {
	var st model.OrderStatus
	s.locked(func() { st = s.orders[orderID].Status })
	return st
}

func (s *fakeStore) paymentsFor(orderID int64) []model.Payment {
	var out []model.Payment
	s.locked(func() {
		for _, p := range s.payments {
			if p.OrderID == orderID {
				out = append(out, s.hydratePayment(p))
			}
		}
	})
	return out
}

func (s *fakeStore) countPaymentItems() int {
	var n int
	s.locked(func() { n = len(s.paymentItems) })
	return n
}

func (s *fakeStore) countOrders(userID int64) int {
	var n int
	s.locked(func() {
		for _, o := range s.orders {
			if o.UserID == userID {
				n++
			}
		}
	})
	return n
}
