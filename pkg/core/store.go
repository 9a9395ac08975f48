package core

// OrderStore owns the order records of one book. Orders that reached a
// terminal status stay queryable but are dropped from the open set so the
// matcher and the expiry sweep never see them. Access is serialized by
// the owning book.
type OrderStore struct {
	orders   map[string]*Order
	open     map[string]*Order
	byTrader map[string]map[string]*Order
}

// NewOrderStore creates an empty store.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:   make(map[string]*Order),
		open:     make(map[string]*Order),
		byTrader: make(map[string]map[string]*Order),
	}
}

// Put records a new order. Terminal orders are recorded as history only.
func (s *OrderStore) Put(order *Order) {
	s.orders[order.ID()] = order
	if !order.IsTerminal() {
		s.open[order.ID()] = order
	}
	traderOrders, ok := s.byTrader[order.Trader()]
	if !ok {
		traderOrders = make(map[string]*Order)
		s.byTrader[order.Trader()] = traderOrders
	}
	traderOrders[order.ID()] = order
}

// Get returns an order by ID, historical orders included.
func (s *OrderStore) Get(orderID string) *Order {
	return s.orders[orderID]
}

// Retire drops an order from the open set once it turns terminal.
func (s *OrderStore) Retire(order *Order) {
	delete(s.open, order.ID())
}

// Open returns all non-terminal orders. The slice is a copy; callers may
// mutate order state while iterating.
func (s *OrderStore) Open() []*Order {
	out := make([]*Order, 0, len(s.open))
	for _, o := range s.open {
		out = append(out, o)
	}
	return out
}

// OpenCount returns the number of non-terminal orders.
func (s *OrderStore) OpenCount() int {
	return len(s.open)
}

// OpenByTrader returns the trader's non-terminal orders.
func (s *OrderStore) OpenByTrader(trader string) []*Order {
	out := make([]*Order, 0)
	for _, o := range s.byTrader[trader] {
		if !o.IsTerminal() {
			out = append(out, o)
		}
	}
	return out
}
