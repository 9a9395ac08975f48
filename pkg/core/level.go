package core

import (
	"fmt"
	"strings"

	"github.com/nikolaydubina/fpdecimal"
)

// levelEntry is one resting order inside a price level's FIFO queue.
type levelEntry struct {
	order *Order
	next  *levelEntry
	prev  *levelEntry
}

// priceLevel aggregates all resting orders at one price. Orders queue in
// strict arrival order; total always equals the sum of the members'
// remaining quantities.
type priceLevel struct {
	price fpdecimal.Decimal
	key   string
	total int64
	head  *levelEntry
	tail  *levelEntry
	byID  map[string]*levelEntry
	next  *priceLevel
	prev  *priceLevel
}

func newPriceLevel(price fpdecimal.Decimal) *priceLevel {
	return &priceLevel{
		price: price,
		key:   price.String(),
		byID:  make(map[string]*levelEntry),
	}
}

// append adds an order to the tail of the FIFO queue.
func (l *priceLevel) append(order *Order) {
	e := &levelEntry{order: order}
	if l.tail == nil {
		l.head = e
		l.tail = e
	} else {
		e.prev = l.tail
		l.tail.next = e
		l.tail = e
	}
	l.byID[order.ID()] = e
	l.total += order.Remaining()
}

// unlink removes an entry from the queue without touching the aggregate.
func (l *priceLevel) unlink(e *levelEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		l.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		l.tail = e.prev
	}
	delete(l.byID, e.order.ID())
}

// sideIndex keeps the aggregated price levels of one side of the book,
// ordered best price first: descending for bids, ascending for asks.
// It is not safe for concurrent use; the owning book serializes access.
type sideIndex struct {
	side   Side
	levels map[string]*priceLevel
	head   *priceLevel
	tail   *priceLevel
	depth  int
}

func newSideIndex(side Side) *sideIndex {
	return &sideIndex{
		side:   side,
		levels: make(map[string]*priceLevel),
	}
}

// better reports whether price a ranks ahead of price b on this side.
func (s *sideIndex) better(a, b fpdecimal.Decimal) bool {
	if s.side == Buy {
		return a.GreaterThan(b)
	}
	return a.LessThan(b)
}

// Add inserts a resting order, creating its price level if absent.
func (s *sideIndex) Add(order *Order) {
	key := order.Price().String()
	if lvl, ok := s.levels[key]; ok {
		lvl.append(order)
		return
	}

	lvl := newPriceLevel(order.Price())
	lvl.append(order)
	s.levels[key] = lvl
	s.depth++

	if s.head == nil {
		s.head = lvl
		s.tail = lvl
		return
	}

	if s.better(lvl.price, s.head.price) {
		lvl.next = s.head
		s.head.prev = lvl
		s.head = lvl
		return
	}
	if !s.better(lvl.price, s.tail.price) {
		lvl.prev = s.tail
		s.tail.next = lvl
		s.tail = lvl
		return
	}
	current := s.head
	for current != nil && !s.better(lvl.price, current.price) {
		current = current.next
	}
	lvl.next = current
	lvl.prev = current.prev
	current.prev.next = lvl
	current.prev = lvl
}

// Reduce lowers the aggregate of the order's level after a fill and, when
// the order is exhausted, unlinks it. An empty level is removed.
func (s *sideIndex) Reduce(order *Order, qty int64) {
	lvl, ok := s.levels[order.Price().String()]
	if !ok {
		panic(fmt.Sprintf("core: reduce on missing level %s", order.Price().String()))
	}
	lvl.total -= qty
	if lvl.total < 0 {
		panic(fmt.Sprintf("core: negative aggregate at level %s", lvl.key))
	}
	if order.Remaining() == 0 {
		if e, ok := lvl.byID[order.ID()]; ok {
			lvl.unlink(e)
		}
	}
	if lvl.total == 0 {
		s.removeLevel(lvl)
	}
}

// Remove deletes a resting order outright (cancel, expiry), subtracting
// its remaining quantity from the aggregate.
func (s *sideIndex) Remove(order *Order) bool {
	lvl, ok := s.levels[order.Price().String()]
	if !ok {
		return false
	}
	e, ok := lvl.byID[order.ID()]
	if !ok {
		return false
	}
	lvl.unlink(e)
	lvl.total -= order.Remaining()
	if lvl.total < 0 {
		panic(fmt.Sprintf("core: negative aggregate at level %s", lvl.key))
	}
	if lvl.total == 0 {
		s.removeLevel(lvl)
	}
	return true
}

func (s *sideIndex) removeLevel(lvl *priceLevel) {
	delete(s.levels, lvl.key)
	s.depth--
	if lvl.prev != nil {
		lvl.prev.next = lvl.next
	} else {
		s.head = lvl.next
	}
	if lvl.next != nil {
		lvl.next.prev = lvl.prev
	} else {
		s.tail = lvl.prev
	}
}

// best returns the level at the front of the side, nil when empty.
func (s *sideIndex) best() *priceLevel {
	return s.head
}

// BestPrice returns the best price of the side, false when empty.
func (s *sideIndex) BestPrice() (fpdecimal.Decimal, bool) {
	if s.head == nil {
		return fpdecimal.Zero, false
	}
	return s.head.price, true
}

// Depth returns the number of populated price levels.
func (s *sideIndex) Depth() int {
	return s.depth
}

// Snapshot returns up to depth levels best-first. depth <= 0 means all.
// An empty side yields an empty, non-nil slice.
func (s *sideIndex) Snapshot(depth int) []Level {
	if depth <= 0 {
		depth = s.depth
	}
	out := make([]Level, 0, depth)
	for lvl := s.head; lvl != nil && len(out) < depth; lvl = lvl.next {
		out = append(out, Level{Price: lvl.price, Size: lvl.total})
	}
	return out
}

// String implements fmt.Stringer interface
func (s *sideIndex) String() string {
	sb := strings.Builder{}
	for lvl := s.head; lvl != nil; lvl = lvl.next {
		sb.WriteString(fmt.Sprintf("\n%s -> qty: %d, orders: %d", lvl.key, lvl.total, len(lvl.byID)))
	}
	return sb.String()
}
