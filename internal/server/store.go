package server

import (
	"context"
	"sort"

	"pizzaservice/internal/shared"
)

// Store is the persistence the connection handlers need. Each call is its
// own transaction.
type Store interface {
	// PlaceOrder persists the order and all of its lines atomically and
	// returns the new order id. Ids are strictly increasing.
	PlaceOrder(ctx context.Context, form shared.OrderForm) (int64, error)
	// Receipt returns nil, nil when orderID does not exist.
	Receipt(ctx context.Context, orderID int64) (*shared.ReceiptData, error)
	// PizzaIDs returns the current catalog.
	PizzaIDs(ctx context.Context) (map[int64]struct{}, error)
}

// aggregateLines folds raw order rows (one per ordered pizza) into one line
// per pizza id, ordered by pizza id.
func aggregateLines(rows []shared.ReceiptLine) []shared.ReceiptLine {
	byID := make(map[int64]*shared.ReceiptLine, len(rows))
	for _, r := range rows {
		if line, ok := byID[r.PizzaID]; ok {
			line.Count++
			continue
		}
		line := r
		line.Count = 1
		byID[r.PizzaID] = &line
	}

	out := make([]shared.ReceiptLine, 0, len(byID))
	for _, line := range byID {
		out = append(out, *line)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PizzaID < out[j].PizzaID })
	return out
}
