package server

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"pizzaservice/internal/shared"
)

type SQLiteStore struct {
	DB *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{DB: db}
}

func (s *SQLiteStore) PlaceOrder(ctx context.Context, form shared.OrderForm) (int64, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "place order: begin")
	}
	defer tx.Rollback()

	var timestamp string
	if err := tx.QueryRowContext(ctx, `SELECT datetime('now')`).Scan(&timestamp); err != nil {
		return 0, errors.Wrap(err, "place order: timestamp")
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO "order" (address, name, timestamp) VALUES (?, ?, ?)`,
		form.Address, form.Name, timestamp,
	)
	if err != nil {
		return 0, errors.Wrap(err, "place order: insert order")
	}
	orderID, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "place order: order id")
	}

	for _, pizzaID := range form.PizzaIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO order_pizza (order_id, pizza_id) VALUES (?, ?)`,
			orderID, pizzaID,
		); err != nil {
			return 0, errors.Wrapf(err, "place order: insert pizza %d", pizzaID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "place order: commit")
	}
	return orderID, nil
}

func (s *SQLiteStore) Receipt(ctx context.Context, orderID int64) (*shared.ReceiptData, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "receipt: begin")
	}
	defer tx.Rollback()

	var data shared.ReceiptData
	row := tx.QueryRowContext(ctx,
		`SELECT address, name, timestamp FROM "order" WHERE order_id = ?`, orderID,
	)
	if err := row.Scan(&data.Address, &data.Name, &data.Timestamp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "receipt: order")
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT p.pizza_id, p.price, p.description
		 FROM order_pizza AS op
		 INNER JOIN pizza AS p ON p.pizza_id = op.pizza_id
		 WHERE op.order_id = ?`, orderID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "receipt: lines")
	}
	defer rows.Close()

	var raw []shared.ReceiptLine
	for rows.Next() {
		var l shared.ReceiptLine
		if err := rows.Scan(&l.PizzaID, &l.Price, &l.Description); err != nil {
			return nil, errors.Wrap(err, "receipt: scan line")
		}
		raw = append(raw, l)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "receipt: lines")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "receipt: commit")
	}
	data.Lines = aggregateLines(raw)
	return &data, nil
}

func (s *SQLiteStore) PizzaIDs(ctx context.Context) (map[int64]struct{}, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "pizza ids: begin")
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT pizza_id FROM pizza`)
	if err != nil {
		return nil, errors.Wrap(err, "pizza ids: query")
	}
	defer rows.Close()

	ids := map[int64]struct{}{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "pizza ids: scan")
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "pizza ids: query")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "pizza ids: commit")
	}
	return ids, nil
}

// CatalogEntry is one row of the pizza table, used by operator tooling.
type CatalogEntry struct {
	PizzaID     int64
	Description string
	Price       float64
}

func (s *SQLiteStore) Catalog(ctx context.Context) ([]CatalogEntry, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT pizza_id, description, price FROM pizza ORDER BY pizza_id`)
	if err != nil {
		return nil, errors.Wrap(err, "catalog")
	}
	defer rows.Close()

	var out []CatalogEntry
	for rows.Next() {
		var e CatalogEntry
		if err := rows.Scan(&e.PizzaID, &e.Description, &e.Price); err != nil {
			return nil, errors.Wrap(err, "catalog: scan")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) OrderCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM "order"`).Scan(&n)
	return n, errors.Wrap(err, "order count")
}

// Tables lists the user tables of the database by name.
func (s *SQLiteStore) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "tables")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "tables: scan")
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "tables")
	}
	return names, nil
}
