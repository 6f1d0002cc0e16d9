package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/shop-service-go/internal/user"
)

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type Repository interface {
	CreateOrder(ctx context.Context, userID string, lines []Line) (string, error)
	GetByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context) ([]Order, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// CreateOrder runs the whole order transaction as one serializable unit of
// work: verify the user, lock the product rows, check stock, compute the
// total, decrement stock and insert the order with its items. Any failure
// rolls the transaction back, so no partial decrement or half-written order
// is ever visible. It returns the id of the committed order.
func (r *PostgresRepository) CreateOrder(ctx context.Context, userID string, lines []Line) (string, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id=$1)`, userID).Scan(&exists); err != nil {
		return "", fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return "", &NotFoundError{Entity: "User", ID: userID}
	}

	snapshots, err := lockProducts(ctx, tx, lines)
	if err != nil {
		return "", err
	}

	requested := make(map[string]int, len(lines))
	for _, ln := range lines {
		requested[ln.ProductID] = ln.Quantity
	}

	// Snapshots arrive in canonical id order, so the first insufficient
	// product is deterministic for a given request.
	byID := make(map[string]ProductSnapshot, len(snapshots))
	for _, s := range snapshots {
		byID[s.ID] = s
		if s.Stock < requested[s.ID] {
			return "", &InsufficientStockError{
				ProductID: s.ID,
				Available: s.Stock,
				Requested: requested[s.ID],
			}
		}
	}

	total := decimal.Zero
	items := make([]Item, 0, len(lines))
	for _, ln := range lines {
		snap := byID[ln.ProductID]
		total = total.Add(snap.Price.Mul(decimal.NewFromInt(int64(ln.Quantity))))
		items = append(items, Item{
			ID:        uuid.NewString(),
			ProductID: ln.ProductID,
			Quantity:  ln.Quantity,
			UnitPrice: snap.Price,
		})
	}

	for _, ln := range lines {
		if _, err := tx.Exec(ctx,
			`UPDATE products SET stock = stock - $2 WHERE id = $1`,
			ln.ProductID, ln.Quantity,
		); err != nil {
			return "", fmt.Errorf("decrement stock: %w", err)
		}
	}

	orderID := uuid.NewString()
	createdAt := time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`INSERT INTO orders (id, user_id, total_amount, created_at) VALUES ($1, $2, $3, $4)`,
		orderID, userID, total.String(), createdAt,
	); err != nil {
		return "", fmt.Errorf("insert order: %w", err)
	}

	for _, it := range items {
		if _, err := tx.Exec(ctx,
			`INSERT INTO order_items (id, order_id, product_id, quantity, unit_price) VALUES ($1, $2, $3, $4, $5)`,
			it.ID, orderID, it.ProductID, it.Quantity, it.UnitPrice.String(),
		); err != nil {
			return "", fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return orderID, nil
}

// lockProducts acquires a FOR UPDATE lock on every requested product row and
// returns the post-lock snapshots in canonical id order. Ids are sorted
// before locking so concurrent transactions over overlapping product sets
// always acquire row locks in the same global order; relaxing the ordering
// reintroduces a deadlock hazard for multi-product orders.
func lockProducts(ctx context.Context, tx pgx.Tx, lines []Line) ([]ProductSnapshot, error) {
	ids := make([]string, len(lines))
	for i, ln := range lines {
		ids[i] = ln.ProductID
	}
	sort.Strings(ids)

	rows, err := tx.Query(ctx, `
		SELECT id, price::text, stock
		FROM products
		WHERE id = ANY($1::uuid[])
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	snapshots := make([]ProductSnapshot, 0, len(ids))
	for rows.Next() {
		var (
			s     ProductSnapshot
			price string
		)
		if err := rows.Scan(&s.ID, &price, &s.Stock); err != nil {
			return nil, fmt.Errorf("scan locked product: %w", err)
		}
		d, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", price, err)
		}
		s.Price = d
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lock rows: %w", err)
	}

	if len(snapshots) != len(ids) {
		found := make(map[string]bool, len(snapshots))
		for _, s := range snapshots {
			found[s.ID] = true
		}
		for _, id := range ids {
			if !found[id] {
				return nil, &NotFoundError{Entity: "Product", ID: id}
			}
		}
	}
	return snapshots, nil
}

// GetByID returns the committed order with its user and line items.
// Pure read; trusts the committed state.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Order, error) {
	var (
		o     Order
		u     user.User
		total string
	)
	row := r.pool.QueryRow(ctx, `
		SELECT o.id, o.user_id, o.total_amount::text, o.created_at,
		       u.id, u.name, u.email, u.created_at
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE o.id = $1
	`, id)
	if err := row.Scan(&o.ID, &o.UserID, &total, &o.CreatedAt, &u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "Order", ID: id}
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	d, err := decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("parse total %q: %w", total, err)
	}
	o.TotalAmount = d
	o.User = &u

	items, err := r.loadItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

// List returns all orders, newest first, each with its user and line items.
func (r *PostgresRepository) List(ctx context.Context) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.id, o.user_id, o.total_amount::text, o.created_at,
		       u.id, u.name, u.email, u.created_at
		FROM orders o
		JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var (
			o     Order
			u     user.User
			total string
		)
		if err := rows.Scan(&o.ID, &o.UserID, &total, &o.CreatedAt, &u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		d, err := decimal.NewFromString(total)
		if err != nil {
			return nil, fmt.Errorf("parse total %q: %w", total, err)
		}
		o.TotalAmount = d
		o.User = &u
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	for i := range orders {
		items, err := r.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (r *PostgresRepository) loadItems(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, quantity, unit_price::text
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			it    Item
			price string
		)
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Quantity, &price); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		d, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("parse unit price %q: %w", price, err)
		}
		it.UnitPrice = d
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("item rows: %w", err)
	}
	return items, nil
}
