package order

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestCreateOrder_Success(t *testing.T) {
	ctx := context.Background()
	pool := newMockPool(
		[]string{testUserID},
		map[string]mockProduct{
			testProdOne: {price: "50.00", stock: 10},
			testProdTwo: {price: "150.00", stock: 3},
		},
	)
	repo := NewPostgresRepository(pool)

	orderID, err := repo.CreateOrder(ctx, testUserID, []Line{
		{ProductID: testProdOne, Quantity: 3},
		{ProductID: testProdTwo, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if orderID == "" {
		t.Fatalf("expected order id")
	}

	tx := pool.lastTx
	if tx == nil || !tx.committed {
		t.Fatalf("transaction state incorrect: %+v", tx)
	}
	if tx.isoLevel != pgx.Serializable {
		t.Fatalf("expected serializable isolation, got %q", tx.isoLevel)
	}

	if got := pool.products[testProdOne].stock; got != 7 {
		t.Fatalf("stock for %s not decremented, got %d", testProdOne, got)
	}
	if got := pool.products[testProdTwo].stock; got != 2 {
		t.Fatalf("stock for %s not decremented, got %d", testProdTwo, got)
	}

	if len(tx.orders) != 1 {
		t.Fatalf("expected one inserted order, got %d", len(tx.orders))
	}
	if tx.orders[0].total != "300.00" {
		t.Fatalf("total mismatch: %s", tx.orders[0].total)
	}
	if len(tx.items) != 2 {
		t.Fatalf("expected two inserted items, got %d", len(tx.items))
	}
	if tx.items[0].productID != testProdOne || tx.items[0].quantity != 3 || tx.items[0].unitPrice != "50.00" {
		t.Fatalf("unexpected first item: %+v", tx.items[0])
	}
	if tx.items[1].productID != testProdTwo || tx.items[1].quantity != 1 || tx.items[1].unitPrice != "150.00" {
		t.Fatalf("unexpected second item: %+v", tx.items[1])
	}
}

func TestCreateOrder_LocksInCanonicalOrder(t *testing.T) {
	ctx := context.Background()
	pool := newMockPool(
		[]string{testUserID},
		map[string]mockProduct{
			testProdOne: {price: "10.00", stock: 5},
			testProdTwo: {price: "20.00", stock: 5},
		},
	)
	repo := NewPostgresRepository(pool)

	// Request order is reversed; lock acquisition must still be sorted.
	_, err := repo.CreateOrder(ctx, testUserID, []Line{
		{ProductID: testProdTwo, Quantity: 1},
		{ProductID: testProdOne, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	locked := pool.lastTx.lockedIDs
	if len(locked) != 1 {
		t.Fatalf("expected one lock query, got %d", len(locked))
	}
	if locked[0][0] != testProdOne || locked[0][1] != testProdTwo {
		t.Fatalf("lock order not canonical: %v", locked[0])
	}
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	ctx := context.Background()
	pool := newMockPool(
		[]string{testUserID},
		map[string]mockProduct{
			testProdOne: {price: "50.00", stock: 2},
		},
	)
	repo := NewPostgresRepository(pool)

	_, err := repo.CreateOrder(ctx, testUserID, []Line{{ProductID: testProdOne, Quantity: 5}})
	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.ProductID != testProdOne || stockErr.Available != 2 || stockErr.Requested != 5 {
		t.Fatalf("unexpected error detail: %+v", stockErr)
	}

	if pool.lastTx.committed || !pool.lastTx.rolledBack {
		t.Fatalf("expected rollback, got %+v", pool.lastTx)
	}
	if pool.products[testProdOne].stock != 2 {
		t.Fatalf("stock mutated despite failure: %d", pool.products[testProdOne].stock)
	}
	if len(pool.lastTx.orders) != 0 {
		t.Fatalf("order inserted despite failure")
	}
}

func TestCreateOrder_FirstInsufficientInCanonicalOrder(t *testing.T) {
	ctx := context.Background()
	pool := newMockPool(
		[]string{testUserID},
		map[string]mockProduct{
			testProdOne: {price: "10.00", stock: 0},
			testProdTwo: {price: "20.00", stock: 0},
		},
	)
	repo := NewPostgresRepository(pool)

	_, err := repo.CreateOrder(ctx, testUserID, []Line{
		{ProductID: testProdTwo, Quantity: 1},
		{ProductID: testProdOne, Quantity: 1},
	})
	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.ProductID != testProdOne {
		t.Fatalf("expected first product in canonical order, got %s", stockErr.ProductID)
	}
}

func TestCreateOrder_ProductNotFound(t *testing.T) {
	ctx := context.Background()
	pool := newMockPool(
		[]string{testUserID},
		map[string]mockProduct{
			testProdTwo: {price: "20.00", stock: 5},
		},
	)
	repo := NewPostgresRepository(pool)

	_, err := repo.CreateOrder(ctx, testUserID, []Line{
		{ProductID: testProdTwo, Quantity: 1},
		{ProductID: testProdOne, Quantity: 1},
	})
	var nfErr *NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nfErr.Entity != "Product" || nfErr.ID != testProdOne {
		t.Fatalf("unexpected not-found detail: %+v", nfErr)
	}
	if pool.products[testProdTwo].stock != 5 {
		t.Fatalf("valid product stock changed: %d", pool.products[testProdTwo].stock)
	}
}

func TestCreateOrder_UserNotFound(t *testing.T) {
	ctx := context.Background()
	pool := newMockPool(
		nil,
		map[string]mockProduct{
			testProdOne: {price: "10.00", stock: 5},
		},
	)
	repo := NewPostgresRepository(pool)

	_, err := repo.CreateOrder(ctx, testUserID, []Line{{ProductID: testProdOne, Quantity: 1}})
	var nfErr *NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nfErr.Entity != "User" || nfErr.ID != testUserID {
		t.Fatalf("unexpected not-found detail: %+v", nfErr)
	}
	if len(pool.lastTx.lockedIDs) != 0 {
		t.Fatalf("product lock attempted for unknown user")
	}
}

func TestCreateOrder_DecrementFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	pool := newMockPool(
		[]string{testUserID},
		map[string]mockProduct{
			testProdOne: {price: "10.00", stock: 5},
		},
	)
	pool.execErr = "UPDATE products"
	repo := NewPostgresRepository(pool)

	if _, err := repo.CreateOrder(ctx, testUserID, []Line{{ProductID: testProdOne, Quantity: 1}}); err == nil {
		t.Fatalf("expected exec error")
	}
	if !pool.lastTx.rolledBack || pool.lastTx.committed {
		t.Fatalf("expected rollback after exec failure")
	}
	if pool.products[testProdOne].stock != 5 {
		t.Fatalf("stock changed after exec failure: %d", pool.products[testProdOne].stock)
	}
}

func TestCreateOrder_CommitFailureDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	pool := newMockPool(
		[]string{testUserID},
		map[string]mockProduct{
			testProdOne: {price: "10.00", stock: 5},
		},
	)
	pool.commitErr = errors.New("commit fail")
	repo := NewPostgresRepository(pool)

	if _, err := repo.CreateOrder(ctx, testUserID, []Line{{ProductID: testProdOne, Quantity: 1}}); err == nil {
		t.Fatalf("expected commit error")
	}
	if pool.products[testProdOne].stock != 5 {
		t.Fatalf("stock changed after commit failure: %d", pool.products[testProdOne].stock)
	}
	if !pool.lastTx.rolledBack {
		t.Fatalf("rollback not invoked after commit failure")
	}
}

func TestCreateOrder_BeginFailure(t *testing.T) {
	pool := newMockPool(nil, nil)
	pool.beginErr = errors.New("cannot begin")
	repo := NewPostgresRepository(pool)

	if _, err := repo.CreateOrder(context.Background(), testUserID, []Line{{ProductID: testProdOne, Quantity: 1}}); err == nil {
		t.Fatalf("expected begin error")
	}
}

// --- mocks ---

type mockProduct struct {
	price string
	stock int
}

type mockPool struct {
	users    map[string]bool
	products map[string]*mockProduct

	beginErr  error
	execErr   string // SQL substring that should fail
	commitErr error

	lastTx *mockTx
}

func newMockPool(users []string, products map[string]mockProduct) *mockPool {
	p := &mockPool{
		users:    make(map[string]bool, len(users)),
		products: make(map[string]*mockProduct, len(products)),
	}
	for _, u := range users {
		p.users[u] = true
	}
	for id, prod := range products {
		cp := prod
		p.products[id] = &cp
	}
	return p
}

func (p *mockPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("pool query not supported in mock")
}

func (p *mockPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return mockRow{err: errors.New("pool queryrow not supported in mock")}
}

func (p *mockPool) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	tx := &mockTx{pool: p, isoLevel: txOptions.IsoLevel, pending: make(map[string]int)}
	p.lastTx = tx
	return tx, nil
}

type insertedOrder struct {
	id     string
	userID string
	total  string
}

type insertedItem struct {
	id        string
	orderID   string
	productID string
	quantity  int
	unitPrice string
}

type mockTx struct {
	pool     *mockPool
	isoLevel pgx.TxIsoLevel

	pending   map[string]int
	orders    []insertedOrder
	items     []insertedItem
	lockedIDs [][]string

	committed  bool
	rolledBack bool
}

func (tx *mockTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("nested tx not supported")
}

func (tx *mockTx) Commit(ctx context.Context) error {
	if tx.pool.commitErr != nil {
		return tx.pool.commitErr
	}
	for id, dec := range tx.pending {
		tx.pool.products[id].stock -= dec
	}
	tx.committed = true
	return nil
}

func (tx *mockTx) Rollback(ctx context.Context) error {
	tx.rolledBack = true
	return nil
}

func (tx *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("not supported in mock")
}

func (tx *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

func (tx *mockTx) LargeObjects() pgx.LargeObjects {
	return pgx.LargeObjects{}
}

func (tx *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("not supported in mock")
}

func (tx *mockTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx.pool.execErr != "" && strings.Contains(sql, tx.pool.execErr) {
		return pgconn.CommandTag{}, errors.New("forced exec failure")
	}
	switch {
	case strings.Contains(sql, "UPDATE products"):
		tx.pending[args[0].(string)] += args[1].(int)
	case strings.Contains(sql, "INSERT INTO orders"):
		tx.orders = append(tx.orders, insertedOrder{
			id:     args[0].(string),
			userID: args[1].(string),
			total:  args[2].(string),
		})
	case strings.Contains(sql, "INSERT INTO order_items"):
		tx.items = append(tx.items, insertedItem{
			id:        args[0].(string),
			orderID:   args[1].(string),
			productID: args[2].(string),
			quantity:  args[3].(int),
			unitPrice: args[4].(string),
		})
	}
	return pgconn.NewCommandTag("EXEC"), nil
}

func (tx *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if !strings.Contains(sql, "FOR UPDATE") {
		return nil, errors.New("unexpected tx query: " + sql)
	}
	ids := args[0].([]string)
	tx.lockedIDs = append(tx.lockedIDs, append([]string(nil), ids...))

	var values [][]any
	for _, id := range ids {
		if p, ok := tx.pool.products[id]; ok {
			values = append(values, []any{id, p.price, p.stock})
		}
	}
	return &mockRows{values: values}, nil
}

func (tx *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if strings.Contains(sql, "SELECT EXISTS") {
		return mockRow{values: []any{tx.pool.users[args[0].(string)]}}
	}
	return mockRow{err: errors.New("unexpected tx queryrow: " + sql)}
}

func (tx *mockTx) Conn() *pgx.Conn { return nil }

type mockRows struct {
	values [][]any
	idx    int
}

func (r *mockRows) Close()                                       {}
func (r *mockRows) Err() error                                   { return nil }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }

func (r *mockRows) Next() bool {
	if r.idx < len(r.values) {
		r.idx++
		return true
	}
	return false
}

func (r *mockRows) Scan(dest ...any) error {
	return scanValues(r.values[r.idx-1], dest)
}

func (r *mockRows) Values() ([]any, error) {
	return r.values[r.idx-1], nil
}

type mockRow struct {
	values []any
	err    error
}

func (r mockRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanValues(r.values, dest)
}

func scanValues(values []any, dest []any) error {
	for i, v := range values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case *bool:
			*d = v.(bool)
		default:
			return errors.New("unsupported scan dest")
		}
	}
	return nil
}
