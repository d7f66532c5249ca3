package session

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestSQLStoreGet(t *testing.T) {
	t.Parallel()

	state, err := json.Marshal(&Session{
		ID:          "sess-1",
		Mobile:      "9876543210",
		ActiveAgent: "SalesAgent",
		Data:        map[string]any{"requestedAmount": 500000.0},
	})
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}

	db, drv := newMockDB(t, []mockOperation{
		queryOp(`SELECT state FROM sessions WHERE id = ?`, mockRowsData{
			columns: []string{"state"},
			values:  [][]driver.Value{{state}},
		}),
	})
	defer drv.assertConsumed(t)
	defer db.Close()

	store := &SQLStore{db: db}
	sess, err := store.Get(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if sess.ActiveAgent != "SalesAgent" {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if sess.Data["requestedAmount"] != 500000.0 {
		t.Fatalf("state document lost: %#v", sess.Data)
	}
}

func TestSQLStoreGetMissing(t *testing.T) {
	t.Parallel()

	db, drv := newMockDB(t, []mockOperation{
		queryOp(`SELECT state FROM sessions WHERE id = ?`, mockRowsData{columns: []string{"state"}}),
	})
	defer drv.assertConsumed(t)
	defer db.Close()

	store := &SQLStore{db: db}
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSQLStoreSave(t *testing.T) {
	t.Parallel()

	db, drv := newMockDB(t, []mockOperation{
		execOp(upsertSessionSQL(), mockResult{rowsAffected: 1}),
	})
	defer drv.assertConsumed(t)
	defer db.Close()

	store := &SQLStore{db: db}
	sess := New("9876543210", "CUST-1001")
	if err := store.Save(context.Background(), sess); err != nil {
		t.Fatalf("save failed: %v", err)
	}
}

func TestSQLStoreTouch(t *testing.T) {
	t.Parallel()

	db, drv := newMockDB(t, []mockOperation{
		execOp(`UPDATE sessions SET last_active = ? WHERE id = ?`, mockResult{rowsAffected: 1}),
		execOp(`UPDATE sessions SET last_active = ? WHERE id = ?`, mockResult{rowsAffected: 0}),
	})
	defer drv.assertConsumed(t)
	defer db.Close()

	store := &SQLStore{db: db}
	if err := store.Touch(context.Background(), "sess-1", time.Now()); err != nil {
		t.Fatalf("touch failed: %v", err)
	}
	if err := store.Touch(context.Background(), "nope", time.Now()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func upsertSessionSQL() string {
	return `INSERT INTO sessions (id, mobile, active_agent, state, created_at, last_active)
VALUES (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE mobile = VALUES(mobile), active_agent = VALUES(active_agent),
state = VALUES(state), last_active = VALUES(last_active)`
}

type operationType int

const (
	opExec operationType = iota
	opQuery
)

type mockOperation struct {
	typ    operationType
	query  string
	result mockResult
	rows   mockRowsData
	err    error
}

type mockResult struct {
	lastInsertID int64
	rowsAffected int64
}

func (r mockResult) LastInsertId() (int64, error) { return r.lastInsertID, nil }
func (r mockResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

type mockRowsData struct {
	columns []string
	values  [][]driver.Value
}

type queueDriver struct {
	ops []mockOperation
	idx int32
}

var driverSeq atomic.Int32

func newMockDB(t *testing.T, ops []mockOperation) (*sql.DB, *queueDriver) {
	t.Helper()

	drv := &queueDriver{ops: ops}
	name := fmt.Sprintf("mock-mysql-%d", driverSeq.Add(1))
	sql.Register(name, drv)

	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("open mock db failed: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, drv
}

func execOp(query string, result mockResult) mockOperation {
	return mockOperation{typ: opExec, query: query, result: result}
}

func queryOp(query string, rows mockRowsData) mockOperation {
	return mockOperation{typ: opQuery, query: query, rows: rows}
}

func (d *queueDriver) assertConsumed(t *testing.T) {
	t.Helper()

	if int(atomic.LoadInt32(&d.idx)) != len(d.ops) {
		t.Fatalf("not all operations consumed: %d/%d", atomic.LoadInt32(&d.idx), len(d.ops))
	}
}

func (d *queueDriver) Open(name string) (driver.Conn, error) {
	return &mockConn{driver: d}, nil
}

type mockConn struct {
	driver *queueDriver
}

func (c *mockConn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("prepare not supported: %s", query)
}

func (c *mockConn) Close() error { return nil }

func (c *mockConn) Begin() (driver.Tx, error) {
	return nil, fmt.Errorf("transactions not supported")
}

func (c *mockConn) Exec(query string, args []driver.Value) (driver.Result, error) {
	return c.ExecContext(context.Background(), query, named(args))
}

func (c *mockConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	op, err := c.next(opExec, query)
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return op.result, nil
}

func (c *mockConn) Query(query string, args []driver.Value) (driver.Rows, error) {
	return c.QueryContext(context.Background(), query, named(args))
}

func (c *mockConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	op, err := c.next(opQuery, query)
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return &mockRows{columns: op.rows.columns, values: op.rows.values}, nil
}

func (c *mockConn) Ping(ctx context.Context) error { return nil }

func (c *mockConn) next(expected operationType, query string) (*mockOperation, error) {
	idx := int(atomic.LoadInt32(&c.driver.idx))
	if idx >= len(c.driver.ops) {
		return nil, fmt.Errorf("unexpected operation: %v", expected)
	}
	op := &c.driver.ops[idx]
	if op.typ != expected {
		return nil, fmt.Errorf("expected operation %v, got %v", expected, op.typ)
	}
	atomic.AddInt32(&c.driver.idx, 1)
	if op.query != "" {
		expectedSQL := normalizeSQL(op.query)
		actualSQL := normalizeSQL(query)
		if expectedSQL != actualSQL {
			return nil, fmt.Errorf("unexpected query. want %q got %q", expectedSQL, actualSQL)
		}
	}
	return op, nil
}

type mockRows struct {
	columns []string
	values  [][]driver.Value
	idx     int
}

func (r *mockRows) Columns() []string { return r.columns }
func (r *mockRows) Close() error      { return nil }

func (r *mockRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.idx])
	r.idx++
	return nil
}

func named(args []driver.Value) []driver.NamedValue {
	namedArgs := make([]driver.NamedValue, len(args))
	for i, arg := range args {
		namedArgs[i] = driver.NamedValue{Ordinal: i + 1, Value: arg}
	}
	return namedArgs
}

func normalizeSQL(query string) string {
	fields := strings.Fields(query)
	return strings.Join(fields, " ")
}
