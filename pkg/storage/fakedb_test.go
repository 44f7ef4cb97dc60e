package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
)

// fakeDriver: минимальный SQL-драйвер: запоминает запросы и
// возвращает заранее заданные ответы по порядку, без реальной БД.
type fakeDriver struct{}

type fakeCall struct {
	query string
	args  []driver.Value
}

type fakeResponse struct {
	rows [][]driver.Value
	err  error
}

type fakeDB struct {
	mu        sync.Mutex
	execs     []fakeCall
	queries   []fakeCall
	responses []fakeResponse
	execErr   error
	affected  int64
}

var (
	fakeMu  sync.Mutex
	fakeDBs = map[string]*fakeDB{}
	fakeSeq int
)

func init() {
	sql.Register("storagefake", fakeDriver{})
}

// newFakeDB открывает *DB поверх отдельного экземпляра фейковой БД.
func newFakeDB(t *testing.T, responses ...fakeResponse) (*DB, *fakeDB) {
	t.Helper()
	fakeMu.Lock()
	fakeSeq++
	name := fmt.Sprintf("fake-%d", fakeSeq)
	f := &fakeDB{responses: responses, affected: 1}
	fakeDBs[name] = f
	fakeMu.Unlock()

	conn, err := sql.Open("storagefake", name)
	if err != nil {
		t.Fatalf("не удалось открыть фейковую БД: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewDB(conn), f
}

func rowsOf(rows ...[]driver.Value) fakeResponse {
	return fakeResponse{rows: rows}
}

func (fakeDriver) Open(name string) (driver.Conn, error) {
	fakeMu.Lock()
	defer fakeMu.Unlock()
	f, ok := fakeDBs[name]
	if !ok {
		return nil, errors.New("unknown fake db")
	}
	return &fakeConn{db: f}, nil
}

type fakeConn struct{ db *fakeDB }

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("not implemented")
}
func (c *fakeConn) Close() error              { return nil }
func (c *fakeConn) Begin() (driver.Tx, error) { return nil, errors.New("not implemented") }

func values(args []driver.NamedValue) []driver.Value {
	out := make([]driver.Value, len(args))
	for i, a := range args {
		out[i] = a.Value
	}
	return out
}

func (c *fakeConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	c.db.execs = append(c.db.execs, fakeCall{query: query, args: values(args)})
	if c.db.execErr != nil {
		return nil, c.db.execErr
	}
	return fakeResult{affected: c.db.affected}, nil
}

func (c *fakeConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	c.db.queries = append(c.db.queries, fakeCall{query: query, args: values(args)})
	if len(c.db.responses) == 0 {
		return nil, errors.New("unexpected query")
	}
	resp := c.db.responses[0]
	c.db.responses = c.db.responses[1:]
	if resp.err != nil {
		return nil, resp.err
	}
	width := 0
	if len(resp.rows) > 0 {
		width = len(resp.rows[0])
	}
	cols := make([]string, width)
	for i := range cols {
		cols[i] = fmt.Sprintf("c%d", i)
	}
	return &fakeRows{columns: cols, data: resp.rows}, nil
}

type fakeResult struct{ affected int64 }

func (fakeResult) LastInsertId() (int64, error)   { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.affected, nil }

type fakeRows struct {
	columns []string
	data    [][]driver.Value
	idx     int
}

func (r *fakeRows) Columns() []string { return r.columns }
func (r *fakeRows) Close() error      { return nil }
func (r *fakeRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.idx])
	r.idx++
	return nil
}
