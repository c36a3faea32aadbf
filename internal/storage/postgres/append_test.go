package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stallingDriver hands out connections whose statements never finish on
// their own, like a database that stopped answering.
type stallingDriver struct{}

func (stallingDriver) Open(string) (driver.Conn, error) { return stallingConn{}, nil }

type stallingConn struct{}

func (stallingConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}
func (stallingConn) Close() error              { return nil }
func (stallingConn) Begin() (driver.Tx, error) { return nil, errors.New("transactions not supported") }

func (stallingConn) ExecContext(ctx context.Context, _ string, _ []driver.NamedValue) (driver.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func init() {
	sql.Register("stalling-postgres", stallingDriver{})
}

func TestAppendGivesUpOnStalledDatabase(t *testing.T) {
	db, err := sql.Open("stalling-postgres", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	c := &Client{db: db, workspace: "default", appendTimeout: 50 * time.Millisecond}

	start := time.Now()
	err = c.Append(time.Now(), "info", "step.updated", "", map[string]interface{}{"step_id": "challenge-type"}, "s-1")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "append step.updated")
	assert.Less(t, time.Since(start), time.Second)
}
