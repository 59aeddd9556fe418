package sessiondao

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/savaki/ddb"
)

// DAO provides access to the WebSocket sessions table.
type DAO struct {
	table     *ddb.Table
	tableName string
}

// New creates a new sessions DAO.
func New(api dynamodbiface.DynamoDBAPI, tableName string) *DAO {
	return &DAO{
		table:     ddb.New(api).MustTable(tableName, Session{}),
		tableName: tableName,
	}
}

// TableName returns the table this DAO reads and writes.
func (d *DAO) TableName() string {
	return d.tableName
}

// Table exposes the underlying ddb table, e.g. for creating it in tests.
func (d *DAO) Table() *ddb.Table {
	return d.table
}

// Put stores a session, replacing any record with the same connection id.
func (d *DAO) Put(ctx context.Context, s Session) error {
	if err := d.table.Put(s).RunWithContext(ctx); err != nil {
		return fmt.Errorf("failed to put session %v: %w", s.ConnectionID, err)
	}
	return nil
}

// Get retrieves a session by connection id. Returns nil if not found.
func (d *DAO) Get(ctx context.Context, connectionID string) (*Session, error) {
	var s Session
	if err := d.table.Get(connectionID).ScanWithContext(ctx, &s); err != nil {
		if ddb.IsItemNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session %v: %w", connectionID, err)
	}
	return &s, nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (d *DAO) Delete(ctx context.Context, connectionID string) error {
	if err := d.table.Delete(connectionID).RunWithContext(ctx); err != nil {
		return fmt.Errorf("failed to delete session %v: %w", connectionID, err)
	}
	return nil
}

// List returns every session in the table. The table holds one item per open
// connection, so a full scan stays small.
func (d *DAO) List(ctx context.Context) ([]Session, error) {
	var sessions []Session
	err := d.table.Scan().EachWithContext(ctx, func(item ddb.Item) (bool, error) {
		var s Session
		if err := item.Unmarshal(&s); err != nil {
			return false, fmt.Errorf("failed to decode session: %w", err)
		}
		sessions = append(sessions, s)
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan sessions table %v: %w", d.tableName, err)
	}
	return sessions, nil
}

// Count returns the number of sessions in the table.
func (d *DAO) Count(ctx context.Context) (int64, error) {
	var count int64
	err := d.table.Scan().EachWithContext(ctx, func(ddb.Item) (bool, error) {
		count++
		return true, nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions in %v: %w", d.tableName, err)
	}
	return count, nil
}
