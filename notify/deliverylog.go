package notify

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// MemoryDeliveryLog keeps attempts in process.
type MemoryDeliveryLog struct {
	mu      sync.RWMutex
	entries map[int64][]Delivery
}

// NewMemoryDeliveryLog returns an empty in-memory log.
func NewMemoryDeliveryLog() *MemoryDeliveryLog {
	return &MemoryDeliveryLog{entries: make(map[int64][]Delivery)}
}

// Record appends d.
func (l *MemoryDeliveryLog) Record(_ context.Context, d Delivery) error {
	if l == nil {
		return fmt.Errorf("delivery log not configured")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[d.CaseID] = append(l.entries[d.CaseID], d)
	return nil
}

// List returns the attempts for caseID in record order.
func (l *MemoryDeliveryLog) List(_ context.Context, caseID int64) ([]Delivery, error) {
	if l == nil {
		return nil, fmt.Errorf("delivery log not configured")
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Delivery(nil), l.entries[caseID]...), nil
}

const deliverySchema = `CREATE TABLE IF NOT EXISTS notification_deliveries (
	id           TEXT PRIMARY KEY,
	case_id      INTEGER NOT NULL,
	trigger_name TEXT NOT NULL,
	template_id  TEXT NOT NULL,
	channel      TEXT NOT NULL,
	party        TEXT NOT NULL,
	recipient    TEXT NOT NULL,
	status       TEXT NOT NULL,
	external_id  TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	at           INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS notification_deliveries_case ON notification_deliveries (case_id, at);`

// SQLDeliveryLog persists attempts in a SQL database. It is written against the
// SQLite dialect.
type SQLDeliveryLog struct {
	db *sql.DB
}

// NewSQLDeliveryLog prepares the delivery table on db.
func NewSQLDeliveryLog(ctx context.Context, db *sql.DB) (*SQLDeliveryLog, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle required")
	}
	if _, err := db.ExecContext(ctx, deliverySchema); err != nil {
		return nil, fmt.Errorf("create delivery table: %w", err)
	}
	return &SQLDeliveryLog{db: db}, nil
}

// Record inserts d.
func (l *SQLDeliveryLog) Record(ctx context.Context, d Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO notification_deliveries
		   (id, case_id, trigger_name, template_id, channel, party, recipient, status, external_id, error, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.CaseID, string(d.Trigger), d.TemplateID, string(d.Channel), string(d.Party),
		d.Recipient, string(d.Status), d.ExternalID, d.Error, toMillis(d.At),
	)
	if err != nil {
		return fmt.Errorf("insert delivery %s: %w", d.ID, err)
	}
	return nil
}

// List returns the attempts for caseID ordered by time.
func (l *SQLDeliveryLog) List(ctx context.Context, caseID int64) ([]Delivery, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, case_id, trigger_name, template_id, channel, party, recipient, status, external_id, error, at
		   FROM notification_deliveries
		  WHERE case_id = ?
		  ORDER BY at, rowid`, caseID)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var (
			d                               Delivery
			trigger, channel, party, status string
			at                              int64
		)
		if err := rows.Scan(&d.ID, &d.CaseID, &trigger, &d.TemplateID, &channel, &party,
			&d.Recipient, &status, &d.ExternalID, &d.Error, &at); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		d.Trigger = Trigger(trigger)
		d.Channel = Channel(channel)
		d.Party = Party(party)
		d.Status = DeliveryStatus(status)
		d.At = fromMillis(at)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	return out, nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
