// Package storage persists transaction records in a SQL database through
// sqlx. SQLite is the local default; PostgreSQL shares the same schema.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"penjualan/internal/core"
	applog "penjualan/internal/log"
	"penjualan/internal/sheets"
)

// Dialect selects the SQL flavour and driver.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	return string(d)
}

// Sync states stored in records.sync_status.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know.
	sqlx.BindDriver(string(SQLite), sqlx.QUESTION)
}

// Repository stores records and their units in two tables.
type Repository struct {
	db      *sqlx.DB
	dialect Dialect
	logger  *applog.Logger
}

var _ sheets.RecordStore = (*Repository)(nil)

// NewSQLiteRepository opens (and creates) the database file at dbPath and
// applies migrations.
func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sqlx.Open(SQLite.driverName(), dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(SQLite, dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return newRepository(db, SQLite), nil
}

// NewPostgresRepository connects to dsn with a short retry loop, then
// applies migrations.
func NewPostgresRepository(ctx context.Context, dsn string) (*Repository, error) {
	const (
		maxAttempts = 5
		baseDelay   = 500 * time.Millisecond
	)

	var db *sqlx.DB
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		db, lastErr = sqlx.Open(Postgres.driverName(), dsn)
		if lastErr == nil {
			db.SetMaxOpenConns(25)
			db.SetMaxIdleConns(5)
			db.SetConnMaxLifetime(5 * time.Minute)

			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			lastErr = db.PingContext(pingCtx)
			cancel()
			if lastErr == nil {
				break
			}
			_ = db.Close()
		}
		if attempt == maxAttempts {
			return nil, fmt.Errorf("connect to postgres after %d attempts: %w", maxAttempts, lastErr)
		}
		if err := sleepWithBackoff(ctx, attempt, baseDelay); err != nil {
			return nil, err
		}
	}

	if err := RunMigrations(Postgres, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return newRepository(db, Postgres), nil
}

func sleepWithBackoff(ctx context.Context, attempt int, base time.Duration) error {
	d := base << (attempt - 1)
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func newRepository(db *sqlx.DB, dialect Dialect) *Repository {
	return &Repository{
		db:      db,
		dialect: dialect,
		logger:  applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentStorage),
	}
}

// WithLogger replaces the repository logger.
func (r *Repository) WithLogger(l *applog.Logger) *Repository {
	r.logger = l.WithComponent(applog.ComponentStorage)
	return r
}

// Dialect reports which database the repository talks to.
func (r *Repository) Dialect() Dialect { return r.dialect }

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the connection, for readiness probes.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type recordRow struct {
	Seq                    int64          `db:"seq"`
	ID                     string         `db:"id"`
	TimeStamp              string         `db:"time_stamp"`
	Date                   string         `db:"date"`
	Month                  string         `db:"month"`
	NoPJB                  string         `db:"no_pjb"`
	Branch                 string         `db:"branch"`
	CustomerName           string         `db:"customer_name"`
	CustomerClassification string         `db:"customer_classification"`
	Quantity               int            `db:"quantity"`
	ProductType            string         `db:"product_type"`
	Product                string         `db:"product"`
	Mark                   string         `db:"mark"`
	HPPCents               int64          `db:"hpp_cents"`
	PaymentScheme          string         `db:"payment_scheme"`
	SalesRepresentative    string         `db:"sales_representative"`
	SyncStatus             string         `db:"sync_status"`
	SyncedAt               sql.NullString `db:"synced_at"`
}

type unitRow struct {
	RecordID     string `db:"record_id"`
	Position     int    `db:"position"`
	Marking      string `db:"marking"`
	SerialNumber string `db:"serial_number"`
	SNEngine     string `db:"sn_engine"`
}

const recordColumns = `seq, id, time_stamp, date, month, no_pjb, branch, customer_name,
	customer_classification, quantity, product_type, product, mark, hpp_cents,
	payment_scheme, sales_representative, sync_status, synced_at`

const timeLayout = time.RFC3339Nano

func toRow(rec core.TransactionRecord) recordRow {
	return recordRow{
		ID:                     rec.ID,
		TimeStamp:              rec.TimeStamp.UTC().Format(timeLayout),
		Date:                   rec.Date.String(),
		Month:                  rec.Month,
		NoPJB:                  rec.NoPJB,
		Branch:                 rec.Branch,
		CustomerName:           rec.CustomerName,
		CustomerClassification: string(rec.CustomerClassification),
		Quantity:               rec.Quantity,
		ProductType:            rec.ProductType,
		Product:                rec.Product,
		Mark:                   rec.Mark,
		HPPCents:               rec.HPP.Cents,
		PaymentScheme:          rec.PaymentScheme,
		SalesRepresentative:    rec.SalesRepresentative,
		SyncStatus:             SyncPending,
	}
}

func (row recordRow) record(units []core.Unit) (core.TransactionRecord, error) {
	ts, err := time.Parse(timeLayout, row.TimeStamp)
	if err != nil {
		return core.TransactionRecord{}, fmt.Errorf("record %s: time stamp: %w", row.ID, err)
	}
	var date core.Date
	if row.Date != "" {
		if date, err = core.ParseDate(row.Date); err != nil {
			return core.TransactionRecord{}, fmt.Errorf("record %s: %w", row.ID, err)
		}
	}
	return core.TransactionRecord{
		ID:                     row.ID,
		TimeStamp:              ts.UTC(),
		Date:                   date,
		Month:                  row.Month,
		NoPJB:                  row.NoPJB,
		Branch:                 row.Branch,
		CustomerName:           row.CustomerName,
		CustomerClassification: core.CustomerClassification(row.CustomerClassification),
		Quantity:               row.Quantity,
		ProductType:            row.ProductType,
		Product:                row.Product,
		Mark:                   row.Mark,
		HPP:                    core.Money{Cents: row.HPPCents},
		PaymentScheme:          row.PaymentScheme,
		SalesRepresentative:    row.SalesRepresentative,
		Units:                  units,
	}, nil
}

// Submit inserts the record and its units in one transaction. A record
// without an id gets one. Duplicate ids or No. PJB values are permanent
// errors.
func (r *Repository) Submit(ctx context.Context, rec core.TransactionRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", classify("submit", err)
	}
	defer tx.Rollback()

	const insertRecord = `
        INSERT INTO records (
            id, time_stamp, date, month, no_pjb, branch, customer_name,
            customer_classification, quantity, product_type, product, mark,
            hpp_cents, payment_scheme, sales_representative, sync_status
        ) VALUES (
            :id, :time_stamp, :date, :month, :no_pjb, :branch, :customer_name,
            :customer_classification, :quantity, :product_type, :product, :mark,
            :hpp_cents, :payment_scheme, :sales_representative, :sync_status
        )`
	if _, err := tx.NamedExecContext(ctx, insertRecord, toRow(rec)); err != nil {
		return "", classify("submit", err)
	}

	const insertUnit = `
            INSERT INTO record_units (record_id, position, marking, serial_number, sn_engine)
            VALUES (:record_id, :position, :marking, :serial_number, :sn_engine)`
	for i, u := range rec.Units {
		row := unitRow{RecordID: rec.ID, Position: i, Marking: u.Marking, SerialNumber: u.SerialNumber, SNEngine: u.SNEngine}
		if _, err := tx.NamedExecContext(ctx, insertUnit, row); err != nil {
			return "", classify("submit", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", classify("submit", err)
	}

	r.logger.InfoContext(ctx, "Record saved",
		applog.FieldRecordID, rec.ID,
		applog.FieldNoPJB, rec.NoPJB,
		applog.FieldBranch, rec.Branch,
		applog.FieldQuantity, rec.Quantity,
		applog.FieldBackend, string(r.dialect))

	return rec.ID, nil
}

// FetchAll returns every record in insertion order.
func (r *Repository) FetchAll(ctx context.Context) ([]core.TransactionRecord, error) {
	var rows []recordRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+recordColumns+` FROM records ORDER BY seq`); err != nil {
		return nil, classify("fetch all", err)
	}

	var units []unitRow
	const unitsQuery = `SELECT record_id, position, marking, serial_number, sn_engine
        FROM record_units ORDER BY record_id, position`
	if err := r.db.SelectContext(ctx, &units, unitsQuery); err != nil {
		return nil, classify("fetch all", err)
	}
	byRecord := make(map[string][]core.Unit, len(rows))
	for _, u := range units {
		byRecord[u.RecordID] = append(byRecord[u.RecordID], core.Unit{
			Marking:      u.Marking,
			SerialNumber: u.SerialNumber,
			SNEngine:     u.SNEngine,
		})
	}

	out := make([]core.TransactionRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record(byRecord[row.ID])
		if err != nil {
			r.logger.WarnContext(ctx, "Skipping unreadable record", applog.FieldRecordID, row.ID, applog.FieldError, err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// GetRecord loads one record. A missing id yields core.ErrRecordNotFound.
func (r *Repository) GetRecord(ctx context.Context, id string) (core.TransactionRecord, error) {
	var row recordRow
	q := r.db.Rebind(`SELECT ` + recordColumns + ` FROM records WHERE id = ?`)
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.TransactionRecord{}, fmt.Errorf("%w: %s", core.ErrRecordNotFound, id)
		}
		return core.TransactionRecord{}, classify("get record", err)
	}

	var units []unitRow
	uq := r.db.Rebind(`SELECT record_id, position, marking, serial_number, sn_engine
        FROM record_units WHERE record_id = ? ORDER BY position`)
	if err := r.db.SelectContext(ctx, &units, uq, id); err != nil {
		return core.TransactionRecord{}, classify("get record", err)
	}
	var list []core.Unit
	for _, u := range units {
		list = append(list, core.Unit{Marking: u.Marking, SerialNumber: u.SerialNumber, SNEngine: u.SNEngine})
	}
	return row.record(list)
}

// DeleteByID removes a record and its units. Unknown ids are ignored.
func (r *Repository) DeleteByID(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify("delete", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM record_units WHERE record_id = ?`), id); err != nil {
		return classify("delete", err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM records WHERE id = ?`), id)
	if err != nil {
		return classify("delete", err)
	}
	if err := tx.Commit(); err != nil {
		return classify("delete", err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		r.logger.InfoContext(ctx, "Record deleted", applog.FieldRecordID, id)
	}
	return nil
}

// PendingSync lists ids of records not yet pushed to the remote sheet, oldest
// first.
func (r *Repository) PendingSync(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	q := r.db.Rebind(`SELECT id FROM records WHERE sync_status <> ? ORDER BY seq LIMIT ?`)
	if err := r.db.SelectContext(ctx, &ids, q, SyncSynced, limit); err != nil {
		return nil, classify("pending sync", err)
	}
	return ids, nil
}

// SyncStatus reports the stored sync state of a record.
func (r *Repository) SyncStatus(ctx context.Context, id string) (string, error) {
	var status string
	q := r.db.Rebind(`SELECT sync_status FROM records WHERE id = ?`)
	if err := r.db.GetContext(ctx, &status, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", core.ErrRecordNotFound, id)
		}
		return "", classify("sync status", err)
	}
	return status, nil
}

// MarkSynced flags a record as present in the remote sheet.
func (r *Repository) MarkSynced(ctx context.Context, id string) error {
	q := r.db.Rebind(`UPDATE records SET sync_status = ?, synced_at = ? WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, q, SyncSynced, time.Now().UTC().Format(timeLayout), id); err != nil {
		return classify("mark synced", err)
	}
	r.logger.InfoContext(ctx, "Record marked as synced", applog.FieldRecordID, id)
	return nil
}

// MarkSyncError flags a record whose sync attempt failed.
func (r *Repository) MarkSyncError(ctx context.Context, id string) error {
	q := r.db.Rebind(`UPDATE records SET sync_status = ? WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, q, SyncError, id); err != nil {
		return classify("mark sync error", err)
	}
	r.logger.WarnContext(ctx, "Record marked with sync error", applog.FieldRecordID, id)
	return nil
}

// classify maps driver errors to core.PersistError. Constraint violations are
// permanent; anything else may succeed on retry.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return core.Permanent(op, fmt.Errorf("%w: %v", core.ErrDuplicateRecord, err))
	}
	if isConstraintViolation(err) {
		return core.Permanent(op, err)
	}
	return core.Transient(op, err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isConstraintViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "23"
	}
	return strings.Contains(err.Error(), "constraint failed")
}
