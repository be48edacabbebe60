package testutil

import (
	"sync"
	"testing"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLRecorder keeps the statements a dry-run connection would have sent.
type SQLRecorder struct {
	mu    sync.Mutex
	stmts []string
}

func (r *SQLRecorder) record(db *gorm.DB) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stmts = append(r.stmts, db.Statement.SQL.String())
}

// Last returns the most recent statement, or "" when nothing ran.
func (r *SQLRecorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stmts) == 0 {
		return ""
	}
	return r.stmts[len(r.stmts)-1]
}

// PostgresDryRun renders statements with the postgres dialect without a server.
func PostgresDryRun(t testing.TB) (*gorm.DB, *SQLRecorder) {
	t.Helper()
	return dryRun(t, postgres.New(postgres.Config{
		DSN: "host=localhost user=cliprail dbname=cliprail port=5432 sslmode=disable",
	}))
}

// MySQLDryRun renders statements with the mysql dialect without a server.
func MySQLDryRun(t testing.TB) (*gorm.DB, *SQLRecorder) {
	t.Helper()
	return dryRun(t, mysql.New(mysql.Config{
		DSN:                       "cliprail:cliprail@tcp(localhost:3306)/cliprail?parseTime=True",
		SkipInitializeWithVersion: true,
	}))
}

func dryRun(t testing.TB, dialector gorm.Dialector) (*gorm.DB, *SQLRecorder) {
	t.Helper()
	db, err := gorm.Open(dialector, &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open dry-run %s: %v", dialector.Name(), err)
	}
	rec := &SQLRecorder{}
	if err := db.Callback().Query().After("gorm:query").Register("testutil:record_query", rec.record); err != nil {
		t.Fatalf("register query recorder: %v", err)
	}
	if err := db.Callback().Create().After("gorm:create").Register("testutil:record_create", rec.record); err != nil {
		t.Fatalf("register create recorder: %v", err)
	}
	return db, rec
}
