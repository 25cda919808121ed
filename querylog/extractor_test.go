package querylog

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/studiowebux/sqlstress/stresstest"
)

// sampleLog mimics a MySQL general log session: connection noise, a
// single-line read, a multi-line write, and a clean disconnect.
const sampleLog = `2024-03-14T09:15:02.123456Z	    8 Connect	app@10.0.0.5 on shopdb using TCP/IP
2024-03-14T09:15:02.124001Z	    8 Query	SET NAMES utf8mb4
2024-03-14T09:15:02.125002Z	    8 Query	SELECT id, name FROM products WHERE price > 100
2024-03-14T09:15:02.126003Z	    8 Query	INSERT INTO orders (product_id, qty)
	VALUES (42, 3)
2024-03-14T09:15:02.127004Z	    8 Quit
`

// TestExtract_BasicFlow tests a realistic session end to end
func TestExtract_BasicFlow(t *testing.T) {
	records, stats, err := Default().Extract(strings.NewReader(sampleLog))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got: %d (%v)", len(records), records)
	}

	if records[0].Text != "SELECT id, name FROM products WHERE price > 100" {
		t.Errorf("Unexpected first statement: %q", records[0].Text)
	}
	if records[0].Kind != stresstest.KindRead {
		t.Errorf("Expected read kind, got: %q", records[0].Kind)
	}

	want := "INSERT INTO orders (product_id, qty)\nVALUES (42, 3)"
	if records[1].Text != want {
		t.Errorf("Expected joined statement %q, got: %q", want, records[1].Text)
	}
	if records[1].Kind != stresstest.KindWrite {
		t.Errorf("Expected write kind, got: %q", records[1].Kind)
	}

	if stats.Read != 1 || stats.Write != 1 {
		t.Errorf("Expected 1 read and 1 write, got: %+v", stats)
	}
	// The SET NAMES start line is dropped before accumulation, so it never
	// reaches the counters.
	if stats.Ignored != 0 {
		t.Errorf("Expected 0 ignored, got: %d", stats.Ignored)
	}
	if stats.Total() != 2 {
		t.Errorf("Expected 2 processed statements, got: %d", stats.Total())
	}
}

// TestExtract_NonQueryEventTerminates tests that any event verb ends the
// pending statement and orphaned continuations are dropped
func TestExtract_NonQueryEventTerminates(t *testing.T) {
	log := `2024-03-14T10:00:00.000001Z	    9 Query	SELECT id FROM customers WHERE active = 1
2024-03-14T10:00:00.000002Z	    9 Init DB	shopdb
	AND region = 'EU'
`
	records, stats, err := Default().Extract(strings.NewReader(log))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got: %d", len(records))
	}
	if records[0].Text != "SELECT id FROM customers WHERE active = 1" {
		t.Errorf("Expected statement cut at the event line, got: %q", records[0].Text)
	}
	if stats.Read != 1 {
		t.Errorf("Expected 1 read, got: %+v", stats)
	}
}

// TestExtract_EOFFlushesPending tests the last statement survives without
// a trailing event line
func TestExtract_EOFFlushesPending(t *testing.T) {
	log := `2024-03-14T10:00:00.000001Z	   11 Query	UPDATE inventory SET qty = qty - 1
	WHERE sku = 'A-100'`

	records, _, err := Default().Extract(strings.NewReader(log))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got: %d", len(records))
	}
	want := "UPDATE inventory SET qty = qty - 1\nWHERE sku = 'A-100'"
	if records[0].Text != want {
		t.Errorf("Expected %q, got: %q", want, records[0].Text)
	}
}

// TestExtract_SystemStatementsCounted tests internal-schema traffic is
// counted but never emitted
func TestExtract_SystemStatementsCounted(t *testing.T) {
	log := `2024-03-14T10:00:00.000001Z	   12 Query	SELECT TABLE_NAME FROM information_schema.tables WHERE TABLE_SCHEMA = 'shopdb'
2024-03-14T10:00:00.000002Z	   12 Query	SELECT User, Host FROM mysql.user
2024-03-14T10:00:00.000003Z	   12 Query	SELECT id FROM products WHERE id = 1
`
	records, stats, err := Default().Extract(strings.NewReader(log))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if stats.System != 2 {
		t.Errorf("Expected 2 system statements, got: %d", stats.System)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got: %d", len(records))
	}
	if records[0].Text != "SELECT id FROM products WHERE id = 1" {
		t.Errorf("Unexpected surviving statement: %q", records[0].Text)
	}
}

// TestExtract_AccumulatedStatementIgnored tests a statement that only
// becomes ignorable once its continuation lines arrive
func TestExtract_AccumulatedStatementIgnored(t *testing.T) {
	log := `2024-03-14T10:00:00.000001Z	   13 Query	SELECT note FROM audit_log
	WHERE note = 'COMMIT'
`
	records, stats, err := Default().Extract(strings.NewReader(log))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if len(records) != 0 {
		t.Fatalf("Expected no records, got: %d", len(records))
	}
	if stats.Ignored != 1 {
		t.Errorf("Expected 1 ignored, got: %+v", stats)
	}
}

// TestExtract_OrderPreserved tests records come out in log order
func TestExtract_OrderPreserved(t *testing.T) {
	log := `2024-03-14T10:00:00.000001Z	   14 Query	SELECT id FROM a_table
2024-03-14T10:00:00.000002Z	   14 Query	DELETE FROM b_table WHERE id = 2
2024-03-14T10:00:00.000003Z	   14 Query	SELECT id FROM c_table
2024-03-14T10:00:00.000004Z	   14 Query	INSERT INTO d_table (id) VALUES (4)
`
	records, _, err := Default().Extract(strings.NewReader(log))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	want := []string{
		"SELECT id FROM a_table",
		"DELETE FROM b_table WHERE id = 2",
		"SELECT id FROM c_table",
		"INSERT INTO d_table (id) VALUES (4)",
	}
	if len(records) != len(want) {
		t.Fatalf("Expected %d records, got: %d", len(want), len(records))
	}
	for i, text := range want {
		if records[i].Text != text {
			t.Errorf("Record %d: expected %q, got: %q", i, text, records[i].Text)
		}
	}
}

// TestExtract_MaxStatements tests the record limit
func TestExtract_MaxStatements(t *testing.T) {
	var sb strings.Builder
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&sb, "2024-03-14T10:00:00.000001Z\t   15 Query\tSELECT id FROM products WHERE id = %d\n", i)
	}

	e := Default()
	e.MaxStatements = 3

	records, _, err := e.Extract(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got: %d", len(records))
	}
	if records[2].Text != "SELECT id FROM products WHERE id = 3" {
		t.Errorf("Expected the first three statements in order, got last: %q", records[2].Text)
	}
}

// TestExtract_OnlyKind tests the kind filter keeps counters intact
func TestExtract_OnlyKind(t *testing.T) {
	log := `2024-03-14T10:00:00.000001Z	   16 Query	SELECT id FROM products
2024-03-14T10:00:00.000002Z	   16 Query	DELETE FROM carts WHERE abandoned = 1
2024-03-14T10:00:00.000003Z	   16 Query	SELECT id FROM customers
`
	e := Default()
	e.OnlyKind = stresstest.KindRead

	records, stats, err := e.Extract(strings.NewReader(log))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("Expected 2 read records, got: %d", len(records))
	}
	for i, rec := range records {
		if rec.Kind != stresstest.KindRead {
			t.Errorf("Record %d: expected read, got: %q", i, rec.Kind)
		}
	}
	if stats.Write != 1 {
		t.Errorf("Expected the write still counted, got: %+v", stats)
	}
}

// TestExtract_ScannerError tests reader failures are propagated
func TestExtract_ScannerError(t *testing.T) {
	readErr := errors.New("disk gone")
	_, _, err := Default().Extract(iotest.ErrReader(readErr))
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !errors.Is(err, readErr) {
		t.Errorf("Expected wrapped read error, got: %v", err)
	}
}

// TestShouldIgnore tests the default noise patterns
func TestShouldIgnore(t *testing.T) {
	e := Default()

	tests := []struct {
		stmt string
		want bool
	}{
		{"SET SESSION sql_mode='STRICT_TRANS_TABLES'", true},
		{"SET NAMES utf8mb4 COLLATE utf8mb4_unicode_ci", true},
		{"SET @@session.transaction_isolation = 'READ-COMMITTED'", true},
		{"SET sql_mode='TRADITIONAL'", true},
		{"SHOW FULL TABLES FROM shopdb", true},
		{"SELECT @@version_comment LIMIT 1", true},
		{"SET character_set_results = NULL", true},
		{"SET FOREIGN_KEY_CHECKS = 0", true},
		{"SET UNIQUE_CHECKS = 0", true},
		{"SET AUTOCOMMIT = 0", true},
		{"START TRANSACTION READ ONLY", true},
		{"COMMIT", true},
		{"ROLLBACK", true},
		{"set names latin1", true},
		{"SELECT 1", true},
		{"SELECT * FROM commits WHERE pushed = 0", true},
		{"SELECT id, email FROM customers WHERE id = 7", false},
		{"UPDATE products SET price = 10 WHERE id = 3", false},
	}

	for _, tt := range tests {
		if got := e.ShouldIgnore(tt.stmt); got != tt.want {
			t.Errorf("ShouldIgnore(%q): expected %v, got: %v", tt.stmt, tt.want, got)
		}
	}
}

// TestIsSystem tests internal-schema detection with word boundaries
func TestIsSystem(t *testing.T) {
	e := Default()

	tests := []struct {
		stmt string
		want bool
	}{
		{"SELECT TABLE_NAME FROM information_schema.tables", true},
		{"SELECT * FROM performance_schema.events_statements_summary_by_digest", true},
		{"SELECT * FROM sys.schema_table_statistics", true},
		{"SELECT User, Host FROM mysql.user", true},
		{"SELECT ts FROM heartbeat.heartbeat", true},
		{"SELECT value FROM rds_heartbeat2 LIMIT 1", true},
		{"SELECT id FROM heartbeat WHERE id = 1", true},
		{"SELECT * FROM system_settings WHERE k = 'tz'", false},
		{"SELECT id FROM analysys_results", false},
		{"SELECT c.id FROM customers c JOIN orders o ON o.customer_id = c.id", false},
	}

	for _, tt := range tests {
		if got := e.IsSystem(tt.stmt); got != tt.want {
			t.Errorf("IsSystem(%q): expected %v, got: %v", tt.stmt, tt.want, got)
		}
	}
}

// TestClassify tests first-keyword classification
func TestClassify(t *testing.T) {
	e := Default()

	tests := []struct {
		stmt string
		want stresstest.QueryKind
	}{
		{"SELECT id FROM t", stresstest.KindRead},
		{"select id from t", stresstest.KindRead},
		{"SHOW CREATE TABLE t", stresstest.KindRead},
		{"DESCRIBE products", stresstest.KindRead},
		{"DESC products", stresstest.KindRead},
		{"EXPLAIN SELECT 1", stresstest.KindRead},
		{"ANALYZE TABLE products", stresstest.KindRead},
		{"INSERT INTO t VALUES (1)", stresstest.KindWrite},
		{"UPDATE t SET a = 1", stresstest.KindWrite},
		{"DELETE FROM t", stresstest.KindWrite},
		{"CREATE TABLE t (id INT)", stresstest.KindWrite},
		{"DROP TABLE t", stresstest.KindWrite},
		{"ALTER TABLE t ADD COLUMN b INT", stresstest.KindWrite},
		{"TRUNCATE TABLE t", stresstest.KindWrite},
		{"REPLACE INTO t VALUES (1)", stresstest.KindWrite},
		{"MERGE INTO t USING s ON t.id = s.id", stresstest.KindWrite},
		{"UPSERT INTO t VALUES (1)", stresstest.KindWrite},
		{"BEGIN WORK", stresstest.KindUnknown},
		{"WITH cte AS (SELECT 1) SELECT * FROM cte", stresstest.KindUnknown},
		{"", stresstest.KindUnknown},
		{"   ", stresstest.KindUnknown},
	}

	for _, tt := range tests {
		if got := e.Classify(tt.stmt); got != tt.want {
			t.Errorf("Classify(%q): expected %q, got: %q", tt.stmt, tt.want, got)
		}
	}
}
