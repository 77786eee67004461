package clickhouse

import (
	"reflect"
	"strings"
	"testing"
	"testing/fstest"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		want    uint32
		wantErr bool
	}{
		{"V1__create_trades_table.sql", 1, false},
		{"V12__add_index.sql", 12, false},
		{"v1__lower.sql", 0, true},
		{"V__missing.sql", 0, true},
		{"V1_single_underscore.sql", 0, true},
		{"V1__not_sql.txt", 0, true},
		{"Vx__bad.sql", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseVersion(tc.name)
			if (err != nil) != tc.wantErr {
				t.Fatalf("expected error=%v, got %v", tc.wantErr, err)
			}
			if got != tc.want {
				t.Errorf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	text := `
-- header comment; with a semicolon
CREATE TABLE a (x String DEFAULT 'a;b');
/* block; comment */ ALTER TABLE a ADD COLUMN y UInt8;

-- trailing comment only
`
	got := splitStatements(text)
	if len(got) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(got), got)
	}
	if !strings.Contains(got[0], "DEFAULT 'a;b'") {
		t.Errorf("quoted semicolon split the statement: %q", got[0])
	}
	if !strings.HasSuffix(got[1], "ADD COLUMN y UInt8") {
		t.Errorf("unexpected second statement: %q", got[1])
	}
}

func TestLoadMigrations_Ordered(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/V10__ten.sql": {Data: []byte("SELECT 10;")},
		"sql/V2__two.sql":  {Data: []byte("SELECT 2; SELECT 22;")},
		"sql/V1__one.sql":  {Data: []byte("SELECT 1")},
		"sql/README.md":    {Data: []byte("ignored")},
	}

	migrations, err := LoadMigrations(fsys, "sql")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var versions []uint32
	for _, m := range migrations {
		versions = append(versions, m.Version)
	}
	if want := []uint32{1, 2, 10}; !reflect.DeepEqual(versions, want) {
		t.Fatalf("expected versions %v, got %v", want, versions)
	}
	if len(migrations[1].Statements) != 2 {
		t.Errorf("expected V2 to have 2 statements, got %d", len(migrations[1].Statements))
	}
	if migrations[0].Checksum != checksum([]byte("SELECT 1")) {
		t.Error("checksum does not match file content")
	}
}

func TestLoadMigrations_BadName(t *testing.T) {
	fsys := fstest.MapFS{"sql/create.sql": {Data: []byte("SELECT 1")}}
	if _, err := LoadMigrations(fsys, "sql"); err == nil {
		t.Error("expected error for a badly named migration")
	}
}

func TestLoadMigrations_Embedded(t *testing.T) {
	migrations, err := LoadMigrations(migrationFiles, "sql")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) == 0 || migrations[0].Filename != "V1__create_trades_table.sql" {
		t.Fatalf("expected V1 trades migration first, got %+v", migrations)
	}
	if !strings.Contains(migrations[0].Statements[0], "CREATE TABLE IF NOT EXISTS trades") {
		t.Errorf("unexpected V1 statement: %q", migrations[0].Statements[0])
	}
}

func TestPendingMigrations(t *testing.T) {
	all := []Migration{
		{Version: 1, Filename: "V1__a.sql", Checksum: "aaa"},
		{Version: 2, Filename: "V2__b.sql", Checksum: "bbb"},
	}

	t.Run("skips applied", func(t *testing.T) {
		pending, err := pendingMigrations(all, map[migrationKey]string{{1, "V1__a.sql"}: "aaa"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(pending) != 1 || pending[0].Version != 2 {
			t.Errorf("expected only V2 pending, got %+v", pending)
		}
	})

	t.Run("edited applied migration", func(t *testing.T) {
		_, err := pendingMigrations(all, map[migrationKey]string{{1, "V1__a.sql"}: "changed"})
		if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
			t.Errorf("expected checksum mismatch, got %v", err)
		}
	})

	t.Run("fresh database", func(t *testing.T) {
		pending, err := pendingMigrations(all, map[migrationKey]string{})
		if err != nil || len(pending) != 2 {
			t.Errorf("expected both pending, got %d (%v)", len(pending), err)
		}
	})
}

func TestValidateIdentAndClamp(t *testing.T) {
	if err := validateIdent("crypto"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := validateIdent("crypto; DROP"); err == nil {
		t.Error("expected unsafe identifier error")
	}
	if got := clampLimit(0, 500, 500); got != 500 {
		t.Errorf("expected default 500, got %d", got)
	}
	if got := clampLimit(9000, 10, 100); got != 100 {
		t.Errorf("expected clamp to 100, got %d", got)
	}
	if got := boolToUInt8(true); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
}
