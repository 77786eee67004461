package clickhouse

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/logger"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

const migrationsTable = "_migrations"

type Migration struct {
	Version    uint32
	Filename   string
	Checksum   string
	Statements []string
}

type migrationKey struct {
	version  uint32
	filename string
}

// LoadMigrations reads every V<n>__<name>.sql file under dir, ordered by version.
func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	out := make([]Migration, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		version, err := parseVersion(e.Name())
		if err != nil {
			return nil, err
		}
		body, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		out = append(out, Migration{
			Version:    version,
			Filename:   e.Name(),
			Checksum:   checksum(body),
			Statements: splitStatements(string(body)),
		})
	}

	slices.SortFunc(out, func(a, b Migration) int {
		if a.Version != b.Version {
			return int(int64(a.Version) - int64(b.Version))
		}
		return strings.Compare(a.Filename, b.Filename)
	})
	return out, nil
}

// parseVersion extracts n from V<n>__<name>.sql
func parseVersion(name string) (uint32, error) {
	sep := strings.Index(name, "__")
	if !strings.HasPrefix(name, "V") || sep < 2 || !strings.HasSuffix(name, ".sql") {
		return 0, fmt.Errorf("bad migration name: %s", name)
	}
	n, err := strconv.ParseUint(name[1:sep], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bad migration version in %s: %w", name, err)
	}
	return uint32(n), nil
}

func checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// splitStatements splits on semicolons outside quotes and comments.
// Comment-only fragments are dropped.
func splitStatements(text string) []string {
	var (
		out     []string
		cur     strings.Builder
		quote   byte
		inLine  bool
		inBlock bool
	)

	flush := func() {
		stmt := strings.TrimSpace(cur.String())
		cur.Reset()
		if stmt != "" && !commentOnly(stmt) {
			out = append(out, stmt)
		}
	}

	for i := 0; i < len(text); i++ {
		ch := text[i]
		var next byte
		if i+1 < len(text) {
			next = text[i+1]
		}

		switch {
		case inLine:
			if ch == '\n' {
				inLine = false
			}
		case inBlock:
			if ch == '*' && next == '/' {
				inBlock = false
				cur.WriteByte(ch)
				i++
				ch = next
			}
		case quote != 0:
			if ch == '\\' && next != 0 {
				cur.WriteByte(ch)
				i++
				ch = next
			} else if ch == quote {
				quote = 0
			}
		case ch == '-' && next == '-':
			inLine = true
		case ch == '/' && next == '*':
			inBlock = true
		case ch == '\'' || ch == '"' || ch == '`':
			quote = ch
		case ch == ';':
			flush()
			continue
		}
		cur.WriteByte(ch)
	}
	flush()
	return out
}

func commentOnly(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}

// pendingMigrations returns migrations not yet applied. An applied migration
// whose checksum changed is an error.
func pendingMigrations(all []Migration, applied map[migrationKey]string) ([]Migration, error) {
	pending := make([]Migration, 0, len(all))
	for _, m := range all {
		sum, ok := applied[migrationKey{m.Version, m.Filename}]
		if !ok {
			pending = append(pending, m)
			continue
		}
		if sum != m.Checksum {
			return nil, fmt.Errorf("checksum mismatch for %s: already applied with different content, add V%d__... instead",
				m.Filename, m.Version+1)
		}
	}
	return pending, nil
}

// Migrate applies pending migrations in version order and records each one.
func (c *Client) Migrate(ctx context.Context, migrations []Migration) error {
	ddl := "CREATE TABLE IF NOT EXISTS " + migrationsTable + ` (
    version    UInt32,
    filename   String,
    checksum   String,
    applied_at DateTime DEFAULT now()
)
ENGINE = MergeTree
ORDER BY (version, filename)`
	if err := c.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create %s: %w", migrationsTable, err)
	}

	applied, err := c.appliedMigrations(ctx)
	if err != nil {
		return err
	}

	pending, err := pendingMigrations(migrations, applied)
	if err != nil {
		return err
	}

	for _, m := range pending {
		c.log.Info("applying migration", logger.Int("version", int(m.Version)), logger.String("file", m.Filename))
		for i, stmt := range m.Statements {
			if err := c.conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migration %s statement #%d: %w", m.Filename, i+1, err)
			}
		}
		insert := "INSERT INTO " + migrationsTable + " (version, filename, checksum) VALUES (?, ?, ?)"
		if err := c.conn.Exec(ctx, insert, m.Version, m.Filename, m.Checksum); err != nil {
			return fmt.Errorf("record migration %s: %w", m.Filename, err)
		}
	}

	c.log.Info("migrations up to date",
		logger.Int("applied", len(pending)),
		logger.Int("total", len(migrations)))
	return nil
}

func (c *Client) appliedMigrations(ctx context.Context) (map[migrationKey]string, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT version, filename, checksum FROM "+migrationsTable+" ORDER BY version, filename")
	if err != nil {
		return nil, fmt.Errorf("load applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[migrationKey]string)
	for rows.Next() {
		var (
			version  uint32
			filename string
			sum      string
		)
		if err := rows.Scan(&version, &filename, &sum); err != nil {
			return nil, err
		}
		applied[migrationKey{version, filename}] = sum
	}
	return applied, rows.Err()
}
