package database

import "testing"

func TestRebind(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"no placeholders", "SELECT 1", "SELECT 1"},
		{"sequential", "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{"quoted literal", "SELECT '?' FROM t WHERE a = ?", "SELECT '?' FROM t WHERE a = $1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rebind(tt.query); got != tt.want {
				t.Errorf("rebind(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	if got := sqliteDSN("/tmp/a.db"); got != "/tmp/a.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)" {
		t.Errorf("sqliteDSN = %q", got)
	}
	if got := sqliteDSN("file:a.db?mode=rwc"); got != "file:a.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)" {
		t.Errorf("sqliteDSN = %q", got)
	}
	custom := "a.db?_pragma=journal_mode(WAL)"
	if got := sqliteDSN(custom); got != custom {
		t.Errorf("custom pragmas should be kept, got %q", got)
	}
}
