package roster

import "testing"

func TestSQLiteDSNAddsBusyTimeout(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "plain file path",
			path: "chat.db",
			want: "chat.db?_busy_timeout=5000",
		},
		{
			name: "path with existing params",
			path: "chat.db?cache=shared",
			want: "chat.db?cache=shared&_busy_timeout=5000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sqliteDSN(tt.path); got != tt.want {
				t.Errorf("sqliteDSN(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
