package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/workbench/pkg/adapter"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  adapter.Config
		want string
	}{
		{
			name: "defaults",
			cfg:  adapter.Config{Database: "app"},
			want: "host=localhost port=5432 dbname=app sslmode=disable",
		},
		{
			name: "empty database is quoted",
			cfg:  adapter.Config{},
			want: "host=localhost port=5432 dbname='' sslmode=disable",
		},
		{
			name: "credentials and schema",
			cfg: adapter.Config{
				Host:     "db.internal",
				Port:     6543,
				Database: "app",
				Username: "bob",
				Password: "secret",
				Schema:   "analytics",
				Options:  map[string]string{"sslmode": "require"},
			},
			want: "host=db.internal port=6543 dbname=app sslmode=require user=bob password=secret search_path=analytics",
		},
		{
			name: "quoting",
			cfg:  adapter.Config{Database: "app", Password: `it's a \secret`},
			want: `host=localhost port=5432 dbname=app sslmode=disable password='it\'s a \\secret'`,
		},
		{
			name: "extra options pass through but pool options do not",
			cfg: adapter.Config{
				Database: "app",
				Options: map[string]string{
					"application_name":      "workbench",
					"connect_timeout":       "5",
					adapter.OptMaxOpenConns: "4",
				},
			},
			want: "host=localhost port=5432 dbname=app sslmode=disable application_name=workbench connect_timeout=5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildDSN(tt.cfg))
		})
	}
}

func TestAdapter_DialectName(t *testing.T) {
	assert.Equal(t, "postgres", New(nil).DialectName())
}

func TestRegistered(t *testing.T) {
	for _, name := range []string{"postgres", "PostgreSQL", "pg"} {
		got, ok := adapter.Resolve(name)
		assert.True(t, ok, name)
		assert.Equal(t, "postgres", got)
	}
}
