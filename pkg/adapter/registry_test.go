package adapter

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/workbench/pkg/core"
)

type stubAdapter struct {
	BaseSQLAdapter
	logger *slog.Logger
}

func (s *stubAdapter) Connect(context.Context, core.AdapterConfig) error { return nil }
func (s *stubAdapter) DialectName() string { return "stub" }

func registerStub(t *testing.T) {
	t.Helper()
	Register("Stub_Registry", func(l *slog.Logger) Adapter { return &stubAdapter{logger: l} }, "stubby", "STUB_ALIAS")
}

func TestUnknownAdapterError_Error(t *testing.T) {
	err := &UnknownAdapterError{
		Type:       "postgre",
		Available:  []string{"duckdb", "postgres"},
		Suggestion: "postgres",
	}

	msg := err.Error()
	assert.Contains(t, msg, `unknown adapter type "postgre"`)
	assert.Contains(t, msg, "available: duckdb, postgres")
	assert.Contains(t, msg, `did you mean "postgres"?`)
	assert.Contains(t, msg, "workbench.yaml")

	err.Suggestion = ""
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestRegister(t *testing.T) {
	registerStub(t)

	assert.True(t, IsRegistered("stub_registry"), "registration should be case-insensitive")
	factory, ok := Get("STUB_REGISTRY")
	require.True(t, ok)
	assert.NotNil(t, factory(nil))
	assert.Contains(t, ListAdapters(), "stub_registry")
}

func TestResolve(t *testing.T) {
	registerStub(t)

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "stub_registry", want: "stub_registry", ok: true},
		{in: "Stubby", want: "stub_registry", ok: true},
		{in: " stub_alias ", want: "stub_registry", ok: true},
		{in: "nope", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Resolve(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.NotContains(t, ListAdapters(), "stubby", "aliases are not listed")
}

func TestNewAdapter_EmptyType(t *testing.T) {
	_, err := NewAdapter(Config{Type: ""}, nil)
	require.Error(t, err, "NewAdapter with empty type should fail")
	assert.Equal(t, "adapter type not specified", err.Error(), "error message")
}

func TestNewAdapter_Alias(t *testing.T) {
	registerStub(t)

	a, err := NewAdapter(Config{Type: "stubby"}, nil)
	require.NoError(t, err)
	stub, ok := a.(*stubAdapter)
	require.True(t, ok)
	assert.NotNil(t, stub.logger)
}

func TestNewAdapter_Unknown(t *testing.T) {
	registerStub(t)

	_, err := NewAdapter(Config{Type: "stubb_x"}, nil)
	require.Error(t, err)

	var unknown *UnknownAdapterError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "stubb_x", unknown.Type)
	assert.Equal(t, "stub_registry", unknown.Suggestion)

	_, err = NewAdapter(Config{Type: "bigquery"}, nil)
	require.ErrorAs(t, err, &unknown)
	assert.Empty(t, unknown.Suggestion)
}
