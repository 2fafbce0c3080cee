// Package adapter holds the database adapter registry and the database/sql
// plumbing the concrete adapters share. Adapters live under pkg/adapters and
// register themselves from init, so importing one with a blank identifier
// makes its target type available.
package adapter

import "github.com/leapstack-labs/workbench/pkg/core"

type (
	// Config is an alias for core.AdapterConfig.
	Config = core.AdapterConfig

	// Rows is an alias for core.Rows.
	Rows = core.Rows

	// Adapter is an alias for core.Adapter.
	Adapter = core.Adapter
)
