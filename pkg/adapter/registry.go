package adapter

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// Factory builds an unconnected adapter.
type Factory func(*slog.Logger) Adapter

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
	aliases    = make(map[string]string)
)

// Register adds an adapter factory under name and optional aliases.
// Adapter packages call it from init. Names are case-insensitive.
func Register(name string, factory Factory, alias ...string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	name = strings.ToLower(name)
	factories[name] = factory
	for _, a := range alias {
		aliases[strings.ToLower(a)] = name
	}
}

// Resolve maps a registered name or alias to the adapter's name.
func Resolve(name string) (string, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return resolveLocked(strings.ToLower(strings.TrimSpace(name)))
}

func resolveLocked(name string) (string, bool) {
	if _, ok := factories[name]; ok {
		return name, true
	}
	if target, ok := aliases[name]; ok {
		return target, true
	}
	return "", false
}

// Get retrieves an adapter factory by name or alias.
func Get(name string) (Factory, bool) {
	canonical, ok := Resolve(name)
	if !ok {
		return nil, false
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	return factories[canonical], true
}

// NewAdapter creates an adapter for cfg.Type. A nil logger discards output.
func NewAdapter(cfg Config, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("adapter type not specified")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, NewUnknownAdapterError(cfg.Type)
	}
	return factory(logger.With(slog.String("adapter", cfg.Type))), nil
}

// ListAdapters returns the registered adapter names, sorted. Aliases are
// not included.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered checks if name or alias resolves to an adapter.
func IsRegistered(name string) bool {
	_, ok := Resolve(name)
	return ok
}

// UnknownAdapterError is returned when an unknown adapter type is requested.
type UnknownAdapterError struct {
	Type       string
	Available  []string
	Suggestion string
}

// NewUnknownAdapterError describes typ against the current registry.
func NewUnknownAdapterError(typ string) *UnknownAdapterError {
	return &UnknownAdapterError{
		Type:       typ,
		Available:  ListAdapters(),
		Suggestion: suggest(typ),
	}
}

func (e *UnknownAdapterError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "unknown adapter type %q (available: %s)", e.Type, strings.Join(e.Available, ", "))
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "; did you mean %q?", e.Suggestion)
	}
	b.WriteString("\nHint: check target.type in workbench.yaml")
	return b.String()
}

// suggest returns the adapter whose name or alias shares a prefix of at
// least three characters with typ.
func suggest(typ string) string {
	typ = strings.ToLower(strings.TrimSpace(typ))
	if len(typ) < 3 {
		return ""
	}
	registryMu.RLock()
	defer registryMu.RUnlock()

	candidates := make([]string, 0, len(factories)+len(aliases))
	for name := range factories {
		candidates = append(candidates, name)
	}
	for a := range aliases {
		candidates = append(candidates, a)
	}
	slices.Sort(candidates)
	for _, c := range candidates {
		if strings.HasPrefix(c, typ[:3]) {
			target, _ := resolveLocked(c)
			return target
		}
	}
	return ""
}
