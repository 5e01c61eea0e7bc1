package vfs

import (
	"sort"
	"strings"
	"sync"
)

// Provider is a named filesystem backend factory.
//
// Grounded on original_source/vfs/core/src/provider_registry.rs's
// FsProvider trait: Name/Capabilities describe the provider, Mount
// constructs a filesystem instance from a MountRequest.
type Provider interface {
	Name() string
	Capabilities() Capabilities
	Mount(req MountRequest) (Filesystem, error)
}

// Filesystem is what a Provider.Mount call produces: a root Node plus the
// provider name it came from, for diagnostics.
type Filesystem interface {
	ProviderName() string
	Capabilities() Capabilities
	Root() Node
}

// MountFlags are the flags passed at mount time.
type MountFlags uint32

const (
	MountFlagNone     MountFlags = 0
	MountFlagReadOnly MountFlags = 1 << 0
)

// MountRequest is what the registry hands to a Provider's Mount method.
type MountRequest struct {
	TargetPath string
	Flags      MountFlags
	Config     any
}

// ProviderInfo describes a registered provider for introspection.
type ProviderInfo struct {
	Name         string
	Capabilities Capabilities
}

// normalizeProviderName lower-cases and validates a provider name against
// the allowed charset `a-z 0-9 . _ -`, matching
// provider_registry.rs::normalize_provider_name.
func normalizeProviderName(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", NewError(KindInvalidInput, "provider_registry.name.empty")
	}

	var b strings.Builder
	b.Grow(len(trimmed))
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		allowed := (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '.' || c == '_' || c == '-'
		if !allowed {
			return "", NewError(KindInvalidInput, "provider_registry.name.invalid_char")
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}

// ProviderRegistry is the process-wide table mapping a normalized provider
// name to its factory.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewProviderRegistry returns an empty registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{providers: make(map[string]Provider)}
}

// Register adds provider under its own normalized Name().
func (r *ProviderRegistry) Register(provider Provider) error {
	return r.RegisterNamed(provider.Name(), provider)
}

// RegisterNamed adds provider under an explicit name (pre-normalization).
func (r *ProviderRegistry) RegisterNamed(name string, provider Provider) error {
	normalized, err := normalizeProviderName(name)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[normalized]; exists {
		return NewError(KindAlreadyExists, "provider_registry.register")
	}
	r.providers[normalized] = provider
	return nil
}

// Get returns the provider registered under name, or KindNotFound.
func (r *ProviderRegistry) Get(name string) (Provider, error) {
	normalized, err := normalizeProviderName(name)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[normalized]
	if !ok {
		return nil, NewError(KindNotFound, "provider_registry.get")
	}
	return p, nil
}

// ListNames returns every registered provider name, sorted.
func (r *ProviderRegistry) ListNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListProviders returns ProviderInfo for every registered provider, sorted
// by name.
func (r *ProviderRegistry) ListProviders() []ProviderInfo {
	r.mu.RLock()
	snapshot := make(map[string]Provider, len(r.providers))
	for k, v := range r.providers {
		snapshot[k] = v
	}
	r.mu.RUnlock()

	infos := make([]ProviderInfo, 0, len(snapshot))
	for name, p := range snapshot {
		infos = append(infos, ProviderInfo{Name: name, Capabilities: p.Capabilities()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// CreateFS resolves provider by name and invokes its Mount method. Per
// provider_registry.rs's "mount acquires the provider and calls its
// factory outside the registry lock", the lock is released before Mount
// runs so a provider's own Mount implementation may itself consult the
// registry without deadlocking.
func (r *ProviderRegistry) CreateFS(providerName string, req MountRequest) (Filesystem, error) {
	provider, err := r.Get(providerName)
	if err != nil {
		return nil, err
	}
	return provider.Mount(req)
}
