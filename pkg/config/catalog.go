package config

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/zen-systems/switchboard/pkg/adapter"
	"github.com/zen-systems/switchboard/pkg/catalog"
)

// BuildOptions adjusts how Catalog builds adapters.
type BuildOptions struct {
	// Lookup replaces os.LookupEnv for credentials.
	Lookup func(string) (string, bool)
	// Adapters replaces the adapter for a backend id, e.g. mocks in tests.
	Adapters map[string]adapter.Adapter
}

// Catalog turns the backend section into a catalog. Keyed adapters are
// built on first use so a credential that appears after startup is picked
// up by RefreshCredentials without rebuilding the catalog.
func (c *Config) Catalog(bo BuildOptions) (*catalog.Catalog, error) {
	lookup := bo.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	descs := make([]catalog.Descriptor, 0, len(c.Backends))
	for _, b := range c.Backends {
		d := catalog.Descriptor{
			ID:      b.ID,
			Model:   c.ResolveModel(b.Model),
			Weight:  b.EffectiveWeight(),
			Tags:    b.Tags,
			Pricing: b.pricing(),
			KeyEnv:  b.APIKeyEnv,
		}
		if b.Disabled {
			d.State = catalog.StateDisabledByOperator
		}

		if a, ok := bo.Adapters[b.ID]; ok {
			d.Adapter = a
			d.Credentialed = true
			d.KeyEnv = ""
		} else {
			a, credentialed, err := buildAdapter(b, lookup)
			if err != nil {
				return nil, fmt.Errorf("backend %s: %w", b.ID, err)
			}
			d.Adapter = a
			d.Credentialed = credentialed
		}
		descs = append(descs, d)
	}
	return catalog.New(descs, catalog.WithEnvLookup(lookup))
}

func buildAdapter(b BackendConfig, lookup func(string) (string, bool)) (adapter.Adapter, bool, error) {
	kind := adapter.NormalizeKind(b.Adapter)
	var opts []adapter.Option
	if b.BaseURL != "" {
		opts = append(opts, adapter.WithBaseURL(b.BaseURL))
	}

	if !adapter.RequiresKey(kind) {
		a, err := adapter.New(kind, "", opts...)
		return a, true, err
	}
	if b.APIKeyEnv == "" {
		return nil, false, fmt.Errorf("adapter %s needs api_key_env", kind)
	}
	key, ok := lookup(b.APIKeyEnv)
	return &keyedAdapter{
		kind:   kind,
		keyEnv: b.APIKeyEnv,
		lookup: lookup,
		opts:   opts,
	}, ok && key != "", nil
}

// keyedAdapter defers construction of a keyed adapter until the first call
// and rebuilds it when the credential changes.
type keyedAdapter struct {
	kind   string
	keyEnv string
	lookup func(string) (string, bool)
	opts   []adapter.Option

	mu    sync.Mutex
	key   string
	inner adapter.Adapter
}

func (k *keyedAdapter) Name() string {
	return k.kind
}

func (k *keyedAdapter) Models() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.inner == nil {
		return nil
	}
	return k.inner.Models()
}

func (k *keyedAdapter) Chat(ctx context.Context, req adapter.Request) (*adapter.Response, error) {
	a, err := k.current()
	if err != nil {
		return nil, &adapter.AdapterError{Adapter: k.kind, Err: err}
	}
	return a.Chat(ctx, req)
}

func (k *keyedAdapter) current() (adapter.Adapter, error) {
	key, _ := k.lookup(k.keyEnv)
	if key == "" {
		return nil, fmt.Errorf("%s is not set", k.keyEnv)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.inner != nil && k.key == key {
		return k.inner, nil
	}
	a, err := adapter.New(k.kind, key, k.opts...)
	if err != nil {
		return nil, err
	}
	k.inner, k.key = a, key
	return a, nil
}
