// Package catalog holds the set of configured backends.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/zen-systems/switchboard/pkg/adapter"
)

// State is the operator-controlled enablement of a backend.
type State int

const (
	// StateEnabled backends take part in automatic fallback.
	StateEnabled State = iota
	// StateDisabledByOperator backends are only used when named explicitly.
	StateDisabledByOperator
)

func (s State) String() string {
	switch s {
	case StateEnabled:
		return "enabled"
	case StateDisabledByOperator:
		return "disabled_by_operator"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name for JSON and YAML.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Strength tags matched against classifier signals.
const (
	TagCode        = "code"
	TagCreative    = "creative"
	TagMath        = "math"
	TagTranslation = "translation"
	TagNonLatin    = "non_latin"
	TagSimple      = "simple"
	TagComplex     = "complex"
)

// MaxWeight is the upper bound for a backend base weight.
const MaxWeight = 100

// ErrNotFound is returned for ids missing from the catalog.
var ErrNotFound = errors.New("backend not found")

// Descriptor describes one backend.
type Descriptor struct {
	ID           string           `json:"id"`
	Adapter      adapter.Adapter  `json:"-"`
	Model        string           `json:"model"`
	Weight       int              `json:"weight"`
	State        State            `json:"state"`
	Tags         []string         `json:"tags,omitempty"`
	Credentialed bool             `json:"credentialed"`
	Pricing      *adapter.Pricing `json:"pricing,omitempty"`

	// KeyEnv names the environment variable holding the credential.
	KeyEnv string `json:"key_env,omitempty"`
}

// Enabled reports whether the operator has left the backend on.
func (d Descriptor) Enabled() bool {
	return d.State == StateEnabled && d.Weight > 0
}

// Eligible reports whether the backend may join automatic fallback.
func (d Descriptor) Eligible() bool {
	return d.Credentialed && d.Enabled()
}

// HasTag reports whether the backend carries a strength tag.
func (d Descriptor) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AdapterName returns the adapter identifier, or "" when none is attached.
func (d Descriptor) AdapterName() string {
	if d.Adapter == nil {
		return ""
	}
	return d.Adapter.Name()
}

// Catalog is the registry of backends; safe for concurrent use.
type Catalog struct {
	mu       sync.RWMutex
	backends map[string]*Descriptor
	lookup   func(string) (string, bool)
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithEnvLookup replaces os.LookupEnv for credential checks.
func WithEnvLookup(fn func(string) (string, bool)) Option {
	return func(c *Catalog) {
		c.lookup = fn
	}
}

// New builds a catalog from descriptors. Duplicate ids are rejected.
func New(descriptors []Descriptor, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		backends: make(map[string]*Descriptor, len(descriptors)),
		lookup:   os.LookupEnv,
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, d := range descriptors {
		if err := c.Add(d); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add registers a backend.
func (c *Catalog) Add(d Descriptor) error {
	if d.ID == "" {
		return fmt.Errorf("backend id is required")
	}
	if d.Weight < 0 || d.Weight > MaxWeight {
		return fmt.Errorf("backend %s: weight %d out of range 0..%d", d.ID, d.Weight, MaxWeight)
	}
	if d.Weight == 0 {
		d.State = StateDisabledByOperator
	}
	d.Tags = append([]string(nil), d.Tags...)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.backends[d.ID]; exists {
		return fmt.Errorf("duplicate backend id %q", d.ID)
	}
	c.backends[d.ID] = &d
	return nil
}

// Get returns a copy of the descriptor for id.
func (c *Catalog) Get(id string) (Descriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.backends[id]
	if !ok {
		return Descriptor{}, false
	}
	return d.clone(), true
}

// Credentialed reports the current credential flag for id.
func (c *Catalog) Credentialed(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.backends[id]
	return ok && d.Credentialed
}

// List returns copies of all descriptors sorted by id.
func (c *Catalog) List() []Descriptor {
	c.mu.RLock()
	out := make([]Descriptor, 0, len(c.backends))
	for _, d := range c.backends {
		out = append(out, d.clone())
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns the sorted backend ids.
func (c *Catalog) IDs() []string {
	list := c.List()
	ids := make([]string, len(list))
	for i, d := range list {
		ids[i] = d.ID
	}
	return ids
}

// SetWeight changes the base weight. Zero disables the backend; a positive
// weight re-enables it.
func (c *Catalog) SetWeight(id string, weight int) error {
	if weight < 0 || weight > MaxWeight {
		return fmt.Errorf("weight %d out of range 0..%d", weight, MaxWeight)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.backends[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	d.Weight = weight
	if weight == 0 {
		d.State = StateDisabledByOperator
	} else {
		d.State = StateEnabled
	}
	return nil
}

// SetState changes the operator state without touching the weight.
func (c *Catalog) SetState(id string, state State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.backends[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	d.State = state
	return nil
}

// SetCredentialed overrides the credential flag, e.g. after a key was revoked.
func (c *Catalog) SetCredentialed(id string, ok bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, found := c.backends[id]
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	d.Credentialed = ok
	return nil
}

// RefreshCredentials recomputes the credential flag of every backend that
// names a key variable. Backends without KeyEnv are left unchanged.
func (c *Catalog) RefreshCredentials() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.backends {
		if d.KeyEnv == "" {
			continue
		}
		v, ok := c.lookup(d.KeyEnv)
		d.Credentialed = ok && v != ""
	}
}

func (d *Descriptor) clone() Descriptor {
	out := *d
	out.Tags = append([]string(nil), d.Tags...)
	if d.Pricing != nil {
		p := *d.Pricing
		out.Pricing = &p
	}
	return out
}
