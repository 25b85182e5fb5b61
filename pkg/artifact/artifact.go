package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Artifact is the normalized reply produced by a backend adapter.
type Artifact struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Adapter   string            `json:"adapter"`
	Model     string            `json:"model"`
	Backend   string            `json:"backend,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Hash      string            `json:"hash"`
}

// New creates a new Artifact with computed hash.
func New(content, adapter, model string) *Artifact {
	a := &Artifact{
		ID:        uuid.NewString(),
		Content:   content,
		Adapter:   adapter,
		Model:     model,
		Metadata:  make(map[string]string),
		CreatedAt: time.Now().UTC(),
	}
	a.Hash = a.computeHash()
	return a
}

// ForBackend returns a copy of the artifact attributed to the backend that served it.
func (a *Artifact) ForBackend(backend string) *Artifact {
	out := a.clone()
	out.Backend = backend
	return out
}

// WithMetadata returns a new artifact with additional metadata.
func (a *Artifact) WithMetadata(key, value string) *Artifact {
	out := a.clone()
	out.Metadata[key] = value
	return out
}

func (a *Artifact) clone() *Artifact {
	return &Artifact{
		ID:        a.ID,
		Content:   a.Content,
		Adapter:   a.Adapter,
		Model:     a.Model,
		Backend:   a.Backend,
		Metadata:  copyMetadata(a.Metadata),
		CreatedAt: a.CreatedAt,
		Hash:      a.Hash,
	}
}

func (a *Artifact) computeHash() string {
	h := sha256.New()
	h.Write([]byte(a.Content))
	h.Write([]byte(a.Adapter))
	h.Write([]byte(a.Model))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func copyMetadata(m map[string]string) map[string]string {
	newM := make(map[string]string, len(m))
	for k, v := range m {
		newM[k] = v
	}
	return newM
}
