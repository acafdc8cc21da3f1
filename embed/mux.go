package embed

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Factory builds an embedder for the part of an identifier after its
// prefix, e.g. the model name in "openai/text-embedding-3-small".
type Factory func(rest string) (Embedder, error)

// DefaultMux is the default embedder multiplexer. It resolves "hash" to a
// Hash embedder of DefaultHashDimension and "hash/<dim>" to one of the
// given dimension.
var DefaultMux = newDefaultMux()

func newDefaultMux() *Mux {
	m := NewMux()
	_ = m.Handle("hash", NewHash(DefaultHashDimension))
	_ = m.HandleFactory("hash", func(rest string) (Embedder, error) {
		var dim int
		if _, err := fmt.Sscanf(rest, "%d", &dim); err != nil || dim <= 0 {
			return nil, fmt.Errorf("embed: invalid hash dimension %q", rest)
		}
		return NewHash(dim), nil
	})
	return m
}

// Handle registers an embedder for the given name to the default mux.
func Handle(name string, e Embedder) error {
	return DefaultMux.Handle(name, e)
}

// Get returns the embedder registered for name in the default mux.
func Get(name string) (Embedder, error) {
	return DefaultMux.Get(name)
}

// Mux routes provider identifiers to registered [Embedder]s.
//
// Identifiers use "/" separators. An exact registration wins; otherwise
// the longest registered factory prefix builds an embedder for the rest of
// the identifier, which is then cached:
//
//	mux.Handle("local", embed.NewHash(256))
//	embed.RegisterOpenAI(mux, apiKey) // serves "openai/<model>"
type Mux struct {
	mu        sync.RWMutex
	embedders map[string]Embedder
	factories map[string]Factory
}

// NewMux creates an empty multiplexer.
func NewMux() *Mux {
	return &Mux{
		embedders: make(map[string]Embedder),
		factories: make(map[string]Factory),
	}
}

// Handle registers an embedder for name.
// Returns an error if an embedder is already registered for it.
func (m *Mux) Handle(name string, e Embedder) error {
	if e == nil {
		return fmt.Errorf("embed: nil embedder for %s", name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.embedders[name]; ok {
		return fmt.Errorf("embed: embedder already registered for %s", name)
	}
	m.embedders[name] = e
	return nil
}

// HandleFactory registers f for identifiers of the form "<prefix>/<rest>".
func (m *Mux) HandleFactory(prefix string, f Factory) error {
	prefix = strings.TrimSuffix(prefix, "/")
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.factories[prefix]; ok {
		return fmt.Errorf("embed: factory already registered for %s/", prefix)
	}
	m.factories[prefix] = f
	return nil
}

// Get returns the embedder for name.
func (m *Mux) Get(name string) (Embedder, error) {
	m.mu.RLock()
	e, ok := m.embedders[name]
	m.mu.RUnlock()
	if ok {
		return e, nil
	}

	prefix, rest, f := m.factory(name)
	if f == nil {
		return nil, fmt.Errorf("embed: embedder not found for %s", name)
	}
	e, err := f(rest)
	if err != nil {
		return nil, fmt.Errorf("embed: %s: %w", prefix, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.embedders[name]; ok {
		return cur, nil
	}
	m.embedders[name] = e
	return e, nil
}

func (m *Mux) factory(name string) (prefix, rest string, f Factory) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(name) - 1; i > 0; i-- {
		if name[i] != '/' {
			continue
		}
		if f, ok := m.factories[name[:i]]; ok && i+1 < len(name) {
			return name[:i], name[i+1:], f
		}
	}
	return "", "", nil
}

// Embed embeds text using the embedder registered for name.
func (m *Mux) Embed(ctx context.Context, name string, text string) ([]float32, error) {
	e, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	return e.Embed(ctx, text)
}

// Names returns the exact registrations, unordered.
func (m *Mux) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.embedders))
	for n := range m.embedders {
		names = append(names, n)
	}
	return names
}

// RegisterOpenAI serves "openai/<model>" from mux with OpenAI embedders
// sharing apiKey and opts.
func RegisterOpenAI(mux *Mux, apiKey string, opts ...Option) error {
	return mux.HandleFactory("openai", func(model string) (Embedder, error) {
		return NewOpenAI(apiKey, append(slices.Clip(opts), WithModel(model))...), nil
	})
}
