package formats

import (
	"sort"
	"strings"
	"sync"

	"github.com/ajitpratap0/formatflow/pkg/errors"
	"github.com/ajitpratap0/formatflow/pkg/logger"
	"go.uber.org/zap"
)

// Registry manages codec registration and lookup.
//
// A registry is mutable until Freeze is called. Executors freeze the registry
// they are built with, so registration must complete before any run starts.
type Registry struct {
	codecs map[ID]Codec
	exts   map[string]ID
	frozen bool
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		codecs: make(map[ID]Codec),
		exts:   make(map[string]ID),
		logger: logger.Get().With(zap.String("component", "format_registry")),
	}
}

// Default creates a registry holding every built-in codec
func Default() *Registry {
	r := NewRegistry()
	for _, b := range builtins() {
		r.MustRegister(b.id, b.codec)
	}
	return r
}

// Register adds or replaces the codec stored under id
func (r *Registry) Register(id ID, codec Codec) error {
	if codec == nil {
		return errors.Newf(errors.ErrorTypeConfig, "nil codec for format %s", id)
	}
	norm, err := ParseID(string(id))
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errors.Newf(errors.ErrorTypeConfig, "registry is frozen, cannot register %s", norm)
	}

	if _, exists := r.codecs[norm]; exists {
		r.logger.Debug("format replaced", zap.String("format", string(norm)))
	}
	r.codecs[norm] = codec
	if ex, ok := codec.(Extensioner); ok {
		for _, ext := range ex.Extensions() {
			r.exts[normalizeExt(ext)] = norm
		}
	}
	return nil
}

// MustRegister is Register that panics on error, for program initialization
func (r *Registry) MustRegister(id ID, codec Codec) {
	if err := r.Register(id, codec); err != nil {
		panic(err)
	}
}

// Resolve returns the codec stored under id
func (r *Registry) Resolve(id ID) (Codec, error) {
	norm, err := ParseID(string(id))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeUnknownFormat, string(id))
	}

	r.mu.RLock()
	codec, ok := r.codecs[norm]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.New(errors.ErrorTypeUnknownFormat, string(norm)).
			WithDetail("format", string(norm))
	}
	return codec, nil
}

// Has reports whether id resolves
func (r *Registry) Has(id ID) bool {
	_, err := r.Resolve(id)
	return err == nil
}

// ForExtension maps a file extension, with or without the leading dot, to the
// registered format claiming it
func (r *Registry) ForExtension(ext string) (ID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.exts[normalizeExt(ext)]
	return id, ok
}

// Extensions returns the extensions claimed by id
func (r *Registry) Extensions(id ID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for ext, owner := range r.exts {
		if owner == id {
			out = append(out, ext)
		}
	}
	sort.Strings(out)
	return out
}

// List returns the registered ids in sorted order
func (r *Registry) List() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]ID, 0, len(r.codecs))
	for id := range r.codecs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Freeze makes the registry read-only. It is idempotent.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.frozen {
		r.frozen = true
		r.logger.Debug("registry frozen", zap.Int("formats", len(r.codecs)))
	}
}

// Frozen reports whether Freeze has been called
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Clone returns an unfrozen copy, useful to extend a frozen registry for a
// new set of runs
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := NewRegistry()
	for id, codec := range r.codecs {
		c.codecs[id] = codec
	}
	for ext, id := range r.exts {
		c.exts[ext] = id
	}
	return c
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

type builtin struct {
	id    ID
	codec Codec
}

func builtins() []builtin {
	return []builtin{
		{JSON, JSONCodec{}},
		{YAML, YAMLCodec{}},
		{TOML, TOMLCodec{}},
		{INI, INICodec{}},
		{CSV, CSVCodec{}},
		{XML, XMLCodec{}},
		{Plaintext, PlaintextCodec{}},
		{Markdown, MarkdownCodec{}},
	}
}
