package job

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
)

// HandlerFunc is a type-erased job handler that accepts the raw JSON
// payload. The typed Definition[T] is converted to a HandlerFunc at
// registration time by closing over JSON unmarshal + the typed handler.
type HandlerFunc func(ctx context.Context, payload []byte, rep *Reporter) error

// ValidateFunc checks a raw payload against the type's declared shape.
type ValidateFunc func(payload []byte) error

// Entry is everything the engine knows about a registered job type.
type Entry struct {
	Handler  HandlerFunc
	Validate ValidateFunc
	Opts     Options
}

// Registry maps job types to handlers, payload validators, and per-type
// options. It is safe for concurrent use; registration happens once at
// startup, before the engine starts admitting work.
type Registry struct {
	mu      sync.RWMutex
	entries map[Type]Entry
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[Type]Entry),
	}
}

// structValidate holds the shared validator for payload shape checks.
var structValidate = validator.New(validator.WithRequiredStructEnabled())

// RegisterDefinition registers a typed job definition. The generic
// handler is wrapped in a closure that JSON-unmarshals the payload into
// T before calling the typed handler; the payload validator decodes
// strictly (unknown fields rejected) and enforces `validate` struct
// tags.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterDefinition[T any](r *Registry, def *Definition[T]) error {
	handler := func(ctx context.Context, payload []byte, rep *Reporter) error {
		var t T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &t); err != nil {
				return fmt.Errorf("unmarshal payload for job type %q: %w", def.Type, err)
			}
		}
		return def.Handler(ctx, t, rep)
	}

	return r.register(def.Type, Entry{
		Handler:  handler,
		Validate: payloadValidator[T](def.Type),
		Opts:     def.Opts,
	})
}

// Register binds an untyped handler to a job type. Payload validation
// is limited to well-formed JSON; prefer RegisterDefinition for typed
// shape checks.
func (r *Registry) Register(typ Type, h HandlerFunc, opts ...Option) error {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return r.register(typ, Entry{
		Handler:  h,
		Validate: rawValidator(typ),
		Opts:     o,
	})
}

func (r *Registry) register(typ Type, e Entry) error {
	if !typ.Valid() {
		return fmt.Errorf("%w: %q", dutyleak.ErrUnknownType, typ)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[typ]; exists {
		return fmt.Errorf("job: handler already registered for type %q", typ)
	}
	r.entries[typ] = e
	return nil
}

// Get returns the entry for the given job type.
// Returns false if no handler is registered.
func (r *Registry) Get(typ Type) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[typ]
	return e, ok
}

// Types returns all registered job types.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]Type, 0, len(r.entries))
	for t := range r.entries {
		types = append(types, t)
	}
	return types
}

// payloadValidator builds the admission-time shape check for T: strict
// JSON decode (unknown fields rejected), then `validate` tags when T is
// a struct.
func payloadValidator[T any](typ Type) ValidateFunc {
	return func(payload []byte) error {
		var t T
		if len(payload) > 0 {
			dec := json.NewDecoder(bytes.NewReader(payload))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&t); err != nil {
				return fmt.Errorf("%w: decode %q payload: %v", dutyleak.ErrValidation, typ, err)
			}
		}

		rv := reflect.ValueOf(&t).Elem()
		for rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return nil
			}
			rv = rv.Elem()
		}
		if rv.Kind() != reflect.Struct {
			return nil
		}
		if err := structValidate.Struct(rv.Interface()); err != nil {
			return fmt.Errorf("%w: %v", dutyleak.ErrValidation, err)
		}
		return nil
	}
}

// rawValidator only requires well-formed JSON.
func rawValidator(typ Type) ValidateFunc {
	return func(payload []byte) error {
		if len(payload) == 0 {
			return nil
		}
		if !json.Valid(payload) {
			return fmt.Errorf("%w: %q payload is not valid JSON", dutyleak.ErrValidation, typ)
		}
		return nil
	}
}
