package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var ErrToolNotFound = errors.New("tool not found")

const DefaultMaxResultChars = 6000

// Handler runs one tool. It must return promptly and produce a bounded text
// result suitable for the reasoning engine's context window.
type Handler func(ctx context.Context, args Args) (string, error)

// Descriptor is one registered tool.
type Descriptor struct {
	Name        Name
	Description string
	Schema      Schema
	Handler     Handler

	validator *Validator
}

// Registry is populated at startup and read-only afterwards; lookups are safe
// for concurrent use once registration is complete.
type Registry struct {
	tools          map[Name]*Descriptor
	order          []Name
	maxResultChars int
}

type RegistryOption func(*Registry)

// WithMaxResultChars caps the length, in runes, of every handler result.
func WithMaxResultChars(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxResultChars = n
		}
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:          make(map[Name]*Descriptor),
		maxResultChars: DefaultMaxResultChars,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool from the closed set. Each name may be registered once.
func (r *Registry) Register(d Descriptor) error {
	if _, ok := ParseName(string(d.Name)); !ok {
		return fmt.Errorf("register %q: not a known tool", d.Name)
	}
	if _, exists := r.tools[d.Name]; exists {
		return fmt.Errorf("register %q: already registered", d.Name)
	}
	if d.Handler == nil {
		return fmt.Errorf("register %q: nil handler", d.Name)
	}
	v, err := NewValidator(d.Name, d.Schema)
	if err != nil {
		return err
	}
	d.validator = v
	r.tools[d.Name] = &d
	r.order = append(r.order, d.Name)
	return nil
}

func (r *Registry) Get(name string) (*Descriptor, error) {
	n, ok := ParseName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	d, ok := r.tools[n]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return d, nil
}

// List returns the registered tools in registration order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, *r.tools[n])
	}
	return out
}

// Validate applies the tool's schema to raw engine arguments.
func (d *Descriptor) Validate(args map[string]any) (Args, error) {
	v := d.validator
	if v == nil {
		var err error
		if v, err = NewValidator(d.Name, d.Schema); err != nil {
			return nil, err
		}
	}
	return v.Apply(args)
}

// Dispatch looks up, validates and runs a tool. Lookup failures wrap
// ErrToolNotFound and argument problems are *ValidationError; both are meant
// to be reported back to the engine rather than aborting the conversation.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) (string, error) {
	d, err := r.Get(name)
	if err != nil {
		return "", err
	}
	valid, err := d.Validate(args)
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "dispatching tool", "tool", d.Name)
	out, err := d.Handler(ctx, valid)
	if err != nil {
		return "", fmt.Errorf("%s: %w", d.Name, err)
	}
	return Truncate(out, r.maxResultChars), nil
}

// Truncate shortens s to at most n runes, marking the cut.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	const marker = "\n...[truncated]"
	keep := n - len([]rune(marker))
	if keep < 0 {
		return string(runes[:n])
	}
	return string(runes[:keep]) + marker
}
