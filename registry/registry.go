package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tagwire/tagwire/schema"
)

// Binding errors. All schema problems surface here, when a descriptor is
// registered or resolved, never during encode or decode.
var (
	ErrNotFound        = errors.New("not found in registry")
	ErrDuplicateType   = errors.New("type name already registered")
	ErrDuplicateNumber = errors.New("duplicate field number")
	ErrDuplicateField  = errors.New("duplicate field name")
	ErrUnknownKind     = errors.New("no codec rule for field kind")
	ErrBadWidth        = errors.New("integer width must be 32 or 64")
	ErrUnresolvedRef   = errors.New("unresolved type reference")
	ErrUnsupportedType = errors.New("unsupported proto type")
)

// Registry stores message descriptors and enums by fully-qualified name and
// validates them as they are bound. It implements wire.Resolver.
type Registry struct {
	descriptors map[string]*schema.Descriptor
	enums       map[string]*schema.Enum
	log         zerolog.Logger
}

// NewRegistry creates an empty registry with logging disabled.
func NewRegistry() *Registry {
	return &Registry{
		descriptors: make(map[string]*schema.Descriptor),
		enums:       make(map[string]*schema.Enum),
		log:         zerolog.Nop(),
	}
}

// SetLogger installs a logger for registration and schema-load debugging.
func (r *Registry) SetLogger(log zerolog.Logger) {
	r.log = log
}

// Register binds one descriptor, validating it immediately: every field
// kind must have a codec rule, integer widths must be 32 or 64, and field
// numbers and names must be unique within the descriptor. Cross-type
// references are checked later by Resolve, once the whole batch is in.
func (r *Registry) Register(desc *schema.Descriptor) error {
	if desc.Name == "" {
		return fmt.Errorf("descriptor has no name")
	}
	if _, exists := r.descriptors[desc.Name]; exists {
		return fmt.Errorf("message %s: %w", desc.Name, ErrDuplicateType)
	}

	numbers := make(map[int32]string, len(desc.Fields))
	names := make(map[string]bool, len(desc.Fields))
	for _, f := range desc.Fields {
		if f.Name == "" {
			return fmt.Errorf("message %s: field %d has no name", desc.Name, f.Number)
		}
		if f.Number <= 0 {
			return fmt.Errorf("message %s, field %s: field number %d is not positive",
				desc.Name, f.Name, f.Number)
		}
		if prev, dup := numbers[f.Number]; dup {
			return fmt.Errorf("message %s: %w: %d used by %s and %s",
				desc.Name, ErrDuplicateNumber, f.Number, prev, f.Name)
		}
		numbers[f.Number] = f.Name
		if names[f.Name] {
			return fmt.Errorf("message %s: %w: %s", desc.Name, ErrDuplicateField, f.Name)
		}
		names[f.Name] = true

		if err := validateType(&f.Type); err != nil {
			return fmt.Errorf("message %s, field %s: %w", desc.Name, f.Name, err)
		}
	}

	r.descriptors[desc.Name] = desc
	r.log.Debug().Str("message", desc.Name).Int("fields", len(desc.Fields)).
		Msg("descriptor registered")
	return nil
}

// RegisterEnum binds one enum.
func (r *Registry) RegisterEnum(e *schema.Enum) error {
	if e.Name == "" {
		return fmt.Errorf("enum has no name")
	}
	if _, exists := r.enums[e.Name]; exists {
		return fmt.Errorf("enum %s: %w", e.Name, ErrDuplicateType)
	}
	seen := make(map[string]bool, len(e.Values))
	for _, v := range e.Values {
		if seen[v.Name] {
			return fmt.Errorf("enum %s: %w: %s", e.Name, ErrDuplicateField, v.Name)
		}
		seen[v.Name] = true
	}
	r.enums[e.Name] = e
	r.log.Debug().Str("enum", e.Name).Int("values", len(e.Values)).Msg("enum registered")
	return nil
}

// validateType checks one semantic type, normalizing an unset integer width
// to 64 bits.
func validateType(t *schema.Type) error {
	switch t.Kind {
	case schema.KindSint, schema.KindUint:
		if t.Bits == 0 {
			t.Bits = 64
		}
		if t.Bits != 32 && t.Bits != 64 {
			return fmt.Errorf("%w: %d", ErrBadWidth, t.Bits)
		}
	case schema.KindEnum:
		if t.Bits == 0 {
			t.Bits = 32
		}
		if t.Bits != 32 && t.Bits != 64 {
			return fmt.Errorf("%w: %d", ErrBadWidth, t.Bits)
		}
	case schema.KindBool, schema.KindBytes:
	case schema.KindMessage:
		if t.Message == "" {
			return fmt.Errorf("%w: message field names no type", ErrUnresolvedRef)
		}
	case schema.KindRepeated:
		if t.Elem == nil {
			return fmt.Errorf("repeated field has no element type")
		}
		if t.Elem.Kind == schema.KindRepeated {
			return fmt.Errorf("%w: repeated of repeated", ErrUnknownKind)
		}
		return validateType(t.Elem)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, t.Kind)
	}
	return nil
}

// Resolve verifies that every message and enum reference in every bound
// descriptor points at a bound type. After a successful Resolve the engines
// can never hit a schema error.
func (r *Registry) Resolve() error {
	for name, desc := range r.descriptors {
		for _, f := range desc.Fields {
			if err := r.resolveType(&f.Type); err != nil {
				return fmt.Errorf("message %s, field %s: %w", name, f.Name, err)
			}
		}
	}
	return nil
}

func (r *Registry) resolveType(t *schema.Type) error {
	switch t.Kind {
	case schema.KindMessage:
		if _, err := r.Descriptor(t.Message); err != nil {
			return fmt.Errorf("%w: message %q", ErrUnresolvedRef, t.Message)
		}
	case schema.KindEnum:
		if t.Enum != "" {
			if _, err := r.Enum(t.Enum); err != nil {
				return fmt.Errorf("%w: enum %q", ErrUnresolvedRef, t.Enum)
			}
		}
	case schema.KindRepeated:
		return r.resolveType(t.Elem)
	}
	return nil
}

// Descriptor retrieves a message descriptor by name, trying an unqualified
// suffix match when the exact name is not bound.
func (r *Registry) Descriptor(name string) (*schema.Descriptor, error) {
	if desc, exists := r.descriptors[name]; exists {
		return desc, nil
	}
	for fullName, desc := range r.descriptors {
		if strings.HasSuffix(fullName, "."+name) {
			return desc, nil
		}
	}
	return nil, fmt.Errorf("message %s: %w", name, ErrNotFound)
}

// Enum retrieves an enum by name, with the same suffix fallback.
func (r *Registry) Enum(name string) (*schema.Enum, error) {
	if e, exists := r.enums[name]; exists {
		return e, nil
	}
	for fullName, e := range r.enums {
		if strings.HasSuffix(fullName, "."+name) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("enum %s: %w", name, ErrNotFound)
}

// ListMessages returns all bound message names, sorted.
func (r *Registry) ListMessages() []string {
	names := make([]string, 0, len(r.descriptors))
	for name := range r.descriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListEnums returns all bound enum names, sorted.
func (r *Registry) ListEnums() []string {
	names := make([]string, 0, len(r.enums))
	for name := range r.enums {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
