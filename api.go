// Package tagwire is a generic tag/length/value wire codec: a single
// encoder and decoder pair driven by schema descriptors instead of
// per-message generated code. Messages are represented as
// map[string]interface{} values shaped by their descriptor; the wire format
// is varint tags, varint and zigzag scalars, and length-delimited framing
// for byte sequences, nested messages, and packed repeated runs.
package tagwire

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/tagwire/tagwire/registry"
	"github.com/tagwire/tagwire/schema"
	"github.com/tagwire/tagwire/wire"
)

// Codec provides schema-aware encode and decode over a descriptor registry.
type Codec struct {
	registry *registry.Registry
}

// New creates a new Codec with an empty registry.
func New() *Codec {
	return &Codec{
		registry: registry.NewRegistry(),
	}
}

// NewWithLogger creates a Codec whose registry logs schema events to log.
func NewWithLogger(log zerolog.Logger) *Codec {
	c := New()
	c.registry.SetLogger(log)
	return c
}

// LoadSchema loads descriptors from a .proto file or directory tree.
func (c *Codec) LoadSchema(path string) error {
	return c.registry.LoadSchema(path)
}

// Register binds a descriptor built in code.
func (c *Codec) Register(desc *schema.Descriptor) error {
	return c.registry.Register(desc)
}

// RegisterEnum binds an enum built in code.
func (c *Codec) RegisterEnum(e *schema.Enum) error {
	return c.registry.RegisterEnum(e)
}

// Resolve verifies cross-type references after a batch of Register calls.
// LoadSchema resolves on its own.
func (c *Codec) Resolve() error {
	return c.registry.Resolve()
}

// Decode parses wire bytes into a message value. Every byte sequence in the
// result is allocated from arena and stays valid until the caller releases
// it.
func (c *Codec) Decode(data []byte, messageType string, arena *wire.Arena) (map[string]interface{}, error) {
	desc, err := c.registry.Descriptor(messageType)
	if err != nil {
		return nil, fmt.Errorf("message type not found: %s", messageType)
	}
	return wire.DecodeMessage(data, desc, c.registry, arena)
}

// DecodeFrom is Decode over a sequential byte source. A source that ends at
// a tag boundary yields the message read so far; one that ends inside a
// value fails.
func (c *Codec) DecodeFrom(r io.Reader, messageType string, arena *wire.Arena) (map[string]interface{}, error) {
	desc, err := c.registry.Descriptor(messageType)
	if err != nil {
		return nil, fmt.Errorf("message type not found: %s", messageType)
	}
	return wire.NewDecoder(r, c.registry, arena).Decode(desc)
}

// Encode serializes a message value to wire bytes. The value is never
// mutated.
func (c *Codec) Encode(value map[string]interface{}, messageType string) ([]byte, error) {
	desc, err := c.registry.Descriptor(messageType)
	if err != nil {
		return nil, fmt.Errorf("message type not found: %s", messageType)
	}
	return wire.EncodeMessage(value, desc, c.registry)
}

// EncodeTo serializes a message value directly to a sink. On sink failure
// the sink may have received a prefix of the output.
func (c *Codec) EncodeTo(w io.Writer, value map[string]interface{}, messageType string) error {
	desc, err := c.registry.Descriptor(messageType)
	if err != nil {
		return fmt.Errorf("message type not found: %s", messageType)
	}
	return wire.NewEncoder(c.registry).Encode(w, value, desc)
}

// ===== REGISTRY ACCESS =====

func (c *Codec) GetRegistry() *registry.Registry { return c.registry }
func (c *Codec) ListMessages() []string          { return c.registry.ListMessages() }
func (c *Codec) ListEnums() []string             { return c.registry.ListEnums() }
