package wire

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/tagwire/tagwire/schema"
)

func TestEncodeKnownBytes(t *testing.T) {
	value := map[string]interface{}{
		"count":   uint64(300),
		"payload": []byte("abc"),
	}

	got, err := EncodeMessage(value, sampleDescriptor(), nil)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if !bytes.Equal(got, sampleBytes) {
		t.Errorf("encoded % X, want % X", got, sampleBytes)
	}
}

func TestEncodeDescriptorOrder(t *testing.T) {
	// Emission follows descriptor order even when it disagrees with field
	// number order.
	desc := &schema.Descriptor{
		Name: "Reordered",
		Fields: []*schema.Field{
			{Name: "second", Number: 2, Type: schema.Type{Kind: schema.KindUint, Bits: 64}},
			{Name: "first", Number: 1, Type: schema.Type{Kind: schema.KindUint, Bits: 64}},
		},
	}
	value := map[string]interface{}{"first": uint64(1), "second": uint64(2)}

	got, err := EncodeMessage(value, desc, nil)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	want := []byte{0x10, 0x02, 0x08, 0x01}
	if !bytes.Equal(got, want) {
		t.Errorf("encoded % X, want % X", got, want)
	}
}

func TestEncodePackedRepeated(t *testing.T) {
	desc := &schema.Descriptor{
		Name: "Packed",
		Fields: []*schema.Field{
			{Name: "values", Number: 1, Type: schema.Type{
				Kind: schema.KindRepeated,
				Elem: &schema.Type{Kind: schema.KindUint, Bits: 64},
			}},
		},
	}
	value := map[string]interface{}{
		"values": []interface{}{uint64(1), uint64(2), uint64(300)},
	}

	got, err := EncodeMessage(value, desc, nil)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	// One tag, one counted length, elements back to back.
	want := []byte{0x0A, 0x04, 0x01, 0x02, 0xAC, 0x02}
	if !bytes.Equal(got, want) {
		t.Errorf("encoded % X, want % X", got, want)
	}
}

func TestEncodeUnpackedRepeated(t *testing.T) {
	desc := &schema.Descriptor{
		Name: "Names",
		Fields: []*schema.Field{
			{Name: "names", Number: 2, Type: schema.Type{
				Kind: schema.KindRepeated,
				Elem: &schema.Type{Kind: schema.KindBytes},
			}},
		},
	}
	value := map[string]interface{}{
		"names": []interface{}{[]byte("hi"), []byte("ok")},
	}

	got, err := EncodeMessage(value, desc, nil)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	// One tag per element.
	want := []byte{0x12, 0x02, 0x68, 0x69, 0x12, 0x02, 0x6F, 0x6B}
	if !bytes.Equal(got, want) {
		t.Errorf("encoded % X, want % X", got, want)
	}
}

func TestEncodeEmptyRepeatedEmitsNothing(t *testing.T) {
	desc := &schema.Descriptor{
		Name: "Packed",
		Fields: []*schema.Field{
			{Name: "values", Number: 1, Type: schema.Type{
				Kind: schema.KindRepeated,
				Elem: &schema.Type{Kind: schema.KindUint, Bits: 64},
			}},
		},
	}
	got, err := EncodeMessage(map[string]interface{}{"values": []interface{}{}}, desc, nil)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("empty repeated field encoded % X, want nothing", got)
	}
}

func TestEncodeNestedMessageLength(t *testing.T) {
	inner := &schema.Descriptor{
		Name: "Inner",
		Fields: []*schema.Field{
			{Name: "value", Number: 1, Type: schema.Type{Kind: schema.KindUint, Bits: 64}},
			{Name: "label", Number: 2, Type: schema.Type{Kind: schema.KindBytes}},
		},
	}
	outer := &schema.Descriptor{
		Name: "Outer",
		Fields: []*schema.Field{
			{Name: "inner", Number: 1, Type: schema.Type{Kind: schema.KindMessage, Message: "Inner"}},
		},
	}
	reg := mapResolver{"Inner": inner, "Outer": outer}

	value := map[string]interface{}{
		"inner": map[string]interface{}{
			"value": uint64(300),
			"label": []byte("abc"),
		},
	}

	got, err := EncodeMessage(value, outer, reg)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	// The counted length prefix must equal the nested payload exactly.
	want := append([]byte{0x0A, 0x08}, sampleBytes...)
	if !bytes.Equal(got, want) {
		t.Errorf("encoded % X, want % X", got, want)
	}
}

func TestEncodeSignedKnownByte(t *testing.T) {
	desc := &schema.Descriptor{
		Name: "Signed",
		Fields: []*schema.Field{
			{Name: "delta", Number: 1, Type: schema.Type{Kind: schema.KindSint, Bits: 64}},
		},
	}

	got, err := EncodeMessage(map[string]interface{}{"delta": int64(-2)}, desc, nil)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	want := []byte{0x08, 0x03}
	if !bytes.Equal(got, want) {
		t.Errorf("encoded % X, want % X", got, want)
	}
}

func TestEncodeSkipsAbsentFields(t *testing.T) {
	got, err := EncodeMessage(map[string]interface{}{"payload": []byte("abc")}, sampleDescriptor(), nil)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	want := []byte{0x12, 0x03, 0x61, 0x62, 0x63}
	if !bytes.Equal(got, want) {
		t.Errorf("encoded % X, want % X", got, want)
	}
}

// failingWriter errors after accepting n bytes.
type failingWriter struct {
	n   int
	err error
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.n <= 0 {
		return 0, w.err
	}
	if len(p) > w.n {
		p = p[:w.n]
	}
	w.n -= len(p)
	return len(p), w.err
}

func TestEncodeSinkFailure(t *testing.T) {
	sinkErr := errors.New("sink closed")
	w := &failingWriter{n: 2, err: sinkErr}

	value := map[string]interface{}{
		"count":   uint64(300),
		"payload": []byte("abc"),
	}
	err := NewEncoder(nil).Encode(w, value, sampleDescriptor())
	if err == nil {
		t.Fatal("want error from failing sink")
	}

	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("got %T (%v), want IOError", err, err)
	}
	if !errors.Is(err, sinkErr) {
		t.Errorf("IOError does not wrap the sink error: %v", err)
	}
}

func TestRoundTripIdentity(t *testing.T) {
	status := &schema.Descriptor{
		Name: "Meta",
		Fields: []*schema.Field{
			{Name: "flags", Number: 1, Type: schema.Type{Kind: schema.KindUint, Bits: 32}},
		},
	}
	desc := &schema.Descriptor{
		Name: "Everything",
		Fields: []*schema.Field{
			{Name: "signed", Number: 1, Type: schema.Type{Kind: schema.KindSint, Bits: 64}},
			{Name: "unsigned", Number: 2, Type: schema.Type{Kind: schema.KindUint, Bits: 64}},
			{Name: "narrow", Number: 3, Type: schema.Type{Kind: schema.KindSint, Bits: 32}},
			{Name: "truthy", Number: 4, Type: schema.Type{Kind: schema.KindBool}},
			{Name: "state", Number: 5, Type: schema.Type{Kind: schema.KindEnum, Bits: 32}},
			{Name: "blob", Number: 6, Type: schema.Type{Kind: schema.KindBytes}},
			{Name: "meta", Number: 7, Type: schema.Type{Kind: schema.KindMessage, Message: "Meta"}},
			{Name: "deltas", Number: 8, Type: schema.Type{
				Kind: schema.KindRepeated,
				Elem: &schema.Type{Kind: schema.KindSint, Bits: 64},
			}},
			{Name: "chunks", Number: 9, Type: schema.Type{
				Kind: schema.KindRepeated,
				Elem: &schema.Type{Kind: schema.KindBytes},
			}},
			{Name: "metas", Number: 10, Type: schema.Type{
				Kind: schema.KindRepeated,
				Elem: &schema.Type{Kind: schema.KindMessage, Message: "Meta"},
			}},
		},
	}
	reg := mapResolver{"Meta": status, "Everything": desc}

	original := map[string]interface{}{
		"signed":   int64(-123456),
		"unsigned": uint64(987654321),
		"narrow":   int32(-7),
		"truthy":   true,
		"state":    int32(3),
		"blob":     []byte{0x00, 0xFF, 0x10},
		"meta":     map[string]interface{}{"flags": uint32(9)},
		"deltas":   []interface{}{int64(-1), int64(0), int64(1), int64(-1000000)},
		"chunks":   []interface{}{[]byte("a"), []byte(""), []byte("xyz")},
		"metas": []interface{}{
			map[string]interface{}{"flags": uint32(1)},
			map[string]interface{}{"flags": uint32(2)},
		},
	}

	encoded, err := EncodeMessage(original, desc, reg)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	arena := NewArena()
	defer arena.Release()

	decoded, err := DecodeMessage(encoded, desc, reg, arena)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !reflect.DeepEqual(decoded, original) {
		t.Errorf("round trip mismatch:\n got %#v\nwant %#v", decoded, original)
	}

	// And the second generation must be byte-identical.
	reencoded, err := EncodeMessage(decoded, desc, reg)
	if err != nil {
		t.Fatalf("re-encode failed: %v", err)
	}
	if !bytes.Equal(encoded, reencoded) {
		t.Errorf("re-encode differs:\n got % X\nwant % X", reencoded, encoded)
	}
}

func TestEncodeTypedSlices(t *testing.T) {
	desc := &schema.Descriptor{
		Name: "Packed",
		Fields: []*schema.Field{
			{Name: "values", Number: 1, Type: schema.Type{
				Kind: schema.KindRepeated,
				Elem: &schema.Type{Kind: schema.KindUint, Bits: 64},
			}},
		},
	}

	// A caller-built []uint64 must encode identically to []interface{}.
	fromTyped, err := EncodeMessage(map[string]interface{}{"values": []uint64{1, 2, 300}}, desc, nil)
	if err != nil {
		t.Fatalf("encode typed slice: %v", err)
	}
	fromGeneric, err := EncodeMessage(map[string]interface{}{
		"values": []interface{}{uint64(1), uint64(2), uint64(300)},
	}, desc, nil)
	if err != nil {
		t.Fatalf("encode generic slice: %v", err)
	}
	if !bytes.Equal(fromTyped, fromGeneric) {
		t.Errorf("typed % X != generic % X", fromTyped, fromGeneric)
	}
}
