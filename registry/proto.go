package registry

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	protoparser "github.com/yoheimuta/go-protoparser/v4"
	protoparserparser "github.com/yoheimuta/go-protoparser/v4/parser"

	"github.com/tagwire/tagwire/schema"
)

// LoadSchema loads message and enum definitions from a .proto file or a
// directory tree of them, maps them onto the engine's semantic type model,
// and binds them. Imports of a single entry file are followed DFS relative
// to the file's directory; google/protobuf well-known imports are ignored.
// Proto shapes the engine has no codec rule for (floats, fixed-width
// integers, maps, oneofs) fail the load.
func (r *Registry) LoadSchema(protoPath string) error {
	info, err := os.Stat(protoPath)
	if err != nil {
		return fmt.Errorf("schema path: %w", err)
	}

	loader := &protoLoader{
		reg:       r,
		visited:   make(map[string]bool),
		msgNames:  make(map[string]bool),
		enumNames: make(map[string]bool),
	}

	if info.IsDir() {
		loader.baseDir = protoPath
		err = filepath.WalkDir(protoPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".proto") {
				return nil
			}
			return loader.loadFile(path)
		})
	} else {
		if !strings.HasSuffix(protoPath, ".proto") {
			return fmt.Errorf("%s is not a .proto file", protoPath)
		}
		loader.baseDir = filepath.Dir(protoPath)
		err = loader.loadFile(protoPath)
	}
	if err != nil {
		return err
	}

	if err := loader.bind(); err != nil {
		return err
	}
	return r.Resolve()
}

type protoLoader struct {
	reg     *Registry
	baseDir string
	visited map[string]bool

	msgNames  map[string]bool
	enumNames map[string]bool
	messages  []*pendingMessage
	enums     []*schema.Enum
}

type pendingMessage struct {
	fullName string
	msg      *protoparserparser.Message
}

// loadFile parses one file and queues its definitions, following imports.
func (l *protoLoader) loadFile(path string) error {
	path = filepath.Clean(path)
	if l.visited[path] {
		return nil
	}
	l.visited[path] = true

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to read proto file: %w", err)
	}
	parsed, parseErr := protoparser.Parse(f)
	f.Close()
	if parseErr != nil {
		return fmt.Errorf("failed to parse %s: %w", path, parseErr)
	}

	l.reg.log.Debug().Str("file", path).Msg("proto file parsed")

	var pkg string
	for _, body := range parsed.ProtoBody {
		if p, ok := body.(*protoparserparser.Package); ok {
			pkg = p.Name
			break
		}
	}

	for _, body := range parsed.ProtoBody {
		switch b := body.(type) {
		case *protoparserparser.Import:
			location := strings.Trim(b.Location, `"`)
			if strings.HasPrefix(location, "google/protobuf/") {
				continue
			}
			if err := l.loadFile(filepath.Join(l.baseDir, location)); err != nil {
				return err
			}
		case *protoparserparser.Message:
			l.queueMessage(pkg, b)
		case *protoparserparser.Enum:
			if err := l.queueEnum(pkg, b); err != nil {
				return err
			}
		}
	}
	return nil
}

// queueMessage records a message and, recursively, its nested definitions
// under dotted names.
func (l *protoLoader) queueMessage(scope string, msg *protoparserparser.Message) {
	fullName := joinName(scope, msg.MessageName)
	l.msgNames[fullName] = true
	l.messages = append(l.messages, &pendingMessage{
		fullName: fullName,
		msg:      msg,
	})

	for _, body := range msg.MessageBody {
		switch b := body.(type) {
		case *protoparserparser.Message:
			l.queueMessage(fullName, b)
		case *protoparserparser.Enum:
			// Errors surface again at bind; nested enum numbers are
			// validated there.
			_ = l.queueEnum(fullName, b)
		}
	}
}

func (l *protoLoader) queueEnum(scope string, e *protoparserparser.Enum) error {
	fullName := joinName(scope, e.EnumName)
	l.enumNames[fullName] = true

	out := &schema.Enum{Name: fullName}
	for _, body := range e.EnumBody {
		field, ok := body.(*protoparserparser.EnumField)
		if !ok {
			continue
		}
		number, err := strconv.ParseInt(field.Number, 10, 32)
		if err != nil {
			return fmt.Errorf("enum %s value %s: bad number %q", fullName, field.Ident, field.Number)
		}
		out.Values = append(out.Values, &schema.EnumValue{
			Name:   field.Ident,
			Number: int32(number),
		})
	}
	l.enums = append(l.enums, out)
	return nil
}

// bind converts queued definitions into descriptors and registers them.
func (l *protoLoader) bind() error {
	for _, e := range l.enums {
		if err := l.reg.RegisterEnum(e); err != nil {
			return err
		}
	}
	for _, pm := range l.messages {
		desc := &schema.Descriptor{Name: pm.fullName}
		for _, body := range pm.msg.MessageBody {
			switch b := body.(type) {
			case *protoparserparser.Field:
				field, err := l.buildField(pm, b)
				if err != nil {
					return err
				}
				desc.Fields = append(desc.Fields, field)
			case *protoparserparser.MapField:
				return fmt.Errorf("message %s, field %s: %w: map",
					pm.fullName, b.MapName, ErrUnsupportedType)
			case *protoparserparser.Oneof:
				return fmt.Errorf("message %s, oneof %s: %w: oneof",
					pm.fullName, b.OneofName, ErrUnsupportedType)
			}
		}
		if err := l.reg.Register(desc); err != nil {
			return err
		}
	}
	return nil
}

func (l *protoLoader) buildField(pm *pendingMessage, f *protoparserparser.Field) (*schema.Field, error) {
	number, err := strconv.ParseInt(f.FieldNumber, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("message %s, field %s: bad field number %q",
			pm.fullName, f.FieldName, f.FieldNumber)
	}

	fieldType, err := l.mapType(pm, f.Type)
	if err != nil {
		return nil, fmt.Errorf("message %s, field %s: %w", pm.fullName, f.FieldName, err)
	}
	if f.IsRepeated {
		elem := fieldType
		fieldType = schema.Type{Kind: schema.KindRepeated, Elem: &elem}
	}

	return &schema.Field{
		Name:   f.FieldName,
		Number: int32(number),
		Type:   fieldType,
	}, nil
}

// mapType maps one proto type name onto the closed semantic variant.
// Plain int32/int64 ride the same unsigned varint as uint under this
// format, so they share KindUint at their declared width.
func (l *protoLoader) mapType(pm *pendingMessage, typeName string) (schema.Type, error) {
	switch typeName {
	case "sint32":
		return schema.Type{Kind: schema.KindSint, Bits: 32}, nil
	case "sint64":
		return schema.Type{Kind: schema.KindSint, Bits: 64}, nil
	case "int32", "uint32":
		return schema.Type{Kind: schema.KindUint, Bits: 32}, nil
	case "int64", "uint64":
		return schema.Type{Kind: schema.KindUint, Bits: 64}, nil
	case "bool":
		return schema.Type{Kind: schema.KindBool}, nil
	case "string", "bytes":
		return schema.Type{Kind: schema.KindBytes}, nil
	case "float", "double", "fixed32", "fixed64", "sfixed32", "sfixed64":
		return schema.Type{}, fmt.Errorf("%w: %s", ErrUnsupportedType, typeName)
	}

	ref, err := l.resolveName(pm, typeName)
	if err != nil {
		return schema.Type{}, err
	}
	if l.enumNames[ref] {
		return schema.Type{Kind: schema.KindEnum, Bits: 32, Enum: ref}, nil
	}
	return schema.Type{Kind: schema.KindMessage, Message: ref}, nil
}

// resolveName resolves a type reference the way protoc scopes names: a
// leading dot is fully qualified; otherwise the enclosing scopes are tried
// innermost first, then the bare name.
func (l *protoLoader) resolveName(pm *pendingMessage, typeName string) (string, error) {
	known := func(name string) bool {
		return l.msgNames[name] || l.enumNames[name]
	}

	if strings.HasPrefix(typeName, ".") {
		name := strings.TrimPrefix(typeName, ".")
		if known(name) {
			return name, nil
		}
		return "", fmt.Errorf("%w: %s", ErrUnresolvedRef, typeName)
	}

	scope := strings.Split(pm.fullName, ".")
	for len(scope) > 0 {
		candidate := strings.Join(scope, ".") + "." + typeName
		if known(candidate) {
			return candidate, nil
		}
		scope = scope[:len(scope)-1]
	}
	if known(typeName) {
		return typeName, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnresolvedRef, typeName)
}

func joinName(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}
