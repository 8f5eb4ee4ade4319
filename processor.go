package sealed

import (
	"context"
	"encoding/base64"
	"fmt"
	"reflect"
	"time"

	"github.com/zoobzio/sentinel"
)

// tagEncrypt marks a field for encryption: `encrypt:"true"`.
const tagEncrypt = "encrypt"

func init() {
	sentinel.Tag(tagEncrypt)
}

// Processor encrypts tagged fields on Store and decrypts them on Load.
//
// Every tagged field value goes through one provider/apply/cleanup cycle
// against the session carried by ctx, so a pass over a struct with many
// encrypted fields reuses the session's transforms where the algorithm
// allows it. Store and Load fail with ErrNoActiveSession when a non-empty
// tagged value is reached and ctx carries no session.
//
// Processors hold no per-call state and are safe for concurrent use, also
// when several goroutines share one session context: a single-use transform
// is only ever handed to one caller at a time.
type Processor[T Cloner[T]] struct {
	codec Codec

	encryptProvider Provider
	encryptCleanup  Cleanup
	decryptProvider Provider
	decryptCleanup  Cleanup

	fields   []fieldPlan
	typeName string
}

// fieldKind is the shape of an encrypted field.
type fieldKind int

const (
	kindString      fieldKind = iota // string, stored as base64
	kindBytes                        // []byte, stored raw
	kindStringSlice                  // []string
	kindBytesSlice                   // [][]byte
	kindStringMap                    // map[K]string
	kindText                         // Text[V, P], stored as base64
	kindTextSlice                    // []Text[V, P]
)

var textFieldType = reflect.TypeFor[textField]()

// fieldPlan describes how to reach and transform a single field.
type fieldPlan struct {
	index      []int  // reflect.Value.FieldByIndex access path
	name       string // field name for error messages
	kind       fieldKind
	ptrIndices []int // indices where pointer dereference is needed
}

// typeFieldPlans is the cached scan result for one type.
type typeFieldPlans struct {
	typeName string
	fields   []fieldPlan
}

var planCache memo[reflect.Type, *typeFieldPlans]

// getOrBuildPlans returns cached field plans for T, scanning on first use.
func getOrBuildPlans[T Cloner[T]]() (*typeFieldPlans, error) {
	return planCache.get(reflect.TypeFor[T](), buildFieldPlans[T])
}

// NewProcessor creates a new Processor for type T.
// It fails with ErrInvalidTag if an encrypt tag has an unknown value or
// sits on a field of an unsupported type.
func NewProcessor[T Cloner[T]](codec Codec) (*Processor[T], error) {
	plans, err := getOrBuildPlans[T]()
	if err != nil {
		return nil, err
	}

	p := &Processor[T]{
		codec:           codec,
		encryptProvider: EncryptProvider(),
		encryptCleanup:  EncryptCleanup(),
		decryptProvider: DecryptProvider(),
		decryptCleanup:  DecryptCleanup(),
		fields:          plans.fields,
		typeName:        plans.typeName,
	}

	emitProcessorCreated(context.Background(), codec.ContentType(), plans.typeName)
	return p, nil
}

// EncryptedFields returns the dotted names of fields the processor encrypts.
func (p *Processor[T]) EncryptedFields() []string {
	names := make([]string, len(p.fields))
	for i, f := range p.fields {
		names[i] = f.name
	}
	return names
}

// buildFieldPlans creates field plans for type T by scanning struct tags.
func buildFieldPlans[T Cloner[T]]() (*typeFieldPlans, error) {
	spec := sentinel.Scan[T]()
	plans := &typeFieldPlans{
		typeName: spec.TypeName,
	}

	if err := buildFieldPlansRecursive(plans, spec, nil, nil, ""); err != nil {
		return nil, err
	}

	return plans, nil
}

// buildFieldPlansRecursive recursively processes fields and nested structs.
func buildFieldPlansRecursive(plans *typeFieldPlans, spec sentinel.Metadata, parentIndex, ptrIndices []int, namePrefix string) error {
	for _, field := range spec.Fields {
		fullIndex := append(append([]int{}, parentIndex...), field.Index...)
		fullName := field.Name
		if namePrefix != "" {
			fullName = namePrefix + "." + field.Name
		}

		val, tagged := field.Tags[tagEncrypt]
		if tagged {
			switch val {
			case "true":
			case "false", "-":
				tagged = false
			default:
				return fmt.Errorf("%w: encrypt value %q for field %s", ErrInvalidTag, val, fullName)
			}
		}

		// Handle nested structs
		if !tagged && field.Kind == sentinel.KindStruct {
			if nestedSpec := scanNestedType(field.ReflectType); nestedSpec != nil {
				if err := buildFieldPlansRecursive(plans, *nestedSpec, fullIndex, ptrIndices, fullName); err != nil {
					return err
				}
			}
			continue
		}

		// Handle pointer to struct
		if !tagged && field.Kind == sentinel.KindPointer && field.ReflectType.Elem().Kind() == reflect.Struct {
			if nestedSpec := scanNestedType(field.ReflectType.Elem()); nestedSpec != nil {
				newPtrIndices := append(append([]int{}, ptrIndices...), len(fullIndex)-1)
				if err := buildFieldPlansRecursive(plans, *nestedSpec, fullIndex, newPtrIndices, fullName); err != nil {
					return err
				}
			}
			continue
		}

		if !tagged {
			continue
		}

		kind, ok := kindOf(field.ReflectType)
		if !ok {
			return fmt.Errorf("%w: encrypt on field %s of unsupported type %s", ErrInvalidTag, fullName, field.ReflectType)
		}

		plans.fields = append(plans.fields, fieldPlan{
			index:      fullIndex,
			name:       fullName,
			kind:       kind,
			ptrIndices: ptrIndices,
		})
	}

	return nil
}

// kindOf classifies a field type as one of the encryptable shapes.
func kindOf(rt reflect.Type) (fieldKind, bool) {
	isBytes := func(t reflect.Type) bool {
		return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
	}

	isText := func(t reflect.Type) bool {
		return t.Kind() == reflect.Struct && reflect.PointerTo(t).Implements(textFieldType)
	}

	switch {
	case isText(rt):
		return kindText, true
	case rt.Kind() == reflect.Slice && isText(rt.Elem()):
		return kindTextSlice, true
	case rt.Kind() == reflect.String:
		return kindString, true
	case isBytes(rt):
		return kindBytes, true
	case rt.Kind() == reflect.Slice && rt.Elem().Kind() == reflect.String:
		return kindStringSlice, true
	case rt.Kind() == reflect.Slice && isBytes(rt.Elem()):
		return kindBytesSlice, true
	case rt.Kind() == reflect.Map && rt.Elem().Kind() == reflect.String:
		return kindStringMap, true
	default:
		return 0, false
	}
}

// scanNestedType scans a nested struct type and returns its metadata.
func scanNestedType(rt reflect.Type) *sentinel.Metadata {
	if spec, ok := sentinel.Lookup(rt.String()); ok {
		return &spec
	}

	if rt.Kind() != reflect.Struct {
		return nil
	}

	spec := sentinel.Metadata{
		TypeName:    rt.Name(),
		PackageName: rt.PkgPath(),
		Fields:      make([]sentinel.FieldMetadata, 0, rt.NumField()),
	}

	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}

		tags := make(map[string]string)
		if val, ok := sf.Tag.Lookup(tagEncrypt); ok {
			tags[tagEncrypt] = val
		}

		fm := sentinel.FieldMetadata{
			Name:        sf.Name,
			Type:        sf.Type.String(),
			ReflectType: sf.Type,
			Index:       sf.Index,
			Tags:        tags,
		}

		switch sf.Type.Kind() {
		case reflect.Struct:
			fm.Kind = sentinel.KindStruct
		case reflect.Ptr:
			fm.Kind = sentinel.KindPointer
		case reflect.Slice, reflect.Array:
			fm.Kind = sentinel.KindSlice
		case reflect.Map:
			fm.Kind = sentinel.KindMap
		case reflect.Interface:
			fm.Kind = sentinel.KindInterface
		default:
			fm.Kind = sentinel.KindScalar
		}

		spec.Fields = append(spec.Fields, fm)
	}

	return &spec
}

// seal runs one encrypt cycle against the session in ctx.
func (p *Processor[T]) seal(ctx context.Context, plaintext []byte) ([]byte, error) {
	return cycle(ctx, p.encryptProvider, p.encryptCleanup, plaintext)
}

// open runs one decrypt cycle against the session in ctx.
func (p *Processor[T]) open(ctx context.Context, ciphertext []byte) ([]byte, error) {
	return cycle(ctx, p.decryptProvider, p.decryptCleanup, ciphertext)
}

// Store encrypts tagged fields of a clone of obj and marshals the result.
func (p *Processor[T]) Store(ctx context.Context, obj *T) ([]byte, error) {
	start := time.Now()
	emitStoreStart(ctx, p.codec.ContentType(), p.typeName)

	var retErr error
	var retData []byte
	defer func() {
		emitStoreComplete(ctx, p.codec.ContentType(), p.typeName,
			len(retData), time.Since(start), len(p.fields), retErr)
	}()

	if obj == nil {
		retData, retErr = p.marshal(nil)
		return retData, retErr
	}

	// Clone to avoid mutating original
	clone := (*obj).Clone()

	seal := func(plaintext []byte) ([]byte, error) { return p.seal(ctx, plaintext) }
	if e, ok := any(&clone).(Encryptable); ok {
		if err := e.Encrypt(seal); err != nil {
			retErr = newTransformError(ErrEncrypt, "encrypt", p.typeName, err)
			return nil, retErr
		}
	} else if err := p.apply(&clone, "encrypt", seal); err != nil {
		retErr = err
		return nil, retErr
	}

	retData, retErr = p.marshal(&clone)
	return retData, retErr
}

// Load unmarshals data and decrypts tagged fields.
func (p *Processor[T]) Load(ctx context.Context, data []byte) (*T, error) {
	start := time.Now()
	emitLoadStart(ctx, p.codec.ContentType(), p.typeName)

	var retErr error
	defer func() {
		emitLoadComplete(ctx, p.codec.ContentType(), p.typeName,
			time.Since(start), len(p.fields), retErr)
	}()

	var obj T
	if err := p.codec.Unmarshal(data, &obj); err != nil {
		retErr = newCodecError(ErrUnmarshal, err)
		return nil, retErr
	}

	open := func(ciphertext []byte) ([]byte, error) { return p.open(ctx, ciphertext) }
	if d, ok := any(&obj).(Decryptable); ok {
		if err := d.Decrypt(open); err != nil {
			retErr = newTransformError(ErrDecrypt, "decrypt", p.typeName, err)
			return nil, retErr
		}
		return &obj, nil
	}

	if err := p.apply(&obj, "decrypt", open); err != nil {
		retErr = err
		return nil, retErr
	}

	return &obj, nil
}

func (p *Processor[T]) marshal(v any) ([]byte, error) {
	data, err := p.codec.Marshal(v)
	if err != nil {
		return nil, newCodecError(ErrMarshal, err)
	}
	return data, nil
}

// apply runs fn over every tagged field value of obj.
// Strings and Text values are base64 encoded after encryption and decoded
// before decryption.
func (p *Processor[T]) apply(obj *T, op string, fn FieldFunc) error {
	rv := reflect.ValueOf(obj).Elem()
	encrypting := op == "encrypt"
	sentinelErr := ErrDecrypt
	if encrypting {
		sentinelErr = ErrEncrypt
	}

	// Empty values pass through unchanged in both directions.
	str := func(name, in string) (string, error) {
		if in == "" {
			return "", nil
		}
		var src []byte
		if encrypting {
			src = []byte(in)
		} else {
			decoded, err := base64.StdEncoding.DecodeString(in)
			if err != nil {
				return "", newTransformError(sentinelErr, op, name, fmt.Errorf("base64 decode: %w", err))
			}
			src = decoded
		}
		out, err := fn(src)
		if err != nil {
			return "", newTransformError(sentinelErr, op, name, err)
		}
		if encrypting {
			return base64.StdEncoding.EncodeToString(out), nil
		}
		return string(out), nil
	}

	raw := func(name string, in []byte) ([]byte, error) {
		if len(in) == 0 {
			return in, nil
		}
		out, err := fn(in)
		if err != nil {
			return nil, newTransformError(sentinelErr, op, name, err)
		}
		return out, nil
	}

	text := func(name string, v reflect.Value) error {
		tf := v.Addr().Interface().(textField)
		var err error
		if encrypting {
			err = tf.sealText(fn)
		} else {
			err = tf.openText(fn)
		}
		if err != nil {
			return newTransformError(sentinelErr, op, name, err)
		}
		return nil
	}

	for _, plan := range p.fields {
		field, ok := p.getField(rv, plan)
		if !ok || !field.CanSet() {
			continue
		}

		switch plan.kind {
		case kindString:
			out, err := str(plan.name, field.String())
			if err != nil {
				return err
			}
			field.SetString(out)

		case kindBytes:
			out, err := raw(plan.name, field.Bytes())
			if err != nil {
				return err
			}
			field.SetBytes(out)

		case kindStringSlice:
			for i := 0; i < field.Len(); i++ {
				elem := field.Index(i)
				out, err := str(fmt.Sprintf("%s[%d]", plan.name, i), elem.String())
				if err != nil {
					return err
				}
				elem.SetString(out)
			}

		case kindBytesSlice:
			for i := 0; i < field.Len(); i++ {
				elem := field.Index(i)
				out, err := raw(fmt.Sprintf("%s[%d]", plan.name, i), elem.Bytes())
				if err != nil {
					return err
				}
				elem.SetBytes(out)
			}

		case kindText:
			if err := text(plan.name, field); err != nil {
				return err
			}

		case kindTextSlice:
			for i := 0; i < field.Len(); i++ {
				if err := text(fmt.Sprintf("%s[%d]", plan.name, i), field.Index(i)); err != nil {
					return err
				}
			}

		case kindStringMap:
			type update struct {
				key reflect.Value
				val string
			}
			updates := make([]update, 0, field.Len())
			iter := field.MapRange()
			for iter.Next() {
				k, v := iter.Key(), iter.Value()
				out, err := str(fmt.Sprintf("%s[%v]", plan.name, k.Interface()), v.String())
				if err != nil {
					return err
				}
				updates = append(updates, update{key: k, val: out})
			}
			elemType := field.Type().Elem()
			for _, u := range updates {
				field.SetMapIndex(u.key, reflect.ValueOf(u.val).Convert(elemType))
			}
		}
	}

	return nil
}

// getField navigates a field path, dereferencing pointers as needed.
func (p *Processor[T]) getField(rv reflect.Value, plan fieldPlan) (reflect.Value, bool) {
	if len(plan.ptrIndices) == 0 {
		return rv.FieldByIndex(plan.index), true
	}

	current := rv
	ptrSet := make(map[int]bool, len(plan.ptrIndices))
	for _, idx := range plan.ptrIndices {
		ptrSet[idx] = true
	}

	for i, idx := range plan.index {
		current = current.Field(idx)

		if ptrSet[i] {
			if current.IsNil() {
				return reflect.Value{}, false
			}
			current = current.Elem()
		}
	}

	return current, true
}
