package sealed

import (
	"encoding"
	"encoding/base64"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// TextValue is satisfied by *V when V round-trips through a text form,
// as uuid.UUID, net.IP and time.Time do.
type TextValue[V any] interface {
	*V
	encoding.TextMarshaler
	encoding.TextUnmarshaler
}

// Text carries a value that is encrypted through its text form. It exists
// for field types that cannot hold ciphertext themselves.
//
// Tag a Text or []Text field with `encrypt:"true"`. Store seals the
// MarshalText output of V and the field is written as base64 ciphertext;
// Load opens it and restores V with UnmarshalText.
//
//	type Order struct {
//	    Refs []sealed.Text[uuid.UUID, *uuid.UUID] `json:"refs" encrypt:"true"`
//	}
//
// Encoded outside a Processor, Text is written as V's plain text form.
// Decoded outside a Processor, the text is held until Load opens it and V
// stays zero.
type Text[V any, P TextValue[V]] struct {
	V V

	wire string
}

// NewText wraps v.
func NewText[V any, P TextValue[V]](v V) Text[V, P] {
	return Text[V, P]{V: v}
}

// MarshalText returns the sealed wire text, or V's text form if the value
// has not been sealed.
func (t Text[V, P]) MarshalText() ([]byte, error) {
	if t.wire != "" {
		return []byte(t.wire), nil
	}
	return P(&t.V).MarshalText()
}

// UnmarshalText holds b until Load opens it.
func (t *Text[V, P]) UnmarshalText(b []byte) error {
	t.wire = string(b)
	return nil
}

// MarshalBSONValue writes the text form as a BSON string.
func (t Text[V, P]) MarshalBSONValue() (bsontype.Type, []byte, error) {
	b, err := t.MarshalText()
	if err != nil {
		return 0, nil, err
	}
	return bsontype.String, bsoncore.AppendString(nil, string(b)), nil
}

// UnmarshalBSONValue reads a BSON string.
func (t *Text[V, P]) UnmarshalBSONValue(typ bsontype.Type, data []byte) error {
	if typ != bsontype.String {
		return fmt.Errorf("sealed.Text: cannot decode BSON %s", typ)
	}
	s, _, ok := bsoncore.ReadString(data)
	if !ok {
		return fmt.Errorf("sealed.Text: malformed BSON string")
	}
	t.wire = s
	return nil
}

// sealText replaces the wire form with base64 ciphertext of V's text.
// An empty text form passes through.
func (t *Text[V, P]) sealText(seal FieldFunc) error {
	plain, err := P(&t.V).MarshalText()
	if err != nil {
		return fmt.Errorf("marshal text: %w", err)
	}
	if len(plain) == 0 {
		t.wire = ""
		return nil
	}
	out, err := seal(plain)
	if err != nil {
		return err
	}
	t.wire = base64.StdEncoding.EncodeToString(out)
	return nil
}

// openText decrypts the wire form back into V. An empty wire form leaves
// V at its zero value.
func (t *Text[V, P]) openText(open FieldFunc) error {
	if t.wire == "" {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(t.wire)
	if err != nil {
		return fmt.Errorf("base64 decode: %w", err)
	}
	plain, err := open(raw)
	if err != nil {
		return err
	}
	var v V
	if err := P(&v).UnmarshalText(plain); err != nil {
		return fmt.Errorf("unmarshal text: %w", err)
	}
	t.V, t.wire = v, ""
	return nil
}

// textField is implemented by *Text.
type textField interface {
	sealText(FieldFunc) error
	openText(FieldFunc) error
}
