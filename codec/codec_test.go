package codec

import (
	"testing"

	"github.com/zoobzio/sealed"
)

type record struct {
	Name  string `json:"name" xml:"name" yaml:"name" msgpack:"name" bson:"name"`
	Value int    `json:"value" xml:"value" yaml:"value" msgpack:"value" bson:"value"`
}

func codecs() map[string]sealed.Codec {
	return map[string]sealed.Codec{
		ContentTypeJSON:    JSON(),
		ContentTypeXML:     XML(),
		ContentTypeYAML:    YAML(),
		ContentTypeMsgPack: MsgPack(),
		ContentTypeBSON:    BSON(),
	}
}

func TestContentType(t *testing.T) {
	for want, c := range codecs() {
		if got := c.ContentType(); got != want {
			t.Errorf("ContentType() = %q, want %q", got, want)
		}
	}
}

func TestMarshalUnmarshal(t *testing.T) {
	for name, c := range codecs() {
		t.Run(name, func(t *testing.T) {
			original := record{Name: "test", Value: 42}

			data, err := c.Marshal(original)
			if err != nil {
				t.Fatalf("Marshal() error: %v", err)
			}

			var restored record
			if err := c.Unmarshal(data, &restored); err != nil {
				t.Fatalf("Unmarshal() error: %v", err)
			}

			if restored != original {
				t.Errorf("round-trip failed: got %+v, want %+v", restored, original)
			}
		})
	}
}

func TestUnmarshalInvalid(t *testing.T) {
	invalid := map[string][]byte{
		ContentTypeJSON:    []byte("{invalid"),
		ContentTypeXML:     []byte("<unclosed"),
		ContentTypeYAML:    []byte("name: [unclosed"),
		ContentTypeMsgPack: {0xc1},
		ContentTypeBSON:    []byte("invalid bson"),
	}

	for name, c := range codecs() {
		t.Run(name, func(t *testing.T) {
			var v record
			if err := c.Unmarshal(invalid[name], &v); err == nil {
				t.Error("Unmarshal(invalid) should return error")
			}
		})
	}
}

func TestByContentType(t *testing.T) {
	for want := range codecs() {
		c, ok := ByContentType(want)
		if !ok {
			t.Errorf("ByContentType(%q) not found", want)
			continue
		}
		if c.ContentType() != want {
			t.Errorf("ByContentType(%q).ContentType() = %q", want, c.ContentType())
		}
	}

	if _, ok := ByContentType("text/plain"); ok {
		t.Error("ByContentType(text/plain) should not be found")
	}
}
