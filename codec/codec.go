// Package codec provides sealed.Codec implementations for common formats.
package codec

import (
	"encoding/json"
	"encoding/xml"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zoobzio/sealed"
	"go.mongodb.org/mongo-driver/bson"
	"gopkg.in/yaml.v3"
)

// Content types reported by the built-in codecs.
const (
	ContentTypeJSON    = "application/json"
	ContentTypeXML     = "application/xml"
	ContentTypeYAML    = "application/yaml"
	ContentTypeMsgPack = "application/msgpack"
	ContentTypeBSON    = "application/bson"
)

// funcCodec adapts a marshal/unmarshal pair to sealed.Codec.
type funcCodec struct {
	contentType string
	marshal     func(v any) ([]byte, error)
	unmarshal   func(data []byte, v any) error
}

func (c *funcCodec) ContentType() string { return c.contentType }
func (c *funcCodec) Marshal(v any) ([]byte, error) { return c.marshal(v) }
func (c *funcCodec) Unmarshal(data []byte, v any) error { return c.unmarshal(data, v) }

// JSON returns a codec backed by encoding/json.
func JSON() sealed.Codec {
	return &funcCodec{contentType: ContentTypeJSON, marshal: json.Marshal, unmarshal: json.Unmarshal}
}

// XML returns a codec backed by encoding/xml.
// Types need xml struct tags; maps are not supported by encoding/xml.
func XML() sealed.Codec {
	return &funcCodec{contentType: ContentTypeXML, marshal: xml.Marshal, unmarshal: xml.Unmarshal}
}

// YAML returns a codec backed by gopkg.in/yaml.v3.
func YAML() sealed.Codec {
	return &funcCodec{contentType: ContentTypeYAML, marshal: yaml.Marshal, unmarshal: yaml.Unmarshal}
}

// MsgPack returns a MessagePack codec.
func MsgPack() sealed.Codec {
	return &funcCodec{contentType: ContentTypeMsgPack, marshal: msgpack.Marshal, unmarshal: msgpack.Unmarshal}
}

// BSON returns a BSON codec backed by the MongoDB driver.
// BSON documents must be structs or maps at the top level.
func BSON() sealed.Codec {
	return &funcCodec{contentType: ContentTypeBSON, marshal: bson.Marshal, unmarshal: bson.Unmarshal}
}

// ByContentType returns the built-in codec for contentType.
func ByContentType(contentType string) (sealed.Codec, bool) {
	switch contentType {
	case ContentTypeJSON:
		return JSON(), true
	case ContentTypeXML:
		return XML(), true
	case ContentTypeYAML:
		return YAML(), true
	case ContentTypeMsgPack:
		return MsgPack(), true
	case ContentTypeBSON:
		return BSON(), true
	default:
		return nil, false
	}
}
