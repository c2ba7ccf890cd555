package packet

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	// ErrUnknownVariant is returned when a payload populates no known arm.
	ErrUnknownVariant = errors.New("unknown packet variant")

	// ErrMalformed is returned when a payload is not a valid Packet encoding.
	ErrMalformed = errors.New("malformed packet")
)

// Codec converts packets to and from opaque payload bytes.
type Codec interface {
	Marshal(p Packet) ([]byte, error)
	Unmarshal(data []byte) (Packet, error)
}

// ProtobufCodec encodes packets in protobuf wire format.
type ProtobufCodec struct{}

// Marshal encodes p as a Packet message with exactly one oneof arm set.
func (ProtobufCodec) Marshal(p Packet) ([]byte, error) {
	if isNil(p) {
		return nil, fmt.Errorf("marshal %T: nil packet: %w", p, ErrUnknownVariant)
	}

	var body []byte
	switch m := p.(type) {
	case *Ok:
		body = appendString(body, 1, m.Message)
	case *Deny:
		body = appendString(body, 1, m.Reason)
	case *Login:
		body = appendString(body, 1, m.Username)
		body = appendString(body, 2, m.Password)
	case *Register:
		body = appendString(body, 1, m.Username)
		body = appendString(body, 2, m.Password)
	case *Chat:
		body = appendString(body, 1, m.Name)
		body = appendString(body, 2, m.Message)
	case *PublicRSAKey:
		body = appendBytes(body, 1, m.Key)
	case *AESKey:
		body = appendBytes(body, 1, m.Key)
	default:
		return nil, fmt.Errorf("marshal %T: %w", p, ErrUnknownVariant)
	}

	out := make([]byte, 0, 1+protowire.SizeBytes(len(body)))
	out = protowire.AppendTag(out, protowire.Number(p.Variant()), protowire.BytesType)
	out = protowire.AppendBytes(out, body)
	return out, nil
}

// Unmarshal decodes a Packet message. Unknown fields are skipped; if several
// oneof arms are present the last one wins.
func (ProtobufCodec) Unmarshal(data []byte) (Packet, error) {
	var result Packet
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]

		v := Variant(num)
		if num > 0xff || !v.Known() {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}

		if typ != protowire.BytesType {
			return nil, fmt.Errorf("%w: field %d has wire type %d", ErrMalformed, num, typ)
		}
		body, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]

		p, err := unmarshalBody(v, body)
		if err != nil {
			return nil, err
		}
		result = p
	}

	if result == nil {
		return nil, ErrUnknownVariant
	}
	return result, nil
}

// unmarshalBody decodes the sub-message of a single oneof arm.
func unmarshalBody(v Variant, body []byte) (Packet, error) {
	fields, err := consumeFields(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", v, err)
	}

	switch v {
	case VariantOk:
		return &Ok{Message: string(fields[1])}, nil
	case VariantDeny:
		return &Deny{Reason: string(fields[1])}, nil
	case VariantLogin:
		return &Login{Username: string(fields[1]), Password: string(fields[2])}, nil
	case VariantRegister:
		return &Register{Username: string(fields[1]), Password: string(fields[2])}, nil
	case VariantChat:
		return &Chat{Name: string(fields[1]), Message: string(fields[2])}, nil
	case VariantPublicRSAKey:
		return &PublicRSAKey{Key: fields[1]}, nil
	case VariantAESKey:
		return &AESKey{Key: fields[1]}, nil
	}
	return nil, ErrUnknownVariant
}

// consumeFields collects the length-delimited fields 1 and 2 of a
// sub-message. Every arm of the schema only uses those two.
func consumeFields(body []byte) (map[protowire.Number][]byte, error) {
	fields := make(map[protowire.Number][]byte, 2)
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		body = body[n:]

		if (num == 1 || num == 2) && typ == protowire.BytesType {
			val, n := protowire.ConsumeBytes(body)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			fields[num] = append([]byte(nil), val...)
			body = body[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, body)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		body = body[n:]
	}
	return fields, nil
}

// appendString appends a proto3 string field, omitting the default value.
func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// appendBytes appends a proto3 bytes field, omitting the default value.
func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}
