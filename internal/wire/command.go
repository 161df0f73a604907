// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"errors"
)

// Recognized ZMTP command names.
const (
	CmdReady     = "READY"
	CmdSubscribe = "SUBSCRIBE"
	CmdCancel    = "CANCEL"
	CmdPing      = "PING"
	CmdPong      = "PONG"
	CmdError     = "ERROR"
)

var (
	ErrMalformedCommand = errors.New("wire: malformed command payload")
	ErrNameTooLong      = errors.New("wire: command name too long")
)

// Command is a data-less message whose payload is a name followed by an
// opaque body. For READY the body is a property bag (see Property below);
// for SUBSCRIBE/CANCEL the body is a topic prefix; for PING/PONG it is a
// TTL-plus-context blob; for ERROR it is a human-readable reason.
type Command struct {
	Name string
	Body []byte
}

// Property is one name/value pair of a READY property bag. Kept as an
// ordered slice (not a map) because wire order is observable: a
// scenario 2 fixes Socket-Type before Identity.
type Property struct {
	Name  string
	Value []byte
}

// MarshalCommand serializes a command payload: u8 name_len; name; body.
func MarshalCommand(cmd Command) ([]byte, error) {
	if len(cmd.Name) > 255 {
		return nil, ErrNameTooLong
	}
	out := make([]byte, 0, 1+len(cmd.Name)+len(cmd.Body))
	out = append(out, byte(len(cmd.Name)))
	out = append(out, cmd.Name...)
	out = append(out, cmd.Body...)
	return out, nil
}

// UnmarshalCommand parses a command payload produced by MarshalCommand.
func UnmarshalCommand(payload []byte) (Command, error) {
	if len(payload) < 1 {
		return Command{}, ErrMalformedCommand
	}
	nameLen := int(payload[0])
	if len(payload) < 1+nameLen {
		return Command{}, ErrMalformedCommand
	}
	return Command{
		Name: string(payload[1 : 1+nameLen]),
		Body: payload[1+nameLen:],
	}, nil
}

// MarshalProperties serializes an ordered property bag:
// (u8 pn_len; pn; u32_be value_len; value)*
func MarshalProperties(props []Property) ([]byte, error) {
	var out []byte
	for _, p := range props {
		if len(p.Name) > 255 {
			return nil, ErrNameTooLong
		}
		out = append(out, byte(len(p.Name)))
		out = append(out, p.Name...)
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p.Value)))
		out = append(out, lenBuf[:]...)
		out = append(out, p.Value...)
	}
	return out, nil
}

// ParseProperties parses a property bag produced by MarshalProperties.
func ParseProperties(body []byte) ([]Property, error) {
	var props []Property
	for len(body) > 0 {
		nameLen := int(body[0])
		body = body[1:]
		if len(body) < nameLen+4 {
			return nil, ErrMalformedCommand
		}
		name := string(body[:nameLen])
		body = body[nameLen:]
		valueLen := binary.BigEndian.Uint32(body[:4])
		body = body[4:]
		if uint64(len(body)) < uint64(valueLen) {
			return nil, ErrMalformedCommand
		}
		value := body[:valueLen]
		body = body[valueLen:]
		props = append(props, Property{Name: name, Value: value})
	}
	return props, nil
}

// PropertyValue returns the value of the first property named name.
func PropertyValue(props []Property, name string) ([]byte, bool) {
	for _, p := range props {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}
