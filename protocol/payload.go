// Package protocol implements the voice gateway's control-plane wire format:
// the op-coded JSON payload codec, the heartbeat ticker, and the session
// state machine that sequences Hello/Identify/Ready/SessionDescription.
package protocol

import (
	"github.com/pkg/errors"

	"github.com/diamondburned/voicegateway/utils/json"
)

// OpCode identifies the kind of a control-plane payload.
type OpCode uint8

// Known opcodes, per the control-plane wire format.
const (
	OpIdentify           OpCode = 0
	OpSelectProtocol     OpCode = 1
	OpReady              OpCode = 2
	OpHeartbeat          OpCode = 3
	OpSessionDescription OpCode = 4
	OpSpeaking           OpCode = 5
	OpHeartbeatAck       OpCode = 6
	OpResume             OpCode = 7
	OpHello              OpCode = 8
	OpResumed            OpCode = 9
	OpClientDisconnect   OpCode = 13
)

// Data is implemented by every typed payload body, both inbound and
// outbound. Op reports the opcode the body is framed under.
type Data interface {
	Op() OpCode
}

// Unknown is the lenient fallback for any opcode the codec doesn't know
// about. It carries the raw "d" field so forward-compatible servers never
// break decoding (P2).
type Unknown struct {
	OpCode OpCode
	Raw    json.Raw
}

// Op implements Data.
func (u *Unknown) Op() OpCode { return u.OpCode }

// Codec abstracts the marshal/unmarshal driver behind Encode/Decode — the
// "jacksonResources" payload codec binding point from spec.md §6 — so a host
// can swap in an alternate JSON implementation without forking the envelope
// logic. It mirrors utils/json.Driver's Marshal/Unmarshal subset; any codec
// that honors the same `json:"..."` struct tags (e.g. a jsoniter-backed
// driver) satisfies it.
type Codec interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

// DefaultCodec is the package-level codec used by Encode/Decode, backed by
// utils/json's encoding/json driver.
var DefaultCodec Codec = json.Default

// Payload is the envelope `{"op": ..., "d": ...}` framed over the wire.
type Payload struct {
	OpCode OpCode   `json:"op"`
	Data   Data     `json:"d,omitempty"`
	raw    json.Raw // not set by EncodeWith/DecodeWith; an unknown body's raw "d" is kept in Unknown.Raw
}

// payloadEnvelope mirrors Payload's wire shape without the Data interface,
// so decoding can defer body construction until the opcode is known.
type payloadEnvelope struct {
	OpCode OpCode   `json:"op"`
	Data   json.Raw `json:"d,omitempty"`
}

// newData returns a zero-value Data for the given opcode, or nil if the
// opcode is unknown.
func newData(op OpCode) Data {
	switch op {
	case OpIdentify:
		return &IdentifyData{}
	case OpSelectProtocol:
		return &SelectProtocolData{}
	case OpReady:
		return &ReadyEvent{}
	case OpHeartbeat:
		return &HeartbeatData{}
	case OpSessionDescription:
		return &SessionDescriptionEvent{}
	case OpSpeaking:
		return &SpeakingData{}
	case OpHeartbeatAck:
		return &HeartbeatAckEvent{}
	case OpResume:
		return &ResumeData{}
	case OpHello:
		return &HelloEvent{}
	case OpResumed:
		return &ResumedEvent{}
	default:
		return nil
	}
}

// Encode serializes data into a full `{"op":...,"d":...}` payload using
// DefaultCodec.
func Encode(data Data) ([]byte, error) {
	return EncodeWith(DefaultCodec, data)
}

// EncodeWith serializes data using the given codec, the injection point a
// host reaches through VoiceGatewayOptions.Codec.
func EncodeWith(codec Codec, data Data) ([]byte, error) {
	b, err := codec.Marshal(struct {
		OpCode OpCode      `json:"op"`
		Data   interface{} `json:"d,omitempty"`
	}{
		OpCode: data.Op(),
		Data:   data,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode payload")
	}
	return b, nil
}

// Decode deserializes a full payload using DefaultCodec. Decoding is
// lenient: an opcode the codec doesn't know about yields an *Unknown, never
// an error (P2). An error is only returned for a malformed envelope or a
// known opcode whose body fails to unmarshal — that is a non-retryable
// protocol error.
func Decode(b []byte) (Data, error) {
	return DecodeWith(DefaultCodec, b)
}

// DecodeWith deserializes a full payload using the given codec. See Decode.
func DecodeWith(codec Codec, b []byte) (Data, error) {
	var env payloadEnvelope
	if err := codec.Unmarshal(b, &env); err != nil {
		return nil, errors.Wrap(err, "failed to decode payload envelope")
	}

	data := newData(env.OpCode)
	if data == nil {
		return &Unknown{OpCode: env.OpCode, Raw: env.Data}, nil
	}

	if len(env.Data) > 0 {
		if err := codec.Unmarshal(env.Data, data); err != nil {
			return nil, errors.Wrapf(err, "failed to decode opcode %d body", env.OpCode)
		}
	}

	return data, nil
}
