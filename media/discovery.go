// Package media implements the voice gateway's UDP data plane: IP discovery
// over the voice socket and the authenticated-encryption transformer that
// seals and opens RTP-style audio packets.
package media

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

const discoveryPacketLen = 74

const (
	discoveryRequestType  uint16 = 0x0001
	discoveryPayloadLen   uint16 = 70
	discoveryIPFieldStart        = 8
	discoveryIPFieldEnd          = 72
	discoveryPortStart           = 72
	discoveryPortEnd             = 74
)

// ErrMalformedDiscoveryResponse is returned when a discovery response isn't
// the expected length or lacks a NUL-terminated IP field.
var ErrMalformedDiscoveryResponse = errors.New("media: malformed IP discovery response")

// buildDiscoveryRequest builds the 74-byte IP discovery request for ssrc,
// per spec §4.3: 2 bytes request type (0x0001), 2 bytes length (70), 4 bytes
// big-endian SSRC, and 66 zero bytes.
func buildDiscoveryRequest(ssrc uint32) [discoveryPacketLen]byte {
	var pkt [discoveryPacketLen]byte
	binary.BigEndian.PutUint16(pkt[0:2], discoveryRequestType)
	binary.BigEndian.PutUint16(pkt[2:4], discoveryPayloadLen)
	binary.BigEndian.PutUint32(pkt[4:8], ssrc)
	return pkt
}

// parseDiscoveryResponse extracts the externally visible ip/port from a
// 74-byte IP discovery response. Bytes 8:72 hold the NUL-terminated IP;
// bytes 72:74 hold the big-endian port.
func parseDiscoveryResponse(b []byte) (ip string, port uint16, err error) {
	if len(b) != discoveryPacketLen {
		return "", 0, errors.Wrapf(ErrMalformedDiscoveryResponse, "got %d bytes, want %d", len(b), discoveryPacketLen)
	}

	ipField := b[discoveryIPFieldStart:discoveryIPFieldEnd]

	nullPos := bytes.IndexByte(ipField, 0)
	if nullPos < 0 {
		return "", 0, errors.Wrap(ErrMalformedDiscoveryResponse, "missing NUL terminator in IP field")
	}

	ip = string(ipField[:nullPos])
	port = binary.BigEndian.Uint16(b[discoveryPortStart:discoveryPortEnd])

	return ip, port, nil
}
