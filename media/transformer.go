package media

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	rtpVersion     = 0x80
	rtpPayloadType = 0x78
	rtpHeaderSize  = 12
	nonceSize      = 24
)

// ErrDecryptionFailed is returned by Open when a packet fails authentication
// and must be discarded.
var ErrDecryptionFailed = errors.New("media: packet decryption failed")

// Transformer seals and opens audio packets for one CONNECTED span. It is
// constructed once a SessionDescription supplies ssrc and the secret key;
// the key is owned exclusively here and is never logged (Invariant 1).
// It is not safe for concurrent Seal/Open calls from multiple goroutines,
// matching the send/receive task split in spec §5 (write-only vs read-only).
type Transformer struct {
	ssrc   uint32
	secret [32]byte

	sequence  uint16
	timestamp uint32
}

// NewTransformer constructs a Transformer for one CONNECTED span.
func NewTransformer(ssrc uint32, secret [32]byte) *Transformer {
	return &Transformer{ssrc: ssrc, secret: secret}
}

// Seal builds the 12-byte RTP header for the next outgoing frame, advances
// sequence (by 1) and timestamp (by sampleCount), and seals frame with the
// transformer's secret key. The nonce is the header right-padded with zeros
// to 24 bytes. The returned datagram is header || sealed(frame).
func (t *Transformer) Seal(frame []byte, sampleCount uint32) []byte {
	var header [rtpHeaderSize]byte
	header[0] = rtpVersion
	header[1] = rtpPayloadType
	binary.BigEndian.PutUint16(header[2:4], t.sequence)
	binary.BigEndian.PutUint32(header[4:8], t.timestamp)
	binary.BigEndian.PutUint32(header[8:12], t.ssrc)

	t.sequence++
	t.timestamp += sampleCount

	var nonce [nonceSize]byte
	copy(nonce[:rtpHeaderSize], header[:])

	return secretbox.Seal(header[:], frame, &nonce, &t.secret)
}

// Open reconstructs the nonce from a received datagram's header, opens the
// sealed payload, and returns the decoded opus frame. Packets that fail
// authentication are discarded with ErrDecryptionFailed, per spec §4.4's
// inverse path.
func (t *Transformer) Open(datagram []byte) ([]byte, error) {
	if len(datagram) < rtpHeaderSize {
		return nil, errors.New("media: packet shorter than RTP header")
	}

	var nonce [nonceSize]byte
	copy(nonce[:rtpHeaderSize], datagram[:rtpHeaderSize])

	opened, ok := secretbox.Open(nil, datagram[rtpHeaderSize:], &nonce, &t.secret)
	if !ok {
		return nil, ErrDecryptionFailed
	}

	return opened, nil
}

// Destroy zeroes the transformer's secret key. The driver calls this when an
// attempt's scope unwinds, so the key never outlives the CONNECTED span it
// was issued for (Invariant 1). Seal and Open must not be called afterward.
func (t *Transformer) Destroy() {
	for i := range t.secret {
		t.secret[i] = 0
	}
}
