package media

import (
	"bytes"
	"testing"
)

func TestTransformerSealOpenRoundTrip(t *testing.T) {
	var secret [32]byte
	copy(secret[:], "some arbitrary 32-byte key!!!!!!")

	sender := NewTransformer(12345, secret)
	receiver := NewTransformer(12345, secret)

	frame := []byte("opus frame bytes go here")

	datagram := sender.Seal(frame, 960)

	got, err := receiver.Open(datagram)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, frame) {
		t.Fatalf("round-tripped frame mismatch: got %q want %q", got, frame)
	}
}

func TestTransformerSequenceAdvances(t *testing.T) {
	var secret [32]byte
	transformer := NewTransformer(1, secret)

	first := transformer.Seal([]byte("a"), 960)
	second := transformer.Seal([]byte("b"), 960)

	if bytes.Equal(first[2:4], second[2:4]) {
		t.Fatal("sequence did not advance between frames")
	}
}

func TestTransformerOpenFailsOnWrongKey(t *testing.T) {
	var secretA, secretB [32]byte
	secretA[0] = 1
	secretB[0] = 2

	sender := NewTransformer(1, secretA)
	receiver := NewTransformer(1, secretB)

	datagram := sender.Seal([]byte("hello"), 960)

	if _, err := receiver.Open(datagram); err != ErrDecryptionFailed {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestTransformerDestroyZeroesSecret(t *testing.T) {
	var secret [32]byte
	copy(secret[:], "some arbitrary 32-byte key!!!!!!")

	transformer := NewTransformer(1, secret)
	datagram := transformer.Seal([]byte("probe frame"), 960)

	transformer.Destroy()

	if !bytes.Equal(transformer.secret[:], make([]byte, 32)) {
		t.Fatal("secret was not zeroed by Destroy")
	}

	// The zeroed transformer must no longer be able to open a packet that
	// was sealed under the real key: a destroyed key must not silently
	// keep working.
	if _, err := transformer.Open(datagram); err != ErrDecryptionFailed {
		t.Fatalf("expected ErrDecryptionFailed after Destroy, got %v", err)
	}
}

func TestTransformerOpenRejectsShortPacket(t *testing.T) {
	var secret [32]byte
	transformer := NewTransformer(1, secret)

	if _, err := transformer.Open([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error opening undersized packet")
	}
}
