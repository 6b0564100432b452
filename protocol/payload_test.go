package protocol

import "testing"

func TestCodecRoundTrip(t *testing.T) {
	cases := []Data{
		&IdentifyData{GuildID: 1, UserID: 2, SessionID: "sess", Token: "tok"},
		&ResumeData{GuildID: 1, UserID: 2, SessionID: "sess"},
		&SelectProtocolData{
			Protocol: "udp",
			Data: SelectProtocolDataBody{
				Address: "9.9.9.9",
				Port:    6000,
				Mode:    "xsalsa20_poly1305",
			},
		},
		&SpeakingData{Flags: 1, Delay: 0, SSRC: 12345},
		&HelloEvent{HeartbeatIntervalMs: 41250},
		&ReadyEvent{SSRC: 12345, IP: "1.2.3.4", Port: 5000, Modes: []string{"xsalsa20_poly1305"}},
		&ResumedEvent{},
	}

	for _, want := range cases {
		b, err := Encode(want)
		if err != nil {
			t.Fatalf("encode %T: %v", want, err)
		}

		got, err := Decode(b)
		if err != nil {
			t.Fatalf("decode %T: %v", want, err)
		}

		if got.Op() != want.Op() {
			t.Fatalf("op mismatch for %T: got %d want %d", want, got.Op(), want.Op())
		}
	}
}

func TestLenientDecode(t *testing.T) {
	// opcode 99 doesn't exist; decoding must not error (P2).
	got, err := Decode([]byte(`{"op":99,"d":{"foo":"bar"}}`))
	if err != nil {
		t.Fatalf("unexpected error decoding unknown opcode: %v", err)
	}

	unk, ok := got.(*Unknown)
	if !ok {
		t.Fatalf("expected *Unknown, got %T", got)
	}
	if unk.Op() != 99 {
		t.Fatalf("unexpected opcode: %d", unk.Op())
	}
}

func TestDecodeMalformedEnvelope(t *testing.T) {
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Fatal("expected error decoding malformed envelope")
	}
}

func TestDecodeMalformedKnownBody(t *testing.T) {
	// op 2 (Ready) is known; SSRC must be a number, not a string.
	_, err := Decode([]byte(`{"op":2,"d":{"ssrc":"not a number"}}`))
	if err == nil {
		t.Fatal("expected error decoding malformed known-opcode body")
	}
}
