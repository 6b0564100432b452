package protocol

// HelloEvent is the first frame sent by the server, carrying the heartbeat
// interval the client must honor.
type HelloEvent struct {
	HeartbeatIntervalMs float64 `json:"heartbeat_interval"`
}

// Op implements Data.
func (e *HelloEvent) Op() OpCode { return OpHello }

// ReadyEvent answers Identify, assigning the session's SSRC and the UDP
// endpoint to dial for IP discovery.
type ReadyEvent struct {
	SSRC  uint32   `json:"ssrc"`
	IP    string   `json:"ip"`
	Port  uint16   `json:"port"`
	Modes []string `json:"modes"`
}

// Op implements Data.
func (e *ReadyEvent) Op() OpCode { return OpReady }

// SessionDescriptionEvent answers SelectProtocol, carrying the secret key
// used by the packet transformer to seal/open audio.
type SessionDescriptionEvent struct {
	Mode      string   `json:"mode"`
	SecretKey [32]byte `json:"secret_key"`
}

// Op implements Data.
func (e *SessionDescriptionEvent) Op() OpCode { return OpSessionDescription }

// ResumedEvent answers Resume, confirming the prior session was restored.
type ResumedEvent struct{}

// Op implements Data.
func (e *ResumedEvent) Op() OpCode { return OpResumed }

// HeartbeatAckEvent answers a Heartbeat, echoing its nonce.
type HeartbeatAckEvent uint64

// Op implements Data.
func (e *HeartbeatAckEvent) Op() OpCode { return OpHeartbeatAck }
