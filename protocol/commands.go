package protocol

import "github.com/diamondburned/voicegateway/discord"

// IdentifyData is sent once per fresh session, right after Hello.
type IdentifyData struct {
	GuildID   discord.GuildID `json:"server_id"`
	UserID    discord.UserID  `json:"user_id"`
	SessionID string          `json:"session_id"`
	Token     string          `json:"token"`
}

// Op implements Data.
func (d *IdentifyData) Op() OpCode { return OpIdentify }

// ResumeData is sent once per attempt that re-enters RESUMING, before any
// frame is decoded for that attempt (P4). Unlike IdentifyData it carries no
// Token: a resume only needs the triple that identifies which session to
// pick back up (guild, user, session id).
type ResumeData struct {
	GuildID   discord.GuildID `json:"server_id"`
	UserID    discord.UserID  `json:"user_id"`
	SessionID string          `json:"session_id"`
}

// Op implements Data.
func (d *ResumeData) Op() OpCode { return OpResume }

// HeartbeatData carries a monotonically increasing nonce echoed back in
// HeartbeatAckEvent.
type HeartbeatData uint64

// Op implements Data.
func (d *HeartbeatData) Op() OpCode { return OpHeartbeat }

// SelectProtocolData is emitted once IP discovery succeeds, selecting the
// UDP transport and the encryption mode for the session.
type SelectProtocolData struct {
	Protocol string                 `json:"protocol"`
	Data     SelectProtocolDataBody `json:"data"`
}

// SelectProtocolDataBody is the `data` field of SelectProtocolData.
type SelectProtocolDataBody struct {
	Address string `json:"address"`
	Port    uint16 `json:"port"`
	Mode    string `json:"mode"`
}

// Op implements Data.
func (d *SelectProtocolData) Op() OpCode { return OpSelectProtocol }

// SpeakingData marks the sender as actively transmitting audio.
type SpeakingData struct {
	Flags uint32 `json:"speaking"`
	Delay uint32 `json:"delay"`
	SSRC  uint32 `json:"ssrc"`
}

// Op implements Data.
func (d *SpeakingData) Op() OpCode { return OpSpeaking }
