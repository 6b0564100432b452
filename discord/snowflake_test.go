package discord

import (
	"encoding/json"
	"testing"
)

func TestSnowflake(t *testing.T) {
	t.Run("parse", func(t *testing.T) {
		s, err := ParseSnowflake("175928847299117063")
		if err != nil {
			t.Fatal("failed to parse snowflake:", err)
		}
		if s != 175928847299117063 {
			t.Fatal("unexpected value:", s)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := ParseSnowflake("not a number"); err == nil {
			t.Fatal("expected error parsing invalid snowflake")
		}
	})

	t.Run("isValid", func(t *testing.T) {
		if NullSnowflake.IsValid() {
			t.Fatal("NullSnowflake should not be valid")
		}
		if !Snowflake(1).IsValid() {
			t.Fatal("non-zero snowflake should be valid")
		}
	})

	t.Run("json round-trip", func(t *testing.T) {
		type wrapper struct {
			ID GuildID `json:"id"`
		}

		w := wrapper{ID: GuildID(175928847299117063)}

		b, err := json.Marshal(w)
		if err != nil {
			t.Fatal("failed to marshal:", err)
		}

		const expect = `{"id":"175928847299117063"}`
		if string(b) != expect {
			t.Fatalf("unexpected JSON (expected/got): %s / %s", expect, b)
		}

		var got wrapper
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatal("failed to unmarshal:", err)
		}
		if got.ID != w.ID {
			t.Fatal("unexpected round-tripped id:", got.ID)
		}
	})
}
