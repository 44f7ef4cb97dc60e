package campaign

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/assert"
)

func TestClassifyFloodWait(t *testing.T) {
	res := Classify(fmt.Errorf("forward: %w", tgerr.New(420, "FLOOD_WAIT_30")))
	assert.Equal(t, ResultRateLimited, res.Kind)
	assert.Equal(t, 31*time.Second, res.Wait)
	assert.Equal(t, "Flood wait 30s", res.Reason)
}

func TestClassifySlowMode(t *testing.T) {
	res := Classify(tgerr.New(420, "SLOWMODE_WAIT_10"))
	assert.Equal(t, ResultRateLimited, res.Kind)
	assert.Equal(t, 11*time.Second, res.Wait)
}

func TestClassifySkips(t *testing.T) {
	cases := []struct {
		err    error
		reason string
	}{
		{tgerr.New(400, "CHAT_FORWARDS_RESTRICTED"), "Forward restricted by source"},
		{tgerr.New(403, "CHAT_WRITE_FORBIDDEN"), "Forbidden: CHAT_WRITE_FORBIDDEN"},
		{tgerr.New(400, "USER_BANNED_IN_CHANNEL"), "Forbidden: USER_BANNED_IN_CHANNEL"},
		{tgerr.New(403, "SOMETHING_NEW"), "Forbidden: SOMETHING_NEW"},
		{tgerr.New(400, "MESSAGE_ID_INVALID"), "Message not found"},
		{tgerr.New(400, "PEER_ID_INVALID"), "PEER_ID_INVALID"},
		{fmt.Errorf("load: %w", ErrMessageMissing), "Message not found"},
		{errors.New("connection reset"), "connection reset"},
	}
	for _, c := range cases {
		res := Classify(c.err)
		assert.Equal(t, ResultSkip, res.Kind, c.reason)
		assert.Equal(t, c.reason, res.Reason)
		assert.Zero(t, res.Wait)
	}
}

func TestClassifyNil(t *testing.T) {
	assert.True(t, Classify(nil).Success())
}
