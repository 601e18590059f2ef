package mq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic(t *testing.T) {
	assert.Equal(t, "optionsdesk.option.minted", Topic("optionsdesk", "option.minted"))
	assert.Equal(t, "optionsdesk.option.minted", Topic("optionsdesk.", "option.minted"))
	assert.Equal(t, "listing.filled", Topic("", "listing.filled"))
}

func TestUnmarshalPayload(t *testing.T) {
	msg := &Message{Value: []byte(`{"option_id":"opt-1","tx_id":"tx-1"}`)}

	var ev struct {
		OptionID string `json:"option_id"`
		TxID     string `json:"tx_id"`
	}
	require.NoError(t, msg.UnmarshalPayload(&ev))
	assert.Equal(t, "opt-1", ev.OptionID)
	assert.Equal(t, "tx-1", ev.TxID)
}
