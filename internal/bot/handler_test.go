package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	messages int
	joins    int
}

func (h *recordingHandler) OnMembersAdded(context.Context, *Activity, Sender) error {
	h.joins++
	return nil
}

func (h *recordingHandler) OnMessage(context.Context, *Activity, Sender) error {
	h.messages++
	return nil
}

func TestDispatch(t *testing.T) {
	t.Parallel()

	members := []ChannelAccount{{ID: "u"}}
	tests := []struct {
		name        string
		act         Activity
		wantHandled bool
		wantMsg     int
		wantJoin    int
		wantErr     error
	}{
		{"message", Activity{Type: ActivityTypeMessage}, true, 1, 0, nil},
		{"conversation update", Activity{Type: ActivityTypeConversationUpdate, MembersAdded: members}, true, 0, 1, nil},
		{"members added alias", Activity{Type: ActivityTypeMembersAdded, MembersAdded: members}, true, 0, 1, nil},
		{"update without members", Activity{Type: ActivityTypeConversationUpdate}, false, 0, 0, nil},
		{"typing", Activity{Type: "typing"}, false, 0, 0, nil},
		{"missing type", Activity{}, false, 0, 0, ErrMissingActivityType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := &recordingHandler{}
			handled, err := Dispatch(context.Background(), h, &tt.act, NewTranscript(&tt.act))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantHandled, handled)
			assert.Equal(t, tt.wantMsg, h.messages)
			assert.Equal(t, tt.wantJoin, h.joins)
		})
	}
}

func TestTranscript_AddressesReplies(t *testing.T) {
	t.Parallel()

	in := messageActivity("hi")
	in.ChannelID = "webchat"
	tr := NewTranscript(in)
	require.NoError(t, tr.SendText(context.Background(), "hello"))

	out := tr.Activities()
	require.Len(t, out, 1)
	assert.Equal(t, ActivityTypeMessage, out[0].Type)
	assert.Equal(t, in.Recipient, out[0].From)
	assert.Equal(t, in.From, out[0].Recipient)
	assert.Equal(t, in.Conversation, out[0].Conversation)
	assert.Equal(t, "act-1", out[0].ReplyToID)
	assert.Equal(t, "webchat", out[0].ChannelID)

	tr.Reset()
	assert.Zero(t, tr.Len())
}

func TestTranscript_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := NewTranscript(nil)
	require.ErrorIs(t, tr.SendText(ctx, "x"), context.Canceled)
	require.ErrorIs(t, tr.SendAttachment(ctx, Attachment{}), context.Canceled)
	assert.Zero(t, tr.Len())
}
