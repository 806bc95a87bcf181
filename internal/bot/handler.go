package bot

import (
	"context"
	"errors"
)

// Handler reacts to the two activity kinds the bot understands.
type Handler interface {
	// OnMembersAdded runs when members join the conversation.
	OnMembersAdded(ctx context.Context, act *Activity, s Sender) error

	// OnMessage runs for every inbound message.
	OnMessage(ctx context.Context, act *Activity, s Sender) error
}

// ErrMissingActivityType is returned by Dispatch for an activity without a type.
var ErrMissingActivityType = errors.New("bot: activity type is required")

// Dispatch routes act to h by activity type. It reports whether a handler ran;
// unknown types and updates without added members are ignored.
func Dispatch(ctx context.Context, h Handler, act *Activity, s Sender) (bool, error) {
	switch act.Type {
	case "":
		return false, ErrMissingActivityType
	case ActivityTypeMessage:
		return true, h.OnMessage(ctx, act, s)
	case ActivityTypeConversationUpdate, ActivityTypeMembersAdded:
		if len(act.MembersAdded) == 0 {
			return false, nil
		}
		return true, h.OnMembersAdded(ctx, act, s)
	default:
		return false, nil
	}
}
