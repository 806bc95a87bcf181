package bot

import (
	"context"
	"sync"
)

// Sender emits outbound messages for the current turn.
type Sender interface {
	SendText(ctx context.Context, text string) error
	SendAttachment(ctx context.Context, att Attachment) error
}

// Transcript is a Sender that records replies in emission order.
type Transcript struct {
	mu       sync.Mutex
	inbound  *Activity
	outbound []Activity
}

// NewTranscript creates a transcript whose replies are addressed from the
// inbound activity's recipient back to its sender. in may be nil.
func NewTranscript(in *Activity) *Transcript {
	return &Transcript{inbound: in}
}

func (t *Transcript) reply() Activity {
	if t.inbound == nil {
		return Activity{Type: ActivityTypeMessage}
	}
	return t.inbound.Reply()
}

// SendText implements Sender.
func (t *Transcript) SendText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a := t.reply()
	a.Text = text
	t.append(a)
	return nil
}

// SendAttachment implements Sender.
func (t *Transcript) SendAttachment(ctx context.Context, att Attachment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a := t.reply()
	a.Attachments = []Attachment{att}
	t.append(a)
	return nil
}

func (t *Transcript) append(a Activity) {
	t.mu.Lock()
	t.outbound = append(t.outbound, a)
	t.mu.Unlock()
}

// Activities returns a copy of the recorded replies.
func (t *Transcript) Activities() []Activity {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Activity, len(t.outbound))
	copy(out, t.outbound)
	return out
}

// Len returns the number of recorded replies.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.outbound)
}

// Reset discards recorded replies.
func (t *Transcript) Reset() {
	t.mu.Lock()
	t.outbound = nil
	t.mu.Unlock()
}
