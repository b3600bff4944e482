package looper

import (
	"github.com/joeycumines/logiface"
)

// Drop reasons, used as both log fields and metric attributes.
const (
	reasonNilMessage     = "nil_message"
	reasonNilHandler     = "nil_handler"
	reasonForeignHandler = "foreign_handler"
	reasonInUse          = "in_use"
	reasonStopped        = "stopped"
	reasonDrained        = "drained"
)

// withLooper adds the fields identifying l.
func (l *Looper) withLooper(b *logiface.Builder[logiface.Event]) *logiface.Builder[logiface.Event] {
	return b.Str("looper", l.name).Str("looper_id", l.id.String())
}

// withMessage adds the fields identifying m.
func withMessage(b *logiface.Builder[logiface.Event], m *Message) *logiface.Builder[logiface.Event] {
	if m == nil {
		return b
	}
	if m.Handler != nil {
		b = b.Str("handler", m.Handler.name)
	}
	return b.Int("tag", m.Tag)
}

// logDrop warns that a message was discarded, subject to the drop log rate
// limit for the reason.
func (l *Looper) logDrop(m *Message, reason string, err error) {
	b := l.logger.Warning()
	if !b.Enabled() {
		return
	}
	if l.dropLimiter != nil {
		if _, ok := l.dropLimiter.Allow(reason); !ok {
			b.Release()
			return
		}
	}
	withMessage(l.withLooper(b), m).
		Str("reason", reason).
		Err(err).
		Log("looper: message dropped")
}
