package appctx

import (
	"context"
	"sync"
)

// Session collects human-readable messages produced while serving one request
// (for example "Notification sent to 3 approvers") so the caller can show them.
type Session struct {
	mu       sync.Mutex
	messages []string
}

func (s *Session) Add(msg string) {
	if s == nil || msg == "" {
		return
	}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
}

func (s *Session) Messages() []string {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.messages))
	copy(out, s.messages)
	return out
}

// WithSession attaches a fresh Session unless one is already present.
func WithSession(ctx context.Context) (context.Context, *Session) {
	if s := GetSession(ctx); s != nil {
		return ctx, s
	}
	s := &Session{}
	return Set(ctx, ContextKeySession, s), s
}

func GetSession(ctx context.Context) *Session {
	s, _ := ctx.Value(ContextKeySession).(*Session)
	return s
}
