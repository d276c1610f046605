package summarizer

import "google.golang.org/genai"

// Role identifies who produced a chat turn
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Chat is one turn of a conversation
type Chat struct {
	Role  Role
	Parts []string
}

// Session is a bounded conversation history. Consecutive turns with the
// same role are merged into one, and the oldest turn is evicted once the
// limit is passed.
type Session struct {
	history       []Chat
	limit         int
	chatNo        int
	rememberReply bool
}

// NewSession creates a session holding at most limit turns. NewSession(2)
// keeps one question and one reply.
func NewSession(limit int) *Session {
	if limit < 1 {
		limit = 1
	}
	return &Session{limit: limit, rememberReply: true}
}

// SetRememberReply controls whether Reply stores model turns. When off,
// Reply drops the pending user turn instead.
func (s *Session) SetRememberReply(remember bool) *Session {
	s.rememberReply = remember
	return s
}

// RememberReply reports whether model replies are kept
func (s *Session) RememberReply() bool {
	return s.rememberReply
}

// Limit returns the maximum number of turns kept
func (s *Session) Limit() int {
	return s.limit
}

// Len returns the number of turns currently kept
func (s *Session) Len() int {
	return len(s.history)
}

// ChatCount returns how many distinct turns were ever added, including
// evicted ones
func (s *Session) ChatCount() int {
	return s.chatNo
}

// History returns a copy of the kept turns, oldest first
func (s *Session) History() []Chat {
	out := make([]Chat, len(s.history))
	for i, c := range s.history {
		out[i] = Chat{Role: c.Role, Parts: append([]string(nil), c.Parts...)}
	}
	return out
}

// Ask adds a user turn. Asking twice in a row extends the same turn.
func (s *Session) Ask(prompt string) *Session {
	return s.add(Chat{Role: RoleUser, Parts: []string{prompt}})
}

// Reply records the model's answer to the pending user turn
func (s *Session) Reply(parts ...string) *Session {
	if s.rememberReply {
		return s.add(Chat{Role: RoleModel, Parts: parts})
	}
	if n := len(s.history); n > 0 && s.history[n-1].Role == RoleUser {
		s.history = s.history[:n-1]
	}
	return s
}

func (s *Session) add(chat Chat) *Session {
	if n := len(s.history); n > 0 && s.history[n-1].Role == chat.Role {
		s.history[n-1].Parts = append(s.history[n-1].Parts, chat.Parts...)
		return s
	}

	s.history = append(s.history, chat)
	s.chatNo++
	if len(s.history) > s.limit {
		s.history = append(s.history[:0], s.history[1:]...)
	}
	return s
}

// contents converts the history to request contents
func (s *Session) contents() []*genai.Content {
	out := make([]*genai.Content, 0, len(s.history))
	for _, chat := range s.history {
		parts := make([]*genai.Part, 0, len(chat.Parts))
		for _, p := range chat.Parts {
			parts = append(parts, &genai.Part{Text: p})
		}
		out = append(out, &genai.Content{Role: string(chat.Role), Parts: parts})
	}
	return out
}
