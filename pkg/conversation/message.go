package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsKnown reports whether the role is one the client knows how to render.
func (r Role) IsKnown() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single transcript entry, in the shape the chat service sends and expects.
// Messages are values: once handed to a Store they are never modified.
type Message struct {
	ID         string `json:"id,omitempty" yaml:"id,omitempty"`
	Role       Role   `json:"role" yaml:"role"`
	Content    string `json:"content" yaml:"content"`
	CreateTime int64  `json:"createTime" yaml:"createTime"`
}

type MessageOption func(*Message)

func WithID(id string) MessageOption {
	return func(m *Message) {
		m.ID = id
	}
}

func WithTime(t time.Time) MessageOption {
	return func(m *Message) {
		m.CreateTime = t.UnixMilli()
	}
}

// NewMessage creates a message stamped with the current time and a fresh ID.
func NewMessage(role Role, content string, options ...MessageOption) Message {
	ret := Message{
		ID:         uuid.NewString(),
		Role:       role,
		Content:    content,
		CreateTime: time.Now().UnixMilli(),
	}

	for _, option := range options {
		option(&ret)
	}

	return ret
}

func NewUserMessage(content string, options ...MessageOption) Message {
	return NewMessage(RoleUser, content, options...)
}

// Time converts CreateTime back into a time.Time. A zero CreateTime yields the zero time.
func (m Message) Time() time.Time {
	if m.CreateTime == 0 {
		return time.Time{}
	}
	return time.UnixMilli(m.CreateTime)
}

// Clock renders the creation time as HH:MM in local time, or --:-- when there is none.
func (m Message) Clock() string {
	t := m.Time()
	if t.IsZero() {
		return "--:--"
	}
	return t.Format("15:04")
}

func (m Message) String() string {
	return fmt.Sprintf("[%s]: %s", m.Role, strings.TrimRight(m.Content, "\n"))
}

// Transcript is an ordered sequence of messages, oldest first.
type Transcript []Message

func (t Transcript) Roles() []Role {
	ret := make([]Role, len(t))
	for i, m := range t {
		ret[i] = m.Role
	}
	return ret
}

// Last returns the newest message, if any.
func (t Transcript) Last() (Message, bool) {
	if len(t) == 0 {
		return Message{}, false
	}
	return t[len(t)-1], true
}
