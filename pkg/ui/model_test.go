package ui

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/palaver/pkg/client"
	"github.com/go-go-golems/palaver/pkg/controller"
	"github.com/go-go-golems/palaver/pkg/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	welcome conversation.Message
	chat    func(ctx context.Context, messages []conversation.Message) (conversation.Message, error)
}

func (f *fakeService) Welcome(ctx context.Context) (conversation.Message, error) {
	if f.welcome.Role == "" {
		return conversation.Message{}, &client.RemoteError{Op: "welcome", StatusCode: 404}
	}
	return f.welcome, nil
}

func (f *fakeService) Chat(ctx context.Context, messages []conversation.Message) (conversation.Message, error) {
	return f.chat(ctx, messages)
}

func replyWith(content string) func(context.Context, []conversation.Message) (conversation.Message, error) {
	return func(ctx context.Context, messages []conversation.Message) (conversation.Message, error) {
		return conversation.Message{Role: conversation.RoleAssistant, Content: content, CreateTime: 1050}, nil
	}
}

// blockUntil returns a chat function that only replies once release is closed.
func blockUntil(release <-chan struct{}) func(context.Context, []conversation.Message) (conversation.Message, error) {
	return func(ctx context.Context, messages []conversation.Message) (conversation.Message, error) {
		select {
		case <-release:
			last := messages[len(messages)-1]
			return conversation.Message{Role: conversation.RoleAssistant, Content: "re: " + last.Content}, nil
		case <-ctx.Done():
			return conversation.Message{}, ctx.Err()
		}
	}
}

func newTestModel(t *testing.T, svc controller.Service, options ...controller.Option) (Model, *controller.Controller) {
	t.Helper()
	ctrl := controller.NewController(conversation.NewStore(), svc, options...)
	m := NewModel(ctrl)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	return m, ctrl
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	ret, cmd := m.Update(msg)
	mm, ok := ret.(Model)
	require.True(t, ok)
	return mm, cmd
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func enter(t *testing.T, m Model) (Model, tea.Cmd) {
	t.Helper()
	return update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
}

// run executes every command of a (possibly nested) batch in its own goroutine and delivers
// the resulting messages.
func run(cmd tea.Cmd) <-chan tea.Msg {
	ch := make(chan tea.Msg, 64)
	var launch func(c tea.Cmd)
	launch = func(c tea.Cmd) {
		if c == nil {
			return
		}
		go func() {
			msg := c()
			if batch, ok := msg.(tea.BatchMsg); ok {
				for _, c := range batch {
					launch(c)
				}
				return
			}
			ch <- msg
		}()
	}
	launch(cmd)
	return ch
}

func waitReply(t *testing.T, ch <-chan tea.Msg) ReplyMsg {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-ch:
			if r, ok := msg.(ReplyMsg); ok {
				return r
			}
		case <-deadline:
			t.Fatal("timed out waiting for reply")
			return ReplyMsg{}
		}
	}
}

func TestModel_SubmitAppendsAndRendersReply(t *testing.T) {
	m, ctrl := newTestModel(t, &fakeService{chat: replyWith("hello")})

	m = typeText(t, m, "hi")
	assert.Equal(t, "hi", m.Draft())

	m, cmd := enter(t, m)
	assert.Equal(t, "", m.Draft())
	require.Equal(t, 1, ctrl.Store().Len())
	assert.Contains(t, m.View(), "waiting for reply")

	reply := waitReply(t, run(cmd))
	assert.Equal(t, controller.OutcomeReplied, reply.Result.Outcome)

	m, _ = update(t, m, reply)
	assert.Equal(t, []conversation.Role{conversation.RoleUser, conversation.RoleAssistant}, ctrl.Store().Read().Roles())
	assert.NoError(t, m.Err())

	view := m.View()
	assert.Contains(t, view, "hi")
	assert.Contains(t, view, "hello")
	assert.Contains(t, view, "You")
	assert.Contains(t, view, "Assistant")
	assert.NotContains(t, view, "waiting for reply")
}

func TestModel_BlankDraftIsIgnored(t *testing.T) {
	requests := 0
	m, ctrl := newTestModel(t, &fakeService{chat: func(ctx context.Context, messages []conversation.Message) (conversation.Message, error) {
		requests++
		return conversation.Message{}, nil
	}})

	m = typeText(t, m, "   ")
	m, _ = enter(t, m)

	assert.Equal(t, 0, ctrl.Store().Len())
	assert.Equal(t, "   ", m.Draft())
	assert.Equal(t, controller.StateIdle, ctrl.State())
	assert.Equal(t, 0, requests)
}

func TestModel_RejectPolicyDisablesInputWhileAwaiting(t *testing.T) {
	release := make(chan struct{})
	m, ctrl := newTestModel(t, &fakeService{chat: blockUntil(release)})

	m = typeText(t, m, "A")
	m, cmd := enter(t, m)
	replies := run(cmd)

	assert.False(t, m.keyMap.SubmitMessage.Enabled())
	assert.True(t, m.keyMap.CancelReply.Enabled())

	m = typeText(t, m, "B")
	m, _ = enter(t, m)
	assert.Equal(t, "", m.Draft())
	assert.Equal(t, 1, ctrl.Store().Len())

	close(release)
	m, _ = update(t, m, waitReply(t, replies))

	assert.True(t, m.keyMap.SubmitMessage.Enabled())
	assert.Equal(t, []string{"A", "re: A"}, contents(ctrl.Store().Read()))
}

func TestModel_FailedTurnShowsErrorUntilNextSubmit(t *testing.T) {
	fail := true
	m, ctrl := newTestModel(t, &fakeService{chat: func(ctx context.Context, messages []conversation.Message) (conversation.Message, error) {
		if fail {
			return conversation.Message{}, &client.RemoteError{Op: "chat", StatusCode: 500, Detail: "model overloaded"}
		}
		return conversation.Message{Role: conversation.RoleAssistant, Content: "ok"}, nil
	}})

	m = typeText(t, m, "hi")
	m, cmd := enter(t, m)
	m, _ = update(t, m, waitReply(t, run(cmd)))

	require.Error(t, m.Err())
	assert.Contains(t, m.View(), "model overloaded")
	assert.Equal(t, 1, ctrl.Store().Len())
	// the message was sent, so its draft does not come back
	assert.Equal(t, "", m.Draft())

	fail = false
	m = typeText(t, m, "again")
	m, cmd = enter(t, m)
	assert.NoError(t, m.Err())
	m, _ = update(t, m, waitReply(t, run(cmd)))

	assert.Equal(t, []string{"hi", "again", "ok"}, contents(ctrl.Store().Read()))
}

func TestModel_CancelRestoresQueuedDraft(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	m, ctrl := newTestModel(t, &fakeService{chat: blockUntil(release)},
		controller.WithOverlapPolicy(controller.PolicyQueue))

	m = typeText(t, m, "A")
	m, cmdA := enter(t, m)
	repliesA := run(cmdA)

	m = typeText(t, m, "B")
	m, cmdB := enter(t, m)
	repliesB := run(cmdB)
	assert.Equal(t, "", m.Draft())
	assert.Equal(t, 2, ctrl.Pending())

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})

	replyB := waitReply(t, repliesB)
	assert.False(t, replyB.Result.Appended)
	m, _ = update(t, m, replyB)
	m, _ = update(t, m, waitReply(t, repliesA))

	assert.Equal(t, "B", m.Draft())
	assert.Equal(t, "reply canceled", m.Status())
	assert.Equal(t, []string{"A"}, contents(ctrl.Store().Read()))
}

func TestModel_CancelRestoresOldestQueuedDraft(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	m, ctrl := newTestModel(t, &fakeService{chat: blockUntil(release)},
		controller.WithOverlapPolicy(controller.PolicyQueue))

	m = typeText(t, m, "A")
	m, cmdA := enter(t, m)
	repliesA := run(cmdA)

	m = typeText(t, m, "B")
	m, cmdB := enter(t, m)
	repliesB := run(cmdB)

	m = typeText(t, m, "C")
	m, cmdC := enter(t, m)
	repliesC := run(cmdC)
	assert.Equal(t, 3, ctrl.Pending())

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})

	replyB := waitReply(t, repliesB)
	replyC := waitReply(t, repliesC)

	// the newer turn finishes first
	m, _ = update(t, m, replyC)
	assert.Equal(t, "C", m.Draft())
	m, _ = update(t, m, replyB)
	assert.Equal(t, "B", m.Draft())
	m, _ = update(t, m, waitReply(t, repliesA))
	assert.Equal(t, "B", m.Draft())
	assert.Equal(t, []string{"A"}, contents(ctrl.Store().Read()))
}

func TestModel_CancelKeepsEditedDraft(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	m, _ := newTestModel(t, &fakeService{chat: blockUntil(release)},
		controller.WithOverlapPolicy(controller.PolicyQueue))

	m = typeText(t, m, "A")
	m, cmdA := enter(t, m)
	repliesA := run(cmdA)
	m = typeText(t, m, "B")
	m, cmdB := enter(t, m)
	repliesB := run(cmdB)

	m = typeText(t, m, "draft")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	m, _ = update(t, m, waitReply(t, repliesB))
	m, _ = update(t, m, waitReply(t, repliesA))

	assert.Equal(t, "draft", m.Draft())
}

func TestModel_MarkdownStyleRendersReplies(t *testing.T) {
	svc := &fakeService{chat: replyWith("# Heading\n\nsome *text*")}
	ctrl := controller.NewController(conversation.NewStore(), svc)
	m := NewModel(ctrl, WithMarkdownStyle("notty"))
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	require.NotNil(t, m.renderer.markdown)

	m = typeText(t, m, "hi")
	m, cmd := enter(t, m)
	m, _ = update(t, m, waitReply(t, run(cmd)))

	assert.Contains(t, m.View(), "Heading")
	assert.Contains(t, m.View(), "text")
}

func TestModel_PlainTextWithoutMarkdownStyle(t *testing.T) {
	m, _ := newTestModel(t, &fakeService{})
	assert.Nil(t, m.renderer.markdown)
}

func TestModel_BootstrapSeedsWelcome(t *testing.T) {
	svc := &fakeService{welcome: conversation.Message{Role: conversation.RoleAssistant, Content: "Welcome!", CreateTime: 1}}
	ctrl := controller.NewController(conversation.NewStore(), svc)
	m := NewModel(ctrl, WithBootstrap(true))
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})

	var welcome *WelcomeMsg
	ch := run(m.Init())
	deadline := time.After(2 * time.Second)
	for welcome == nil {
		select {
		case msg := <-ch:
			if w, ok := msg.(WelcomeMsg); ok {
				welcome = &w
			}
		case <-deadline:
			t.Fatal("timed out waiting for welcome")
		}
	}

	require.NoError(t, welcome.Err)
	m, _ = update(t, m, *welcome)
	assert.Contains(t, m.View(), "Welcome!")
}

func TestRoleLabelFallsBackToRawRole(t *testing.T) {
	assert.Equal(t, "You", RoleLabel(conversation.RoleUser))
	assert.Equal(t, "system", RoleLabel("system"))
	assert.Equal(t, "?", RoleLabel(""))
}

func TestRunLines(t *testing.T) {
	svc := &fakeService{chat: func(ctx context.Context, messages []conversation.Message) (conversation.Message, error) {
		last := messages[len(messages)-1]
		if last.Content == "boom" {
			return conversation.Message{}, &client.RemoteError{Op: "chat", StatusCode: 500, Detail: "boom"}
		}
		return conversation.Message{Role: conversation.RoleAssistant, Content: "re: " + last.Content}, nil
	}}
	ctrl := controller.NewController(conversation.NewStore(), svc)

	out := &bytes.Buffer{}
	err := RunLines(context.Background(), strings.NewReader("hi\n   \nboom\nthere\n"), out, ctrl)
	require.NoError(t, err)

	assert.Equal(t, []string{"hi", "re: hi", "boom", "there", "re: there"}, contents(ctrl.Store().Read()))
	assert.Contains(t, out.String(), "error:")
	assert.Contains(t, out.String(), "boom")
}

func contents(t conversation.Transcript) []string {
	ret := make([]string, len(t))
	for i, m := range t {
		ret[i] = m.Content
	}
	return ret
}
