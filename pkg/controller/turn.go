package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-go-golems/palaver/pkg/conversation"
)

// Phase is where a single submission is in its lifecycle.
type Phase string

const (
	PhaseQueued             Phase = "queued"
	PhasePendingUserAppend  Phase = "pending_user_append"
	PhaseAwaitingReply      Phase = "awaiting_reply"
	PhasePendingReplyAppend Phase = "pending_reply_append"
	PhaseDone               Phase = "done"
)

type Outcome string

const (
	OutcomeReplied  Outcome = "replied"
	OutcomeFailed   Outcome = "failed"
	OutcomeTimedOut Outcome = "timed_out"
	OutcomeCanceled Outcome = "canceled"
)

// Turn is one accepted submission: a user message and the reply it is waiting for.
type Turn struct {
	ID    int64
	Draft string

	// prev is closed when the previous turn is done; nil if there was none in flight
	prev <-chan struct{}
	done chan struct{}
	// aborted is closed by Cancel
	aborted   chan struct{}
	abortOnce sync.Once

	mutex       sync.Mutex
	phase       Phase
	userMessage *conversation.Message
	cancel      context.CancelFunc
}

func newTurn(id int64, draft string, prev <-chan struct{}) *Turn {
	t := &Turn{
		ID:      id,
		Draft:   draft,
		prev:    prev,
		done:    make(chan struct{}),
		aborted: make(chan struct{}),
		phase:   PhasePendingUserAppend,
	}
	if prev != nil {
		t.phase = PhaseQueued
	}
	return t
}

func (t *Turn) Phase() Phase {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.phase
}

// UserMessage returns the appended user message, if the turn got that far.
func (t *Turn) UserMessage() (conversation.Message, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.userMessage == nil {
		return conversation.Message{}, false
	}
	return *t.userMessage, true
}

func (t *Turn) setPhase(p Phase) {
	t.mutex.Lock()
	t.phase = p
	t.mutex.Unlock()
}

func (t *Turn) setUserMessage(m conversation.Message) {
	t.mutex.Lock()
	t.userMessage = &m
	t.mutex.Unlock()
}

// setCancel installs the abort function, or reports false if the turn was canceled already.
func (t *Turn) setCancel(cancel context.CancelFunc) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.isAborted() {
		return false
	}
	t.cancel = cancel
	return true
}

func (t *Turn) abort() {
	t.abortOnce.Do(func() {
		close(t.aborted)
	})

	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
}

func (t *Turn) isAborted() bool {
	select {
	case <-t.aborted:
		return true
	default:
		return false
	}
}

func (t *Turn) String() string {
	return fmt.Sprintf("turn %d (%s)", t.ID, t.Phase())
}

// Result is how a turn ended.
type Result struct {
	Turn    *Turn
	Outcome Outcome
	// Reply is set for OutcomeReplied.
	Reply *conversation.Message
	Err   error
	// Appended reports whether the user message made it into the transcript.
	// A queued turn canceled before it started is dropped, and its draft can be restored.
	Appended bool
}
