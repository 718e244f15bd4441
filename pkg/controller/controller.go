package controller

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/palaver/pkg/client"
	"github.com/go-go-golems/palaver/pkg/conversation"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Service is the remote end of the conversation.
type Service interface {
	Welcome(ctx context.Context) (conversation.Message, error)
	Chat(ctx context.Context, messages []conversation.Message) (conversation.Message, error)
}

var _ Service = (*client.Client)(nil)

type State string

const (
	StateIdle          State = "idle"
	StateAwaitingReply State = "awaiting_reply"
)

// OverlapPolicy decides what happens to a submission made while a reply is still pending.
type OverlapPolicy string

const (
	// PolicyReject refuses the submission; the view keeps input disabled until the reply lands.
	PolicyReject OverlapPolicy = "reject"
	// PolicyQueue accepts the submission and runs it once every earlier turn is done.
	PolicyQueue OverlapPolicy = "queue"
)

func ParseOverlapPolicy(s string) (OverlapPolicy, error) {
	switch OverlapPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyReject:
		return PolicyReject, nil
	case PolicyQueue:
		return PolicyQueue, nil
	default:
		return "", errors.Errorf("unknown overlap policy %q", s)
	}
}

var (
	ErrEmptyDraft    = errors.New("draft is empty")
	ErrTurnInFlight  = errors.New("a reply is still pending")
	ErrReplyTimedOut = errors.New("reply timed out")
	ErrTurnCanceled  = errors.New("turn canceled")
)

// Controller runs the submit → append → request → append cycle against a Store.
// It is the only writer of the store during a conversation.
type Controller struct {
	store   *conversation.Store
	service Service

	policy         OverlapPolicy
	replyTimeout   time.Duration
	welcomeTimeout time.Duration
	now            func() time.Time
	newID          func() string

	mutex  sync.Mutex
	seq    int64
	active map[int64]*Turn
	// tail is the most recently accepted turn that is not done yet
	tail *Turn
}

type Option func(*Controller)

func WithOverlapPolicy(p OverlapPolicy) Option {
	return func(c *Controller) {
		c.policy = p
	}
}

// WithReplyTimeout bounds every chat request. Zero disables the bound.
func WithReplyTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.replyTimeout = d
	}
}

func WithWelcomeTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.welcomeTimeout = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(c *Controller) {
		c.newID = newID
	}
}

func NewController(store *conversation.Store, service Service, options ...Option) *Controller {
	ret := &Controller{
		store:          store,
		service:        service,
		policy:         PolicyReject,
		replyTimeout:   60 * time.Second,
		welcomeTimeout: 10 * time.Second,
		now:            time.Now,
		newID:          uuid.NewString,
		active:         make(map[int64]*Turn),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (c *Controller) Store() *conversation.Store {
	return c.store
}

func (c *Controller) Policy() OverlapPolicy {
	return c.policy
}

func (c *Controller) State() State {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if len(c.active) > 0 {
		return StateAwaitingReply
	}
	return StateIdle
}

// Pending is the number of accepted turns that are not done yet.
func (c *Controller) Pending() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.active)
}

// CanSubmit reports whether Begin would accept a non-empty draft right now.
func (c *Controller) CanSubmit() bool {
	return c.policy == PolicyQueue || c.State() == StateIdle
}

// Begin validates a draft and accepts it as a new turn. When no other turn is in flight the
// user message is appended before Begin returns. Once Begin succeeds the caller clears its
// draft and must hand the turn to Dispatch.
func (c *Controller) Begin(draft string) (*Turn, error) {
	if strings.TrimSpace(draft) == "" {
		return nil, ErrEmptyDraft
	}

	c.mutex.Lock()
	if len(c.active) > 0 && c.policy != PolicyQueue {
		c.mutex.Unlock()
		return nil, ErrTurnInFlight
	}

	c.seq++
	var prev <-chan struct{}
	if c.tail != nil {
		prev = c.tail.done
	}
	t := newTurn(c.seq, draft, prev)
	c.active[t.ID] = t
	c.tail = t
	c.mutex.Unlock()

	log.Debug().
		Int64("turn", t.ID).
		Str("phase", string(t.Phase())).
		Int("draft_length", len(draft)).
		Msg("accepted submission")

	if prev == nil {
		c.appendUserMessage(t)
	}

	return t, nil
}

func (c *Controller) appendUserMessage(t *Turn) {
	t.setPhase(PhasePendingUserAppend)
	m := conversation.NewUserMessage(
		t.Draft,
		conversation.WithTime(c.now()),
		conversation.WithID(c.newID()),
	)
	c.store.Append(m)
	t.setUserMessage(m)
	t.setPhase(PhaseAwaitingReply)
}

// Dispatch waits for earlier turns, sends the transcript and appends the reply.
// It blocks until the turn is done and never returns the service's errors to the caller
// except inside the Result.
func (c *Controller) Dispatch(ctx context.Context, t *Turn) Result {
	defer c.finish(t)

	if t.prev != nil {
		select {
		case <-t.prev:
		case <-t.aborted:
			return c.drop(t, ErrTurnCanceled)
		case <-ctx.Done():
			return c.drop(t, errors.Wrap(ErrTurnCanceled, ctx.Err().Error()))
		}
		if t.isAborted() {
			return c.drop(t, ErrTurnCanceled)
		}
		c.appendUserMessage(t)
	}

	var turnCtx context.Context
	var cancel context.CancelFunc
	if c.replyTimeout > 0 {
		turnCtx, cancel = context.WithTimeout(ctx, c.replyTimeout)
	} else {
		turnCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	if !t.setCancel(cancel) {
		return c.fail(t, turnCtx, ErrTurnCanceled)
	}

	transcript := c.store.Read()
	log.Debug().
		Int64("turn", t.ID).
		Int("transcript_length", len(transcript)).
		Msg("sending transcript")

	reply, err := c.service.Chat(turnCtx, transcript)
	if err != nil {
		return c.fail(t, turnCtx, err)
	}

	t.setPhase(PhasePendingReplyAppend)
	c.store.Append(reply)

	log.Debug().
		Int64("turn", t.ID).
		Str("role", string(reply.Role)).
		Msg("reply appended")

	return Result{
		Turn:     t,
		Outcome:  OutcomeReplied,
		Reply:    &reply,
		Appended: true,
	}
}

// Submit is Begin followed by Dispatch.
func (c *Controller) Submit(ctx context.Context, draft string) (Result, error) {
	t, err := c.Begin(draft)
	if err != nil {
		return Result{}, err
	}
	return c.Dispatch(ctx, t), nil
}

// Cancel aborts every turn that is in flight or queued, and returns how many it aborted.
func (c *Controller) Cancel() int {
	c.mutex.Lock()
	turns := make([]*Turn, 0, len(c.active))
	for _, t := range c.active {
		turns = append(turns, t)
	}
	c.mutex.Unlock()

	// newest first, so a queued turn cannot start in the gap left by its aborted predecessor
	sort.Slice(turns, func(i, j int) bool {
		return turns[i].ID > turns[j].ID
	})
	for _, t := range turns {
		t.abort()
	}
	if len(turns) > 0 {
		log.Info().Int("turns", len(turns)).Msg("canceled pending turns")
	}
	return len(turns)
}

func (c *Controller) fail(t *Turn, turnCtx context.Context, err error) Result {
	outcome := OutcomeFailed
	resultErr := err
	switch {
	case t.isAborted():
		outcome = OutcomeCanceled
		resultErr = ErrTurnCanceled
	case errors.Is(turnCtx.Err(), context.DeadlineExceeded):
		outcome = OutcomeTimedOut
		resultErr = errors.Wrapf(ErrReplyTimedOut, "no reply after %s", c.replyTimeout)
	case errors.Is(turnCtx.Err(), context.Canceled):
		outcome = OutcomeCanceled
		resultErr = ErrTurnCanceled
	}

	log.Warn().
		Err(err).
		Int64("turn", t.ID).
		Str("outcome", string(outcome)).
		Str("error_kind", client.ErrorKind(err)).
		Msg("chat turn ended without a reply")

	return Result{
		Turn:     t,
		Outcome:  outcome,
		Err:      resultErr,
		Appended: true,
	}
}

func (c *Controller) drop(t *Turn, err error) Result {
	log.Info().
		Int64("turn", t.ID).
		Msg("queued turn canceled before it started")

	return Result{
		Turn:    t,
		Outcome: OutcomeCanceled,
		Err:     err,
	}
}

func (c *Controller) finish(t *Turn) {
	t.setPhase(PhaseDone)
	close(t.done)

	c.mutex.Lock()
	delete(c.active, t.ID)
	if c.tail == t {
		c.tail = nil
	}
	c.mutex.Unlock()
}

// Bootstrap fetches the welcome message and seeds the transcript with it. It is not retried;
// on failure the transcript stays as it is. A welcome arriving after the user already sent
// something is dropped so it cannot replace the conversation.
func (c *Controller) Bootstrap(ctx context.Context) error {
	if c.welcomeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.welcomeTimeout)
		defer cancel()
	}

	m, err := c.service.Welcome(ctx)
	if err != nil {
		log.Warn().
			Err(err).
			Str("error_kind", client.ErrorKind(err)).
			Msg("could not fetch welcome message")
		return errors.Wrap(err, "could not fetch welcome message")
	}

	if !c.store.Seed([]conversation.Message{m}) {
		log.Info().Msg("transcript already started, dropping welcome message")
	}

	return nil
}
