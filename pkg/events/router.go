package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-go-golems/palaver/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Router carries store events to the view over an in-process watermill channel.
// Publishing blocks until every handler acked, so handlers see events in store order.
type Router struct {
	pubSub *gochannel.GoChannel
	router *message.Router
}

// NewRouter creates a router; verbose routes watermill's own logging to zerolog.
func NewRouter(verbose bool) (*Router, error) {
	var logger watermill.LoggerAdapter = watermill.NopLogger{}
	if verbose {
		logger = NewZerologAdapter(log.Logger)
	}

	pubSub := gochannel.NewGoChannel(gochannel.Config{
		BlockPublishUntilSubscriberAck: true,
	}, logger)

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "could not create event router")
	}

	return &Router{
		pubSub: pubSub,
		router: router,
	}, nil
}

// Observer publishes every store mutation on TopicTranscript.
// Events published before Running is closed have no subscriber and are dropped.
func (r *Router) Observer() conversation.Observer {
	return NewTranscriptPublisher(r.pubSub, TopicTranscript).Observer()
}

// Handle registers f for transcript events. Handlers have to be added before Run.
func (r *Router) Handle(name string, f message.NoPublishHandlerFunc) {
	r.router.AddNoPublisherHandler(name, TopicTranscript, r.pubSub, f)
}

// Run blocks until ctx is canceled or the router is closed.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running is closed once every handler is subscribed.
func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

func (r *Router) Close() error {
	pubSubErr := r.pubSub.Close()
	if pubSubErr != nil {
		log.Error().Err(pubSubErr).Msg("could not close transcript channel")
	}

	if err := r.router.Close(); err != nil {
		log.Error().Err(err).Msg("could not close event router")
		return err
	}
	return pubSubErr
}
