package events

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/palaver/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// TopicTranscript carries one TranscriptEvent per store mutation.
const TopicTranscript = "transcript"

const sequenceNumberMetadataKey = "sequence_number"

// TranscriptEvent is the JSON payload published for each store mutation.
type TranscriptEvent struct {
	Kind     conversation.EventKind `json:"kind"`
	Version  int64                  `json:"version"`
	Length   int                    `json:"length"`
	Message  *conversation.Message  `json:"message,omitempty"`
	Messages []conversation.Message `json:"messages,omitempty"`
}

func NewTranscriptEvent(e conversation.Event) *TranscriptEvent {
	return &TranscriptEvent{
		Kind:     e.Kind,
		Version:  e.Version,
		Length:   e.Length,
		Message:  e.Message,
		Messages: e.Messages,
	}
}

func NewTranscriptEventFromJson(b []byte) (*TranscriptEvent, error) {
	var e TranscriptEvent
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, errors.Wrap(err, "could not decode transcript event")
	}
	switch e.Kind {
	case conversation.EventAppended, conversation.EventReplaced:
	default:
		return nil, errors.Errorf("unknown transcript event kind %q", e.Kind)
	}
	return &e, nil
}

// TranscriptPublisher turns store notifications into watermill messages.
// Each message carries a sequence number in the order the store produced them.
type TranscriptPublisher struct {
	publisher      message.Publisher
	topic          string
	sequenceNumber uint64
	mutex          sync.Mutex
}

func NewTranscriptPublisher(publisher message.Publisher, topic string) *TranscriptPublisher {
	return &TranscriptPublisher{
		publisher: publisher,
		topic:     topic,
	}
}

func (p *TranscriptPublisher) Publish(e conversation.Event) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	b, err := json.Marshal(NewTranscriptEvent(e))
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), b)
	msg.Metadata.Set(sequenceNumberMetadataKey, fmt.Sprintf("%d", p.sequenceNumber))
	p.sequenceNumber++

	return p.publisher.Publish(p.topic, msg)
}

// Observer adapts the publisher to a conversation.Observer. Publish failures are logged,
// the store itself never fails.
func (p *TranscriptPublisher) Observer() conversation.Observer {
	return func(e conversation.Event) {
		if err := p.Publish(e); err != nil {
			log.Warn().Err(err).Str("topic", p.topic).Msg("failed to publish transcript event")
		}
	}
}
