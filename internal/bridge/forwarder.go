package bridge

import (
	"context"
	"sync/atomic"

	"sensorhub/internal/clients"
	"sensorhub/internal/logger"
)

// Snapshot is a point-in-time copy of the forwarder counters.
type Snapshot struct {
	Accepted int64
	Dropped  int64
	Failed   int64
}

// Forwarder decodes each message and submits it to the API.
type Forwarder struct {
	decoder Decoder
	client  clients.ReadingsClient
	log     *logger.Logger

	accepted atomic.Int64
	dropped  atomic.Int64
	failed   atomic.Int64
}

func NewForwarder(decoder Decoder, client clients.ReadingsClient, log *logger.Logger) *Forwarder {
	return &Forwarder{
		decoder: decoder,
		client:  client,
		log:     log.WithComponent("forwarder"),
	}
}

// Handle processes one message. Undecodable messages are counted as dropped and
// API failures as failed; neither is returned to the caller.
func (f *Forwarder) Handle(ctx context.Context, topic string, payload []byte) {
	ch, value, err := f.decoder.Decode(topic, payload)
	if err != nil {
		f.dropped.Add(1)
		f.log.Logger.Warn().Err(err).Str("topic", topic).Msg("dropping message")
		return
	}

	id, err := f.client.Submit(ctx, ch, value)
	if err != nil {
		f.failed.Add(1)
		f.log.Logger.Error().Err(err).Str("topic", topic).Int("channel", int(ch)).Msg("failed to submit reading")
		return
	}

	f.accepted.Add(1)
	f.log.Logger.Debug().Uint("id", id).Int("channel", int(ch)).Float64("value", value).Msg("reading submitted")
}

func (f *Forwarder) Stats() Snapshot {
	return Snapshot{
		Accepted: f.accepted.Load(),
		Dropped:  f.dropped.Load(),
		Failed:   f.failed.Load(),
	}
}
