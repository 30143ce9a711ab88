package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/parley-im/parley/pkg/constant"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// relayEnvelope is the cross-instance event bus message: one pre-encoded
// frame plus enough routing data for the receiving instance
type relayEnvelope struct {
	InstanceId     string          `json:"instance_id"`
	ConversationId string          `json:"conversation_id"`
	Frame          json.RawMessage `json:"frame"`
	ExcludeConnId  string          `json:"exclude_conn_id,omitempty"`
}

// Relay bridges conversation broadcasts across gateway instances over a
// single redis pub/sub channel. Every instance publishes its broadcasts
// and replays the ones other instances published into its local rooms.
type Relay struct {
	rdb        *redis.Client
	channel    string
	instanceId string
	server     *WsServer
}

// NewRelay creates a new Relay
func NewRelay(rdb *redis.Client, instanceId string, server *WsServer) *Relay {
	return &Relay{
		rdb:        rdb,
		channel:    constant.RedisKeyEventBus(),
		instanceId: instanceId,
		server:     server,
	}
}

// Publish sends one broadcast frame to the event bus
func (r *Relay) Publish(ctx context.Context, conversationId string, frame []byte, excludeConnId string) {
	env := &relayEnvelope{
		InstanceId:     r.instanceId,
		ConversationId: conversationId,
		Frame:          frame,
		ExcludeConnId:  excludeConnId,
	}
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Msg("marshal relay envelope failed")
		return
	}
	if err := r.rdb.Publish(ctx, r.channel, data).Err(); err != nil {
		log.Warn().Err(err).Str("conversation_id", conversationId).Msg("relay publish failed")
	}
}

// Run subscribes to the event bus and replays foreign broadcasts locally.
// It reconnects with backoff until the context is cancelled.
func (r *Relay) Run(ctx context.Context) {
	for {
		if err := r.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Msg("relay subscription lost, reconnecting")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (r *Relay) consume(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return ErrConnClosed
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *Relay) handle(payload string) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		log.Warn().Err(err).Msg("bad relay envelope")
		return
	}

	// Skip our own publishes; local delivery already happened
	if env.InstanceId == r.instanceId {
		return
	}

	r.server.enqueueLocal(&PushTask{
		ConversationId: env.ConversationId,
		Data:           env.Frame,
		ExcludeConnId:  env.ExcludeConnId,
	})
}
