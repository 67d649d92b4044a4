package notify

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"clinicore/config"
)

// Bridge mirrors hub events through a Redis channel so every instance
// sees every event. Each message carries the origin instance id; the
// subscriber drops its own messages to avoid echo.
type Bridge struct {
	rdb     *redis.Client
	channel string
	origin  string
	deliver func(name, data string)

	cancel context.CancelFunc
}

type bridgeMessage struct {
	Origin string `json:"origin"`
	Name   string `json:"name"`
	Data   string `json:"data"`
}

// NewBridge connects to Redis and starts the subscription loop. A dead
// Redis is reported, not fatal: the caller runs without fanout.
func NewBridge(cfg *config.RedisConfig) (*Bridge, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithCancel(context.Background())
	if err := rdb.Ping(ctx).Err(); err != nil {
		cancel()
		rdb.Close()
		return nil, err
	}
	b := &Bridge{
		rdb:     rdb,
		channel: cfg.Channel,
		origin:  uuid.NewString(),
		cancel:  cancel,
	}
	go b.subscribe(ctx)
	return b, nil
}

func (b *Bridge) publish(name, data string) {
	payload, err := json.Marshal(bridgeMessage{Origin: b.origin, Name: name, Data: data})
	if err != nil {
		return
	}
	if err := b.rdb.Publish(context.Background(), b.channel, payload).Err(); err != nil {
		log.Printf("notify: redis publish: %v", err)
	}
}

func (b *Bridge) subscribe(ctx context.Context) {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()
	for msg := range sub.Channel() {
		var m bridgeMessage
		if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
			log.Printf("notify: bad bridge message: %v", err)
			continue
		}
		if m.Origin == b.origin {
			continue
		}
		if b.deliver != nil {
			b.deliver(m.Name, m.Data)
		}
	}
}

func (b *Bridge) Close() {
	b.cancel()
	b.rdb.Close()
}
