package websocket

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// bridgeChannel 是跨行程事件使用的 Redis 頻道
const bridgeChannel = "realtime:events"

// bridgeEnvelope 是經過 Redis 的事件封包
type bridgeEnvelope struct {
	UserID  string          `json:"userId"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Bridge 透過 Redis pub/sub 把事件廣播到所有行程，
// 讓多行程部署時每個行程都能送達自己手上的連線
type Bridge struct {
	rdb *redis.Client
}

// NewBridge 建立 Redis 橋接器並確認連線
func NewBridge(addr string) (*Bridge, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &Bridge{rdb: rdb}, nil
}

// Publish 將事件發佈到 Redis 頻道
func (b *Bridge) Publish(userID primitive.ObjectID, event string, payload json.RawMessage) error {
	envelope, err := json.Marshal(bridgeEnvelope{
		UserID:  userID.Hex(),
		Event:   event,
		Payload: payload,
	})
	if err != nil {
		return err
	}
	return b.rdb.Publish(context.Background(), bridgeChannel, envelope).Err()
}

// Run 訂閱 Redis 頻道並把收到的事件交給本地 Hub，直到 ctx 結束
func (b *Bridge) Run(ctx context.Context, hub *Hub) {
	pubsub := b.rdb.Subscribe(ctx, bridgeChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var envelope bridgeEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				log.Printf("Error unmarshalling bridge envelope: %v", err)
				continue
			}
			userID, err := primitive.ObjectIDFromHex(envelope.UserID)
			if err != nil {
				log.Printf("Invalid user ID in bridge envelope: %v", err)
				continue
			}
			hub.deliverLocal(userID, Event{Type: envelope.Event, Data: envelope.Payload})
		}
	}
}

// Close 關閉 Redis 連線
func (b *Bridge) Close() error {
	return b.rdb.Close()
}
