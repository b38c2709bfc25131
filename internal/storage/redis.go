package storage

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// presenceChannel 是跨節點在線狀態廣播使用的 Redis 頻道
const presenceChannel = "telecare:presence"

// RedisBus 透過 Redis pub/sub 在多個伺服器節點之間轉發在線狀態更新，
// 單節點部署時可以完全不啟用
type RedisBus struct {
	rdb *redis.Client
}

func NewRedisBus(addr, password string, db int) (*RedisBus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// 啟動時確認連線可用，避免靜默退化成單節點模式
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return &RedisBus{rdb: rdb}, nil
}

// Publish 將一筆在線狀態更新發佈給其他節點
func (b *RedisBus) Publish(ctx context.Context, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, presenceChannel, data).Err()
}

// Subscribe 持續接收其他節點的在線狀態更新並交給 handler 處理，
// 解碼失敗的訊息記錄後跳過
func (b *RedisBus) Subscribe(ctx context.Context, handler func(data []byte)) {
	pubsub := b.rdb.Subscribe(ctx, presenceChannel)

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (b *RedisBus) Close() error {
	if err := b.rdb.Close(); err != nil {
		log.Printf("redis close error: %v", err)
		return err
	}
	return nil
}
