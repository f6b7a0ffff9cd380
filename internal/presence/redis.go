package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"collab-backend/internal/model"
)

// 방별 온라인 스냅샷 캐시. REDIS_ENABLED가 꺼져 있으면 Cache는 nil이고
// 모든 메서드는 조용히 no-op이다. 신뢰의 원본은 어디까지나 DB presence 행이다.

const presenceTTL = 60 * time.Second

// Entry Redis에 저장되는 방별 접속 엔트리
type Entry struct {
	UserID       string  `json:"user_id"`
	Username     string  `json:"username"`
	Avatar       *string `json:"avatar,omitempty"`
	LastSeen     int64   `json:"last_seen"`
	IsTyping     bool    `json:"is_typing"`
	IsFocused    bool    `json:"is_focused"`
	LastActivity *string `json:"last_activity,omitempty"`
}

// Cache 방별 presence 캐시
type Cache struct {
	client *redis.Client
}

// NewCache Redis 연결 후 Cache 생성. 연결 실패는 에러로 반환한다.
func NewCache(addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log.Printf("✅ [Redis] Connected to %s", addr)
	return &Cache{client: client}, nil
}

func roomKey(roomID string) string {
	return fmt.Sprintf("presence:room:%s", roomID)
}

// Set 방 해시에 사용자 엔트리를 기록한다.
func (c *Cache) Set(ctx context.Context, roomID string, p *model.UserPresence) {
	if c == nil {
		return
	}
	entry := Entry{
		UserID:       p.UserID,
		Username:     p.Username,
		Avatar:       p.Avatar,
		LastSeen:     p.LastSeen.Unix(),
		IsTyping:     p.IsTyping,
		IsFocused:    p.IsFocused,
		LastActivity: p.LastActivity,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("⚠️ [Redis] failed to marshal presence entry: %v", err)
		return
	}
	key := roomKey(roomID)
	if err := c.client.HSet(ctx, key, p.UserID, data).Err(); err != nil {
		log.Printf("⚠️ [Redis] failed to cache presence: %v", err)
		return
	}
	c.client.Expire(ctx, key, presenceTTL)
}

// Remove 방 해시에서 사용자 엔트리를 지운다.
func (c *Cache) Remove(ctx context.Context, roomID, userID string) {
	if c == nil {
		return
	}
	if err := c.client.HDel(ctx, roomKey(roomID), userID).Err(); err != nil {
		log.Printf("⚠️ [Redis] failed to remove presence: %v", err)
	}
}

// GetRoom 방의 캐시된 엔트리 전체를 반환한다. 캐시 미스나 에러면 nil.
func (c *Cache) GetRoom(ctx context.Context, roomID string) []Entry {
	if c == nil {
		return nil
	}
	values, err := c.client.HGetAll(ctx, roomKey(roomID)).Result()
	if err != nil || len(values) == 0 {
		return nil
	}

	entries := make([]Entry, 0, len(values))
	for _, raw := range values {
		var entry Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// Clear 방 해시 전체 삭제 (방 삭제 시)
func (c *Cache) Clear(ctx context.Context, roomID string) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, roomKey(roomID)).Err(); err != nil {
		log.Printf("⚠️ [Redis] failed to clear room presence: %v", err)
	}
}

// Close 연결 종료
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
