package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Store guarda um log de janela deslizante por chave.
type Store interface {
	// Hit registra uma tentativa em now e devolve quantas existem dentro da janela,
	// incluindo esta, e o identificador que permite desfazê-la.
	Hit(ctx context.Context, key string, now time.Time, window time.Duration) (int, string, error)
	// Undo remove uma tentativa registrada por Hit.
	Undo(ctx context.Context, key, member string) error
}

// RedisStore usa um sorted set por chave, com score = instante em milissegundos.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Hit(ctx context.Context, key string, now time.Time, window time.Duration) (int, string, error) {
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()
	cutoff := strconv.FormatInt(now.Add(-window).UnixMilli(), 10)

	var card *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, key, "-inf", cutoff)
		p.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: member})
		card = p.ZCard(ctx, key)
		p.PExpire(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, "", fmt.Errorf("ratelimit redis: %w", err)
	}
	return int(card.Val()), member, nil
}

func (s *RedisStore) Undo(ctx context.Context, key, member string) error {
	if err := s.client.ZRem(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("ratelimit redis: %w", err)
	}
	return nil
}

type hit struct {
	at     time.Time
	member string
}

type bucket struct {
	hits   []hit
	window time.Duration
}

// MemoryStore é usado quando não há Redis configurado; vale só para um processo.
// Chaves sem tentativas dentro da janela são removidas numa varredura feita
// durante Hit, no máximo uma vez a cada sweepEvery.
type MemoryStore struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	seq        uint64
	lastSweep  time.Time
	sweepEvery time.Duration
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]*bucket), sweepEvery: time.Minute}
}

func (s *MemoryStore) Hit(_ context.Context, key string, now time.Time, window time.Duration) (int, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(now)

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{}
		s.buckets[key] = b
	}
	b.window = window
	cutoff := now.Add(-window)
	kept := b.hits[:0]
	for _, h := range b.hits {
		if h.at.After(cutoff) {
			kept = append(kept, h)
		}
	}
	s.seq++
	member := strconv.FormatUint(s.seq, 10)
	b.hits = append(kept, hit{at: now, member: member})
	return len(b.hits), member, nil
}

// sweep apaga as chaves cuja tentativa mais recente já saiu da janela.
func (s *MemoryStore) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < s.sweepEvery {
		return
	}
	s.lastSweep = now
	for key, b := range s.buckets {
		if len(b.hits) == 0 || !b.hits[len(b.hits)-1].at.After(now.Add(-b.window)) {
			delete(s.buckets, key)
		}
	}
}

// Len devolve quantas chaves estão em memória.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

func (s *MemoryStore) Undo(_ context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		return nil
	}
	for i, h := range b.hits {
		if h.member == member {
			b.hits = append(b.hits[:i], b.hits[i+1:]...)
			break
		}
	}
	if len(b.hits) == 0 {
		delete(s.buckets, key)
	}
	return nil
}
