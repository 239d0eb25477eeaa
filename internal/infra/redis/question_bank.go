package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/infra/memory"
)

const poolKey = "duel:questions"

// QuestionBank caches the question pool as one JSON value in Redis and
// falls back to the loader on a miss. Draws are uniform with replacement.
type QuestionBank struct {
	client *redis.Client
	loader memory.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionBank(client *redis.Client, loader memory.QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *QuestionBank) Draw(ctx context.Context) (domain.Question, error) {
	pool, err := b.pool(ctx)
	if err != nil {
		return domain.Question{}, err
	}
	if len(pool) == 0 {
		return domain.Question{}, domain.ErrNoQuestions
	}

	b.mu.Lock()
	idx := b.rnd.Intn(len(pool))
	b.mu.Unlock()
	return pool[idx], nil
}

func (b *QuestionBank) pool(ctx context.Context) ([]domain.Question, error) {
	raw, err := b.client.Get(ctx, poolKey).Bytes()
	if err == nil {
		return decodePool(raw)
	}

	result, err, _ := b.sf.Do(poolKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		raw, err := b.client.Get(ctx, poolKey).Bytes()
		if err == nil {
			pool, err := decodePool(raw)
			if err != nil {
				return nil, err
			}
			return pool, nil
		}

		pool, err := b.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		encoded, err := json.Marshal(pool)
		if err != nil {
			return nil, fmt.Errorf("encode question pool: %w", err)
		}
		// best-effort cache fill
		_ = b.client.Set(ctx, poolKey, encoded, b.ttlWithJitter()).Err()
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

func decodePool(raw []byte) ([]domain.Question, error) {
	var pool []domain.Question
	if err := json.Unmarshal(raw, &pool); err != nil {
		return nil, fmt.Errorf("decode question pool: %w", err)
	}
	return pool, nil
}
