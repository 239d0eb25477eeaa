package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-duel-service/internal/domain"
)

// QuestionLoader fetches the question pool from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionBank caches the pool with a TTL to avoid repeated store hits and
// draws uniformly at random with replacement. Repeats within a match are an
// accepted property of the small pool.
type QuestionBank struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu        sync.Mutex
	rnd       *rand.Rand
	pool      []domain.Question
	expiresAt time.Time
}

func NewQuestionBank(loader QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *QuestionBank) Draw(ctx context.Context) (domain.Question, error) {
	pool, err := b.currentPool(ctx)
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

func (b *QuestionBank) currentPool(ctx context.Context) ([]domain.Question, error) {
	now := b.clock()

	b.mu.Lock()
	if b.pool != nil && b.expiresAt.After(now) {
		pool := b.pool
		b.mu.Unlock()
		return pool, nil
	}
	b.mu.Unlock()

	result, err, _ := b.sf.Do("pool", func() (interface{}, error) {
		now := b.clock()
		b.mu.Lock()
		if b.pool != nil && b.expiresAt.After(now) {
			pool := b.pool
			b.mu.Unlock()
			return pool, nil
		}
		b.mu.Unlock()

		pool, err := b.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		b.pool = pool
		b.expiresAt = now.Add(b.ttlWithJitter())
		b.mu.Unlock()
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
	// up to 10% jitter to spread refreshes
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader serves a fixed pool (demos and tests).
type StaticQuestionLoader struct {
	questions []domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	if len(l.questions) == 0 {
		return nil, domain.ErrNoQuestions
	}
	return l.questions, nil
}

// DefaultQuestions is the built-in web-development pool used when no
// database is configured.
func DefaultQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:            1,
			Text:          "Which HTML5 tag is used to define navigation links?",
			Options:       []string{"<nav>", "<navigation>", "<menu>", "<links>"},
			CorrectOption: 0,
		},
		{
			ID:            2,
			Text:          "Which CSS property is used to set margins around an element?",
			Options:       []string{"spacing", "margin", "padding", "border"},
			CorrectOption: 1,
		},
		{
			ID:            3,
			Text:          "Which JavaScript method is used to add an element to the end of an array?",
			Options:       []string{"push()", "add()", "append()", "insert()"},
			CorrectOption: 0,
		},
		{
			ID:            4,
			Text:          "In responsive web design, which CSS property is used to set the viewport?",
			Options:       []string{"@viewport", "@media", "@responsive", "@screen"},
			CorrectOption: 1,
		},
		{
			ID:            5,
			Text:          "In HTML, which attribute is used to specify the URL where a form should be submitted?",
			Options:       []string{"url", "action", "link", "submit"},
			CorrectOption: 1,
		},
	}
}
