package services

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/icupa/giomessaging/model"
	"github.com/icupa/giomessaging/shared"
)

// ErrVersionConflict means another handler stored the same record between
// our read and write. Callers re-read and replay their mutation.
var ErrVersionConflict = errors.New("session store: version conflict")

// DedupWindow bounds how long an exact webhook redelivery is suppressed.
const DedupWindow = 5 * time.Minute

// SessionStore replaces the legacy global maps. Writes are guarded by a
// per-key compare-and-swap on the record's Version field.
type SessionStore interface {
	GetContext(ctx context.Context, phone string) (*model.UserContext, error)
	SaveContext(ctx context.Context, uc *model.UserContext) error
	DeleteContext(ctx context.Context, phone string) error
	ClearContexts(ctx context.Context) error

	GetSession(ctx context.Context, gameID string) (*model.GameSession, error)
	SaveSession(ctx context.Context, session *model.GameSession) error
	DeleteSession(ctx context.Context, gameID string) error

	// MarkProcessed returns true the first time key is seen inside ttl.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type SessionService struct {
	appContext.DefaultService

	redisSvc *RedisService
	store    SessionStore
}

const SESSION_SVC = "session_svc"

func (svc SessionService) Id() string {
	return SESSION_SVC
}

func (svc *SessionService) Start() error {
	if os.Getenv("SESSION_BACKEND") == "memory" {
		svc.store = NewMemorySessionStore()
		log.Warn().Msg("Session store running in-memory; state is lost on restart")
		return nil
	}

	svc.redisSvc = svc.Service(REDIS_SVC).(*RedisService)
	svc.store = &redisSessionStore{redis: svc.redisSvc, ttl: 24 * time.Hour}
	return nil
}

func (svc *SessionService) Store() SessionStore {
	return svc.store
}

// --- Redis implementation ---

type redisSessionStore struct {
	redis *RedisService
	ttl   time.Duration
}

func contextKey(phone string) string  { return "wa:context:" + phone }
func sessionKey(gameID string) string { return "wa:session:" + gameID }

func (s *redisSessionStore) GetContext(ctx context.Context, phone string) (*model.UserContext, error) {
	raw, err := s.redis.Get(ctx, contextKey(phone))
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var uc model.UserContext
	if err := shared.JSONAPI.Unmarshal([]byte(raw), &uc); err != nil {
		return nil, err
	}
	return &uc, nil
}

func (s *redisSessionStore) SaveContext(ctx context.Context, uc *model.UserContext) error {
	return s.saveCAS(ctx, contextKey(uc.Phone), &uc.Version, uc)
}

func (s *redisSessionStore) DeleteContext(ctx context.Context, phone string) error {
	return s.redis.Delete(ctx, contextKey(phone))
}

func (s *redisSessionStore) ClearContexts(ctx context.Context) error {
	client := s.redis.GetClient()
	iter := client.Scan(ctx, 0, "wa:context:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (s *redisSessionStore) GetSession(ctx context.Context, gameID string) (*model.GameSession, error) {
	raw, err := s.redis.Get(ctx, sessionKey(gameID))
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var session model.GameSession
	if err := shared.JSONAPI.Unmarshal([]byte(raw), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *redisSessionStore) SaveSession(ctx context.Context, session *model.GameSession) error {
	return s.saveCAS(ctx, sessionKey(session.GameID), &session.Version, session)
}

func (s *redisSessionStore) DeleteSession(ctx context.Context, gameID string) error {
	return s.redis.Delete(ctx, sessionKey(gameID))
}

func (s *redisSessionStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.redis.SetNX(ctx, "wa:processed:"+key, 1, ttl)
}

// saveCAS watches the key, rejects the write if the stored version moved,
// then bumps the version and writes inside a transaction.
func (s *redisSessionStore) saveCAS(ctx context.Context, key string, version *int64, value interface{}) error {
	client := s.redis.GetClient()

	return client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		if err != redis.Nil {
			var stored struct {
				Version int64 `json:"version"`
			}
			if err := shared.JSONAPI.Unmarshal([]byte(raw), &stored); err == nil &&
				stored.Version != *version {
				return ErrVersionConflict
			}
		}

		*version++
		data, err := shared.JSONAPI.Marshal(value)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}, key)
}

// --- In-memory implementation (dev mode and tests) ---

type MemorySessionStore struct {
	mu        sync.Mutex
	contexts  map[string]*model.UserContext
	sessions  map[string]*model.GameSession
	processed map[string]time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		contexts:  map[string]*model.UserContext{},
		sessions:  map[string]*model.GameSession{},
		processed: map[string]time.Time{},
	}
}

func (s *MemorySessionStore) GetContext(_ context.Context, phone string) (*model.UserContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uc, ok := s.contexts[phone]
	if !ok {
		return nil, nil
	}
	copied := *uc
	return &copied, nil
}

func (s *MemorySessionStore) SaveContext(_ context.Context, uc *model.UserContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.contexts[uc.Phone]; ok && existing.Version != uc.Version {
		return ErrVersionConflict
	}
	uc.Version++
	copied := *uc
	s.contexts[uc.Phone] = &copied
	return nil
}

func (s *MemorySessionStore) DeleteContext(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, phone)
	return nil
}

func (s *MemorySessionStore) ClearContexts(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts = map[string]*model.UserContext{}
	return nil
}

func (s *MemorySessionStore) GetSession(_ context.Context, gameID string) (*model.GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[gameID]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (s *MemorySessionStore) SaveSession(_ context.Context, session *model.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[session.GameID]; ok && existing.Version != session.Version {
		return ErrVersionConflict
	}
	session.Version++
	copied := *session
	s.sessions[session.GameID] = &copied
	return nil
}

func (s *MemorySessionStore) DeleteSession(_ context.Context, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, gameID)
	return nil
}

func (s *MemorySessionStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if expires, ok := s.processed[key]; ok && now.Before(expires) {
		return false, nil
	}
	s.processed[key] = now.Add(ttl)
	return true, nil
}
