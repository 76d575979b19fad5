package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"sevasetu/internal/profile"
	"sevasetu/internal/scheme"
	"sevasetu/pkg/platform/sentinel"
)

type RedisSessionStoreSuite struct {
	suite.Suite
	redis *miniredis.Miniredis
	store *RedisSessionStore
	ctx   context.Context
}

func (s *RedisSessionStoreSuite) SetupTest() {
	s.redis = miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: s.redis.Addr()})
	s.store = NewRedisSessionStore(client, 30*24*time.Hour)
	s.ctx = context.Background()
}

func TestRedisSessionStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisSessionStoreSuite))
}

func (s *RedisSessionStoreSuite) sampleState() State {
	p := profile.NewWithExpected([]string{"personal.age", "location.state"})
	p.Set("personal.age", scheme.NumberValue(64), 95)
	return State{
		SessionID:          "session-1",
		UserID:             "user-1",
		Language:           "hi",
		Phase:              PhaseInfoCollection,
		Profile:            p,
		Pending:            &PendingQuestion{Field: "location.state", Attempts: 1, MaxAttempts: DefaultMaxAttempts},
		Plan:               []string{"personal.age", "location.state"},
		ComprehensionLevel: 4,
		Confirmed:          map[string]bool{},
		SkippedFields:      []string{"family.members"},
		CreatedAt:          time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt:          time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC),
	}
}

func (s *RedisSessionStoreSuite) TestSaveAndLoad() {
	state := s.sampleState()
	s.Require().NoError(s.store.Save(s.ctx, state))

	loaded, err := s.store.Load(s.ctx, "session-1")
	s.Require().NoError(err)
	s.Equal(state.Phase, loaded.Phase)
	s.Equal(state.Plan, loaded.Plan)
	s.Equal(state.SkippedFields, loaded.SkippedFields)
	s.Require().NotNil(loaded.Pending)
	s.Equal(1, loaded.Pending.Attempts)

	v, certainty, ok := loaded.Profile.Get("personal.age")
	s.Require().True(ok)
	s.Equal(scheme.NumberValue(64), v)
	s.Equal(95, certainty)
	s.Equal(50, loaded.Profile.Completeness())
}

func (s *RedisSessionStoreSuite) TestSaveSetsRetentionTTL() {
	s.Require().NoError(s.store.Save(s.ctx, s.sampleState()))
	ttl := s.redis.TTL(sessionKeyPrefix + "session-1")
	s.Equal(30*24*time.Hour, ttl)
}

func (s *RedisSessionStoreSuite) TestLoadMissing() {
	_, err := s.store.Load(s.ctx, "missing")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisSessionStoreSuite) TestDelete() {
	s.Require().NoError(s.store.Save(s.ctx, s.sampleState()))
	s.Require().NoError(s.store.Delete(s.ctx, "session-1"))

	_, err := s.store.Load(s.ctx, "session-1")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	// Deleting again is not an error.
	s.Require().NoError(s.store.Delete(s.ctx, "session-1"))
}

func (s *RedisSessionStoreSuite) TestUnavailableBackend() {
	s.Require().NoError(s.store.Save(s.ctx, s.sampleState()))
	s.redis.Close()

	_, err := s.store.Load(s.ctx, "session-1")
	s.Require().ErrorIs(err, sentinel.ErrUnavailable)

	s.Require().ErrorIs(s.store.Save(s.ctx, s.sampleState()), sentinel.ErrUnavailable)
}
