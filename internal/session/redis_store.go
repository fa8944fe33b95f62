package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RedisStore keeps each session as JSON under its own key; every Put renews
// the TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisStore {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("clinic.internal.session")
	}
	return &RedisStore{client: client, ttl: ttl, tracer: tracer}
}

func (s *RedisStore) Get(ctx context.Context, patientID string) (State, bool, error) {
	ctx, span := s.tracer.Start(ctx, "session.get")
	defer span.End()

	data, err := s.client.Get(ctx, sessionKey(patientID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			span.SetAttributes(attribute.Bool("session.found", false))
			return State{}, false, nil
		}
		span.RecordError(err)
		return State{}, false, fmt.Errorf("session: load: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		span.RecordError(err)
		return State{}, false, fmt.Errorf("session: decode: %w", err)
	}
	span.SetAttributes(attribute.Bool("session.found", true), attribute.String("session.step", string(st.Step)))
	return st, true, nil
}

func (s *RedisStore) Put(ctx context.Context, patientID string, st State) error {
	ctx, span := s.tracer.Start(ctx, "session.put")
	defer span.End()

	data, err := json.Marshal(st)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(patientID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: persist: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, patientID string) error {
	ctx, span := s.tracer.Start(ctx, "session.delete")
	defer span.End()

	if err := s.client.Del(ctx, sessionKey(patientID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

func sessionKey(patientID string) string {
	return fmt.Sprintf("session:%s", patientID)
}
