// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

/*
breaker.go - Circuit breaker wrapper

Wraps the platform client with sony/gobreaker so a struggling school
server is not hammered by every scheduled cycle. The breaker opens after
a 60% failure rate over at least 6 requests and probes again after two
minutes.

401, 429 and data-shaped failures do not count against the breaker: they
say nothing about the server's health, only about our credentials or
payloads.
*/

package client

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/satchelhq/satchel/internal/logging"
	"github.com/satchelhq/satchel/internal/metrics"
	"github.com/satchelhq/satchel/internal/models"
)

// BreakerClient wraps Interface with circuit breaker protection.
type BreakerClient struct {
	inner Interface
	cb    *gobreaker.CircuitBreaker[any]
	name  string
}

// Ensure BreakerClient implements Interface.
var _ Interface = (*BreakerClient)(nil)

// NewBreakerClient wraps an existing client with a circuit breaker.
func NewBreakerClient(inner Interface) *BreakerClient {
	const cbName = "platform-api"

	metrics.BreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 6 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			switch ClassifyKind(err) {
			case KindTokenExpired, KindRateLimit, KindAuthentication, KindData, KindAPI:
				// Server answered; only transport-level trouble trips the breaker.
				return true
			default:
				return false
			}
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state transition")
			metrics.BreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.BreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &BreakerClient{inner: inner, cb: cb, name: cbName}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// execute runs fn through the breaker, mapping an open circuit to a
// connection-kind error so the coordinator's classification stays
// uniform.
func (b *BreakerClient) execute(op string, fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, newError(KindConnection, op, "circuit breaker open", err)
		}
		return nil, err
	}
	return result, nil
}

// FetchAPIVersion delegates through the breaker.
func (b *BreakerClient) FetchAPIVersion(ctx context.Context) (models.Version, error) {
	result, err := b.execute("fetch_api_version", func() (any, error) {
		return b.inner.FetchAPIVersion(ctx)
	})
	if err != nil {
		return models.Version{}, err
	}
	return result.(models.Version), nil
}

// VerifyCredentials delegates through the breaker.
func (b *BreakerClient) VerifyCredentials(ctx context.Context) (bool, error) {
	result, err := b.execute("verify_credentials", func() (any, error) {
		return b.inner.VerifyCredentials(ctx)
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

// FetchUserIdentity delegates through the breaker.
func (b *BreakerClient) FetchUserIdentity(ctx context.Context) (models.UserIdentity, error) {
	result, err := b.execute("fetch_user_identity", func() (any, error) {
		return b.inner.FetchUserIdentity(ctx)
	})
	if err != nil {
		return models.UserIdentity{}, err
	}
	return result.(models.UserIdentity), nil
}

// FetchChildren delegates through the breaker.
func (b *BreakerClient) FetchChildren(ctx context.Context) ([]models.ChildProfile, error) {
	result, err := b.execute("fetch_children", func() (any, error) {
		return b.inner.FetchChildren(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.ChildProfile), nil
}

// FetchEvents delegates through the breaker.
func (b *BreakerClient) FetchEvents(ctx context.Context, start, end time.Time, childGUID string) ([]models.RawEvent, error) {
	result, err := b.execute("fetch_events", func() (any, error) {
		return b.inner.FetchEvents(ctx, start, end, childGUID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.RawEvent), nil
}

// FetchTasks delegates through the breaker.
func (b *BreakerClient) FetchTasks(ctx context.Context, filters models.TaskFilters) ([]models.RawTask, error) {
	result, err := b.execute("fetch_tasks", func() (any, error) {
		return b.inner.FetchTasks(ctx, filters)
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.RawTask), nil
}

// FetchGroups delegates through the breaker.
func (b *BreakerClient) FetchGroups(ctx context.Context, userGUID string) ([]models.Group, error) {
	result, err := b.execute("fetch_groups", func() (any, error) {
		return b.inner.FetchGroups(ctx, userGUID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.Group), nil
}
