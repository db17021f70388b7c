package queue

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/vin-jex/queuectl/internal/backoff"
	"github.com/vin-jex/queuectl/internal/store"
)

// Settings is the typed view of the queue tunables kept in the meta table.
type Settings struct {
	BackoffBase float64
	BackoffMax  time.Duration
	MaxRetries  int
	JobTimeout  int
}

func (s Settings) Policy() backoff.Policy {
	return backoff.Policy{Base: s.BackoffBase, Max: s.BackoffMax}
}

// validateSetting checks a value for one of the known keys.
func validateSetting(key, value string) error {
	switch key {
	case store.KeyBackoffBase:
		base, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(base) || math.IsInf(base, 0) {
			return invalid(key, "%q is not a number", value)
		}
		if base < 1 {
			return invalid(key, "must be at least 1")
		}
	case store.KeyBackoffMax, store.KeyMaxRetries:
		n, err := strconv.Atoi(value)
		if err != nil {
			return invalid(key, "%q is not an integer", value)
		}
		if n < 0 {
			return invalid(key, "must not be negative")
		}
	case store.KeyJobTimeout:
		n, err := strconv.Atoi(value)
		if err != nil {
			return invalid(key, "%q is not an integer", value)
		}
		if n <= 0 {
			return invalid(key, "must be positive")
		}
	default:
		return invalid("key", "unknown configuration key %q", key)
	}

	return nil
}

func parseSettings(values map[string]string) (Settings, error) {
	merged := store.DefaultConfig()
	for key := range merged {
		if value, ok := values[key]; ok {
			merged[key] = value
		}
		if err := validateSetting(key, merged[key]); err != nil {
			return Settings{}, err
		}
	}

	base, _ := strconv.ParseFloat(merged[store.KeyBackoffBase], 64)
	maxDelay, _ := strconv.Atoi(merged[store.KeyBackoffMax])
	maxRetries, _ := strconv.Atoi(merged[store.KeyMaxRetries])
	timeout, _ := strconv.Atoi(merged[store.KeyJobTimeout])

	return Settings{
		BackoffBase: base,
		BackoffMax:  time.Duration(maxDelay) * time.Second,
		MaxRetries:  maxRetries,
		JobTimeout:  timeout,
	}, nil
}

// Settings reads the current tunables. Missing keys fall back to defaults.
func (s *Service) Settings(ctx context.Context) (Settings, error) {
	values, err := s.store.ListConfig(ctx)
	if err != nil {
		return Settings{}, err
	}

	return parseSettings(values)
}

func (s *Service) GetConfig(ctx context.Context, key string) (string, error) {
	return s.store.GetConfig(ctx, key)
}

// SetConfig stores value under one of the known keys after validating it.
func (s *Service) SetConfig(ctx context.Context, key, value string) error {
	if err := validateSetting(key, value); err != nil {
		return err
	}

	if err := s.store.SetConfig(ctx, key, value); err != nil {
		return err
	}

	s.logger.Info("config updated", "key", key, "value", value)
	return nil
}

func (s *Service) ListConfig(ctx context.Context) (map[string]string, error) {
	return s.store.ListConfig(ctx)
}
