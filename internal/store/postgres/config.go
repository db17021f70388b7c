package postgres

import (
	"context"
	"fmt"

	"github.com/vin-jex/queuectl/internal/store"
)

func (s *Store) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.connectionPool.QueryRow(ctx, `SELECT value FROM meta WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if isNoRows(err) {
			return "", fmt.Errorf("%w: config key %s", store.ErrNotFound, key)
		}
		return "", store.Unavailable("get config", err)
	}

	return value, nil
}

func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.connectionPool.Exec(ctx, `
		INSERT INTO meta (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)

	return store.Unavailable("set config", err)
}

func (s *Store) ListConfig(ctx context.Context) (map[string]string, error) {
	rows, err := s.connectionPool.Query(ctx, `SELECT key, value FROM meta ORDER BY key`)
	if err != nil {
		return nil, store.Unavailable("list config", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, store.Unavailable("scan config", err)
		}
		values[key] = value
	}

	return values, store.Unavailable("list config", rows.Err())
}
