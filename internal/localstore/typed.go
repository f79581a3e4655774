package localstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// GetAs reads one record from table into a T.
func GetAs[T any](ctx context.Context, s Store, table, key string) (T, error) {
	var v T
	err := s.Get(ctx, table, key, &v)
	return v, err
}

// List returns every record in table, in insertion order.
func List[T any](ctx context.Context, s Store, table string) ([]T, error) {
	raws, err := s.GetAll(ctx, table)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](table, raws)
}

// ListByIndex returns the records in table whose index matches value, in insertion order.
func ListByIndex[T any](ctx context.Context, s Store, table, index string, value any) ([]T, error) {
	raws, err := s.GetAllByIndex(ctx, table, index, value)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](table, raws)
}

func decodeAll[T any](table string, raws []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", table, err)
		}
		out = append(out, v)
	}
	return out, nil
}
