package usecase

import (
	"encoding/json"
	"fmt"

	"github.com/rbroggi/souqly/internal/core/model"
)

// decodeList decodes a persisted JSON array. A JSON null decodes into an empty list.
func decodeList[T any](raw []byte) ([]T, error) {
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedData, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// encodeList encodes items as a JSON array, never as null.
func encodeList[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}

func clone[T any](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	return out
}
