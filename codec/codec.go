// Package codec centralizes JSON encoding for widget snapshots and
// inspector dumps, so the serializer can be swapped in one place.
package codec

import (
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

func Decode[T any](bz []byte) (T, error) {
	v := new(T)
	err := json.Unmarshal(bz, v)
	if err != nil {
		return *v, eris.Wrap(err, "")
	}
	return *v, nil
}

func Encode(v any) ([]byte, error) {
	bz, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "")
	}
	return bz, nil
}

// EncodeIndent is Encode with human-readable indentation, used by the
// inspector's dump endpoints.
func EncodeIndent(v any) ([]byte, error) {
	bz, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "")
	}
	return bz, nil
}
