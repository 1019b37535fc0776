package storage

import (
	"encoding/json"

	"github.com/golang/snappy"
)

// encode runs the write-side pipeline: JSON marshal, snappy compress,
// AES-GCM seal. The read side applies the inverse stages in reverse order.
func encode(enc *Encryptor, value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	compressed := snappy.Encode(nil, raw)
	return enc.Seal(compressed)
}

// decode runs the read-side pipeline into out. Every stage can fail on
// corrupt input; callers treat any failure here as "data absent".
func decode(enc *Encryptor, blob []byte, out any) error {
	compressed, err := enc.Open(blob)
	if err != nil {
		return err
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
