package position

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// TypePosition is the only envelope type the bridge acts on.
const TypePosition = "position"

var ErrNotJSON = errors.New("message is not valid JSON")

// Envelope is the decoded form of one upstream pub/sub message.
type Envelope struct {
	Type      string
	Timestamp string

	data gjson.Result
}

// DecodeEnvelope validates and decodes a raw upstream message. The required
// fields are type (string), timestamp (string) and data; anything else in the
// message is ignored. A data field that is not an object is kept but treated
// as empty when the record is built.
func DecodeEnvelope(raw []byte) (*Envelope, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrNotJSON
	}

	typ := gjson.GetBytes(raw, "type")
	if typ.Type != gjson.String {
		return nil, fmt.Errorf("missing or non-string 'type' field")
	}
	ts := gjson.GetBytes(raw, "timestamp")
	if ts.Type != gjson.String {
		return nil, fmt.Errorf("missing or non-string 'timestamp' field")
	}
	data := gjson.GetBytes(raw, "data")
	if !data.Exists() {
		return nil, fmt.Errorf("missing 'data' field")
	}

	return &Envelope{
		Type:      typ.String(),
		Timestamp: ts.String(),
		data:      data,
	}, nil
}

// Record flattens the envelope's data object, plus the envelope timestamp,
// into a position record. Scalar values are coerced to their string form,
// matching the representation the store keeps in its hashes.
func (e *Envelope) Record() Record {
	rec := make(Record)
	if e.data.IsObject() {
		e.data.ForEach(func(key, value gjson.Result) bool {
			rec[key.String()] = value.String()
			return true
		})
	}
	rec["timestamp"] = e.Timestamp
	return rec
}
