package position

import "time"

// DeviceIDField is the hash field joining a record to viewer filters.
const DeviceIDField = "gpsPseudoIP"

// Record is one device's latest known telemetry snapshot, in the flat
// string-field form it has both in the store's hashes and on the wire.
// Records are replaced wholesale per update, never mutated in place.
type Record map[string]string

// DeviceID returns the pseudo-IP identifying the originating device.
// Empty when the record carries no device field.
func (r Record) DeviceID() string {
	return r[DeviceIDField]
}

// Timestamp parses the record's last-update time.
func (r Record) Timestamp() (time.Time, error) {
	return time.Parse(time.RFC3339, r["timestamp"])
}
