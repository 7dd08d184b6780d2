package record

import (
	"errors"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
)

// ErrTimestamp is returned when a date-time field holds something that is not
// a parsable timestamp string
var ErrTimestamp = errors.New("invalid timestamp")

// CoerceDates replaces every present, non-null date field of a flattened
// record with its epoch seconds. Timestamps without a zone are read as UTC.
func CoerceDates(flat map[string]any, dateFields []string) error {
	for _, name := range dateFields {
		v, ok := flat[name]
		if !ok || v == nil {
			continue
		}

		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%w: field %q holds %T, expected a string", ErrTimestamp, name, v)
		}

		epoch, err := ParseEpoch(s)
		if err != nil {
			return fmt.Errorf("%w: field %q: %v", ErrTimestamp, name, err)
		}
		flat[name] = epoch
	}
	return nil
}

// ParseEpoch parses an ISO-8601 or similar timestamp into epoch seconds
func ParseEpoch(s string) (int64, error) {
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}
