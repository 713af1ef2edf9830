package remote

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexInt64 decodes an integer the backend may encode as a JSON number or a
// numeric string. PHP serializes database ids inconsistently between
// endpoints, so both forms must be accepted.
type FlexInt64 int64

// UnmarshalJSON accepts numbers, numeric strings, and null.
func (f *FlexInt64) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*f = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return fmt.Errorf("remote: cannot parse %q as integer", string(data))
	}
	*f = FlexInt64(v)
	return nil
}

// Int64 returns the native value.
func (f FlexInt64) Int64() int64 { return int64(f) }

// FlexFloat64 decodes a decimal the backend may encode as a JSON number or a
// numeric string.
type FlexFloat64 float64

// UnmarshalJSON accepts numbers, numeric strings, and null.
func (f *FlexFloat64) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*f = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("remote: cannot parse %q as decimal", string(data))
	}
	*f = FlexFloat64(v)
	return nil
}

// Float64 returns the native value.
func (f FlexFloat64) Float64() float64 { return float64(f) }
