package config

import (
	"encoding/json"
	"time"
)

// Duration wraps time.Duration to read and write it as a string ("30s", "5m") in JSON
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Plain numbers are nanoseconds
		var n int64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*d = Duration(n)
		return nil
	}

	if s == "" {
		*d = 0
		return nil
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}
