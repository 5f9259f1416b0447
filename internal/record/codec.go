package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
	"git.home.luguber.info/inful/stepd/internal/steps"
)

// Record keys. These names are the persisted format and must not change.
const (
	KeyDailySteps   = "daily_steps"
	KeyTotalSteps   = "total_steps"
	KeyInitialCount = "initial_count"
	KeyLastDate     = "last_date"
)

// Keys lists the record keys in their canonical order.
var Keys = []string{KeyDailySteps, KeyTotalSteps, KeyInitialCount, KeyLastDate}

// ErrCorruptRecord marks a persisted record that exists but cannot be
// decoded. Callers treat it like an absent record.
var ErrCorruptRecord = ferrors.PersistError("corrupt step record").Build()

// Encode flattens st into the persisted key/value form.
func Encode(st steps.State) map[string]string {
	return map[string]string{
		KeyDailySteps:   strconv.FormatUint(st.DailySteps, 10),
		KeyTotalSteps:   strconv.FormatUint(st.TotalSteps, 10),
		KeyInitialCount: strconv.FormatUint(st.InitialStepCount, 10),
		KeyLastDate:     st.LastRecordedDate.String(),
	}
}

// Decode rebuilds a state from its key/value form. An empty map is an
// absent record and yields (nil, nil); anything partial or malformed wraps
// ErrCorruptRecord.
func Decode(m map[string]string) (*steps.State, error) {
	if len(m) == 0 {
		return nil, nil
	}
	for _, k := range Keys {
		if _, ok := m[k]; !ok {
			return nil, fmt.Errorf("%w: missing %s", ErrCorruptRecord, k)
		}
	}

	var st steps.State
	var err error
	if st.DailySteps, err = parseCount(m, KeyDailySteps); err != nil {
		return nil, err
	}
	if st.TotalSteps, err = parseCount(m, KeyTotalSteps); err != nil {
		return nil, err
	}
	if st.InitialStepCount, err = parseCount(m, KeyInitialCount); err != nil {
		return nil, err
	}
	if st.LastRecordedDate, err = steps.ParseDate(m[KeyLastDate]); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptRecord, KeyLastDate, err)
	}
	return &st, nil
}

func parseCount(m map[string]string, key string) (uint64, error) {
	n, err := strconv.ParseUint(m[key], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrCorruptRecord, key, err)
	}
	return n, nil
}

// MarshalJSON renders the record as a flat JSON object with numeric counts.
func MarshalJSON(st steps.State) ([]byte, error) {
	return json.Marshal(struct {
		DailySteps   uint64 `json:"daily_steps"`
		TotalSteps   uint64 `json:"total_steps"`
		InitialCount uint64 `json:"initial_count"`
		LastDate     string `json:"last_date"`
	}{st.DailySteps, st.TotalSteps, st.InitialStepCount, st.LastRecordedDate.String()})
}

// UnmarshalJSON decodes a flat JSON record. Counts may be numbers or
// numeric strings. Empty input is an absent record.
func UnmarshalJSON(data []byte) (*steps.State, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: not an object", ErrCorruptRecord)
	}
	flat := make(map[string]string, len(raw))
	for k, v := range raw {
		switch tv := v.(type) {
		case json.Number:
			flat[k] = tv.String()
		case string:
			flat[k] = tv
		default:
			return nil, fmt.Errorf("%w: %s has type %T", ErrCorruptRecord, k, v)
		}
	}
	if len(flat) == 0 {
		return nil, fmt.Errorf("%w: empty object", ErrCorruptRecord)
	}
	return Decode(flat)
}
