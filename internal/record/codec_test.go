package record

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
	"git.home.luguber.info/inful/stepd/internal/steps"
)

var sampleState = steps.State{InitialStepCount: 5000, DailySteps: 120, TotalSteps: 5120, LastRecordedDate: "2026-10-19"}

func TestEncodeDecode(t *testing.T) {
	m := Encode(sampleState)
	require.Equal(t, map[string]string{
		"daily_steps":   "120",
		"total_steps":   "5120",
		"initial_count": "5000",
		"last_date":     "2026-10-19",
	}, m)

	got, err := Decode(m)
	require.NoError(t, err)
	require.Equal(t, sampleState, *got)
}

func TestDecodeAbsent(t *testing.T) {
	got, err := Decode(nil)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestDecodeCorrupt(t *testing.T) {
	cases := map[string]map[string]string{
		"missing key":  {"daily_steps": "1", "total_steps": "2", "initial_count": "1"},
		"non numeric":  {"daily_steps": "x", "total_steps": "2", "initial_count": "1", "last_date": "2026-10-19"},
		"negative":     {"daily_steps": "1", "total_steps": "-2", "initial_count": "1", "last_date": "2026-10-19"},
		"bad date":     {"daily_steps": "1", "total_steps": "2", "initial_count": "1", "last_date": "19/10/2026"},
		"empty anchor": {"daily_steps": "1", "total_steps": "2", "initial_count": "", "last_date": "2026-10-19"},
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := Decode(m)
			require.Nil(t, got)
			require.ErrorIs(t, err, ErrCorruptRecord)
			require.True(t, ferrors.HasCategory(err, ferrors.CategoryPersist))
		})
	}
}

func TestJSONRoundTripAndLenientCounts(t *testing.T) {
	data, err := MarshalJSON(sampleState)
	require.NoError(t, err)
	require.JSONEq(t, `{"daily_steps":120,"total_steps":5120,"initial_count":5000,"last_date":"2026-10-19"}`, string(data))

	got, err := UnmarshalJSON(data)
	require.NoError(t, err)
	require.Equal(t, sampleState, *got)

	got, err = UnmarshalJSON([]byte(`{"daily_steps":"120","total_steps":"5120","initial_count":"5000","last_date":"2026-10-19"}`))
	require.NoError(t, err)
	require.Equal(t, sampleState, *got)
}

func TestUnmarshalJSONEdgeCases(t *testing.T) {
	got, err := UnmarshalJSON([]byte("  \n"))
	require.NoError(t, err)
	require.Nil(t, got)

	for _, in := range []string{`{`, `null`, `{}`, `[1,2]`, `{"daily_steps":true}`, `{"daily_steps":1.5,"total_steps":2,"initial_count":0,"last_date":"2026-10-19"}`} {
		got, err := UnmarshalJSON([]byte(in))
		require.Nil(t, got, in)
		require.True(t, errors.Is(err, ErrCorruptRecord), in)
	}
}
