package params

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qms/internal/model"
)

func TestReaderDefaults(t *testing.T) {
	r := FromMap(map[string]string{
		DisplacementLimit: "7",
		DigitWidth:        "three",
		PriorityPrefix:    "True",
		PrioritySuffix:    "maybe",
		DayStartTime:      "25:00",
		PriorityMarker:    "  ",
	})

	assert.Equal(t, 7, r.Int(DisplacementLimit, DefaultDisplacementLimit))
	assert.Equal(t, DefaultDigitWidth, r.Int(DigitWidth, DefaultDigitWidth), "malformed falls back")
	assert.Equal(t, DefaultInsertionStep, r.Int(InsertionStep, DefaultInsertionStep), "missing falls back")
	assert.True(t, r.Bool(PriorityPrefix, false))
	assert.False(t, r.Bool(PrioritySuffix, false))
	assert.Equal(t, DefaultPriorityMarker, r.String(PriorityMarker, DefaultPriorityMarker), "blank counts as missing")

	h, m := r.TimeOfDay(DayStartTime, DefaultDayStartTime)
	assert.Equal(t, 7, h)
	assert.Equal(t, 30, m)
}

func TestNilReader(t *testing.T) {
	var r *Reader
	assert.Equal(t, 4, r.Int(DigitWidth, 4))
	assert.Equal(t, "UT", r.String(PriorityMarker, "UT"))
}

func TestLookupIntStrict(t *testing.T) {
	r := FromMap(map[string]string{DigitWidth: "x"})

	_, found, err := r.LookupInt(DigitWidth)
	assert.True(t, found)
	assert.True(t, model.IsInvalidArgument(err))

	_, found, err = r.LookupInt(InsertionStep)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestChainFirstHitWins(t *testing.T) {
	cache := MapLookup(map[string]string{DigitWidth: "5", PriorityMarker: ""})
	store := MapLookup(map[string]string{DigitWidth: "6", PriorityMarker: "P"})
	r := NewReader(Chain(cache, store))

	assert.Equal(t, 5, r.Int(DigitWidth, 4))
	assert.Equal(t, "P", r.String(PriorityMarker, "UT"), "empty cache value falls through")
}

func TestChainLookupErrorUsesDefault(t *testing.T) {
	failing := func(string) (string, bool, error) { return "", false, errors.New("db closed") }
	r := NewReader(Chain(failing))
	assert.Equal(t, 3, r.Int(InsertionStep, 3))
}

func TestParseTimeOfDay(t *testing.T) {
	h, m, err := ParseTimeOfDay("13:05")
	require.NoError(t, err)
	assert.Equal(t, 13, h)
	assert.Equal(t, 5, m)

	_, _, err = ParseTimeOfDay("1305")
	assert.True(t, model.IsInvalidArgument(err))
}
