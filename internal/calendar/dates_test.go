package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    Date
		wantErr bool
	}{
		{"2024-03-15", Date{2024, time.March, 15}, false},
		{"2024-02-29", Date{2024, time.February, 29}, false},
		{"2023-02-29", Date{}, true},
		{"2024-13-40", Date{}, true},
		{"2024-00-10", Date{}, true},
		{"2024-04-31", Date{}, true},
		{"2024-3-15", Date{}, true},
		{"2024-03-15T00:00:00Z", Date{}, true},
		{"", Date{}, true},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrMalformedDate, "ParseDate(%q)", tt.in)
			continue
		}
		require.NoError(t, err, "ParseDate(%q)", tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.in, got.String())
	}
}

func TestDateOfIgnoresZoneOffset(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC; the local calendar day wins.
	ny := time.FixedZone("UTC-5", -5*60*60)
	late := time.Date(2024, time.March, 31, 23, 30, 0, 0, ny)

	assert.Equal(t, "2024-03-31", DateOf(late).String())
	assert.Equal(t, "2024-04-01", DateOf(late.UTC()).String())
}

func TestDateCompare(t *testing.T) {
	a := Date{2024, time.March, 15}
	b := Date{2024, time.March, 16}
	c := Date{2025, time.January, 1}

	assert.True(t, a.Before(b))
	assert.True(t, c.After(b))
	assert.Equal(t, 0, a.Compare(a))
	assert.True(t, a.InMonth(2024, time.March))
	assert.False(t, a.InMonth(2025, time.March))
}

func TestDaysIn(t *testing.T) {
	assert.Equal(t, 29, DaysIn(2024, time.February))
	assert.Equal(t, 28, DaysIn(2025, time.February))
	assert.Equal(t, 31, DaysIn(2025, time.December))
	assert.Equal(t, 29, DaysIn(2000, time.February))
	assert.Equal(t, 28, DaysIn(1900, time.February))
}
