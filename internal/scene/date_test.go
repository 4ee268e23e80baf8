package scene

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 20230601 ")
	require.NoError(t, err)
	assert.Equal(t, "20230601", d.String())
	assert.Equal(t, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), d.Time())
	assert.Equal(t, time.Date(2023, 6, 1, 23, 59, 59, 999999999, time.UTC), d.EndOfDay())

	for _, bad := range []string{"", "2023-06-01", "20231301", "2023060"} {
		_, err := ParseDate(bad)
		assert.True(t, errors.Is(err, ErrInvalidDate), "input %q", bad)
	}
}

func TestDateOf(t *testing.T) {
	loc := time.FixedZone("UTC+4", 4*3600)
	d := DateOf(time.Date(2023, 6, 2, 2, 0, 0, 0, loc))
	assert.Equal(t, "20230601", d.String())
}

func TestDate_Ordering(t *testing.T) {
	a, _ := ParseDate("20230601")
	b, _ := ParseDate("20230602")
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.False(t, a.After(a))
	assert.Equal(t, "", Date{}.String())
	assert.True(t, Date{}.IsZero())
}

func TestDate_Text(t *testing.T) {
	var d Date
	require.NoError(t, d.UnmarshalText([]byte("20230705")))
	b, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "20230705", string(b))

	require.NoError(t, d.UnmarshalText(nil))
	assert.True(t, d.IsZero())
}

func TestParsePair(t *testing.T) {
	p, err := ParsePair("20230602:20230614")
	require.NoError(t, err)
	assert.Equal(t, "20230602_20230614", p.Key())
	assert.Equal(t, "20230602:20230614", p.String())

	for _, bad := range []string{"20230602", "20230602:20230602", "x:20230614", "20230602:"} {
		_, err := ParsePair(bad)
		assert.Error(t, err, bad)
	}
}
