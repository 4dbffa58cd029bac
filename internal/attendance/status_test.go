package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseClock(t *testing.T) {
	c, err := ParseClock("08:05:00")
	assert.NoError(t, err)
	assert.Equal(t, Clock(8*3600+5*60), c)
	assert.Equal(t, "08:05:00", c.String())

	_, err = ParseClock("25:00:00")
	assert.Error(t, err)
	_, err = ParseClock("8am")
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	cutoff := MustClock("08:05:00")
	cases := []struct {
		at   string
		want Status
	}{
		{"2025-03-03T00:00:00Z", StatusPresent},
		{"2025-03-03T08:04:59Z", StatusPresent},
		{"2025-03-03T08:05:00Z", StatusPresent},
		{"2025-03-03T08:05:01Z", StatusLate},
		{"2025-03-03T23:59:59Z", StatusLate},
	}
	for _, tc := range cases {
		at, err := time.Parse(time.RFC3339, tc.at)
		assert.NoError(t, err)
		assert.Equal(t, tc.want, classify(at, cutoff), "at %s", tc.at)
	}
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusPresent.Valid())
	assert.True(t, StatusLate.Valid())
	assert.True(t, StatusAbsent.Valid())
	assert.False(t, Status("EXCUSED").Valid())
}
