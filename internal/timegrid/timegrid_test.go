package timegrid

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Clock
		wantErr bool
	}{
		{name: "midnight", input: "00:00", want: 0},
		{name: "afternoon", input: "14:30", want: 870},
		{name: "with zero seconds", input: "11:00:00", want: 660},
		{name: "end of day", input: "24:00", want: EndOfDay},
		{name: "non-zero seconds", input: "11:00:30", wantErr: true},
		{name: "past end of day", input: "24:30", wantErr: true},
		{name: "bad minute", input: "10:60", wantErr: true},
		{name: "single digit hour", input: "9:00", wantErr: true},
		{name: "garbage", input: "noon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClock(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTime)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClockString(t *testing.T) {
	assert.Equal(t, "00:00", Clock(0).String())
	assert.Equal(t, "09:05", Clock(545).String())
	assert.Equal(t, "24:00", EndOfDay.String())
}

func TestClockJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		At Clock `json:"at"`
	}{At: 870})
	require.NoError(t, err)
	assert.JSONEq(t, `{"at":"14:30"}`, string(data))

	var decoded struct {
		At Clock `json:"at"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"at":"13:00"}`), &decoded))
	assert.Equal(t, Clock(780), decoded.At)

	require.Error(t, json.Unmarshal([]byte(`{"at":"25:00"}`), &decoded))
}

func TestNewLayout(t *testing.T) {
	l, err := NewLayout(30)
	require.NoError(t, err)
	assert.Equal(t, 48, l.Slots())

	l, err = NewLayout(15)
	require.NoError(t, err)
	assert.Equal(t, 96, l.Slots())

	_, err = NewLayout(7)
	require.Error(t, err)
	_, err = NewLayout(0)
	require.Error(t, err)

	var zero Layout
	assert.Equal(t, 48, zero.Slots())
}

func TestTimeToSlot(t *testing.T) {
	l := DefaultLayout()

	tests := []struct {
		input   Clock
		want    int
		wantErr bool
	}{
		{input: 0, want: 0},
		{input: 29, want: 0},
		{input: 30, want: 1},
		{input: 14*60 + 10, want: 28},
		{input: 23*60 + 59, want: 47},
		{input: EndOfDay, wantErr: true},
		{input: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input.String(), func(t *testing.T) {
			got, err := l.TimeToSlot(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTime)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSlotToTime(t *testing.T) {
	l := DefaultLayout()

	c, err := l.SlotToTime(22)
	require.NoError(t, err)
	assert.Equal(t, "11:00", c.String())

	c, err = l.SlotToTime(48)
	require.NoError(t, err)
	assert.Equal(t, EndOfDay, c)

	_, err = l.SlotToTime(49)
	require.ErrorIs(t, err, ErrInvalidTime)
	_, err = l.SlotToTime(-1)
	require.ErrorIs(t, err, ErrInvalidTime)

	for i := 0; i < l.Slots(); i++ {
		c, err := l.SlotToTime(i)
		require.NoError(t, err)
		back, err := l.TimeToSlot(c)
		require.NoError(t, err)
		assert.Equal(t, i, back)
	}
}

func TestEndSlot(t *testing.T) {
	l := DefaultLayout()

	got, err := l.EndSlot(EndOfDay)
	require.NoError(t, err)
	assert.Equal(t, 48, got)

	got, err = l.EndSlot(20*60 + 10)
	require.NoError(t, err)
	assert.Equal(t, 41, got)

	_, err = l.EndSlot(0)
	require.ErrorIs(t, err, ErrInvalidTime)
}

func TestClockScan(t *testing.T) {
	var c Clock
	require.NoError(t, c.Scan(int64(660)))
	assert.Equal(t, Clock(660), c)

	require.Error(t, c.Scan("11:00"))
	require.ErrorIs(t, c.Scan(int64(2000)), ErrInvalidTime)

	v, err := Clock(90).Value()
	require.NoError(t, err)
	assert.Equal(t, int64(90), v)
}
