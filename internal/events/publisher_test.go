package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
)

func TestNewAssignsUniqueIDs(t *testing.T) {
	at := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	a := New(domain.EventBreakRequested, 1, nil, "2025-03-01", nil, at)
	b := New(domain.EventBreakRequested, 1, nil, "2025-03-01", nil, at)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestDecodeKeepsRawData(t *testing.T) {
	teamID := int64(3)
	at := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	e := New(domain.EventDayCommitted, 7, &teamID, "2025-03-01", domain.DayCommittedData{Agents: 2, Intervals: 5}, at)

	body, err := json.Marshal(e)
	require.NoError(t, err)

	got, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, domain.EventDayCommitted, got.Type)
	require.NotNil(t, got.TeamID)
	assert.Equal(t, teamID, *got.TeamID)
	assert.True(t, at.Equal(got.OccurredAt))
	assert.JSONEq(t, `{"agents":2,"intervals":5}`, string(got.Data))
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"bad id", `{"id":"x","type":"break_started","occurredAt":"2025-03-01T14:00:00Z"}`},
		{"missing type", `{"id":"6f1c2a3e-8a55-4f0e-9d57-0a8d0f1b2c3d","occurredAt":"2025-03-01T14:00:00Z"}`},
		{"missing time", `{"id":"6f1c2a3e-8a55-4f0e-9d57-0a8d0f1b2c3d","type":"break_started"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body))
			assert.ErrorIs(t, err, ErrMalformedEvent)
		})
	}
}
