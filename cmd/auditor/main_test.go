package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/events"
)

func TestToAuditEvent(t *testing.T) {
	teamID := int64(4)
	at := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	e := events.New(domain.EventBreakStarted, 9, &teamID, "2025-03-01", domain.BreakEventData{BreakID: 1, AgentID: 9}, at)

	body, err := json.Marshal(e)
	require.NoError(t, err)
	received, err := events.Decode(body)
	require.NoError(t, err)

	ae := toAuditEvent(received)
	assert.Equal(t, e.ID, ae.ID)
	assert.Equal(t, "break_started", ae.Type)
	assert.Equal(t, int64(9), ae.ActorID)
	require.NotNil(t, ae.Date)
	assert.Equal(t, "2025-03-01", *ae.Date)
	assert.Contains(t, string(ae.Data), `"breakID":1`)
}

func TestToAuditEventWithoutDate(t *testing.T) {
	ae := toAuditEvent(&events.Received{ID: "x", Type: domain.EventDayCommitted})
	assert.Nil(t, ae.Date)
	assert.Nil(t, ae.TeamID)
}
