package database

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"petcare_reminders/internal/domain/reminder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestBuildReminderUpdate(t *testing.T) {
	at := time.Date(2030, 5, 1, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		patch    reminder.Patch
		wantSets []string
		wantArgs int
	}{
		{
			name:     "empty patch only bumps updated_at",
			patch:    reminder.Patch{},
			wantSets: []string{"updated_at = NOW()"},
			wantArgs: 1,
		},
		{
			name:     "title and handle",
			patch:    reminder.Patch{Title: ptr("Walk")}.WithHandle("h1"),
			wantSets: []string{"title = $1", "notification_handle = $2", "updated_at = NOW()"},
			wantArgs: 3,
		},
		{
			name:     "fire time carries its zone",
			patch:    reminder.Patch{FireAt: &at, Done: ptr(false)},
			wantSets: []string{"fire_at = $1", "fire_zone = $2", "fire_offset = $3", "done = $4"},
			wantArgs: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildReminderUpdate("r1", tt.patch)
			for _, s := range tt.wantSets {
				assert.Contains(t, query, s)
			}
			require.Len(t, args, tt.wantArgs)
			assert.Equal(t, "r1", args[len(args)-1])
			assert.Contains(t, query, "WHERE id = $"+strconv.Itoa(len(args)))
			assert.True(t, strings.Contains(query, "RETURNING id, owner_id"))
		})
	}
}

func TestBuildScopeQuery(t *testing.T) {
	q, args := buildScopeQuery(reminder.Scope{})
	assert.NotContains(t, q, "WHERE")
	assert.Empty(t, args)

	q, args = buildScopeQuery(reminder.Scope{OwnerID: "u1", PetID: "p1", OrderByFireAt: true})
	assert.Contains(t, q, "WHERE owner_id = $1 AND pet_id = $2")
	assert.True(t, strings.HasSuffix(q, "ORDER BY fire_at ASC, id ASC"))
	assert.Equal(t, []any{"u1", "p1"}, args)

	q, args = buildScopeQuery(reminder.Scope{PetID: "p1"})
	assert.Contains(t, q, "WHERE pet_id = $1")
	assert.Equal(t, []any{"p1"}, args)
}

func TestParsePayload(t *testing.T) {
	p, err := parsePayload(`{"owner_id":"u1","pet_id":"p1"}`)
	require.NoError(t, err)
	assert.Equal(t, changePayload{OwnerID: "u1", PetID: "p1"}, p)

	_, err = parsePayload("not json")
	assert.Error(t, err)
}
