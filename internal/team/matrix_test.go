package team

import (
	"testing"
	"time"

	"github.com/rohan-patnaik/opencalendly-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-03-02 is a Monday.
const monday = "2026-03-02T00:00:00Z"

func utc(hour, min int) time.Time {
	return time.Date(2026, time.March, 2, hour, min, 0, 0, time.UTC)
}

func member(userID string, rules ...models.AvailabilityRule) models.TeamMemberSchedule {
	return models.TeamMemberSchedule{UserID: userID, Timezone: "UTC", Rules: rules}
}

func mondayRule(startMin, endMin int) models.AvailabilityRule {
	return models.AvailabilityRule{DayOfWeek: 1, StartMinute: startMin, EndMinute: endMin}
}

func TestRoundRobinFairRotation(t *testing.T) {
	members := []models.TeamMemberSchedule{
		member("member-b", mondayRule(540, 660)), // 09:00-11:00
		member("member-a", mondayRule(540, 660)),
	}

	got := ComputeTeamSlots(ModeRoundRobin, members, monday, 1, 30, 0)

	require.NotEmpty(t, got.Slots)
	// Members are ordered by UserID, not input order: member-a goes first.
	assert.Equal(t, []string{"member-a"}, got.Slots[0].AssignmentUserIDs)
	assert.Equal(t, []string{"member-b"}, got.Slots[1].AssignmentUserIDs)
	assert.Equal(t, []string{"member-a"}, got.Slots[2].AssignmentUserIDs)
}

func TestRoundRobinCursorCarriesAcrossCalls(t *testing.T) {
	members := []models.TeamMemberSchedule{
		member("member-a", mondayRule(540, 600)),
		member("member-b", mondayRule(540, 600)),
	}

	first := ComputeTeamSlots(ModeRoundRobin, members, monday, 1, 30, 0)
	require.Len(t, first.Slots, 3)
	// a, b, a assigned; cursor points one past the last assignee.
	assert.Equal(t, 1, first.NextCursor)

	second := ComputeTeamSlots(ModeRoundRobin, members, monday, 1, 30, first.NextCursor)
	assert.Equal(t, []string{"member-b"}, second.Slots[0].AssignmentUserIDs)
}

func TestRoundRobinSkipsUnavailableMemberWithoutLosingTurn(t *testing.T) {
	members := []models.TeamMemberSchedule{
		member("member-a", mondayRule(540, 600)),  // 09:00-10:00 only
		member("member-b", mondayRule(540, 660)),  // 09:00-11:00
	}

	got := ComputeTeamSlots(ModeRoundRobin, members, monday, 1, 30, 0)

	assignees := make([]string, len(got.Slots))
	for i, s := range got.Slots {
		assignees[i] = s.AssignmentUserIDs[0]
	}
	// 09:00 a, 09:15 b, 09:30 a; from 10:00 onward only b can serve.
	assert.Equal(t, "member-a", assignees[0])
	assert.Equal(t, "member-b", assignees[1])
	for i, s := range got.Slots {
		if !s.StartsAt.Before(utc(10, 0)) {
			assert.Equal(t, "member-b", assignees[i], "only member-b is available from 10:00")
		}
	}
}

func TestCollectiveIntersection(t *testing.T) {
	members := []models.TeamMemberSchedule{
		member("member-a", mondayRule(540, 600)), // 09:00-10:00
		member("member-b", mondayRule(570, 630)), // 09:30-10:30
	}

	got := ComputeTeamSlots(ModeCollective, members, monday, 1, 30, 4)

	// Only 09:30-10:00 fits inside both windows.
	require.Len(t, got.Slots, 1)
	assert.Equal(t, utc(9, 30), got.Slots[0].StartsAt)
	assert.Equal(t, utc(10, 0), got.Slots[0].EndsAt)
	assert.Equal(t, []string{"member-a", "member-b"}, got.Slots[0].AssignmentUserIDs)
	assert.Equal(t, 4, got.NextCursor, "collective mode leaves the cursor alone")
}

func TestCollectiveBuffersAreMaxAcrossMembers(t *testing.T) {
	ruleA := mondayRule(540, 600)
	ruleA.BufferBeforeMinutes = 5
	ruleB := mondayRule(540, 600)
	ruleB.BufferAfterMinutes = 25

	got := ComputeTeamSlots(ModeCollective, []models.TeamMemberSchedule{
		member("member-a", ruleA),
		member("member-b", ruleB),
	}, monday, 1, 30, 0)

	require.NotEmpty(t, got.Slots)
	assert.Equal(t, 5, got.Slots[0].BufferBeforeMinutes)
	assert.Equal(t, 25, got.Slots[0].BufferAfterMinutes)
}

func TestZeroMembers(t *testing.T) {
	got := ComputeTeamSlots(ModeRoundRobin, nil, monday, 1, 30, 7)
	assert.Empty(t, got.Slots)
	assert.Equal(t, 0, got.NextCursor)
}

func TestMembersWithDifferentTimezonesAlign(t *testing.T) {
	// 09:00 Eastern is 14:00 UTC in early March; a UTC member with a
	// 14:00-15:00 window intersects exactly there.
	est := models.TeamMemberSchedule{
		UserID:   "member-east",
		Timezone: "America/New_York",
		Rules:    []models.AvailabilityRule{mondayRule(540, 600)},
	}
	utcMember := member("member-utc", mondayRule(840, 900))

	got := ComputeTeamSlots(ModeCollective, []models.TeamMemberSchedule{est, utcMember}, monday, 1, 30, 0)

	require.Len(t, got.Slots, 3)
	assert.Equal(t, utc(14, 0), got.Slots[0].StartsAt)
	assert.Equal(t, utc(14, 30), got.Slots[2].StartsAt)
}
