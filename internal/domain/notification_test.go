package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetConstructors(t *testing.T) {
	ct := CustomerTarget("c-1")
	require.NoError(t, ct.Validate())
	assert.Equal(t, TargetCustomer, ct.Kind)
	assert.Nil(t, ct.GroupID)

	gt := GroupTarget("g-1")
	require.NoError(t, gt.Validate())
	assert.Equal(t, TargetGroup, gt.Kind)
	assert.Nil(t, gt.CustomerID)

	bt := BroadcastTarget()
	require.NoError(t, bt.Validate())
	assert.Nil(t, bt.CustomerID)
	assert.Nil(t, bt.GroupID)
}

func TestTargetValidate_RejectsInconsistentStates(t *testing.T) {
	cID := "c-1"
	gID := "g-1"

	cases := []struct {
		name   string
		target Target
	}{
		{"customer without id", Target{Kind: TargetCustomer}},
		{"customer with group id", Target{Kind: TargetCustomer, CustomerID: &cID, GroupID: &gID}},
		{"group without id", Target{Kind: TargetGroup}},
		{"group with customer id", Target{Kind: TargetGroup, GroupID: &gID, CustomerID: &cID}},
		{"broadcast with customer id", Target{Kind: TargetBroadcast, CustomerID: &cID}},
		{"unknown kind", Target{Kind: "everyone"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.target.Validate())
		})
	}
}

func TestNotificationIsExpired(t *testing.T) {
	now := time.Now()

	n := Notification{}
	assert.False(t, n.IsExpired(now), "no expiry never expires")

	past := now.Add(-time.Hour)
	n.ExpiresAt = &past
	assert.True(t, n.IsExpired(now))

	future := now.Add(time.Hour)
	n.ExpiresAt = &future
	assert.False(t, n.IsExpired(now))
}

func TestRoleHasPermission(t *testing.T) {
	assert.True(t, RoleAdmin.HasPermission(RoleStaff))
	assert.True(t, RoleStaff.HasPermission(RoleStaff))
	assert.False(t, RoleCustomer.HasPermission(RoleStaff))
	assert.True(t, RoleCustomer.HasPermission(RoleCustomer))
	assert.False(t, Role("").HasPermission(RoleCustomer))
}
