//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/azstore/crm-server/internal/testutil"
	"github.com/stretchr/testify/require"
)

type dataEnvelope[T any] struct {
	Data T `json:"data"`
}

// registerCustomer registers a fresh customer account and returns its ID and email.
// The given client ends up logged in as that customer.
func registerCustomer(t *testing.T, client *testutil.Client, prefix string) (id, email string) {
	t.Helper()

	email = testutil.RandomEmail(prefix)
	password := "password123"

	resp, err := client.POST("/api/v1/auth/register", map[string]string{
		"email":      email,
		"password":   password,
		"first_name": "Test",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result dataEnvelope[struct {
		ID string `json:"id"`
	}]
	testutil.DecodeJSON(t, resp, &result)

	client.LoginAs(t, email, password)
	return result.Data.ID, email
}

// createGroup creates a customer group as staff and returns its ID.
func createGroup(t *testing.T, staff *testutil.Client, name string) string {
	t.Helper()

	resp, err := staff.POST("/api/v1/groups", map[string]string{
		"name": name,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result dataEnvelope[struct {
		ID string `json:"id"`
	}]
	testutil.DecodeJSON(t, resp, &result)
	return result.Data.ID
}

// addGroupMembers adds customers to a group as staff.
func addGroupMembers(t *testing.T, staff *testutil.Client, groupID string, customerIDs ...string) {
	t.Helper()

	resp, err := staff.POST("/api/v1/groups/"+groupID+"/members", map[string]interface{}{
		"customer_ids": customerIDs,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

type notificationPayload struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Category string `json:"category"`
	IsRead   bool   `json:"is_read"`
	IsActive bool   `json:"is_active"`
	Target   target `json:"target"`
}

type target struct {
	Kind       string  `json:"kind"`
	CustomerID *string `json:"customer_id,omitempty"`
	GroupID    *string `json:"group_id,omitempty"`
}

// createNotification creates a notification as staff and returns its ID.
func createNotification(t *testing.T, staff *testutil.Client, body map[string]interface{}) string {
	t.Helper()

	resp, err := staff.POST("/api/v1/notifications", body)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result dataEnvelope[notificationPayload]
	testutil.DecodeJSON(t, resp, &result)
	return result.Data.ID
}

type inboxPayload struct {
	Notifications []notificationPayload `json:"notifications"`
	UnreadCount   int                   `json:"unread_count"`
}

// myInbox fetches the logged-in customer's inbox.
func myInbox(t *testing.T, client *testutil.Client, query string) inboxPayload {
	t.Helper()

	resp, err := client.GET("/api/v1/me/notifications" + query)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result dataEnvelope[inboxPayload]
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}
