//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/azstore/crm-server/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type threadPayload struct {
	ID          string `json:"id"`
	CustomerID  string `json:"customer_id"`
	Subject     string `json:"subject"`
	IsClosed    bool   `json:"is_closed"`
	UnreadCount int    `json:"unread_count"`
}

type messagePayload struct {
	ID           string `json:"id"`
	ThreadID     string `json:"thread_id"`
	SenderID     string `json:"sender_id"`
	Body         string `json:"body"`
	IsRead       bool   `json:"is_read"`
	IsStaffReply bool   `json:"is_staff_reply"`
}

type threadViewPayload struct {
	Thread   threadPayload    `json:"thread"`
	Messages []messagePayload `json:"messages"`
}

// composeThread opens a support thread as the given customer and returns its ID.
func composeThread(t *testing.T, client *testutil.Client, subject, body string) string {
	t.Helper()

	resp, err := client.POST("/api/v1/me/threads", map[string]string{
		"subject": subject,
		"body":    body,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result dataEnvelope[threadViewPayload]
	testutil.DecodeJSON(t, resp, &result)
	return result.Data.Thread.ID
}

func TestMessaging_ComposeCreatesThreadWithFirstMessage(t *testing.T) {
	client := newTestClient(t)
	customerID, _ := registerCustomer(t, client, "composer")

	resp, err := client.POST("/api/v1/me/threads", map[string]string{
		"subject": "Missing item in my order",
		"body":    "The fufu flour was not in the box.",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var result dataEnvelope[threadViewPayload]
	testutil.DecodeJSON(t, resp, &result)
	assert.Equal(t, customerID, result.Data.Thread.CustomerID)
	assert.Equal(t, "Missing item in my order", result.Data.Thread.Subject)
	assert.False(t, result.Data.Thread.IsClosed)
	require.Len(t, result.Data.Messages, 1)
	assert.Equal(t, "The fufu flour was not in the box.", result.Data.Messages[0].Body)
	assert.False(t, result.Data.Messages[0].IsStaffReply)
	assert.Equal(t, customerID, result.Data.Messages[0].SenderID)
}

func TestMessaging_StaffReplyFlagDerivedFromRole(t *testing.T) {
	client := newTestClient(t)
	registerCustomer(t, client, "replied")
	threadID := composeThread(t, client, "Question about delivery", "Do you deliver to Scarborough?")

	staff := newTestClient(t)
	staff.LoginAsStaff(t)

	resp, err := staff.POST("/api/v1/threads/"+threadID+"/messages", map[string]string{
		"body": "Yes, every Thursday.",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var staffMsg dataEnvelope[messagePayload]
	testutil.DecodeJSON(t, resp, &staffMsg)
	assert.True(t, staffMsg.Data.IsStaffReply)

	resp, err = client.POST("/api/v1/me/threads/"+threadID+"/messages", map[string]string{
		"body": "Great, thank you!",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var customerMsg dataEnvelope[messagePayload]
	testutil.DecodeJSON(t, resp, &customerMsg)
	assert.False(t, customerMsg.Data.IsStaffReply)
}

func TestMessaging_UnreadCountsAndViewMarksRead(t *testing.T) {
	client := newTestClient(t)
	registerCustomer(t, client, "unread")
	threadID := composeThread(t, client, "Stock question", "When is fresh okra back?")

	staff := newTestClient(t)
	staff.LoginAsStaff(t)

	// The staff listing counts the unread customer message
	resp, err := staff.GET("/api/v1/threads")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var staffList dataEnvelope[[]threadPayload]
	testutil.DecodeJSON(t, resp, &staffList)
	var found *threadPayload
	for i := range staffList.Data {
		if staffList.Data[i].ID == threadID {
			found = &staffList.Data[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, 1, found.UnreadCount)

	// Staff viewing the thread marks the customer's message read
	resp, err = staff.GET("/api/v1/threads/" + threadID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = staff.GET("/api/v1/threads")
	require.NoError(t, err)
	testutil.DecodeJSON(t, resp, &staffList)
	for i := range staffList.Data {
		if staffList.Data[i].ID == threadID {
			assert.Equal(t, 0, staffList.Data[i].UnreadCount)
		}
	}

	// A staff reply shows up unread on the customer side
	resp, err = staff.POST("/api/v1/threads/"+threadID+"/messages", map[string]string{
		"body": "Next Tuesday.",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err = client.GET("/api/v1/me/threads")
	require.NoError(t, err)
	var myList dataEnvelope[[]threadPayload]
	testutil.DecodeJSON(t, resp, &myList)
	require.Len(t, myList.Data, 1)
	assert.Equal(t, 1, myList.Data[0].UnreadCount)

	// Customer viewing the thread clears it
	resp, err = client.GET("/api/v1/me/threads/" + threadID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = client.GET("/api/v1/me/threads")
	require.NoError(t, err)
	testutil.DecodeJSON(t, resp, &myList)
	require.Len(t, myList.Data, 1)
	assert.Equal(t, 0, myList.Data[0].UnreadCount)
}

func TestMessaging_OwnershipEnforced(t *testing.T) {
	owner := newTestClient(t)
	registerCustomer(t, owner, "thread-owner")
	threadID := composeThread(t, owner, "Private matter", "About my account balance.")

	stranger := newTestClient(t)
	registerCustomer(t, stranger, "stranger")

	resp, err := stranger.GET("/api/v1/me/threads/" + threadID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp, err = stranger.POST("/api/v1/me/threads/"+threadID+"/messages", map[string]string{
		"body": "Let me in",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// The customer's own listing never shows someone else's thread
	resp, err = stranger.GET("/api/v1/me/threads")
	require.NoError(t, err)
	var list dataEnvelope[[]threadPayload]
	testutil.DecodeJSON(t, resp, &list)
	assert.Empty(t, list.Data)
}

func TestMessaging_ClosedThreadRejectsReplies(t *testing.T) {
	client := newTestClient(t)
	registerCustomer(t, client, "closer")
	threadID := composeThread(t, client, "Resolved already", "Never mind, found it.")

	resp, err := client.POST("/api/v1/me/threads/"+threadID+"/close", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp, err = client.POST("/api/v1/me/threads/"+threadID+"/messages", map[string]string{
		"body": "One more thing...",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	staff := newTestClient(t)
	staff.LoginAsStaff(t)

	resp, err = staff.POST("/api/v1/threads/"+threadID+"/messages", map[string]string{
		"body": "Closing confirmation",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestMessaging_StaffListingFiltersClosed(t *testing.T) {
	client := newTestClient(t)
	registerCustomer(t, client, "filtering")
	openID := composeThread(t, client, "Still open", "Waiting for an answer.")
	closedID := composeThread(t, client, "Being closed", "This one gets closed.")

	staff := newTestClient(t)
	staff.LoginAsStaff(t)

	resp, err := staff.POST("/api/v1/threads/"+closedID+"/close", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp, err = staff.GET("/api/v1/threads")
	require.NoError(t, err)
	var open dataEnvelope[[]threadPayload]
	testutil.DecodeJSON(t, resp, &open)

	var sawOpen, sawClosed bool
	for _, th := range open.Data {
		if th.ID == openID {
			sawOpen = true
		}
		if th.ID == closedID {
			sawClosed = true
		}
	}
	assert.True(t, sawOpen, "open thread should be listed by default")
	assert.False(t, sawClosed, "closed thread should be hidden by default")

	resp, err = staff.GET("/api/v1/threads?open=false")
	require.NoError(t, err)
	var all dataEnvelope[[]threadPayload]
	testutil.DecodeJSON(t, resp, &all)

	sawClosed = false
	for _, th := range all.Data {
		if th.ID == closedID {
			sawClosed = true
			assert.True(t, th.IsClosed)
		}
	}
	assert.True(t, sawClosed, "closed thread should appear with open=false")
}

func TestMessaging_ComposeValidation(t *testing.T) {
	client := newTestClient(t)
	registerCustomer(t, client, "invalid")

	resp, err := client.WithoutValidation().POST("/api/v1/me/threads", map[string]string{
		"subject": "",
		"body":    "No subject",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = client.WithoutValidation().POST("/api/v1/me/threads", map[string]string{
		"subject": "No body",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
