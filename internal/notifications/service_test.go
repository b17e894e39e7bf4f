package notifications

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/azstore/crm-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepository implements Repository in memory for testing.
type mockRepository struct {
	seq        int
	records    map[string]*domain.Notification
	expansions map[string]*domain.NotificationExpansion

	createErrFor map[string]error // customer ID -> error to return on create
	createErr    error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		records:      make(map[string]*domain.Notification),
		expansions:   make(map[string]*domain.NotificationExpansion),
		createErrFor: make(map[string]error),
	}
}

func (m *mockRepository) Create(_ context.Context, n *domain.Notification) error {
	if m.createErr != nil {
		return m.createErr
	}
	if n.Target.CustomerID != nil {
		if err := m.createErrFor[*n.Target.CustomerID]; err != nil {
			return err
		}
	}
	m.seq++
	n.ID = fmt.Sprintf("n-%d", m.seq)
	n.CreatedAt = time.Now()
	clone := *n
	m.records[n.ID] = &clone
	return nil
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	if n, ok := m.records[id]; ok {
		clone := *n
		return &clone, nil
	}
	return nil, ErrNotificationNotFound
}

func (m *mockRepository) List(_ context.Context, _ ListFilter) ([]domain.Notification, error) {
	list := make([]domain.Notification, 0, len(m.records))
	for _, n := range m.records {
		list = append(list, *n)
	}
	return list, nil
}

func (m *mockRepository) Delete(_ context.Context, id string) error {
	if _, ok := m.records[id]; !ok {
		return ErrNotificationNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *mockRepository) ListForCustomer(_ context.Context, customerID string, filter InboxFilter) ([]domain.Notification, error) {
	list := make([]domain.Notification, 0)
	for _, n := range m.records {
		if !n.IsActive {
			continue
		}
		if n.IsExpired(filter.Now) {
			continue
		}
		if filter.UnreadOnly && n.IsRead {
			continue
		}
		targeted := n.Target.CustomerID != nil && *n.Target.CustomerID == customerID
		broadcast := filter.IncludeBroadcast && n.Target.Kind == domain.TargetBroadcast
		if targeted || broadcast {
			list = append(list, *n)
		}
	}
	return list, nil
}

func (m *mockRepository) CountUnread(_ context.Context, customerID string) (int, error) {
	count := 0
	for _, n := range m.records {
		if n.Target.CustomerID != nil && *n.Target.CustomerID == customerID && !n.IsRead && n.IsActive {
			count++
		}
	}
	return count, nil
}

func (m *mockRepository) SetReadFlag(_ context.Context, customerID string, ids []string, read bool) (int64, error) {
	var affected int64
	for _, id := range ids {
		n, ok := m.records[id]
		if !ok || n.Target.CustomerID == nil || *n.Target.CustomerID != customerID {
			continue
		}
		n.IsRead = read
		affected++
	}
	return affected, nil
}

func (m *mockRepository) SetReadFlagByIDs(_ context.Context, ids []string, read bool) (int64, error) {
	var affected int64
	for _, id := range ids {
		if n, ok := m.records[id]; ok {
			n.IsRead = read
			affected++
		}
	}
	return affected, nil
}

func (m *mockRepository) SetActiveFlag(_ context.Context, ids []string, active bool) (int64, error) {
	var affected int64
	for _, id := range ids {
		if n, ok := m.records[id]; ok {
			n.IsActive = active
			affected++
		}
	}
	return affected, nil
}

func (m *mockRepository) CreateExpansion(_ context.Context, exp *domain.NotificationExpansion) error {
	if _, ok := m.expansions[exp.NotificationID]; ok {
		return ErrAlreadyExpanded
	}
	m.seq++
	exp.ID = fmt.Sprintf("e-%d", m.seq)
	exp.ExpandedAt = time.Now()
	clone := *exp
	m.expansions[exp.NotificationID] = &clone
	return nil
}

func (m *mockRepository) UpdateExpansionCounts(_ context.Context, batchID string, createdCount int) error {
	for _, exp := range m.expansions {
		if exp.BatchID == batchID {
			exp.CreatedCount = createdCount
			return nil
		}
	}
	return ErrNotificationNotFound
}

func (m *mockRepository) GetExpansion(_ context.Context, notificationID string) (*domain.NotificationExpansion, error) {
	if exp, ok := m.expansions[notificationID]; ok {
		clone := *exp
		return &clone, nil
	}
	return nil, ErrNotificationNotFound
}

func (m *mockRepository) customerRecords(customerID string) []*domain.Notification {
	var out []*domain.Notification
	for _, n := range m.records {
		if n.Target.CustomerID != nil && *n.Target.CustomerID == customerID {
			out = append(out, n)
		}
	}
	return out
}

// mockDirectory implements GroupDirectory for testing.
type mockDirectory struct {
	groups    map[string][]string
	customers map[string]bool
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		groups:    make(map[string][]string),
		customers: make(map[string]bool),
	}
}

func (m *mockDirectory) GroupMemberIDs(_ context.Context, groupID string) ([]string, error) {
	members, ok := m.groups[groupID]
	if !ok {
		return nil, ErrGroupNotFound
	}
	snapshot := make([]string, len(members))
	copy(snapshot, members)
	return snapshot, nil
}

func (m *mockDirectory) GroupExists(_ context.Context, groupID string) (bool, error) {
	_, ok := m.groups[groupID]
	return ok, nil
}

func (m *mockDirectory) CustomerExists(_ context.Context, customerID string) (bool, error) {
	return m.customers[customerID], nil
}

func newTestService() (*Service, *mockRepository, *mockDirectory) {
	repo := newMockRepository()
	dir := newMockDirectory()
	return NewService(repo, dir), repo, dir
}

func validInput() Input {
	return Input{
		Title:    "Sale",
		Message:  "20% off this weekend",
		Category: domain.CategoryPromotion,
		Active:   true,
	}
}

func TestCreateForCustomer_TargetExclusivity(t *testing.T) {
	svc, _, dir := newTestService()
	dir.customers["cust-a"] = true

	n, err := svc.CreateForCustomer(context.Background(), "cust-a", validInput())
	require.NoError(t, err)

	assert.Equal(t, domain.TargetCustomer, n.Target.Kind)
	require.NotNil(t, n.Target.CustomerID)
	assert.Equal(t, "cust-a", *n.Target.CustomerID)
	assert.Nil(t, n.Target.GroupID, "customer-targeted record must never carry a group")
}

func TestCreateForGroup_TargetExclusivity(t *testing.T) {
	svc, repo, dir := newTestService()
	dir.groups["grp-1"] = []string{"cust-a", "cust-b"}

	n, err := svc.CreateForGroup(context.Background(), "grp-1", validInput())
	require.NoError(t, err)

	assert.Equal(t, domain.TargetGroup, n.Target.Kind)
	require.NotNil(t, n.Target.GroupID)
	assert.Nil(t, n.Target.CustomerID, "group-targeted record must never carry a customer")

	// Lazy: the summary record is the only write.
	assert.Len(t, repo.records, 1)
}

func TestCreateBroadcast(t *testing.T) {
	svc, _, _ := newTestService()

	n, err := svc.CreateBroadcast(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, domain.TargetBroadcast, n.Target.Kind)
	assert.Nil(t, n.Target.CustomerID)
	assert.Nil(t, n.Target.GroupID)
}

func TestCreate_ValidationBeforeAnyWrite(t *testing.T) {
	svc, repo, dir := newTestService()
	dir.customers["cust-a"] = true

	cases := []struct {
		name    string
		input   Input
		wantErr error
	}{
		{"empty title", Input{Message: "m", Category: domain.CategoryPromotion}, ErrEmptyTitle},
		{"empty message", Input{Title: "t", Category: domain.CategoryPromotion}, ErrEmptyMessage},
		{"bad category", Input{Title: "t", Message: "m", Category: "spam"}, ErrInvalidCategory},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateForCustomer(context.Background(), "cust-a", tc.input)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Empty(t, repo.records, "no write may happen on validation failure")
		})
	}
}

func TestCreateForCustomer_UnknownCustomer(t *testing.T) {
	svc, repo, _ := newTestService()

	_, err := svc.CreateForCustomer(context.Background(), "nobody", validInput())
	assert.ErrorIs(t, err, ErrCustomerNotFound)
	assert.Empty(t, repo.records)
}

func TestCreateForGroup_UnknownGroup(t *testing.T) {
	svc, repo, _ := newTestService()

	_, err := svc.CreateForGroup(context.Background(), "nope", validInput())
	assert.ErrorIs(t, err, ErrGroupNotFound)
	assert.Empty(t, repo.records)
}

func TestExpand_CreatesOneRecordPerCurrentMember(t *testing.T) {
	svc, repo, dir := newTestService()
	dir.groups["vip"] = []string{"cust-a", "cust-b"}
	expires := time.Now().Add(48 * time.Hour)

	in := validInput()
	in.ExpiresAt = &expires
	summary, err := svc.CreateForGroup(context.Background(), "vip", in)
	require.NoError(t, err)

	// Membership changes between creation and expansion are honored.
	dir.groups["vip"] = append(dir.groups["vip"], "cust-c")

	report, err := svc.Expand(context.Background(), summary.ID, "staff-1", false)
	require.NoError(t, err)

	assert.Equal(t, 3, report.TargetCount)
	assert.Equal(t, 3, report.CreatedCount)
	assert.Empty(t, report.FailedCustomerIDs)

	seen := make(map[string]bool)
	for _, n := range repo.records {
		if n.ID == summary.ID {
			continue
		}
		require.Equal(t, domain.TargetCustomer, n.Target.Kind)
		assert.Equal(t, summary.Title, n.Title)
		assert.Equal(t, summary.Message, n.Message)
		assert.Equal(t, summary.Category, n.Category)
		assert.Equal(t, summary.IsActive, n.IsActive)
		require.NotNil(t, n.ExpiresAt)
		assert.True(t, n.ExpiresAt.Equal(expires))
		seen[*n.Target.CustomerID] = true
	}
	assert.Equal(t, map[string]bool{"cust-a": true, "cust-b": true, "cust-c": true}, seen,
		"each current member gets exactly one record")

	// The summary record is untouched: still active, still group-targeted.
	got, err := repo.GetByID(context.Background(), summary.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TargetGroup, got.Target.Kind)
	assert.True(t, got.IsActive)
}

func TestExpand_SecondCallRejected(t *testing.T) {
	svc, repo, dir := newTestService()
	dir.groups["vip"] = []string{"cust-a", "cust-b"}

	summary, err := svc.CreateForGroup(context.Background(), "vip", validInput())
	require.NoError(t, err)

	_, err = svc.Expand(context.Background(), summary.ID, "staff-1", false)
	require.NoError(t, err)

	_, err = svc.Expand(context.Background(), summary.ID, "staff-1", false)
	assert.ErrorIs(t, err, ErrAlreadyExpanded)

	// 1 summary + 2 per-member records, nothing duplicated.
	assert.Len(t, repo.records, 3)
}

func TestExpand_ForceDuplicatesRecords(t *testing.T) {
	svc, repo, dir := newTestService()
	dir.groups["vip"] = []string{"cust-a", "cust-b"}

	summary, err := svc.CreateForGroup(context.Background(), "vip", validInput())
	require.NoError(t, err)

	_, err = svc.Expand(context.Background(), summary.ID, "staff-1", false)
	require.NoError(t, err)

	// Forced re-expansion keeps the legacy behavior: K more records.
	report, err := svc.Expand(context.Background(), summary.ID, "staff-1", true)
	require.NoError(t, err)
	assert.Equal(t, 2, report.CreatedCount)

	assert.Len(t, repo.customerRecords("cust-a"), 2)
	assert.Len(t, repo.customerRecords("cust-b"), 2)
}

func TestExpand_NotGroupTargeted(t *testing.T) {
	svc, _, dir := newTestService()
	dir.customers["cust-a"] = true

	n, err := svc.CreateForCustomer(context.Background(), "cust-a", validInput())
	require.NoError(t, err)

	_, err = svc.Expand(context.Background(), n.ID, "staff-1", false)
	assert.ErrorIs(t, err, ErrNotGroupTargeted)

	b, err := svc.CreateBroadcast(context.Background(), validInput())
	require.NoError(t, err)

	_, err = svc.Expand(context.Background(), b.ID, "staff-1", false)
	assert.ErrorIs(t, err, ErrNotGroupTargeted)
}

func TestExpand_PartialFailureReportedInManifest(t *testing.T) {
	svc, repo, dir := newTestService()
	dir.groups["vip"] = []string{"cust-a", "cust-b", "cust-c"}
	repo.createErrFor["cust-b"] = errors.New("connection reset")

	summary, err := svc.CreateForGroup(context.Background(), "vip", validInput())
	require.NoError(t, err)

	report, err := svc.Expand(context.Background(), summary.ID, "staff-1", false)
	require.NoError(t, err, "partial fan-out is a manifest, not an error")

	assert.Equal(t, 3, report.TargetCount)
	assert.Equal(t, 2, report.CreatedCount)
	assert.Equal(t, []string{"cust-b"}, report.FailedCustomerIDs)

	exp, err := svc.GetExpansion(context.Background(), summary.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, exp.MemberCount)
	assert.Equal(t, 2, exp.CreatedCount)
}

func TestBulkNotify_IndividualRecordsOnly(t *testing.T) {
	svc, repo, _ := newTestService()

	report, err := svc.BulkNotify(context.Background(), []string{"cust-a", "cust-b"}, validInput())
	require.NoError(t, err)

	assert.Equal(t, 2, report.TargetCount)
	assert.Equal(t, 2, report.CreatedCount)
	assert.NotEmpty(t, report.BatchID)
	assert.Empty(t, report.NotificationID, "bulk notify never creates a summary record")

	for _, n := range repo.records {
		assert.Equal(t, domain.TargetCustomer, n.Target.Kind)
	}
	assert.Len(t, repo.records, 2)
}

func TestBulkNotify_EmptySet(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.BulkNotify(context.Background(), nil, validInput())
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestListActiveForCustomer_ExcludesInactiveAndExpired(t *testing.T) {
	svc, _, dir := newTestService()
	dir.customers["cust-a"] = true
	ctx := context.Background()

	active, err := svc.CreateForCustomer(ctx, "cust-a", validInput())
	require.NoError(t, err)

	inactive, err := svc.CreateForCustomer(ctx, "cust-a", validInput())
	require.NoError(t, err)
	_, err = svc.SetActive(ctx, []string{inactive.ID}, false)
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	expired := validInput()
	expired.ExpiresAt = &past
	_, err = svc.CreateForCustomer(ctx, "cust-a", expired)
	require.NoError(t, err)

	list, err := svc.ListActiveForCustomer(ctx, "cust-a", false, true)
	require.NoError(t, err)

	require.Len(t, list, 1)
	assert.Equal(t, active.ID, list[0].ID)
}

func TestListActiveForCustomer_IncludesBroadcast(t *testing.T) {
	svc, _, dir := newTestService()
	dir.customers["cust-a"] = true
	ctx := context.Background()

	_, err := svc.CreateForCustomer(ctx, "cust-a", validInput())
	require.NoError(t, err)
	_, err = svc.CreateBroadcast(ctx, validInput())
	require.NoError(t, err)

	list, err := svc.ListActiveForCustomer(ctx, "cust-a", false, true)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = svc.ListActiveForCustomer(ctx, "cust-a", false, false)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMarkRead_ExactlyGivenIDs_ActiveUnaffected(t *testing.T) {
	svc, repo, dir := newTestService()
	dir.customers["cust-a"] = true
	ctx := context.Background()

	first, err := svc.CreateForCustomer(ctx, "cust-a", validInput())
	require.NoError(t, err)
	second, err := svc.CreateForCustomer(ctx, "cust-a", validInput())
	require.NoError(t, err)

	affected, err := svc.MarkRead(ctx, "cust-a", []string{first.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	// Marked record is still listed: read does not touch active.
	list, err := svc.ListActiveForCustomer(ctx, "cust-a", false, false)
	require.NoError(t, err)
	require.Len(t, list, 2)

	byID := map[string]domain.Notification{}
	for _, n := range list {
		byID[n.ID] = n
	}
	assert.True(t, byID[first.ID].IsRead)
	assert.False(t, byID[second.ID].IsRead, "other records' read flags are untouched")

	// And back again.
	_, err = svc.MarkUnread(ctx, "cust-a", []string{first.ID})
	require.NoError(t, err)
	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, got.IsRead)
}

func TestMarkRead_DoesNotTouchOtherCustomers(t *testing.T) {
	svc, repo, dir := newTestService()
	dir.customers["cust-a"] = true
	dir.customers["cust-b"] = true
	ctx := context.Background()

	other, err := svc.CreateForCustomer(ctx, "cust-b", validInput())
	require.NoError(t, err)

	affected, err := svc.MarkRead(ctx, "cust-a", []string{other.ID})
	require.NoError(t, err)
	assert.Zero(t, affected)

	got, err := repo.GetByID(ctx, other.ID)
	require.NoError(t, err)
	assert.False(t, got.IsRead)
}

func TestOnCustomerCreated_SendsWelcome(t *testing.T) {
	svc, repo, dir := newTestService()
	dir.customers["cust-a"] = true

	err := svc.OnCustomerCreated(context.Background(), &domain.Customer{
		ID:        "cust-a",
		Email:     "a@example.com",
		FirstName: "Ada",
	})
	require.NoError(t, err)

	records := repo.customerRecords("cust-a")
	require.Len(t, records, 1)
	assert.Equal(t, domain.CategorySystemMessage, records[0].Category)
	assert.Contains(t, records[0].Message, "Ada")
}
