// Package postgres provides PostgreSQL implementation of the customers repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/azstore/crm-server/internal/customers"
	"github.com/azstore/crm-server/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Repository implements customers.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const customerColumns = `id, email, role, first_name, last_name, phone,
	street_address, city, province, postal_code, country,
	preferred_language, dietary_preferences,
	loyalty_points, total_purchases, last_purchase_date,
	email_notifications, sms_notifications, push_notifications,
	is_active, created_at, updated_at`

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(
		&c.ID,
		&c.Email,
		&c.Role,
		&c.FirstName,
		&c.LastName,
		&c.Phone,
		&c.StreetAddress,
		&c.City,
		&c.Province,
		&c.PostalCode,
		&c.Country,
		&c.PreferredLanguage,
		&c.DietaryPreferences,
		&c.LoyaltyPoints,
		&c.TotalPurchases,
		&c.LastPurchaseDate,
		&c.EmailNotifications,
		&c.SMSNotifications,
		&c.PushNotifications,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCustomer retrieves a customer by ID.
func (r *Repository) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

	c, err := scanCustomer(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customers.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

// ListCustomers retrieves customers matching the staff filter, newest first.
func (r *Repository) ListCustomers(ctx context.Context, filter customers.CustomerFilter) ([]domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers`

	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := strconv.Itoa(len(args))
		conditions = append(conditions,
			"(email ILIKE $"+n+" OR first_name ILIKE $"+n+" OR last_name ILIKE $"+n+")")
	}
	if filter.GroupID != nil {
		args = append(args, *filter.GroupID)
		conditions = append(conditions,
			"id IN (SELECT customer_id FROM group_members WHERE group_id = $"+strconv.Itoa(len(args))+")")
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = TRUE")
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	return collectCustomers(rows)
}

func collectCustomers(rows pgx.Rows) ([]domain.Customer, error) {
	list := make([]domain.Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		list = append(list, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}
	return list, nil
}

// UpdateCustomer persists the customer's profile fields.
func (r *Repository) UpdateCustomer(ctx context.Context, c *domain.Customer) error {
	query := `
		UPDATE customers SET
			first_name = $2, last_name = $3, phone = $4,
			street_address = $5, city = $6, province = $7, postal_code = $8, country = $9,
			preferred_language = $10, dietary_preferences = $11,
			email_notifications = $12, sms_notifications = $13, push_notifications = $14,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		c.ID,
		c.FirstName, c.LastName, c.Phone,
		c.StreetAddress, c.City, c.Province, c.PostalCode, c.Country,
		c.PreferredLanguage, c.DietaryPreferences,
		c.EmailNotifications, c.SMSNotifications, c.PushNotifications,
	).Scan(&c.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return customers.ErrCustomerNotFound
		}
		return fmt.Errorf("update customer: %w", err)
	}
	return nil
}

// SetCustomerActive toggles the account's active flag.
func (r *Repository) SetCustomerActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE customers SET is_active = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.db.Exec(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("set customer active: %w", err)
	}
	if result.RowsAffected() == 0 {
		return customers.ErrCustomerNotFound
	}
	return nil
}

// CustomerExists reports whether a customer row exists.
func (r *Repository) CustomerExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM customers WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check customer exists: %w", err)
	}
	return exists, nil
}

const groupColumns = `g.id, g.name, g.description, g.created_by, g.created_at, g.updated_at,
	(SELECT COUNT(*) FROM group_members gm WHERE gm.group_id = g.id) AS member_count`

func scanGroup(row pgx.Row) (*domain.CustomerGroup, error) {
	var g domain.CustomerGroup
	err := row.Scan(
		&g.ID,
		&g.Name,
		&g.Description,
		&g.CreatedBy,
		&g.CreatedAt,
		&g.UpdatedAt,
		&g.MemberCount,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateGroup inserts a group. A duplicate name maps to ErrGroupNameTaken.
func (r *Repository) CreateGroup(ctx context.Context, g *domain.CustomerGroup) error {
	query := `
		INSERT INTO customer_groups (name, description, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, g.Name, g.Description, g.CreatedBy).
		Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return customers.ErrGroupNameTaken
		}
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// GetGroup retrieves a group with its member count.
func (r *Repository) GetGroup(ctx context.Context, id string) (*domain.CustomerGroup, error) {
	query := `SELECT ` + groupColumns + ` FROM customer_groups g WHERE g.id = $1`

	g, err := scanGroup(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customers.ErrGroupNotFound
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

// GetGroupByName retrieves a group by its unique name.
func (r *Repository) GetGroupByName(ctx context.Context, name string) (*domain.CustomerGroup, error) {
	query := `SELECT ` + groupColumns + ` FROM customer_groups g WHERE g.name = $1`

	g, err := scanGroup(r.db.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customers.ErrGroupNotFound
		}
		return nil, fmt.Errorf("get group by name: %w", err)
	}
	return g, nil
}

// ListGroups retrieves all groups with member counts, by name.
func (r *Repository) ListGroups(ctx context.Context) ([]domain.CustomerGroup, error) {
	query := `SELECT ` + groupColumns + ` FROM customer_groups g ORDER BY g.name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	list := make([]domain.CustomerGroup, 0)
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		list = append(list, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return list, nil
}

// UpdateGroup persists a group's name and description.
func (r *Repository) UpdateGroup(ctx context.Context, g *domain.CustomerGroup) error {
	query := `
		UPDATE customer_groups SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query, g.ID, g.Name, g.Description).Scan(&g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return customers.ErrGroupNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return customers.ErrGroupNameTaken
		}
		return fmt.Errorf("update group: %w", err)
	}
	return nil
}

// DeleteGroup removes a group. Membership rows go with it via ON DELETE CASCADE;
// customer rows are untouched.
func (r *Repository) DeleteGroup(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM customer_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if result.RowsAffected() == 0 {
		return customers.ErrGroupNotFound
	}
	return nil
}

// GroupExists reports whether a group row exists.
func (r *Repository) GroupExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM customer_groups WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check group exists: %w", err)
	}
	return exists, nil
}

// AddGroupMembers inserts membership rows, skipping customers already present.
func (r *Repository) AddGroupMembers(ctx context.Context, groupID string, customerIDs []string) (int64, error) {
	query := `
		INSERT INTO group_members (group_id, customer_id)
		SELECT $1, unnest($2::uuid[])
		ON CONFLICT (group_id, customer_id) DO NOTHING
	`
	result, err := r.db.Exec(ctx, query, groupID, customerIDs)
	if err != nil {
		return 0, fmt.Errorf("add group members: %w", err)
	}
	return result.RowsAffected(), nil
}

// RemoveGroupMembers deletes membership rows.
func (r *Repository) RemoveGroupMembers(ctx context.Context, groupID string, customerIDs []string) (int64, error) {
	query := `DELETE FROM group_members WHERE group_id = $1 AND customer_id = ANY($2)`
	result, err := r.db.Exec(ctx, query, groupID, customerIDs)
	if err != nil {
		return 0, fmt.Errorf("remove group members: %w", err)
	}
	return result.RowsAffected(), nil
}

// GroupMemberIDs returns the group's member IDs in a stable order.
func (r *Repository) GroupMemberIDs(ctx context.Context, groupID string) ([]string, error) {
	query := `SELECT customer_id FROM group_members WHERE group_id = $1 ORDER BY added_at`

	rows, err := r.db.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("group member ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member ids: %w", err)
	}
	return ids, nil
}

// ListGroupMembers returns the full customer records of a group's members.
func (r *Repository) ListGroupMembers(ctx context.Context, groupID string) ([]domain.Customer, error) {
	query := `
		SELECT ` + customerColumns + ` FROM customers
		WHERE id IN (SELECT customer_id FROM group_members WHERE group_id = $1)
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	defer rows.Close()

	return collectCustomers(rows)
}

// CreateNote inserts a customer note.
func (r *Repository) CreateNote(ctx context.Context, n *domain.CustomerNote) error {
	query := `
		INSERT INTO customer_notes (customer_id, note, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, n.CustomerID, n.Note, n.CreatedBy).
		Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	return nil
}

// GetNote retrieves a note by ID.
func (r *Repository) GetNote(ctx context.Context, id string) (*domain.CustomerNote, error) {
	query := `
		SELECT id, customer_id, note, created_by, created_at, updated_at
		FROM customer_notes WHERE id = $1
	`
	var n domain.CustomerNote
	err := r.db.QueryRow(ctx, query, id).Scan(
		&n.ID, &n.CustomerID, &n.Note, &n.CreatedBy, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customers.ErrNoteNotFound
		}
		return nil, fmt.Errorf("get note: %w", err)
	}
	return &n, nil
}

// ListNotes retrieves a customer's notes, newest first.
func (r *Repository) ListNotes(ctx context.Context, customerID string) ([]domain.CustomerNote, error) {
	query := `
		SELECT id, customer_id, note, created_by, created_at, updated_at
		FROM customer_notes WHERE customer_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	list := make([]domain.CustomerNote, 0)
	for rows.Next() {
		var n domain.CustomerNote
		if err := rows.Scan(&n.ID, &n.CustomerID, &n.Note, &n.CreatedBy, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return list, nil
}

// UpdateNote persists a note's text.
func (r *Repository) UpdateNote(ctx context.Context, n *domain.CustomerNote) error {
	query := `
		UPDATE customer_notes SET note = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query, n.ID, n.Note).Scan(&n.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return customers.ErrNoteNotFound
		}
		return fmt.Errorf("update note: %w", err)
	}
	return nil
}

// DeleteNote removes a note.
func (r *Repository) DeleteNote(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM customer_notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if result.RowsAffected() == 0 {
		return customers.ErrNoteNotFound
	}
	return nil
}
