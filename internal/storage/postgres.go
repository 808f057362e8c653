package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"account_service/internal/models"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const uniqueViolation = "23505"

const userColumns = "id, names, surname, email, password_hash, role, avatar, deleted, created_at, updated_at"

type PostgresStorage struct {
	db *pgxpool.Pool
}

func NewPostgresStorage(ctx context.Context, DbURL string) (*PostgresStorage, error) {
	const op = "storage.NewPostgresStorage"

	conn, err := pgxpool.Connect(ctx, DbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &PostgresStorage{
		db: conn,
	}, nil
}

func (p *PostgresStorage) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	const op = "storage.CreateUser"

	query := fmt.Sprintf(`INSERT INTO %s(names, surname, email, password_hash, role, avatar)
	VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at, updated_at;`, usersTable)

	var id uuid.UUID
	err := p.db.QueryRow(ctx, query,
		user.Names, user.Surname, user.Email, user.PasswordHash, string(user.Role), user.Avatar,
	).Scan(&id, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrEmailExists)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user.ID = id.String()

	return user, nil
}

func (p *PostgresStorage) GetUserByID(ctx context.Context, id string) (models.User, error) {
	const op = "storage.GetUserByID"

	userID, err := parseID(id)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id=$1;", userColumns, usersTable)

	user, err := scanUser(p.db.QueryRow(ctx, query, userID))
	if err != nil {
		return user, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (p *PostgresStorage) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.GetUserByEmail"

	query := fmt.Sprintf("SELECT %s FROM %s WHERE email=$1;", userColumns, usersTable)

	user, err := scanUser(p.db.QueryRow(ctx, query, email))
	if err != nil {
		return user, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (p *PostgresStorage) ListUsers(ctx context.Context) ([]models.User, error) {
	const op = "storage.ListUsers"

	users := []models.User{}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at;", userColumns, usersTable)

	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return users, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return users, fmt.Errorf("%s: %w", op, err)
		}

		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s (rows): %w", op, err)
	}

	return users, nil
}

func (p *PostgresStorage) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const op = "storage.UpdatePassword"

	query := fmt.Sprintf("UPDATE %s SET password_hash=$1, updated_at=now() WHERE id=$2", usersTable)

	return p.exec(ctx, op, id, query, passwordHash)
}

// UpdateProfile leaves a column untouched when the new value is empty.
func (p *PostgresStorage) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) error {
	const op = "storage.UpdateProfile"

	query := fmt.Sprintf(`UPDATE %s
	   SET names = COALESCE(NULLIF($1, ''), names),
	       surname = COALESCE(NULLIF($2, ''), surname),
	       avatar = COALESCE(NULLIF($3, ''), avatar),
	       updated_at = now()
	 WHERE id = $4`, usersTable)

	return p.exec(ctx, op, id, query, upd.Names, upd.Surname, upd.Avatar)
}

func (p *PostgresStorage) UpdateRole(ctx context.Context, id string, role models.Role) error {
	const op = "storage.UpdateRole"

	query := fmt.Sprintf("UPDATE %s SET role=$1, updated_at=now() WHERE id=$2", usersTable)

	return p.exec(ctx, op, id, query, string(role))
}

func (p *PostgresStorage) SoftDelete(ctx context.Context, id string) error {
	const op = "storage.SoftDelete"

	query := fmt.Sprintf("UPDATE %s SET deleted=TRUE, updated_at=now() WHERE id=$1", usersTable)

	return p.exec(ctx, op, id, query)
}

func (p *PostgresStorage) Close() {
	p.db.Close()
}

// exec runs an UPDATE whose last placeholder is the user id.
func (p *PostgresStorage) exec(ctx context.Context, op, id, query string, args ...any) error {
	userID, err := parseID(id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tag, err := p.db.Exec(ctx, query, append(args, userID)...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	return nil
}

func parseID(id string) (uuid.UUID, error) {
	userID, err := uuid.FromString(strings.TrimSpace(id))
	if err != nil {
		return uuid.Nil, ErrUserNotFound
	}
	return userID, nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var (
		user models.User
		id   uuid.UUID
		role string
	)

	err := row.Scan(&id, &user.Names, &user.Surname, &user.Email, &user.PasswordHash,
		&role, &user.Avatar, &user.Deleted, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}

	user.ID = id.String()
	user.Role = models.Role(role)

	return user, nil
}
