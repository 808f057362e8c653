package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"account_service/internal/models"

	"github.com/google/uuid"
)

// MemoryStorage keeps users in process memory. Email uniqueness is checked
// under the same lock as the insert, matching what the database constraint
// gives the other implementations.
type MemoryStorage struct {
	mu      sync.RWMutex
	byID    map[string]models.User
	byEmail map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		byID:    make(map[string]models.User),
		byEmail: make(map[string]string),
	}
}

func (m *MemoryStorage) CreateUser(_ context.Context, user models.User) (models.User, error) {
	const op = "storage.CreateUser"

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byEmail[user.Email]; ok {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrEmailExists)
	}

	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt, user.UpdatedAt = now, now

	m.byID[user.ID] = user
	m.byEmail[user.Email] = user.ID

	return user, nil
}

func (m *MemoryStorage) GetUserByID(_ context.Context, id string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.byID[id]
	if !ok {
		return models.User{}, fmt.Errorf("storage.GetUserByID: %w", ErrUserNotFound)
	}

	return user, nil
}

func (m *MemoryStorage) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[email]
	if !ok {
		return models.User{}, fmt.Errorf("storage.GetUserByEmail: %w", ErrUserNotFound)
	}

	return m.byID[id], nil
}

func (m *MemoryStorage) ListUsers(_ context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]models.User, 0, len(m.byID))
	for _, u := range m.byID {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})

	return users, nil
}

func (m *MemoryStorage) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return m.update("storage.UpdatePassword", id, func(u *models.User) {
		u.PasswordHash = passwordHash
	})
}

func (m *MemoryStorage) UpdateProfile(_ context.Context, id string, upd models.ProfileUpdate) error {
	return m.update("storage.UpdateProfile", id, func(u *models.User) {
		if upd.Names != "" {
			u.Names = upd.Names
		}
		if upd.Surname != "" {
			u.Surname = upd.Surname
		}
		if upd.Avatar != "" {
			u.Avatar = upd.Avatar
		}
	})
}

func (m *MemoryStorage) UpdateRole(_ context.Context, id string, role models.Role) error {
	return m.update("storage.UpdateRole", id, func(u *models.User) {
		u.Role = role
	})
}

func (m *MemoryStorage) SoftDelete(_ context.Context, id string) error {
	return m.update("storage.SoftDelete", id, func(u *models.User) {
		u.Deleted = true
	})
}

func (m *MemoryStorage) Close() {}

func (m *MemoryStorage) update(op, id string, fn func(u *models.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	fn(&user)
	user.UpdatedAt = time.Now().UTC()
	m.byID[id] = user

	return nil
}
