// Package session управляет состоянием многошаговых диалогов.
package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abodcard/storefront/internal/model"
)

// Store описывает контракт хранения сессий, используемый менеджером.
type Store interface {
	GetSession(ctx context.Context, telegramID int64, role model.SessionRole) (*model.Session, error)
	SaveSession(ctx context.Context, s *model.Session) error
	ClearSession(ctx context.Context, telegramID int64, role model.SessionRole) error
	DeleteStaleSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

// Manager хранит по одной активной сессии на пару (актор, роль).
// Новая сессия молча замещает предыдущую: начало нового диалога
// означает отказ от незавершённого.
type Manager struct {
	store  Store
	logger *zap.Logger
	ttl    time.Duration
}

// NewManager создаёт менеджер сессий с указанным временем жизни.
func NewManager(store Store, logger *zap.Logger, ttl time.Duration) *Manager {
	return &Manager{store: store, logger: logger, ttl: ttl}
}

// Get возвращает активную сессию актора либо nil.
func (m *Manager) Get(ctx context.Context, telegramID int64, role model.SessionRole) (*model.Session, error) {
	return m.store.GetSession(ctx, telegramID, role)
}

// Set целиком замещает сессию актора новым состоянием и данными.
func (m *Manager) Set(ctx context.Context, telegramID int64, role model.SessionRole, state string, data map[string]string) error {
	if data == nil {
		data = map[string]string{}
	}
	s := &model.Session{
		TelegramID: telegramID,
		Role:       role,
		State:      state,
		Data:       data,
	}
	if err := m.store.SaveSession(ctx, s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear удаляет сессию актора при завершении или отмене диалога.
func (m *Manager) Clear(ctx context.Context, telegramID int64, role model.SessionRole) error {
	return m.store.ClearSession(ctx, telegramID, role)
}

// ReapStale удаляет брошенные сессии старше TTL. Запускается по расписанию.
func (m *Manager) ReapStale(ctx context.Context) {
	cutoff := time.Now().Add(-m.ttl)
	n, err := m.store.DeleteStaleSessions(ctx, cutoff)
	if err != nil {
		m.logger.Error("reap stale sessions", zap.Error(err))
		return
	}
	if n > 0 {
		m.logger.Info("reaped stale sessions", zap.Int64("count", n))
	}
}
