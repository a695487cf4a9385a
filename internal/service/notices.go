// notices.go — доска временных уведомлений для SSE-потока.
//
// Уведомления о событиях зеркала (потеря соединения, ошибки отчёта)
// живут ограниченное время (MM_NOTICE_TTL) и отдаются подписчикам
// через SSE вместе с состоянием зеркала.
package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Уровни уведомлений.
const (
	NoticeSuccess = "success"
	NoticeError   = "error"
)

// Notice — одно уведомление.
type Notice struct {
	ID        string    `json:"id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// NoticeBoard — доска уведомлений с автоматическим устареванием.
type NoticeBoard struct {
	ttl time.Duration

	mu      sync.Mutex
	notices []Notice
}

// NewNoticeBoard создаёт доску уведомлений с временем жизни ttl.
func NewNoticeBoard(ttl time.Duration) *NoticeBoard {
	return &NoticeBoard{ttl: ttl}
}

// Publish добавляет уведомление и возвращает его идентификатор.
func (b *NoticeBoard) Publish(level, message string) string {
	n := Notice{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	b.mu.Lock()
	b.prune(time.Now())
	b.notices = append(b.notices, n)
	b.mu.Unlock()

	return n.ID
}

// Active возвращает неустаревшие уведомления в порядке публикации.
func (b *NoticeBoard) Active() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune(time.Now())
	out := make([]Notice, len(b.notices))
	copy(out, b.notices)
	return out
}

// prune удаляет устаревшие уведомления. Вызывается под мьютексом.
func (b *NoticeBoard) prune(now time.Time) {
	cutoff := now.Add(-b.ttl)
	kept := b.notices[:0]
	for _, n := range b.notices {
		if n.CreatedAt.After(cutoff) {
			kept = append(kept, n)
		}
	}
	b.notices = kept
}
