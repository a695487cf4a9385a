package service

import (
	"testing"
	"time"
)

func TestNoticeBoard_PublishActive(t *testing.T) {
	b := NewNoticeBoard(time.Minute)

	id := b.Publish(NoticeSuccess, "Đã tạo sản phẩm")
	if id == "" {
		t.Fatal("Publish должен вернуть идентификатор")
	}
	b.Publish(NoticeError, "Mất kết nối")

	active := b.Active()
	if len(active) != 2 {
		t.Fatalf("получено %d уведомлений, ожидается 2", len(active))
	}
	if active[0].Level != NoticeSuccess || active[0].Message != "Đã tạo sản phẩm" {
		t.Errorf("первое уведомление %+v", active[0])
	}
	if active[0].ID == active[1].ID {
		t.Error("идентификаторы уведомлений должны различаться")
	}
}

func TestNoticeBoard_Expiry(t *testing.T) {
	b := NewNoticeBoard(30 * time.Millisecond)

	b.Publish(NoticeSuccess, "временное")
	if got := len(b.Active()); got != 1 {
		t.Fatalf("получено %d уведомлений, ожидается 1", got)
	}

	time.Sleep(50 * time.Millisecond)
	if got := len(b.Active()); got != 0 {
		t.Errorf("после истечения TTL получено %d уведомлений, ожидается 0", got)
	}
}
