// Пакет model — доменные модели каталога Thiên Tân.
// JSON-теги соответствуют формату API каталога (product_id, name_factory и т.д.).
package model

import (
	"strings"
	"time"
)

// Product — дерево (товар) каталога.
// Указатели — для полей, которые сервер каталога может вернуть как null.
type Product struct {
	ProductID   string     `json:"product_id"`
	Title       *string    `json:"title"`
	Image       *string    `json:"image"`
	Video       *string    `json:"video"`
	Status      *string    `json:"status"`
	Describe    string     `json:"describe_product"`
	Year        *time.Time `json:"year_product"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	FactoryID   string     `json:"factory_id"`
	NameFactory string     `json:"name_factory,omitempty"`
}

// TitleValue возвращает заголовок или пустую строку.
func (p *Product) TitleValue() string {
	if p.Title == nil {
		return ""
	}
	return *p.Title
}

// StatusValue возвращает статус или пустую строку.
func (p *Product) StatusValue() string {
	if p.Status == nil {
		return ""
	}
	return *p.Status
}

// ImageValue возвращает URL изображения или пустую строку.
func (p *Product) ImageValue() string {
	if p.Image == nil {
		return ""
	}
	return *p.Image
}

// VideoValue возвращает URL видео или пустую строку.
func (p *Product) VideoValue() string {
	if p.Video == nil {
		return ""
	}
	return *p.Video
}

// YearValue возвращает календарный год посадки или 0, если дата не задана.
func (p *Product) YearValue() int {
	if p.Year == nil {
		return 0
	}
	return p.Year.Year()
}

// Valid сообщает, пригодна ли запись для показа в галерее:
// заголовок и статус должны быть непустыми.
func (p *Product) Valid() bool {
	return strings.TrimSpace(p.TitleValue()) != "" && strings.TrimSpace(p.StatusValue()) != ""
}

// Merge возвращает копию p с наложенными непустыми полями upd.
// Отсутствующие в payload поля (nil-указатели, пустые строки) сохраняют
// локальные значения.
func (p Product) Merge(upd Product) Product {
	out := p
	if upd.Title != nil {
		out.Title = upd.Title
	}
	if upd.Image != nil {
		out.Image = upd.Image
	}
	if upd.Video != nil {
		out.Video = upd.Video
	}
	if upd.Status != nil {
		out.Status = upd.Status
	}
	if upd.Describe != "" {
		out.Describe = upd.Describe
	}
	if upd.Year != nil {
		out.Year = upd.Year
	}
	if upd.UpdatedAt != nil {
		out.UpdatedAt = upd.UpdatedAt
	}
	if upd.FactoryID != "" {
		out.FactoryID = upd.FactoryID
	}
	if upd.NameFactory != "" {
		out.NameFactory = upd.NameFactory
	}
	return out
}
