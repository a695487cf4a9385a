// location.go — географическая локация питомников.
package model

import "time"

// Location — локация, к которой привязаны питомники.
type Location struct {
	LocationID string     `json:"location_id"`
	NameLocal  *string    `json:"name_local"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// NameValue возвращает название локации или пустую строку.
func (l *Location) NameValue() string {
	if l.NameLocal == nil {
		return ""
	}
	return *l.NameLocal
}

// Merge возвращает копию l с наложенными непустыми полями upd.
func (l Location) Merge(upd Location) Location {
	out := l
	if upd.NameLocal != nil {
		out.NameLocal = upd.NameLocal
	}
	if upd.UpdatedAt != nil {
		out.UpdatedAt = upd.UpdatedAt
	}
	return out
}
