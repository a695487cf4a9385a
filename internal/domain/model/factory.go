// factory.go — питомник ("nhà máy") каталога.
package model

import "time"

// Factory — питомник, к которому привязаны деревья.
type Factory struct {
	FactoryID   string     `json:"factory_id"`
	NameFactory *string    `json:"name_factory"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	LocationID  string     `json:"location_id"`
}

// NameValue возвращает название питомника или пустую строку.
func (f *Factory) NameValue() string {
	if f.NameFactory == nil {
		return ""
	}
	return *f.NameFactory
}

// Merge возвращает копию f с наложенными непустыми полями upd.
func (f Factory) Merge(upd Factory) Factory {
	out := f
	if upd.NameFactory != nil {
		out.NameFactory = upd.NameFactory
	}
	if upd.LocationID != "" {
		out.LocationID = upd.LocationID
	}
	if upd.UpdatedAt != nil {
		out.UpdatedAt = upd.UpdatedAt
	}
	return out
}
