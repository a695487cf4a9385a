// catalog.go — типизированные зеркала коллекций каталога.
package mirror

import "github.com/thientangreen/mirror-module/internal/domain/model"

// NewProductStore создаёт зеркало коллекции деревьев.
func NewProductStore() *Store[model.Product] {
	return New(Config[model.Product]{
		KeyOf: func(p model.Product) string { return p.ProductID },
		WithKey: func(p model.Product, key string) model.Product {
			p.ProductID = key
			return p
		},
		Merge: func(old, upd model.Product) model.Product { return old.Merge(upd) },
	})
}

// NewFactoryStore создаёт зеркало коллекции питомников.
func NewFactoryStore() *Store[model.Factory] {
	return New(Config[model.Factory]{
		KeyOf: func(f model.Factory) string { return f.FactoryID },
		WithKey: func(f model.Factory, key string) model.Factory {
			f.FactoryID = key
			return f
		},
		Merge: func(old, upd model.Factory) model.Factory { return old.Merge(upd) },
	})
}

// NewLocationStore создаёт зеркало коллекции локаций.
func NewLocationStore() *Store[model.Location] {
	return New(Config[model.Location]{
		KeyOf: func(l model.Location) string { return l.LocationID },
		WithKey: func(l model.Location, key string) model.Location {
			l.LocationID = key
			return l
		},
		Merge: func(old, upd model.Location) model.Location { return old.Merge(upd) },
	})
}

// NewUserStore создаёт зеркало коллекции пользователей.
func NewUserStore() *Store[model.User] {
	return New(Config[model.User]{
		KeyOf: func(u model.User) string { return u.UserID },
		WithKey: func(u model.User, key string) model.User {
			u.UserID = key
			return u
		},
		Merge: func(old, upd model.User) model.User { return old.Merge(upd) },
	})
}
