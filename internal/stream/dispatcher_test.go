package stream

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/thientangreen/mirror-module/internal/domain/model"
	"github.com/thientangreen/mirror-module/internal/mirror"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestDispatcher создаёт диспетчер с зеркалами и счётчиком refetch.
func newTestDispatcher(strategies map[string]string) (*Dispatcher, *mirror.Store[model.Product], *map[string]int) {
	products := mirror.NewProductStore()
	factories := mirror.NewFactoryStore()
	locations := mirror.NewLocationStore()
	users := mirror.NewUserStore()

	refetched := map[string]int{}
	d := NewDispatcher(products, factories, locations, users, strategies,
		func(entity string) { refetched[entity]++ },
		testLogger(),
	)
	return d, products, &refetched
}

func TestParseEventName(t *testing.T) {
	tests := []struct {
		event      string
		wantEntity string
		wantAction string
		wantOK     bool
	}{
		{"product:created", "product", "created", true},
		{"product:updated", "product", "updated", true},
		{"product:deleted", "product", "deleted", true},
		{"users:created", "users", "created", true},
		{"factory:updated", "factory", "updated", true},
		{"location:deleted", "location", "deleted", true},
		{"subscribed", "", "", false},
		{"product:renamed", "", "", false},
		{"orders:created", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			entity, action, ok := ParseEventName(tt.event)
			if entity != tt.wantEntity || action != tt.wantAction || ok != tt.wantOK {
				t.Errorf("ParseEventName(%q) = (%q, %q, %v), ожидается (%q, %q, %v)",
					tt.event, entity, action, ok, tt.wantEntity, tt.wantAction, tt.wantOK)
			}
		})
	}
}

func TestDispatcher_PatchCreated(t *testing.T) {
	d, products, _ := newTestDispatcher(map[string]string{"product": "patch"})
	products.Replace(products.BeginFetch(), nil)

	payload := json.RawMessage(`{"product_id": "p1", "title": "Cây Dầu - A", "status": "Tốt"}`)
	d.HandleEvent("product", "created", payload)
	// Повтор того же события не дублирует запись
	d.HandleEvent("product", "created", payload)

	if products.Len() != 1 {
		t.Errorf("Len() = %d, ожидается 1", products.Len())
	}
}

func TestDispatcher_PatchUpdated(t *testing.T) {
	d, products, _ := newTestDispatcher(map[string]string{"product": "patch"})
	title := "Cây Dầu - A"
	status := "Tốt"
	products.Replace(products.BeginFetch(), []model.Product{
		{ProductID: "p1", Title: &title, Status: &status},
	})

	d.HandleEvent("product", "updated", json.RawMessage(`{"product_id": "p1", "status": "Chết"}`))

	got, ok := products.Get("p1")
	if !ok {
		t.Fatal("p1 должен существовать")
	}
	if got.StatusValue() != "Chết" {
		t.Errorf("Status = %q, ожидается Chết", got.StatusValue())
	}
	if got.TitleValue() != "Cây Dầu - A" {
		t.Errorf("Title = %q, должен сохраниться", got.TitleValue())
	}
}

func TestDispatcher_PatchDeleted(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"объект записи", `{"product_id": "p1"}`},
		{"голый идентификатор", `"p1"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, products, _ := newTestDispatcher(map[string]string{"product": "patch"})
			title := "A"
			status := "Tốt"
			products.Replace(products.BeginFetch(), []model.Product{
				{ProductID: "p1", Title: &title, Status: &status},
			})

			d.HandleEvent("product", "deleted", json.RawMessage(tt.payload))

			if products.Len() != 0 {
				t.Errorf("после deleted Len() = %d, ожидается 0", products.Len())
			}
		})
	}
}

func TestDispatcher_DeletedUnknownKeyNoop(t *testing.T) {
	d, products, _ := newTestDispatcher(map[string]string{"product": "patch"})
	title := "A"
	status := "Tốt"
	products.Replace(products.BeginFetch(), []model.Product{
		{ProductID: "p1", Title: &title, Status: &status},
	})

	d.HandleEvent("product", "deleted", json.RawMessage(`{"product_id": "p999"}`))

	if products.Len() != 1 {
		t.Errorf("deleted неизвестного ключа не должен менять зеркало, Len() = %d", products.Len())
	}
}

func TestDispatcher_MalformedPayloadDiscarded(t *testing.T) {
	d, products, _ := newTestDispatcher(map[string]string{"product": "patch"})
	products.Replace(products.BeginFetch(), nil)

	d.HandleEvent("product", "created", json.RawMessage(`{не json`))
	d.HandleEvent("product", "deleted", json.RawMessage(`42`))

	if products.Len() != 0 {
		t.Errorf("битые payload'ы не должны менять зеркало, Len() = %d", products.Len())
	}
}

func TestDispatcher_RefetchStrategy(t *testing.T) {
	d, products, refetched := newTestDispatcher(map[string]string{
		"product": "refetch",
		"factory": "refetch",
	})
	products.Replace(products.BeginFetch(), nil)

	d.HandleEvent("product", "created", json.RawMessage(`{"product_id": "p1"}`))
	d.HandleEvent("factory", "deleted", json.RawMessage(`"f1"`))

	if (*refetched)["product"] != 1 {
		t.Errorf("refetch(product) вызван %d раз, ожидается 1", (*refetched)["product"])
	}
	if (*refetched)["factory"] != 1 {
		t.Errorf("refetch(factory) вызван %d раз, ожидается 1", (*refetched)["factory"])
	}
	// Зеркало при refetch-стратегии не патчится напрямую
	if products.Len() != 0 {
		t.Errorf("Len() = %d, ожидается 0", products.Len())
	}
}
