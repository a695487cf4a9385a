package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/thientangreen/mirror-module/internal/auth"
	"github.com/thientangreen/mirror-module/internal/config"
	"github.com/thientangreen/mirror-module/internal/domain/model"
	"github.com/thientangreen/mirror-module/internal/upstream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// listResponse собирает конверт списка каталога.
func listResponse(items any, page, limit int, total int64) map[string]any {
	return map[string]any{
		"data": map[string]any{"items": items},
		"pagings": map[string]any{
			"limit": limit,
			"page":  page,
			"total": total,
		},
	}
}

// catalogStub — минимальный сервер каталога для тестов синхронизации.
// products разбивается на страницы по limit из запроса.
func catalogStub(t *testing.T, products []model.Product) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/thientancay/product/list", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if page < 1 {
			page = 1
		}

		start := (page - 1) * limit
		end := start + limit
		if start > len(products) {
			start = len(products)
		}
		if end > len(products) {
			end = len(products)
		}

		json.NewEncoder(w).Encode(listResponse(products[start:end], page, limit, int64(len(products))))
	})
	for _, entity := range []string{"factory", "location", "users"} {
		mux.HandleFunc("/thientancay/"+entity+"/list", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(listResponse([]any{}, 1, 99, 0))
		})
	}
	return httptest.NewServer(mux)
}

func newTestCatalog(t *testing.T, srvURL string) *CatalogService {
	t.Helper()

	logger := testLogger()
	creds := auth.NewCredentials(logger)
	client, err := upstream.New(srvURL+"/thientancay", 5*time.Second, creds, logger)
	if err != nil {
		t.Fatalf("создание клиента: %v", err)
	}

	cfg := &config.Config{
		UpstreamURL:        srvURL,
		UpstreamBasePath:   "/thientancay",
		UpstreamTimeout:    5 * time.Second,
		StrategyProduct:    config.StrategyPatch,
		StrategyFactory:    config.StrategyRefetch,
		StrategyLocation:   config.StrategyRefetch,
		StrategyUsers:      config.StrategyRefetch,
		WSReconnectInitial: 10 * time.Millisecond,
		WSReconnectMax:     50 * time.Millisecond,
	}
	return NewCatalogService(cfg, client, creds, NewNoticeBoard(time.Minute), logger)
}

func TestSyncAll_PagedFetch(t *testing.T) {
	// 250 деревьев — три страницы по 99
	products := make([]model.Product, 250)
	for i := range products {
		title := fmt.Sprintf("Cây - %03d", i)
		status := "Tốt"
		products[i] = model.Product{ProductID: fmt.Sprintf("p%03d", i), Title: &title, Status: &status}
	}
	srv := catalogStub(t, products)
	defer srv.Close()

	s := newTestCatalog(t, srv.URL)
	s.SyncAll(context.Background())

	if got := s.Products().Len(); got != 250 {
		t.Errorf("в зеркале %d деревьев, ожидается 250", got)
	}
	if s.Products().Loading() {
		t.Error("зеркало не должно оставаться в состоянии загрузки")
	}
	if !s.Ready() {
		t.Error("Ready() после полной загрузки должен быть true")
	}

	if _, ok := s.Products().Get("p199"); !ok {
		t.Error("запись со второй страницы отсутствует в зеркале")
	}
}

func TestSyncAll_UpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := newTestCatalog(t, srv.URL)
	s.SyncAll(context.Background())

	if s.Ready() {
		t.Error("Ready() при недоступном каталоге должен быть false")
	}
	if s.Products().Err() == nil {
		t.Error("зеркало должно хранить ошибку загрузки")
	}
	if got := s.Products().Len(); got != 0 {
		t.Errorf("в зеркале %d записей, ожидается 0", got)
	}
}

func TestRefetch_SingleEntity(t *testing.T) {
	title := "Cây Dầu - A"
	status := "Tốt"
	products := []model.Product{{ProductID: "p1", Title: &title, Status: &status}}
	srv := catalogStub(t, products)
	defer srv.Close()

	s := newTestCatalog(t, srv.URL)
	s.Refetch(model.EntityProduct)

	// Перезагрузка асинхронная: ждём появления записи
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Products().Len() == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := s.Products().Len(); got != 1 {
		t.Errorf("в зеркале %d записей после перезагрузки, ожидается 1", got)
	}
}

func TestStatus(t *testing.T) {
	srv := catalogStub(t, nil)
	defer srv.Close()

	s := newTestCatalog(t, srv.URL)
	statuses := s.Status()
	if len(statuses) != 4 {
		t.Fatalf("получено %d коллекций, ожидается 4", len(statuses))
	}
	for _, st := range statuses {
		if !st.Loading {
			t.Errorf("коллекция %s до загрузки должна быть в состоянии loading", st.Entity)
		}
	}

	s.SyncAll(context.Background())
	for _, st := range s.Status() {
		if st.Loading {
			t.Errorf("коллекция %s после загрузки не должна быть в состоянии loading", st.Entity)
		}
	}
}
