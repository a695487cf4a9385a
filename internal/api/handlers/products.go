// products.go — обработчики галереи деревьев и passthrough-операций записи.
//
// Чтение обслуживается локальным зеркалом; narrowing-параметры
// name_factory и name_local уходят напрямую в каталог. Операции записи
// пробрасываются в каталог с токеном вызывающего; зеркало product
// обновляется по WebSocket-событию, а не ответом каталога.
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/thientangreen/mirror-module/internal/api/errors"
	"github.com/thientangreen/mirror-module/internal/service"
	"github.com/thientangreen/mirror-module/internal/upstream"
)

// yearLayout — формат поля year_product в формах каталога.
const yearLayout = "2006-01-02"

// ListProducts обрабатывает GET /api/v1/products — страница галереи.
//
// Query-параметры: year, type, media (image|video), status, factory_id,
// location_id, page. Параметры name_factory и name_local запрашивают
// срез напрямую из каталога.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if name := q.Get("name_factory"); name != "" {
		products, err := h.catalog.Client().ProductsByFactory(r.Context(), name)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": products, "total": len(products)})
		return
	}
	if name := q.Get("name_local"); name != "" {
		products, err := h.catalog.Client().ProductsByLocal(r.Context(), name)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": products, "total": len(products)})
		return
	}

	page := h.views.Gallery(criteriaFromQuery(r), pageFromQuery(r))
	writeJSON(w, http.StatusOK, page)
}

// ProductOptions обрабатывает GET /api/v1/products/options —
// доступные значения фильтров галереи.
func (h *Handler) ProductOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.views.Options())
}

// GetProduct обрабатывает GET /api/v1/products/{id} — одна запись зеркала.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	product, ok := h.catalog.Products().Get(id)
	if !ok {
		if !h.catalog.Products().Loaded() {
			apierrors.MirrorLoading(w, "Зеркало каталога ещё загружается")
			return
		}
		apierrors.NotFound(w, "Дерево не найдено: "+id)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// productUploadFromForm разбирает multipart-форму создания или
// изменения дерева: поля title, status, describe_product, factory_id,
// year_product и файлы image, video.
func productUploadFromForm(r *http.Request) (upstream.ProductUpload, error) {
	var upload upstream.ProductUpload

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return upload, err
	}

	setIf := func(dst **string, key string) {
		if vals, ok := r.MultipartForm.Value[key]; ok && len(vals) > 0 {
			v := vals[0]
			*dst = &v
		}
	}
	setIf(&upload.Product.Title, "title")
	setIf(&upload.Product.Status, "status")
	if vals, ok := r.MultipartForm.Value["describe_product"]; ok && len(vals) > 0 {
		upload.Product.Describe = vals[0]
	}
	if vals, ok := r.MultipartForm.Value["factory_id"]; ok && len(vals) > 0 {
		upload.Product.FactoryID = vals[0]
	}
	if vals, ok := r.MultipartForm.Value["year_product"]; ok && len(vals) > 0 && vals[0] != "" {
		year, err := time.Parse(yearLayout, vals[0])
		if err != nil {
			return upload, err
		}
		upload.Product.Year = &year
	}

	if file, header, err := r.FormFile("image"); err == nil {
		upload.Image = &upstream.FilePart{Filename: header.Filename, Reader: file}
	}
	if file, header, err := r.FormFile("video"); err == nil {
		upload.Video = &upstream.FilePart{Filename: header.Filename, Reader: file}
	}

	return upload, nil
}

// CreateProduct обрабатывает POST /api/v1/products — passthrough-создание.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	client, ok := h.callerClient(w, r)
	if !ok {
		return
	}

	upload, err := productUploadFromForm(r)
	if err != nil {
		apierrors.ValidationError(w, "Некорректная форма дерева: "+err.Error())
		return
	}
	if err := h.validator.Product(upload.Product); err != nil {
		h.writeServiceError(w, err)
		return
	}

	created, err := client.CreateProduct(r.Context(), upload)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.notices.Publish(service.NoticeSuccess, "Đã tạo sản phẩm mới")
	writeJSON(w, http.StatusCreated, created)
}

// UpdateProduct обрабатывает PATCH /api/v1/products/{id}.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	client, ok := h.callerClient(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	upload, err := productUploadFromForm(r)
	if err != nil {
		apierrors.ValidationError(w, "Некорректная форма дерева: "+err.Error())
		return
	}

	updated, err := client.UpdateProduct(r.Context(), id, upload)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.notices.Publish(service.NoticeSuccess, "Đã cập nhật sản phẩm")
	writeJSON(w, http.StatusOK, updated)
}

// DeleteProduct обрабатывает DELETE /api/v1/products/{id}.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	client, ok := h.callerClient(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	if err := client.DeleteProduct(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.notices.Publish(service.NoticeSuccess, "Đã xoá sản phẩm")
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}
