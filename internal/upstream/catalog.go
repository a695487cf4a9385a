// catalog.go — операции над коллекциями каталога.
// Списки: GET /<entity>/list (постраничные, limit < 100 на стороне сервера).
// CRUD: POST /<entity>/, PATCH /<entity>/upd/<id>, DELETE /<entity>/del/<id>.
// Деревья создаются и обновляются multipart-формой с бинарными частями
// image и video.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/thientangreen/mirror-module/internal/domain/model"
)

// MaxPageLimit — максимальный размер страницы, который принимает каталог.
const MaxPageLimit = 99

// fetchList выполняет GET-запрос списка и разворачивает конверт.
func fetchList[T any](ctx context.Context, c *Client, path string) ([]T, *Paging, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, nil, fmt.Errorf("каталог вернул статус %d на %s: %s", resp.StatusCode, path, string(raw))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, nil, fmt.Errorf("декодирование ответа %s: %w", path, err)
	}

	items, err := decodeList[T](env)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, env.Pagings, nil
}

// listPath собирает путь списка с параметрами пагинации.
func listPath(entity string, page, limit int) string {
	return fmt.Sprintf("/%s/list?page=%d&limit=%d", entity, page, limit)
}

// --- Списки ---

// ListProducts возвращает страницу деревьев.
func (c *Client) ListProducts(ctx context.Context, page, limit int) ([]model.Product, *Paging, error) {
	return fetchList[model.Product](ctx, c, listPath("product", page, limit))
}

// ListFactories возвращает страницу питомников.
func (c *Client) ListFactories(ctx context.Context, page, limit int) ([]model.Factory, *Paging, error) {
	return fetchList[model.Factory](ctx, c, listPath("factory", page, limit))
}

// ListLocations возвращает страницу локаций.
func (c *Client) ListLocations(ctx context.Context, page, limit int) ([]model.Location, *Paging, error) {
	return fetchList[model.Location](ctx, c, listPath("location", page, limit))
}

// ListUsers возвращает страницу пользователей.
func (c *Client) ListUsers(ctx context.Context, page, limit int) ([]model.User, *Paging, error) {
	return fetchList[model.User](ctx, c, listPath("users", page, limit))
}

// --- Сужающие выборки ---

// ProductsByFactory возвращает деревья питомника по его названию.
func (c *Client) ProductsByFactory(ctx context.Context, nameFactory string) ([]model.Product, error) {
	path := "/product/list/by-factory?name_factory=" + url.QueryEscape(nameFactory)
	items, _, err := fetchList[model.Product](ctx, c, path)
	return items, err
}

// ProductsByLocal возвращает деревья локации по её названию.
func (c *Client) ProductsByLocal(ctx context.Context, nameLocal string) ([]model.Product, error) {
	path := "/product/list/by-local?name_local=" + url.QueryEscape(nameLocal)
	items, _, err := fetchList[model.Product](ctx, c, path)
	return items, err
}

// FactoriesByLocal возвращает питомники локации по её названию.
func (c *Client) FactoriesByLocal(ctx context.Context, nameLocal string) ([]model.Factory, error) {
	path := "/factory/list/by-local?name_local=" + url.QueryEscape(nameLocal)
	items, _, err := fetchList[model.Factory](ctx, c, path)
	return items, err
}

// --- Деревья (multipart) ---

// FilePart — бинарная часть multipart-формы (изображение или видео).
type FilePart struct {
	Filename string
	Reader   io.Reader
}

// ProductUpload — данные создания/обновления дерева.
// Image и Video опциональны: nil — часть не отправляется.
type ProductUpload struct {
	Product model.Product
	Image   *FilePart
	Video   *FilePart
}

// CreateProduct создаёт дерево multipart-формой.
func (c *Client) CreateProduct(ctx context.Context, upload ProductUpload) (*model.Product, error) {
	body, contentType, err := buildProductForm(upload)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPost, "/product/", body, contentType)
	if err != nil {
		return nil, err
	}

	var created model.Product
	if err := decodeEnvelope(resp, &created); err != nil {
		return nil, fmt.Errorf("CreateProduct: %w", err)
	}
	return &created, nil
}

// UpdateProduct обновляет дерево multipart-формой.
func (c *Client) UpdateProduct(ctx context.Context, id string, upload ProductUpload) (*model.Product, error) {
	body, contentType, err := buildProductForm(upload)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPatch, "/product/upd/"+url.PathEscape(id), body, contentType)
	if err != nil {
		return nil, err
	}

	var updated model.Product
	if err := decodeEnvelope(resp, &updated); err != nil {
		return nil, fmt.Errorf("UpdateProduct: %w", err)
	}
	return &updated, nil
}

// DeleteProduct удаляет дерево.
func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/product/del/"+url.PathEscape(id), nil, "")
	if err != nil {
		return err
	}
	if err := checkResponse(resp); err != nil {
		return fmt.Errorf("DeleteProduct: %w", err)
	}
	return nil
}

// buildProductForm собирает multipart-форму дерева.
func buildProductForm(upload ProductUpload) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	p := upload.Product
	fields := map[string]string{
		"title":            p.TitleValue(),
		"status":           p.StatusValue(),
		"describe_product": p.Describe,
		"factory_id":       p.FactoryID,
	}
	if p.Year != nil {
		fields["year_product"] = p.Year.Format("2006-01-02")
	}
	for name, val := range fields {
		if val == "" {
			continue
		}
		if err := w.WriteField(name, val); err != nil {
			return nil, "", fmt.Errorf("поле формы %s: %w", name, err)
		}
	}

	files := map[string]*FilePart{
		"image": upload.Image,
		"video": upload.Video,
	}
	for name, part := range files {
		if part == nil {
			continue
		}
		fw, err := w.CreateFormFile(name, part.Filename)
		if err != nil {
			return nil, "", fmt.Errorf("часть формы %s: %w", name, err)
		}
		if _, err := io.Copy(fw, part.Reader); err != nil {
			return nil, "", fmt.Errorf("запись части %s: %w", name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("закрытие multipart-формы: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// --- Питомники ---

// CreateFactory создаёт питомник.
func (c *Client) CreateFactory(ctx context.Context, factory model.Factory) (*model.Factory, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/factory/", factory)
	if err != nil {
		return nil, err
	}

	var created model.Factory
	if err := decodeEnvelope(resp, &created); err != nil {
		return nil, fmt.Errorf("CreateFactory: %w", err)
	}
	return &created, nil
}

// UpdateFactory обновляет питомник.
func (c *Client) UpdateFactory(ctx context.Context, id string, factory model.Factory) (*model.Factory, error) {
	resp, err := c.doJSON(ctx, http.MethodPatch, "/factory/upd/"+url.PathEscape(id), factory)
	if err != nil {
		return nil, err
	}

	var updated model.Factory
	if err := decodeEnvelope(resp, &updated); err != nil {
		return nil, fmt.Errorf("UpdateFactory: %w", err)
	}
	return &updated, nil
}

// DeleteFactory удаляет питомник.
func (c *Client) DeleteFactory(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/factory/del/"+url.PathEscape(id), nil, "")
	if err != nil {
		return err
	}
	if err := checkResponse(resp); err != nil {
		return fmt.Errorf("DeleteFactory: %w", err)
	}
	return nil
}

// --- Локации ---

// CreateLocation создаёт локацию.
func (c *Client) CreateLocation(ctx context.Context, location model.Location) (*model.Location, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/location/", location)
	if err != nil {
		return nil, err
	}

	var created model.Location
	if err := decodeEnvelope(resp, &created); err != nil {
		return nil, fmt.Errorf("CreateLocation: %w", err)
	}
	return &created, nil
}

// UpdateLocation обновляет локацию.
func (c *Client) UpdateLocation(ctx context.Context, id string, location model.Location) (*model.Location, error) {
	resp, err := c.doJSON(ctx, http.MethodPatch, "/location/upd/"+url.PathEscape(id), location)
	if err != nil {
		return nil, err
	}

	var updated model.Location
	if err := decodeEnvelope(resp, &updated); err != nil {
		return nil, fmt.Errorf("UpdateLocation: %w", err)
	}
	return &updated, nil
}

// DeleteLocation удаляет локацию.
func (c *Client) DeleteLocation(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/location/del/"+url.PathEscape(id), nil, "")
	if err != nil {
		return err
	}
	if err := checkResponse(resp); err != nil {
		return fmt.Errorf("DeleteLocation: %w", err)
	}
	return nil
}

// --- Пользователи ---

// CreateUser создаёт пользователя back-office.
func (c *Client) CreateUser(ctx context.Context, user model.User) (*model.User, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/users/", user)
	if err != nil {
		return nil, err
	}

	var created model.User
	if err := decodeEnvelope(resp, &created); err != nil {
		return nil, fmt.Errorf("CreateUser: %w", err)
	}
	return &created, nil
}

// UpdateUser обновляет пользователя back-office.
func (c *Client) UpdateUser(ctx context.Context, id string, user model.User) (*model.User, error) {
	resp, err := c.doJSON(ctx, http.MethodPatch, "/users/upd/"+url.PathEscape(id), user)
	if err != nil {
		return nil, err
	}

	var updated model.User
	if err := decodeEnvelope(resp, &updated); err != nil {
		return nil, fmt.Errorf("UpdateUser: %w", err)
	}
	return &updated, nil
}

// DeleteUser удаляет пользователя back-office.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/users/del/"+url.PathEscape(id), nil, "")
	if err != nil {
		return err
	}
	if err := checkResponse(resp); err != nil {
		return fmt.Errorf("DeleteUser: %w", err)
	}
	return nil
}
