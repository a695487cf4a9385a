// envelope.go — конверт ответов каталога и развёртка вложенных списков.
// Сервер каталога отдаёт {"data": ..., "pagings": ..., "access_token": ...},
// при этом списки могут лежать в data как массив, либо быть вложенными
// под ключами items, products, factories или data.
package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// envelope — стандартный конверт ответа каталога.
type envelope struct {
	Data         json.RawMessage `json:"data"`
	Pagings      *Paging         `json:"pagings"`
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
}

// Paging — параметры пагинации каталога.
type Paging struct {
	Limit int   `json:"limit"`
	Page  int   `json:"page"`
	Total int64 `json:"total"`
}

// Ключи, под которыми сервер каталога вкладывает списки.
var listKeys = []string{"items", "products", "factories", "data"}

// unwrapList приводит data к JSON-массиву, разворачивая вложенность.
// null и отсутствие data трактуются как пустой список.
func unwrapList(raw json.RawMessage) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return json.RawMessage("[]"), nil
	}
	if raw[0] == '[' {
		return raw, nil
	}
	if raw[0] == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("развёртка списка: %w", err)
		}
		for _, key := range listKeys {
			if nested, ok := obj[key]; ok {
				return unwrapList(nested)
			}
		}
		return nil, fmt.Errorf("развёртка списка: объект не содержит известных ключей %v", listKeys)
	}
	return nil, fmt.Errorf("развёртка списка: неожиданный формат data")
}

// decodeList декодирует конверт со списком элементов T.
func decodeList[T any](env envelope) ([]T, error) {
	raw, err := unwrapList(env.Data)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("декодирование списка: %w", err)
	}
	return items, nil
}
