// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — запись не найдена в зеркале или каталоге.
	ErrNotFound = errors.New("запись не найдена")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrUnauthorized — отсутствует или отклонён токен авторизации.
	ErrUnauthorized = errors.New("авторизация отклонена")
	// ErrMirrorLoading — зеркало ещё не загружено из каталога.
	ErrMirrorLoading = errors.New("зеркало каталога ещё загружается")
)
