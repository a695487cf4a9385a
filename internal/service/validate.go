// validate.go — валидация входных данных перед передачей в каталог.
//
// Правила повторяют серверные ограничения каталога, чтобы отклонять
// заведомо некорректные запросы без обращения к сети:
//   - account — почта в домене @thientan.com
//   - password — минимум 8 символов, заглавная буква, цифра, спецсимвол
package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/thientangreen/mirror-module/internal/domain/model"
)

var (
	passwordUpper   = regexp.MustCompile(`[A-Z]`)
	passwordNumber  = regexp.MustCompile(`[0-9]`)
	passwordSpecial = regexp.MustCompile(`[!@#~$%^&*()_+|<>?{}\[\]\\\/]`)
)

// Validator проверяет входные данные операций каталога.
type Validator struct {
	v *validator.Validate
}

// NewValidator создаёт валидатор с правилами каталога.
func NewValidator() *Validator {
	v := validator.New()

	_ = v.RegisterValidation("thientan_email", func(fl validator.FieldLevel) bool {
		return strings.HasSuffix(fl.Field().String(), "@thientan.com")
	})

	_ = v.RegisterValidation("secure_password", func(fl validator.FieldLevel) bool {
		password := fl.Field().String()
		if len(password) < 8 {
			return false
		}
		return passwordUpper.MatchString(password) &&
			passwordNumber.MatchString(password) &&
			passwordSpecial.MatchString(password)
	})

	return &Validator{v: v}
}

type signInInput struct {
	Account  string `validate:"required,thientan_email"`
	Password string `validate:"required,secure_password"`
}

// SignIn проверяет учётные данные входа.
func (val *Validator) SignIn(account, password string) error {
	return val.wrap(val.v.Struct(signInInput{Account: account, Password: password}))
}

type userInput struct {
	FullName string `validate:"required"`
	Account  string `validate:"required,thientan_email"`
	Password string `validate:"omitempty,secure_password"`
	Role     string `validate:"omitempty,oneof=root admin user guest"`
}

// User проверяет данные учётной записи для создания или изменения.
// requirePassword включает обязательность пароля (создание записи).
// Каталог хранит роли в верхнем регистре, поэтому сверка без учёта регистра.
func (val *Validator) User(u model.User, requirePassword bool) error {
	in := userInput{
		FullName: strings.TrimSpace(u.FullName),
		Account:  u.Account,
		Password: u.Password,
		Role:     strings.ToLower(u.RoleValue()),
	}
	if requirePassword && in.Password == "" {
		return fmt.Errorf("%w: пароль обязателен", ErrValidation)
	}
	return val.wrap(val.v.Struct(in))
}

type userPatchInput struct {
	Account  string `validate:"omitempty,thientan_email"`
	Password string `validate:"omitempty,secure_password"`
	Role     string `validate:"omitempty,oneof=root admin user guest"`
}

// UserPatch проверяет частичное изменение учётной записи:
// валидируются только заполненные поля.
func (val *Validator) UserPatch(u model.User) error {
	return val.wrap(val.v.Struct(userPatchInput{
		Account:  u.Account,
		Password: u.Password,
		Role:     strings.ToLower(u.RoleValue()),
	}))
}

type productInput struct {
	Title  string `validate:"required"`
	Status string `validate:"required"`
}

// Product проверяет обязательные поля дерева.
func (val *Validator) Product(p model.Product) error {
	return val.wrap(val.v.Struct(productInput{
		Title:  strings.TrimSpace(p.TitleValue()),
		Status: strings.TrimSpace(p.StatusValue()),
	}))
}

// Factory проверяет обязательные поля питомника.
func (val *Validator) Factory(f model.Factory) error {
	if strings.TrimSpace(f.NameValue()) == "" {
		return fmt.Errorf("%w: название питомника обязательно", ErrValidation)
	}
	return nil
}

// Location проверяет обязательные поля локации.
func (val *Validator) Location(l model.Location) error {
	if strings.TrimSpace(l.NameValue()) == "" {
		return fmt.Errorf("%w: название локации обязательно", ErrValidation)
	}
	return nil
}

// wrap приводит ошибки библиотеки валидации к ErrValidation
// с перечислением полей.
func (val *Validator) wrap(err error) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(fields, ", "))
}
