package service

import (
	"errors"
	"regexp"
	"strings"

	"account_service/internal/models"

	validation "github.com/go-ozzo/ozzo-validation"
)

const (
	minPasswordLength = 6
	// bcrypt only reads the first 72 bytes of its input.
	maxPasswordBytes = 72
)

var emailRegexp = regexp.MustCompile(`^(([^<>()\[\]\\.,:\s@"]+(\.[^<>()\[\]\\.,:\s@"]+)*)|(".+"))@((\[[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\])|(([a-zA-Z\-0-9]+\.)+[a-zA-Z]{2,}))$`)

type RegisterInput struct {
	Names    string
	Surname  string
	Email    string
	Password string
	Role     models.Role
}

func (in *RegisterInput) normalize() {
	in.Names = strings.TrimSpace(in.Names)
	in.Surname = strings.TrimSpace(in.Surname)
	in.Email = normalizeEmail(in.Email)
	in.Role = models.Role(strings.TrimSpace(string(in.Role)))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateFields runs the checks that come before the uniqueness lookup:
// presence of every field, then the email format.
func (in *RegisterInput) validateFields(withRole bool) *Error {
	fields := []*validation.FieldRules{
		validation.Field(&in.Names, validation.Required),
		validation.Field(&in.Surname, validation.Required),
		validation.Field(&in.Email, validation.Required),
		validation.Field(&in.Password, validation.Required),
	}
	if withRole {
		fields = append(fields, validation.Field(&in.Role, validation.Required))
	}

	if err := validation.ValidateStruct(in, fields...); err != nil {
		return newError(KindValidation, MsgMissingFields, err)
	}

	if err := validation.Validate(in.Email, validation.Match(emailRegexp)); err != nil {
		return newError(KindValidation, MsgInvalidEmail, err)
	}

	return nil
}

func validatePassword(password string) *Error {
	err := validation.Validate(password,
		validation.Required,
		validation.Length(minPasswordLength, 0),
	)
	if err != nil {
		return newError(KindValidation, MsgShortPassword, err)
	}

	if err := validation.Validate(password, validation.By(maxBytes(maxPasswordBytes))); err != nil {
		return newError(KindValidation, MsgLongPassword, err)
	}

	return nil
}

func maxBytes(limit int) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if len(s) > limit {
			return errors.New("too long")
		}
		return nil
	}
}

func validateRole(role models.Role) *Error {
	err := validation.Validate(string(role),
		validation.Required,
		validation.By(func(value interface{}) error {
			if !role.Valid() {
				return errors.New("unknown role")
			}
			return nil
		}),
	)
	if err != nil {
		return newError(KindValidation, MsgInvalidRole, err)
	}
	return nil
}
