package service

import (
	"errors"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindInvalidToken
	KindAuthentication
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInvalidToken:
		return "invalid_token"
	case KindAuthentication:
		return "authentication"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Client-facing messages.
const (
	MsgMissingFields   = "Por favor llene todos los campos. "
	MsgInvalidEmail    = "Correo electrónico inválido. "
	MsgEmailExists     = "Este correo electrónico ya existe. "
	MsgShortPassword   = "La contraseña debe contar con mínimo 6 caracteres. "
	MsgLongPassword    = "La contraseña debe contar con máximo 72 bytes. "
	MsgInvalidRole     = "Rol inválido. "
	MsgBadCredentials  = "Usuario o contraseña incorrectos"
	MsgLoginAgain      = "Please login now!"
	MsgInvalidLink     = "El enlace de activación es inválido o expiró. "
	MsgEmailNotExists  = "Este correo electrónico no existe. "
	MsgUserNotFound    = "Usuario no encontrado. "
	MsgAccessDenied    = "Admin resources access denied."
	MsgInvalidAuthHdr  = "Invalid Authentication."
)

// Error is what every exported service operation returns on failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// internal surfaces the wrapped error text to the client.
func internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: err.Error(), Err: err}
}

// KindOf reports the Kind of err, KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
