package auth

import (
	"errors"
	"net/http"

	"github.com/vet360/vet360/internal/shared"
)

// Error codes reported to clients alongside the localized message.
const (
	CodeInvalidCredential   = "auth/invalid-credential"
	CodeUserDisabled        = "auth/user-disabled"
	CodeNetworkFailed       = "auth/network-request-failed"
	CodeEmailInUse          = "auth/email-already-in-use"
	CodeRequiresRecentLogin = "auth/requires-recent-login"
	CodeOperationNotAllowed = "auth/operation-not-allowed"
	CodeInvalidEmail        = "auth/invalid-email"
	CodeWeakPassword        = "auth/weak-password"
	CodeTooManyRequests     = "auth/too-many-requests"
	CodeInternal            = "auth/internal-error"
)

var messages = map[string]string{
	CodeInvalidCredential:   "Credenciales inválidas. Verifica tu correo y contraseña.",
	CodeUserDisabled:        "Esta cuenta ha sido deshabilitada.",
	CodeNetworkFailed:       "Error de conexión. Verifica tu internet.",
	CodeEmailInUse:          "Este correo ya está registrado. Intenta iniciar sesión.",
	CodeRequiresRecentLogin: "Esta acción requiere autenticación reciente. Vuelve a iniciar sesión.",
	CodeOperationNotAllowed: "Operación no permitida. Contacta al administrador.",
	CodeInvalidEmail:        "El formato del correo electrónico es incorrecto.",
	CodeWeakPassword:        "La contraseña debe tener al menos 6 caracteres.",
	CodeTooManyRequests:     "Demasiados intentos fallidos. Intenta más tarde.",
}

// Code maps an error to its client-facing code.
func Code(err error) string {
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials):
		return CodeInvalidCredential
	case errors.Is(err, shared.ErrAccountDisabled):
		return CodeUserDisabled
	case errors.Is(err, shared.ErrStoreUnavailable):
		return CodeNetworkFailed
	case errors.Is(err, shared.ErrConflict):
		return CodeEmailInUse
	case errors.Is(err, shared.ErrNotAuthenticated):
		return CodeRequiresRecentLogin
	case errors.Is(err, shared.ErrForbidden):
		return CodeOperationNotAllowed
	default:
		return CodeInternal
	}
}

// Message returns the Spanish message shown for code.
func Message(code string) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return "Error inesperado (" + code + "). Contacta al soporte técnico."
}

// Status returns the HTTP status used when reporting code.
func Status(code string) int {
	switch code {
	case CodeInvalidCredential, CodeRequiresRecentLogin:
		return http.StatusUnauthorized
	case CodeUserDisabled, CodeOperationNotAllowed:
		return http.StatusForbidden
	case CodeNetworkFailed:
		return http.StatusServiceUnavailable
	case CodeEmailInUse:
		return http.StatusConflict
	case CodeInvalidEmail, CodeWeakPassword:
		return http.StatusUnprocessableEntity
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
