package dispatch

import (
	"errors"
	"net/http"

	"github.com/HendryAvila/compass/internal/auth"
	"github.com/HendryAvila/compass/internal/graph"
	"github.com/HendryAvila/compass/internal/vault"
)

var (
	// ErrUnknownTool is returned for a tool name outside the catalog.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidArguments is returned when tool arguments fail to decode or
	// validate.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// Error codes surfaced to callers.
const (
	CodeInvalidArguments   = "invalid_arguments"
	CodeUnknownTool        = "unknown_tool"
	CodeNotFound           = "not_found"
	CodePassphraseRequired = "passphrase_required"
	CodeInvalidPassphrase  = "invalid_passphrase"
	CodeDecryptionFailed   = "decryption_failed"
	CodeUnauthorized       = "unauthorized"
	CodeInternal           = "internal"
)

// ErrorInfo is the structured, transport-neutral form of a failure.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

// Classify maps err onto the error taxonomy. Unrecognized errors are
// internal and their detail is not exposed.
func Classify(err error) ErrorInfo {
	switch {
	case errors.Is(err, ErrInvalidArguments):
		return ErrorInfo{CodeInvalidArguments, err.Error(), http.StatusBadRequest}
	case errors.Is(err, ErrUnknownTool):
		return ErrorInfo{CodeUnknownTool, err.Error(), http.StatusNotFound}
	case errors.Is(err, graph.ErrNotFound):
		return ErrorInfo{CodeNotFound, err.Error(), http.StatusNotFound}
	case errors.Is(err, vault.ErrPassphraseRequired):
		return ErrorInfo{CodePassphraseRequired, "this account has encryption enabled: a passphrase is required", http.StatusUnauthorized}
	case errors.Is(err, vault.ErrInvalidPassphrase):
		return ErrorInfo{CodeInvalidPassphrase, "the passphrase does not match this account", http.StatusForbidden}
	case errors.Is(err, vault.ErrDecryptionFailed):
		return ErrorInfo{CodeDecryptionFailed, "the stored graph could not be decrypted", http.StatusUnprocessableEntity}
	case errors.Is(err, auth.ErrUnauthorized):
		return ErrorInfo{CodeUnauthorized, "missing or unknown api key", http.StatusUnauthorized}
	default:
		return ErrorInfo{CodeInternal, "internal error", http.StatusInternalServerError}
	}
}
