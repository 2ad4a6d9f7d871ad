package httpadapter

import (
	"errors"
	"net/http"

	"github.com/kirillkom/pdf-processor/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case domain.IsKind(err, domain.ErrConfig):
		return http.StatusInternalServerError
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrAuth), domain.IsKind(err, domain.ErrProcessing):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// userMessage is the text shown on the page for a failed action.
func userMessage(state domain.ActionState, err error) string {
	switch state {
	case domain.StateConfigError:
		return "Configurazione mancante: " + errText(err)
	case domain.StateRejected:
		return "Il file caricato non è un PDF valido: " + errText(err)
	case domain.StateAuthFailed:
		return "Errore autenticazione: " + errText(err)
	case domain.StateProcessingFailed:
		if domain.IsKind(err, domain.ErrParse) {
			return "Risposta del servizio non valida: " + errText(err)
		}
		return "Errore durante l'elaborazione: " + errText(err)
	default:
		return errText(err)
	}
}

func errText(err error) string {
	if err == nil {
		return "errore sconosciuto"
	}
	return err.Error()
}
