package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/service"
	"github.com/aussiebroadwan/mfagate/pkg/mfasdk"
)

// writeServiceError maps service errors onto the API error envelope. The
// mapping is deliberately coarse for code rejections: wrong, replayed, and
// expired codes all surface as the same invalid_code response.
func writeServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	var locked *service.LockedError
	if errors.As(err, &locked) {
		mfasdk.NewLockedError(locked.Until.UTC().Format(time.RFC3339)).WriteError(w)
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidCode):
		mfasdk.ErrInvalidCode.WriteError(w)
	case errors.Is(err, service.ErrNotEnrolled):
		mfasdk.ErrNotEnrolled.WriteError(w)
	case errors.Is(err, service.ErrAlreadyEnrolled):
		mfasdk.ErrAlreadyEnrolled.WriteError(w)
	case errors.Is(err, service.ErrBypassDenied):
		mfasdk.ErrBypassDenied.WriteError(w)
	case errors.Is(err, service.ErrReasonRequired):
		mfasdk.ErrInvalidRequest.WriteError(w)
	case errors.Is(err, service.ErrStorageUnavailable):
		mfasdk.ErrServiceUnavailable.WriteError(w)
	default:
		log.Error("unhandled service error", "err", err)
		mfasdk.ErrServerError.WriteError(w)
	}
}
