package audit

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/mfagate/internal/mfa/domain"
)

// Fanout delivers each event to every recorder. The first recorder is the
// durable one: its error is returned. Later recorders are best effort and
// only logged, so an unavailable broker never blocks verification.
type Fanout struct {
	recorders []Recorder
	logger    *slog.Logger
}

func NewFanout(logger *slog.Logger, recorders ...Recorder) *Fanout {
	return &Fanout{recorders: recorders, logger: logger}
}

func (f *Fanout) Record(ctx context.Context, event domain.AuditEvent) error {
	var firstErr error
	for i, r := range f.recorders {
		err := r.Record(ctx, event)
		if err == nil {
			continue
		}
		if i == 0 {
			firstErr = err
			continue
		}
		f.logger.WarnContext(ctx, "secondary audit recorder failed",
			"kind", event.Kind, "error", err)
	}
	return firstErr
}
