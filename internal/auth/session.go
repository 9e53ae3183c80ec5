package auth

import (
	"context"
	"sync"
	"time"

	"asistencia.org/internal/ids"
	"asistencia.org/internal/obs"
)

const sessionWriteTimeout = 5 * time.Second

// SessionRecorder writes session audit records without blocking the caller.
// Nothing in the authorization path reads them back.
type SessionRecorder struct {
	store SessionStore
	wg    sync.WaitGroup
}

func NewSessionRecorder(store SessionStore) *SessionRecorder {
	return &SessionRecorder{store: store}
}

// Record persists rec in the background. Failures are logged and counted only.
func (r *SessionRecorder) Record(ctx context.Context, rec SessionRecord) {
	if r == nil || r.store == nil {
		return
	}
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	ctx = context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		wctx, cancel := context.WithTimeout(ctx, sessionWriteTimeout)
		defer cancel()
		if err := r.store.RecordSession(wctx, rec); err != nil {
			obs.RecordSessionWriteFailure()
			obs.Logger().Warn().Err(err).
				Str("owner_id", rec.OwnerID).
				Str("token_id", rec.TokenID).
				Msg("session record dropped")
		}
	}()
}

// Wait blocks until in-flight records finish. Used on shutdown and in tests.
func (r *SessionRecorder) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}
