package prescription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rxdesk/rxdesk/internal/domain/reference"
	"github.com/rxdesk/rxdesk/internal/platform/auth"
	"github.com/rxdesk/rxdesk/internal/platform/events"
	"github.com/rxdesk/rxdesk/internal/platform/metrics"
	"github.com/rxdesk/rxdesk/internal/platform/notification"
)

const (
	defaultSuccessTTL = 3 * time.Second
	defaultErrorTTL   = 5 * time.Second
)

// Service owns the lookup snapshot and the open editor sessions. It is the
// parent context of every editor: it reloads the lists after writes, posts
// notices and publishes change events.
type Service struct {
	catalog  reference.Catalog
	store    Store
	sessions *Sessions
	notices  *notification.Board
	bus      events.Bus
	logger   zerolog.Logger
	origin   string
	now      func() time.Time

	successTTL time.Duration
	errorTTL   time.Duration

	mu   sync.RWMutex
	snap *Snapshot
}

func NewService(
	catalog reference.Catalog,
	store Store,
	sessions *Sessions,
	notices *notification.Board,
	bus events.Bus,
	logger zerolog.Logger,
) *Service {
	return &Service{
		catalog:    catalog,
		store:      store,
		sessions:   sessions,
		notices:    notices,
		bus:        bus,
		logger:     logger.With().Str("component", "prescription").Logger(),
		origin:     uuid.New().String(),
		now:        time.Now,
		successTTL: defaultSuccessTTL,
		errorTTL:   defaultErrorTTL,
	}
}

// SetNoticeTTLs overrides how long success and error notices stay visible.
func (s *Service) SetNoticeTTLs(success, failure time.Duration) {
	s.successTTL = success
	s.errorTTL = failure
}

// Origin identifies this instance on the event bus.
func (s *Service) Origin() string {
	return s.origin
}

// Reload refetches the reference lists and every stored prescription and
// swaps them in as one snapshot. Open editors pick it up on their next
// conflict check.
func (s *Service) Reload(ctx context.Context) error {
	ref, err := reference.LoadSnapshot(ctx, s.catalog)
	if err != nil {
		metrics.SnapshotReloads.WithLabelValues(metrics.OutcomeFailure).Inc()
		return fmt.Errorf("reload snapshot: %w", err)
	}
	list, err := s.store.ListPrescriptions(ctx)
	if err != nil {
		metrics.SnapshotReloads.WithLabelValues(metrics.OutcomeFailure).Inc()
		return fmt.Errorf("reload snapshot: list prescriptions: %w", err)
	}
	s.mu.Lock()
	s.snap = &Snapshot{Reference: ref, Prescriptions: list}
	s.mu.Unlock()
	metrics.SnapshotReloads.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return nil
}

// Snapshot returns the current snapshot, loading it on first use.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, nil
}

// current is the snapshot source handed to editors. It never loads.
func (s *Service) current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// ListPrescriptions returns the prescriptions of the current snapshot,
// newest first.
func (s *Service) ListPrescriptions(ctx context.Context) ([]Prescription, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Prescriptions, nil
}

// -- Sessions --

// OpenAdd starts an add session.
func (s *Service) OpenAdd(ctx context.Context) (*Session, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	ed := NewEditor(s.store)
	ed.Follow(s.current)
	if err := ed.OpenAdd(snap, s.now()); err != nil {
		return nil, err
	}
	return s.track(s.sessions.Add(auth.UserIDFromContext(ctx), ed)), nil
}

// OpenEdit starts an edit session for a stored prescription.
func (s *Service) OpenEdit(ctx context.Context, id int64) (*Session, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	existing, ok := snap.Prescription(id)
	if !ok {
		return nil, ErrPrescriptionMissing
	}
	ed := NewEditor(s.store)
	ed.Follow(s.current)
	if err := ed.OpenEdit(snap, existing); err != nil {
		return nil, err
	}
	return s.track(s.sessions.Add(auth.UserIDFromContext(ctx), ed)), nil
}

func (s *Service) track(sess *Session) *Session {
	metrics.DraftSessionsActive.Set(float64(s.sessions.Len()))
	s.logger.Debug().Str("draft_id", sess.ID.String()).Msg("draft opened")
	return sess
}

// Session returns the draft session id if it belongs to the user in ctx.
func (s *Service) Session(ctx context.Context, id uuid.UUID) (*Session, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	if sess.Owner != auth.UserIDFromContext(ctx) {
		return nil, ErrDraftForbidden
	}
	return sess, nil
}

// Cancel discards a draft and forgets its session.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return err
	}
	if err := sess.Editor.Cancel(); err != nil {
		return err
	}
	s.sessions.Remove(id)
	metrics.DraftSessionsActive.Set(float64(s.sessions.Len()))
	return nil
}

// SweepSessions removes idle sessions.
func (s *Service) SweepSessions() int {
	n := s.sessions.Sweep()
	metrics.DraftSessionsActive.Set(float64(s.sessions.Len()))
	if n > 0 {
		s.logger.Info().Int("removed", n).Msg("expired draft sessions swept")
	}
	return n
}

// -- Writes --

// Submit sends the draft of session id. confirmOverwrite answers the
// replace prompt when another prescription exists for the same pair.
//
// A successful submit closes the session, reloads the snapshot and posts a
// success notice. A remote failure leaves the session open with the draft
// intact and posts an error notice carrying the remote detail.
func (s *Service) Submit(ctx context.Context, id uuid.UUID, confirmOverwrite bool) (*SubmitResult, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	view := sess.Editor.View()
	log := s.logger.With().Str("draft_id", id.String()).Logger()
	if view.Draft != nil {
		log = log.With().Int64("doctor_id", view.Draft.DoctorID).Int64("patient_id", view.Draft.PatientID).Logger()
	}

	res, err := sess.Editor.Submit(ctx, func(Prescription) bool { return confirmOverwrite })
	if err != nil {
		var ve *ValidationError
		var re *RemoteError
		switch {
		case errors.As(err, &ve):
			metrics.PrescriptionSubmits.WithLabelValues(metrics.OutcomeInvalid).Inc()
			log.Debug().Str("field", ve.Field).Msg(ve.Message)
		case errors.Is(err, ErrOverwriteDeclined):
			metrics.PrescriptionSubmits.WithLabelValues(metrics.OutcomeDeclined).Inc()
			log.Info().Msg("overwrite declined")
		case errors.As(err, &re):
			metrics.PrescriptionSubmits.WithLabelValues(metrics.OutcomeFailure).Inc()
			log.Error().Str("detail", re.Detail()).Msg("failed to save prescription")
			s.notices.Post(notification.LevelError, "Failed to save prescription: "+re.Error(), s.errorTTL)
		}
		return nil, err
	}

	s.sessions.Remove(id)
	metrics.DraftSessionsActive.Set(float64(s.sessions.Len()))
	metrics.PrescriptionSubmits.WithLabelValues(metrics.OutcomeSuccess).Inc()
	log.Info().Bool("updated", res.Updated).Bool("replaced", res.Replaced != nil).Msg("prescription saved")
	s.notices.Post(notification.LevelSuccess, res.Message(), s.successTTL)

	s.afterWrite(ctx, events.ActionUpsert, func(e *events.Event) {
		if view.Draft != nil {
			e.DoctorID = view.Draft.DoctorID
			e.PatientID = view.Draft.PatientID
			if view.Draft.ID != nil {
				e.PrescriptionID = *view.Draft.ID
			}
		}
	})
	return res, nil
}

// DeletePrescription forwards a delete and refreshes the lists.
func (s *Service) DeletePrescription(ctx context.Context, id int64) error {
	if err := s.store.DeletePrescription(ctx, id); err != nil {
		metrics.PrescriptionDeletes.WithLabelValues(metrics.OutcomeFailure).Inc()
		s.logger.Error().Err(err).Int64("prescription_id", id).Msg("failed to delete prescription")
		s.notices.Post(notification.LevelError, "Failed to delete prescription: "+err.Error(), s.errorTTL)
		return &RemoteError{Op: "delete_prescription", Err: err}
	}
	metrics.PrescriptionDeletes.WithLabelValues(metrics.OutcomeSuccess).Inc()
	s.logger.Info().Int64("prescription_id", id).Msg("prescription deleted")
	s.notices.Post(notification.LevelSuccess, "Prescription deleted successfully", s.successTTL)
	s.afterWrite(ctx, events.ActionDelete, func(e *events.Event) {
		e.PrescriptionID = id
	})
	return nil
}

// afterWrite reloads the snapshot and announces the change. The write has
// already committed, so failures here are logged and not returned.
func (s *Service) afterWrite(ctx context.Context, action string, fill func(*events.Event)) {
	ctx = context.WithoutCancel(ctx)
	if err := s.Reload(ctx); err != nil {
		s.logger.Error().Err(err).Msg("failed to reload after write")
	}
	if s.bus == nil {
		return
	}
	ev := events.NewEvent(events.TypePrescriptionsChanged, action, s.origin)
	fill(&ev)
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish change event")
	}
}

// HandleEvent reloads the snapshot when another instance writes a
// prescription or anyone writes reference data.
func (s *Service) HandleEvent(ctx context.Context, ev events.Event) {
	switch {
	case ev.Type == events.TypeReferenceChanged:
	case ev.Type == events.TypePrescriptionsChanged && ev.Origin != s.origin:
	default:
		return
	}
	if err := s.Reload(ctx); err != nil {
		s.logger.Error().Err(err).Str("event_id", ev.ID).Msg("failed to reload after remote change")
	}
}

// Listen applies change events from the bus until ctx is done.
func (s *Service) Listen(ctx context.Context) error {
	ch, err := s.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to change events: %w", err)
	}
	go func() {
		for ev := range ch {
			s.HandleEvent(ctx, ev)
		}
	}()
	return nil
}
