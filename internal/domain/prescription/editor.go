package prescription

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rxdesk/rxdesk/internal/domain/reference"
)

type State int

const (
	StateClosed State = iota
	StateEditing
	StateSubmitting
	StateEditingWithError
)

func (s State) String() string {
	switch s {
	case StateEditing:
		return "editing"
	case StateSubmitting:
		return "submitting"
	case StateEditingWithError:
		return "editing_with_error"
	default:
		return "closed"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "closed":
		*s = StateClosed
	case "editing":
		*s = StateEditing
	case "submitting":
		*s = StateSubmitting
	case "editing_with_error":
		*s = StateEditingWithError
	default:
		return fmt.Errorf("unknown editor state %q", b)
	}
	return nil
}

// ConfirmFunc is asked before a submit replaces another prescription for
// the same doctor and patient. Returning false aborts the submit.
type ConfirmFunc func(existing Prescription) bool

// SubmitResult describes a successful submit.
type SubmitResult struct {
	Updated  bool          `json:"updated"`
	Replaced *Prescription `json:"replaced,omitempty"`
}

// Message is the text of the success notice.
func (r *SubmitResult) Message() string {
	msg := "Prescription added successfully"
	if r.Updated {
		msg = "Prescription updated successfully"
	}
	if r.Replaced != nil {
		msg += "; replaced the existing prescription for this doctor and patient"
	}
	return msg
}

// View is a consistent copy of an editor's state.
type View struct {
	State     State         `json:"state"`
	Draft     *Draft        `json:"draft,omitempty"`
	Labels    *Labels       `json:"labels,omitempty"`
	Warning   string        `json:"warning,omitempty"`
	Conflict  *Prescription `json:"conflict,omitempty"`
	LastError string        `json:"last_error,omitempty"`
}

// Labels are display names for the draft's selections. A selection that is
// missing from the reference lists gets an empty label.
type Labels struct {
	Doctor   string   `json:"doctor,omitempty"`
	Patient  string   `json:"patient,omitempty"`
	Pharmacy string   `json:"pharmacy,omitempty"`
	Drugs    []string `json:"drugs"`
}

func labelDraft(ref *reference.Snapshot, d *Draft) *Labels {
	l := &Labels{Drugs: make([]string, len(d.Items))}
	if doc, ok := ref.Doctor(d.DoctorID); ok {
		l.Doctor = doc.Name
	}
	if pat, ok := ref.Patient(d.PatientID); ok {
		l.Patient = pat.Name
	}
	if ref.HasPharmacy(d.Pharmacy) {
		l.Pharmacy = d.Pharmacy.String()
	}
	for i, it := range d.Items {
		if ref.HasDrug(it.Drug) {
			l.Drugs[i] = it.Drug.String()
		}
	}
	return l
}

const warnReplace = "A prescription already exists for this doctor and patient. Saving will replace it."

// Editor composes a single prescription draft and submits it through a
// Store. It is safe for concurrent use; the remote call runs without the
// lock held while the editor is in StateSubmitting, and every other
// operation is rejected until it returns.
type Editor struct {
	mu       sync.Mutex
	store    Store
	source   func() *Snapshot
	snap     *Snapshot
	state    State
	draft    *Draft
	conflict *Prescription
	lastErr  string
}

func NewEditor(store Store) *Editor {
	return &Editor{store: store}
}

// Follow makes the editor check conflicts against the latest snapshot
// returned by src instead of the one it was opened with. A nil result from
// src keeps the previous snapshot.
func (e *Editor) Follow(src func() *Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.source = src
}

// snapshot must be called with e.mu held.
func (e *Editor) snapshot() *Snapshot {
	if e.source != nil {
		if snap := e.source(); snap != nil {
			e.snap = snap
		}
	}
	return e.snap
}

// open reports whether the draft can still change. Must be called with
// e.mu held.
func (e *Editor) open() bool {
	return e.state == StateEditing || e.state == StateEditingWithError
}

// OpenAdd starts a fresh draft dated today with one blank line item.
func (e *Editor) OpenAdd(snap *Snapshot, today time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateSubmitting {
		return ErrSubmitInFlight
	}
	e.reset(snap, &Draft{
		Date:  today.Format(DateLayout),
		Items: []LineItem{blankItem()},
	})
	return nil
}

// OpenEdit starts a draft hydrated from a stored prescription.
func (e *Editor) OpenEdit(snap *Snapshot, existing Prescription) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateSubmitting {
		return ErrSubmitInFlight
	}
	id := existing.ID
	items := append([]LineItem(nil), existing.Items...)
	if len(items) == 0 {
		items = []LineItem{blankItem()}
	}
	e.reset(snap, &Draft{
		ID:        &id,
		DoctorID:  existing.DoctorID,
		PatientID: existing.PatientID,
		Pharmacy:  existing.Pharmacy,
		Date:      existing.Date,
		Items:     items,
	})
	e.refreshConflict()
	return nil
}

func (e *Editor) reset(snap *Snapshot, d *Draft) {
	e.snap = snap
	e.draft = d
	e.state = StateEditing
	e.conflict = nil
	e.lastErr = ""
}

// mutate runs fn against the open draft. A successful mutation moves
// StateEditingWithError back to StateEditing.
func (e *Editor) mutate(fn func(d *Draft) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateClosed:
		return ErrNotOpen
	case StateSubmitting:
		return ErrSubmitInFlight
	}
	if err := fn(e.draft); err != nil {
		return err
	}
	e.state = StateEditing
	e.lastErr = ""
	return nil
}

func (e *Editor) item(d *Draft, i int) (*LineItem, error) {
	if i < 0 || i >= len(d.Items) {
		return nil, ErrIndexOutOfRange
	}
	return &d.Items[i], nil
}

func (e *Editor) SetDoctor(id int64) error {
	return e.mutate(func(d *Draft) error {
		d.DoctorID = id
		e.refreshConflict()
		return nil
	})
}

func (e *Editor) SetPatient(id int64) error {
	return e.mutate(func(d *Draft) error {
		d.PatientID = id
		e.refreshConflict()
		return nil
	})
}

// SetPharmacy replaces both halves of the pharmacy key at once.
func (e *Editor) SetPharmacy(p reference.Pharmacy) error {
	return e.mutate(func(d *Draft) error {
		d.Pharmacy = p
		return nil
	})
}

// SetDate accepts a YYYY-MM-DD calendar date. An empty value clears the
// date; anything else that does not parse is rejected.
func (e *Editor) SetDate(iso string) error {
	return e.mutate(func(d *Draft) error {
		if iso != "" {
			if _, err := parseDate(iso); err != nil {
				return ErrInvalidDate
			}
		}
		d.Date = iso
		return nil
	})
}

func (e *Editor) SetLineItem(i int, drug reference.Drug) error {
	return e.mutate(func(d *Draft) error {
		it, err := e.item(d, i)
		if err != nil {
			return err
		}
		it.Drug = drug
		return nil
	})
}

// SetQuantity stores ParseQuantity(raw) on line item i.
func (e *Editor) SetQuantity(i int, raw string) error {
	return e.mutate(func(d *Draft) error {
		it, err := e.item(d, i)
		if err != nil {
			return err
		}
		it.Quantity = ParseQuantity(raw)
		return nil
	})
}

func (e *Editor) AddLineItem() error {
	return e.mutate(func(d *Draft) error {
		d.Items = append(d.Items, blankItem())
		return nil
	})
}

// RemoveLineItem refuses to remove the only remaining line item.
func (e *Editor) RemoveLineItem(i int) error {
	return e.mutate(func(d *Draft) error {
		if _, err := e.item(d, i); err != nil {
			return err
		}
		if len(d.Items) == 1 {
			return &ValidationError{Field: "items", Message: msgLastItem}
		}
		d.Items = append(d.Items[:i], d.Items[i+1:]...)
		return nil
	})
}

// refreshConflict must be called with e.mu held.
func (e *Editor) refreshConflict() {
	if e.draft == nil {
		e.conflict = nil
		return
	}
	e.conflict = e.snapshot().Conflict(e.draft.DoctorID, e.draft.PatientID, e.draft.ID)
}

// Warning returns the advisory replace warning, or "".
func (e *Editor) Warning() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open() {
		e.refreshConflict()
	}
	if e.conflict == nil {
		return ""
	}
	return warnReplace
}

func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Editor) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open() {
		e.refreshConflict()
	}
	v := View{State: e.state, LastError: e.lastErr}
	if e.draft != nil {
		v.Draft = e.draft.clone()
		if snap := e.snapshot(); snap != nil && snap.Reference != nil {
			v.Labels = labelDraft(snap.Reference, v.Draft)
		}
	}
	if e.conflict != nil {
		cp := *e.conflict
		v.Conflict = &cp
		v.Warning = warnReplace
	}
	return v
}

// Validate checks the open draft without changing state.
func (e *Editor) Validate() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateClosed {
		return ErrNotOpen
	}
	return Validate(e.draft)
}

// Submit validates the draft and sends it to the store in one call. When
// another prescription exists for the same pair, confirm decides whether
// to go ahead; a nil confirm declines. The store call is detached from
// ctx cancellation so a dropped request cannot strand the editor in
// StateSubmitting.
//
// On success the editor closes and the draft is discarded. On a store
// failure the editor moves to StateEditingWithError with the draft intact
// and the returned error is a *RemoteError.
func (e *Editor) Submit(ctx context.Context, confirm ConfirmFunc) (*SubmitResult, error) {
	e.mu.Lock()
	switch e.state {
	case StateClosed:
		e.mu.Unlock()
		return nil, ErrNotOpen
	case StateSubmitting:
		e.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	if err := Validate(e.draft); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.refreshConflict()
	prev := e.state
	e.state = StateSubmitting
	draft := e.draft.clone()
	var conflict *Prescription
	if e.conflict != nil {
		cp := *e.conflict
		conflict = &cp
	}
	e.mu.Unlock()

	if conflict != nil && (confirm == nil || !confirm(*conflict)) {
		e.mu.Lock()
		e.state = prev
		e.mu.Unlock()
		return nil, ErrOverwriteDeclined
	}

	err := e.store.UpsertPrescription(context.WithoutCancel(ctx), draft.ToUpsertRequest())

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.state = StateEditingWithError
		e.lastErr = err.Error()
		return nil, &RemoteError{Op: "add_prescription", Err: err}
	}
	e.state = StateClosed
	e.draft = nil
	e.conflict = nil
	e.lastErr = ""
	return &SubmitResult{Updated: draft.IsEdit(), Replaced: conflict}, nil
}

// Cancel discards the draft and closes the editor.
func (e *Editor) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateSubmitting {
		return ErrSubmitInFlight
	}
	e.state = StateClosed
	e.draft = nil
	e.conflict = nil
	e.lastErr = ""
	return nil
}
