package reference

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rxdesk/rxdesk/internal/platform/events"
	"github.com/rxdesk/rxdesk/internal/platform/metrics"
	"github.com/rxdesk/rxdesk/internal/platform/notification"
)

const (
	defaultSuccessTTL = 3 * time.Second
	defaultErrorTTL   = 5 * time.Second
)

// Entity names, used as metric labels and on change events.
const (
	EntityDoctor       = "doctor"
	EntityPatient      = "patient"
	EntityPharmacy     = "pharmacy"
	EntityCompany      = "pharmaceutical_company"
	EntityDrug         = "drug"
	EntityPharmacyDrug = "pharmacy_drug"
	EntityContract     = "pharmacy_contract"
)

var entityLabels = map[string]string{
	EntityDoctor:       "Doctor",
	EntityPatient:      "Patient",
	EntityPharmacy:     "Pharmacy",
	EntityCompany:      "Company",
	EntityDrug:         "Drug",
	EntityPharmacyDrug: "Pharmacy drug",
	EntityContract:     "Pharmacy contract",
}

var pastTense = map[string]string{
	events.ActionAdd:    "added",
	events.ActionUpdate: "updated",
	events.ActionDelete: "deleted",
}

// Service fronts the registry for the admin screens. Every write posts a
// notice; successful writes publish a reference.changed event so the
// prescription snapshot is reloaded.
type Service struct {
	registry Registry
	notices  *notification.Board
	bus      events.Bus
	logger   zerolog.Logger
	origin   string

	successTTL time.Duration
	errorTTL   time.Duration
}

func NewService(registry Registry, notices *notification.Board, bus events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		registry:   registry,
		notices:    notices,
		bus:        bus,
		logger:     logger.With().Str("component", "reference").Logger(),
		origin:     uuid.New().String(),
		successTTL: defaultSuccessTTL,
		errorTTL:   defaultErrorTTL,
	}
}

// SetNoticeTTLs overrides how long success and error notices stay visible.
func (s *Service) SetNoticeTTLs(success, failure time.Duration) {
	s.successTTL = success
	s.errorTTL = failure
}

// write runs one mutation. check is the result of local validation; a
// non-nil check stops the write before it reaches the database.
func (s *Service) write(ctx context.Context, entity, action, op string, check error, do func(context.Context) error) error {
	log := s.logger.With().Str("entity", entity).Str("action", action).Logger()
	if check != nil {
		metrics.ReferenceWrites.WithLabelValues(entity, action, metrics.OutcomeInvalid).Inc()
		log.Debug().Msg(check.Error())
		return check
	}

	label := entityLabels[entity]
	if err := do(ctx); err != nil {
		we := &WriteError{Op: op, Err: err}
		metrics.ReferenceWrites.WithLabelValues(entity, action, metrics.OutcomeFailure).Inc()
		log.Error().Str("detail", we.Detail()).Msgf("failed to %s %s", action, strings.ToLower(label))
		s.notices.Post(notification.LevelError,
			"Failed to "+action+" "+strings.ToLower(label)+": "+we.Error(), s.errorTTL)
		return we
	}

	metrics.ReferenceWrites.WithLabelValues(entity, action, metrics.OutcomeSuccess).Inc()
	log.Info().Msgf("%s %s", strings.ToLower(label), pastTense[action])
	s.notices.Post(notification.LevelSuccess, label+" "+pastTense[action]+" successfully", s.successTTL)
	s.publish(ctx, entity, action)
	return nil
}

// publish announces a committed write. Failures are logged only.
func (s *Service) publish(ctx context.Context, entity, action string) {
	if s.bus == nil {
		return
	}
	ev := events.NewEvent(events.TypeReferenceChanged, action, s.origin)
	ev.Entity = entity
	if err := s.bus.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish change event")
	}
}

// -- Reads --

func (s *Service) Doctors(ctx context.Context) ([]Doctor, error) {
	return s.registry.ListDoctors(ctx)
}

func (s *Service) Patients(ctx context.Context) ([]Patient, error) {
	return s.registry.ListPatients(ctx)
}

func (s *Service) Pharmacies(ctx context.Context) ([]PharmacyRecord, error) {
	return s.registry.ListPharmacyRecords(ctx)
}

func (s *Service) Companies(ctx context.Context) ([]Company, error) {
	return s.registry.ListCompanies(ctx)
}

// Drugs lists drug records, all of them when company is empty.
func (s *Service) Drugs(ctx context.Context, company string) ([]DrugRecord, error) {
	return s.registry.ListDrugRecords(ctx, company)
}

func (s *Service) PharmacyDrugs(ctx context.Context, search string) ([]PharmacyDrug, error) {
	return s.registry.ListPharmacyDrugs(ctx, strings.TrimSpace(search))
}

func (s *Service) Contracts(ctx context.Context) ([]Contract, error) {
	return s.registry.ListContracts(ctx)
}

func (s *Service) Counts(ctx context.Context) (*Counts, error) {
	return s.registry.Counts(ctx)
}

// -- Writes --

func (s *Service) AddDoctor(ctx context.Context, d Doctor) error {
	return s.write(ctx, EntityDoctor, events.ActionAdd, "add_doctor", validateDoctor(d),
		func(ctx context.Context) error { return s.registry.AddDoctor(ctx, d) })
}

func (s *Service) UpdateDoctor(ctx context.Context, d Doctor) error {
	return s.write(ctx, EntityDoctor, events.ActionUpdate, "update_doctor", validateDoctor(d),
		func(ctx context.Context) error { return s.registry.UpdateDoctor(ctx, d) })
}

func (s *Service) DeleteDoctor(ctx context.Context, id int64) error {
	return s.write(ctx, EntityDoctor, events.ActionDelete, "delete_doctor", nil,
		func(ctx context.Context) error { return s.registry.DeleteDoctor(ctx, id) })
}

func (s *Service) AddPatient(ctx context.Context, p Patient) error {
	return s.write(ctx, EntityPatient, events.ActionAdd, "add_patient", validatePatient(p),
		func(ctx context.Context) error { return s.registry.AddPatient(ctx, p) })
}

func (s *Service) UpdatePatient(ctx context.Context, p Patient) error {
	return s.write(ctx, EntityPatient, events.ActionUpdate, "update_patient", validatePatient(p),
		func(ctx context.Context) error { return s.registry.UpdatePatient(ctx, p) })
}

func (s *Service) DeletePatient(ctx context.Context, id int64) error {
	return s.write(ctx, EntityPatient, events.ActionDelete, "delete_patient", nil,
		func(ctx context.Context) error { return s.registry.DeletePatient(ctx, id) })
}

func (s *Service) AddPharmacy(ctx context.Context, p PharmacyRecord) error {
	return s.write(ctx, EntityPharmacy, events.ActionAdd, "add_pharmacy", validatePharmacyKey(p.Pharmacy),
		func(ctx context.Context) error { return s.registry.AddPharmacy(ctx, p) })
}

func (s *Service) UpdatePharmacy(ctx context.Context, p PharmacyRecord) error {
	return s.write(ctx, EntityPharmacy, events.ActionUpdate, "update_pharmacy", validatePharmacyKey(p.Pharmacy),
		func(ctx context.Context) error { return s.registry.UpdatePharmacy(ctx, p) })
}

func (s *Service) DeletePharmacy(ctx context.Context, key Pharmacy) error {
	return s.write(ctx, EntityPharmacy, events.ActionDelete, "delete_pharmacy", validatePharmacyKey(key),
		func(ctx context.Context) error { return s.registry.DeletePharmacy(ctx, key) })
}

func (s *Service) AddCompany(ctx context.Context, c Company) error {
	return s.write(ctx, EntityCompany, events.ActionAdd, "add_pharmaceutical_company", required("name", c.Name),
		func(ctx context.Context) error { return s.registry.AddCompany(ctx, c) })
}

func (s *Service) UpdateCompany(ctx context.Context, c Company) error {
	return s.write(ctx, EntityCompany, events.ActionUpdate, "update_pharmaceutical_company", required("name", c.Name),
		func(ctx context.Context) error { return s.registry.UpdateCompany(ctx, c) })
}

func (s *Service) DeleteCompany(ctx context.Context, name string) error {
	return s.write(ctx, EntityCompany, events.ActionDelete, "delete_pharmaceutical_company", required("name", name),
		func(ctx context.Context) error { return s.registry.DeleteCompany(ctx, name) })
}

func (s *Service) AddDrug(ctx context.Context, d DrugRecord) error {
	return s.write(ctx, EntityDrug, events.ActionAdd, "add_drug", validateDrugKey(d.Drug),
		func(ctx context.Context) error { return s.registry.AddDrug(ctx, d) })
}

func (s *Service) UpdateDrug(ctx context.Context, d DrugRecord) error {
	return s.write(ctx, EntityDrug, events.ActionUpdate, "update_drug", validateDrugKey(d.Drug),
		func(ctx context.Context) error { return s.registry.UpdateDrug(ctx, d) })
}

func (s *Service) DeleteDrug(ctx context.Context, key Drug) error {
	return s.write(ctx, EntityDrug, events.ActionDelete, "delete_drug", validateDrugKey(key),
		func(ctx context.Context) error { return s.registry.DeleteDrug(ctx, key) })
}

func (s *Service) AddPharmacyDrug(ctx context.Context, pd PharmacyDrug) error {
	return s.write(ctx, EntityPharmacyDrug, events.ActionAdd, "add_pharmacy_drug", validatePharmacyDrug(pd),
		func(ctx context.Context) error { return s.registry.AddPharmacyDrug(ctx, pd) })
}

func (s *Service) UpdatePharmacyDrug(ctx context.Context, pd PharmacyDrug) error {
	return s.write(ctx, EntityPharmacyDrug, events.ActionUpdate, "update_pharmacy_drug", validatePharmacyDrug(pd),
		func(ctx context.Context) error { return s.registry.UpdatePharmacyDrug(ctx, pd) })
}

func (s *Service) DeletePharmacyDrug(ctx context.Context, pharmacy Pharmacy, drug Drug) error {
	check := firstError(validatePharmacyKey(pharmacy), validateDrugKey(drug))
	return s.write(ctx, EntityPharmacyDrug, events.ActionDelete, "delete_pharmacy_drug", check,
		func(ctx context.Context) error { return s.registry.DeletePharmacyDrug(ctx, pharmacy, drug) })
}

func (s *Service) AddContract(ctx context.Context, c Contract) error {
	return s.write(ctx, EntityContract, events.ActionAdd, "add_pharmacy_contract", validateContract(c),
		func(ctx context.Context) error { return s.registry.AddContract(ctx, c) })
}

func (s *Service) UpdateContract(ctx context.Context, c Contract) error {
	return s.write(ctx, EntityContract, events.ActionUpdate, "update_pharmacy_contract", validateContract(c),
		func(ctx context.Context) error { return s.registry.UpdateContract(ctx, c) })
}

func (s *Service) DeleteContract(ctx context.Context, key ContractKey) error {
	return s.write(ctx, EntityContract, events.ActionDelete, "delete_pharmacy_contract", validateContractKey(key),
		func(ctx context.Context) error { return s.registry.DeleteContract(ctx, key) })
}
