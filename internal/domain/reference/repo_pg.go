package reference

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5"

	"github.com/rxdesk/rxdesk/internal/platform/db"
)

var dialect = goqu.Dialect("postgres")

type registryPG struct{ q db.Querier }

// NewRegistryPG reads the reference tables directly and writes through the
// add_*/update_*/delete_* database functions.
func NewRegistryPG(q db.Querier) Registry {
	return &registryPG{q: q}
}

func listAll[T any](ctx context.Context, q db.Querier, ds *goqu.SelectDataset) ([]T, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (r *registryPG) exec(ctx context.Context, query string, args []interface{}, err error) error {
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	_, err = r.q.Exec(ctx, query, args...)
	return err
}

// -- Catalog --

func doctorsQuery() *goqu.SelectDataset {
	return dialect.From("doctor").
		Select("daid", "dname", "speciality", "years_of_experience").
		Order(goqu.I("dname").Asc())
}

func patientsQuery() *goqu.SelectDataset {
	return dialect.From(goqu.T("patient").As("p")).
		LeftJoin(goqu.T("doctor").As("d"), goqu.On(goqu.I("d.daid").Eq(goqu.I("p.primary_physician")))).
		Select(
			goqu.I("p.paid"), goqu.I("p.pname"), goqu.I("p.paddress"), goqu.I("p.page"),
			goqu.I("p.primary_physician"), goqu.I("d.dname").As("physician_name"),
		).
		Order(goqu.I("p.pname").Asc())
}

func (r *registryPG) ListDoctors(ctx context.Context) ([]Doctor, error) {
	return listAll[Doctor](ctx, r.q, doctorsQuery())
}

func (r *registryPG) ListPatients(ctx context.Context) ([]Patient, error) {
	return listAll[Patient](ctx, r.q, patientsQuery())
}

func (r *registryPG) ListPharmacies(ctx context.Context) ([]Pharmacy, error) {
	return listAll[Pharmacy](ctx, r.q, dialect.From("pharmacy").
		Select("phname", "phaddress").
		Order(goqu.I("phname").Asc(), goqu.I("phaddress").Asc()))
}

func (r *registryPG) ListDrugs(ctx context.Context) ([]Drug, error) {
	return listAll[Drug](ctx, r.q, dialect.From("drug").
		Select("phcompany", "trade_name").
		Order(goqu.I("trade_name").Asc(), goqu.I("phcompany").Asc()))
}

// countTables lists the dashboard cards in display order.
var countTables = []struct {
	table string
	alias string
}{
	{"doctor", "doctors"},
	{"patient", "patients"},
	{"pharmaceutical_company", "companies"},
	{"drug", "drugs"},
	{"pharmacy", "pharmacies"},
	{"prescription_header", "prescriptions"},
}

func countsQuery() (string, []interface{}, error) {
	cols := make([]interface{}, 0, len(countTables))
	for _, t := range countTables {
		cols = append(cols, dialect.From(t.table).Select(goqu.COUNT(goqu.Star())).As(t.alias))
	}
	return dialect.Select(cols...).Prepared(true).ToSQL()
}

func (r *registryPG) Counts(ctx context.Context) (*Counts, error) {
	query, args, err := countsQuery()
	if err != nil {
		return nil, fmt.Errorf("build counts query: %w", err)
	}
	var c Counts
	if err := r.q.QueryRow(ctx, query, args...).Scan(
		&c.Doctors, &c.Patients, &c.Companies, &c.Drugs, &c.Pharmacies, &c.Prescriptions,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

// -- Record lists --

func (r *registryPG) ListPharmacyRecords(ctx context.Context) ([]PharmacyRecord, error) {
	return listAll[PharmacyRecord](ctx, r.q, dialect.From("pharmacy").
		Select("phname", "phaddress", "phphone").
		Order(goqu.I("phname").Asc(), goqu.I("phaddress").Asc()))
}

func (r *registryPG) ListCompanies(ctx context.Context) ([]Company, error) {
	return listAll[Company](ctx, r.q, dialect.From("pharmaceutical_company").
		Select("phcname", "phcphone").
		Order(goqu.I("phcname").Asc()))
}

func drugRecordsQuery(company string) *goqu.SelectDataset {
	ds := dialect.From(goqu.T("drug").As("dr")).
		LeftJoin(goqu.T("pharmaceutical_company").As("c"), goqu.On(goqu.I("c.phcname").Eq(goqu.I("dr.phcompany")))).
		Select(
			goqu.I("dr.phcompany"), goqu.I("dr.trade_name"), goqu.I("dr.formula"),
			goqu.I("c.phcphone").As("company_phone"),
		).
		Order(goqu.I("dr.trade_name").Asc(), goqu.I("dr.phcompany").Asc())
	if company != "" {
		ds = ds.Where(goqu.I("dr.phcompany").Eq(company))
	}
	return ds
}

func (r *registryPG) ListDrugRecords(ctx context.Context, company string) ([]DrugRecord, error) {
	return listAll[DrugRecord](ctx, r.q, drugRecordsQuery(company))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func pharmacyDrugsQuery(search string) (string, []interface{}, error) {
	ds := dialect.From(goqu.T("pharmacy_drugs").As("pd")).
		LeftJoin(goqu.T("pharmaceutical_company").As("c"), goqu.On(goqu.I("c.phcname").Eq(goqu.I("pd.pharma_company")))).
		Select(
			goqu.I("pd.phaname"), goqu.I("pd.pha_address"), goqu.I("pd.pharma_company"),
			goqu.I("pd.drug_name"), goqu.I("pd.price"), goqu.I("c.phcphone"),
		).
		Order(goqu.I("pd.phaname").Asc(), goqu.I("pd.drug_name").Asc())
	if search != "" {
		ds = ds.Where(goqu.I("pd.phaname").ILike("%" + likeEscaper.Replace(search) + "%"))
	}
	return ds.Prepared(true).ToSQL()
}

func (r *registryPG) ListPharmacyDrugs(ctx context.Context, search string) ([]PharmacyDrug, error) {
	query, args, err := pharmacyDrugsQuery(search)
	if err != nil {
		return nil, fmt.Errorf("build pharmacy drugs query: %w", err)
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (PharmacyDrug, error) {
		var pd PharmacyDrug
		err := row.Scan(&pd.Pharmacy.Name, &pd.Pharmacy.Address, &pd.Drug.Company, &pd.Drug.TradeName,
			&pd.Price, &pd.CompanyPhone)
		return pd, err
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []PharmacyDrug{}
	}
	return items, nil
}

func contractsQuery() (string, []interface{}, error) {
	return dialect.From(goqu.T("pharmacy_contract").As("pc")).
		LeftJoin(goqu.T("pharmacy").As("ph"), goqu.On(
			goqu.I("ph.phname").Eq(goqu.I("pc.phaname")),
			goqu.I("ph.phaddress").Eq(goqu.I("pc.pha_address")),
		)).
		Select(
			goqu.I("pc.phaname"), goqu.I("pc.pha_address"), goqu.I("pc.pharma_company"),
			goqu.I("pc.start_date"), goqu.I("pc.end_date"), goqu.I("pc.content"), goqu.I("pc.supervisor"),
			goqu.I("ph.phphone"),
		).
		Order(goqu.I("pc.phaname").Asc(), goqu.I("pc.pharma_company").Asc()).
		Prepared(true).ToSQL()
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}

func (r *registryPG) ListContracts(ctx context.Context) ([]Contract, error) {
	query, args, err := contractsQuery()
	if err != nil {
		return nil, fmt.Errorf("build contracts query: %w", err)
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Contract, error) {
		var c Contract
		var start, end *time.Time
		var content, supervisor *string
		if err := row.Scan(&c.Pharmacy.Name, &c.Pharmacy.Address, &c.Company,
			&start, &end, &content, &supervisor, &c.PharmacyPhone); err != nil {
			return c, err
		}
		c.StartDate, c.EndDate = formatDate(start), formatDate(end)
		if content != nil {
			c.Content = *content
		}
		if supervisor != nil {
			c.Supervisor = *supervisor
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Contract{}
	}
	return items, nil
}

// -- Writes --

// param is one named argument of a database function call.
type param struct {
	name  string
	value interface{}
}

// call builds SELECT fn(p_a => $1, p_b => $2, ...). Named notation keeps
// the call independent of the function's declared parameter order.
func call(fn string, params ...param) (string, []interface{}, error) {
	args := make([]interface{}, len(params))
	for i, p := range params {
		args[i] = goqu.L(p.name+" => ?", p.value)
	}
	return dialect.Select(goqu.Func(fn, args...)).Prepared(true).ToSQL()
}

// orNull turns a nil pointer into SQL NULL.
func orNull[T any](v *T) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

func doctorParams(d Doctor) []param {
	return []param{
		{"p_daid", d.ID},
		{"p_dname", d.Name},
		{"p_speciality", d.Specialty},
		{"p_years_of_experience", orNull(d.YearsOfExperience)},
	}
}

func (r *registryPG) AddDoctor(ctx context.Context, d Doctor) error {
	query, args, err := call("add_doctor", doctorParams(d)...)
	return r.exec(ctx, query, args, err)
}

func (r *registryPG) UpdateDoctor(ctx context.Context, d Doctor) error {
	query, args, err := call("update_doctor", doctorParams(d)...)
	return r.exec(ctx, query, args, err)
}

// deleteDoctorQuery removes the row directly; there is no delete_doctor
// function.
func deleteDoctorQuery(id int64) (string, []interface{}, error) {
	return dialect.Delete("doctor").Where(goqu.C("daid").Eq(id)).Prepared(true).ToSQL()
}

func (r *registryPG) DeleteDoctor(ctx context.Context, id int64) error {
	query, args, err := deleteDoctorQuery(id)
	return r.exec(ctx, query, args, err)
}

func patientParams(p Patient) []param {
	return []param{
		{"p_paid", p.ID},
		{"p_pname", p.Name},
		{"p_paddress", orNull(p.Address)},
		{"p_page", orNull(p.Age)},
		{"p_physician", orNull(p.PrimaryPhysician)},
	}
}

func (r *registryPG) AddPatient(ctx context.Context, p Patient) error {
	query, args, err := call("add_patient", patientParams(p)...)
	return r.exec(ctx, query, args, err)
}

func (r *registryPG) UpdatePatient(ctx context.Context, p Patient) error {
	query, args, err := call("update_patient", patientParams(p)...)
	return r.exec(ctx, query, args, err)
}

func (r *registryPG) DeletePatient(ctx context.Context, id int64) error {
	query, args, err := call("delete_patient", param{"p_paid", id})
	return r.exec(ctx, query, args, err)
}

func pharmacyParams(p PharmacyRecord) []param {
	return []param{
		{"p_name", p.Name},
		{"p_address", p.Address},
		{"p_phone", orNull(p.Phone)},
	}
}

func (r *registryPG) AddPharmacy(ctx context.Context, p PharmacyRecord) error {
	query, args, err := call("add_pharmacy", pharmacyParams(p)...)
	return r.exec(ctx, query, args, err)
}

func (r *registryPG) UpdatePharmacy(ctx context.Context, p PharmacyRecord) error {
	query, args, err := call("update_pharmacy", pharmacyParams(p)...)
	return r.exec(ctx, query, args, err)
}

func (r *registryPG) DeletePharmacy(ctx context.Context, key Pharmacy) error {
	query, args, err := call("delete_pharmacy", param{"p_name", key.Name}, param{"p_address", key.Address})
	return r.exec(ctx, query, args, err)
}

func (r *registryPG) AddCompany(ctx context.Context, c Company) error {
	query, args, err := call("add_pharmaceutical_company", param{"p_name", c.Name}, param{"p_phone", orNull(c.Phone)})
	return r.exec(ctx, query, args, err)
}

func (r *registryPG) UpdateCompany(ctx context.Context, c Company) error {
	query, args, err := call("update_pharmaceutical_company", param{"p_name", c.Name}, param{"p_phone", orNull(c.Phone)})
	return r.exec(ctx, query, args, err)
}

func (r *registryPG) DeleteCompany(ctx context.Context, name string) error {
	query, args, err := call("delete_pharmaceutical_company", param{"p_name", name})
	return r.exec(ctx, query, args, err)
}

func drugParams(d DrugRecord) []param {
	return []param{
		{"p_phcompany", d.Company},
		{"p_trade_name", d.TradeName},
		{"p_formula", orNull(d.Formula)},
	}
}

func (r *registryPG) AddDrug(ctx context.Context, d DrugRecord) error {
	query, args, err := call("add_drug", drugParams(d)...)
	return r.exec(ctx, query, args, err)
}

func (r *registryPG) UpdateDrug(ctx context.Context, d DrugRecord) error {
	query, args, err := call("update_drug", drugParams(d)...)
	return r.exec(ctx, query, args, err)
}

func (r *registryPG) DeleteDrug(ctx context.Context, key Drug) error {
	query, args, err := call("delete_drug", param{"p_phcompany", key.Company}, param{"p_trade_name", key.TradeName})
	return r.exec(ctx, query, args, err)
}

func pharmacyDrugKey(pharmacy Pharmacy, drug Drug) []param {
	return []param{
		{"p_name", pharmacy.Name},
		{"p_address", pharmacy.Address},
		{"p_company", drug.Company},
		{"p_drug", drug.TradeName},
	}
}

func (r *registryPG) AddPharmacyDrug(ctx context.Context, pd PharmacyDrug) error {
	query, args, err := call("add_pharmacy_drug",
		append(pharmacyDrugKey(pd.Pharmacy, pd.Drug), param{"p_price", pd.Price})...)
	return r.exec(ctx, query, args, err)
}

func (r *registryPG) UpdatePharmacyDrug(ctx context.Context, pd PharmacyDrug) error {
	query, args, err := call("update_pharmacy_drug",
		append(pharmacyDrugKey(pd.Pharmacy, pd.Drug), param{"p_price", pd.Price})...)
	return r.exec(ctx, query, args, err)
}

func (r *registryPG) DeletePharmacyDrug(ctx context.Context, pharmacy Pharmacy, drug Drug) error {
	query, args, err := call("delete_pharmacy_drug", pharmacyDrugKey(pharmacy, drug)...)
	return r.exec(ctx, query, args, err)
}

func contractKeyParams(k ContractKey) []param {
	return []param{
		{"p_name", k.Pharmacy.Name},
		{"p_address", k.Pharmacy.Address},
		{"p_company", k.Company},
	}
}

func contractQuery(fn string, c Contract) (string, []interface{}, error) {
	start, err := parseDate(c.StartDate)
	if err != nil {
		return "", nil, fmt.Errorf("parse start date: %w", err)
	}
	end, err := parseDate(c.EndDate)
	if err != nil {
		return "", nil, fmt.Errorf("parse end date: %w", err)
	}
	return call(fn, append(contractKeyParams(c.ContractKey),
		param{"p_start", start},
		param{"p_end", end},
		param{"p_content", c.Content},
		param{"p_supervisor", c.Supervisor},
	)...)
}

func (r *registryPG) AddContract(ctx context.Context, c Contract) error {
	query, args, err := contractQuery("add_pharmacy_contract", c)
	return r.exec(ctx, query, args, err)
}

func (r *registryPG) UpdateContract(ctx context.Context, c Contract) error {
	query, args, err := contractQuery("update_pharmacy_contract", c)
	return r.exec(ctx, query, args, err)
}

func (r *registryPG) DeleteContract(ctx context.Context, key ContractKey) error {
	query, args, err := call("delete_pharmacy_contract", contractKeyParams(key)...)
	return r.exec(ctx, query, args, err)
}
