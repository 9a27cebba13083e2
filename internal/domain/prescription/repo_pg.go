package prescription

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5"

	"github.com/rxdesk/rxdesk/internal/platform/db"
)

var dialect = goqu.Dialect("postgres")

type storePG struct{ q db.Querier }

// NewStorePG returns a Store backed by the prescription tables and the
// add_prescription/delete_prescription database functions.
func NewStorePG(q db.Querier) Store {
	return &storePG{q: q}
}

func headersQuery() (string, []interface{}, error) {
	return dialect.From(goqu.T("prescription_header").As("h")).
		InnerJoin(goqu.T("doctor").As("d"), goqu.On(goqu.I("d.daid").Eq(goqu.I("h.doctor")))).
		InnerJoin(goqu.T("patient").As("p"), goqu.On(goqu.I("p.paid").Eq(goqu.I("h.patient")))).
		Select(
			goqu.I("h.prescription_id"), goqu.I("h.doctor"), goqu.I("d.dname"),
			goqu.I("h.patient"), goqu.I("p.pname"),
			goqu.I("h.pharmacy_name"), goqu.I("h.pharmacy_address"), goqu.I("h.prescription_date"),
		).
		Order(goqu.I("h.prescription_date").Desc(), goqu.I("h.prescription_id").Desc()).
		Prepared(true).ToSQL()
}

func detailsQuery() (string, []interface{}, error) {
	return dialect.From("prescription_detail").
		Select("prescription_id", "pharma_company", "drug_name", "quantity").
		Order(goqu.I("prescription_id").Asc(), goqu.I("drug_name").Asc()).
		Prepared(true).ToSQL()
}

func upsertQuery(req UpsertRequest) (string, []interface{}, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return "", nil, fmt.Errorf("parse date: %w", err)
	}
	drugs, err := json.Marshal(req.Items)
	if err != nil {
		return "", nil, fmt.Errorf("encode drugs: %w", err)
	}
	return dialect.Select(goqu.Func("add_prescription",
		req.DoctorID,
		req.PatientID,
		req.PharmacyName,
		req.PharmacyAddress,
		date,
		goqu.Cast(goqu.V(string(drugs)), "JSONB"),
	)).Prepared(true).ToSQL()
}

func deleteQuery(id int64) (string, []interface{}, error) {
	return dialect.Select(goqu.Func("delete_prescription", id)).Prepared(true).ToSQL()
}

func (r *storePG) ListPrescriptions(ctx context.Context) ([]Prescription, error) {
	query, args, err := headersQuery()
	if err != nil {
		return nil, fmt.Errorf("build headers query: %w", err)
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Prescription, error) {
		var date time.Time
		p := Prescription{Items: []LineItem{}}
		if err := row.Scan(&p.ID, &p.DoctorID, &p.DoctorName, &p.PatientID, &p.PatientName,
			&p.Pharmacy.Name, &p.Pharmacy.Address, &date); err != nil {
			return p, err
		}
		p.Date = date.Format(DateLayout)
		return p, nil
	})
	if err != nil {
		return nil, err
	}

	index := make(map[int64]int, len(list))
	for i := range list {
		index[list[i].ID] = i
	}

	query, args, err = detailsQuery()
	if err != nil {
		return nil, fmt.Errorf("build details query: %w", err)
	}
	rows, err = r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var it LineItem
		if err := rows.Scan(&id, &it.Drug.Company, &it.Drug.TradeName, &it.Quantity); err != nil {
			return nil, err
		}
		if i, ok := index[id]; ok {
			list[i].Items = append(list[i].Items, it)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if list == nil {
		list = []Prescription{}
	}
	return list, nil
}

func (r *storePG) UpsertPrescription(ctx context.Context, req UpsertRequest) error {
	query, args, err := upsertQuery(req)
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, query, args...)
	return err
}

func (r *storePG) DeletePrescription(ctx context.Context, id int64) error {
	query, args, err := deleteQuery(id)
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, query, args...)
	return err
}
