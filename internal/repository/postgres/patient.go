package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
)

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

var updatablePatientColumns = func() map[string]bool {
	cols := make(map[string]bool, len(model.PatientColumns))
	for _, col := range model.PatientColumns {
		cols[col] = true
	}
	return cols
}()

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (
			patient_id, patient_name, patient_age, patient_sex, is_pregnant,
			gestational_age_unit, gestational_age_value, medical_history, drug_history,
			zone, tank, block, village_number, created_at, updated_at
		) VALUES (
			:patient_id, :patient_name, :patient_age, :patient_sex, :is_pregnant,
			:gestational_age_unit, :gestational_age_value, :medical_history, :drug_history,
			:zone, :tank, :block, :village_number, :created_at, :updated_at
		)
	`

	now := time.Now().UTC()
	patient.CreatedAt = now
	patient.UpdatedAt = now

	_, err := r.q(ctx).NamedExecContext(ctx, query, patient)
	return mapError(err, "failed to create patient")
}

func (r *patientRepository) Get(ctx context.Context, id string) (*model.Patient, error) {
	var patient model.Patient
	if err := r.q(ctx).GetContext(ctx, &patient, `SELECT * FROM patients WHERE patient_id = $1`, id); err != nil {
		return nil, mapError(err, "failed to get patient")
	}
	return &patient, nil
}

func (r *patientRepository) List(ctx context.Context) ([]*model.Patient, error) {
	patients := []*model.Patient{}
	if err := r.q(ctx).SelectContext(ctx, &patients, `SELECT * FROM patients ORDER BY created_at, patient_id`); err != nil {
		return nil, mapError(err, "failed to list patients")
	}
	return patients, nil
}

func (r *patientRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !updatablePatientColumns[col] {
			return fmt.Errorf("failed to update patient: column %q is not updatable", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	sets := make([]string, 0, len(cols)+1)
	args := make([]interface{}, 0, len(cols)+2)
	for _, col := range cols {
		args = append(args, fields[col])
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	args = append(args, time.Now().UTC())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE patients SET %s WHERE patient_id = $%d`, strings.Join(sets, ", "), len(args))
	res, err := r.q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err, "failed to update patient")
	}
	return requireAffected(res, "failed to update patient")
}
