package postgres

import (
	"context"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
)

type readingRepository struct {
	BaseRepository
}

func NewReadingRepository(base BaseRepository) repository.ReadingRepository {
	return &readingRepository{base}
}

func (r *readingRepository) Create(ctx context.Context, reading *model.Reading) error {
	query := `
		INSERT INTO readings (
			reading_id, patient_id, user_id, bp_systolic, bp_diastolic, heart_rate_bpm,
			symptoms, traffic_light_status, date_last_saved, date_time_taken,
			date_uploaded_to_server, date_recheck_vitals_needed, gps_location_of_reading,
			retest_of_previous_reading_ids, is_flagged_for_followup, app_version, device_info,
			total_ocr_seconds, manually_change_ocr_results, temporary_flags,
			user_has_selected_no_symptoms
		) VALUES (
			:reading_id, :patient_id, :user_id, :bp_systolic, :bp_diastolic, :heart_rate_bpm,
			:symptoms, :traffic_light_status, :date_last_saved, :date_time_taken,
			:date_uploaded_to_server, :date_recheck_vitals_needed, :gps_location_of_reading,
			:retest_of_previous_reading_ids, :is_flagged_for_followup, :app_version, :device_info,
			:total_ocr_seconds, :manually_change_ocr_results, :temporary_flags,
			:user_has_selected_no_symptoms
		)
	`
	_, err := r.q(ctx).NamedExecContext(ctx, query, reading)
	return mapError(err, "failed to create reading")
}

func (r *readingRepository) Get(ctx context.Context, id string) (*model.Reading, error) {
	var reading model.Reading
	if err := r.q(ctx).GetContext(ctx, &reading, `SELECT * FROM readings WHERE reading_id = $1`, id); err != nil {
		return nil, mapError(err, "failed to get reading")
	}
	return &reading, nil
}

func (r *readingRepository) ListByPatient(ctx context.Context, patientID string) ([]*model.Reading, error) {
	readings := []*model.Reading{}
	query := `
		SELECT * FROM readings
		WHERE patient_id = $1
		ORDER BY date_time_taken NULLS LAST, reading_id
	`
	if err := r.q(ctx).SelectContext(ctx, &readings, query, patientID); err != nil {
		return nil, mapError(err, "failed to list readings")
	}
	return readings, nil
}
