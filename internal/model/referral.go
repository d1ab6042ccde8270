package model

type Referral struct {
	ID                         int64     `db:"id" json:"id"`
	DateReferred               string    `db:"date_referred" json:"dateReferred"`
	Comment                    *string   `db:"comment" json:"comment"`
	ActionTaken                *string   `db:"action_taken" json:"actionTaken"`
	UserID                     *int64    `db:"user_id" json:"userId"`
	PatientID                  string    `db:"patient_id" json:"patientId"`
	ReferralHealthFacilityName string    `db:"referral_health_facility_name" json:"referralHealthFacilityName"`
	ReadingID                  *string   `db:"reading_id" json:"readingId"`
	FollowUpID                 *int64    `db:"follow_up_id" json:"followUpId"`
	FollowUp                   *FollowUp `db:"-" json:"followUp"`
}

type CreateReferralRequest struct {
	DateReferred               string  `json:"dateReferred" validate:"required,max=100"`
	Comment                    *string `json:"comment"`
	ActionTaken                *string `json:"actionTaken"`
	PatientID                  string  `json:"patientId" validate:"required,max=50"`
	ReferralHealthFacilityName string  `json:"referralHealthFacilityName" validate:"required,max=50"`
	ReadingID                  *string `json:"readingId" validate:"omitempty,max=50"`
}

func (r *CreateReferralRequest) NewReferral(userID int64) *Referral {
	return &Referral{
		DateReferred:               r.DateReferred,
		Comment:                    r.Comment,
		ActionTaken:                r.ActionTaken,
		UserID:                     &userID,
		PatientID:                  r.PatientID,
		ReferralHealthFacilityName: r.ReferralHealthFacilityName,
		ReadingID:                  r.ReadingID,
	}
}

type ReferralFilter struct {
	HealthFacilityName string `form:"healthFacilityName"`
	PatientID          string `form:"patientId"`
}

type FollowUp struct {
	ID                 int64   `db:"id" json:"id"`
	FollowUpAction     *string `db:"follow_up_action" json:"followUpAction"`
	Diagnosis          *string `db:"diagnosis" json:"diagnosis"`
	Treatment          *string `db:"treatment" json:"treatment"`
	DateAssessed       string  `db:"date_assessed" json:"dateAssessed"`
	HealthcareWorkerID int64   `db:"healthcare_worker_id" json:"healthcareWorkerId"`
}

type FollowUpRequest struct {
	FollowUpAction *string `json:"followUpAction"`
	Diagnosis      *string `json:"diagnosis"`
	Treatment      *string `json:"treatment"`
	DateAssessed   string  `json:"dateAssessed" validate:"required,max=100"`
}

type HealthFacility struct {
	HealthFacilityName string `db:"health_facility_name" json:"healthFacilityName" validate:"required,max=50"`
}

type Village struct {
	VillageNumber string  `db:"village_number" json:"villageNumber" validate:"required,max=50"`
	ZoneNumber    *string `db:"zone_number" json:"zoneNumber" validate:"omitempty,max=50"`
}
