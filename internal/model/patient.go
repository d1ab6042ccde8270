package model

import "fmt"

type Sex string

const (
	SexMale   Sex = "MALE"
	SexFemale Sex = "FEMALE"
	SexOther  Sex = "OTHER"
)

func (s Sex) Valid() bool {
	switch s {
	case SexMale, SexFemale, SexOther:
		return true
	}
	return false
}

func ParseSex(s string) (Sex, error) {
	sex := Sex(s)
	if !sex.Valid() {
		return "", fmt.Errorf("unknown sex %q", s)
	}
	return sex, nil
}

type Patient struct {
	PatientID           string  `db:"patient_id" json:"patientId"`
	PatientName         *string `db:"patient_name" json:"patientName"`
	PatientAge          int     `db:"patient_age" json:"patientAge"`
	PatientSex          Sex     `db:"patient_sex" json:"patientSex"`
	IsPregnant          *bool   `db:"is_pregnant" json:"isPregnant"`
	GestationalAgeUnit  *string `db:"gestational_age_unit" json:"gestationalAgeUnit"`
	GestationalAgeValue *string `db:"gestational_age_value" json:"gestationalAgeValue"`
	MedicalHistory      *string `db:"medical_history" json:"medicalHistory"`
	DrugHistory         *string `db:"drug_history" json:"drugHistory"`
	Zone                *string `db:"zone" json:"zone"`
	Tank                *string `db:"tank" json:"tank"`
	Block               *string `db:"block" json:"block"`
	VillageNumber       *string `db:"village_number" json:"villageNumber"`
	Timestamps
}

type CreatePatientRequest struct {
	PatientID           string  `json:"patientId" validate:"required,max=50"`
	PatientName         *string `json:"patientName" validate:"omitempty,max=50"`
	PatientAge          *int    `json:"patientAge" validate:"required,min=0,max=150"`
	PatientSex          string  `json:"patientSex" validate:"required,oneof=MALE FEMALE OTHER"`
	IsPregnant          *bool   `json:"isPregnant"`
	GestationalAgeUnit  *string `json:"gestationalAgeUnit" validate:"omitempty,max=50"`
	GestationalAgeValue *string `json:"gestationalAgeValue" validate:"omitempty,max=20"`
	MedicalHistory      *string `json:"medicalHistory"`
	DrugHistory         *string `json:"drugHistory"`
	Zone                *string `json:"zone" validate:"omitempty,max=20"`
	Tank                *string `json:"tank" validate:"omitempty,max=20"`
	Block               *string `json:"block" validate:"omitempty,max=20"`
	VillageNumber       *string `json:"villageNumber" validate:"omitempty,max=50"`
}

func (r *CreatePatientRequest) ToPatient() *Patient {
	p := &Patient{
		PatientID:           r.PatientID,
		PatientName:         r.PatientName,
		PatientSex:          Sex(r.PatientSex),
		IsPregnant:          r.IsPregnant,
		GestationalAgeUnit:  r.GestationalAgeUnit,
		GestationalAgeValue: r.GestationalAgeValue,
		MedicalHistory:      r.MedicalHistory,
		DrugHistory:         r.DrugHistory,
		Zone:                r.Zone,
		Tank:                r.Tank,
		Block:               r.Block,
		VillageNumber:       r.VillageNumber,
	}
	if r.PatientAge != nil {
		p.PatientAge = *r.PatientAge
	}
	return p
}

// PatientColumns maps the patchable JSON keys of a patient to their columns.
var PatientColumns = map[string]string{
	"patientName":         "patient_name",
	"patientAge":          "patient_age",
	"patientSex":          "patient_sex",
	"isPregnant":          "is_pregnant",
	"gestationalAgeUnit":  "gestational_age_unit",
	"gestationalAgeValue": "gestational_age_value",
	"medicalHistory":      "medical_history",
	"drugHistory":         "drug_history",
	"zone":                "zone",
	"tank":                "tank",
	"block":               "block",
	"villageNumber":       "village_number",
}

// PatientWithReadings is the detail view of a patient.
type PatientWithReadings struct {
	*Patient
	Readings []*Reading `json:"readings"`
}
