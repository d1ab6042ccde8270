package model

// TrafficLight is the risk category assigned to a reading.
type TrafficLight string

const (
	TrafficLightNone       TrafficLight = "NONE"
	TrafficLightGreen      TrafficLight = "GREEN"
	TrafficLightYellowUp   TrafficLight = "YELLOW_UP"
	TrafficLightYellowDown TrafficLight = "YELLOW_DOWN"
	TrafficLightRedUp      TrafficLight = "RED_UP"
	TrafficLightRedDown    TrafficLight = "RED_DOWN"
)

// AllTrafficLights lists every category, used to pre-register metric series.
var AllTrafficLights = []TrafficLight{
	TrafficLightNone,
	TrafficLightGreen,
	TrafficLightYellowUp,
	TrafficLightYellowDown,
	TrafficLightRedUp,
	TrafficLightRedDown,
}

func (t TrafficLight) Valid() bool {
	switch t {
	case TrafficLightNone, TrafficLightGreen,
		TrafficLightYellowUp, TrafficLightYellowDown,
		TrafficLightRedUp, TrafficLightRedDown:
		return true
	}
	return false
}

func (t TrafficLight) IsRed() bool {
	switch t {
	case TrafficLightRedUp, TrafficLightRedDown:
		return true
	case TrafficLightNone, TrafficLightGreen, TrafficLightYellowUp, TrafficLightYellowDown:
		return false
	}
	return false
}

func (t TrafficLight) IsYellow() bool {
	switch t {
	case TrafficLightYellowUp, TrafficLightYellowDown:
		return true
	case TrafficLightNone, TrafficLightGreen, TrafficLightRedUp, TrafficLightRedDown:
		return false
	}
	return false
}

type Reading struct {
	ReadingID                  string       `db:"reading_id" json:"readingId"`
	PatientID                  string       `db:"patient_id" json:"patientId"`
	UserID                     *int64       `db:"user_id" json:"userId"`
	BPSystolic                 *int         `db:"bp_systolic" json:"bpSystolic"`
	BPDiastolic                *int         `db:"bp_diastolic" json:"bpDiastolic"`
	HeartRateBPM               *int         `db:"heart_rate_bpm" json:"heartRateBPM"`
	Symptoms                   *string      `db:"symptoms" json:"symptoms"`
	TrafficLightStatus         TrafficLight `db:"traffic_light_status" json:"trafficLightStatus"`
	DateLastSaved              *string      `db:"date_last_saved" json:"dateLastSaved"`
	DateTimeTaken              *string      `db:"date_time_taken" json:"dateTimeTaken"`
	DateUploadedToServer       *string      `db:"date_uploaded_to_server" json:"dateUploadedToServer"`
	DateRecheckVitalsNeeded    *string      `db:"date_recheck_vitals_needed" json:"dateRecheckVitalsNeeded"`
	GPSLocationOfReading       *string      `db:"gps_location_of_reading" json:"gpsLocationOfReading"`
	RetestOfPreviousReadingIDs *string      `db:"retest_of_previous_reading_ids" json:"retestOfPreviousReadingIds"`
	IsFlaggedForFollowup       *bool        `db:"is_flagged_for_followup" json:"isFlaggedForFollowup"`
	AppVersion                 *string      `db:"app_version" json:"appVersion"`
	DeviceInfo                 *string      `db:"device_info" json:"deviceInfo"`
	TotalOCRSeconds            *float64     `db:"total_ocr_seconds" json:"totalOcrSeconds"`
	ManuallyChangeOCRResults   *int         `db:"manually_change_ocr_results" json:"manuallyChangeOcrResults"`
	TemporaryFlags             *int         `db:"temporary_flags" json:"temporaryFlags"`
	UserHasSelectedNoSymptoms  *bool        `db:"user_has_selected_no_symptoms" json:"userHasSelectedNoSymptoms"`
}

// CreateReadingRequest has no traffic light field: the status is always derived from the vitals.
type CreateReadingRequest struct {
	ReadingID                  string   `json:"readingId" validate:"omitempty,max=50"`
	PatientID                  string   `json:"patientId" validate:"required,max=50"`
	BPSystolic                 *int     `json:"bpSystolic" validate:"omitempty,gt=0"`
	BPDiastolic                *int     `json:"bpDiastolic" validate:"omitempty,min=0"`
	HeartRateBPM               *int     `json:"heartRateBPM" validate:"omitempty,min=0"`
	Symptoms                   *string  `json:"symptoms"`
	DateLastSaved              *string  `json:"dateLastSaved" validate:"omitempty,max=100"`
	DateTimeTaken              *string  `json:"dateTimeTaken" validate:"omitempty,max=100"`
	DateUploadedToServer       *string  `json:"dateUploadedToServer" validate:"omitempty,max=100"`
	DateRecheckVitalsNeeded    *string  `json:"dateRecheckVitalsNeeded" validate:"omitempty,max=100"`
	GPSLocationOfReading       *string  `json:"gpsLocationOfReading" validate:"omitempty,max=50"`
	RetestOfPreviousReadingIDs *string  `json:"retestOfPreviousReadingIds" validate:"omitempty,max=100"`
	IsFlaggedForFollowup       *bool    `json:"isFlaggedForFollowup"`
	AppVersion                 *string  `json:"appVersion" validate:"omitempty,max=50"`
	DeviceInfo                 *string  `json:"deviceInfo" validate:"omitempty,max=50"`
	TotalOCRSeconds            *float64 `json:"totalOcrSeconds"`
	ManuallyChangeOCRResults   *int     `json:"manuallyChangeOcrResults"`
	TemporaryFlags             *int     `json:"temporaryFlags"`
	UserHasSelectedNoSymptoms  *bool    `json:"userHasSelectedNoSymptoms"`
}

// NewReading copies the request into a reading; the caller sets ID, user and status.
func (r *CreateReadingRequest) NewReading() *Reading {
	return &Reading{
		ReadingID:                  r.ReadingID,
		PatientID:                  r.PatientID,
		BPSystolic:                 r.BPSystolic,
		BPDiastolic:                r.BPDiastolic,
		HeartRateBPM:               r.HeartRateBPM,
		Symptoms:                   r.Symptoms,
		DateLastSaved:              r.DateLastSaved,
		DateTimeTaken:              r.DateTimeTaken,
		DateUploadedToServer:       r.DateUploadedToServer,
		DateRecheckVitalsNeeded:    r.DateRecheckVitalsNeeded,
		GPSLocationOfReading:       r.GPSLocationOfReading,
		RetestOfPreviousReadingIDs: r.RetestOfPreviousReadingIDs,
		IsFlaggedForFollowup:       r.IsFlaggedForFollowup,
		AppVersion:                 r.AppVersion,
		DeviceInfo:                 r.DeviceInfo,
		TotalOCRSeconds:            r.TotalOCRSeconds,
		ManuallyChangeOCRResults:   r.ManuallyChangeOCRResults,
		TemporaryFlags:             r.TemporaryFlags,
		UserHasSelectedNoSymptoms:  r.UserHasSelectedNoSymptoms,
	}
}

// PatientReadingRequest is the upload from the mobile app: a patient and its reading,
// optionally with a referral raised on the spot.
//
// Reading and Referral may leave patientId and readingId empty; they are filled from
// the patient and reading before those parts are validated.
type PatientReadingRequest struct {
	Patient  CreatePatientRequest   `json:"patient" validate:"required"`
	Reading  CreateReadingRequest   `json:"reading" validate:"-"`
	Referral *CreateReferralRequest `json:"referral" validate:"-"`
}

// PatientReadingResult is returned by the upload endpoint.
type PatientReadingResult struct {
	Patient  *Patient  `json:"patient"`
	Reading  *Reading  `json:"reading"`
	Referral *Referral `json:"referral,omitempty"`
}
