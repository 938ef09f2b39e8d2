package models

// ApplicationStatus is the processing status of an ex-gratia application.
// Values outside the known set are kept verbatim.
type ApplicationStatus string

const (
	ApplicationApproved    ApplicationStatus = "Approved"
	ApplicationUnderReview ApplicationStatus = "Under Review"
	ApplicationPending     ApplicationStatus = "Pending"
	ApplicationRejected    ApplicationStatus = "Rejected"
)

// ApplicationRecord is one row of the status store.
type ApplicationRecord struct {
	ApplicationID string            `json:"application_id"`
	ApplicantName string            `json:"applicant_name"`
	Phone         string            `json:"phone"`
	Type          string            `json:"type"`
	Status        ApplicationStatus `json:"status"`
	Amount        float64           `json:"amount"`
	DateApplied   string            `json:"date_applied"`
	Remarks       string            `json:"remarks"`
}

// LookupResult is the outcome of a status lookup: either a found record or not found.
type LookupResult struct {
	Record ApplicationRecord `json:"record"`
	Found  bool              `json:"found"`
}

// Found wraps a matching record.
func Found(record ApplicationRecord) LookupResult {
	return LookupResult{Record: record, Found: true}
}

// NotFound is the result of a lookup with no matching record.
func NotFound() LookupResult {
	return LookupResult{}
}
