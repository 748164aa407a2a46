package models

// Document types the analyzer may report.
const (
	DocumentTypeDischargeSummary = "discharge_summary"
	DocumentTypePrescription     = "prescription"
	DocumentTypeCarePlan         = "care_plan"
	DocumentTypeOther            = "other"
)

// Task categories the analyzer may report.
const (
	CategoryMedication  = "medication"
	CategoryAppointment = "appointment"
	CategoryMonitoring  = "monitoring"
	CategoryLifestyle   = "lifestyle"
	CategoryOther       = "other"
)

// Analysis is the structured result the model returns for one document.
// It is embedded in a Document and used transiently to create Tasks.
type Analysis struct {
	DocumentType   string         `json:"document_type" firestore:"document_type"`
	PatientInfo    PatientInfo    `json:"patient_info" firestore:"patient_info"`
	Tasks          []ProposedTask `json:"tasks" firestore:"tasks"`
	KeyInformation []string       `json:"key_information" firestore:"key_information"`
	Summary        string         `json:"summary" firestore:"summary"`
}

type PatientInfo struct {
	Name       *string  `json:"name" firestore:"name"`
	Conditions []string `json:"conditions" firestore:"conditions"`
}

// ProposedTask is a task as suggested by the model, before materialization.
type ProposedTask struct {
	Title       string   `json:"title" firestore:"title"`
	Description string   `json:"description" firestore:"description"`
	Priority    Priority `json:"priority" firestore:"priority"`
	DueDate     *string  `json:"due_date" firestore:"due_date"`
	Category    string   `json:"category" firestore:"category"`
}
