package services

import (
	"fmt"
	"time"

	"github.com/Lllllllleong/caresync/internal/models"
)

const (
	demoFilename = "demo_document.pdf"

	fallbackTaskTitle = "Review uploaded document"
	fallbackWarning   = "The document was analyzed but the result could not be read. A generic review task was created instead."
)

type demoTask struct {
	title, description string
	priority           models.Priority
	category           string
	dueInDays          int
}

var demoTasks = []demoTask{
	{"Schedule Cardiologist Follow-up", "Patient needs a follow-up appointment with Dr. Smith in 2 weeks to review medication efficacy.", models.PriorityHigh, models.CategoryAppointment, 14},
	{"Pick up Lisinopril Prescription", "Prescription sent to CVS Pharmacy. Needs to be picked up by end of week.", models.PriorityMedium, models.CategoryMedication, 2},
	{"Monitor Blood Pressure Daily", "Record blood pressure readings every morning and evening for the next 7 days.", models.PriorityUrgent, models.CategoryMonitoring, 7},
}

// DemoResponse returns the canned analysis served in demo mode. It is always
// flagged as demo data.
func DemoResponse(familyID, filename string, now time.Time) *models.AnalyzeResponse {
	now = now.UTC()
	documentID := fmt.Sprintf("doc-demo-%d", now.UnixMilli())
	if filename == "" {
		filename = demoFilename
	}

	tasks := make([]models.Task, 0, len(demoTasks))
	proposed := make([]models.ProposedTask, 0, len(demoTasks))
	for i, dt := range demoTasks {
		due := now.AddDate(0, 0, dt.dueInDays)
		dueStr := due.Format(time.DateOnly)
		desc := dt.description
		tasks = append(tasks, models.Task{
			ID:          fmt.Sprintf("task-demo-%d", i+1),
			FamilyID:    familyID,
			DocumentID:  &documentID,
			Title:       dt.title,
			Description: &desc,
			Priority:    dt.priority,
			Status:      models.StatusPending,
			DueDate:     &due,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		proposed = append(proposed, models.ProposedTask{
			Title:       dt.title,
			Description: dt.description,
			Priority:    dt.priority,
			DueDate:     &dueStr,
			Category:    dt.category,
		})
	}

	patient := "John Doe"
	analysis := &models.Analysis{
		DocumentType: models.DocumentTypeDischargeSummary,
		PatientInfo: models.PatientInfo{
			Name:       &patient,
			Conditions: []string{"Hypertension", "Type 2 Diabetes"},
		},
		Tasks:          proposed,
		KeyInformation: []string{"Patient stable but requires monitoring", "Medication dosage adjusted"},
		Summary:        "This is a DEMO ANALYSIS. It shows a typical discharge summary for a patient with hypertension.",
	}
	docType := analysis.DocumentType

	return &models.AnalyzeResponse{
		Success: true,
		Outcome: models.OutcomeDemo,
		IsDemo:  true,
		Document: models.Document{
			ID:             documentID,
			FamilyID:       familyID,
			Filename:       filename,
			DocumentType:   &docType,
			AnalysisResult: analysis,
			CreatedAt:      now,
		},
		Tasks:    tasks,
		Analysis: analysis,
	}
}

// FallbackAnalysis is substituted when the model output cannot be read.
func FallbackAnalysis(filename string) *models.Analysis {
	return &models.Analysis{
		DocumentType: models.DocumentTypeOther,
		PatientInfo:  models.PatientInfo{Conditions: []string{}},
		Tasks: []models.ProposedTask{{
			Title:       fallbackTaskTitle,
			Description: fmt.Sprintf("Automatic analysis of %q did not produce readable results. Please review the document and add any care tasks manually.", filename),
			Priority:    models.PriorityMedium,
			Category:    models.CategoryOther,
		}},
		KeyInformation: []string{},
		Summary:        "Automatic analysis was unavailable for this document.",
	}
}
