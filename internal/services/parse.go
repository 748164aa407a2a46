package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Lllllllleong/caresync/internal/models"
)

type rawAnalysis struct {
	DocumentType string `json:"document_type"`
	PatientInfo  *struct {
		Name       *string  `json:"name"`
		Conditions []string `json:"conditions"`
	} `json:"patient_info"`
	Tasks          *[]rawTask `json:"tasks"`
	KeyInformation []string   `json:"key_information"`
	Summary        string     `json:"summary"`
}

type rawTask struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	DueDate     *string `json:"due_date"`
	Category    string  `json:"category"`
}

// ParseAnalysis decodes and validates the model output. Any deviation from the
// analysis schema is reported as ErrMalformedAnalysis. Unknown enum values are
// normalised rather than rejected.
func ParseAnalysis(raw string) (*models.Analysis, error) {
	body := stripFences(raw)
	if body == "" {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedAnalysis)
	}

	var ra rawAnalysis
	if err := json.Unmarshal([]byte(body), &ra); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAnalysis, err)
	}
	if ra.Tasks == nil {
		return nil, fmt.Errorf("%w: tasks array missing", ErrMalformedAnalysis)
	}

	a := &models.Analysis{
		DocumentType:   normalizeDocumentType(ra.DocumentType),
		KeyInformation: nonNil(ra.KeyInformation),
		Summary:        strings.TrimSpace(ra.Summary),
		Tasks:          make([]models.ProposedTask, 0, len(*ra.Tasks)),
	}
	if ra.PatientInfo != nil {
		a.PatientInfo.Name = nullableString(ra.PatientInfo.Name)
		a.PatientInfo.Conditions = ra.PatientInfo.Conditions
	}
	a.PatientInfo.Conditions = nonNil(a.PatientInfo.Conditions)

	for i, t := range *ra.Tasks {
		title := strings.TrimSpace(t.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: task %d has no title", ErrMalformedAnalysis, i)
		}
		a.Tasks = append(a.Tasks, models.ProposedTask{
			Title:       title,
			Description: strings.TrimSpace(t.Description),
			Priority:    normalizePriority(t.Priority),
			DueDate:     nullableString(t.DueDate),
			Category:    normalizeCategory(t.Category),
		})
	}
	return a, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func normalizePriority(raw string) models.Priority {
	p := models.Priority(strings.ToLower(strings.TrimSpace(raw)))
	if !p.Valid() {
		return models.PriorityMedium
	}
	return p
}

func normalizeCategory(raw string) string {
	switch c := strings.ToLower(strings.TrimSpace(raw)); c {
	case models.CategoryMedication, models.CategoryAppointment, models.CategoryMonitoring, models.CategoryLifestyle:
		return c
	}
	return models.CategoryOther
}

func normalizeDocumentType(raw string) string {
	switch d := strings.ToLower(strings.TrimSpace(raw)); d {
	case models.DocumentTypeDischargeSummary, models.DocumentTypePrescription, models.DocumentTypeCarePlan:
		return d
	}
	return models.DocumentTypeOther
}

// nullableString maps the model's spellings of "no value" to nil.
func nullableString(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
