package models

import "time"

// Document represents an uploaded medical file and the analysis produced from it.
// Documents are only created as a side effect of an analysis call and are never deleted.
type Document struct {
	ID             string    `json:"id" firestore:"id"`
	FamilyID       string    `json:"family_id" firestore:"family_id"`
	UploadedBy     *string   `json:"uploaded_by" firestore:"uploaded_by"`
	Filename       string    `json:"filename" firestore:"filename"`
	FileURL        string    `json:"file_url" firestore:"file_url"`
	FileHash       string    `json:"file_hash,omitempty" firestore:"file_hash,omitempty"`
	PageCount      int       `json:"page_count,omitempty" firestore:"page_count,omitempty"`
	DocumentType   *string   `json:"document_type" firestore:"document_type"`
	AnalysisResult *Analysis `json:"analysis_result" firestore:"analysis_result"`
	CreatedAt      time.Time `json:"created_at" firestore:"created_at"`
}
