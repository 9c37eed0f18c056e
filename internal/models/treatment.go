package models

import (
	"fmt"
	"strings"
)

// TreatmentSearchResult is the validated shape of one treatment-search hit.
// The upstream payload is loosely typed; Validate is applied at the boundary
// before results reach the UI layer.
type TreatmentSearchResult struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// Validate rejects results missing the fields the UI depends on.
func (t TreatmentSearchResult) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("treatment result missing name")
	}
	return nil
}

// DocumentOCRResult is the validated shape of a document-upload OCR payload.
// Fields holds the named values the OCR service extracted (name, number,
// date of birth and so on); DocumentType tells which upload produced it.
type DocumentOCRResult struct {
	DocumentType string            `json:"document_type"` // "aadhaar", "pan", "bank_statement"
	Fields       map[string]string `json:"fields"`
	Confidence   float64           `json:"confidence,omitempty"`
}

// Validate rejects payloads without a document type or any extracted field.
func (d DocumentOCRResult) Validate() error {
	if d.DocumentType == "" {
		return fmt.Errorf("ocr payload missing document type")
	}
	if len(d.Fields) == 0 {
		return fmt.Errorf("ocr payload for %s has no fields", d.DocumentType)
	}
	return nil
}
