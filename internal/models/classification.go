package models

// IntentKind tags the classified purpose of an agent message. Exactly one
// kind applies per message.
type IntentKind string

const (
	IntentPlainText            IntentKind = "plain_text"
	IntentQuestionWithOptions  IntentKind = "question_with_options"
	IntentTreatmentQuestion    IntentKind = "treatment_question"
	IntentAadhaarUploadRequest IntentKind = "aadhaar_upload_request"
	IntentPanUploadRequest     IntentKind = "pan_upload_request"
	IntentBankStatementRequest IntentKind = "bank_statement_request"
	IntentPostApprovalLink     IntentKind = "post_approval_link"
	IntentNoCostEmi            IntentKind = "no_cost_emi"
	IntentAddressDetails       IntentKind = "address_details_request"
	IntentPaymentSteps         IntentKind = "payment_steps"
)

// QuestionWithOptions is the payload of a multiple-choice agent turn.
// OptionNumbers is nil when the source text carried no numeric tokens
// (all-caps list pattern).
type QuestionWithOptions struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	OptionNumbers []string `json:"option_numbers,omitempty"`
}

// PaymentStep is one stepping stone of the disbursal flow. Steps are ordered
// by required real-world completion order: Aadhaar, Face, Auto-pay, Agreement
// (the 3-step variant omits Aadhaar). A step is never emitted without a URL.
type PaymentStep struct {
	Title               string `json:"title"`
	Description         string `json:"description"`
	URL                 string `json:"url"`
	PrimaryButtonText   string `json:"primary_button_text"`
	SecondaryButtonText string `json:"secondary_button_text"`
	// URLResolving is set by the render layer, never the parser: true while
	// URL still holds a short link whose resolution is in flight.
	URLResolving bool `json:"url_resolving,omitempty"`
}

// PaymentStepsPayload carries the parsed steps plus the Aadhaar URL as a
// separate fallback slot for callers that need the first 4-step URL outside
// the parsed result.
type PaymentStepsPayload struct {
	Steps      []PaymentStep `json:"steps"`
	AadhaarURL string        `json:"aadhaar_url,omitempty"`
}

// ClassificationResult is the tagged union produced by the classifier.
// Kind always holds exactly one tag; Question is non-nil only for
// IntentQuestionWithOptions, PaymentSteps only for IntentPaymentSteps.
// Amount carries a highlighted currency amount independent of Kind.
type ClassificationResult struct {
	Kind         IntentKind           `json:"kind"`
	Question     *QuestionWithOptions `json:"question,omitempty"`
	PaymentSteps *PaymentStepsPayload `json:"payment_steps,omitempty"`
	Amount       string               `json:"amount,omitempty"`
}
