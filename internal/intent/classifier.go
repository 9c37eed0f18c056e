package intent

import (
	"github.com/NavalEP/carechat-engine/internal/models"
)

// Classification is an ordered list of (predicate, constructor) pairs
// evaluated first-match-wins. More specific financial and legal flows take
// precedence over generic text rendering; anything failing every recognizer
// is plain text. Classify is a pure function of (text, sender): deterministic,
// side-effect free, safe to recompute on every render.

type rule struct {
	match func(text, sender string) bool
	build func(text string) models.ClassificationResult
}

func tagOnly(kind models.IntentKind) func(string) models.ClassificationResult {
	return func(string) models.ClassificationResult {
		return models.ClassificationResult{Kind: kind}
	}
}

var rules = []rule{
	{IsPaymentSteps, func(text string) models.ClassificationResult {
		payload := ParsePaymentSteps(text)
		return models.ClassificationResult{Kind: models.IntentPaymentSteps, PaymentSteps: &payload}
	}},
	{IsPostApprovalLink, tagOnly(models.IntentPostApprovalLink)},
	{IsNoCostEmi, tagOnly(models.IntentNoCostEmi)},
	{IsAddressDetailsRequest, tagOnly(models.IntentAddressDetails)},
	{IsBankStatementRequest, tagOnly(models.IntentBankStatementRequest)},
	{IsAadhaarUploadRequest, tagOnly(models.IntentAadhaarUploadRequest)},
	{IsPanUploadRequest, tagOnly(models.IntentPanUploadRequest)},
	{IsTreatmentQuestion, tagOnly(models.IntentTreatmentQuestion)},
}

// Classify assigns exactly one intent tag to a transcript message. User
// turns are always plain text; agent turns run through the recognizer chain,
// then the question parser, then default to plain text. A currency amount is
// attached whenever present, independent of the intent.
func Classify(msg models.Message) models.ClassificationResult {
	result := classify(msg.Text, msg.Sender)
	result.Amount = FindAmount(msg.Text)
	return result
}

func classify(text, sender string) models.ClassificationResult {
	if sender != models.SenderAgent {
		return models.ClassificationResult{Kind: models.IntentPlainText}
	}
	for _, r := range rules {
		if r.match(text, sender) {
			return r.build(text)
		}
	}
	if q := ParseQuestion(text); q != nil {
		return models.ClassificationResult{Kind: models.IntentQuestionWithOptions, Question: q}
	}
	return models.ClassificationResult{Kind: models.IntentPlainText}
}
