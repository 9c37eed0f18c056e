package intent

import (
	"regexp"
	"strings"
)

// Pattern library: each recognizer is a stateless predicate over the raw
// message text and its sender. All matching is case-insensitive keyword
// conjunction; conflicts between recognizers are resolved by the evaluation
// order in Classify.

// amountRe matches rupee amounts like ₹ 1,20,000.50 for highlighted
// rendering.
var amountRe = regexp.MustCompile(`₹\s*[0-9]+(?:,[0-9]+)*(?:\.[0-9]+)?`)

// patientInfoLabels are field labels echoed back from the patient-details
// form. Text carrying any of these must never render as a button menu.
var patientInfoLabels = []string{
	"full name",
	"phone number",
	"treatment cost",
	"monthly income",
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func containsAll(s string, needles ...string) bool {
	for _, n := range needles {
		if !strings.Contains(s, n) {
			return false
		}
	}
	return true
}

// agentText lowercases the message for matching and reports whether the turn
// is agent-authored. Classification only governs agent turns.
func agentText(text, sender string) (string, bool) {
	if sender != "agent" {
		return "", false
	}
	return strings.ToLower(text), true
}

func hasHTTPSURL(text string) bool {
	return strings.Contains(strings.ToLower(text), "https://")
}

// IsPaymentSteps matches both disbursal-step templates: the 4-step variant
// announces itself ("payment is now just 4 steps away", Aadhaar verification
// included), the 3-step variant only says "steps away".
func IsPaymentSteps(text, sender string) bool {
	m, ok := agentText(text, sender)
	if !ok {
		return false
	}
	if containsAll(m, "payment", "steps away") {
		return true
	}
	return containsAny(m, "adhaar verification", "aadhaar verification") && hasHTTPSURL(m)
}

// IsPostApprovalLink matches the congratulatory approved-loan message that
// carries the post-approval journey link.
func IsPostApprovalLink(text, sender string) bool {
	m, ok := agentText(text, sender)
	if !ok {
		return false
	}
	if containsAny(m, "post approval") {
		return true
	}
	return containsAll(m, "loan", "approved") && hasHTTPSURL(m)
}

// IsNoCostEmi matches the no-cost EMI plan offer.
func IsNoCostEmi(text, sender string) bool {
	m, ok := agentText(text, sender)
	if !ok {
		return false
	}
	return containsAny(m, "no cost emi", "no-cost emi")
}

// IsAddressDetailsRequest matches the prompt asking for the patient's
// current address.
func IsAddressDetailsRequest(text, sender string) bool {
	m, ok := agentText(text, sender)
	if !ok {
		return false
	}
	return containsAll(m, "address", "details") || containsAll(m, "address", "pincode")
}

// IsBankStatementRequest matches the bank-statement upload prompt.
func IsBankStatementRequest(text, sender string) bool {
	m, ok := agentText(text, sender)
	if !ok {
		return false
	}
	return strings.Contains(m, "bank statement")
}

// IsAadhaarUploadRequest matches the Aadhaar card upload prompt. The bot
// spells it both "aadhaar" and "adhaar".
func IsAadhaarUploadRequest(text, sender string) bool {
	m, ok := agentText(text, sender)
	if !ok {
		return false
	}
	return containsAny(m, "aadhaar", "adhaar") && containsAny(m, "upload", "photo", "front and back")
}

// IsPanUploadRequest matches the PAN card upload prompt.
func IsPanUploadRequest(text, sender string) bool {
	m, ok := agentText(text, sender)
	if !ok {
		return false
	}
	return strings.Contains(m, "pan card") && containsAny(m, "upload", "photo")
}

// IsTreatmentQuestion matches the prompt asking which treatment the loan is
// for. It renders as a searchable treatment picker, not a plain menu.
func IsTreatmentQuestion(text, sender string) bool {
	m, ok := agentText(text, sender)
	if !ok {
		return false
	}
	return strings.Contains(m, "treatment") && containsAny(m,
		"which treatment",
		"name of the treatment",
		"select the treatment",
		"treatment are you looking",
	)
}

// IsPatientInfoEcho reports whether the text is an echo of the structured
// patient-details form. Question detection must never fire on these.
func IsPatientInfoEcho(text string) bool {
	m := strings.ToLower(text)
	return containsAny(m, patientInfoLabels...)
}

// FindAmount returns the first rupee amount in the text, or "" when none is
// present. Amount highlighting is independent of the classified intent.
func FindAmount(text string) string {
	return amountRe.FindString(text)
}
