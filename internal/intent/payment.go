package intent

import (
	"regexp"
	"strings"

	"github.com/NavalEP/carechat-engine/internal/models"
)

// The disbursal message comes in two templates: a 4-step variant that
// includes Aadhaar verification and a 3-step variant that omits it. URLs are
// bound to steps keyword-first with a positional fallback, which keeps the
// parse robust to the bot reordering its links while still working when the
// URL params carry no recognizable keyword.

var stepURLRe = regexp.MustCompile(`https://[^\s]+`)

type stepSpec struct {
	keywords            []string
	title               string
	description         string
	primaryButtonText   string
	secondaryButtonText string
}

var (
	aadhaarStep = stepSpec{
		keywords:            []string{"adhaar", "aadhaar"},
		title:               "Aadhaar Verification",
		description:         "Verify your identity with your Aadhaar card.",
		primaryButtonText:   "Verify Aadhaar",
		secondaryButtonText: "Copy Link",
	}
	faceStep = stepSpec{
		keywords:            []string{"faceverified"},
		title:               "Face Verification",
		description:         "Take a quick selfie to confirm it's you.",
		primaryButtonText:   "Start Face Scan",
		secondaryButtonText: "Copy Link",
	}
	autoPayStep = stepSpec{
		keywords:            []string{"emiautopayintro"},
		title:               "EMI Auto-pay Setup",
		description:         "Set up automatic EMI payments from your bank account.",
		primaryButtonText:   "Set Up Auto-pay",
		secondaryButtonText: "Copy Link",
	}
	agreementStep = stepSpec{
		keywords:            []string{"agreementesigning"},
		title:               "Loan Agreement",
		description:         "Review and e-sign your loan agreement.",
		primaryButtonText:   "Sign Agreement",
		secondaryButtonText: "Copy Link",
	}
)

// ParsePaymentSteps extracts the ordered disbursal steps from a payment-steps
// message. Steps that cannot be bound to a URL by keyword or position are
// dropped rather than emitted without an action. The Aadhaar URL, when
// present, is also captured into a separate fallback slot.
func ParsePaymentSteps(text string) models.PaymentStepsPayload {
	lower := strings.ToLower(text)
	fourStep := strings.Contains(lower, "payment is now just 4 steps away") ||
		strings.Contains(lower, "adhaar verification") ||
		strings.Contains(lower, "aadhaar verification")

	urls := extractStepURLs(text)

	specs := []stepSpec{faceStep, autoPayStep, agreementStep}
	if fourStep {
		specs = []stepSpec{aadhaarStep, faceStep, autoPayStep, agreementStep}
	}

	payload := models.PaymentStepsPayload{}
	for _, u := range urls {
		if containsAny(strings.ToLower(u), aadhaarStep.keywords...) {
			payload.AadhaarURL = u
			break
		}
	}

	for i, spec := range specs {
		url := matchStepURL(urls, spec.keywords)
		if url == "" && i < len(urls) {
			url = urls[i]
		}
		if url == "" {
			continue
		}
		payload.Steps = append(payload.Steps, models.PaymentStep{
			Title:               spec.title,
			Description:         spec.description,
			URL:                 url,
			PrimaryButtonText:   spec.primaryButtonText,
			SecondaryButtonText: spec.secondaryButtonText,
		})
	}
	return payload
}

// extractStepURLs returns every https URL in appearance order, with trailing
// punctuation trimmed.
func extractStepURLs(text string) []string {
	raw := stepURLRe.FindAllString(text, -1)
	urls := make([]string, 0, len(raw))
	for _, u := range raw {
		urls = append(urls, strings.TrimRight(u, ".,)!"))
	}
	return urls
}

// matchStepURL returns the first URL containing one of the step's keywords.
func matchStepURL(urls []string, keywords []string) string {
	for _, u := range urls {
		if containsAny(strings.ToLower(u), keywords...) {
			return u
		}
	}
	return ""
}
