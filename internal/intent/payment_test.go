package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePaymentStepsThreeStepScrambledURLs(t *testing.T) {
	// URLs arrive in scrambled order; binding must follow keywords, and the
	// emitted steps must follow canonical completion order.
	text := "Your payment is now just 3 steps away!\n" +
		"https://pay.example.com/agreementesigning?id=1\n" +
		"https://pay.example.com/faceverified?id=2\n" +
		"https://pay.example.com/emiautopayintro?id=3"

	payload := ParsePaymentSteps(text)
	require.Len(t, payload.Steps, 3)
	assert.Equal(t, "Face Verification", payload.Steps[0].Title)
	assert.Equal(t, "https://pay.example.com/faceverified?id=2", payload.Steps[0].URL)
	assert.Equal(t, "EMI Auto-pay Setup", payload.Steps[1].Title)
	assert.Equal(t, "https://pay.example.com/emiautopayintro?id=3", payload.Steps[1].URL)
	assert.Equal(t, "Loan Agreement", payload.Steps[2].Title)
	assert.Equal(t, "https://pay.example.com/agreementesigning?id=1", payload.Steps[2].URL)
	assert.Empty(t, payload.AadhaarURL)
}

func TestParsePaymentStepsFourStepVariant(t *testing.T) {
	text := "Great news! Your payment is now just 4 steps away.\n" +
		"Adhaar verification: https://pay.example.com/adhaar?id=0\n" +
		"https://pay.example.com/faceverified?id=1\n" +
		"https://pay.example.com/emiautopayintro?id=2\n" +
		"https://pay.example.com/agreementesigning?id=3"

	payload := ParsePaymentSteps(text)
	require.Len(t, payload.Steps, 4)
	assert.Equal(t, "Aadhaar Verification", payload.Steps[0].Title)
	assert.Equal(t, "https://pay.example.com/adhaar?id=0", payload.Steps[0].URL)
	assert.Equal(t, "https://pay.example.com/adhaar?id=0", payload.AadhaarURL)
	assert.Equal(t, "Loan Agreement", payload.Steps[3].Title)
}

func TestParsePaymentStepsPositionalFallback(t *testing.T) {
	// No keyword in any URL: steps bind positionally in appearance order.
	text := "Your payment is now just 3 steps away!\n" +
		"https://s.example.com/a\nhttps://s.example.com/b\nhttps://s.example.com/c"

	payload := ParsePaymentSteps(text)
	require.Len(t, payload.Steps, 3)
	assert.Equal(t, "https://s.example.com/a", payload.Steps[0].URL)
	assert.Equal(t, "https://s.example.com/b", payload.Steps[1].URL)
	assert.Equal(t, "https://s.example.com/c", payload.Steps[2].URL)
}

func TestParsePaymentStepsDropsStepWithoutURL(t *testing.T) {
	// Only two keyword-less URLs for a 3-step message: the last step has
	// neither a keyword match nor a positional URL and is dropped, never
	// emitted with no action.
	text := "Your payment is now just 3 steps away!\n" +
		"https://s.example.com/a\nhttps://s.example.com/b"

	payload := ParsePaymentSteps(text)
	require.Len(t, payload.Steps, 2)
	assert.Equal(t, "Face Verification", payload.Steps[0].Title)
	assert.Equal(t, "EMI Auto-pay Setup", payload.Steps[1].Title)
}
