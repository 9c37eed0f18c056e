package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NavalEP/carechat-engine/internal/models"
)

func agentMsg(text string) models.Message {
	return models.Message{ID: "m1", Text: text, Sender: models.SenderAgent}
}

func TestClassifyIsDeterministic(t *testing.T) {
	msg := agentMsg("Pay now?\n\n1. Yes\n2. No")
	first := Classify(msg)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Classify(msg))
	}
	assert.Equal(t, models.IntentQuestionWithOptions, first.Kind)
}

func TestClassifyUserTurnIsAlwaysPlainText(t *testing.T) {
	msg := models.Message{Text: "please upload your aadhaar card", Sender: models.SenderUser}
	assert.Equal(t, models.IntentPlainText, Classify(msg).Kind)
}

func TestClassifyPriorityOrder(t *testing.T) {
	cases := []struct {
		name string
		text string
		want models.IntentKind
	}{
		{"payment steps", "Your payment is now just 3 steps away!\nhttps://pay.example.com/faceverified\nhttps://pay.example.com/emiautopayintro\nhttps://pay.example.com/agreementesigning", models.IntentPaymentSteps},
		{"post approval", "Congratulations! Your loan has been approved. Continue here: https://pay.example.com/next", models.IntentPostApprovalLink},
		{"no cost emi", "You are eligible for a No Cost EMI plan.", models.IntentNoCostEmi},
		{"address details", "Please share your current address details with pincode.", models.IntentAddressDetails},
		{"bank statement", "Please upload your bank statement for the last 3 months.", models.IntentBankStatementRequest},
		{"aadhaar upload", "Please upload a photo of your Aadhaar card, front and back.", models.IntentAadhaarUploadRequest},
		{"pan upload", "Please upload a photo of your PAN card.", models.IntentPanUploadRequest},
		{"treatment question", "Which treatment are you looking for? Search the treatment below.", models.IntentTreatmentQuestion},
		{"question with options", "Choose tenure\n\n1. 6 months\n2. 9 months", models.IntentQuestionWithOptions},
		{"plain text", "Thanks, our team will get back to you shortly.", models.IntentPlainText},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(agentMsg(tc.text))
			assert.Equal(t, tc.want, got.Kind)
		})
	}
}

func TestClassifyAddressBeatsBankStatementOverlap(t *testing.T) {
	// A message matching both the address and bank-statement recognizers
	// resolves by the fixed evaluation order: address details first.
	text := "Please share your current address details and your bank statement."
	got := Classify(agentMsg(text))
	assert.Equal(t, models.IntentAddressDetails, got.Kind)
}

func TestClassifyPatientInfoEchoNeverBecomesQuestion(t *testing.T) {
	text := "Patient's phone number\n\n1. Confirm\n2. Edit"
	got := Classify(agentMsg(text))
	assert.Equal(t, models.IntentPlainText, got.Kind)
	assert.Nil(t, got.Question)
}

func TestClassifyAttachesAmountIndependentOfIntent(t *testing.T) {
	got := Classify(agentMsg("Your approved amount is ₹ 1,20,000.50."))
	assert.Equal(t, models.IntentPlainText, got.Kind)
	assert.Equal(t, "₹ 1,20,000.50", got.Amount)
}

func TestClassifyPaymentStepsCarriesParsedSteps(t *testing.T) {
	text := "Your payment is now just 4 steps away!\n" +
		"https://pay.example.com/adhaar\nhttps://pay.example.com/faceverified\n" +
		"https://pay.example.com/emiautopayintro\nhttps://pay.example.com/agreementesigning"
	got := Classify(agentMsg(text))
	require.Equal(t, models.IntentPaymentSteps, got.Kind)
	require.NotNil(t, got.PaymentSteps)
	assert.Len(t, got.PaymentSteps.Steps, 4)
	assert.Equal(t, "https://pay.example.com/adhaar", got.PaymentSteps.AadhaarURL)
}
