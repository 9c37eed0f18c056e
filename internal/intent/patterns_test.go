package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecognizersOnlyFireOnAgentTurns(t *testing.T) {
	text := "Please upload your bank statement."
	assert.True(t, IsBankStatementRequest(text, "agent"))
	assert.False(t, IsBankStatementRequest(text, "user"))
}

func TestRecognizersAreCaseInsensitive(t *testing.T) {
	assert.True(t, IsNoCostEmi("NO COST EMI available for you", "agent"))
	assert.True(t, IsAadhaarUploadRequest("Upload your ADHAAR card", "agent"))
}

func TestIsPatientInfoEcho(t *testing.T) {
	assert.True(t, IsPatientInfoEcho("Full Name: Asha Rao"))
	assert.True(t, IsPatientInfoEcho("Patient's phone number"))
	assert.True(t, IsPatientInfoEcho("Monthly Income: 50000"))
	assert.False(t, IsPatientInfoEcho("Which city are you in?"))
}

func TestFindAmount(t *testing.T) {
	assert.Equal(t, "₹ 45,000", FindAmount("Your EMI budget is ₹ 45,000 per month"))
	assert.Equal(t, "₹12000.50", FindAmount("Cost: ₹12000.50"))
	assert.Empty(t, FindAmount("No amount here"))
}
