package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuestionNumberedList(t *testing.T) {
	q := ParseQuestion("Pay now?\n\n1. Yes\n2. No")
	require.NotNil(t, q)
	assert.Equal(t, "Pay now?", q.Question)
	assert.Equal(t, []string{"Yes", "No"}, q.Options)
	assert.Equal(t, []string{"1", "2"}, q.OptionNumbers)
}

func TestParseQuestionBinaryInput(t *testing.T) {
	text := "Do you want to proceed with the plan?\nProceed\nCancel\n\nPlease Enter input 1 or 2 only"
	q := ParseQuestion(text)
	require.NotNil(t, q)
	assert.Equal(t, "Do you want to proceed with the plan?", q.Question)
	assert.Equal(t, []string{"Proceed", "Cancel"}, q.Options)
	assert.Equal(t, []string{"1", "2"}, q.OptionNumbers)
}

func TestParseQuestionRangeInput(t *testing.T) {
	q := ParseQuestion("A\nB\nC\n\nPlease Enter input between 1 to 2 only")
	require.NotNil(t, q)
	assert.Equal(t, "A", q.Question)
	assert.Equal(t, []string{"B", "C"}, q.Options)
	assert.Equal(t, []string{"1", "2"}, q.OptionNumbers)
}

func TestParseQuestionRangeMismatchFallsThrough(t *testing.T) {
	// Range 1..3 but only two option lines: the range grammar is abandoned
	// and no later grammar fits either.
	q := ParseQuestion("Pick a colour\nred\nblue\n\nPlease Enter input between 1 to 3 only")
	assert.Nil(t, q)
}

func TestParseQuestionAllCapsList(t *testing.T) {
	q := ParseQuestion("Which document will you upload?\nAADHAAR CARD\nPAN CARD")
	require.NotNil(t, q)
	assert.Equal(t, "Which document will you upload?", q.Question)
	assert.Equal(t, []string{"AADHAAR CARD", "PAN CARD"}, q.Options)
	assert.Nil(t, q.OptionNumbers)
}

func TestParseQuestionMultiLineQuestionParagraph(t *testing.T) {
	// The whole first paragraph is the question; its second line must not
	// leak into the options or suppress the numeric tokens.
	q := ParseQuestion("Choose a repayment plan\nthat suits your budget\n\n1. Six months\n2. Nine months")
	require.NotNil(t, q)
	assert.Equal(t, "Choose a repayment plan\nthat suits your budget", q.Question)
	assert.Equal(t, []string{"Six months", "Nine months"}, q.Options)
	assert.Equal(t, []string{"1", "2"}, q.OptionNumbers)
}

func TestParseQuestionNumberedListWithoutParagraphBreak(t *testing.T) {
	q := ParseQuestion("Pay now?\n1. Yes\n2. No")
	require.NotNil(t, q)
	assert.Equal(t, "Pay now?", q.Question)
	assert.Equal(t, []string{"Yes", "No"}, q.Options)
	assert.Equal(t, []string{"1", "2"}, q.OptionNumbers)
}

func TestParseQuestionUnnumberedLineKeptLiteral(t *testing.T) {
	q := ParseQuestion("Choose a plan\n\n1. Six months\n2. Nine months\nNone of these")
	require.NotNil(t, q)
	assert.Equal(t, []string{"Six months", "Nine months", "None of these"}, q.Options)
	assert.Nil(t, q.OptionNumbers)
}

func TestParseQuestionRejectsSingleOption(t *testing.T) {
	assert.Nil(t, ParseQuestion("Ready?\n\n1. Yes"))
}

func TestParseQuestionRejectsPatientInfoEcho(t *testing.T) {
	text := "Full Name: Asha Rao\nPhone Number: 9876543210\n\n1. Confirm\n2. Edit"
	assert.Nil(t, ParseQuestion(text))
}

func TestParseQuestionPlainProse(t *testing.T) {
	assert.Nil(t, ParseQuestion("Thanks, we have received your documents."))
}
