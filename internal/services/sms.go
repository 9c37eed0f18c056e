package services

import (
	"fmt"
	"log"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// SMSService delivers login OTP codes over SMS via Twilio.
type SMSService struct {
	client *twilio.RestClient
	from   string
}

// NewSMSService creates a new Twilio-backed SMS service from environment
// credentials.
func NewSMSService() (*SMSService, error) {
	accountSid := os.Getenv("TWILIO_ACCOUNT_SID")
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")
	from := os.Getenv("TWILIO_SMS_FROM")

	if accountSid == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("missing Twilio credentials in environment variables")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})

	return &SMSService{client: client, from: from}, nil
}

// SendSMS sends a plain text message to the given phone number.
func (s *SMSService) SendSMS(to, message string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(s.from)
	params.SetTo(to)
	params.SetBody(message)

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		log.Printf("failed to send SMS to %s: %v", to, err)
		return err
	}

	log.Printf("SMS sent to %s, SID: %s", to, *resp.Sid)
	return nil
}

// SendOTP formats and sends the login code.
func (s *SMSService) SendOTP(to, code string) error {
	return s.SendSMS(to, fmt.Sprintf("%s is your CarePay login code. It expires in 10 minutes.", code))
}
