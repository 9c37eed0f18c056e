package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NavalEP/carechat-engine/internal/models"
	"github.com/NavalEP/carechat-engine/internal/storage"
	"github.com/NavalEP/carechat-engine/internal/utils"
)

// OTP login purposes.
const (
	OTPPurposeDoctorLogin  = "doctor_login"
	OTPPurposePatientLogin = "patient_login"
)

const (
	otpTTL         = 10 * time.Minute
	otpMaxAttempts = 3
)

// OTPService issues and verifies login codes. An SMS sender may be nil in
// development; the code is then only logged.
type OTPService struct {
	kv  storage.KeyValue
	sms *SMSService
}

// NewOTPService creates an OTP service persisting through the given store.
func NewOTPService(kv storage.KeyValue, sms *SMSService) *OTPService {
	return &OTPService{kv: kv, sms: sms}
}

func otpKey(phone, purpose string) string {
	return fmt.Sprintf("otp:%s:%s", phone, purpose)
}

// CreateOTP generates a code, persists it and delivers it over SMS. Any
// previous code for the same phone and purpose is replaced.
func (s *OTPService) CreateOTP(ctx context.Context, phone, purpose, referenceID string) (*models.OTP, error) {
	code, err := utils.GenerateSecureOTP()
	if err != nil {
		return nil, fmt.Errorf("failed to generate OTP: %w", err)
	}

	otp := &models.OTP{
		Phone:       phone,
		Code:        code,
		Purpose:     purpose,
		ReferenceID: referenceID,
		ExpiresAt:   time.Now().Add(otpTTL),
	}
	if err := s.save(ctx, otp); err != nil {
		return nil, err
	}

	if s.sms != nil {
		if err := s.sms.SendOTP(phone, code); err != nil {
			return nil, fmt.Errorf("failed to deliver OTP: %w", err)
		}
	}
	return otp, nil
}

// VerifyOTP checks the code, enforcing expiry, single use and the attempt
// limit. On success it marks the code used and returns the reference id.
func (s *OTPService) VerifyOTP(ctx context.Context, phone, code, purpose string) (bool, string, error) {
	otp, err := s.load(ctx, phone, purpose)
	if err != nil {
		return false, "", fmt.Errorf("no active OTP for %s", phone)
	}

	if time.Now().After(otp.ExpiresAt) {
		return false, "", fmt.Errorf("OTP expired")
	}
	if otp.IsUsed {
		return false, "", fmt.Errorf("OTP already used")
	}

	otp.Attempts++
	if otp.Attempts > otpMaxAttempts {
		_ = s.save(ctx, otp)
		return false, "", fmt.Errorf("too many attempts")
	}
	if otp.Code != code {
		_ = s.save(ctx, otp)
		return false, "", fmt.Errorf("incorrect code")
	}

	now := time.Now()
	otp.VerifiedAt = &now
	otp.IsUsed = true
	if err := s.save(ctx, otp); err != nil {
		return false, "", err
	}
	return true, otp.ReferenceID, nil
}

func (s *OTPService) save(ctx context.Context, otp *models.OTP) error {
	b, err := json.Marshal(otp)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, otpKey(otp.Phone, otp.Purpose), string(b))
}

func (s *OTPService) load(ctx context.Context, phone, purpose string) (*models.OTP, error) {
	raw, err := s.kv.Get(ctx, otpKey(phone, purpose))
	if err != nil {
		return nil, err
	}
	var otp models.OTP
	if err := json.Unmarshal([]byte(raw), &otp); err != nil {
		return nil, err
	}
	return &otp, nil
}
