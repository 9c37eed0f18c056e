package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NavalEP/carechat-engine/internal/storage"
)

func TestOTPCreateAndVerify(t *testing.T) {
	ctx := context.Background()
	svc := NewOTPService(storage.NewMemoryStore(), nil)

	otp, err := svc.CreateOTP(ctx, "9876543210", OTPPurposeDoctorLogin, "D100")
	require.NoError(t, err)
	require.Len(t, otp.Code, 6)

	ok, ref, err := svc.VerifyOTP(ctx, "9876543210", otp.Code, OTPPurposeDoctorLogin)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "D100", ref)
}

func TestOTPSingleUse(t *testing.T) {
	ctx := context.Background()
	svc := NewOTPService(storage.NewMemoryStore(), nil)

	otp, err := svc.CreateOTP(ctx, "9876543210", OTPPurposePatientLogin, "")
	require.NoError(t, err)

	ok, _, err := svc.VerifyOTP(ctx, "9876543210", otp.Code, OTPPurposePatientLogin)
	require.NoError(t, err)
	require.True(t, ok)

	ok, _, err = svc.VerifyOTP(ctx, "9876543210", otp.Code, OTPPurposePatientLogin)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestOTPWrongCodeAndAttemptLimit(t *testing.T) {
	ctx := context.Background()
	svc := NewOTPService(storage.NewMemoryStore(), nil)

	otp, err := svc.CreateOTP(ctx, "9876543210", OTPPurposeDoctorLogin, "D100")
	require.NoError(t, err)

	for i := 0; i < otpMaxAttempts; i++ {
		ok, _, err := svc.VerifyOTP(ctx, "9876543210", "000000", OTPPurposeDoctorLogin)
		assert.Error(t, err)
		assert.False(t, ok)
	}

	// Attempts are exhausted; even the right code is refused now.
	ok, _, err := svc.VerifyOTP(ctx, "9876543210", otp.Code, OTPPurposeDoctorLogin)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestOTPExpired(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	svc := NewOTPService(kv, nil)

	otp, err := svc.CreateOTP(ctx, "9876543210", OTPPurposeDoctorLogin, "D100")
	require.NoError(t, err)

	otp.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, svc.save(ctx, otp))

	ok, _, err := svc.VerifyOTP(ctx, "9876543210", otp.Code, OTPPurposeDoctorLogin)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestOTPReplacesPreviousCode(t *testing.T) {
	ctx := context.Background()
	svc := NewOTPService(storage.NewMemoryStore(), nil)

	first, err := svc.CreateOTP(ctx, "9876543210", OTPPurposeDoctorLogin, "D100")
	require.NoError(t, err)
	second, err := svc.CreateOTP(ctx, "9876543210", OTPPurposeDoctorLogin, "D100")
	require.NoError(t, err)

	if first.Code != second.Code {
		ok, _, err := svc.VerifyOTP(ctx, "9876543210", first.Code, OTPPurposeDoctorLogin)
		assert.Error(t, err)
		assert.False(t, ok)
	}
	ok, _, err := svc.VerifyOTP(ctx, "9876543210", second.Code, OTPPurposeDoctorLogin)
	require.NoError(t, err)
	assert.True(t, ok)
}
