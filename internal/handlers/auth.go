package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/NavalEP/carechat-engine/internal/models"
	"github.com/NavalEP/carechat-engine/internal/services"
)

// AuthHandler handles OTP login and logout.
type AuthHandler struct {
	otp     *services.OTPService
	machine *services.SessionMachine
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(otp *services.OTPService, machine *services.SessionMachine) *AuthHandler {
	return &AuthHandler{
		otp:     otp,
		machine: machine,
	}
}

type sendOTPRequest struct {
	Phone    string `json:"phone"`
	Role     string `json:"role"` // "doctor" or "patient"
	DoctorID string `json:"doctor_id,omitempty"`
}

// SendOTP issues a login code for the given phone and role.
func (h *AuthHandler) SendOTP(c *fiber.Ctx) error {
	var req sendOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Phone == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Phone number is required",
		})
	}

	purpose := services.OTPPurposePatientLogin
	reference := req.Phone
	if req.Role == "doctor" {
		if req.DoctorID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Doctor ID is required for doctor login",
			})
		}
		purpose = services.OTPPurposeDoctorLogin
		reference = req.DoctorID
	}

	if _, err := h.otp.CreateOTP(c.Context(), req.Phone, purpose, reference); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to send OTP",
		})
	}

	return c.JSON(fiber.Map{
		"message": "OTP sent",
		"phone":   req.Phone,
	})
}

type verifyOTPRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
}

// VerifyOTP checks the code, stores the authenticated identity and starts a
// fresh session.
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Phone == "" || req.Code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Phone and code are required",
		})
	}

	purpose := services.OTPPurposePatientLogin
	kind := models.IdentityPatient
	if req.Role == "doctor" {
		purpose = services.OTPPurposeDoctorLogin
		kind = models.IdentityDoctor
	}

	ok, reference, err := h.otp.VerifyOTP(c.Context(), req.Phone, req.Code, purpose)
	if err != nil || !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired OTP",
		})
	}

	identity := models.Identity{
		Kind:  kind,
		Phone: req.Phone,
		Name:  req.Name,
	}
	if kind == models.IdentityDoctor {
		identity.DoctorID = reference
	}

	if err := h.machine.SetIdentity(c.Context(), identity); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store identity",
		})
	}
	if err := h.machine.Start(c.Context()); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to start session",
		})
	}

	return c.JSON(fiber.Map{
		"message":    "Login successful",
		"identity":   identity.Key(),
		"session_id": h.machine.SessionID(),
		"state":      h.machine.State(),
	})
}

// Logout ends the session and purges session-scoped state. Doctor identity
// survives for the next login; patient identity is removed entirely.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.machine.Logout(c.Context()); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to log out",
		})
	}
	return c.JSON(fiber.Map{
		"message": "Logged out",
	})
}
