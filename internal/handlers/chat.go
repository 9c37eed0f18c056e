package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/NavalEP/carechat-engine/internal/intent"
	"github.com/NavalEP/carechat-engine/internal/models"
	"github.com/NavalEP/carechat-engine/internal/services"
)

// ChatHandler handles the conversation surface: sending turns, classifying
// them, recording option picks and document uploads.
type ChatHandler struct {
	machine    *services.SessionMachine
	selections *services.SelectionTracker
	links      *services.ShortLinkCache
	treatments *services.TreatmentSearchService
	api        services.CarePayAPI
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(machine *services.SessionMachine, selections *services.SelectionTracker, links *services.ShortLinkCache, treatments *services.TreatmentSearchService, api services.CarePayAPI) *ChatHandler {
	return &ChatHandler{
		machine:    machine,
		selections: selections,
		links:      links,
		treatments: treatments,
		api:        api,
	}
}

// Start runs the restore-or-create decision for an app load.
func (h *ChatHandler) Start(c *fiber.Ctx) error {
	if err := h.machine.Start(c.Context()); err != nil {
		if errors.Is(err, services.ErrNoIdentity) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Not logged in",
			})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to start session",
		})
	}
	return c.JSON(fiber.Map{
		"session_id": h.machine.SessionID(),
		"state":      h.machine.State(),
		"messages":   h.transcriptView(),
	})
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

// SendMessage delivers one user turn and returns the classified agent reply.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message text is required",
		})
	}

	reply, err := h.machine.Send(c.Context(), req.Text)
	if err != nil {
		if errors.Is(err, services.ErrAuthExpired) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication expired",
			})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to send message",
		})
	}

	return c.JSON(fiber.Map{
		"message":        reply,
		"classification": h.classifyView(reply),
	})
}

type classifyRequest struct {
	Text   string `json:"text"`
	Sender string `json:"sender"`
}

// Classify runs the interpretation chain over an arbitrary message. The
// classification is deterministic, so clients may re-request it for any
// transcript entry at any time.
func (h *ChatHandler) Classify(c *fiber.Ctx) error {
	var req classifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Sender == "" {
		req.Sender = models.SenderAgent
	}
	msg := models.Message{Text: req.Text, Sender: req.Sender}
	return c.JSON(h.classifyView(msg))
}

// History returns the transcript with a classification per entry.
func (h *ChatHandler) History(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"session_id": h.machine.SessionID(),
		"state":      h.machine.State(),
		"messages":   h.transcriptView(),
	})
}

type selectOptionRequest struct {
	MessageID string `json:"message_id"`
	Value     string `json:"value"`
}

// SelectOption records an option pick for a multiple-choice message. The
// first pick locks the message; later picks are no-ops and the recorded
// value is returned either way.
func (h *ChatHandler) SelectOption(c *fiber.Ctx) error {
	var req selectOptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.MessageID == "" || req.Value == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message ID and value are required",
		})
	}

	identityKey := h.machine.Identity().Key()
	sessionID := h.machine.SessionID()
	if err := h.selections.Choose(c.Context(), identityKey, sessionID, req.MessageID, req.Value); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record selection",
		})
	}

	return c.JSON(fiber.Map{
		"message_id": req.MessageID,
		"value":      h.selections.SelectionFor(c.Context(), identityKey, sessionID, req.MessageID),
		"locked":     true,
	})
}

type selectTreatmentRequest struct {
	MessageID string `json:"message_id"`
	Name      string `json:"name"`
}

// SelectTreatment records a treatment-name pick. Unlike option picks these
// may be revised until the session ends.
func (h *ChatHandler) SelectTreatment(c *fiber.Ctx) error {
	var req selectTreatmentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.MessageID == "" || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message ID and treatment name are required",
		})
	}

	identityKey := h.machine.Identity().Key()
	sessionID := h.machine.SessionID()
	if err := h.selections.ChooseTreatment(c.Context(), identityKey, sessionID, req.MessageID, req.Name); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record treatment",
		})
	}

	return c.JSON(fiber.Map{
		"message_id": req.MessageID,
		"name":       req.Name,
	})
}

// SearchTreatments queries the treatment catalogue. A query superseded by a
// newer one while in flight returns 409 and the client should simply drop it.
func (h *ChatHandler) SearchTreatments(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query parameter q is required",
		})
	}

	results, err := h.treatments.Search(c.Context(), query)
	if err != nil {
		if errors.Is(err, services.ErrStaleQuery) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Query superseded by a newer one",
			})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Treatment search failed",
		})
	}

	return c.JSON(fiber.Map{
		"query":   query,
		"results": results,
	})
}

type newInquiryRequest struct {
	Confirmed bool `json:"confirmed"`
}

// NewInquiry discards the current conversation and starts a fresh one. When
// the transcript holds user messages the caller must confirm first.
func (h *ChatHandler) NewInquiry(c *fiber.Ctx) error {
	var req newInquiryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.machine.NewInquiry(c.Context(), req.Confirmed); err != nil {
		if errors.Is(err, services.ErrConfirmationRequired) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":                 "Current conversation has unsaved messages",
				"confirmation_required": true,
			})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to start new inquiry",
		})
	}

	return c.JSON(fiber.Map{
		"message":    "New inquiry started",
		"session_id": h.machine.SessionID(),
	})
}

// UploadDocument accepts a document image, shows an in-progress transcript
// message immediately and overwrites it in place with the outcome once the
// OCR round-trip finishes.
func (h *ChatHandler) UploadDocument(c *fiber.Ctx) error {
	docType := c.FormValue("document_type")
	if docType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Document type is required",
		})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Document file is required",
		})
	}
	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read uploaded file",
		})
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read uploaded file",
		})
	}

	progress := models.NewMessage(fmt.Sprintf("Uploading %s...", fileHeader.Filename), models.SenderUser)
	progress.FileName = fileHeader.Filename
	h.machine.AppendLocal(progress)

	result, err := h.api.UploadDocument(c.Context(), docType, fileHeader.Filename, data)
	if err != nil {
		log.Printf("document upload failed for %s: %v", fileHeader.Filename, err)
		h.machine.OverwriteMessageText(progress.ID, fmt.Sprintf("Upload of %s failed. Please try again.", fileHeader.Filename))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":      "Document upload failed",
			"message_id": progress.ID,
		})
	}

	h.machine.OverwriteMessageText(progress.ID, fmt.Sprintf("%s uploaded successfully.", fileHeader.Filename))
	return c.JSON(fiber.Map{
		"message_id": progress.ID,
		"result":     result,
	})
}

// classifyView runs the classifier and swaps payment-step short links for
// their cached long URLs. Rendering never blocks on resolution: an uncached
// short link is returned as-is with URLResolving set, the backend round-trip
// runs in the background and a later render picks up the long URL.
func (h *ChatHandler) classifyView(msg models.Message) models.ClassificationResult {
	result := intent.Classify(msg)
	if result.PaymentSteps != nil {
		for i := range result.PaymentSteps.Steps {
			url, done := h.links.ResolveAsync(result.PaymentSteps.Steps[i].URL)
			result.PaymentSteps.Steps[i].URL = url
			result.PaymentSteps.Steps[i].URLResolving = !done
		}
		if result.PaymentSteps.AadhaarURL != "" {
			url, _ := h.links.ResolveAsync(result.PaymentSteps.AadhaarURL)
			result.PaymentSteps.AadhaarURL = url
		}
	}
	return result
}

type transcriptEntry struct {
	Message        models.Message              `json:"message"`
	Classification models.ClassificationResult `json:"classification"`
}

func (h *ChatHandler) transcriptView() []transcriptEntry {
	transcript := h.machine.Transcript()
	entries := make([]transcriptEntry, 0, len(transcript))
	for _, msg := range transcript {
		entries = append(entries, transcriptEntry{
			Message:        msg,
			Classification: h.classifyView(msg),
		})
	}
	return entries
}
