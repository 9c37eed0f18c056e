package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/NavalEP/carechat-engine/internal/models"
)

// ErrAuthExpired marks upstream rejections caused by a missing or invalid
// token. It is handled centrally (forced logout), never per call site.
var ErrAuthExpired = errors.New("auth token expired")

// CarePayAPI is the upstream loan-bot surface the engine consumes. The bot
// may call slow downstream decisioning, hence the generous client timeout.
type CarePayAPI interface {
	CreateSession(ctx context.Context) (string, error)
	SendMessage(ctx context.Context, sessionID, text string) (string, error)
	GetSessionDetails(ctx context.Context, sessionID string) (*models.SessionDetails, error)
	ResolveShortLink(ctx context.Context, code string) (string, error)
	UploadDocument(ctx context.Context, docType, fileName string, data []byte) (*models.DocumentOCRResult, error)
	SearchTreatments(ctx context.Context, query string) ([]models.TreatmentSearchResult, error)
	Login(ctx context.Context, username, password string) (string, error)
}

// CarePayClient is the HTTP implementation of CarePayAPI.
type CarePayClient struct {
	baseURL    string
	httpClient *http.Client
	token      func() string
}

// NewCarePayClient creates the upstream client. token supplies the current
// bearer token per request (it changes when the re-auth job refreshes it);
// pass nil for unauthenticated use.
func NewCarePayClient(baseURL string, token func() string) *CarePayClient {
	if token == nil {
		token = func() string { return "" }
	}
	return &CarePayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
		token: token,
	}
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

// CreateSession asks the bot for a fresh conversation id.
func (c *CarePayClient) CreateSession(ctx context.Context) (string, error) {
	var resp createSessionResponse
	if err := c.post(ctx, "/api/v1/session", nil, &resp); err != nil {
		return "", err
	}
	if resp.SessionID == "" {
		return "", fmt.Errorf("create session: empty session id")
	}
	return resp.SessionID, nil
}

type sendMessageRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type sendMessageResponse struct {
	Status   string `json:"status"`
	Response string `json:"response"`
}

// SendMessage delivers one user turn and returns the bot's reply text.
func (c *CarePayClient) SendMessage(ctx context.Context, sessionID, text string) (string, error) {
	var resp sendMessageResponse
	err := c.post(ctx, "/api/v1/message", sendMessageRequest{SessionID: sessionID, Text: text}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Status != "" && resp.Status != "success" {
		return "", fmt.Errorf("send message: status %s", resp.Status)
	}
	return resp.Response, nil
}

// GetSessionDetails fetches the backend-held conversation, confirming the
// session still exists.
func (c *CarePayClient) GetSessionDetails(ctx context.Context, sessionID string) (*models.SessionDetails, error) {
	var details models.SessionDetails
	if err := c.get(ctx, "/api/v1/session/"+url.PathEscape(sessionID), &details); err != nil {
		return nil, err
	}
	details.SessionID = sessionID
	return &details, nil
}

type resolveShortLinkResponse struct {
	Status  string `json:"status"`
	LongURL string `json:"long_url"`
}

// ResolveShortLink exchanges a short-link code for its destination URL.
func (c *CarePayClient) ResolveShortLink(ctx context.Context, code string) (string, error) {
	var resp resolveShortLinkResponse
	if err := c.get(ctx, "/api/v1/shortlink/"+url.PathEscape(code), &resp); err != nil {
		return "", err
	}
	if resp.Status != "" && resp.Status != "success" {
		return "", fmt.Errorf("resolve short link: status %s", resp.Status)
	}
	if resp.LongURL == "" {
		return "", fmt.Errorf("resolve short link: empty long url")
	}
	return resp.LongURL, nil
}

// UploadDocument sends a document image and returns the validated OCR
// payload.
func (c *CarePayClient) UploadDocument(ctx context.Context, docType, fileName string, data []byte) (*models.DocumentOCRResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := writer.WriteField("document_type", docType); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/document", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	var result models.DocumentOCRResult
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	if result.DocumentType == "" {
		result.DocumentType = docType
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return &result, nil
}

type treatmentSearchResponse struct {
	Results []models.TreatmentSearchResult `json:"results"`
}

// SearchTreatments queries the treatment catalogue, dropping results that
// fail boundary validation.
func (c *CarePayClient) SearchTreatments(ctx context.Context, query string) ([]models.TreatmentSearchResult, error) {
	var resp treatmentSearchResponse
	path := "/api/v1/treatments?q=" + url.QueryEscape(query)
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	valid := make([]models.TreatmentSearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		if err := r.Validate(); err != nil {
			log.Printf("treatment search: dropping invalid result: %v", err)
			continue
		}
		valid = append(valid, r)
	}
	return valid, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login authenticates the machine account and returns a fresh token.
func (c *CarePayClient) Login(ctx context.Context, username, password string) (string, error) {
	var resp loginResponse
	if err := c.post(ctx, "/api/v1/auth/login", loginRequest{Username: username, Password: password}, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("login: empty token")
	}
	return resp.Token, nil
}

func (c *CarePayClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	return c.do(req, out)
}

func (c *CarePayClient) post(ctx context.Context, path string, payload, out any) error {
	var body *bytes.Buffer
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(b)
	} else {
		body = &bytes.Buffer{}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	return c.do(req, out)
}

func (c *CarePayClient) authorize(req *http.Request) {
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *CarePayClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("carepay %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		msg := apiErr.Error
		if msg == "" {
			msg = apiErr.Message
		}
		if IsAuthExpiredMessage(msg) || resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("carepay %s: %s: %w", req.URL.Path, msg, ErrAuthExpired)
		}
		return fmt.Errorf("carepay %s: status %d: %s", req.URL.Path, resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// IsAuthExpiredMessage reports whether an upstream error message indicates
// an expired or invalid token. The bot does not use structured error codes,
// so this inspects message content.
func IsAuthExpiredMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "token expired") ||
		strings.Contains(m, "invalid token") ||
		strings.Contains(m, "unauthorized")
}
