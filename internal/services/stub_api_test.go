package services

import (
	"context"
	"errors"

	"github.com/NavalEP/carechat-engine/internal/models"
)

// stubAPI is an embeddable CarePayAPI base; tests override the calls they
// exercise.
type stubAPI struct{}

func (stubAPI) CreateSession(context.Context) (string, error) {
	return "", errors.New("stub: create session")
}

func (stubAPI) SendMessage(context.Context, string, string) (string, error) {
	return "", errors.New("stub: send message")
}

func (stubAPI) GetSessionDetails(context.Context, string) (*models.SessionDetails, error) {
	return nil, errors.New("stub: session details")
}

func (stubAPI) ResolveShortLink(context.Context, string) (string, error) {
	return "", errors.New("stub: resolve short link")
}

func (stubAPI) UploadDocument(context.Context, string, string, []byte) (*models.DocumentOCRResult, error) {
	return nil, errors.New("stub: upload document")
}

func (stubAPI) SearchTreatments(context.Context, string) ([]models.TreatmentSearchResult, error) {
	return nil, errors.New("stub: search treatments")
}

func (stubAPI) Login(context.Context, string, string) (string, error) {
	return "", errors.New("stub: login")
}
