package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kumarpun/fit-theory-sub000/internal/platform/storage"
)

const maxEvidenceSize = 10 << 20

var (
	// ErrEvidenceInvalidInput signals an unsupported purpose, content type or file name.
	ErrEvidenceInvalidInput = errors.New("evidence: invalid input")
	// ErrEvidenceUnavailable indicates uploads are not configured.
	ErrEvidenceUnavailable = errors.New("evidence: uploads unavailable")
)

var evidenceContentTypes = []string{"image/jpeg", "image/png", "image/webp"}

// UploadSigner issues signed upload URLs. *storage.Client satisfies it.
type UploadSigner interface {
	SignedUploadURL(ctx context.Context, bucket, object string, opts storage.UploadOptions) (storage.SignedURL, error)
}

// EvidenceServiceDeps bundles collaborators required to construct the evidence service.
type EvidenceServiceDeps struct {
	Signer        UploadSigner
	Bucket        string
	PublicBaseURL string
	URLTTL        time.Duration
	IDGenerator   func() string
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type evidenceService struct {
	signer  UploadSigner
	bucket  string
	baseURL string
	ttl     time.Duration
	newID   func() string
	logger  func(context.Context, string, map[string]any)
}

var _ EvidenceService = (*evidenceService)(nil)

// NewEvidenceService constructs the upload service. Without a signer or bucket every call
// fails with ErrEvidenceUnavailable.
func NewEvidenceService(deps EvidenceServiceDeps) EvidenceService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &evidenceService{
		signer:  deps.Signer,
		bucket:  strings.TrimSpace(deps.Bucket),
		baseURL: strings.TrimSpace(deps.PublicBaseURL),
		ttl:     deps.URLTTL,
		newID:   idGen,
		logger:  logger,
	}
}

func (s *evidenceService) IssueUpload(ctx context.Context, cmd EvidenceUploadCommand) (EvidenceUpload, error) {
	if s.signer == nil || s.bucket == "" {
		return EvidenceUpload{}, ErrEvidenceUnavailable
	}
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return EvidenceUpload{}, fmt.Errorf("%w: user id is required", ErrEvidenceInvalidInput)
	}
	if !cmd.Purpose.Valid() {
		return EvidenceUpload{}, fmt.Errorf("%w: unsupported purpose %q", ErrEvidenceInvalidInput, cmd.Purpose)
	}
	contentType := strings.ToLower(strings.TrimSpace(cmd.ContentType))

	uploadID := strings.ToLower(s.newID())
	object, err := storage.EvidencePath(cmd.Purpose, userID, uploadID, cmd.FileName, contentType)
	if err != nil {
		return EvidenceUpload{}, fmt.Errorf("%w: %v", ErrEvidenceInvalidInput, err)
	}

	signed, err := s.signer.SignedUploadURL(ctx, s.bucket, object, storage.UploadOptions{
		ContentType:         contentType,
		AllowedContentTypes: evidenceContentTypes,
		MaxSize:             maxEvidenceSize,
		ExpiresIn:           s.ttl,
	})
	if err != nil {
		if errors.Is(err, storage.ErrContentTypeMissing) || errors.Is(err, storage.ErrContentTypeDenied) {
			return EvidenceUpload{}, fmt.Errorf("%w: %v", ErrEvidenceInvalidInput, err)
		}
		return EvidenceUpload{}, fmt.Errorf("evidence: sign upload: %w", err)
	}

	s.logger(ctx, "evidence.upload.issued", map[string]any{
		"user":    userID,
		"purpose": string(cmd.Purpose),
		"object":  object,
	})

	return EvidenceUpload{
		UploadID:  uploadID,
		Object:    object,
		URL:       signed.URL,
		Method:    signed.Method,
		Headers:   signed.Headers,
		ExpiresAt: signed.ExpiresAt,
		PublicURL: storage.PublicURL(s.baseURL, s.bucket, object),
	}, nil
}
