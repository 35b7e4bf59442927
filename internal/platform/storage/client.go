package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
)

const (
	defaultUploadExpiry = 15 * time.Minute
	maxUploadExpiry     = time.Hour
)

var (
	ErrNoSigner           = errors.New("storage: signer is required")
	ErrInvalidBucket      = errors.New("storage: bucket name is required")
	ErrInvalidObject      = errors.New("storage: object name is required")
	ErrContentTypeMissing = errors.New("storage: content type is required")
	ErrContentTypeDenied  = errors.New("storage: content type not allowed")
	ErrExpiryTooLong      = errors.New("storage: expiry exceeds permitted maximum")
)

// Client issues V4 signed upload URLs.
type Client struct {
	signer Signer
	now    func() time.Time
}

// ClientOption customises Client.
type ClientOption func(*Client)

// WithClock injects the clock used for expiry.
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewClient constructs a Client.
func NewClient(signer Signer, opts ...ClientOption) (*Client, error) {
	if signer == nil || strings.TrimSpace(signer.Email()) == "" {
		return nil, ErrNoSigner
	}
	client := &Client{signer: signer, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// UploadOptions constrain a signed PUT.
type UploadOptions struct {
	ContentType         string
	AllowedContentTypes []string
	MaxSize             int64
	ExpiresIn           time.Duration
}

// SignedURL is a URL the client can PUT to, plus the headers it must send.
type SignedURL struct {
	URL       string
	Method    string
	ExpiresAt time.Time
	Headers   map[string]string
}

// SignedUploadURL signs a PUT for bucket/object. The content type is part of the signature.
func (c *Client) SignedUploadURL(ctx context.Context, bucket, object string, opts UploadOptions) (SignedURL, error) {
	if c == nil {
		return SignedURL{}, ErrNoSigner
	}
	if bucket = strings.TrimSpace(bucket); bucket == "" {
		return SignedURL{}, ErrInvalidBucket
	}
	if object = strings.TrimSpace(object); object == "" {
		return SignedURL{}, ErrInvalidObject
	}
	contentType := strings.ToLower(strings.TrimSpace(opts.ContentType))
	if contentType == "" {
		return SignedURL{}, ErrContentTypeMissing
	}
	if len(opts.AllowedContentTypes) > 0 && !contentTypeAllowed(contentType, opts.AllowedContentTypes) {
		return SignedURL{}, fmt.Errorf("%w: %s", ErrContentTypeDenied, contentType)
	}
	expiry := opts.ExpiresIn
	if expiry <= 0 {
		expiry = defaultUploadExpiry
	}
	if expiry > maxUploadExpiry {
		return SignedURL{}, ErrExpiryTooLong
	}

	headers := map[string]string{"Content-Type": contentType}
	var extHeaders []string
	if opts.MaxSize > 0 {
		sizeRange := fmt.Sprintf("0,%d", opts.MaxSize)
		extHeaders = append(extHeaders, "x-goog-content-length-range:"+sizeRange)
		headers["x-goog-content-length-range"] = sizeRange
	}

	expiresAt := c.now().UTC().Add(expiry)
	signed, err := gcs.SignedURL(bucket, object, &gcs.SignedURLOptions{
		GoogleAccessID: c.signer.Email(),
		Scheme:         gcs.SigningSchemeV4,
		Method:         http.MethodPut,
		ContentType:    contentType,
		Headers:        extHeaders,
		Expires:        expiresAt,
		SignBytes: func(payload []byte) ([]byte, error) {
			return c.signer.SignBytes(ctx, payload)
		},
	})
	if err != nil {
		return SignedURL{}, fmt.Errorf("storage: sign upload url: %w", err)
	}
	return SignedURL{URL: signed, Method: http.MethodPut, ExpiresAt: expiresAt, Headers: headers}, nil
}

// PublicURL joins base and object. An empty base defaults to https://storage.googleapis.com/<bucket>.
func PublicURL(base, bucket, object string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = "https://storage.googleapis.com/" + strings.TrimSpace(bucket)
	}
	return base + "/" + strings.TrimLeft(object, "/")
}

func contentTypeAllowed(contentType string, allowed []string) bool {
	for _, candidate := range allowed {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		switch {
		case candidate == "":
		case candidate == "*" || candidate == contentType:
			return true
		case strings.HasSuffix(candidate, "/*") && strings.HasPrefix(contentType, strings.TrimSuffix(candidate, "*")):
			return true
		}
	}
	return false
}
