package storage

import (
	"fmt"
	"path"
	"strings"
)

// EvidencePurpose names what an uploaded image proves.
type EvidencePurpose string

const (
	PurposePaymentScreenshot     EvidencePurpose = "payment_screenshot"
	PurposeFullPaymentScreenshot EvidencePurpose = "full_payment_screenshot"
	PurposeReturnImage           EvidencePurpose = "return_image"
)

// Valid reports whether the purpose is known.
func (p EvidencePurpose) Valid() bool {
	switch p {
	case PurposePaymentScreenshot, PurposeFullPaymentScreenshot, PurposeReturnImage:
		return true
	}
	return false
}

// EvidencePath builds evidence/<purpose>/<userID>/<uploadID><ext>. The extension is taken from
// fileName when it has one, else from the content type.
func EvidencePath(purpose EvidencePurpose, userID, uploadID, fileName, contentType string) (string, error) {
	if !purpose.Valid() {
		return "", fmt.Errorf("storage: unsupported evidence purpose %q", purpose)
	}
	user, err := validateSegment("userID", userID)
	if err != nil {
		return "", err
	}
	upload, err := validateSegment("uploadID", uploadID)
	if err != nil {
		return "", err
	}
	ext := strings.ToLower(path.Ext(strings.TrimSpace(fileName)))
	if ext == "" || strings.ContainsAny(ext, `/\`) || len(ext) > 6 {
		ext = extensionFor(contentType)
	}
	return fmt.Sprintf("evidence/%s/%s/%s%s", purpose, user, upload, ext), nil
}

func extensionFor(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}

func validateSegment(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: %s is required", name)
	}
	if strings.ContainsAny(value, `/\`) || strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: %s contains invalid path characters", name)
	}
	return value, nil
}
