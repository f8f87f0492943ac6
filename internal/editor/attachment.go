package editor

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"storefront-admin-service/internal/models"
)

// DefaultMaxImageBytes bounds an image upload
const DefaultMaxImageBytes int64 = 10 << 20

var (
	ErrEmptyImage       = errors.New("image file is empty")
	ErrUnsupportedImage = errors.New("only jpg, jpeg and png images are accepted")
	ErrImageTooLarge    = errors.New("image exceeds the maximum upload size")
)

var allowedImageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// checkAttachment verifies extension, sniffed content and size, and returns
// the attachment with its detected content type
func checkAttachment(att models.Attachment, maxBytes int64) (*models.Attachment, error) {
	if len(att.Data) == 0 {
		return nil, ErrEmptyImage
	}
	if maxBytes > 0 && att.Size() > maxBytes {
		return nil, fmt.Errorf("%w (%d bytes, limit %d)", ErrImageTooLarge, att.Size(), maxBytes)
	}

	ext := strings.ToLower(filepath.Ext(att.Filename))
	want, ok := allowedImageTypes[ext]
	if !ok {
		return nil, ErrUnsupportedImage
	}
	if sniffed := http.DetectContentType(att.Data); sniffed != want {
		return nil, fmt.Errorf("%w: content is %s", ErrUnsupportedImage, sniffed)
	}

	out := &models.Attachment{
		Filename:    filepath.Base(att.Filename),
		ContentType: want,
		Data:        make([]byte, len(att.Data)),
	}
	copy(out.Data, att.Data)
	return out, nil
}
