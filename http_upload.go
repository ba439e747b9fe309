package enrollment

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

const (
	// UploadField is the multipart field carrying registration images.
	UploadField = "image"
	// DefaultMaxUploadBytes bounds a single uploaded file.
	DefaultMaxUploadBytes = 5 * 1024 * 1024
	maxUploadFiles        = 5
)

var allowedImageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

// UploadHandler stores multipart images and returns the references the
// register, resubmission and profile payloads expect in their "image" field.
type UploadHandler struct {
	store    ImageStore
	maxBytes int64
	logger   Logger
}

func NewUploadHandler(store ImageStore, maxBytes int64) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &UploadHandler{store: store, maxBytes: maxBytes, logger: defLogger{}}
}

func (h *UploadHandler) WithLogger(l Logger) *UploadHandler {
	h.logger = normalizeLogger(l)
	return h
}

// CheckUpload validates a file name and size before it reaches the store.
func CheckUpload(filename string, size, maxBytes int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedImageExtensions[ext] {
		return goerrors.New("only jpg, jpeg, png and webp images are allowed", goerrors.CategoryValidation).
			WithTextCode("UNSUPPORTED_IMAGE").
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"filename": filename})
	}
	if size > maxBytes {
		return goerrors.New("file too large", goerrors.CategoryValidation).
			WithTextCode("IMAGE_TOO_LARGE").
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"filename": filename, "max_bytes": maxBytes})
	}
	return nil
}

// Handle is a fiber handler; it is mounted on the raw fiber app because it
// needs the multipart form.
func (h *UploadHandler) Handle(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return uploadError(c, goerrors.Wrap(err, goerrors.CategoryBadInput, "multipart form required").
			WithCode(goerrors.CodeBadRequest))
	}

	files := form.File[UploadField]
	if len(files) == 0 {
		return uploadError(c, goerrors.New("at least one image is required", goerrors.CategoryValidation).
			WithTextCode("IMAGE_REQUIRED").
			WithCode(goerrors.CodeBadRequest))
	}
	if len(files) > maxUploadFiles {
		return uploadError(c, goerrors.New("too many images", goerrors.CategoryValidation).
			WithTextCode("TOO_MANY_IMAGES").
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"max_files": maxUploadFiles}))
	}

	for _, file := range files {
		if err := CheckUpload(file.Filename, file.Size, h.maxBytes); err != nil {
			return uploadError(c, err)
		}
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 20*time.Second)
	defer cancel()

	images := make([]Image, 0, len(files))
	for _, file := range files {
		f, err := file.Open()
		if err != nil {
			return uploadError(c, goerrors.Wrap(err, goerrors.CategoryInternal, "cannot open uploaded file"))
		}

		img, err := h.store.Put(ctx, file.Filename, f)
		_ = f.Close()
		if err != nil {
			h.logger.Error("image upload failed", "filename", file.Filename, "error", err)
			h.rollback(ctx, images)
			return uploadError(c, err)
		}
		images = append(images, img)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{UploadField: images})
}

func (h *UploadHandler) rollback(ctx context.Context, images []Image) {
	for _, img := range images {
		if err := h.store.Delete(ctx, img.Filename); err != nil {
			h.logger.Warn("failed to remove partial upload", "filename", img.Filename, "error", err)
		}
	}
}

func uploadError(c *fiber.Ctx, err error) error {
	status, richErr := StatusForError(err)
	body := fiber.Map{"error": richErr.Message, "code": richErr.TextCode}
	if status >= http.StatusInternalServerError {
		body["error"] = "An unexpected server error occurred"
	}
	return c.Status(status).JSON(body)
}
