package handlers

import (
	"errors"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/stockroute/internal/apperr"
	"github.com/example/stockroute/internal/middleware"
	"github.com/example/stockroute/internal/services"
)

// MaxImageBytes bounds a single image upload.
const MaxImageBytes = 5 << 20

// UploadHandler proxies images to object storage.
type UploadHandler struct {
	store services.ImageStore
}

func NewUploadHandler(store services.ImageStore) *UploadHandler {
	return &UploadHandler{store: store}
}

// UploadImage accepts a multipart "image" field plus optional "folder" and
// comma separated "tags".
func (h *UploadHandler) UploadImage(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return apperr.New(apperr.CodeValidation, "image file is required")
	}
	if fileHeader.Size > MaxImageBytes {
		return apperr.New(apperr.CodeValidation, "image size exceeds 5MB limit")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return apperr.Wrap(apperr.CodeValidation, err, "unable to open image")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxImageBytes+1))
	if err != nil {
		return apperr.Wrap(apperr.CodeValidation, err, "unable to read image")
	}

	folder := c.FormValue("folder")
	if folder == "" {
		folder = actor.EffectiveUserID().String()
	}
	var tags []string
	for _, tag := range strings.Split(c.FormValue("tags"), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	result, err := h.store.Upload(c.UserContext(), data, folder, tags)
	switch {
	case errors.Is(err, services.ErrUnsupportedImage):
		return apperr.New(apperr.CodeValidation, "unsupported image format")
	case err != nil:
		return apperr.Wrap(apperr.CodeDependency, err, "image upload failed")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": result})
}
