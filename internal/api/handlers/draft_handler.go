package handlers

import (
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/snapcomposer/internal/models"
	"github.com/maheshrc27/snapcomposer/internal/service"
	"github.com/maheshrc27/snapcomposer/internal/transfer"
	apperrors "github.com/maheshrc27/snapcomposer/pkg/errors"
	"go.uber.org/zap"
)

type DraftHandler struct {
	s      service.ComposerService
	logger *zap.Logger
}

func NewDraftHandler(service service.ComposerService, logger *zap.Logger) *DraftHandler {
	return &DraftHandler{s: service, logger: logger}
}

func (h *DraftHandler) CreateDraft(c *fiber.Ctx) error {
	var req transfer.CreateDraftRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, h.logger, apperrors.Wrap(err, apperrors.ErrValidation, "Invalid request body"))
		}
	}

	draft, err := h.s.CreateDraft(c.UserContext(), GetAccount(c), models.ReplyTarget{
		ParentAuthor:   req.ParentAuthor,
		ParentPermlink: req.ParentPermlink,
	})
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(draft)
}

func (h *DraftHandler) GetDraft(c *fiber.Ctx) error {
	draft, err := h.s.GetDraft(c.UserContext(), GetAccount(c), c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(draft)
}

func (h *DraftHandler) DiscardDraft(c *fiber.Ctx) error {
	if err := h.s.Discard(c.UserContext(), GetAccount(c), c.Params("id")); err != nil {
		return writeError(c, h.logger, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *DraftHandler) SetText(c *fiber.Ctx) error {
	var req transfer.SetTextRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, h.logger, apperrors.Wrap(err, apperrors.ErrValidation, "Invalid request body"))
	}

	draft, err := h.s.SetText(c.UserContext(), GetAccount(c), c.Params("id"), req.Text)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(draft)
}

func (h *DraftHandler) AttachImages(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return writeError(c, h.logger, apperrors.Wrap(err, apperrors.ErrValidation, "Unable to parse form"))
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		return writeError(c, h.logger, apperrors.New(apperrors.ErrValidation, "No files selected"))
	}

	files := make([]models.MediaFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return writeError(c, h.logger, fmt.Errorf("open %s: %w", fh.Filename, err))
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return writeError(c, h.logger, fmt.Errorf("read %s: %w", fh.Filename, err))
		}
		files = append(files, models.MediaFile{Name: fh.Filename, Data: data})
	}

	draft, err := h.s.AttachImages(c.UserContext(), GetAccount(c), c.Params("id"), files)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(draft)
}

func (h *DraftHandler) RemoveImage(c *fiber.Ctx) error {
	draft, err := h.s.RemoveImage(c.UserContext(), GetAccount(c), c.Params("id"), c.Params("attachmentID"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(draft)
}

func (h *DraftHandler) SetGIF(c *fiber.Ctx) error {
	var req transfer.SetGIFRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, h.logger, apperrors.Wrap(err, apperrors.ErrValidation, "Invalid request body"))
	}

	draft, err := h.s.SetGIF(c.UserContext(), GetAccount(c), c.Params("id"), req.URL)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(draft)
}

func (h *DraftHandler) ClearGIF(c *fiber.Ctx) error {
	draft, err := h.s.ClearGIF(c.UserContext(), GetAccount(c), c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(draft)
}

// AttachVideo answers 202: the upload continues after the response and its
// progress is visible through GetDraft.
func (h *DraftHandler) AttachVideo(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return writeError(c, h.logger, apperrors.Wrap(err, apperrors.ErrValidation, "No video selected"))
	}

	f, err := fh.Open()
	if err != nil {
		return writeError(c, h.logger, fmt.Errorf("open %s: %w", fh.Filename, err))
	}
	defer f.Close()

	draft, err := h.s.AttachVideo(c.UserContext(), GetAccount(c), c.Params("id"), fh.Filename, f)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(draft)
}

func (h *DraftHandler) RemoveVideo(c *fiber.Ctx) error {
	draft, err := h.s.RemoveVideo(c.UserContext(), GetAccount(c), c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(draft)
}

func (h *DraftHandler) Submit(c *fiber.Ctx) error {
	post, err := h.s.Submit(c.UserContext(), GetAccount(c), GetLedgerToken(c), c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(transfer.PublishResponse{
		Author:   post.Author,
		Permlink: post.Permlink,
		Body:     post.Body,
	})
}
