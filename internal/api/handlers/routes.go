package handlers

import "github.com/gofiber/fiber/v2"

// RegisterRoutes mounts the composer API on r. Auth must already be applied
// to r; submit additionally runs behind submitLimit.
func RegisterRoutes(r fiber.Router, drafts *DraftHandler, posts *PostHandler, submitLimit fiber.Handler) {
	r.Post("/drafts", drafts.CreateDraft)
	r.Get("/drafts/:id", drafts.GetDraft)
	r.Delete("/drafts/:id", drafts.DiscardDraft)
	r.Put("/drafts/:id/text", drafts.SetText)
	r.Post("/drafts/:id/images", drafts.AttachImages)
	r.Delete("/drafts/:id/images/:attachmentID", drafts.RemoveImage)
	r.Put("/drafts/:id/gif", drafts.SetGIF)
	r.Delete("/drafts/:id/gif", drafts.ClearGIF)
	r.Post("/drafts/:id/video", drafts.AttachVideo)
	r.Delete("/drafts/:id/video", drafts.RemoveVideo)
	r.Post("/drafts/:id/submit", submitLimit, drafts.Submit)

	r.Get("/posts", posts.ListPosts)
}
