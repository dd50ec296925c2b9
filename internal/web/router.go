package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/mailgrove/mailgrove/internal/directory"
	"github.com/mailgrove/mailgrove/internal/ratelimit"
	"github.com/mailgrove/mailgrove/internal/web/handlers"
	"github.com/mailgrove/mailgrove/internal/web/middleware"
)

// RouterDeps holds all dependencies needed to build the router.
type RouterDeps struct {
	MessageHandler      *handlers.MessageHandler
	MailboxHandler      *handlers.MailboxHandler
	LabelHandler        *handlers.LabelHandler
	AutoReplyHandler    *handlers.AutoReplyHandler
	AttachmentHandler   *handlers.AttachmentHandler
	NotificationHandler *handlers.NotificationHandler
	UserHandler         *handlers.UserHandler
	Directory           *directory.Service
	Limiter             *ratelimit.Limiter
}

// NewRouter wires all routes into a Chi router.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RateLimit(deps.Limiter))

	// Registration is open; everything else needs a resolvable identity.
	r.Post("/api/v1/users", deps.UserHandler.HandleRegister)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireIdentity(deps.Directory))

		r.Get("/api/v1/me", deps.UserHandler.HandleMe)

		r.Post("/api/v1/messages/send", deps.MessageHandler.HandleSend)
		r.Post("/api/v1/messages/reply", deps.MessageHandler.HandleReply)
		r.Post("/api/v1/messages/forward", deps.MessageHandler.HandleForward)

		r.Post("/api/v1/drafts", deps.MailboxHandler.HandleSaveDraft)
		r.Get("/api/v1/mailbox/{folder}", deps.MailboxHandler.HandleListFolder)
		r.Get("/api/v1/messages/{messageID}", deps.MailboxHandler.HandleGetMessage)
		r.Post("/api/v1/messages/{messageID}/read", deps.MailboxHandler.HandleMarkRead)
		r.Post("/api/v1/messages/{messageID}/star", deps.MailboxHandler.HandleToggleStar)
		r.Post("/api/v1/messages/{messageID}/trash", deps.MailboxHandler.HandleTrash)
		r.Delete("/api/v1/messages/{messageID}", deps.MailboxHandler.HandleDelete)

		r.Get("/api/v1/labels", deps.LabelHandler.HandleList)
		r.Post("/api/v1/labels", deps.LabelHandler.HandleCreate)
		r.Patch("/api/v1/labels/{labelID}", deps.LabelHandler.HandleRename)
		r.Delete("/api/v1/labels/{labelID}", deps.LabelHandler.HandleDelete)

		r.Get("/api/v1/autoreply", deps.AutoReplyHandler.HandleGet)
		r.Put("/api/v1/autoreply", deps.AutoReplyHandler.HandleUpsert)

		r.Post("/api/v1/attachments", deps.AttachmentHandler.HandleUpload)
		r.Get("/api/v1/attachments", deps.AttachmentHandler.HandleDownload)

		r.Get("/ws", deps.NotificationHandler.HandleSubscribe)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return r
}
