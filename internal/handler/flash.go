package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
)

const flashSessionName = "plantcare_flash"

// Flash categories, in the order Pop returns them.
const (
	FlashDanger  = "danger"
	FlashWarning = "warning"
	FlashSuccess = "success"
	FlashInfo    = "info"
)

var flashCategories = []string{FlashDanger, FlashWarning, FlashSuccess, FlashInfo}

// Flash is a one-shot message shown on the next response.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// FlashStore keeps flash messages in a signed cookie. Messages are added by
// the request that produced them and consumed by the next listing, detail
// or page response.
type FlashStore struct {
	store  sessions.Store
	logger *slog.Logger
}

// NewFlashStore signs the flash cookie with secret.
func NewFlashStore(secret []byte, secure bool, logger *slog.Logger) *FlashStore {
	cs := sessions.NewCookieStore(secret)
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   3600,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &FlashStore{store: cs, logger: logger}
}

// Add queues a message. It must run before the response headers are sent.
func (f *FlashStore) Add(w http.ResponseWriter, r *http.Request, category, message string) {
	session, err := f.store.Get(r, flashSessionName)
	if err != nil {
		// A cookie signed with an old key decodes as a fresh session.
		f.logger.Debug("discarding unreadable flash cookie", slog.String("error", err.Error()))
	}
	session.AddFlash(message, category)
	if err := session.Save(r, w); err != nil {
		f.logger.Error("failed to save flash", slog.String("error", err.Error()))
	}
}

// Pop returns and clears every queued message.
func (f *FlashStore) Pop(w http.ResponseWriter, r *http.Request) []Flash {
	session, err := f.store.Get(r, flashSessionName)
	if err != nil {
		return []Flash{}
	}

	out := make([]Flash, 0)
	for _, category := range flashCategories {
		for _, v := range session.Flashes(category) {
			if msg, ok := v.(string); ok {
				out = append(out, Flash{Category: category, Message: msg})
			}
		}
	}
	if len(out) > 0 {
		if err := session.Save(r, w); err != nil {
			f.logger.Error("failed to clear flashes", slog.String("error", err.Error()))
		}
	}
	return out
}
