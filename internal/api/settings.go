package api

import (
	"errors"
	"net/http"
	"strings"

	"tgcast/internal/storage"
	logx "tgcast/pkg/logx"
)

type welcomeSettings struct {
	Message  string               `json:"message"`
	MediaURL string               `json:"mediaUrl"`
	Buttons  []storage.LinkButton `json:"buttons"`
}

func (h *handler) getWelcomeSettings(w http.ResponseWriter, r *http.Request) {
	st, err := h.d.Settings.Get(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	out := welcomeSettings{Message: st.WelcomeMessage, MediaURL: st.WelcomeMessageMediaURL, Buttons: st.WelcomeMessageButtons}
	if out.Buttons == nil {
		out.Buttons = []storage.LinkButton{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) saveWelcomeSettings(w http.ResponseWriter, r *http.Request) {
	var body welcomeSettings
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Message) == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}
	buttons := body.Buttons
	if buttons == nil {
		buttons = []storage.LinkButton{}
	}
	if err := h.d.Store.SaveSettings(r.Context(), storage.Settings{
		WelcomeMessage:         body.Message,
		WelcomeMessageMediaURL: body.MediaURL,
		WelcomeMessageButtons:  buttons,
	}); err != nil {
		h.internalError(w, r, err)
		return
	}
	if err := h.d.Settings.InvalidateSettings(r.Context()); err != nil {
		h.log.Warn("settings cache invalidation failed", logx.Err(err))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Welcome message updated"})
}

type menuBody struct {
	Text             *string               `json:"text"`
	Order            *int                  `json:"order"`
	Active           *bool                 `json:"active"`
	ResponseMessage  *string               `json:"responseMessage"`
	MediaURL         *string               `json:"mediaUrl"`
	ResponseMediaURL *string               `json:"responseMediaUrl"`
	ResponseButtons  *[]storage.LinkButton `json:"responseButtons"`
}

func (b menuBody) mediaURL() *string {
	if b.MediaURL != nil {
		return b.MediaURL
	}
	return b.ResponseMediaURL
}

func (h *handler) invalidateMenu(r *http.Request) {
	if err := h.d.Settings.InvalidateMenu(r.Context()); err != nil {
		h.log.Warn("menu cache invalidation failed", logx.Err(err))
	}
}

func (h *handler) listMenu(w http.ResponseWriter, r *http.Request) {
	buttons, err := h.d.Store.ListMenuButtons(r.Context(), false)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeList(w, buttons)
}

func (h *handler) createMenu(w http.ResponseWriter, r *http.Request) {
	var body menuBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Text == nil || strings.TrimSpace(*body.Text) == "" {
		writeError(w, http.StatusBadRequest, "Text is required")
		return
	}
	b := storage.MenuButton{Text: *body.Text, Active: true}
	if body.Order != nil {
		b.Order = *body.Order
	}
	if body.Active != nil {
		b.Active = *body.Active
	}
	if body.ResponseMessage != nil {
		b.ResponseMessage = *body.ResponseMessage
	}
	if m := body.mediaURL(); m != nil {
		b.MediaURL = *m
	}
	if body.ResponseButtons != nil {
		b.ResponseButtons = *body.ResponseButtons
	}
	out, err := h.d.Store.CreateMenuButton(r.Context(), b)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	h.invalidateMenu(r)
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) updateMenu(w http.ResponseWriter, r *http.Request) {
	var body menuBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Text != nil && strings.TrimSpace(*body.Text) == "" {
		writeError(w, http.StatusBadRequest, "Text is required")
		return
	}
	out, err := h.d.Store.UpdateMenuButton(r.Context(), r.PathValue("id"), storage.MenuButtonPatch{
		Text:            body.Text,
		Order:           body.Order,
		Active:          body.Active,
		ResponseMessage: body.ResponseMessage,
		MediaURL:        body.mediaURL(),
		ResponseButtons: body.ResponseButtons,
	})
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Button not found")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	h.invalidateMenu(r)
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) deleteMenu(w http.ResponseWriter, r *http.Request) {
	err := h.d.Store.DeleteMenuButton(r.Context(), r.PathValue("id"))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.internalError(w, r, err)
		return
	}
	h.invalidateMenu(r)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *handler) toggleMenu(w http.ResponseWriter, r *http.Request) {
	out, err := h.d.Store.ToggleMenuButton(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Button not found")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	h.invalidateMenu(r)
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) reorderMenu(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Updates []storage.OrderUpdate `json:"updates"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := h.d.Store.ReorderMenuButtons(r.Context(), body.Updates); err != nil {
		h.internalError(w, r, err)
		return
	}
	h.invalidateMenu(r)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// writeList encodes a nil slice as [].
func writeList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, items)
}
