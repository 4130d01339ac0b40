package api

import (
	"errors"
	"net/http"
	"strings"

	"tgcast/internal/storage"
)

type channelBody struct {
	ChatID string `json:"chatId"`
	Name   string `json:"name"`
	Active *bool  `json:"active"`
}

func (h *handler) listChannels(w http.ResponseWriter, r *http.Request) {
	out, err := h.d.Store.ListChannels(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeList(w, out)
}

func (h *handler) createChannel(w http.ResponseWriter, r *http.Request) {
	var body channelBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.ChatID) == "" || strings.TrimSpace(body.Name) == "" {
		writeError(w, http.StatusBadRequest, "chatId and name are required")
		return
	}
	c := storage.Channel{ChatID: strings.TrimSpace(body.ChatID), Name: body.Name, Active: true}
	if body.Active != nil {
		c.Active = *body.Active
	}
	out, err := h.d.Store.CreateChannel(r.Context(), c)
	if errors.Is(err, storage.ErrConflict) {
		writeError(w, http.StatusConflict, "Channel already exists")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) toggleChannel(w http.ResponseWriter, r *http.Request) {
	out, err := h.d.Store.ToggleChannel(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Channel not found")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) deleteChannel(w http.ResponseWriter, r *http.Request) {
	if err := h.d.Store.DeleteChannel(r.Context(), r.PathValue("id")); err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Channel deleted"})
}

type welcomeBody struct {
	ChannelID   string  `json:"channelId"`
	MessageText *string `json:"messageText"`
	ButtonText  *string `json:"buttonText"`
	ButtonURL   *string `json:"buttonUrl"`
	MediaURL    *string `json:"mediaUrl"`
	DelaySec    *int    `json:"delaySec"`
	Enabled     *bool   `json:"enabled"`
}

func (h *handler) listWelcomeMessages(w http.ResponseWriter, r *http.Request) {
	out, err := h.d.Store.ListWelcomeMessages(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeList(w, out)
}

func (h *handler) getWelcomeMessage(w http.ResponseWriter, r *http.Request) {
	out, err := h.d.Store.FindWelcomeMessage(r.Context(), r.PathValue("channelId"))
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// upsertWelcomeMessage merges the given fields into the channel's message,
// creating it when absent.
func (h *handler) upsertWelcomeMessage(w http.ResponseWriter, r *http.Request) {
	var body welcomeBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.ChannelID) == "" {
		writeError(w, http.StatusBadRequest, "channelId is required")
		return
	}
	ctx := r.Context()
	wm, err := h.d.Store.FindWelcomeMessage(ctx, body.ChannelID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		wm = storage.WelcomeMessage{ChannelID: body.ChannelID, Enabled: true}
	case err != nil:
		h.internalError(w, r, err)
		return
	}
	if body.MessageText != nil {
		wm.MessageText = *body.MessageText
	}
	if body.ButtonText != nil {
		wm.ButtonText = *body.ButtonText
	}
	if body.ButtonURL != nil {
		wm.ButtonURL = *body.ButtonURL
	}
	if body.MediaURL != nil {
		wm.MediaURL = *body.MediaURL
	}
	if body.DelaySec != nil {
		wm.DelaySec = *body.DelaySec
	}
	if body.Enabled != nil {
		wm.Enabled = *body.Enabled
	}
	if strings.TrimSpace(wm.MessageText) == "" {
		writeError(w, http.StatusBadRequest, "messageText is required")
		return
	}
	out, err := h.d.Store.UpsertWelcomeMessage(ctx, wm)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) toggleWelcomeMessage(w http.ResponseWriter, r *http.Request) {
	out, err := h.d.Store.ToggleWelcomeMessage(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Welcome message not found")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	out, err := h.d.Store.ListUsers(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeList(w, out)
}
