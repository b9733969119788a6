package handler

import (
	"net/http"

	"go-file-collector/internal/model"
	"go-file-collector/internal/service"
	"go-file-collector/pkg/apierror"
)

// maxWhitelistFileSize caps whitelist import uploads. A whitelist is a
// short text file; anything larger is a mistake.
const maxWhitelistFileSize = 4 * 1024 * 1024

type SettingsHandler struct {
	settings *service.SettingsService
}

func NewSettingsHandler(settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.Get(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, cfg)
}

// GetPublic serves the limits uploader UIs need, without the whitelist.
func (h *SettingsHandler) GetPublic(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.GetPublic(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, cfg)
}

func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.SettingsUpdate
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	cfg, err := h.settings.Update(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, cfg)
}

func (h *SettingsHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req model.PasswordChangeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.settings.ChangePassword(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"changed": true})
}

// ImportWhitelist replaces the whitelist from an uploaded text file sent
// as the "file" multipart part.
func (h *SettingsHandler) ImportWhitelist(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWhitelistFileSize)

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "whitelist file is required", err.Error(), http.StatusBadRequest))
		return
	}
	defer file.Close()

	result, err := h.settings.ImportWhitelist(r.Context(), file)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, result)
}
