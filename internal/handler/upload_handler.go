package handler

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-file-collector/internal/service"
	"go-file-collector/pkg/apierror"
)

// multipartMemoryLimit is the in-memory threshold for parsed multipart
// bodies; parts beyond it spill to the OS temp directory.
const multipartMemoryLimit = 32 * 1024 * 1024

// UploadHandler exposes the public upload surface: precheck, single-shot
// batches, chunked transfers, and the helper probes uploader UIs rely on.
type UploadHandler struct {
	admission *service.AdmissionService
	uploads   *service.UploadService
	chunks    *service.ChunkedUploadService
	tasks     *service.TaskService
	maxBody   int64
}

func NewUploadHandler(admission *service.AdmissionService, uploads *service.UploadService, chunks *service.ChunkedUploadService, tasks *service.TaskService, maxBody int64) *UploadHandler {
	return &UploadHandler{admission: admission, uploads: uploads, chunks: chunks, tasks: tasks, maxBody: maxBody}
}

// Precheck answers whether an upload of file_count files would currently be
// admitted. A denial is a 200 with can_upload=false, not an error status.
func (h *UploadHandler) Precheck(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid form body", err.Error(), http.StatusBadRequest))
		return
	}

	uploader := strings.TrimSpace(r.FormValue("uploader_name"))
	if uploader == "" {
		writeError(w, apierror.New("BAD_REQUEST", "uploader_name is required", "", http.StatusBadRequest))
		return
	}

	fileCount := 1
	if raw := r.FormValue("file_count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, apierror.New("BAD_REQUEST", "file_count must be a positive integer", raw, http.StatusBadRequest))
			return
		}
		fileCount = n
	}

	result, err := h.admission.Precheck(r.Context(), chi.URLParam(r, "taskID"), uploader, fileCount)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, result)
}

// Upload receives a multipart batch: an uploader_name field plus one or
// more parts under "files".
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid multipart body", err.Error(), http.StatusBadRequest))
		return
	}
	defer r.MultipartForm.RemoveAll()

	uploader := strings.TrimSpace(r.FormValue("uploader_name"))
	if uploader == "" {
		writeError(w, apierror.New("BAD_REQUEST", "uploader_name is required", "", http.StatusBadRequest))
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, apierror.New("BAD_REQUEST", "no files in request", "", http.StatusBadRequest))
		return
	}

	files := make([]service.IncomingFile, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()

	for _, header := range headers {
		part, err := header.Open()
		if err != nil {
			writeError(w, apierror.New("BAD_REQUEST", "failed to read uploaded file", err.Error(), http.StatusBadRequest))
			return
		}
		opened = append(opened, part)
		files = append(files, service.IncomingFile{
			Filename: header.Filename,
			Size:     header.Size,
			Reader:   part,
		})
	}

	results, err := h.uploads.SaveFiles(r.Context(), chi.URLParam(r, "taskID"), uploader, files)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, map[string]any{
		"uploaded": results,
		"count":    len(results),
	})
}

// UploadChunk receives one numbered part of a chunked transfer. Fields:
// uploader_name, filename, chunk_index, total_chunks; the bytes arrive as
// the "chunk" part.
func (h *UploadHandler) UploadChunk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid multipart body", err.Error(), http.StatusBadRequest))
		return
	}
	defer r.MultipartForm.RemoveAll()

	uploader := strings.TrimSpace(r.FormValue("uploader_name"))
	filename := strings.TrimSpace(r.FormValue("filename"))
	if uploader == "" || filename == "" {
		writeError(w, apierror.New("BAD_REQUEST", "uploader_name and filename are required", "", http.StatusBadRequest))
		return
	}

	chunkIndex, err := formInt(r, "chunk_index")
	if err != nil {
		writeError(w, err)
		return
	}
	totalChunks, err := formInt(r, "total_chunks")
	if err != nil {
		writeError(w, err)
		return
	}

	part, _, err := r.FormFile("chunk")
	if err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "chunk part is required", err.Error(), http.StatusBadRequest))
		return
	}
	defer part.Close()

	outcome, err := h.chunks.SaveChunk(r.Context(), chi.URLParam(r, "taskID"), uploader, filename, chunkIndex, totalChunks, part)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if outcome.Progress.Complete {
		status = http.StatusCreated
	}
	writeSuccess(w, status, outcome)
}

// ListFiles reports every collected file of a task grouped by uploader.
func (h *UploadHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	listing, err := h.tasks.ListFiles(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, listing)
}

// CheckWhitelist tells an uploader UI whether a name would pass admission.
func (h *UploadHandler) CheckWhitelist(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid form body", err.Error(), http.StatusBadRequest))
		return
	}

	uploader := strings.TrimSpace(r.FormValue("uploader_name"))
	if uploader == "" {
		writeError(w, apierror.New("BAD_REQUEST", "uploader_name is required", "", http.StatusBadRequest))
		return
	}

	allowed, err := h.admission.WhitelistAllows(r.Context(), chi.URLParam(r, "taskID"), uploader)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"uploader_name": uploader,
		"allowed":       allowed,
	})
}

// UserUploadCount reports how many files a given uploader has stored in
// the task, measured from disk.
func (h *UploadHandler) UserUploadCount(w http.ResponseWriter, r *http.Request) {
	uploader := chi.URLParam(r, "uploaderName")

	count, err := h.admission.UploadCount(r.Context(), chi.URLParam(r, "taskID"), uploader)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"uploader_name": uploader,
		"count":         count,
	})
}

func formInt(r *http.Request, field string) (int, error) {
	raw := r.FormValue(field)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierror.New("BAD_REQUEST", field+" must be an integer", raw, http.StatusBadRequest)
	}
	return n, nil
}
