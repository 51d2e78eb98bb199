package web

import (
	"io"
	"net/http"

	"github.com/vbonduro/wardrobe/internal/domain"
	"github.com/vbonduro/wardrobe/internal/service"
)

const maxPhotoSize = 20 * 1024 * 1024 // 20 MB

// allowedImageTypes is the set of sniffed MIME types the add-item pipeline
// accepts. WebP is detected separately because the WHATWG sniff table the
// stdlib follows does not always report it.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// isWebP reports whether data is a WebP image (RIFF container with "WEBP" at
// offset 8).
func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

// allowedImageMIME returns the detected MIME type and true if the data is an
// accepted image format, or ("", false) otherwise.
func allowedImageMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	if allowedImageTypes[mime] {
		return mime, true
	}
	return "", false
}

// readUpload parses the multipart form and returns the "image" part and its
// sniffed MIME type.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoSize+maxJSONBody)
	if err := r.ParseMultipartForm(maxPhotoSize); err != nil {
		return nil, "", domain.Invalid("failed to parse form")
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, "", domain.Invalid("image file required")
	}
	defer closeWithLog(file, "upload file", s.logger)

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}

	mimeType, ok := allowedImageMIME(data)
	if !ok {
		return nil, "", domain.Invalid("unsupported image format")
	}
	return data, mimeType, nil
}

func (s *Server) handleCloset(w http.ResponseWriter, r *http.Request) {
	groups, err := s.service.Closet(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"groups": groups})
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.Items(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	data, mimeType, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	details := service.ItemDetails{
		Category: r.FormValue("category"),
		Name:     r.FormValue("name"),
		Color:    r.FormValue("color"),
		Brand:    r.FormValue("brand"),
		Price:    r.FormValue("price"),
	}
	rec, err := s.service.AddItem(r.Context(), userID(r), data, mimeType, details)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, rec)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var patch domain.RecordPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.service.UpdateItem(r.Context(), userID(r), r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, rec)
}

// handleRemoveItem answers 204 whether or not the record existed.
func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	if _, err := s.service.RemoveItem(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleItemImage(w http.ResponseWriter, r *http.Request) {
	rc, mimeType, err := s.service.ItemImage(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer closeWithLog(rc, "image", s.logger)

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	n, err := io.Copy(w, rc)
	if err != nil {
		s.logger.Error("stream image failed", "record_id", r.PathValue("id"), "bytes", n, "error", err)
	}
}
