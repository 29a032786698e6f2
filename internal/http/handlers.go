package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"tally/internal/codec"
	"tally/internal/core"
)

type datasetResponse struct {
	Revision   int64        `json:"revision"`
	Categories core.Dataset `json:"categories"`
}

type revisionResponse struct {
	Revision int64 `json:"revision"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	d, revision, err := s.service.Load(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, datasetResponse{Revision: revision, Categories: d})
}

type createCategoryRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := s.decodeJSONBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	cat, err := s.service.AddCategory(r.Context(), sanitizeInput(req.Name))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cat)
}

func (s *Server) handleRenameCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createCategoryRequest
	if err := s.decodeJSONBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.service.RenameCategory(r.Context(), id, sanitizeInput(req.Name)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.service.DeleteCategory(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createItemRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createItemRequest
	if err := s.decodeJSONBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	item, err := s.service.AddItem(r.Context(), id, amount, sanitizeInput(req.Description))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	categoryID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.service.DeleteItem(r.Context(), categoryID, itemID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.service.Overview(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (s *Server) handleExportImage(w http.ResponseWriter, r *http.Request) {
	strategy := r.URL.Query().Get("strategy")
	if strategy == "" {
		strategy = "stego"
	}

	if revision, err := s.service.Revision(r.Context()); err == nil {
		if data, ok := s.renders.Get(revision, strategy); ok {
			serveImage(w, strategy, data)
			return
		}
	}

	data, revision, err := s.service.ExportImage(r.Context(), strategy)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.renders.Set(revision, strategy, data)
	serveImage(w, strategy, data)
}

func serveImage(w http.ResponseWriter, strategy string, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "tally-"+strategy+".png"))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		slog.Error("Failed to write image response", "error", err)
	}
}

func (s *Server) handleExportText(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.ExportText(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="tally.json"`)
	_, _ = w.Write(data)
}

func (s *Server) handleImportImage(w http.ResponseWriter, r *http.Request) {
	data, err := s.readBody(w, r, s.maxImportBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	revision, err := s.service.ImportImage(r.Context(), data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, revisionResponse{Revision: revision})
}

func (s *Server) handleImportScanned(w http.ResponseWriter, r *http.Request) {
	raw, err := s.readBody(w, r, s.maxImportBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	revision, err := s.service.ImportScanned(r.Context(), raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, revisionResponse{Revision: revision})
}

func (s *Server) handleImportText(w http.ResponseWriter, r *http.Request) {
	data, err := s.readBody(w, r, s.maxImportBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	revision, err := s.service.ImportText(r.Context(), data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, revisionResponse{Revision: revision})
}

// pathID parses a UUID path segment.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s: %v", codec.ErrInvalidData, name, err)
	}
	return id, nil
}
