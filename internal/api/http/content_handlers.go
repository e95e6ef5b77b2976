package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-grading/internal/content"
)

// PUT /contents/{contentID}
func PutContentHandler(svc *content.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c content.Content
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		c.ID = chi.URLParam(r, "contentID")
		saved, err := svc.Save(r.Context(), c)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

// DELETE /contents/{contentID}
func DeleteContentHandler(svc *content.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "contentID")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
