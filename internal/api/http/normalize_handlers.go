package http

import (
	"encoding/json"
	"net/http"

	"github.com/mind-engage/mindengage-grading/internal/normalize"
)

type previewReq struct {
	normalize.Config
	Raw       float64   `json:"raw"`
	Reference []float64 `json:"reference,omitempty"`
}

// POST /normalize/preview
func PreviewNormalizationHandler(n *normalize.Normalizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req previewReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		v, err := n.Normalize(req.Raw, req.Config, req.Reference)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"method":     req.Config.Resolved(),
			"raw":        req.Raw,
			"normalized": v,
		})
	}
}
