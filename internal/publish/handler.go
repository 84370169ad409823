package publish

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ArtifactPath is the URL prefix artifacts are downloaded from
const ArtifactPath = "/artifacts/"

// Routes registers GET and HEAD /artifacts/{id} on r
func Routes(r chi.Router, store Store, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	download := func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		a, err := store.Get(req.Context(), id)
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "artifact not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("failed to load artifact", zap.String("artifact_id", id), zap.Error(err))
			http.Error(w, "failed to load artifact", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", a.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Name}))
		w.WriteHeader(http.StatusOK)
		if req.Method != http.MethodHead {
			_, _ = w.Write(a.Data)
		}
	}

	r.Get(ArtifactPath+"{id}", download)
	r.Head(ArtifactPath+"{id}", download)
}

// Handler serves the artifact routes on their own router
func Handler(store Store, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	Routes(r, store, logger)
	return r
}
