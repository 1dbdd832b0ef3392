package images

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/2beens/ironlog/internal/auth"
	"github.com/2beens/ironlog/internal/telemetry/tracing"
	"github.com/2beens/ironlog/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// 5 MB is plenty for an exercise reference image
const maxUploadedImageSize = 5 << 20

type UploadImageResponse struct {
	Key string `json:"key"`
}

type DeleteImageResponse struct {
	DeletedKey string `json:"deletedKey"`
}

type Handler struct {
	store *DiskStore
}

func NewHandler(store *DiskStore) *Handler {
	return &Handler{
		store: store,
	}
}

// HandleUpload stores the image of a (muscle group, exercise) pair, replacing
// a previous one. Expects a multipart form with an <image> file field.
func (handler *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.images.upload")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	vars := mux.Vars(r)
	muscleGroup := vars["mgroup"]
	exercise := vars["exercise"]
	if muscleGroup == "" || exercise == "" {
		http.Error(w, "error, exercise or muscle group empty", http.StatusBadRequest)
		return
	}

	if err := r.ParseMultipartForm(maxUploadedImageSize); err != nil {
		log.Errorf("upload image, parse multipart form: %s", err)
		http.Error(w, "internal error or image too big", http.StatusBadRequest)
		return
	}

	imageFile, _, err := r.FormFile("image")
	if err != nil {
		log.Errorf("upload image, form file: %s", err)
		http.Error(w, "error, <image> file field missing", http.StatusBadRequest)
		return
	}
	defer imageFile.Close()

	key := Key(muscleGroup, exercise)
	if err := handler.store.Save(ctx, auth.OwnerFromContext(ctx), key, imageFile); err != nil {
		log.Errorf("failed to save image [%s]: %s", key, err)
		http.Error(w, "error, failed to save image", http.StatusInternalServerError)
		return
	}

	uploadRespJson, err := json.Marshal(UploadImageResponse{Key: key})
	if err != nil {
		log.Errorf("failed to marshal upload response: %s", err)
		http.Error(w, "failed to marshal upload response", http.StatusInternalServerError)
		return
	}

	log.Debugf("exercise image stored: %s", key)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, uploadRespJson, http.StatusCreated)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.images.get")
	defer span.End()

	key := mux.Vars(r)["key"]
	if key == "" {
		http.Error(w, "error, image key empty", http.StatusBadRequest)
		return
	}

	image, err := handler.store.Open(ctx, auth.OwnerFromContext(ctx), key)
	if errors.Is(err, ErrImageNotFound) {
		http.Error(w, "image not found", http.StatusNotFound)
		return
	} else if err != nil {
		log.Errorf("failed to open image [%s]: %s", key, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer image.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	if _, err := io.Copy(w, image); err != nil {
		log.Errorf("failed to write image [%s]: %s", key, err)
	}
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.images.delete")
	defer span.End()

	key := mux.Vars(r)["key"]
	if key == "" {
		http.Error(w, "error, image key empty", http.StatusBadRequest)
		return
	}

	if err := handler.store.Delete(ctx, auth.OwnerFromContext(ctx), key); err != nil {
		if errors.Is(err, ErrImageNotFound) {
			http.Error(w, "image not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete image [%s]: %s", key, err)
		http.Error(w, "image not deleted", http.StatusInternalServerError)
		return
	}

	deleteRespJson, err := json.Marshal(DeleteImageResponse{DeletedKey: key})
	if err != nil {
		log.Errorf("failed to marshal delete response: %s", err)
		http.Error(w, "failed to marshal delete response", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(deleteRespJson))
}
