package handlers_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"candil-egov/internal/handlers"
	"candil-egov/internal/media"
	"candil-egov/internal/models"
	"candil-egov/internal/store"
	"candil-egov/internal/utils"
)

func newMediaHandler(t *testing.T, mt *mtest.T) *handlers.MediaHandler {
	t.Helper()
	files, err := media.NewStore(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("failed to create media store: %v", err)
	}
	return &handlers.MediaHandler{
		Assets:         store.New[models.Asset](mt.Coll),
		Books:          store.New[models.Book](mt.Coll),
		Files:          files,
		AuditLogger:    utils.Logger{Collection: mt.Coll},
		MaxUploadBytes: 1 << 20,
	}
}

func multipartUpload(t *testing.T, kind, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("kind", kind); err != nil {
		t.Fatalf("failed to write kind field: %v", err)
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create file part: %v", err)
	}
	part.Write(data)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestMediaHandler_UploadAsset(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("cover upload attaches to book", func(mt *mtest.T) {
		bookID := primitive.NewObjectID()

		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, "candil.books", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: bookID},
				{Key: "title", Value: "Laskar Pelangi"},
			}),
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateSuccessResponse(),
		)

		handler := newMediaHandler(t, mt)
		router := mux.NewRouter()
		router.HandleFunc("/books/{id}/assets", handler.UploadAsset).Methods("POST")

		body, contentType := multipartUpload(t, "COVER", "cover.png", "image/png", []byte("png bytes"))
		req := httptest.NewRequest(http.MethodPost, "/books/"+bookID.Hex()+"/assets", body)
		req.Header.Set("Content-Type", contentType)
		req = withUser(req, primitive.NewObjectID().Hex(), "ADMIN")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusCreated, w.Body.String())
		}

		var asset models.Asset
		if err := json.Unmarshal(w.Body.Bytes(), &asset); err != nil {
			t.Fatalf("invalid response body: %v", err)
		}
		if asset.Kind != models.AssetCover {
			t.Errorf("kind = %q, want %q", asset.Kind, models.AssetCover)
		}
		if asset.Size != int64(len("png bytes")) {
			t.Errorf("size = %d, want %d", asset.Size, len("png bytes"))
		}

		f, info, err := handler.Files.Open(asset.Key)
		if err != nil {
			t.Fatalf("stored file missing: %v", err)
		}
		defer f.Close()
		if info.Size() != asset.Size {
			t.Errorf("file size = %d, want %d", info.Size(), asset.Size)
		}
	})

	mt.Run("content type must match kind", func(mt *mtest.T) {
		bookID := primitive.NewObjectID()

		mt.AddMockResponses(mtest.CreateCursorResponse(1, "candil.books", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: bookID},
		}))

		handler := newMediaHandler(t, mt)
		router := mux.NewRouter()
		router.HandleFunc("/books/{id}/assets", handler.UploadAsset).Methods("POST")

		body, contentType := multipartUpload(t, "PDF", "not-a-pdf.png", "image/png", []byte("png bytes"))
		req := httptest.NewRequest(http.MethodPost, "/books/"+bookID.Hex()+"/assets", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnsupportedMediaType {
			t.Errorf("status = %d, want %d", w.Code, http.StatusUnsupportedMediaType)
		}
	})

	mt.Run("invalid kind", func(mt *mtest.T) {
		bookID := primitive.NewObjectID()

		mt.AddMockResponses(mtest.CreateCursorResponse(1, "candil.books", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: bookID},
		}))

		handler := newMediaHandler(t, mt)
		router := mux.NewRouter()
		router.HandleFunc("/books/{id}/assets", handler.UploadAsset).Methods("POST")

		body, contentType := multipartUpload(t, "VIDEO", "clip.mp4", "video/mp4", []byte("mp4 bytes"))
		req := httptest.NewRequest(http.MethodPost, "/books/"+bookID.Hex()+"/assets", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	mt.Run("unknown book", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "candil.books", mtest.FirstBatch))

		handler := newMediaHandler(t, mt)
		router := mux.NewRouter()
		router.HandleFunc("/books/{id}/assets", handler.UploadAsset).Methods("POST")

		body, contentType := multipartUpload(t, "COVER", "cover.png", "image/png", []byte("png bytes"))
		req := httptest.NewRequest(http.MethodPost, "/books/"+primitive.NewObjectID().Hex()+"/assets", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

func TestMediaHandler_StreamAsset(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("serves stored bytes with range support", func(mt *mtest.T) {
		handler := newMediaHandler(t, mt)

		key := uuid.NewString()
		if _, err := handler.Files.Save(key, strings.NewReader("mp3 audio bytes")); err != nil {
			t.Fatalf("failed to seed file: %v", err)
		}

		assetID := primitive.NewObjectID()
		assetDoc := bson.D{
			{Key: "_id", Value: assetID},
			{Key: "key", Value: key},
			{Key: "kind", Value: "AUDIO"},
			{Key: "content_type", Value: "audio/mpeg"},
			{Key: "filename", Value: "bab-satu.mp3"},
		}

		router := mux.NewRouter()
		router.HandleFunc("/assets/{id}", handler.StreamAsset).Methods("GET")

		// Full fetch.
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "candil.assets", mtest.FirstBatch, assetDoc))
		req := httptest.NewRequest(http.MethodGet, "/assets/"+assetID.Hex(), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
		}
		if got := w.Header().Get("Content-Type"); got != "audio/mpeg" {
			t.Errorf("content type = %q, want audio/mpeg", got)
		}
		if w.Body.String() != "mp3 audio bytes" {
			t.Errorf("body = %q, want the stored bytes", w.Body.String())
		}

		// Range fetch, as the audio player seeks.
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "candil.assets", mtest.FirstBatch, assetDoc))
		req = httptest.NewRequest(http.MethodGet, "/assets/"+assetID.Hex(), nil)
		req.Header.Set("Range", "bytes=0-2")
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusPartialContent {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusPartialContent)
		}
		if w.Body.String() != "mp3" {
			t.Errorf("partial body = %q, want %q", w.Body.String(), "mp3")
		}
	})

	mt.Run("metadata without file", func(mt *mtest.T) {
		handler := newMediaHandler(t, mt)

		assetID := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "candil.assets", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: assetID},
			{Key: "key", Value: uuid.NewString()},
			{Key: "kind", Value: "PDF"},
			{Key: "content_type", Value: "application/pdf"},
		}))

		router := mux.NewRouter()
		router.HandleFunc("/assets/{id}", handler.StreamAsset).Methods("GET")

		req := httptest.NewRequest(http.MethodGet, "/assets/"+assetID.Hex(), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

func TestMediaHandler_DeleteAsset(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("removes asset and clears book reference", func(mt *mtest.T) {
		handler := newMediaHandler(t, mt)

		key := uuid.NewString()
		if _, err := handler.Files.Save(key, strings.NewReader("pdf bytes")); err != nil {
			t.Fatalf("failed to seed file: %v", err)
		}

		assetID := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, "candil.assets", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: assetID},
				{Key: "key", Value: key},
				{Key: "kind", Value: "PDF"},
			}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateSuccessResponse(),
		)

		router := mux.NewRouter()
		router.HandleFunc("/assets/{id}", handler.DeleteAsset).Methods("DELETE")

		req := httptest.NewRequest(http.MethodDelete, "/assets/"+assetID.Hex(), nil)
		req = withUser(req, primitive.NewObjectID().Hex(), "ADMIN")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusNoContent, w.Body.String())
		}

		if _, _, err := handler.Files.Open(key); err == nil {
			t.Error("file should be gone after delete")
		}
	})
}
