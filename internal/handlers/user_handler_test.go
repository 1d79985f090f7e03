package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"candil-egov/internal/handlers"
	"candil-egov/internal/models"
	"candil-egov/internal/store"
	"candil-egov/internal/utils"
)

func newUserHandler(mt *mtest.T) *handlers.UserHandler {
	return &handlers.UserHandler{
		Users:       store.New[models.User](mt.Coll),
		Preferences: store.New[models.Preferences](mt.Coll),
		Progress:    store.New[models.Progress](mt.Coll),
		Books:       store.New[models.Book](mt.Coll),
		AuditLogger: utils.Logger{Collection: mt.Coll},
	}
}

func TestUserHandler_Me(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns profile without password hash", func(mt *mtest.T) {
		userID := primitive.NewObjectID()

		mt.AddMockResponses(mtest.CreateCursorResponse(1, "candil.users", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: userID},
			{Key: "email", Value: "budi@example.go.id"},
			{Key: "name", Value: "Budi"},
			{Key: "password_hash", Value: "$2a$10$secret"},
			{Key: "role", Value: "MEMBER"},
			{Key: "active", Value: true},
		}))

		router := mux.NewRouter()
		router.HandleFunc("/me", newUserHandler(mt).Me).Methods("GET")

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req = withUser(req, userID.Hex(), "MEMBER")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
		}
		if strings.Contains(w.Body.String(), "password_hash") || strings.Contains(w.Body.String(), "$2a$") {
			t.Error("password hash leaked into the response")
		}

		var user models.User
		if err := json.Unmarshal(w.Body.Bytes(), &user); err != nil {
			t.Fatalf("invalid response body: %v", err)
		}
		if user.Email != "budi@example.go.id" {
			t.Errorf("email = %q, want %q", user.Email, "budi@example.go.id")
		}
	})
}

func TestUserHandler_Preferences(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("defaults when none saved", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "candil.preferences", mtest.FirstBatch))

		router := mux.NewRouter()
		router.HandleFunc("/me/preferences", newUserHandler(mt).GetPreferences).Methods("GET")

		req := httptest.NewRequest(http.MethodGet, "/me/preferences", nil)
		req = withUser(req, primitive.NewObjectID().Hex(), "MEMBER")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}

		var prefs models.Preferences
		if err := json.Unmarshal(w.Body.Bytes(), &prefs); err != nil {
			t.Fatalf("invalid response body: %v", err)
		}
		if prefs.ReaderTheme != "light" || prefs.FontScale != 1.0 || prefs.PlaybackSpeed != 1.0 {
			t.Errorf("unexpected defaults: %+v", prefs)
		}
	})

	mt.Run("saves and echoes updated settings", func(mt *mtest.T) {
		userID := primitive.NewObjectID().Hex()

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateCursorResponse(1, "candil.preferences", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "user_id", Value: userID},
				{Key: "reader_theme", Value: "dark"},
				{Key: "font_scale", Value: 1.4},
				{Key: "playback_speed", Value: 1.0},
			}),
		)

		router := mux.NewRouter()
		router.HandleFunc("/me/preferences", newUserHandler(mt).UpdatePreferences).Methods("PUT")

		req := httptest.NewRequest(http.MethodPut, "/me/preferences",
			bytes.NewReader([]byte(`{"reader_theme":"dark","font_scale":1.4}`)))
		req = withUser(req, userID, "MEMBER")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
		}

		var prefs models.Preferences
		if err := json.Unmarshal(w.Body.Bytes(), &prefs); err != nil {
			t.Fatalf("invalid response body: %v", err)
		}
		if prefs.ReaderTheme != "dark" {
			t.Errorf("reader_theme = %q, want dark", prefs.ReaderTheme)
		}
	})

	mt.Run("rejects unknown theme", func(mt *mtest.T) {
		router := mux.NewRouter()
		router.HandleFunc("/me/preferences", newUserHandler(mt).UpdatePreferences).Methods("PUT")

		req := httptest.NewRequest(http.MethodPut, "/me/preferences",
			bytes.NewReader([]byte(`{"reader_theme":"solarized"}`)))
		req = withUser(req, primitive.NewObjectID().Hex(), "MEMBER")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	mt.Run("rejects out of range font scale", func(mt *mtest.T) {
		router := mux.NewRouter()
		router.HandleFunc("/me/preferences", newUserHandler(mt).UpdatePreferences).Methods("PUT")

		req := httptest.NewRequest(http.MethodPut, "/me/preferences",
			bytes.NewReader([]byte(`{"font_scale":9.5}`)))
		req = withUser(req, primitive.NewObjectID().Hex(), "MEMBER")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

func TestUserHandler_Progress(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("nothing recorded yet", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "candil.progress", mtest.FirstBatch))

		router := mux.NewRouter()
		router.HandleFunc("/me/progress/{bookID}", newUserHandler(mt).GetProgress).Methods("GET")

		req := httptest.NewRequest(http.MethodGet, "/me/progress/"+primitive.NewObjectID().Hex(), nil)
		req = withUser(req, primitive.NewObjectID().Hex(), "MEMBER")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	mt.Run("saves reading position", func(mt *mtest.T) {
		bookID := primitive.NewObjectID()

		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, "candil.books", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: bookID},
				{Key: "title", Value: "Laskar Pelangi"},
			}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
		)

		router := mux.NewRouter()
		router.HandleFunc("/me/progress/{bookID}", newUserHandler(mt).UpdateProgress).Methods("PUT")

		req := httptest.NewRequest(http.MethodPut, "/me/progress/"+bookID.Hex(),
			bytes.NewReader([]byte(`{"page":41,"position_seconds":0}`)))
		req = withUser(req, primitive.NewObjectID().Hex(), "MEMBER")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
		}
	})

	mt.Run("negative progress rejected", func(mt *mtest.T) {
		router := mux.NewRouter()
		router.HandleFunc("/me/progress/{bookID}", newUserHandler(mt).UpdateProgress).Methods("PUT")

		req := httptest.NewRequest(http.MethodPut, "/me/progress/"+primitive.NewObjectID().Hex(),
			bytes.NewReader([]byte(`{"page":-3}`)))
		req = withUser(req, primitive.NewObjectID().Hex(), "MEMBER")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

func TestUserHandler_DeactivateUser(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("deactivates existing user", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateSuccessResponse(),
		)

		router := mux.NewRouter()
		router.HandleFunc("/users/{id}/deactivate", newUserHandler(mt).DeactivateUser).Methods("PATCH")

		req := httptest.NewRequest(http.MethodPatch, "/users/"+primitive.NewObjectID().Hex()+"/deactivate", nil)
		req = withUser(req, primitive.NewObjectID().Hex(), "ADMIN")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
		}
	})

	mt.Run("unknown user", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		router := mux.NewRouter()
		router.HandleFunc("/users/{id}/deactivate", newUserHandler(mt).DeactivateUser).Methods("PATCH")

		req := httptest.NewRequest(http.MethodPatch, "/users/"+primitive.NewObjectID().Hex()+"/deactivate", nil)
		req = withUser(req, primitive.NewObjectID().Hex(), "ADMIN")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}
