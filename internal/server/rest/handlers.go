// Package rest exposes the account services over HTTP with chi.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/deepesh-reddy/MegaBackend/internal/common"
	"github.com/deepesh-reddy/MegaBackend/internal/logging"
	"github.com/deepesh-reddy/MegaBackend/internal/server/models"
	"github.com/deepesh-reddy/MegaBackend/internal/server/services"
	"github.com/go-chi/chi/v5"
)

const (
	maxMultipartMemory = 10 << 20
	maxJSONBody        = 1 << 20
)

type Registrar interface {
	Register(ctx context.Context, in services.RegistrationInput) (*models.User, error)
}

type SessionManager interface {
	Login(ctx context.Context, in services.LoginInput) (*services.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
}

type ProfileManager interface {
	CurrentUser(ctx context.Context, userID string) (*models.User, error)
	UpdateAccount(ctx context.Context, userID, fullName, email string) (*models.User, error)
	UpdateAvatar(ctx context.Context, userID, localPath string) (*models.User, error)
	UpdateCoverImage(ctx context.Context, userID, localPath string) (*models.User, error)
	ChannelProfile(ctx context.Context, username, viewerID string) (*models.ChannelProfile, error)
	WatchHistory(ctx context.Context, userID string) ([]models.WatchedVideo, error)
}

// Handler serves /api/v1/users.
type Handler struct {
	registrar     Registrar
	sessions      SessionManager
	profiles      ProfileManager
	uploadDir     string
	secureCookies bool
}

func NewHandler(registrar Registrar, sessions SessionManager, profiles ProfileManager,
	uploadDir string, secureCookies bool) *Handler {
	return &Handler{
		registrar:     registrar,
		sessions:      sessions,
		profiles:      profiles,
		uploadDir:     uploadDir,
		secureCookies: secureCookies,
	}
}

type sessionPayload struct {
	User         *models.User `json:"user,omitempty"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return &common.ValidationError{Field: "request body"}
	}
	return nil
}

// saveFormFile copies a multipart file into the upload dir and returns its
// path, or "" when the field is absent. The caller removes the file.
func (h *Handler) saveFormFile(r *http.Request, field string) (string, error) {
	src, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", &common.ValidationError{Field: field}
	}
	defer src.Close()

	if err := os.MkdirAll(h.uploadDir, 0o750); err != nil {
		return "", err
	}
	dst, err := os.CreateTemp(h.uploadDir, "upload-*"+filepath.Ext(filepath.Base(hdr.Filename)))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

func removeTemp(r *http.Request, paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.FromContext(r.Context(), logging.Nop{}).Warn(r.Context(), "temp file not removed", "path", p, "error", err)
		}
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		respondError(w, r, &common.ValidationError{Field: common.AssetAvatar})
		return
	}
	defer r.MultipartForm.RemoveAll()

	avatar, err := h.saveFormFile(r, common.AssetAvatar)
	if err != nil {
		respondError(w, r, err)
		return
	}
	cover, err := h.saveFormFile(r, common.AssetCoverImage)
	if err != nil {
		removeTemp(r, avatar)
		respondError(w, r, err)
		return
	}
	defer removeTemp(r, avatar, cover)

	user, err := h.registrar.Register(r.Context(), services.RegistrationInput{
		FullName:       r.FormValue("fullName"),
		Email:          r.FormValue("email"),
		Username:       r.FormValue("username"),
		Password:       r.FormValue("password"),
		AvatarPath:     avatar,
		CoverImagePath: cover,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondData(w, r, http.StatusCreated, user, "User registered successfully")
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	sess, err := h.sessions.Login(r.Context(), services.LoginInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	h.setCookies(w, sess.Tokens)
	respondData(w, r, http.StatusOK, sessionPayload{
		User:         sess.User,
		AccessToken:  sess.Tokens.AccessToken,
		RefreshToken: sess.Tokens.RefreshToken,
	}, "User logged in successfully")
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token := cookieValue(r, common.RefreshTokenCookieName)
	if token == "" {
		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		token = req.RefreshToken
	}

	pair, err := h.sessions.Refresh(r.Context(), token)
	if err != nil {
		respondError(w, r, err)
		return
	}

	h.setCookies(w, pair)
	respondData(w, r, http.StatusOK, sessionPayload{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "Access token refreshed")
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	if err := h.sessions.Logout(r.Context(), userID); err != nil {
		respondError(w, r, err)
		return
	}

	clearAuthCookies(w, h.secureCookies)
	respondData(w, r, http.StatusOK, struct{}{}, "User logged out")
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	userID, _ := UserIDFromContext(r.Context())
	if err := h.sessions.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		respondError(w, r, err)
		return
	}

	clearAuthCookies(w, h.secureCookies)
	respondData(w, r, http.StatusOK, struct{}{}, "Password changed successfully")
}

func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	user, err := h.profiles.CurrentUser(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, user, "User fetched successfully")
}

func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName string `json:"fullName"`
		Email    string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	userID, _ := UserIDFromContext(r.Context())
	user, err := h.profiles.UpdateAccount(r.Context(), userID, req.FullName, req.Email)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, user, "Account details updated successfully")
}

func (h *Handler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.replaceAsset(w, r, common.AssetAvatar, h.profiles.UpdateAvatar, "Avatar updated successfully")
}

func (h *Handler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.replaceAsset(w, r, common.AssetCoverImage, h.profiles.UpdateCoverImage, "Cover image updated successfully")
}

func (h *Handler) replaceAsset(w http.ResponseWriter, r *http.Request, field string,
	update func(ctx context.Context, userID, localPath string) (*models.User, error), message string) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		respondError(w, r, &common.ValidationError{Field: field})
		return
	}
	defer r.MultipartForm.RemoveAll()

	path, err := h.saveFormFile(r, field)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer removeTemp(r, path)

	userID, _ := UserIDFromContext(r.Context())
	user, err := update(r.Context(), userID, path)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, user, message)
}

func (h *Handler) ChannelProfile(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := UserIDFromContext(r.Context())
	channel, err := h.profiles.ChannelProfile(r.Context(), chi.URLParam(r, "username"), viewerID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, channel, "User channel fetched successfully")
}

func (h *Handler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	history, err := h.profiles.WatchHistory(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, history, "Watch history fetched successfully")
}

func (h *Handler) setCookies(w http.ResponseWriter, p *services.TokenPair) {
	setAuthCookies(w, p.AccessToken, p.RefreshToken, p.AccessTTL, p.RefreshTTL, h.secureCookies)
}

func health(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}, "OK")
}
