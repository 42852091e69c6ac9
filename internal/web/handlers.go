package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/roach88/cmstory/internal/content"
	"github.com/roach88/cmstory/internal/gallery"
	"github.com/roach88/cmstory/internal/imaging"
	"github.com/roach88/cmstory/internal/inquiry"
	"github.com/roach88/cmstory/internal/store"
)

const (
	langCookie   = "lang"
	uploadField  = "file"
	tokenField   = "token"
	imageCSP     = "default-src 'none'; sandbox"
	maxFormBytes = gallery.MaxUploadSize + 1<<20
)

// language picks the request language: an explicit ?lang= (remembered in a
// cookie), then the cookie, then Accept-Language, then the default.
func (s *Server) language(w http.ResponseWriter, r *http.Request) content.Lang {
	if q := r.URL.Query().Get("lang"); q != "" {
		if l, ok := content.ParseLang(q); ok {
			http.SetCookie(w, &http.Cookie{
				Name:     langCookie,
				Value:    l.Code(),
				Path:     "/",
				MaxAge:   365 * 24 * 60 * 60,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			return l
		}
	}
	if c, err := r.Cookie(langCookie); err == nil {
		if l, ok := content.ParseLang(c.Value); ok {
			return l
		}
	}
	return content.MatchLangOr(r.Header.Get("Accept-Language"), s.defaultLang)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	page := content.PageHome
	if name, ok := mux.Vars(r)["page"]; ok {
		p, known := content.ParsePage(name)
		if !known || p == content.PageHome {
			s.handleNotFound(w, r)
			return
		}
		page = p
	}

	lang := s.language(w, r)
	data := s.newPageData(r, lang, page)
	if page == content.PageContact {
		data.Sent = r.URL.Query().Get("sent") == "1"
	}
	s.render(w, http.StatusOK, "page", data)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	lang := s.language(w, r)
	s.render(w, http.StatusNotFound, "not_found", s.newPageData(r, lang, ""))
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	key, err := store.ParseKey(mux.Vars(r)["key"])
	if err != nil {
		http.NotFound(w, r)
		return
	}

	img, err := s.images.Image(key)
	if err != nil {
		if !errors.Is(err, gallery.ErrNoCustomImage) {
			s.logger.Warn("stored image unreadable, serving default", "key", key, "error", err)
		}
		http.Redirect(w, r, gallery.DefaultSrc(key), http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", imageCSP)
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(img.Data)
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	key, err := store.ParseKey(mux.Vars(r)["key"])
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if s.uploadToken == "" {
		s.uploadDenied(w, key, http.StatusForbidden)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.uploadFailed(w, key, gallery.ErrTooLarge)
			return
		}
		s.uploadFailed(w, key, err)
		return
	}
	defer file.Close()

	if !s.uploadAuthorized(r) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		s.uploadDenied(w, key, http.StatusUnauthorized)
		return
	}

	if _, err := s.images.Upload(r.Context(), key, file, header.Header.Get("Content-Type")); err != nil {
		s.uploadFailed(w, key, err)
		return
	}
	s.metrics.uploads.WithLabelValues(string(key), "accepted").Inc()

	http.Redirect(w, r, safeReturn(r.FormValue("return")), http.StatusSeeOther)
}

func (s *Server) uploadFailed(w http.ResponseWriter, key store.Key, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, gallery.ErrTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, imaging.ErrNotImage), errors.Is(err, imaging.ErrEmpty):
		status = http.StatusUnsupportedMediaType
	}
	s.metrics.uploads.WithLabelValues(string(key), "rejected").Inc()
	s.logger.Info("image upload rejected", "key", key, "error", err)
	http.Error(w, err.Error(), status)
}

func (s *Server) uploadDenied(w http.ResponseWriter, key store.Key, status int) {
	s.metrics.uploads.WithLabelValues(string(key), "denied").Inc()
	s.logger.Info("image upload denied", "key", key, "status", status)
	http.Error(w, http.StatusText(status), status)
}

// uploadAuthorized checks the bearer token, falling back to the form field
// the upload controls submit.
func (s *Server) uploadAuthorized(r *http.Request) bool {
	token := r.FormValue(tokenField)
	if auth := r.Header.Get("Authorization"); auth != "" {
		bearer, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok {
			return false
		}
		token = bearer
	}
	return token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.uploadToken)) == 1
}

// safeReturn keeps post-upload redirects on this site.
func safeReturn(path string) string {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") || strings.HasPrefix(path, "/\\") {
		return "/"
	}
	return path
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}

	form := inquiry.Form{
		Name:    r.PostFormValue("name"),
		Phone:   r.PostFormValue("phone"),
		Email:   r.PostFormValue("email"),
		Type:    r.PostFormValue("type"),
		Message: r.PostFormValue("message"),
		Consent: r.PostFormValue("consent") != "",
	}

	_, err := s.inquiries.Submit(r.Context(), form)
	var fieldErrs inquiry.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		s.metrics.inquiries.WithLabelValues("invalid").Inc()
		lang := s.language(w, r)
		data := s.newPageData(r, lang, content.PageContact)
		data.Path = "/contact"
		data.Form = form
		data.Errors = fieldErrs
		s.render(w, http.StatusBadRequest, "page", data)
	case err != nil:
		s.metrics.inquiries.WithLabelValues("error").Inc()
		s.logger.Error("inquiry not recorded", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	default:
		s.metrics.inquiries.WithLabelValues("accepted").Inc()
		http.Redirect(w, r, "/contact?sent=1", http.StatusSeeOther)
	}
}

type healthResponse struct {
	Status        string `json:"status"`
	Store         string `json:"store"`
	SchemaVersion int    `json:"schema_version"`
	ImagesLoaded  bool   `json:"images_loaded"`
}

// handleHealth always answers 200: the site renders defaults without the
// store, so a failed store is reported as degraded rather than down.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Store: "unknown"}
	if s.store != nil {
		state := s.store.State()
		resp.Store = state.String()
		resp.SchemaVersion = s.store.Stats().SchemaVersion
		if state == store.StateFailed {
			resp.Status = "degraded"
		}
	}
	if s.images != nil {
		resp.ImagesLoaded = s.images.Loaded()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
