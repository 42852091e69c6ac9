package web

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"

	"github.com/roach88/cmstory/internal/content"
	"github.com/roach88/cmstory/internal/gallery"
	"github.com/roach88/cmstory/internal/inquiry"
	"github.com/roach88/cmstory/internal/store"
)

// Labels for page chrome that is not part of the site content.
var ui = map[string]content.Text{
	"upload":       {KR: "이미지 변경", EN: "Change image"},
	"upload_logo":  {KR: "로고 변경", EN: "Change logo"},
	"upload_token": {KR: "관리자 토큰", EN: "Admin token"},
	"loading":      {KR: "이미지 불러오는 중", EN: "Loading images"},
	"company":      {KR: "회사소개", EN: "About CM Story"},
	"products":     {KR: "제품소개", EN: "Products"},
	"solutions":    {KR: "비즈니스 모델", EN: "Business Models"},
	"notice":       {KR: "공지사항", EN: "Notice"},
	"ipcert":       {KR: "인증 및 특허", EN: "IP & Certifications"},
	"faq":          {KR: "자주 묻는 질문", EN: "FAQ"},
	"contact":      {KR: "문의하기", EN: "Contact Us"},
	"name":         {KR: "성함", EN: "Name"},
	"phone":        {KR: "연락처", EN: "Phone"},
	"email":        {KR: "이메일", EN: "Email"},
	"type":         {KR: "문의 유형", EN: "Inquiry Type"},
	"message":      {KR: "문의 내용", EN: "Message"},
	"consent":      {KR: "개인정보 수집 및 이용에 동의합니다.", EN: "I agree to the collection and use of personal information."},
	"send":         {KR: "문의 보내기", EN: "Send Inquiry"},
	"sent":         {KR: "문의가 접수되었습니다. 빠르게 연락드리겠습니다.", EN: "Your inquiry has been received. We will contact you shortly."},
	"invalid":      {KR: "입력 내용을 확인해 주세요.", EN: "Please check the highlighted fields."},
	"address":      {KR: "주소", EN: "Address"},
	"mobile":       {KR: "휴대폰", EN: "Mobile"},
	"ceo":          {KR: "대표", EN: "CEO"},
	"not_found":    {KR: "페이지를 찾을 수 없습니다.", EN: "Page not found."},
	"rights":       {KR: "All rights reserved.", EN: "All rights reserved."},
	"new":          {KR: "NEW", EN: "NEW"},
	"patent_image": {KR: "특허증", EN: "Patent Certificate"},
}

func parseTemplates() (*template.Template, error) {
	funcs := template.FuncMap{
		"ui": func(key string, lang content.Lang) string {
			return ui[key].In(lang)
		},
		"lines": func(s string) []string {
			return strings.Split(s, "\n")
		},
	}
	return template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
}

// pageData is the template context for every page.
type pageData struct {
	Lang   content.Lang
	Page   content.Page
	Path   string
	Nav    []content.MenuItem
	Site   *content.Site
	Loaded bool

	// Uploads is set when the server accepts image uploads.
	Uploads bool

	Sent   bool
	Form   inquiry.Form
	Errors inquiry.FieldErrors

	images Images
}

// Shows reports whether section p is rendered. Home renders every section.
func (d pageData) Shows(p content.Page) bool {
	return d.Page == content.PageHome || d.Page == p
}

// Asset resolves an image key for the template.
func (d pageData) Asset(key string) gallery.Asset {
	k := store.Key(key)
	if d.images == nil {
		return gallery.Asset{Key: k, Src: gallery.DefaultSrc(k)}
	}
	return d.images.Resolve(k)
}

type uploadData struct {
	Key     string
	Return  string
	Lang    content.Lang
	Enabled bool
}

// Upload is the context for an image upload control.
func (d pageData) Upload(key string) uploadData {
	return uploadData{Key: key, Return: d.Path, Lang: d.Lang, Enabled: d.Uploads}
}

func (s *Server) newPageData(r *http.Request, lang content.Lang, page content.Page) pageData {
	d := pageData{
		Lang:    lang,
		Page:    page,
		Path:    r.URL.Path,
		Nav:     s.site.Navigation(lang, page),
		Site:    s.site,
		Loaded:  true,
		Uploads: s.uploadToken != "",
		images:  s.images,
	}
	if s.images != nil {
		d.Loaded = s.images.Loaded()
	}
	return d
}

// render executes name into a buffer so template errors become a 500
// instead of a truncated page.
func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("template render failed", "template", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
