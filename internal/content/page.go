package content

// Page identifies one section of the site.
type Page string

const (
	PageHome      Page = "home"
	PageCompany   Page = "company"
	PageProducts  Page = "products"
	PageSolutions Page = "solutions"
	PageNotice    Page = "notice"
	PageIPCert    Page = "ipcert"
	PageContact   Page = "contact"
)

// Pages returns every page in menu order.
func Pages() []Page {
	return []Page{PageHome, PageCompany, PageProducts, PageSolutions, PageNotice, PageIPCert, PageContact}
}

// ParsePage returns the page named s. Unknown names fall back to home.
func ParsePage(s string) (Page, bool) {
	for _, p := range Pages() {
		if string(p) == s {
			return p, true
		}
	}
	return PageHome, false
}

// MenuItem is a localized navigation entry.
type MenuItem struct {
	Page   Page   `json:"page"`
	Label  string `json:"label"`
	Href   string `json:"href"`
	Active bool   `json:"active"`
}

// Navigation returns the menu in lang with current marked active.
func (s *Site) Navigation(lang Lang, current Page) []MenuItem {
	items := make([]MenuItem, 0, len(s.Nav))
	for _, n := range s.Nav {
		href := "/" + string(n.ID)
		if n.ID == PageHome {
			href = "/"
		}
		items = append(items, MenuItem{
			Page:   n.ID,
			Label:  n.Label.In(lang),
			Href:   href,
			Active: n.ID == current,
		})
	}
	return items
}
