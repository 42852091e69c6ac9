package content

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed site.yaml
var defaultYAML []byte

//go:embed site.cue
var schemaCUE string

// Company holds the contact block shown in the footer and contact page.
type Company struct {
	Name           string `yaml:"name" json:"name"`
	Address        string `yaml:"address" json:"address"`
	Phone          string `yaml:"phone" json:"phone"`
	Mobile         string `yaml:"mobile" json:"mobile"`
	Email          string `yaml:"email" json:"email"`
	Representative string `yaml:"representative" json:"representative"`
}

type NavItem struct {
	ID    Page `yaml:"id" json:"id"`
	Label Text `yaml:"label" json:"label"`
}

type Hero struct {
	Title    Text `yaml:"title" json:"title"`
	Subtitle Text `yaml:"subtitle" json:"subtitle"`
}

type About struct {
	Description Text `yaml:"description" json:"description"`
}

// Product is one catalog entry. Image names the store key holding its
// customizable photo.
type Product struct {
	ID          string   `yaml:"id" json:"id"`
	Image       string   `yaml:"image" json:"image"`
	Title       Text     `yaml:"title" json:"title"`
	Subtitle    Text     `yaml:"subtitle" json:"subtitle"`
	Description Text     `yaml:"description" json:"description"`
	Features    TextList `yaml:"features" json:"features"`
	Details     Text     `yaml:"details" json:"details"`
	Status      string   `yaml:"status,omitempty" json:"status,omitempty"`
}

type BusinessModel struct {
	Title Text `yaml:"title" json:"title"`
	Desc  Text `yaml:"desc" json:"desc"`
}

type Notice struct {
	ID       int    `yaml:"id" json:"id"`
	Date     string `yaml:"date" json:"date"` // YYYY.MM.DD
	Category Text   `yaml:"category" json:"category"`
	Title    Text   `yaml:"title" json:"title"`
	New      bool   `yaml:"new,omitempty" json:"new,omitempty"`
}

type Certification struct {
	Title  Text `yaml:"title" json:"title"`
	Detail Text `yaml:"detail" json:"detail"`
}

type FAQ struct {
	Question Text `yaml:"question" json:"question"`
	Answer   Text `yaml:"answer" json:"answer"`
}

// Site is the complete content document.
type Site struct {
	Company        Company         `yaml:"company" json:"company"`
	Nav            []NavItem       `yaml:"nav" json:"nav"`
	Hero           Hero            `yaml:"hero" json:"hero"`
	About          About           `yaml:"about" json:"about"`
	Products       []Product       `yaml:"products" json:"products"`
	BusinessModels []BusinessModel `yaml:"business_models" json:"business_models"`
	Notices        []Notice        `yaml:"notices" json:"notices"`
	Certifications []Certification `yaml:"certifications" json:"certifications"`
	FAQs           []FAQ           `yaml:"faqs" json:"faqs"`
	ContactTypes   []Text          `yaml:"contact_types" json:"contact_types"`
}

// ValidationError reports a content document that does not satisfy the schema.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("invalid content at %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("invalid content: %s", e.Message)
}

var (
	defaultOnce sync.Once
	defaultSite *Site
	defaultErr  error
)

// Default returns the embedded site content. It panics if the embedded
// document does not validate.
func Default() *Site {
	defaultOnce.Do(func() {
		defaultSite, defaultErr = Load(bytes.NewReader(defaultYAML))
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("embedded site content: %v", defaultErr))
	}
	return defaultSite
}

// Load parses a YAML content document and validates it against the schema.
func Load(r io.Reader) (*Site, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}

	if err := Validate(data); err != nil {
		return nil, err
	}

	var site Site
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	return &site, nil
}

// Validate checks a YAML content document against the #Site schema.
func Validate(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse content: %w", err)
	}
	if doc == nil {
		return &ValidationError{Message: "document is empty"}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("site.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile content schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Site"))
	value := def.Unify(ctx.Encode(doc))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError reduces a CUE error list to its first entry with a path.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Message: err.Error()}
	}

	first := errs[0]
	path := first.Path()
	if len(path) > 0 && path[0] == "#Site" {
		path = path[1:]
	}
	format, args := first.Msg()
	return &ValidationError{
		Path:    strings.Join(path, "."),
		Message: fmt.Sprintf(format, args...),
	}
}

// Product returns the product with the given id.
func (s *Site) Product(id string) (Product, bool) {
	for _, p := range s.Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// SortedNotices returns notices newest first. Dates in YYYY.MM.DD order
// lexically; ties keep the higher id first.
func (s *Site) SortedNotices() []Notice {
	notices := make([]Notice, len(s.Notices))
	copy(notices, s.Notices)
	sort.SliceStable(notices, func(i, j int) bool {
		if notices[i].Date != notices[j].Date {
			return notices[i].Date > notices[j].Date
		}
		return notices[i].ID > notices[j].ID
	})
	return notices
}

// ContactType returns the contact type whose Korean or English label is
// label. Matching ignores case.
func (s *Site) ContactType(label string) (Text, bool) {
	for _, t := range s.ContactTypes {
		if strings.EqualFold(t.KR, label) || strings.EqualFold(t.EN, label) {
			return t, true
		}
	}
	return Text{}, false
}
