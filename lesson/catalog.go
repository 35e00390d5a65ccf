package lesson

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/analysiscache/analysis"
)

const DefaultPagePattern = "page-%d.png"

type Lesson struct {
	Number    int    `yaml:"number"`
	Title     string `yaml:"title"`
	StartPage int    `yaml:"start_page"`
	EndPage   int    `yaml:"end_page"`
}

type Document struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	PagesDir    string   `yaml:"pages_dir"`
	PagePattern string   `yaml:"page_pattern"` // fmt pattern taking the page number
	Lessons     []Lesson `yaml:"lessons"`
}

// Catalog lists the documents and lesson page ranges jobs resolve against.
type Catalog struct {
	Documents []Document `yaml:"documents"`
}

func LoadCatalog(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lesson: read catalog: %w", err)
	}
	return ParseCatalog(b)
}

func ParseCatalog(b []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("lesson: parse catalog: %w", err)
	}
	seen := make(map[string]bool, len(c.Documents))
	for i := range c.Documents {
		d := &c.Documents[i]
		if d.ID == "" {
			return nil, fmt.Errorf("lesson: catalog document %d has no id", i)
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("lesson: duplicate document %q", d.ID)
		}
		seen[d.ID] = true
		if d.PagePattern == "" {
			d.PagePattern = DefaultPagePattern
		}
	}
	return &c, nil
}

func (c *Catalog) Document(id string) (Document, bool) {
	for _, d := range c.Documents {
		if d.ID == id {
			return d, true
		}
	}
	return Document{}, false
}

// Jobs lists every lesson in the catalog as a vision job, in catalog order.
func (c *Catalog) Jobs() []JobID {
	var out []JobID
	for _, d := range c.Documents {
		for _, l := range d.Lessons {
			out = append(out, NewJobID(d.ID, l.Number))
		}
	}
	return out
}

// Resolve turns id into ordered page units. Unknown documents or lessons and
// empty page ranges fail with a *JobError. Pages loc cannot find still become
// units, with Found=false.
func (c *Catalog) Resolve(ctx context.Context, id JobID, loc Locator) (Job, error) {
	doc, ok := c.Document(id.DocumentID)
	if !ok {
		return Job{}, &JobError{ID: id, Reason: "unknown document"}
	}
	var les *Lesson
	for i := range doc.Lessons {
		if doc.Lessons[i].Number == id.Number {
			les = &doc.Lessons[i]
			break
		}
	}
	if les == nil {
		return Job{}, &JobError{ID: id, Reason: "unknown lesson"}
	}
	if les.StartPage <= 0 || les.EndPage < les.StartPage {
		return Job{}, &JobError{ID: id, Reason: fmt.Sprintf("empty page range %d-%d", les.StartPage, les.EndPage)}
	}

	units := make([]analysis.Unit, 0, les.EndPage-les.StartPage+1)
	for p := les.StartPage; p <= les.EndPage; p++ {
		asset, found, err := loc.Locate(ctx, doc, p)
		if err != nil {
			return Job{}, fmt.Errorf("lesson: locate page %d of %s: %w", p, doc.ID, err)
		}
		units = append(units, analysis.Unit{Index: len(units), Page: p, Asset: asset, Found: found})
	}
	return Job{ID: id, Title: les.Title, Document: doc.Title, Units: units}, nil
}
