package capture

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rogersnm/fieldsync/internal/markdown"
	"github.com/rogersnm/fieldsync/internal/model"
)

const dateLayout = "2006-01-02"

// Frontmatter is the metadata block of a report file.
type Frontmatter struct {
	Project  string   `yaml:"project"`
	Activity string   `yaml:"activity"`
	Status   string   `yaml:"status,omitempty"`
	Progress *int     `yaml:"progress,omitempty"`
	Date     string   `yaml:"date,omitempty"`
	Photos   []string `yaml:"photos,omitempty"`
}

// Validate checks the fields that can be judged without reading photos.
func (fm Frontmatter) Validate() error {
	if fm.Status != "" {
		if err := model.ValidateStatus(model.ActivityStatus(fm.Status)); err != nil {
			return err
		}
	}
	if fm.Progress != nil {
		if err := model.ValidateProgress(*fm.Progress); err != nil {
			return err
		}
	}
	if fm.Date != "" {
		if _, err := time.Parse(dateLayout, fm.Date); err != nil {
			return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", fm.Date)
		}
	}
	return nil
}

// Draft is a parsed report file. Photo paths are not read until Input.
type Draft struct {
	Frontmatter
	Note string
}

// ParseMarkdown reads a report written as YAML frontmatter plus a markdown note.
func ParseMarkdown(r io.Reader) (Draft, error) {
	meta, body, err := markdown.Parse[Frontmatter](r)
	if err != nil {
		return Draft{}, err
	}
	return Draft{Frontmatter: meta, Note: body}, nil
}

const templateHint = "Write the report note below. Add photo paths under photos:, relative to this directory."

// Template renders an editable report file with the given defaults.
func Template(fm Frontmatter) ([]byte, error) {
	return markdown.MarshalWithHint(fm, templateHint, "")
}

// Input resolves the draft into a submittable report. Relative photo paths
// are taken relative to baseDir.
func (d Draft) Input(baseDir string) (Input, error) {
	in := Input{
		ProjectID:  d.Project,
		ActivityID: d.Activity,
		Note:       strings.TrimSpace(d.Note),
		Status:     model.ActivityStatus(d.Status),
		Progress:   d.Progress,
	}
	if d.Date != "" {
		t, err := time.Parse(dateLayout, d.Date)
		if err != nil {
			return Input{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", d.Date)
		}
		in.Date = &t
	}
	for _, p := range d.Photos {
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return Input{}, fmt.Errorf("reading photo: %w", err)
		}
		in.Photos = append(in.Photos, data)
	}
	return in, nil
}
