// Package docs renders and parses the markdown documents gouge generates,
// optionally wrapped in blog post front matter.
package docs

import (
	"bytes"
	"errors"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v2"
)

// Post is a markdown document with blog post front matter.
type Post struct {
	Layout     string    `yaml:"layout" toml:"layout"`
	Title      string    `yaml:"title" toml:"title"`
	Date       time.Time `yaml:"date" toml:"date"`
	Categories []string  `yaml:"categories" toml:"categories"`
	Body       string    `yaml:"-" toml:"-"`
}

// Marshal renders the post with YAML front matter.
func (p *Post) Marshal() ([]byte, error) {
	fm, err := yaml.Marshal(p)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n\n")
	buf.WriteString(p.Body)
	return buf.Bytes(), nil
}

// ParsePost decodes a document wrapped in front matter, YAML between "---"
// markers or TOML between "+++" markers.
func ParsePost(content []byte) (*Post, error) {
	str := string(content)
	if strings.HasPrefix(str, "---") {
		parts := strings.SplitN(str, "---", 3)
		if len(parts) == 3 {
			p := new(Post)
			if err := yaml.Unmarshal([]byte(parts[1]), p); err != nil {
				return nil, err
			}
			p.Body = strings.TrimSpace(parts[2])
			return p, nil
		}
	}
	if strings.HasPrefix(str, "+++") {
		parts := strings.SplitN(str, "+++", 3)
		if len(parts) == 3 {
			p := new(Post)
			if err := toml.Unmarshal([]byte(parts[1]), p); err != nil {
				return nil, err
			}
			p.Body = strings.TrimSpace(parts[2])
			return p, nil
		}
	}
	return nil, errors.New("no front matter found")
}
