package notify

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

const (
	baseLocale = "en"

	keyTitle  = "title"
	keyToday  = "today"
	keyPaused = "paused"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// messageDef is either a plain string or a one/other plural pair.
type messageDef struct {
	Text  string
	One   string `yaml:"one"`
	Other string `yaml:"other"`
}

func (m *messageDef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		m.Text = node.Value
		return nil
	}
	type plain messageDef
	return node.Decode((*plain)(m))
}

type localeFile struct {
	Locale   string                `yaml:"locale"`
	Messages map[string]messageDef `yaml:"messages"`
}

// loadCatalog builds the message catalog from locale files in fsys and
// returns it together with the supported tags, base locale first.
func loadCatalog(fsys fs.FS) (*catalog.Builder, []language.Tag, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, nil, fmt.Errorf("glob locale files: %w", err)
	}
	sort.Strings(paths)

	b := catalog.NewBuilder(catalog.Fallback(language.English))
	var tags []language.Tag
	hasBase := false
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", p, err)
		}
		var lf localeFile
		if err := yaml.Unmarshal(data, &lf); err != nil {
			return nil, nil, fmt.Errorf("parse %s: %w", p, err)
		}
		name := strings.TrimSuffix(path.Base(p), ".yaml")
		if lf.Locale != name {
			return nil, nil, fmt.Errorf("%s: locale %q must match file name", p, lf.Locale)
		}
		tag, err := language.Parse(lf.Locale)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", p, err)
		}
		for key, def := range lf.Messages {
			if err := setMessage(b, tag, key, def); err != nil {
				return nil, nil, fmt.Errorf("%s: %s: %w", p, key, err)
			}
		}
		if lf.Locale == baseLocale {
			hasBase = true
			tags = append([]language.Tag{tag}, tags...)
		} else {
			tags = append(tags, tag)
		}
	}
	if !hasBase {
		return nil, nil, fmt.Errorf("base locale %s is not defined", baseLocale)
	}
	return b, tags, nil
}

func setMessage(b *catalog.Builder, tag language.Tag, key string, def messageDef) error {
	if def.Text != "" {
		return b.SetString(tag, key, def.Text)
	}
	if def.Other == "" {
		return fmt.Errorf("message needs text or an other form")
	}
	one := def.One
	if one == "" {
		one = def.Other
	}
	return b.Set(tag, key, plural.Selectf(1, "%d",
		plural.One, one,
		plural.Other, def.Other,
	))
}
