package notify

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"git.home.luguber.info/inful/stepd/internal/steps"
)

// Notification is what a sink shows for one snapshot.
type Notification struct {
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Ongoing  bool           `json:"ongoing"`
	Snapshot steps.Snapshot `json:"snapshot"`
}

// Renderer turns snapshots into localized notifications.
type Renderer struct {
	tag     language.Tag
	printer *message.Printer
}

var (
	defaultCatalog *catalog.Builder
	supported      []language.Tag
	matcher        language.Matcher
)

func init() {
	var err error
	defaultCatalog, supported, err = loadCatalog(localeFS)
	if err != nil {
		panic("notify: embedded locales: " + err.Error())
	}
	matcher = language.NewMatcher(supported)
}

// Languages lists the supported languages, English first.
func Languages() []string {
	out := make([]string, len(supported))
	for i, t := range supported {
		out[i] = t.String()
	}
	return out
}

// NewRenderer returns a renderer for lang, an IETF tag such as "de" or
// "de-AT". Unknown or empty tags fall back to English.
func NewRenderer(lang string) *Renderer {
	tag := language.English
	if lang != "" {
		if parsed, err := language.Parse(lang); err == nil {
			_, idx, conf := matcher.Match(parsed)
			if conf != language.No {
				tag = supported[idx]
			}
		}
	}
	return &Renderer{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(defaultCatalog)),
	}
}

// Language returns the matched language tag.
func (r *Renderer) Language() string { return r.tag.String() }

// Render builds the notification for snap. The notification is ongoing
// while counting.
func (r *Renderer) Render(snap steps.Snapshot) Notification {
	key := keyToday
	if !snap.Listening {
		key = keyPaused
	}
	return Notification{
		Title:    r.printer.Sprintf(keyTitle),
		Text:     r.printer.Sprintf(key, int(snap.DailySteps)),
		Ongoing:  snap.Listening,
		Snapshot: snap,
	}
}
