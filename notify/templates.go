package notify

import (
	"strings"

	"github.com/goliatone/go-casework"
)

// Templates resolves template keys to provider template ids.
type Templates struct {
	overrides map[string]string
}

// NewTemplates returns a resolver; keys without an override resolve to themselves.
func NewTemplates(overrides map[string]string) Templates {
	out := make(map[string]string, len(overrides))
	for k, v := range overrides {
		if v = strings.TrimSpace(v); v != "" {
			out[strings.TrimSpace(k)] = v
		}
	}
	return Templates{overrides: out}
}

// Resolve maps key to a template id.
func (t Templates) Resolve(key string) string {
	if id, ok := t.overrides[key]; ok {
		return id
	}
	return key
}

// TemplateKey builds the canonical key, for example
// "conditional-order-submitted.citizen.partner_pending.email.cy".
func TemplateKey(trigger Trigger, audience Audience, flavour Flavour, channel Channel, lang casework.Language) string {
	return strings.Join([]string{
		string(trigger),
		string(audience),
		string(flavour),
		string(channel),
		languageCode(lang),
	}, ".")
}

func languageCode(lang casework.Language) string {
	if lang == casework.Welsh {
		return "cy"
	}
	return "en"
}
