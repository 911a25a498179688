package notify

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/goliatone/go-casework"
)

var (
	tagEnglish = language.BritishEnglish
	tagWelsh   = language.MustParse("cy")
)

const (
	labelHusband        = "partner.husband"
	labelWife           = "partner.wife"
	labelSpouse         = "partner.spouse"
	labelCivilPartner   = "partner.civil_partner"
	labelDivorceApp     = "application.divorce"
	labelDissolutionApp = "application.dissolution"
	labelYes            = "bool.yes"
	labelNo             = "bool.no"
	monthKeyPrefix      = "month."
)

var englishLabels = map[string]string{
	labelHusband:        "husband",
	labelWife:           "wife",
	labelSpouse:         "spouse",
	labelCivilPartner:   "civil partner",
	labelDivorceApp:     "divorce application",
	labelDissolutionApp: "application to end your civil partnership",
	labelYes:            "yes",
	labelNo:             "no",
}

var welshLabels = map[string]string{
	labelHusband:        "gŵr",
	labelWife:           "gwraig",
	labelSpouse:         "priod",
	labelCivilPartner:   "partner sifil",
	labelDivorceApp:     "cais am ysgariad",
	labelDissolutionApp: "cais i ddod â'ch partneriaeth sifil i ben",
	labelYes:            "yes",
	labelNo:             "no",
}

var welshMonths = [12]string{
	"Ionawr", "Chwefror", "Mawrth", "Ebrill", "Mai", "Mehefin",
	"Gorffennaf", "Awst", "Medi", "Hydref", "Tachwedd", "Rhagfyr",
}

// Labels renders language dependent words and dates.
type Labels struct {
	english *message.Printer
	welsh   *message.Printer
}

// NewLabels builds the English and Welsh catalogue.
func NewLabels() (*Labels, error) {
	b := catalog.NewBuilder(catalog.Fallback(tagEnglish))
	for key, msg := range englishLabels {
		if err := b.SetString(tagEnglish, key, msg); err != nil {
			return nil, fmt.Errorf("label %s: %w", key, err)
		}
	}
	for key, msg := range welshLabels {
		if err := b.SetString(tagWelsh, key, msg); err != nil {
			return nil, fmt.Errorf("label %s: %w", key, err)
		}
	}
	for i, name := range welshMonths {
		month := time.Month(i + 1)
		key := monthKey(month)
		if err := b.SetString(tagEnglish, key, month.String()); err != nil {
			return nil, fmt.Errorf("label %s: %w", key, err)
		}
		if err := b.SetString(tagWelsh, key, name); err != nil {
			return nil, fmt.Errorf("label %s: %w", key, err)
		}
	}
	return &Labels{
		english: message.NewPrinter(tagEnglish, message.Catalog(b)),
		welsh:   message.NewPrinter(tagWelsh, message.Catalog(b)),
	}, nil
}

func monthKey(m time.Month) string {
	return fmt.Sprintf("%s%02d", monthKeyPrefix, int(m))
}

func (l *Labels) printer(lang casework.Language) *message.Printer {
	if lang == casework.Welsh {
		return l.welsh
	}
	return l.english
}

// Text returns the label for key in lang.
func (l *Labels) Text(lang casework.Language, key string) string {
	return l.printer(lang).Sprintf(key)
}

// Date formats t as "2 January 2026" or "2 Ionawr 2026". t should already be in
// the jurisdiction time zone.
func (l *Labels) Date(lang casework.Language, t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d %s %d", t.Day(), l.Text(lang, monthKey(t.Month())), t.Year())
}

// Partner names the other party from the recipient's point of view.
func (l *Labels) Partner(lang casework.Language, data casework.CaseData, partner casework.Applicant) string {
	if !data.IsDivorce() {
		return l.Text(lang, labelCivilPartner)
	}
	switch partner.Gender {
	case casework.Male:
		return l.Text(lang, labelHusband)
	case casework.Female:
		return l.Text(lang, labelWife)
	default:
		return l.Text(lang, labelSpouse)
	}
}

// Application names the kind of application.
func (l *Labels) Application(lang casework.Language, data casework.CaseData) string {
	if data.IsDivorce() {
		return l.Text(lang, labelDivorceApp)
	}
	return l.Text(lang, labelDissolutionApp)
}

// YesNo renders a template conditional flag.
func (l *Labels) YesNo(v bool) string {
	if v {
		return l.Text(casework.English, labelYes)
	}
	return l.Text(casework.English, labelNo)
}
