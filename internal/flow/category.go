package flow

import "github.com/dhvanip/nagarseva/internal/templates"

// Category is a complaint category with its localized labels.
type Category struct {
	ID     string
	Labels map[string]string // lang code -> label
}

// categories maps the numeric menu codes citizens type to categories.
var categories = map[string]Category{
	"1": {ID: "garbage", Labels: map[string]string{
		templates.LangGujarati: "કચરો/કચરાપેટી",
		templates.LangHindi:    "कचरा/कचरापेटी",
		templates.LangEnglish:  "Garbage/Waste",
	}},
	"2": {ID: "drainage", Labels: map[string]string{
		templates.LangGujarati: "ગટર/નાળું",
		templates.LangHindi:    "गटर/नाली",
		templates.LangEnglish:  "Drainage/Sewage",
	}},
	"3": {ID: "water_leak", Labels: map[string]string{
		templates.LangGujarati: "પાણીનું લીકેજ",
		templates.LangHindi:    "पानी का रिसाव",
		templates.LangEnglish:  "Water Leakage",
	}},
	"4": {ID: "infrastructure", Labels: map[string]string{
		templates.LangGujarati: "માર્ગ/માળખું",
		templates.LangHindi:    "सड़क/ढांचा",
		templates.LangEnglish:  "Road/Infrastructure",
	}},
	"5": {ID: "other", Labels: map[string]string{
		templates.LangGujarati: "અન્ય",
		templates.LangHindi:    "अन्य",
		templates.LangEnglish:  "Other",
	}},
}

// CategoryByCode looks up a category by the menu code the citizen typed.
func CategoryByCode(code string) (Category, bool) {
	c, ok := categories[code]
	return c, ok
}

// Label returns the category label in the given language, falling back to
// the default language.
func (c Category) Label(lang string) string {
	if label, ok := c.Labels[lang]; ok {
		return label
	}
	return c.Labels[templates.DefaultLang]
}
