package browser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidLocator is returned by Compile for incomplete or unsafe locators.
var ErrInvalidLocator = errors.New("invalid locator")

// Strategy selects how a Locator finds elements.
type Strategy string

const (
	// CSS uses Selector verbatim.
	CSS Strategy = "css"
	// XPath uses Selector verbatim.
	XPath Strategy = "xpath"
	// Role finds elements by ARIA role and accessible name.
	Role Strategy = "role"
	// Attribute finds elements whose Attribute equals Value.
	Attribute Strategy = "attribute"
	// Label finds the first Target-classed div following a form label with text Label.
	Label Strategy = "label"
	// Container finds a Target-classed div (inside a Scope-classed div) that holds
	// an element whose Attribute equals Value.
	Container Strategy = "container"
	// Text finds Selector matches whose text contains Text.
	Text Strategy = "text"
)

// DefaultLabelClass is the DevExtreme form label class.
const DefaultLabelClass = "dx-field-item-label-text"

// Locator is one typed way of finding an element. Free text (labels, names,
// attribute values) is only ever placed into queries through the escaping
// builders in this file.
type Locator struct {
	Strategy   Strategy `yaml:"strategy" json:"strategy"`
	Selector   string   `yaml:"selector,omitempty" json:"selector,omitempty"`
	Role       string   `yaml:"role,omitempty" json:"role,omitempty"`
	Name       string   `yaml:"name,omitempty" json:"name,omitempty"`
	Tag        string   `yaml:"tag,omitempty" json:"tag,omitempty"`
	Attribute  string   `yaml:"attribute,omitempty" json:"attribute,omitempty"`
	Value      string   `yaml:"value,omitempty" json:"value,omitempty"`
	Label      string   `yaml:"label,omitempty" json:"label,omitempty"`
	LabelClass string   `yaml:"label_class,omitempty" json:"label_class,omitempty"`
	Target     string   `yaml:"target,omitempty" json:"target,omitempty"`
	Scope      string   `yaml:"scope,omitempty" json:"scope,omitempty"`
	Text       string   `yaml:"text,omitempty" json:"text,omitempty"`
	Partial    bool     `yaml:"partial,omitempty" json:"partial,omitempty"`
}

// ByCSS is a CSS locator.
func ByCSS(sel string) Locator { return Locator{Strategy: CSS, Selector: sel} }

// ByXPath is an XPath locator.
func ByXPath(expr string) Locator { return Locator{Strategy: XPath, Selector: expr} }

// ByRole matches role and exact accessible name.
func ByRole(role, name string) Locator { return Locator{Strategy: Role, Role: role, Name: name} }

// ByAttribute matches [attr="value"].
func ByAttribute(attr, value string) Locator {
	return Locator{Strategy: Attribute, Attribute: attr, Value: value}
}

// ByLabel matches the first div with class target after the form label.
func ByLabel(label, target string) Locator {
	return Locator{Strategy: Label, Label: label, Target: target}
}

// ByText matches sel elements containing text.
func ByText(sel, text string) Locator { return Locator{Strategy: Text, Selector: sel, Text: text} }

// QueryKind is the driver-level query language.
type QueryKind int

const (
	QueryCSS QueryKind = iota
	QueryXPath
	QueryRole
)

// Query is what drivers execute.
type Query struct {
	Kind    QueryKind
	Expr    string
	Role    string
	Name    string
	Exact   bool
	HasText string
}

func (q Query) String() string {
	switch q.Kind {
	case QueryXPath:
		return "xpath=" + q.Expr
	case QueryRole:
		if q.Name == "" {
			return "role=" + q.Role
		}
		return fmt.Sprintf("role=%s[name=%s]", q.Role, cssString(q.Name))
	default:
		if q.HasText != "" {
			return fmt.Sprintf("css=%s >> has-text=%s", q.Expr, cssString(q.HasText))
		}
		return "css=" + q.Expr
	}
}

func (l Locator) String() string {
	q, err := l.Compile()
	if err != nil {
		return fmt.Sprintf("%s(invalid)", l.Strategy)
	}
	return q.String()
}

var (
	identRe = regexp.MustCompile(`^-?[A-Za-z_][A-Za-z0-9_-]*$`)
	attrRe  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.:-]*$`)
)

// Compile validates the locator and builds its driver query.
func (l Locator) Compile() (Query, error) {
	invalid := func(format string, args ...any) (Query, error) {
		return Query{}, fmt.Errorf("%w: %s: %s", ErrInvalidLocator, l.Strategy, fmt.Sprintf(format, args...))
	}
	if l.Tag != "" && !identRe.MatchString(l.Tag) {
		return invalid("bad tag %q", l.Tag)
	}

	switch l.Strategy {
	case CSS:
		if strings.TrimSpace(l.Selector) == "" {
			return invalid("empty selector")
		}
		return Query{Kind: QueryCSS, Expr: l.Selector}, nil

	case XPath:
		if strings.TrimSpace(l.Selector) == "" {
			return invalid("empty selector")
		}
		return Query{Kind: QueryXPath, Expr: l.Selector}, nil

	case Role:
		if !identRe.MatchString(l.Role) {
			return invalid("bad role %q", l.Role)
		}
		return Query{Kind: QueryRole, Role: l.Role, Name: l.Name, Exact: !l.Partial}, nil

	case Attribute:
		if !attrRe.MatchString(l.Attribute) {
			return invalid("bad attribute %q", l.Attribute)
		}
		if l.Value == "" {
			return invalid("empty value")
		}
		op := "="
		if l.Partial {
			op = "*="
		}
		return Query{Kind: QueryCSS, Expr: fmt.Sprintf("%s[%s%s%s]", l.Tag, l.Attribute, op, cssString(l.Value))}, nil

	case Label:
		labelClass := l.LabelClass
		if labelClass == "" {
			labelClass = DefaultLabelClass
		}
		if !identRe.MatchString(labelClass) || !identRe.MatchString(l.Target) {
			return invalid("bad class %q / %q", labelClass, l.Target)
		}
		if strings.TrimSpace(l.Label) == "" {
			return invalid("empty label")
		}
		tag := l.Tag
		if tag == "" {
			tag = "span"
		}
		text := fmt.Sprintf("normalize-space()=%s", XPathLiteral(strings.TrimSpace(l.Label)))
		if l.Partial {
			text = fmt.Sprintf("contains(normalize-space(), %s)", XPathLiteral(strings.TrimSpace(l.Label)))
		}
		expr := fmt.Sprintf("//%s[%s][%s]/following::div[%s][1]", tag, hasClass(labelClass), text, hasClass(l.Target))
		return Query{Kind: QueryXPath, Expr: expr}, nil

	case Container:
		if !identRe.MatchString(l.Target) {
			return invalid("bad container class %q", l.Target)
		}
		if l.Scope != "" && !identRe.MatchString(l.Scope) {
			return invalid("bad scope class %q", l.Scope)
		}
		if !attrRe.MatchString(l.Attribute) || l.Value == "" {
			return invalid("attribute and value required")
		}
		expr := fmt.Sprintf("//div[%s][.//*[@%s=%s]]", hasClass(l.Target), l.Attribute, XPathLiteral(l.Value))
		if l.Scope != "" {
			expr = fmt.Sprintf("//div[%s]%s", hasClass(l.Scope), expr)
		}
		return Query{Kind: QueryXPath, Expr: expr}, nil

	case Text:
		if strings.TrimSpace(l.Selector) == "" || l.Text == "" {
			return invalid("selector and text required")
		}
		return Query{Kind: QueryCSS, Expr: l.Selector, HasText: l.Text}, nil
	}
	return invalid("unknown strategy")
}

// Validate reports whether the locator compiles.
func (l Locator) Validate() error {
	_, err := l.Compile()
	return err
}

func hasClass(class string) string {
	return fmt.Sprintf("contains(concat(' ', normalize-space(@class), ' '), ' %s ')", class)
}

// XPathLiteral quotes s as an XPath 1.0 string literal.
func XPathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// cssString quotes s as a CSS string.
func cssString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\a `)
		case '\r':
			b.WriteString(`\d `)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
