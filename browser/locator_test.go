package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name string
		loc  Locator
		want Query
	}{
		{
			name: "css",
			loc:  ByCSS(".dx-toolbar-before"),
			want: Query{Kind: QueryCSS, Expr: ".dx-toolbar-before"},
		},
		{
			name: "role exact",
			loc:  ByRole("combobox", "Type of User"),
			want: Query{Kind: QueryRole, Role: "combobox", Name: "Type of User", Exact: true},
		},
		{
			name: "attribute escapes quotes",
			loc:  ByAttribute("data-dx_placeholder", `Say "hi"`),
			want: Query{Kind: QueryCSS, Expr: `[data-dx_placeholder="Say \"hi\""]`},
		},
		{
			name: "attribute partial with tag",
			loc:  Locator{Strategy: Attribute, Tag: "input", Attribute: "aria-label", Value: "Phone", Partial: true},
			want: Query{Kind: QueryCSS, Expr: `input[aria-label*="Phone"]`},
		},
		{
			name: "label",
			loc:  ByLabel("Gender", "dx-dropdowneditor-button"),
			want: Query{Kind: QueryXPath, Expr: "//span[contains(concat(' ', normalize-space(@class), ' '), ' dx-field-item-label-text ')]" +
				"[normalize-space()='Gender']" +
				"/following::div[contains(concat(' ', normalize-space(@class), ' '), ' dx-dropdowneditor-button ')][1]"},
		},
		{
			name: "text",
			loc:  ByText(".dx-item-content", "Male"),
			want: Query{Kind: QueryCSS, Expr: ".dx-item-content", HasText: "Male"},
		},
		{
			name: "container in scope",
			loc:  Locator{Strategy: Container, Scope: "dx-toolbar-before", Target: "dx-selectbox", Attribute: "data-dx_placeholder", Value: "Age"},
			want: Query{Kind: QueryXPath, Expr: "//div[contains(concat(' ', normalize-space(@class), ' '), ' dx-toolbar-before ')]" +
				"//div[contains(concat(' ', normalize-space(@class), ' '), ' dx-selectbox ')][.//*[@data-dx_placeholder='Age']]"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.loc.Compile()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompilePartialLabel(t *testing.T) {
	q, err := Locator{Strategy: Label, Label: "TypeOfUser", Target: "dx-dropdowneditor-button", Partial: true}.Compile()
	require.NoError(t, err)
	assert.Contains(t, q.Expr, "contains(normalize-space(), 'TypeOfUser')")
}

func TestCompileRejects(t *testing.T) {
	bad := []Locator{
		{},
		{Strategy: "shadow"},
		ByCSS("  "),
		ByXPath(""),
		ByRole("combo box", "Age"),
		ByAttribute(`x"]`, "v"),
		ByAttribute("data-x", ""),
		ByLabel("", "dx-dropdowneditor-button"),
		ByLabel("Gender", "a b"),
		{Strategy: Container, Target: "dx-selectbox", Attribute: "data-x"},
		ByText(".x", ""),
		{Strategy: CSS, Selector: "div", Tag: "<script>"},
	}
	for _, l := range bad {
		assert.ErrorIs(t, l.Validate(), ErrInvalidLocator, "%+v", l)
	}
}

func TestXPathLiteral(t *testing.T) {
	assert.Equal(t, "'Age'", XPathLiteral("Age"))
	assert.Equal(t, `"I'm"`, XPathLiteral("I'm"))
	assert.Equal(t, `concat('a"b', "'", 'c')`, XPathLiteral(`a"b'c`))
	assert.Equal(t, `concat("'", '"')`, XPathLiteral(`'"`))
}

func TestLocatorString(t *testing.T) {
	assert.Equal(t, `role=combobox[name="Age"]`, ByRole("combobox", "Age").String())
	assert.Equal(t, "css=#panel7", ByCSS("#panel7").String())
	assert.Equal(t, "(invalid)", Locator{}.String())
}

func TestBox(t *testing.T) {
	x, y := Box{X: 10, Y: 20, Width: 100, Height: 40}.Center()
	assert.Equal(t, 60.0, x)
	assert.Equal(t, 40.0, y)
	assert.True(t, Box{Width: 0, Height: 10}.Empty())
}
