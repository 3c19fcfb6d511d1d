package pages

import (
	"tbreport/browser"
	"tbreport/config"
	"tbreport/selector"
)

// Form dropdowns and inputs, by their label.
const (
	FieldAgeGroup     = "Age group"
	FieldGender       = "Gender"
	FieldIdentity     = "I identify myself as..."
	FieldLocation     = "Location"
	FieldLocationType = "Location type"
	FieldStudiesLevel = "Studies level"
	FieldTypeOfUser   = "TypeOfUser"
	FieldPhone        = "Phone"
)

// Report panel filters, by their placeholder.
const (
	FilterTypeOfUser    = "Type of User"
	FilterKeyPopulation = "Key population"
	FilterAge           = "Age"
)

// Buttons, links and inputs that are clicked or filled rather than selected.
const (
	LoginLink       = "login link"
	LoginEmail      = "login email"
	LoginPassword   = "login password"
	LoginSubmit     = "login submit"
	UserMenu        = "user menu"
	LanguageMenu    = "language menu"
	BarriersMenu    = "barriers menu"
	AnonymousReport = "anonymous reporting"
	AddButton       = "add button"
	RightsButton    = "rights button"
	DetailsField    = "details field"
	SaveButton      = "save button"
	ReportMenu      = "report panel menu"
	DemographicMenu = "demographic menu"
	FromDate        = "from date"
	BarrierPrefix   = "barrier: "
)

// Page-level markers that flows wait on.
var (
	loginModal    = browser.ByCSS("#modalLRForm")
	submenuPanel  = browser.ByCSS(".collapsible-body")
	saveIndicator = browser.ByCSS(".button-indicator")
	reportToolbar = browser.ByCSS(".dx-toolbar-before")
	loadPanel     = browser.ByCSS(".dx-loadpanel-wrapper")
	reportGrid    = browser.ByCSS(`[role="grid"]`)
)

func formDropdown(label string) selector.FieldDescriptor {
	return selector.Field(label,
		browser.ByLabel(label, "dx-dropdowneditor-button"),
		browser.ByLabel(label, "dx-dropdowneditor-input-wrapper"),
		browser.ByRole("combobox", label),
	)
}

func reportDropdown(placeholder string) selector.FieldDescriptor {
	return selector.Field(placeholder,
		browser.ByRole("combobox", placeholder),
		browser.ByAttribute("data-dx_placeholder", placeholder),
		browser.Locator{
			Strategy:  browser.Container,
			Scope:     "dx-toolbar-before",
			Target:    "dx-selectbox",
			Attribute: "data-dx_placeholder",
			Value:     placeholder,
		},
	)
}

// BarrierField is the descriptor of one TB barrier combobox.
func BarrierField(name string) selector.FieldDescriptor {
	return selector.Field(BarrierPrefix+name,
		browser.ByRole("combobox", name),
		browser.Locator{Strategy: browser.Attribute, Tag: "input", Attribute: "aria-label", Value: name},
	).WithSpecial(selector.SpecialScroll)
}

func languageOption(code string) selector.FieldDescriptor {
	return selector.Field("language "+code,
		browser.ByText("#navbarDropdown_clang + .dropdown-menu a", code),
		browser.ByXPath("//a[normalize-space()="+browser.XPathLiteral(code)+"]"),
	)
}

// DefaultFields returns the built-in descriptors for every field the flows touch.
func DefaultFields(cfg *config.Config) []selector.FieldDescriptor {
	ui := cfg.UI
	fields := []selector.FieldDescriptor{
		selector.Field(LoginLink,
			browser.ByXPath("//a[@class='btn btn-elegant btn-rounded my-3 waves-effect waves-light']"),
			browser.ByCSS("a.btn-elegant.btn-rounded"),
		),
		selector.Field(LoginEmail, browser.ByXPath("//input[@id='UserName']")),
		selector.Field(LoginPassword, browser.ByXPath("(//input[@id='Password'])[1]")),
		selector.Field(LoginSubmit,
			browser.ByXPath("//div[@id='panel7']//button[contains(@class, 'btn-light-green')]"),
			browser.ByCSS("#panel7 button.btn-light-green"),
		),
		selector.Field(UserMenu, browser.ByCSS("#navbarDropdown_cUser")),
		selector.Field(LanguageMenu, browser.ByCSS("#navbarDropdown_clang")),
		selector.Field(BarriersMenu, browser.ByText("a.collapsible-header", ui.BarriersMenu)),
		selector.Field(AnonymousReport, browser.ByText("a.waves-effect", ui.AnonymousReporting)),
		selector.Field(AddButton,
			browser.ByText(".dx-button-content .dx-button-text", ui.AddButton),
			browser.ByRole("button", ui.AddButton),
		),
		selector.Field(RightsButton,
			browser.ByText("span.dx-button-text", ui.RightsButton),
			browser.ByRole("button", ui.RightsButton),
		),
		formDropdown(FieldAgeGroup),
		formDropdown(FieldGender),
		formDropdown(FieldIdentity),
		formDropdown(FieldLocation),
		formDropdown(FieldLocationType),
		formDropdown(FieldStudiesLevel),
		selector.Field(FieldTypeOfUser,
			browser.ByRole("combobox", FieldTypeOfUser),
			browser.ByLabel(FieldTypeOfUser, "dx-dropdowneditor-button"),
		).WithSpecial(selector.SpecialPartialLabel),
		selector.Field(FieldPhone, browser.ByRole("textbox", FieldPhone)),
		selector.Field(DetailsField, browser.ByRole("textbox", ui.DetailsField)),
		selector.Field(SaveButton, browser.ByRole("button", ui.SaveButton)),
		selector.Field(ReportMenu, browser.ByText("a.collapsible-header", ui.ReportPanel)),
		selector.Field(DemographicMenu, browser.ByText("a.waves-effect", ui.Demographic)),
		reportDropdown(FilterTypeOfUser),
		reportDropdown(FilterKeyPopulation),
		reportDropdown(FilterAge),
		selector.Field(FromDate,
			browser.ByXPath(`//div[contains(concat(' ', normalize-space(@class), ' '), ' dx-datebox ')][.//div[@data-dx_placeholder='From']]//input[@role='combobox']`),
		),
	}
	for _, code := range config.SupportedLanguages {
		fields = append(fields, languageOption(code))
	}
	for _, b := range cfg.Vocabulary.Barriers {
		fields = append(fields, BarrierField(b.Name))
	}
	return fields
}

// Fields indexes the built-in descriptors and applies the configured overrides.
func Fields(cfg *config.Config) (*selector.Registry, error) {
	reg, err := selector.NewRegistry(DefaultFields(cfg)...)
	if err != nil {
		return nil, err
	}
	for _, f := range cfg.Fields {
		if err := reg.Put(f); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
