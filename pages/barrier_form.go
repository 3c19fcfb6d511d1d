package pages

import (
	"context"
	"errors"
	"fmt"

	"tbreport/config"
	"tbreport/logger"
	"tbreport/poll"
	"tbreport/selector"
)

// Profile holds what the demographic part of the form was filled with.
type Profile struct {
	AgeGroup     string `json:"age_group"`
	Gender       string `json:"gender"`
	Identity     string `json:"identity"`
	Location     string `json:"location"`
	LocationType string `json:"location_type"`
	StudiesLevel string `json:"studies_level"`
	TypeOfUser   string `json:"type_of_user"`
	Phone        string `json:"phone"`
}

// BarrierForm drives the anonymous barrier report form.
type BarrierForm struct {
	Env
}

// NewBarrierForm returns the barrier form page.
func NewBarrierForm(env Env) *BarrierForm { return &BarrierForm{Env: env} }

// OpenAnonymousReporting follows the barriers menu to the anonymous report list.
func (p *BarrierForm) OpenAnonymousReporting(ctx context.Context) error {
	if err := p.click(ctx, BarriersMenu); err != nil {
		return fmt.Errorf("barriers menu: %w", err)
	}
	if err := p.waitVisible(ctx, submenuPanel, p.Config.Timeouts.Short); err != nil {
		return fmt.Errorf("barriers submenu: %w", err)
	}
	if err := p.click(ctx, AnonymousReport); err != nil {
		return fmt.Errorf("anonymous reporting: %w", err)
	}
	return nil
}

// StartReport clicks Add and picks the rights category.
func (p *BarrierForm) StartReport(ctx context.Context) error {
	if err := p.click(ctx, AddButton); err != nil {
		return fmt.Errorf("add report: %w", err)
	}
	if err := p.click(ctx, RightsButton); err != nil {
		return fmt.Errorf("rights category: %w", err)
	}
	return nil
}

// Select picks a random value of options in the named dropdown.
func (p *BarrierForm) Select(ctx context.Context, field string, options []string) (selector.SelectionOutcome, error) {
	return p.choose(ctx, field, options)
}

// FillProfile fills every demographic dropdown and the phone number. onSelect, if
// set, sees each committed selection as it happens.
func (p *BarrierForm) FillProfile(ctx context.Context, onSelect func(selector.SelectionOutcome)) (Profile, error) {
	v := p.Config.Vocabulary
	var prof Profile
	steps := []struct {
		field   string
		options []string
		dst     *string
	}{
		{FieldAgeGroup, v.AgeGroups, &prof.AgeGroup},
		{FieldGender, v.Genders, &prof.Gender},
		{FieldIdentity, v.Identities, &prof.Identity},
		{FieldLocation, v.Locations, &prof.Location},
		{FieldLocationType, v.LocationTypes, &prof.LocationType},
		{FieldStudiesLevel, v.StudiesLevels, &prof.StudiesLevel},
		{FieldTypeOfUser, v.UserTypes, &prof.TypeOfUser},
	}
	for _, s := range steps {
		out, err := p.choose(ctx, s.field, s.options)
		if err != nil {
			return prof, err
		}
		*s.dst = out.Requested
		if onSelect != nil {
			onSelect(out)
		}
	}

	phone, err := p.InputPhone(ctx)
	if err != nil {
		return prof, err
	}
	prof.Phone = phone
	return prof, nil
}

// InputPhone types a random eight digit number starting with 7 into the phone box.
func (p *BarrierForm) InputPhone(ctx context.Context) (string, error) {
	phone, err := p.Rand.Phone(8, "7")
	if err != nil {
		return "", err
	}
	el, err := p.resolve(ctx, FieldPhone)
	if err != nil {
		return "", err
	}
	if err := el.Click(ctx); err != nil {
		return "", fmt.Errorf("focus phone: %w", err)
	}
	if err := el.Fill(ctx, ""); err != nil {
		return "", fmt.Errorf("clear phone: %w", err)
	}
	if err := el.Type(ctx, phone, p.Config.Browser.TypeDelay); err != nil {
		return "", fmt.Errorf("type phone: %w", err)
	}
	p.Log.Info("phone entered", logger.String("phone", phone))
	return phone, nil
}

// SelectBarrier opens one TB barrier combobox and picks a random sub-option.
func (p *BarrierForm) SelectBarrier(ctx context.Context, b config.Barrier) (selector.SelectionOutcome, error) {
	return p.choose(ctx, BarrierPrefix+b.Name, b.Options)
}

// FillDetails writes five to ten filler words into the free-text details box.
func (p *BarrierForm) FillDetails(ctx context.Context) (string, error) {
	n, err := p.Rand.Int(5, 10)
	if err != nil {
		return "", err
	}
	text := p.Rand.Text(n)

	el, err := p.resolve(ctx, DetailsField)
	if err != nil {
		return "", err
	}
	_ = el.ScrollIntoView(ctx)
	if err := el.Fill(ctx, text); err != nil {
		return "", fmt.Errorf("fill details: %w", err)
	}
	return text, nil
}

// Save clicks Save and waits out the save indicator. The indicator is optional:
// a save that finishes before it renders is not an error.
func (p *BarrierForm) Save(ctx context.Context) error {
	if err := p.click(ctx, SaveButton); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	t := p.Config.Timeouts
	if err := p.waitVisible(ctx, saveIndicator, t.Short); err != nil {
		if errors.Is(err, poll.ErrStabilityTimeout) && ctx.Err() == nil {
			p.Log.Debug("save indicator not shown")
			return nil
		}
		return err
	}
	if err := p.waitHidden(ctx, saveIndicator, t.Navigation); err != nil {
		return fmt.Errorf("save did not finish: %w", err)
	}
	p.Log.Info("report saved")
	return nil
}

// SubmitBarriers selects every configured barrier, fills the details and saves.
func (p *BarrierForm) SubmitBarriers(ctx context.Context, onSelect func(selector.SelectionOutcome)) ([]selector.SelectionOutcome, error) {
	var outs []selector.SelectionOutcome
	for _, b := range p.Config.Vocabulary.Barriers {
		out, err := p.SelectBarrier(ctx, b)
		if err != nil {
			return outs, err
		}
		outs = append(outs, out)
		if onSelect != nil {
			onSelect(out)
		}
	}
	if _, err := p.FillDetails(ctx); err != nil {
		return outs, err
	}
	return outs, p.Save(ctx)
}
