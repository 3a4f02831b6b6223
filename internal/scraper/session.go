package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrAuthentication means the portal rejected the login; the run
	// aborts and is safe to retry on the next invocation.
	ErrAuthentication = errors.New("portal login rejected")

	// ErrRemoteTimeout means a portal control never became actionable
	// within the step timeout.
	ErrRemoteTimeout = errors.New("portal control timed out")
)

// Portal form selectors. The portal renders the same form for both
// meters; only the meter selector changes context.
const (
	selUsername    = `input#username`
	selPassword    = `input#password`
	selLoginSubmit = `button#login-submit`
	selDashboard   = `div.usage-dashboard`
	selUnit        = `select#unit`
	selMeter       = `select#meter`
	selDateFrom    = `input#date-from`
	selDateTo      = `input#date-to`
	selExport      = `button#export`
)

const unitKWh = "kWh"

// Credentials are the portal login credentials.
type Credentials struct {
	Username string
	Password string
}

// MeterKind identifies one of the two tariff meters.
type MeterKind string

const (
	MeterNight MeterKind = "night"
	MeterDay   MeterKind = "day"
)

// Session drives the portal's export protocol: login, unit selection,
// then one select/fill/export pass per meter, night before day. Each
// step runs exactly once; any failure aborts the whole session.
type Session struct {
	driver       Driver
	portalURL    string
	dayMeterID   string
	nightMeterID string
}

// NewSession creates a fetch session on top of driver.
func NewSession(driver Driver, portalURL, dayMeterID, nightMeterID string) *Session {
	return &Session{
		driver:       driver,
		portalURL:    portalURL,
		dayMeterID:   dayMeterID,
		nightMeterID: nightMeterID,
	}
}

// Fetch runs the full export sequence for [start, end], both meters.
// It never touches the date window; persisting progress is the
// caller's concern and happens only after Fetch returns nil.
func (s *Session) Fetch(ctx context.Context, creds Credentials, start, end time.Time) error {
	if err := s.authenticate(ctx, creds); err != nil {
		return err
	}

	order, err := s.resolveDateOrder(ctx)
	if err != nil {
		return err
	}

	if err := s.configureUnits(ctx); err != nil {
		return err
	}

	for _, meter := range []MeterKind{MeterNight, MeterDay} {
		if err := s.exportMeter(ctx, meter, start, end, order); err != nil {
			return err
		}
	}

	return nil
}

// authenticate submits the login form and waits for the dashboard.
// A rejected login leaves no navigable elements behind, so a missing
// dashboard is treated as an authentication failure rather than a
// timeout.
func (s *Session) authenticate(ctx context.Context, creds Credentials) error {
	if err := s.driver.Navigate(ctx, s.portalURL); err != nil {
		return fmt.Errorf("opening portal: %w", err)
	}

	steps := []struct {
		selector string
		action   Action
		value    string
	}{
		{selUsername, ActionType, creds.Username},
		{selPassword, ActionType, creds.Password},
		{selLoginSubmit, ActionClick, ""},
	}
	for _, step := range steps {
		if err := s.driver.WaitAndAct(ctx, step.selector, step.action, step.value); err != nil {
			return classify(err, "login form")
		}
	}

	if err := s.driver.WaitAndAct(ctx, selDashboard, ActionWait, ""); err != nil {
		return fmt.Errorf("waiting for dashboard: %w", ErrAuthentication)
	}

	return nil
}

// resolveDateOrder queries the automation environment's locale once
// per session and picks the matching token order for date entry.
func (s *Session) resolveDateOrder(ctx context.Context) (DateOrder, error) {
	locale, err := s.driver.Locale(ctx)
	if err != nil {
		return DayFirst, classify(err, "resolving locale")
	}
	if strings.HasPrefix(locale, "en-US") {
		return MonthFirst, nil
	}
	return DayFirst, nil
}

func (s *Session) configureUnits(ctx context.Context) error {
	if err := s.driver.WaitAndAct(ctx, selUnit, ActionSelect, unitKWh); err != nil {
		return classify(err, "configuring units")
	}
	return nil
}

func (s *Session) exportMeter(ctx context.Context, meter MeterKind, start, end time.Time, order DateOrder) error {
	meterID := s.nightMeterID
	if meter == MeterDay {
		meterID = s.dayMeterID
	}

	if err := s.driver.WaitAndAct(ctx, selMeter, ActionSelect, meterID); err != nil {
		return classify(err, fmt.Sprintf("selecting %s meter", meter))
	}

	if err := s.driver.TypeDate(ctx, selDateFrom, start, order); err != nil {
		return classify(err, fmt.Sprintf("filling %s range start", meter))
	}
	if err := s.driver.TypeDate(ctx, selDateTo, end, order); err != nil {
		return classify(err, fmt.Sprintf("filling %s range end", meter))
	}

	if err := s.driver.WaitAndAct(ctx, selExport, ActionClick, ""); err != nil {
		return classify(err, fmt.Sprintf("exporting %s meter", meter))
	}

	return nil
}

// classify turns a deadline hit into the session timeout error and
// passes everything else through wrapped.
func classify(err error, step string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", step, ErrRemoteTimeout)
	}
	return fmt.Errorf("%s: %w", step, err)
}
