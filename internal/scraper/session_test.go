package scraper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDriver records every step and can fail a chosen selector.
type fakeDriver struct {
	steps   []string
	locale  string
	failSel string
	failErr error
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error {
	d.steps = append(d.steps, "navigate "+url)
	return nil
}

func (d *fakeDriver) WaitAndAct(ctx context.Context, selector string, action Action, value string) error {
	if selector == d.failSel {
		return d.failErr
	}
	d.steps = append(d.steps, fmt.Sprintf("act %s %q", selector, value))
	return nil
}

func (d *fakeDriver) TypeDate(ctx context.Context, selector string, value time.Time, order DateOrder) error {
	if selector == d.failSel {
		return d.failErr
	}
	d.steps = append(d.steps, fmt.Sprintf("date %s %s", selector, FormatDate(value, order)))
	return nil
}

func (d *fakeDriver) Locale(ctx context.Context) (string, error) {
	if d.locale == "" {
		return "nl-NL", nil
	}
	return d.locale, nil
}

func newTestSession(d *fakeDriver) *Session {
	return NewSession(d, "https://portal.example/login", "300001", "199996")
}

func TestSession_FetchRunsFullSequence(t *testing.T) {
	d := &fakeDriver{}
	s := newTestSession(d)

	start := time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 1, 14, 0, 0, 0, 0, time.UTC)
	creds := Credentials{Username: "user", Password: "secret"}

	require.NoError(t, s.Fetch(context.Background(), creds, start, end))

	assert.Equal(t, []string{
		"navigate https://portal.example/login",
		`act input#username "user"`,
		`act input#password "secret"`,
		`act button#login-submit ""`,
		`act div.usage-dashboard ""`,
		`act select#unit "kWh"`,
		`act select#meter "199996"`, // night meter first
		"date input#date-from 10/01/2023",
		"date input#date-to 14/01/2023",
		`act button#export ""`,
		`act select#meter "300001"`,
		"date input#date-from 10/01/2023",
		"date input#date-to 14/01/2023",
		`act button#export ""`,
	}, d.steps)
}

func TestSession_AuthenticationFailure(t *testing.T) {
	d := &fakeDriver{
		failSel: selDashboard,
		failErr: context.DeadlineExceeded,
	}
	s := newTestSession(d)

	err := s.Fetch(context.Background(), Credentials{}, time.Now(), time.Now())
	assert.ErrorIs(t, err, ErrAuthentication)

	// Nothing beyond the login steps may have run
	for _, step := range d.steps {
		assert.NotContains(t, step, "export")
		assert.NotContains(t, step, "meter")
	}
}

func TestSession_TimeoutAbortsSession(t *testing.T) {
	d := &fakeDriver{
		failSel: selExport,
		failErr: context.DeadlineExceeded,
	}
	s := newTestSession(d)

	err := s.Fetch(context.Background(), Credentials{}, time.Now(), time.Now())
	assert.ErrorIs(t, err, ErrRemoteTimeout)
}

func TestSession_MonthFirstLocale(t *testing.T) {
	d := &fakeDriver{locale: "en-US"}
	s := newTestSession(d)

	start := time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 1, 14, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Fetch(context.Background(), Credentials{}, start, end))
	assert.Contains(t, d.steps, "date input#date-from 01/10/2023")
	assert.Contains(t, d.steps, "date input#date-to 01/14/2023")
}

func TestFormatDate(t *testing.T) {
	d := time.Date(2023, 3, 24, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "24/03/2023", FormatDate(d, DayFirst))
	assert.Equal(t, "03/24/2023", FormatDate(d, MonthFirst))
}
