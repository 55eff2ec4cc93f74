package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/breeze-rmm/docverify/internal/model"
)

// fakeSession records browser interactions and serves canned page text.
type fakeSession struct {
	visited  []string
	clicked  []string
	pageText string
	visitErr error
	clickErr error
}

func (f *fakeSession) Visit(ctx context.Context, url string) error {
	f.visited = append(f.visited, url)
	return f.visitErr
}

func (f *fakeSession) Text(ctx context.Context) (string, error) {
	return f.pageText, nil
}

func (f *fakeSession) ClickText(ctx context.Context, label string) error {
	f.clicked = append(f.clicked, label)
	return f.clickErr
}

func uiAssertion(test model.UITest) model.Assertion {
	return model.Assertion{
		ID:       "ui-devices-1",
		Claim:    "The devices page lists enrolled devices.",
		Severity: model.SeverityWarning,
		Kind:     model.KindUI,
		Test:     test,
	}
}

func TestUIExecutor_Pass(t *testing.T) {
	session := &fakeSession{pageText: "Devices\n3 devices online\nworkstation-01"}
	e := NewUIExecutor(session)

	a := uiAssertion(model.UITest{
		Navigate: "/devices",
		Verify:   `the heading "Devices" is visible`,
	})

	res := e.Execute(context.Background(), a, "http://localhost:4321", nil)
	assert.Equal(t, model.StatusPass, res.Status)
	assert.Equal(t, []string{"http://localhost:4321/devices"}, session.visited)
}

func TestUIExecutor_StepsClickInOrder(t *testing.T) {
	session := &fakeSession{pageText: "Create Alert Rule saved"}
	e := NewUIExecutor(session)

	a := uiAssertion(model.UITest{
		Navigate: "/alerts",
		Steps:    []string{`click "New Rule"`, `click "Save"`},
		Verify:   `"saved"`,
	})

	res := e.Execute(context.Background(), a, "http://localhost:4321", nil)
	assert.Equal(t, model.StatusPass, res.Status)
	assert.Equal(t, []string{"New Rule", "Save"}, session.clicked)
}

func TestUIExecutor_VerifyMissingPhrase(t *testing.T) {
	session := &fakeSession{pageText: "Settings"}
	e := NewUIExecutor(session)

	a := uiAssertion(model.UITest{Navigate: "/devices", Verify: `shows "Devices"`})

	res := e.Execute(context.Background(), a, "http://localhost:4321", nil)
	assert.Equal(t, model.StatusFail, res.Status)
	assert.Contains(t, res.Reason, `missing "Devices"`)
}

func TestUIExecutor_UnquotedVerifyUsesSignificantWords(t *testing.T) {
	session := &fakeSession{pageText: "Script Library\nDisk Cleanup\nRestart Service"}
	e := NewUIExecutor(session)

	pass := e.Execute(context.Background(), uiAssertion(model.UITest{
		Navigate: "/scripts",
		Verify:   "the script library is visible",
	}), "http://localhost:4321", nil)
	assert.Equal(t, model.StatusPass, pass.Status)

	fail := e.Execute(context.Background(), uiAssertion(model.UITest{
		Navigate: "/scripts",
		Verify:   "the patch dashboard is visible",
	}), "http://localhost:4321", nil)
	assert.Equal(t, model.StatusFail, fail.Status)
}

func TestUIExecutor_NavigationError(t *testing.T) {
	session := &fakeSession{visitErr: errors.New("net::ERR_CONNECTION_REFUSED")}
	e := NewUIExecutor(session)

	res := e.Execute(context.Background(), uiAssertion(model.UITest{Navigate: "/devices", Verify: `"Devices"`}), "http://localhost:4321", nil)
	assert.Equal(t, model.StatusError, res.Status)
	assert.Contains(t, res.Reason, "visit /devices")
}

func TestUIExecutor_UnrecognizedStep(t *testing.T) {
	session := &fakeSession{pageText: "x"}
	e := NewUIExecutor(session)

	res := e.Execute(context.Background(), uiAssertion(model.UITest{
		Navigate: "/devices",
		Steps:    []string{`drag the slider to 50%`},
		Verify:   `"x"`,
	}), "http://localhost:4321", nil)
	assert.Equal(t, model.StatusError, res.Status)
	assert.Contains(t, res.Reason, "unrecognized step grammar")
}

func TestUIExecutor_NoSession(t *testing.T) {
	e := NewUIExecutor(nil)
	res := e.Execute(context.Background(), uiAssertion(model.UITest{Navigate: "/", Verify: `"x"`}), "http://localhost:4321", nil)
	assert.Equal(t, model.StatusError, res.Status)
	assert.Contains(t, res.Reason, "no browser session")
}
