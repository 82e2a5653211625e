package flow

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Dicklesworthstone/flowverify/internal/browser"
	"github.com/Dicklesworthstone/flowverify/internal/config"
	"github.com/Dicklesworthstone/flowverify/internal/identity"
)

// Step is a named, ordered list of actions.
type Step struct {
	Name    string
	Actions []Action
}

// Scenario is a named, ordered list of steps.
type Scenario struct {
	Name        string
	Description string
	Steps       []Step
}

// Definition builds a scenario for a configuration and a fresh identity.
type Definition struct {
	Name        string
	Description string
	Build       func(cfg config.Config, id identity.Identity) []Step
}

// Scenario builds the named scenario.
func (d Definition) Scenario(cfg config.Config, id identity.Identity) Scenario {
	return Scenario{Name: d.Name, Description: d.Description, Steps: d.Build(cfg, id)}
}

// Scenario names.
const (
	ScenarioApproval  = "approval"
	ScenarioPending   = "pending"
	ScenarioRejection = "rejection"
)

var definitions = []Definition{
	{
		Name:        ScenarioApproval,
		Description: "register a student, approve it as admin, sign in as the approved student",
		Build:       buildApproval,
	},
	{
		Name:        ScenarioPending,
		Description: "register a student and check it is not approved before an admin acts",
		Build:       buildPending,
	},
	{
		Name:        ScenarioRejection,
		Description: "register a student, reject it as admin, sign in as the rejected student",
		Build:       buildRejection,
	},
}

// Definitions returns every scenario, approval first.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Lookup returns the named scenario definition.
func Lookup(name string) (Definition, error) {
	for _, d := range definitions {
		if d.Name == name {
			return d, nil
		}
	}
	names := make([]string, len(definitions))
	for i, d := range definitions {
		names[i] = d.Name
	}
	return Definition{}, fmt.Errorf("%w %q (available: %s)", ErrUnknownScenario, name, strings.Join(names, ", "))
}

// ScreenshotPath returns where a scenario's final screenshot lands. The
// approval scenario uses the configured path unchanged; others get the
// scenario name appended to the file name.
func ScreenshotPath(cfg config.Config, scenario string) string {
	p := cfg.Artifacts.ScreenshotPath
	if scenario == ScenarioApproval {
		return p
	}
	ext := filepath.Ext(p)
	return strings.TrimSuffix(p, ext) + "-" + scenario + ext
}

// StudentRow locates the pending-list row of id.
func StudentRow(id identity.Identity) browser.Row {
	return browser.Row{Cells: []string{id.Name, id.Email}}
}

func registerStep(cfg config.Config, id identity.Identity) Step {
	ui := cfg.UI
	return Step{
		Name: "register student",
		Actions: []Action{
			Navigate(cfg.Target.SignupURL()),
			Fill(ui.FullNameLabel, id.Name, false),
			Fill(ui.EmailLabel, id.Email, false),
			Fill(ui.PasswordLabel, id.Password, true),
			Click(ui.SignUpButton),
			ExpectText(ui.RegistrationSuccess),
		},
	}
}

func adminSignInStep(cfg config.Config) Step {
	ui := cfg.UI
	return Step{
		Name: "admin sign-in",
		Actions: []Action{
			Navigate(cfg.Target.SigninURL()),
			Fill(ui.EmailLabel, cfg.Admin.Email, false),
			Fill(ui.PasswordLabel, cfg.Admin.Password, true),
			Click(ui.SignInButton),
			ExpectText(ui.AdminDashboard),
		},
	}
}

func signOutStep(cfg config.Config) Step {
	return Step{
		Name: "sign out",
		Actions: []Action{
			Click(cfg.UI.SignOutButton),
			ExpectText(cfg.UI.SignedOut),
		},
	}
}

// studentSignIn fills the sign-in form already on screen.
func studentSignIn(cfg config.Config, id identity.Identity) []Action {
	ui := cfg.UI
	return []Action{
		Fill(ui.EmailLabel, id.Email, false),
		Fill(ui.PasswordLabel, id.Password, true),
		Click(ui.SignInButton),
	}
}

func screenshotStep(cfg config.Config, scenario string) Step {
	return Step{
		Name:    "screenshot",
		Actions: []Action{Screenshot(ScreenshotPath(cfg, scenario))},
	}
}

func buildApproval(cfg config.Config, id identity.Identity) []Step {
	row := StudentRow(id)
	return []Step{
		registerStep(cfg, id),
		adminSignInStep(cfg),
		{
			Name: "approve student",
			Actions: []Action{
				ClickInRow(row, cfg.UI.ApproveButton),
				ExpectRowGone(row),
			},
		},
		signOutStep(cfg),
		{
			Name:    "student sign-in",
			Actions: append(studentSignIn(cfg, id), ExpectText(cfg.UI.ApprovedStatus)),
		},
		screenshotStep(cfg, ScenarioApproval),
	}
}

func buildPending(cfg config.Config, id identity.Identity) []Step {
	signIn := append([]Action{Navigate(cfg.Target.SigninURL())}, studentSignIn(cfg, id)...)
	signIn = append(signIn,
		ExpectText(cfg.UI.PendingStatus),
		ExpectNoText(cfg.UI.ApprovedStatus),
	)
	return []Step{
		registerStep(cfg, id),
		{Name: "student sign-in", Actions: signIn},
		signOutStep(cfg),
		screenshotStep(cfg, ScenarioPending),
	}
}

func buildRejection(cfg config.Config, id identity.Identity) []Step {
	row := StudentRow(id)
	return []Step{
		registerStep(cfg, id),
		adminSignInStep(cfg),
		{
			Name: "reject student",
			Actions: []Action{
				AcceptDialogs(cfg.Student.RejectReason),
				ClickInRow(row, cfg.UI.RejectButton),
				ExpectRowGone(row),
			},
		},
		signOutStep(cfg),
		{
			Name:    "student sign-in",
			Actions: append(studentSignIn(cfg, id), ExpectText(cfg.UI.RejectedStatus)),
		},
		screenshotStep(cfg, ScenarioRejection),
	}
}
