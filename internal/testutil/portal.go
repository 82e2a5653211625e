package testutil

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/Dicklesworthstone/flowverify/internal/browser"
	"github.com/Dicklesworthstone/flowverify/internal/config"
)

// PNGHeader prefixes every fake screenshot.
const PNGHeader = "\x89PNG\r\n\x1a\n"

// Account states held by a Portal.
const (
	AccountPending  = "pending"
	AccountApproved = "approved"
	AccountRejected = "rejected"
)

// Portal is an in-memory stand-in for the student portal, driven through the
// browser.Driver interface. It renders the default UI strings unless UI is
// changed before the first Open.
type Portal struct {
	UI            config.UIConfig
	AdminEmail    string
	AdminPassword string

	mu       sync.Mutex
	accounts []*PortalAccount
	hidden   map[string]bool
	failures map[string]error
	opens    int
	closed   int
}

// PortalAccount is a registered student.
type PortalAccount struct {
	Name     string
	Email    string
	Password string
	Status   string
	Reason   string
}

// NewPortal returns a portal with the default UI strings and admin account.
func NewPortal() *Portal {
	cfg := config.DefaultConfig()
	return &Portal{
		UI:            cfg.UI,
		AdminEmail:    cfg.Admin.Email,
		AdminPassword: cfg.Admin.Password,
		hidden:        map[string]bool{},
		failures:      map[string]error{},
	}
}

// Hide stops text from ever rendering.
func (p *Portal) Hide(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hidden[text] = true
}

// FailOn makes the driver operation op ("navigate", "fill", "click",
// "click-row", "screenshot", "html") on target return err.
func (p *Portal) FailOn(op, target string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[op+":"+target] = err
}

// Account returns the student registered with email.
func (p *Portal) Account(email string) (PortalAccount, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if a := p.find(email); a != nil {
		return *a, true
	}
	return PortalAccount{}, false
}

// Opens counts launched pages.
func (p *Portal) Opens() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opens
}

// Closes counts closed pages.
func (p *Portal) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Open starts a new page on the portal.
func (p *Portal) Open(ctx context.Context) (browser.Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failures["open:"]; err != nil {
		return nil, err
	}
	p.opens++
	return &portalPage{portal: p, fields: map[string]string{}}, nil
}

// Factory adapts the portal for browser.Register.
func (p *Portal) Factory() browser.Factory {
	return func(ctx context.Context, _ browser.Options) (browser.Driver, error) {
		return p.Open(ctx)
	}
}

func (p *Portal) find(email string) *PortalAccount {
	for _, a := range p.accounts {
		if a.Email == email {
			return a
		}
	}
	return nil
}

func (p *Portal) pending() []*PortalAccount {
	var out []*PortalAccount
	for _, a := range p.accounts {
		if a.Status == AccountPending {
			out = append(out, a)
		}
	}
	return out
}

type page string

const (
	pageBlank   page = "blank"
	pageSignup  page = "signup"
	pageCreated page = "registered"
	pageSignin  page = "signin"
	pageAdmin   page = "admin"
	pageStudent page = "student"
)

type portalPage struct {
	portal  *Portal
	page    page
	fields  map[string]string
	user    string
	notice  string
	dialogs bool
	prompt  string
}

func (pg *portalPage) check(ctx context.Context, op, target string) error {
	if err := ctx.Err(); err != nil {
		return &browser.ActionError{Op: op, Target: target, Err: err}
	}
	if err := pg.portal.failures[op+":"+target]; err != nil {
		return &browser.ActionError{Op: op, Target: target, Err: err}
	}
	return nil
}

func timeout(op, target string) error {
	return &browser.ActionError{Op: op, Target: target, Err: browser.ErrTimeout}
}

func (pg *portalPage) Navigate(ctx context.Context, raw string) error {
	p := pg.portal
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := pg.check(ctx, "navigate", raw); err != nil {
		return err
	}
	u, err := url.Parse(raw)
	if err != nil {
		return &browser.ActionError{Op: "navigate", Target: raw, Err: err}
	}
	switch {
	case strings.HasSuffix(u.Path, "/signup"):
		pg.show(pageSignup)
	case strings.HasSuffix(u.Path, "/signin"):
		pg.show(pageSignin)
	default:
		return &browser.ActionError{Op: "navigate", Target: raw, Err: errors.New("404 Not Found")}
	}
	return nil
}

func (pg *portalPage) show(to page) {
	pg.page = to
	pg.fields = map[string]string{}
	pg.notice = ""
}

func (pg *portalPage) labels() []string {
	ui := pg.portal.UI
	switch pg.page {
	case pageSignup:
		return []string{ui.FullNameLabel, ui.EmailLabel, ui.PasswordLabel}
	case pageSignin:
		return []string{ui.EmailLabel, ui.PasswordLabel}
	}
	return nil
}

func (pg *portalPage) Fill(ctx context.Context, label, value string) error {
	p := pg.portal
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := pg.check(ctx, "fill", label); err != nil {
		return err
	}
	if !slices.Contains(pg.labels(), label) {
		return timeout("fill", label)
	}
	pg.fields[label] = value
	return nil
}

func (pg *portalPage) Click(ctx context.Context, name string) error {
	p := pg.portal
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := pg.check(ctx, "click", name); err != nil {
		return err
	}
	ui := p.UI
	switch {
	case pg.page == pageSignup && name == ui.SignUpButton:
		email := pg.fields[ui.EmailLabel]
		if p.find(email) != nil {
			pg.notice = "Email already registered"
			return nil
		}
		p.accounts = append(p.accounts, &PortalAccount{
			Name:     pg.fields[ui.FullNameLabel],
			Email:    email,
			Password: pg.fields[ui.PasswordLabel],
			Status:   AccountPending,
		})
		pg.show(pageCreated)
	case pg.page == pageSignin && name == ui.SignInButton:
		email, pw := pg.fields[ui.EmailLabel], pg.fields[ui.PasswordLabel]
		if email == p.AdminEmail && pw == p.AdminPassword {
			pg.show(pageAdmin)
			pg.user = email
			return nil
		}
		if a := p.find(email); a != nil && a.Password == pw {
			pg.show(pageStudent)
			pg.user = email
			return nil
		}
		pg.notice = "Invalid credentials"
	case (pg.page == pageAdmin || pg.page == pageStudent) && name == ui.SignOutButton:
		pg.user = ""
		pg.show(pageSignin)
	default:
		return timeout("click", name)
	}
	return nil
}

// texts lists what the current page renders, hidden strings excluded.
func (pg *portalPage) texts() []string {
	p := pg.portal
	ui := p.UI
	var out []string
	switch pg.page {
	case pageSignup:
		out = append(out, "Create Account", ui.SignUpButton)
		out = append(out, pg.labels()...)
	case pageCreated:
		out = append(out, ui.RegistrationSuccess)
	case pageSignin:
		out = append(out, ui.SignedOut, ui.SignInButton)
		out = append(out, pg.labels()...)
	case pageAdmin:
		out = append(out, ui.AdminDashboard, ui.SignOutButton)
		rows := p.pending()
		if len(rows) == 0 {
			out = append(out, "No pending students found.")
		}
		for _, a := range rows {
			out = append(out, a.Name, a.Email)
		}
	case pageStudent:
		out = append(out, ui.SignOutButton)
		if a := p.find(pg.user); a != nil {
			switch a.Status {
			case AccountApproved:
				out = append(out, ui.ApprovedStatus)
			case AccountRejected:
				out = append(out, ui.RejectedStatus)
			default:
				out = append(out, ui.PendingStatus)
			}
		}
	}
	if pg.notice != "" {
		out = append(out, pg.notice)
	}
	return slices.DeleteFunc(out, func(s string) bool { return p.hidden[s] })
}

func (pg *portalPage) visible(text string) bool {
	for _, s := range pg.texts() {
		if strings.Contains(s, text) {
			return true
		}
	}
	return false
}

func (pg *portalPage) WaitText(ctx context.Context, text string) error {
	p := pg.portal
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := pg.check(ctx, "wait for text", text); err != nil {
		return err
	}
	if !pg.visible(text) {
		return timeout("wait for text", text)
	}
	return nil
}

func (pg *portalPage) TextVisible(ctx context.Context, text string) (bool, error) {
	p := pg.portal
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := pg.check(ctx, "check text", text); err != nil {
		return false, err
	}
	return pg.visible(text), nil
}

func (pg *portalPage) matchRow(row browser.Row) *PortalAccount {
	if pg.page != pageAdmin {
		return nil
	}
	for _, a := range pg.portal.pending() {
		cells := a.Name + " " + a.Email
		if !slices.ContainsFunc(row.Cells, func(c string) bool { return !strings.Contains(cells, c) }) {
			return a
		}
	}
	return nil
}

func (pg *portalPage) ClickInRow(ctx context.Context, row browser.Row, name string) error {
	p := pg.portal
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := pg.check(ctx, "click-row", name); err != nil {
		return err
	}
	a := pg.matchRow(row)
	if a == nil {
		return timeout("click "+name+" in", row.String())
	}
	switch name {
	case p.UI.ApproveButton:
		a.Status = AccountApproved
	case p.UI.RejectButton:
		if !pg.dialogs {
			return &browser.ActionError{Op: "click " + name + " in", Target: row.String(), Err: errors.New("page blocked by unhandled prompt")}
		}
		a.Status = AccountRejected
		a.Reason = pg.prompt
	default:
		return timeout("click "+name+" in", row.String())
	}
	return nil
}

func (pg *portalPage) WaitRowGone(ctx context.Context, row browser.Row) error {
	p := pg.portal
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := pg.check(ctx, "wait for row gone", row.String()); err != nil {
		return err
	}
	if pg.matchRow(row) != nil {
		return timeout("wait for row gone", row.String())
	}
	return nil
}

func (pg *portalPage) AcceptDialogs(ctx context.Context, promptText string) error {
	p := pg.portal
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	pg.dialogs = true
	pg.prompt = promptText
	return nil
}

func (pg *portalPage) Screenshot(ctx context.Context) ([]byte, error) {
	p := pg.portal
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := pg.check(ctx, "screenshot", ""); err != nil {
		return nil, err
	}
	return []byte(PNGHeader + string(pg.page)), nil
}

func (pg *portalPage) HTML(ctx context.Context) (string, error) {
	p := pg.portal
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := pg.check(ctx, "html", ""); err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<html><body data-page=%q>", pg.page)
	for _, s := range pg.texts() {
		fmt.Fprintf(&b, "<p>%s</p>", s)
	}
	b.WriteString("</body></html>")
	return b.String(), nil
}

func (pg *portalPage) Close() error {
	p := pg.portal
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}
