// Package testapp is a server-rendered replica of the student portal that
// flowverify scenarios target. It keeps everything in memory and exists for
// hermetic tests.
package testapp

import (
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const sessionCookie = "portal_session"

// Default admin credentials seeded by New.
const (
	DefaultAdminEmail    = "admin@example.com"
	DefaultAdminPassword = "password123"
)

// App is the fixture portal.
type App struct {
	store  *Store
	logger *log.Logger
	router chi.Router
}

// Options configures New.
type Options struct {
	AdminEmail    string
	AdminPassword string
	// BcryptCost defaults to bcrypt.MinCost so tests stay fast.
	BcryptCost int
	Logger     *log.Logger
}

// New builds the app and seeds the admin account.
func New(opts Options) (*App, error) {
	if opts.AdminEmail == "" {
		opts.AdminEmail = DefaultAdminEmail
	}
	if opts.AdminPassword == "" {
		opts.AdminPassword = DefaultAdminPassword
	}
	if opts.BcryptCost <= 0 {
		opts.BcryptCost = 4
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	a := &App{store: NewStore(opts.BcryptCost), logger: opts.Logger}
	if _, err := a.store.Register("Administrator", opts.AdminEmail, opts.AdminPassword, RoleAdmin); err != nil {
		return nil, err
	}
	a.router = a.routes()
	return a, nil
}

// Store exposes the account store for assertions.
func (a *App) Store() *Store { return a.store }

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *App) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(a.accessLog)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/signin", http.StatusSeeOther)
	})
	r.Get("/signup", a.signupForm)
	r.Post("/signup", a.signup)
	r.Get("/signin", a.signinForm)
	r.Post("/signin", a.signin)
	r.Post("/signout", a.signout)

	r.Group(func(r chi.Router) {
		r.Use(a.requireRole(RoleAdmin))
		r.Get("/admin/dashboard", a.adminDashboard)
		r.Post("/admin/students/{id}/approve", a.decide(StatusApproved))
		r.Post("/admin/students/{id}/reject", a.decide(StatusRejected))
	})
	r.Group(func(r chi.Router) {
		r.Use(a.requireRole(RoleStudent))
		r.Get("/student/dashboard", a.studentDashboard)
	})
	return r
}

func (a *App) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "elapsed", time.Since(start))
	})
}

type ctxKey struct{}

func (a *App) current(r *http.Request) (Account, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return Account{}, false
	}
	return a.store.Session(c.Value)
}

func (a *App) requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acct, ok := a.current(r)
			if !ok {
				http.Redirect(w, r, "/signin", http.StatusSeeOther)
				return
			}
			if acct.Role != role {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), acct)))
		})
	}
}

func (a *App) render(w http.ResponseWriter, status int, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		a.logger.Error("rendering page", "page", name, "error", err)
	}
}

func (a *App) signupForm(w http.ResponseWriter, r *http.Request) {
	a.render(w, http.StatusOK, "signup", pageData{Title: "Sign Up"})
}

func (a *App) signup(w http.ResponseWriter, r *http.Request) {
	name, email, password := r.PostFormValue("name"), r.PostFormValue("email"), r.PostFormValue("password")
	if name == "" || email == "" || password == "" {
		a.render(w, http.StatusBadRequest, "signup", pageData{Title: "Sign Up", Error: "All fields are required", Name: name, Email: email})
		return
	}
	if _, err := a.store.Register(name, email, password, RoleStudent); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrEmailTaken) {
			status = http.StatusConflict
		}
		a.render(w, status, "signup", pageData{Title: "Sign Up", Error: "Registration failed: " + err.Error(), Name: name, Email: email})
		return
	}
	a.logger.Info("student registered", "email", email)
	a.render(w, http.StatusCreated, "registered", pageData{Title: "Registered"})
}

func (a *App) signinForm(w http.ResponseWriter, r *http.Request) {
	a.render(w, http.StatusOK, "signin", pageData{Title: "Sign In"})
}

func (a *App) signin(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	acct, token, err := a.store.Authenticate(email, r.PostFormValue("password"))
	if err != nil {
		a.render(w, http.StatusUnauthorized, "signin", pageData{Title: "Sign In", Error: "Invalid email or password", Email: email})
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	dest := "/student/dashboard"
	if acct.Role == RoleAdmin {
		dest = "/admin/dashboard"
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

func (a *App) signout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		a.store.EndSession(c.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/signin", http.StatusSeeOther)
}

func (a *App) adminDashboard(w http.ResponseWriter, r *http.Request) {
	user := accountFrom(r.Context())
	a.render(w, http.StatusOK, "admin", pageData{Title: "Admin Dashboard", User: &user, Students: a.store.Pending()})
}

func (a *App) decide(status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := a.store.Decide(id, status, r.PostFormValue("reason")); err != nil {
			code := http.StatusConflict
			if errors.Is(err, ErrAccountNotFound) {
				code = http.StatusNotFound
			}
			http.Error(w, err.Error(), code)
			return
		}
		a.logger.Info("student decided", "id", id, "status", status)
		http.Redirect(w, r, "/admin/dashboard", http.StatusSeeOther)
	}
}

func (a *App) studentDashboard(w http.ResponseWriter, r *http.Request) {
	user := accountFrom(r.Context())
	a.render(w, http.StatusOK, "student", pageData{Title: "Student Dashboard", User: &user})
}
