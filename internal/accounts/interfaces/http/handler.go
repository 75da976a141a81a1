package http

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	accountsapp "rainlog/internal/accounts/application"
	accounts "rainlog/internal/accounts/domain"
	"rainlog/internal/audit"
	"rainlog/internal/auth"
	"rainlog/internal/web"
)

// HomePath is where signed-in users land.
const HomePath = "/enter"

// Handler serves the index, login, registration and logout pages.
type Handler struct {
	service     *accountsapp.Service
	sessions    *auth.Sessions
	renderer    *web.Renderer
	auditLogger audit.Logger
	logger      *log.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *accountsapp.Service, sessions *auth.Sessions, renderer *web.Renderer, auditLogger audit.Logger, logger *log.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("accounts handler: nil service")
	}
	if sessions == nil {
		return nil, errors.New("accounts handler: nil sessions")
	}
	if renderer == nil {
		return nil, errors.New("accounts handler: nil renderer")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{service: service, sessions: sessions, renderer: renderer, auditLogger: auditLogger, logger: logger}, nil
}

// Routes registers the account pages on r.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/", h.handleIndex).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/login", h.handleLoginPage).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/login", h.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/register", h.handleRegisterPage).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/register", h.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/logout", h.handleLogout).Methods(http.MethodPost)
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.IdentityFromContext(r.Context()); ok {
		http.Redirect(w, r, HomePath, http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, web.PageIndex, "", nil)
}

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Query().Get("next")
	if _, ok := auth.IdentityFromContext(r.Context()); ok {
		http.Redirect(w, r, SafeNext(next), http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, web.PageLogin, "ورود", web.LoginView{Next: next})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	remember := r.PostFormValue("remember") != ""
	next := r.PostFormValue("next")

	user, err := h.service.Authenticate(r.Context(), username, password)
	if err != nil {
		view := web.LoginView{Username: username, Next: next, Remember: remember}
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			view.Error = "نام کاربری یا رمز عبور اشتباه است"
			h.render(w, r, http.StatusUnauthorized, web.PageLogin, "ورود", view)
			return
		}
		h.logger.Printf("accounts login: user=%q err=%v", username, err)
		h.renderer.Error(w, r, http.StatusInternalServerError, "خطای داخلی سرور")
		return
	}

	role := auth.RoleFor(user.IsAdmin)
	if _, err := h.sessions.Issue(w, user.ID, user.Username, role, remember); err != nil {
		h.logger.Printf("accounts login: issue session user=%q err=%v", user.Username, err)
		h.renderer.Error(w, r, http.StatusInternalServerError, "خطای داخلی سرور")
		return
	}
	h.logAudit(r, user.Username, role, audit.ActionLogin, map[string]any{"remember": remember})
	http.Redirect(w, r, SafeNext(next), http.StatusSeeOther)
}

func (h *Handler) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.IdentityFromContext(r.Context()); ok {
		http.Redirect(w, r, HomePath, http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, web.PageRegister, "ثبت نام", web.RegisterView{})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.PostFormValue("username"))
	user, err := h.service.Register(r.Context(), username, r.PostFormValue("password1"), r.PostFormValue("password2"))
	if err != nil {
		field, msg, ok := registerError(err, username)
		if !ok {
			h.logger.Printf("accounts register: user=%q err=%v", username, err)
			h.renderer.Error(w, r, http.StatusInternalServerError, "خطای داخلی سرور")
			return
		}
		view := web.RegisterView{Username: username, Errors: map[string]string{field: msg}}
		h.render(w, r, http.StatusBadRequest, web.PageRegister, "ثبت نام", view)
		return
	}

	if _, err := h.sessions.Issue(w, user.ID, user.Username, auth.RoleUser, false); err != nil {
		h.logger.Printf("accounts register: issue session user=%q err=%v", user.Username, err)
		h.renderer.Error(w, r, http.StatusInternalServerError, "خطای داخلی سرور")
		return
	}
	h.logAudit(r, user.Username, auth.RoleUser, audit.ActionRegister, nil)
	web.SetFlash(w, fmt.Sprintf("حساب %s ساخته شد", user.Username))
	http.Redirect(w, r, HomePath, http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	p := web.NewPage(r, title, data)
	p.Flash = web.PopFlash(w, r)
	h.renderer.Render(w, status, page, p)
}

func (h *Handler) logAudit(r *http.Request, username string, role auth.Role, action string, meta any) {
	if h.auditLogger == nil {
		return
	}
	entry := audit.FromRequest(r, username, string(role), action)
	entry.ResourceType = "user"
	entry.ResourceID = username
	entry.Metadata = audit.Metadata(meta)
	if err := h.auditLogger.Log(r.Context(), entry); err != nil {
		h.logger.Printf("accounts audit: action=%s user=%q err=%v", action, username, err)
	}
}

func registerError(err error, username string) (string, string, bool) {
	switch {
	case errors.Is(err, accounts.ErrInvalidUsername):
		return "username", fmt.Sprintf("نام کاربری %q معتبر نیست؛ حداکثر ۱۵۰ نویسه از حروف، اعداد و @.+-_", username), true
	case errors.Is(err, accounts.ErrUsernameTaken):
		return "username", fmt.Sprintf("نام کاربری %q قبلا ثبت شده است", username), true
	case errors.Is(err, accounts.ErrWeakPassword):
		return "password1", "رمز عبور باید حداقل ۸ نویسه داشته باشد و فقط از اعداد تشکیل نشده باشد", true
	case errors.Is(err, accounts.ErrPasswordMismatch):
		return "password2", "تکرار رمز عبور با رمز عبور یکسان نیست", true
	}
	return "", "", false
}

// SafeNext returns next when it is a local absolute path, else HomePath.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return HomePath
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return HomePath
	}
	return next
}
