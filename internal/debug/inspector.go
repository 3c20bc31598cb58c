// Package debug exposes the session of the requesting tab for inspection
// during development. It must not be mounted in production.
package debug

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"git.sr.ht/~jakintosh/sessiongate/pkg/gate"
	"git.sr.ht/~jakintosh/sessiongate/pkg/session"
)

// Inspector serves the tab's session state, a way to clear it, and a way
// to navigate to a local path so gate behavior can be observed.
type Inspector struct {
	// Gate evaluates the session for the report without acting on it.
	Gate   *gate.Gate
	Logger *slog.Logger
}

// Report is the body of GET /debug/session.
type Report struct {
	Tab             string            `json:"tab"`
	Profile         string            `json:"profile"`
	IsAuthenticated bool              `json:"isAuthenticated"`
	Identity        *session.Identity `json:"identity"`
	HasCredential   bool              `json:"hasCredential"`
	Bootstrap       string            `json:"bootstrap"`
	Decision        string            `json:"decision"`
	AllowedRoles    []session.Role    `json:"allowedRoles"`
	Ephemeral       map[string]string `json:"ephemeral"`
	Durable         map[string]string `json:"durable"`
}

var redactedKeys = map[string]bool{
	session.KeyAccessToken:  true,
	session.KeyRefreshToken: true,
}

func (i *Inspector) Session(w http.ResponseWriter, r *http.Request) {
	ws, ok := gate.WorkspaceFrom(r.Context())
	if !ok {
		http.Error(w, gate.ErrNoWorkspace.Error(), http.StatusInternalServerError)
		return
	}

	contents, err := ws.Store.Dump()
	if err != nil {
		i.logger().WarnContext(r.Context(), "debug: couldn't dump session", "error", err)
	}
	for key, value := range contents.Ephemeral {
		if redactedKeys[key] {
			contents.Ephemeral[key] = redact(value)
		}
	}

	report := Report{
		Tab:             ws.TabID,
		Profile:         ws.ProfileID,
		IsAuthenticated: ws.Store.IsAuthenticated(),
		Bootstrap:       bootstrapState(ws.Bootstrap),
		Ephemeral:       contents.Ephemeral,
		Durable:         contents.Durable,
	}
	if identity, ok := ws.Store.Identity(); ok {
		report.Identity = &identity
	}
	_, report.HasCredential = ws.Store.Credential()
	if i.Gate != nil {
		report.AllowedRoles = i.Gate.AllowedRoles()
		report.Decision = gate.Evaluate(ws.Store, report.AllowedRoles).String()
	}

	w.Header().Set("Cache-Control", "no-store")
	returnJson(report, w)
}

// Clear signs the tab out locally without contacting the provider.
func (i *Inspector) Clear(w http.ResponseWriter, r *http.Request) {
	ws, ok := gate.WorkspaceFrom(r.Context())
	if !ok {
		http.Error(w, gate.ErrNoWorkspace.Error(), http.StatusInternalServerError)
		return
	}

	if err := ws.Store.ClearAuth(); err != nil {
		i.logger().WarnContext(r.Context(), "debug: clear failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	i.logger().InfoContext(r.Context(), "debug: session cleared", "tab", ws.TabID)
	w.WriteHeader(http.StatusNoContent)
}

// Navigate redirects to the local path given in `to`.
func (i *Inspector) Navigate(w http.ResponseWriter, r *http.Request) {
	to := r.URL.Query().Get("to")
	if !isLocalPath(to) {
		http.Error(w, fmt.Sprintf("'%s' is not a local path", to), http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func isLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	u, err := url.Parse(p)
	return err == nil && u.Scheme == "" && u.Host == ""
}

func bootstrapState(b *gate.Bootstrap) string {
	select {
	case <-b.Done():
	default:
		return "pending"
	}
	if err := b.Err(); err != nil {
		return err.Error()
	}
	return "restored"
}

func redact(value string) string {
	return fmt.Sprintf("<redacted, %d chars>", len(value))
}

func returnJson(data any, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
}

func (i *Inspector) logger() *slog.Logger {
	if i.Logger == nil {
		return slog.Default()
	}
	return i.Logger
}
