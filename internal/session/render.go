package session

import (
	"fmt"
	"html/template"
	"io"
)

const authTemplate = `{{define "auth"}}{{if .LoggedIn}}<div class="account">
  <a class="account-link" href="profile.html">
    <span class="account-avatar" aria-hidden="true">👤</span>
    <span class="account-name">{{.DisplayName}}</span>
  </a>
  <button class="account-toggle" aria-expanded="{{.MenuOpen}}" aria-label="Account menu">▾</button>
  {{if .MenuOpen}}<div class="account-menu">{{else}}<div class="account-menu" hidden>{{end}}
    <a href="profile.html">Profile</a>
    <a href="orders.html">My Orders</a>
    <button class="logout-btn" type="button">Logout</button>
  </div>
</div>
{{else}}<a class="login-btn" href="login.html">Login</a>
{{end}}{{end}}`

// HTMLRenderer renders the auth header fragment. The display name is
// escaped by html/template.
type HTMLRenderer struct {
	tmpl *template.Template
}

// NewHTMLRenderer parses the auth template.
func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{tmpl: template.Must(template.New("session").Parse(authTemplate))}
}

// Render writes the fragment for p to w.
func (r *HTMLRenderer) Render(w io.Writer, p Presentation) error {
	if err := r.tmpl.ExecuteTemplate(w, "auth", p); err != nil {
		return fmt.Errorf("render auth: %w", err)
	}
	return nil
}
