package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	useractions "github.com/R3E-Network/action_layer/internal/app/actions/users"
	"github.com/R3E-Network/action_layer/internal/httputil"
	"github.com/R3E-Network/action_layer/internal/middleware"
	"github.com/R3E-Network/action_layer/pkg/result"
)

// FlashCookie is the cookie carrying a form outcome across the redirect.
const FlashCookie = "flash"

// Flash is the payload of FlashCookie. Old holds the submitted form values
// minus secrets so the form can be refilled.
type Flash struct {
	result.Flash
	Old map[string]string `json:"old,omitempty"`
}

var secretFields = map[string]bool{
	"password":              true,
	"password_confirmation": true,
}

// webCreateUser runs the create action for a form post. Success redirects to
// the form's "redirect" field or /users; failure redirects back.
func (h *handler) webCreateUser(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	input := make(map[string]any, len(r.PostForm))
	for key, vals := range r.PostForm {
		if len(vals) > 0 {
			input[key] = vals[0]
		}
	}
	res := useractions.Run(r.Context(), h.app.Actions, h.app.Actions.Create, middleware.CallerFrom(r.Context()), input)

	flash := Flash{Flash: res.ToFlash()}
	target := localPath(r.PostForm.Get("redirect"), "/users")
	if res.IsError() {
		flash.Old = make(map[string]string, len(input))
		for key, v := range input {
			if !secretFields[key] {
				flash.Old[key], _ = v.(string)
			}
		}
		target = localPath(r.Referer(), "/")
	}

	if err := setFlash(w, flash); err != nil {
		h.log.WithError(err).Warn("encode flash")
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func setFlash(w http.ResponseWriter, flash Flash) error {
	raw, err := json.Marshal(flash)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ReadFlash decodes the flash cookie on r.
func ReadFlash(r *http.Request) (Flash, bool) {
	cookie, err := r.Cookie(FlashCookie)
	if err != nil {
		return Flash{}, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return Flash{}, false
	}
	var flash Flash
	if err := json.Unmarshal(raw, &flash); err != nil {
		return Flash{}, false
	}
	return flash, true
}

// localPath keeps redirects on this host.
func localPath(target, fallback string) string {
	if i := strings.Index(target, "://"); i >= 0 {
		rest := target[i+3:]
		if j := strings.Index(rest, "/"); j >= 0 {
			target = rest[j:]
		} else {
			target = ""
		}
	}
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return fallback
	}
	return target
}
