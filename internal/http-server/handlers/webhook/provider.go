package webhook

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"InboxGate/entity"
)

// routeAll accepts deliveries for any provider and lets the payload decide.
const routeAll = "meta"

func providerHint(r *http.Request) (entity.Provider, bool) {
	name := chi.URLParam(r, "provider")
	if name == routeAll {
		return "", true
	}
	return entity.ParseProvider(name)
}
