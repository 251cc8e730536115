package controllers

import (
	"net/http"

	"github.com/bookhive/bookhive-backend/api/responses"
	"github.com/bookhive/bookhive-backend/pkg/config"
	pkgerrors "github.com/bookhive/bookhive-backend/pkg/errors"
	"github.com/bookhive/bookhive-backend/pkg/logger"
)

const envHeader = "X-BookHive-Env"

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when every named dependency answers a ping.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		checks := map[string]string{}
		failed := false
		for name, ping := range deps {
			if ping == nil {
				continue
			}
			if err := ping(); err != nil {
				checks[name] = "down"
				failed = true
				if logg != nil {
					ctx := logg.WithField(r.Context(), "dependency", name)
					logg.Error(ctx, "readiness check failed", err)
				}
				continue
			}
			checks[name] = "ok"
		}

		if failed {
			err := pkgerrors.New(pkgerrors.CodeDependency, "dependency not ready")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
