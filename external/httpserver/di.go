package httpserver

import (
	"net/http"

	"github.com/foxseedlab/callscribe/internal/config"
	"github.com/foxseedlab/callscribe/internal/session"
	"github.com/foxseedlab/callscribe/internal/telephony"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*http.Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		manager := do.MustInvoke[*session.Manager](i)
		instructions := do.MustInvoke[telephony.StreamInstructions](i)
		verifier := do.MustInvoke[telephony.RequestVerifier](i)
		return NewServer(cfg.HTTPAddr, NewRouter(manager, instructions, verifier)), nil
	})
}
