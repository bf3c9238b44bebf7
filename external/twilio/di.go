package twilio

import (
	"github.com/foxseedlab/callscribe/internal/config"
	"github.com/foxseedlab/callscribe/internal/telephony"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (telephony.StreamInstructions, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewTwiMLBuilder(c.PublicBaseURL)
	})
	do.Provide(injector, func(i do.Injector) (telephony.RequestVerifier, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewSignatureValidator(c.TwilioAuthToken, c.PublicBaseURL), nil
	})
}
