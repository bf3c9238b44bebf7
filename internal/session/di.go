package session

import (
	"github.com/foxseedlab/callscribe/internal/config"
	"github.com/foxseedlab/callscribe/internal/notifier"
	"github.com/foxseedlab/callscribe/internal/relay"
	"github.com/foxseedlab/callscribe/internal/repository"
	"github.com/foxseedlab/callscribe/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		n := do.MustInvoke[notifier.Notifier](i)
		wh := do.MustInvoke[webhook.Sender](i)
		newTranscriber := do.MustInvoke[relay.TranscriberFactory](i)
		return NewManager(cfg, repo, n, wh, newTranscriber), nil
	})
}
