package discord

import (
	"log/slog"

	"github.com/foxseedlab/callscribe/internal/config"
	"github.com/foxseedlab/callscribe/internal/notifier"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (notifier.Notifier, error) {
		c := do.MustInvoke[*config.Config](i)
		if !c.DiscordEnabled() {
			slog.Info("discord notifier disabled")
			return notifier.Nop{}, nil
		}
		return NewChannelNotifier(c.DiscordToken, c.DiscordChannelID)
	})
}
