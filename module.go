package controllersdk

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/joshuarp/controller-sdk/auth"
	"github.com/joshuarp/controller-sdk/config"
	"github.com/joshuarp/controller-sdk/constraint"
	"github.com/joshuarp/controller-sdk/store"
	"github.com/joshuarp/controller-sdk/transport"
)

// Module wires the SDK into an fx application. The host provides a
// config.Provider; transport, store, and the device sources are optional
// and default as in New.
func Module() fx.Option {
	return fx.Module("controllersdk",
		fx.Provide(
			provideSettings,
			provideLogger,
			provideClient,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideSettings(cfg config.Provider) config.Settings {
	return config.LoadSettings(cfg)
}

func provideLogger(settings config.Settings) *slog.Logger {
	return NewJSONLogger(settings.LogLevel)
}

type clientIn struct {
	fx.In

	Settings     config.Settings
	Logger       *slog.Logger
	Transport    transport.Transport           `optional:"true"`
	Store        store.Store                   `optional:"true"`
	Connectivity constraint.ConnectivitySource `optional:"true"`
	Location     constraint.LocationSource     `optional:"true"`
	Authorizer   auth.InteractiveAuthorizer    `optional:"true"`
}

func provideClient(in clientIn) (*Client, error) {
	return New(Options{
		Settings:     &in.Settings,
		Transport:    in.Transport,
		Store:        in.Store,
		Connectivity: in.Connectivity,
		Location:     in.Location,
		Authorizer:   in.Authorizer,
		Logger:       in.Logger,
	})
}

type lifecycleIn struct {
	fx.In

	Client *Client
	Logger *slog.Logger
	Config config.Provider `optional:"true"`
}

func registerLifecycle(lifecycle fx.Lifecycle, in lifecycleIn) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if in.Config != nil {
				in.Config.WatchChanges()
			}
			if err := in.Client.LoadQueues(ctx); err != nil {
				return err
			}
			in.Logger.Info("controllersdk: client started")
			return nil
		},
		OnStop: func(_ context.Context) error {
			if in.Config != nil {
				in.Config.StopWatching()
			}
			in.Logger.Info("controllersdk: client stopped")
			return nil
		},
	})
}
