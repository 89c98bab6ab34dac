package devicetoken

import "go.uber.org/fx"

var Module = fx.Module("devicetoken",
	fx.Provide(NewService),
)
