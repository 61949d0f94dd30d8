package stripesync

import (
	"go.uber.org/fx"

	"github.com/fatflowers/creditledger/internal/app/service/eventlog"
)

// Module exposes the stripe synchronizer via Fx.
var Module = fx.Options(
	fx.Provide(func(s *eventlog.Service) IntakeLogger { return s }),
	fx.Provide(NewService),
)
