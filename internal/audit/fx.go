package audit

import (
	"github.com/creditrail/creditgate/internal/audit/repository"
	"github.com/creditrail/creditgate/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
