package quota

import (
	"github.com/quotaapp/searchd/internal/quota/service"
	"go.uber.org/fx"
)

var Module = fx.Module("quota",
	fx.Provide(
		service.NewService,
	),
)
