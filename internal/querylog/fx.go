package querylog

import (
	"github.com/quotaapp/searchd/internal/querylog/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("querylog",
	fx.Provide(repository.Provide),
)
