package apikey

import (
	"github.com/quotaapp/searchd/internal/apikey/repository"
	"github.com/quotaapp/searchd/internal/apikey/service"
	"github.com/quotaapp/searchd/internal/cache"
	"go.uber.org/fx"
)

var Module = fx.Module("apikey.service",
	fx.Provide(cache.NewAPIKeyAuthCache),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
