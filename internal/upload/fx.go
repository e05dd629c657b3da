package upload

import (
	"github.com/smallbiznis/keygate/internal/upload/repository"
	"github.com/smallbiznis/keygate/internal/upload/service"
	"go.uber.org/fx"
)

var Module = fx.Module("upload.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
