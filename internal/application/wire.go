package application

import (
	"github.com/google/wire"

	"github.com/knowbase/backend/internal/application/ingest"
	"github.com/knowbase/backend/internal/application/queryproc"
	"github.com/knowbase/backend/internal/application/retrieval"
)

// ProviderSet Application 层总 ProviderSet
var ProviderSet = wire.NewSet(
	ingest.ProviderSet,
	retrieval.ProviderSet,
	queryproc.ProviderSet,
)
