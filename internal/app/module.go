package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/creditledger/internal/app/api/server"
	"github.com/fatflowers/creditledger/internal/app/service/eventlog"
	"github.com/fatflowers/creditledger/internal/app/service/ledger"
	"github.com/fatflowers/creditledger/internal/app/service/statistics"
	"github.com/fatflowers/creditledger/internal/app/service/stripesync"
	"github.com/fatflowers/creditledger/internal/app/service/subscription"
	"github.com/fatflowers/creditledger/internal/platform/db"
	"github.com/fatflowers/creditledger/internal/store/gormstore"
	"github.com/fatflowers/creditledger/pkg/config"
	"github.com/fatflowers/creditledger/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	gormstore.Module,
	server.Module,
	ledger.Module,
	subscription.Module,
	statistics.Module,
	eventlog.Module,
	stripesync.Module,
)
