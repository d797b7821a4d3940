// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/darendal/powchain/app/services/node/handlers/v1/private"
	"github.com/darendal/powchain/app/services/node/handlers/v1/public"
	"github.com/darendal/powchain/foundation/blockchain/peer"
	"github.com/darendal/powchain/foundation/blockchain/state"
	"github.com/darendal/powchain/foundation/events"
	"github.com/darendal/powchain/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	Evts  *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		WS:    websocket.Upgrader{},
		Evts:  cfg.Evts,
	}

	// The chain is served unversioned so any node can pull from any other.
	app.Handle(http.MethodGet, "", peer.ChainPath, pbl.Chain)

	app.Handle(http.MethodGet, version, "/blocks/list", pbl.Chain)
	app.Handle(http.MethodGet, version, "/blocks/:index", pbl.Block)
	app.Handle(http.MethodGet, version, "/node/status", pbl.Status)
	app.Handle(http.MethodGet, version, "/events", pbl.Events)
}

// PrivateRoutes binds all the version 1 private routes.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
	}

	app.Handle(http.MethodPost, version, "/node/sync", prv.Sync)
	app.Handle(http.MethodPost, version, "/node/mine", prv.Mine)
	app.Handle(http.MethodDelete, version, "/node/mine", prv.CancelMine)
}
