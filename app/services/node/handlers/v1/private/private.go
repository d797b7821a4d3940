// Package private maintains the group of handlers for operator access.
package private

import (
	"context"
	"errors"
	"net/http"

	"github.com/darendal/powchain/business/web/errs"
	"github.com/darendal/powchain/foundation/blockchain/peer"
	"github.com/darendal/powchain/foundation/blockchain/state"
	"github.com/darendal/powchain/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of node control endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// Sync pulls the full chain from the peer in the request and adopts it.
func (h Handlers) Sync(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req syncRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	h.Log.Infow("sync", "traceid", v.TraceID, "peer", req.URL)

	if err := h.State.PullFrom(ctx, peer.New(req.URL)); err != nil {
		return err
	}

	resp := syncResponse{
		Status: "adopted",
		Length: h.State.RetrieveLength(),
		Latest: h.State.RetrieveLatestBlock().Hash,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Mine signals the worker to mine until the chain holds the requested
// number of blocks. The call doesn't wait for mining to complete.
func (h Handlers) Mine(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	if h.State.Worker == nil {
		return errs.NewTrusted(errors.New("background mining is not running"), http.StatusServiceUnavailable)
	}

	var req mineRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	h.Log.Infow("mine", "traceid", v.TraceID, "target", req.Size)
	h.State.Worker.SignalMineToSize(req.Size)

	resp := mineResponse{
		Status: "mining signaled",
		Target: req.Size,
		Length: h.State.RetrieveLength(),
	}

	return web.Respond(ctx, w, resp, http.StatusAccepted)
}

// CancelMine stops any mining in progress and clears the mining target.
func (h Handlers) CancelMine(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if h.State.Worker == nil {
		return errs.NewTrusted(errors.New("background mining is not running"), http.StatusServiceUnavailable)
	}

	h.State.Worker.SignalStopMining()

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}
