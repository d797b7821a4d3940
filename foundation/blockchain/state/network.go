package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/darendal/powchain/foundation/blockchain/database"
	"github.com/darendal/powchain/foundation/blockchain/peer"
	"github.com/darendal/powchain/foundation/validate"
)

// maxChainBytes caps the size of a chain accepted from a peer.
const maxChainBytes = 64 << 20

// peerChain is the shape a chain received from a peer must have.
type peerChain struct {
	Blocks []database.Block `json:"blocks" validate:"min=1,dive"`
}

// PullFrom requests the full chain from the specified peer and replaces the
// local chain with it. Any mining in progress is cancelled first. Unless the
// node runs in strict mode the received chain is trusted as is.
func (s *State) PullFrom(ctx context.Context, pr peer.Peer) error {
	s.evHandler("state: PullFrom: started: %s", pr)
	defer s.evHandler("state: PullFrom: completed: %s", pr)

	url, err := pr.ChainURL()
	if err != nil {
		return &SyncError{URL: pr.Host, Err: err}
	}

	blocks, err := s.NetRequestPeerChain(ctx, url)
	if err != nil {
		return err
	}

	s.evHandler("state: PullFrom: received blks[%d] from %s", len(blocks), url)

	// If a mining operation is being executed it needs to stop immediately.
	// The G executing the mining will not continue until done is called.
	// That allows this function to replace the chain before mining resumes.
	if s.Worker != nil {
		done := s.Worker.SignalCancelMining()
		defer func() {
			s.evHandler("state: PullFrom: signal mining to resume")
			done()
		}()
	}

	if err := s.db.Adopt(blocks); err != nil {
		var ce *database.ChainIntegrityError
		if errors.As(err, &ce) {
			return &SyncError{URL: url, Err: fmt.Errorf("rejected chain: %w", err)}
		}
		return fmt.Errorf("adopting chain from %s: %w", url, err)
	}

	s.evHandler("state: PullFrom: adopted blks[%d]: latest %s", s.db.Len(), s.db.LatestBlock())

	return nil
}

// NetRequestPeerChain requests the full chain from the specified URL. The
// response must be a JSON array of well formed blocks.
func (s *State) NetRequestPeerChain(ctx context.Context, url string) ([]database.Block, error) {
	s.evHandler("state: NetRequestPeerChain: started: %s", url)
	defer s.evHandler("state: NetRequestPeerChain: completed: %s", url)

	data, err := s.send(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}

	blocks, err := database.DecodeBlocks(data, url)
	if err != nil {
		return nil, &SyncError{URL: url, Err: err}
	}

	if err := validate.Check(peerChain{Blocks: blocks}); err != nil {
		return nil, &SyncError{URL: url, Err: fmt.Errorf("malformed chain: %w", err)}
	}

	return blocks, nil
}

// NetQueryPeerStatus asks the specified peer for its current status.
func (s *State) NetQueryPeerStatus(ctx context.Context, pr peer.Peer) (peer.PeerStatus, error) {
	s.evHandler("state: NetQueryPeerStatus: started: %s", pr)
	defer s.evHandler("state: NetQueryPeerStatus: completed: %s", pr)

	url, err := pr.StatusURL()
	if err != nil {
		return peer.PeerStatus{}, &SyncError{URL: pr.Host, Err: err}
	}

	data, err := s.send(ctx, http.MethodGet, url)
	if err != nil {
		return peer.PeerStatus{}, err
	}

	var ps peer.PeerStatus
	if err := json.Unmarshal(data, &ps); err != nil {
		return peer.PeerStatus{}, &SyncError{URL: url, Err: fmt.Errorf("decoding status: %w", err)}
	}

	return ps, nil
}

// =============================================================================

// send is a helper function to send an HTTP request to a node and return
// the body of a successful response.
func (s *State) send(ctx context.Context, method string, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, &SyncError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &SyncError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxChainBytes))
	if err != nil {
		return nil, &SyncError{URL: url, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &SyncError{URL: url, Status: resp.StatusCode, Err: errors.New(msg)}
	}

	return data, nil
}
