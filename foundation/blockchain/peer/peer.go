// Package peer maintains the peer related information such as the address
// of the node a chain is pulled from and the status a node reports.
package peer

import (
	"fmt"
	"net/url"
	"strings"
)

// Set of paths a node serves its public information on.
const (
	ChainPath  = "/blockchain"
	StatusPath = "/v1/node/status"
)

// Peer represents information about a Node in the network.
type Peer struct {
	Host string
}

// New contructs a new peer value. The host can be a bare host:port or a
// full URL to the chain endpoint.
func New(host string) Peer {
	return Peer{
		Host: strings.TrimSuffix(host, "/"),
	}
}

// Match validates if the specified host matches this node.
func (p Peer) Match(host string) bool {
	return p.Host == New(host).Host
}

// ChainURL returns the URL to request the peer's chain from. A host that
// already carries a path is used as is.
func (p Peer) ChainURL() (string, error) {
	u, err := p.parse()
	if err != nil {
		return "", err
	}

	if u.Path == "" {
		u.Path = ChainPath
	}

	return u.String(), nil
}

// StatusURL returns the URL to request the peer's status from. Any path
// carried by the host is replaced.
func (p Peer) StatusURL() (string, error) {
	u, err := p.parse()
	if err != nil {
		return "", err
	}

	u.Path = StatusPath

	return u.String(), nil
}

// String implements the fmt.Stringer interface.
func (p Peer) String() string {
	return p.Host
}

func (p Peer) parse() (*url.URL, error) {
	host := p.Host
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parsing peer host %q: %w", p.Host, err)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("peer host %q has no host", p.Host)
	}

	return u, nil
}

// =============================================================================

// PeerStatus represents information about the status
// of any given peer.
type PeerStatus struct {
	Identity         uint16 `json:"identity"`
	LatestBlockHash  string `json:"latest_block_hash"`
	LatestBlockIndex uint64 `json:"latest_block_index"`
	Length           int    `json:"length"`
}
