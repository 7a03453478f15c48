// Package peer maintains the set of known peer nodes and the messages used to
// tell them about newly sealed blocks.
package peer

import (
	"sort"
	"sync"

	"github.com/ardanlabs/blockvault/foundation/blockchain/signature"
)

// Peer represents information about a Node in the network.
type Peer struct {
	Host string `json:"host"`
}

// New constructs a new peer value.
func New(host string) Peer {
	return Peer{
		Host: host,
	}
}

// Match validates if the specified host matches this node.
func (p Peer) Match(host string) bool {
	return p.Host == host
}

// =============================================================================

// Status represents information about the status of any given peer.
type Status struct {
	LatestBlockHash string `json:"latest_block_hash"`
	Height          uint64 `json:"height"`
	Pending         int    `json:"pending"`
	Verified        bool   `json:"verified"`
	NodeAddress     string `json:"node_address"`
	KnownPeers      []Peer `json:"known_peers"`
}

// Announcement tells a peer a block was sealed. Peers only record it, there
// is no replication.
type Announcement struct {
	Host          string  `json:"host"`
	Hash          string  `json:"hash"`
	PrevBlockHash string  `json:"prev_block_hash"`
	TimeStamp     float64 `json:"timestamp"`
	Height        uint64  `json:"height"`
}

// SignedAnnouncement is an announcement signed by the sealing node's key.
type SignedAnnouncement struct {
	Announcement
	Signature signature.Signature `json:"signature"`
}

// =============================================================================

// PeerSet represents the data representation to maintain a set of known peers.
type PeerSet struct {
	mu  sync.RWMutex
	set map[Peer]struct{}
}

// NewPeerSet constructs a new set to manage node peer information.
func NewPeerSet() *PeerSet {
	return &PeerSet{
		set: make(map[Peer]struct{}),
	}
}

// Add adds a new node to the set and reports if it was new.
func (ps *PeerSet) Add(peer Peer) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if _, exists := ps.set[peer]; exists {
		return false
	}

	ps.set[peer] = struct{}{}
	return true
}

// Remove removes a node from the set.
func (ps *PeerSet) Remove(peer Peer) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	delete(ps.set, peer)
}

// Copy returns the known peers sorted by host, leaving out the specified host.
func (ps *PeerSet) Copy(host string) []Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	peers := make([]Peer, 0, len(ps.set))
	for peer := range ps.set {
		if !peer.Match(host) {
			peers = append(peers, peer)
		}
	}

	sort.Slice(peers, func(i, j int) bool {
		return peers[i].Host < peers[j].Host
	})

	return peers
}
