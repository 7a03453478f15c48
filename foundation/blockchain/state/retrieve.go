package state

import (
	"github.com/ardanlabs/blockvault/foundation/blockchain/database"
	"github.com/ardanlabs/blockvault/foundation/blockchain/peer"
)

// RetrieveHost returns a copy of host information.
func (s *State) RetrieveHost() string {
	return s.host
}

// RetrieveKeyCustody returns the key custody policy the node runs with.
func (s *State) RetrieveKeyCustody() string {
	return s.custody
}

// RetrieveCipherScheme returns the name of the cipher used to seal blocks.
func (s *State) RetrieveCipherScheme() string {
	return s.cipher.Scheme()
}

// RetrieveLatestBlock returns a copy of the current latest block.
func (s *State) RetrieveLatestBlock() database.Block {
	block, _ := s.db.LatestBlock()
	return block
}

// RetrieveHeight returns the number of blocks in the chain.
func (s *State) RetrieveHeight() uint64 {
	return uint64(s.db.Len())
}

// RetrievePending returns a copy of the pending transactions in the order
// they were submitted.
func (s *State) RetrievePending() []string {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	pending := make([]string, len(s.pending))
	copy(pending, s.pending)

	return pending
}

// RetrieveKnownPeers retrieves a copy of the known peer list.
func (s *State) RetrieveKnownPeers() []peer.Peer {
	return s.knownPeers.Copy(s.host)
}

// AddKnownPeer provides the ability to add a new peer to the known peer
// list. It reports if the peer was new.
func (s *State) AddKnownPeer(p peer.Peer) bool {
	if p.Match(s.host) {
		return false
	}
	return s.knownPeers.Add(p)
}
