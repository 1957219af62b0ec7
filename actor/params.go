package actor

import (
	"fmt"

	"uptime/exitcode"
	"uptime/peer"
)

// InitParams seeds the checker set. The three slices are zipped by index.
type InitParams struct {
	IDs       []peer.ID          `cbor:"1,keyasint" json:"ids"`
	Creators  []peer.ActorID     `cbor:"2,keyasint" json:"creators"`
	Addresses [][]peer.MultiAddr `cbor:"3,keyasint" json:"addresses"`
}

func NewInitParams(nodes []*peer.NodeInfo) *InitParams {
	p := &InitParams{
		IDs:       make([]peer.ID, 0, len(nodes)),
		Creators:  make([]peer.ActorID, 0, len(nodes)),
		Addresses: make([][]peer.MultiAddr, 0, len(nodes)),
	}
	for _, n := range nodes {
		p.IDs = append(p.IDs, n.ID)
		p.Creators = append(p.Creators, n.Creator)
		p.Addresses = append(p.Addresses, n.Addresses)
	}
	return p
}

// Nodes zips the parameters into records.
func (p *InitParams) Nodes() ([]*peer.NodeInfo, error) {
	if len(p.IDs) != len(p.Creators) || len(p.IDs) != len(p.Addresses) {
		return nil, exitcode.Wrap(exitcode.CannotDeserialize,
			fmt.Sprintf("init params length mismatch: %d ids, %d creators, %d addresses",
				len(p.IDs), len(p.Creators), len(p.Addresses)), nil)
	}

	nodes := make([]*peer.NodeInfo, 0, len(p.IDs))
	seen := make(map[peer.ID]struct{}, len(p.IDs))
	for i, id := range p.IDs {
		n := peer.NewNodeInfo(id, p.Creators[i], p.Addresses[i])
		if err := validate(n); err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			return nil, exitcode.Wrap(exitcode.CannotDeserialize, "duplicate seed peer "+string(id), nil)
		}
		seen[id] = struct{}{}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func validate(n *peer.NodeInfo) error {
	if n == nil {
		return exitcode.Wrap(exitcode.CannotDeserialize, "missing node info", nil)
	}
	if err := n.Validate(); err != nil {
		return exitcode.Wrap(exitcode.CannotDeserialize, "node info", err)
	}
	return nil
}
