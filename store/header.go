package store

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// defaultBits is a fixed, unused-for-verification difficulty target. The
// simulator does no proof-of-work (spec.md §1 Non-goals); the field is
// carried only because it is part of the header whose hash becomes the
// block id.
const defaultBits = 0x207fffff

// BuildHeader assembles the wire.BlockHeader whose double-SHA-256 becomes a
// block's identifier (spec.md §3 invariant 7). Nonce is always zero since no
// proof-of-work is performed.
func BuildHeader(prevBlockID chainhash.Hash, merkleRoot chainhash.Hash, timestamp int64) *wire.BlockHeader {
	return &wire.BlockHeader{
		Version:    1,
		PrevBlock:  prevBlockID,
		MerkleRoot: merkleRoot,
		Timestamp:  time.Unix(timestamp, 0),
		Bits:       defaultBits,
		Nonce:      0,
	}
}

// HeaderBlockID computes a header's block id: the double-SHA-256 of its
// serialized form, exactly what wire.BlockHeader.BlockHash does.
func HeaderBlockID(h *wire.BlockHeader) chainhash.Hash {
	return h.BlockHash()
}

func genesisBlockRecord(genesisTime int64) *BlockRecord {
	var zero chainhash.Hash
	header := BuildHeader(zero, zero, genesisTime)
	blockID := HeaderBlockID(header)

	return &BlockRecord{
		Height:      0,
		BlockID:     blockID.String(),
		PrevBlockID: zero.String(),
		MerkleRoot:  zero.String(),
		Timestamp:   genesisTime,
		MinedAt:     genesisTime,
	}
}
