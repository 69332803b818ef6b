package models

// Position is the bookmark of a watched source. EVM sources use Block, mirror node
// sources use Timestamp with either LogIndex (contract logs) or TxID (transactions).
type Position struct {
	Block     uint64 `json:"block,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	LogIndex  uint   `json:"logIndex,omitempty"`
	TxID      string `json:"txId,omitempty"`
}

// IsZero reports whether nothing was processed yet
func (p Position) IsZero() bool {
	return p == Position{}
}

// Less orders positions of the same source
func (p Position) Less(o Position) bool {
	if p.Block != o.Block {
		return p.Block < o.Block
	}
	if p.Timestamp != o.Timestamp {
		return compareTimestamps(p.Timestamp, o.Timestamp) < 0
	}
	return p.LogIndex < o.LogIndex
}

// compareTimestamps compares mirror node "seconds.nanos" timestamps
func compareTimestamps(a, b string) int {
	as, an := splitTimestamp(a)
	bs, bn := splitTimestamp(b)
	if len(as) != len(bs) {
		if len(as) < len(bs) {
			return -1
		}
		return 1
	}
	if as != bs {
		if as < bs {
			return -1
		}
		return 1
	}
	for len(an) < len(bn) {
		an += "0"
	}
	for len(bn) < len(an) {
		bn += "0"
	}
	switch {
	case an < bn:
		return -1
	case an > bn:
		return 1
	}
	return 0
}

func splitTimestamp(ts string) (string, string) {
	for i := 0; i < len(ts); i++ {
		if ts[i] == '.' {
			return ts[:i], ts[i+1:]
		}
	}
	return ts, ""
}
