package unique

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/huynhanx03/attackq/pkg/settings"
	t "github.com/huynhanx03/attackq/pkg/timer"
)

const totalBits = 63

var ErrBadLayout = errors.New("unique: node + step bits leave no room for the timestamp")

// SnowflakeNode hands out time-ordered int64 IDs for connections and attacks.
// Layout (high to low): millis since epoch | worker id | per-milli sequence.
type SnowflakeNode struct {
	mu        sync.Mutex
	lastMilli int64
	step      int64

	epoch     int64
	node      int64
	stepMax   int64
	timeShift uint8
	nodeShift uint8

	clock t.Timer
}

func NewSnowflakeNode(cfg settings.IDs, clock t.Timer) (*SnowflakeNode, error) {
	if int(cfg.NodeBits)+int(cfg.StepBits) >= totalBits-31 {
		return nil, ErrBadLayout
	}

	nodeMax := int64(-1 ^ (-1 << cfg.NodeBits))
	if cfg.WorkerID < 0 || cfg.WorkerID > nodeMax {
		return nil, errors.Errorf("unique: worker id %d outside [0, %d]", cfg.WorkerID, nodeMax)
	}

	return &SnowflakeNode{
		epoch:     cfg.Epoch,
		node:      cfg.WorkerID,
		stepMax:   int64(-1 ^ (-1 << cfg.StepBits)),
		timeShift: cfg.NodeBits + cfg.StepBits,
		nodeShift: cfg.StepBits,
		clock:     clock,
	}, nil
}

// Generate returns the next ID. IDs from one node are strictly increasing,
// even if the clock steps backwards.
func (n *SnowflakeNode) Generate() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.clock.Now().UnixMilli()
	if now < n.lastMilli {
		now = n.lastMilli
	}

	if now == n.lastMilli {
		n.step = (n.step + 1) & n.stepMax
		if n.step == 0 {
			// Sequence exhausted for this milli; borrow the next one.
			now++
		}
	} else {
		n.step = 0
	}

	n.lastMilli = now

	return ((now - n.epoch) << n.timeShift) | (n.node << n.nodeShift) | n.step
}
