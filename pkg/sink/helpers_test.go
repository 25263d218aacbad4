package sink

import (
	"net/netip"
	"time"

	"github.com/huynhanx03/attackq/pkg/honeytrap/record"
)

func testAttack(id int64) *record.Attack {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	conn := record.Connection{
		Protocol:   record.ProtocolTCP,
		RemoteAddr: netip.MustParseAddr("203.0.113.7"),
		RemotePort: 4444,
		LocalAddr:  netip.MustParseAddr("192.0.2.1"),
		LocalPort:  445,
		Payload:    record.NewPayload([]byte("\x00\x00\x00\x85\xffSMB")),
	}
	return &record.Attack{
		ID:            id,
		StartTime:     start,
		EndTime:       start.Add(time.Second),
		AttackConn:    conn,
		ProxyConn:     conn,
		OperationMode: "normal",
	}
}

// badAttack cannot be converted to JSON.
func badAttack() *record.Attack {
	a := testAttack(1)
	a.AttackConn.Protocol = 250
	return a
}
