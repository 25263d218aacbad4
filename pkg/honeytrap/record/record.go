// Package record holds the attack records that flow through the queues:
// an attack, the attacker and proxy connections it spans, and any files the
// attacker tried to make the honeypot download.
package record

import (
	"crypto/md5"
	"crypto/sha512"
	"encoding/hex"
	"net/netip"
	"time"
)

// Protocol is an IP protocol number.
type Protocol uint8

const (
	ProtocolIP   Protocol = 0
	ProtocolICMP Protocol = 1
	ProtocolTCP  Protocol = 6
	ProtocolUDP  Protocol = 17
)

// Payload is a captured byte stream with its digests.
type Payload struct {
	Data   []byte
	MD5    string
	SHA512 string
}

// NewPayload computes the digests of data. data is referenced, not copied.
func NewPayload(data []byte) Payload {
	md5sum := md5.Sum(data)
	shasum := sha512.Sum512(data)
	return Payload{
		Data:   data,
		MD5:    hex.EncodeToString(md5sum[:]),
		SHA512: hex.EncodeToString(shasum[:]),
	}
}

// Len returns the payload size in bytes.
func (p Payload) Len() int {
	return len(p.Data)
}

// Connection is one side of an attack: attacker to honeypot, or honeypot to
// the proxy/mirror target.
type Connection struct {
	Protocol   Protocol
	RemoteAddr netip.Addr
	RemotePort uint16
	LocalAddr  netip.Addr
	LocalPort  uint16
	Payload    Payload
}

// Download is a file the attacker asked the honeypot to fetch.
type Download struct {
	Connection
	Type     string
	User     string
	Password string
	URI      string
	Filename string
}

// Attack is a complete attack record.
type Attack struct {
	ID            int64
	Virtual       bool
	StartTime     time.Time
	EndTime       time.Time
	AttackConn    Connection
	ProxyConn     Connection
	OperationMode string
	Downloads     []Download
	DownloadTries int
}

// Duration returns how long the attack connection lasted.
func (a *Attack) Duration() time.Duration {
	return a.EndTime.Sub(a.StartTime)
}

// Release drops the captured payload bytes so a discarded attack does not
// pin them in memory. Used as a queue teardown destructor.
func (a *Attack) Release() {
	a.AttackConn.Payload.Data = nil
	a.ProxyConn.Payload.Data = nil
	for i := range a.Downloads {
		a.Downloads[i].Payload.Data = nil
	}
	a.Downloads = nil
}
