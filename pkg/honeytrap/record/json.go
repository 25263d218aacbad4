package record

import (
	"encoding/hex"
	"net/netip"
	"time"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// timeLayout matches strftime("%FT%TZ") on a UTC time.
const timeLayout = "2006-01-02T15:04:05Z"

var (
	ErrUnknownProtocol = errors.New("record: unknown protocol")
	ErrNotIPv4         = errors.New("record: address is not IPv4")
)

var protocolNames = map[Protocol]string{
	ProtocolIP:   "ip",
	ProtocolICMP: "icmp",
	ProtocolTCP:  "tcp",
	ProtocolUDP:  "udp",
}

// String returns the protocol name, or "" if unknown.
func (p Protocol) String() string {
	return protocolNames[p]
}

// ParseProtocol maps a protocol name back to its number.
func ParseProtocol(name string) (Protocol, error) {
	for p, n := range protocolNames {
		if n == name {
			return p, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownProtocol, "%q", name)
}

type payloadDoc struct {
	MD5     string `json:"md5_hash"`
	SHA512  string `json:"sha512_hash"`
	Length  int    `json:"length"`
	DataHex string `json:"data_hex"`
}

type connectionDoc struct {
	Protocol   string     `json:"protocol"`
	RemoteIP   string     `json:"remote_ip"`
	RemotePort uint16     `json:"remote_port"`
	LocalIP    string     `json:"local_ip"`
	LocalPort  uint16     `json:"local_port"`
	Payload    payloadDoc `json:"payload"`
}

type downloadDoc struct {
	Protocol   string     `json:"protocol"`
	RemoteIP   string     `json:"remote_ip"`
	RemotePort uint16     `json:"remote_port"`
	LocalIP    string     `json:"local_ip"`
	LocalPort  uint16     `json:"local_port"`
	Type       string     `json:"type"`
	Username   string     `json:"username"`
	Password   string     `json:"password"`
	URI        string     `json:"uri"`
	Filename   string     `json:"filename"`
	Payload    payloadDoc `json:"payload"`
}

type attackDoc struct {
	ID               int64         `json:"id,omitempty"`
	IsVirtual        bool          `json:"is_virtual"`
	Timestamp        string        `json:"@timestamp"`
	StartTime        string        `json:"start_time"`
	EndTime          string        `json:"end_time"`
	AttackConnection connectionDoc `json:"attack_connection"`
	ProxyConnection  connectionDoc `json:"proxy_connection"`
	OperationMode    string        `json:"operation_mode"`
	DownloadCount    int           `json:"download_count"`
	DownloadTries    int           `json:"download_tries"`
	Downloads        []downloadDoc `json:"downloads"`
}

// MarshalJSON renders the attack log document.
func (a *Attack) MarshalJSON() ([]byte, error) {
	doc, err := a.toDoc()
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// UnmarshalJSON parses an attack log document. Digests are recomputed from
// the decoded payload bytes.
func (a *Attack) UnmarshalJSON(raw []byte) error {
	var doc attackDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return a.fromDoc(&doc)
}

func (a *Attack) toDoc() (*attackDoc, error) {
	attackConn, err := a.AttackConn.toDoc()
	if err != nil {
		return nil, errors.Wrap(err, "attack connection")
	}
	proxyConn, err := a.ProxyConn.toDoc()
	if err != nil {
		return nil, errors.Wrap(err, "proxy connection")
	}

	downloads := make([]downloadDoc, 0, len(a.Downloads))
	for i := range a.Downloads {
		d, err := a.Downloads[i].toDoc()
		if err != nil {
			return nil, errors.Wrapf(err, "download[%d]", i)
		}
		downloads = append(downloads, d)
	}

	start := a.StartTime.UTC().Format(timeLayout)
	return &attackDoc{
		ID:               a.ID,
		IsVirtual:        a.Virtual,
		Timestamp:        start,
		StartTime:        start,
		EndTime:          a.EndTime.UTC().Format(timeLayout),
		AttackConnection: attackConn,
		ProxyConnection:  proxyConn,
		OperationMode:    a.OperationMode,
		DownloadCount:    len(downloads),
		DownloadTries:    a.DownloadTries,
		Downloads:        downloads,
	}, nil
}

func (a *Attack) fromDoc(doc *attackDoc) error {
	start, err := time.Parse(timeLayout, doc.StartTime)
	if err != nil {
		return errors.Wrap(err, "start_time")
	}
	end, err := time.Parse(timeLayout, doc.EndTime)
	if err != nil {
		return errors.Wrap(err, "end_time")
	}

	var out Attack
	if err := out.AttackConn.fromDoc(&doc.AttackConnection); err != nil {
		return errors.Wrap(err, "attack connection")
	}
	if err := out.ProxyConn.fromDoc(&doc.ProxyConnection); err != nil {
		return errors.Wrap(err, "proxy connection")
	}

	for i := range doc.Downloads {
		var d Download
		if err := d.fromDoc(&doc.Downloads[i]); err != nil {
			return errors.Wrapf(err, "download[%d]", i)
		}
		out.Downloads = append(out.Downloads, d)
	}

	out.ID = doc.ID
	out.Virtual = doc.IsVirtual
	out.StartTime = start
	out.EndTime = end
	out.OperationMode = doc.OperationMode
	out.DownloadTries = doc.DownloadTries

	*a = out
	return nil
}

func (c *Connection) toDoc() (connectionDoc, error) {
	name := c.Protocol.String()
	if name == "" {
		return connectionDoc{}, errors.Wrapf(ErrUnknownProtocol, "number %d", c.Protocol)
	}
	remote, err := ipv4String(c.RemoteAddr)
	if err != nil {
		return connectionDoc{}, errors.Wrap(err, "remote")
	}
	local, err := ipv4String(c.LocalAddr)
	if err != nil {
		return connectionDoc{}, errors.Wrap(err, "local")
	}

	return connectionDoc{
		Protocol:   name,
		RemoteIP:   remote,
		RemotePort: c.RemotePort,
		LocalIP:    local,
		LocalPort:  c.LocalPort,
		Payload:    c.Payload.toDoc(),
	}, nil
}

// fromDoc decodes doc into c. An absent connection object decodes to the
// zero Connection.
func (c *Connection) fromDoc(doc *connectionDoc) error {
	if *doc == (connectionDoc{}) {
		*c = Connection{}
		return nil
	}

	proto, err := ParseProtocol(doc.Protocol)
	if err != nil {
		return err
	}
	remote, err := parseIPv4(doc.RemoteIP)
	if err != nil {
		return errors.Wrap(err, "remote_ip")
	}
	local, err := parseIPv4(doc.LocalIP)
	if err != nil {
		return errors.Wrap(err, "local_ip")
	}
	payload, err := doc.Payload.toPayload()
	if err != nil {
		return errors.Wrap(err, "payload")
	}

	*c = Connection{
		Protocol:   proto,
		RemoteAddr: remote,
		RemotePort: doc.RemotePort,
		LocalAddr:  local,
		LocalPort:  doc.LocalPort,
		Payload:    payload,
	}
	return nil
}

func (d *Download) toDoc() (downloadDoc, error) {
	conn, err := d.Connection.toDoc()
	if err != nil {
		return downloadDoc{}, err
	}
	return downloadDoc{
		Protocol:   conn.Protocol,
		RemoteIP:   conn.RemoteIP,
		RemotePort: conn.RemotePort,
		LocalIP:    conn.LocalIP,
		LocalPort:  conn.LocalPort,
		Type:       d.Type,
		Username:   d.User,
		Password:   d.Password,
		URI:        d.URI,
		Filename:   d.Filename,
		Payload:    conn.Payload,
	}, nil
}

func (d *Download) fromDoc(doc *downloadDoc) error {
	conn := connectionDoc{
		Protocol:   doc.Protocol,
		RemoteIP:   doc.RemoteIP,
		RemotePort: doc.RemotePort,
		LocalIP:    doc.LocalIP,
		LocalPort:  doc.LocalPort,
		Payload:    doc.Payload,
	}
	if err := d.Connection.fromDoc(&conn); err != nil {
		return err
	}
	d.Type = doc.Type
	d.User = doc.Username
	d.Password = doc.Password
	d.URI = doc.URI
	d.Filename = doc.Filename
	return nil
}

func (p Payload) toDoc() payloadDoc {
	return payloadDoc{
		MD5:     p.MD5,
		SHA512:  p.SHA512,
		Length:  len(p.Data),
		DataHex: hex.EncodeToString(p.Data),
	}
}

func (doc payloadDoc) toPayload() (Payload, error) {
	data, err := hex.DecodeString(doc.DataHex)
	if err != nil {
		return Payload{}, err
	}
	if doc.Length != len(data) {
		return Payload{}, errors.Errorf("length %d does not match %d decoded bytes", doc.Length, len(data))
	}
	return NewPayload(data), nil
}

// ipv4String renders addr; the zero Addr is the unspecified address, as an
// all-zero in_addr would be.
func ipv4String(addr netip.Addr) (string, error) {
	if !addr.IsValid() {
		return netip.IPv4Unspecified().String(), nil
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return "", errors.Wrapf(ErrNotIPv4, "%s", addr)
	}
	return addr.String(), nil
}

func parseIPv4(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, err
	}
	if !addr.Is4() {
		return netip.Addr{}, errors.Wrapf(ErrNotIPv4, "%s", s)
	}
	return addr, nil
}
