package transport

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
)

// Telnet command bytes (RFC 854).
const (
	telnetSE   byte = 240
	telnetSB   byte = 250
	telnetWILL byte = 251
	telnetWONT byte = 252
	telnetDO   byte = 253
	telnetDONT byte = 254
	telnetIAC  byte = 255
)

type telnetTransport struct {
	conn net.Conn
	*stream
	writeMu sync.Mutex
}

func dialTelnet(ctx context.Context, target Target) (*telnetTransport, error) {
	dialer := &net.Dialer{Timeout: target.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", target.Address())
	if err != nil {
		return nil, &ConnectionError{Address: target.Address(), Err: err}
	}
	return newTelnetTransport(conn), nil
}

func newTelnetTransport(conn net.Conn) *telnetTransport {
	t := &telnetTransport{conn: conn}
	t.stream = newStream(&negotiationFilter{r: conn, reply: t.writeRaw})
	return t
}

// Write escapes IAC bytes and sends p.
func (t *telnetTransport) Write(p []byte) error {
	if bytes.IndexByte(p, telnetIAC) >= 0 {
		p = bytes.ReplaceAll(p, []byte{telnetIAC}, []byte{telnetIAC, telnetIAC})
	}
	return t.writeRaw(p)
}

func (t *telnetTransport) writeRaw(p []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err := t.conn.Write(p)
	return err
}

func (t *telnetTransport) Close() error {
	t.stream.close()
	return t.conn.Close()
}

func (t *telnetTransport) Protocol() Protocol {
	return ProtocolTelnet
}

const (
	stateData = iota
	stateIAC
	stateOption
	stateSub
	stateSubIAC
)

// negotiationFilter strips telnet commands from the data stream and refuses
// every option the peer offers or requests.
type negotiationFilter struct {
	r     io.Reader
	reply func([]byte) error
	state int
	verb  byte
}

func (f *negotiationFilter) Read(p []byte) (int, error) {
	for {
		n, err := f.r.Read(p)
		w := 0
		for i := 0; i < n; i++ {
			b := p[i]
			switch f.state {
			case stateData:
				switch b {
				case telnetIAC:
					f.state = stateIAC
				case 0x00, 0x11:
				default:
					p[w] = b
					w++
				}
			case stateIAC:
				switch b {
				case telnetIAC:
					p[w] = b
					w++
					f.state = stateData
				case telnetDO, telnetDONT, telnetWILL, telnetWONT:
					f.verb = b
					f.state = stateOption
				case telnetSB:
					f.state = stateSub
				default:
					f.state = stateData
				}
			case stateOption:
				f.refuse(f.verb, b)
				f.state = stateData
			case stateSub:
				if b == telnetIAC {
					f.state = stateSubIAC
				}
			case stateSubIAC:
				if b == telnetSE {
					f.state = stateData
				} else {
					f.state = stateSub
				}
			}
		}
		if w > 0 || err != nil {
			return w, err
		}
	}
}

func (f *negotiationFilter) refuse(verb, option byte) {
	var answer byte
	switch verb {
	case telnetDO:
		answer = telnetWONT
	case telnetWILL:
		answer = telnetDONT
	default:
		return
	}
	if f.reply != nil {
		_ = f.reply([]byte{telnetIAC, answer, option})
	}
}
