/*Package comm provides serial and TCP communication for the rig's instruments.

Most usages of this package boil down to:
	1.  embed RemoteDevice in a type that represents your hardware.
	2.  set TxTerm/RxTerm if the instrument does not terminate with
		carriage returns (the default provided by package comm)
	3.  write whatever methods you see fit on top of Send/Recv/SendRecv.

The connection is opened with an exponential backoff; motor controllers and
bench meters alike tend to refuse or drop connections when they are thrashed.
*/
package comm

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"
)

var (
	// ErrNoSerialConf is generated when IsSerial is true but no serial
	// configuration was provided
	ErrNoSerialConf = errors.New("device is serial but has no serial config")

	// ErrNotConnected is generated when Conn is nil and Send or Recv is called
	ErrNotConnected = errors.New("conn is nil, not connected to remote")

	// ErrTerminatorNotFound is generated when the termination byte is not found
	// in a response
	ErrTerminatorNotFound = errors.New("termination byte not found")
)

// Sender has a Send method that passes along a byte slice
type Sender interface {
	Send([]byte) error
}

// Recver has a Recv method that gets a byte slice
type Recver interface {
	Recv() ([]byte, error)
}

// SendRecver can send and receive, and provides a method that sends then receives
type SendRecver interface {
	Sender
	Recver

	SendRecv([]byte) ([]byte, error)
}

// Opener can open ("establish a connection" in io language)
type Opener interface {
	Open() error
}

// A Communicator can Open, Send, Recv and Close
type Communicator interface {
	io.Closer
	Opener
	SendRecver
}

// RemoteDevice has an address and implements Communicator.
//
// If IsSerial is true, SerConf must be populated before Open is called.
type RemoteDevice struct {
	Addr     string
	IsSerial bool
	SerConf  *serial.Config
	Conn     io.ReadWriteCloser

	// TxTerm and RxTerm are the transmit and receive termination bytes.
	// Both default to carriage returns.
	TxTerm byte
	RxTerm byte

	// Timeout is used for TCP dial, read and write deadlines
	Timeout time.Duration
}

// NewRemoteDevice creates a new RemoteDevice instance with CR terminators
func NewRemoteDevice(addr string, isSerial bool, conf *serial.Config) RemoteDevice {
	return RemoteDevice{
		Addr:     addr,
		IsSerial: isSerial,
		SerConf:  conf,
		TxTerm:   '\r',
		RxTerm:   '\r',
		Timeout:  3 * time.Second}
}

// Open the connection, setting the Conn variable.
// Opening an already-open device is a no-op, so callers may open lazily
// before each transaction without dialing a new link every time.
func (rd *RemoteDevice) Open() error {
	if rd.Conn != nil {
		return nil
	}
	// the controllers do not like being connection thrashed,
	// back off exponentially instead of hammering the port
	wasTimeout := false
	op := func() error {
		err := rd.open()
		if err != nil {
			errS := strings.ToLower(err.Error())
			if strings.Contains(errS, "refused") {
				return err
			}
			wasTimeout = true
			return nil
		}
		return nil
	}

	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock})
	if err == nil && !wasTimeout {
		return nil
	}
	if wasTimeout {
		return fmt.Errorf("connection timeout to %s", rd.Addr)
	}
	return err
}

func (rd *RemoteDevice) open() error {
	var (
		err  error
		conn io.ReadWriteCloser
	)
	if rd.IsSerial {
		if rd.SerConf == nil {
			return ErrNoSerialConf
		}
		conn, err = serial.OpenPort(rd.SerConf)
	} else {
		conn, err = TCPSetup(rd.Addr, rd.Timeout)
	}
	if err != nil {
		return err
	}
	rd.Conn = conn
	return nil
}

// Close the connection, nil-ing the Conn variable.  The connection is
// discarded even if the close errors; a conn that failed to close is not
// worth reusing.
func (rd *RemoteDevice) Close() error {
	if rd.Conn == nil {
		return nil
	}
	err := rd.Conn.Close()
	rd.Conn = nil
	return err
}

// Send writes data to the remote with the Tx terminator appended
func (rd *RemoteDevice) Send(b []byte) error {
	if rd.Conn == nil {
		return ErrNotConnected
	}
	b = append(b, rd.TxTerm)
	_, err := rd.Conn.Write(b)
	return err
}

// Recv receives data from the remote and strips the Rx terminator
func (rd *RemoteDevice) Recv() ([]byte, error) {
	if rd.Conn == nil {
		return nil, ErrNotConnected
	}
	buf, err := bufio.NewReader(rd.Conn).ReadBytes(rd.RxTerm)
	if err != nil {
		return []byte{}, err
	}
	if bytes.HasSuffix(buf, []byte{rd.RxTerm}) {
		idx := bytes.IndexByte(buf, rd.RxTerm)
		return buf[:idx], nil
	}
	return buf, ErrTerminatorNotFound
}

// SendRecv sends a buffer after appending the Tx terminator,
// then returns the response with the Rx terminator stripped
func (rd *RemoteDevice) SendRecv(b []byte) ([]byte, error) {
	if rd.Conn == nil {
		return []byte{}, ErrNotConnected
	}
	err := rd.Send(b)
	if err != nil {
		return []byte{}, err
	}
	return rd.Recv()
}

// TCPSetup opens a new TCP connection and sets a timeout on connect, read, and write
func TCPSetup(addr string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(timeout)
	conn.SetReadDeadline(deadline)
	conn.SetWriteDeadline(deadline)
	return conn, nil
}
