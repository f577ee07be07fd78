// internal/protocol/serial/transport_test.go
package serial

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gobug "go.bug.st/serial"

	"register-terminal/internal/protocol"
)

type fakePort struct {
	mu       sync.Mutex
	written  bytes.Buffer
	chunks   [][]byte
	readErr  error
	writeErr error
	shortBy  int
	closed   bool
	timeouts []time.Duration
	onRead   func()
}

func (p *fakePort) SetReadTimeout(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeouts = append(p.timeouts, timeout)
	return nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.written.Write(b)
	return len(b) - p.shortBy, nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.onRead != nil {
		p.onRead()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.chunks) == 0 {
		return 0, nil
	}
	n := copy(b, p.chunks[0])
	p.chunks = p.chunks[1:]
	return n, nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func useFakePort(t *testing.T, port *fakePort, openErr error) *gobug.Mode {
	t.Helper()
	var captured gobug.Mode
	prev := openPort
	openPort = func(name string, mode *gobug.Mode) (portHandle, error) {
		if openErr != nil {
			return nil, openErr
		}
		captured = *mode
		return port, nil
	}
	t.Cleanup(func() { openPort = prev })
	return &captured
}

func openTransport(t *testing.T, port *fakePort) *Transport {
	t.Helper()
	useFakePort(t, port, nil)
	tr := NewTransport(nil)
	require.NoError(t, tr.Open(protocol.ConnectionConfig{Port: "/dev/ttyUSB0", BaudRate: 115200}))
	return tr
}

func TestOpenUsesEightNoneOne(t *testing.T) {
	mode := useFakePort(t, &fakePort{}, nil)
	tr := NewTransport(nil)

	require.NoError(t, tr.Open(protocol.ConnectionConfig{Port: "COM5", BaudRate: 9600}))

	assert.True(t, tr.IsOpen())
	assert.Equal(t, 9600, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, gobug.NoParity, mode.Parity)
	assert.Equal(t, gobug.OneStopBit, mode.StopBits)
	assert.Equal(t, protocol.DefaultReadTimeout, tr.Config().ReadTimeout)
}

func TestOpenFailureLeavesTransportClosed(t *testing.T) {
	useFakePort(t, nil, errors.New("no such file or directory"))
	tr := NewTransport(nil)

	err := tr.Open(protocol.ConnectionConfig{Port: "/dev/ttyNOPE", BaudRate: 115200})
	require.Error(t, err)
	assert.True(t, errors.Is(err, protocol.ErrPortUnavailable))
	assert.False(t, tr.IsOpen())

	err = tr.WriteLine("read 0x1\r\n")
	assert.True(t, errors.Is(err, protocol.ErrNotConnected))
}

func TestOpenNonexistentPort(t *testing.T) {
	tr := NewTransport(nil)

	err := tr.Open(protocol.ConnectionConfig{Port: "/dev/register-terminal-does-not-exist", BaudRate: 115200})
	require.Error(t, err)
	assert.Equal(t, protocol.KindPortUnavailable, protocol.KindOf(err))
	assert.False(t, tr.IsOpen())
}

func TestOpenClosesPreviousPort(t *testing.T) {
	first := &fakePort{}
	tr := openTransport(t, first)

	useFakePort(t, &fakePort{}, nil)
	require.NoError(t, tr.Open(protocol.ConnectionConfig{Port: "COM6", BaudRate: 115200}))

	assert.True(t, first.closed)
	assert.Equal(t, "COM6", tr.Config().Port)
}

func TestCloseIsIdempotent(t *testing.T) {
	assert.NoError(t, NewTransport(nil).Close())

	port := &fakePort{}
	tr := openTransport(t, port)

	assert.NoError(t, tr.Close())
	assert.NoError(t, tr.Close())
	assert.True(t, port.closed)
	assert.False(t, tr.IsOpen())
}

func TestWriteLine(t *testing.T) {
	port := &fakePort{}
	tr := openTransport(t, port)

	require.NoError(t, tr.WriteLine("write 0x20000000 0xDEADBEEF\r\n"))
	assert.Equal(t, "write 0x20000000 0xDEADBEEF\r\n", port.written.String())
}

func TestWriteLineFaults(t *testing.T) {
	t.Run("driver error", func(t *testing.T) {
		tr := openTransport(t, &fakePort{writeErr: errors.New("port has been closed")})
		err := tr.WriteLine("read 0x1\r\n")
		assert.True(t, errors.Is(err, protocol.ErrTransport))
	})

	t.Run("short write", func(t *testing.T) {
		tr := openTransport(t, &fakePort{shortBy: 1})
		err := tr.WriteLine("read 0x1\r\n")
		assert.True(t, errors.Is(err, protocol.ErrTransport))
	})
}

func TestReadLine(t *testing.T) {
	tests := []struct {
		name   string
		chunks [][]byte
		want   string
	}{
		{"single chunk", [][]byte{[]byte("0x410FC241\r\n")}, "0x410FC241"},
		{"split across reads", [][]byte{[]byte("O"), []byte("K\r"), []byte("\n")}, "OK"},
		{"partial line on timeout", [][]byte{[]byte("PART")}, "PART"},
		{"silence", nil, ""},
		{"invalid utf-8", [][]byte{{0xFF, 'O', 'K', '\n'}}, "\uFFFDOK"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := openTransport(t, &fakePort{chunks: tt.chunks})

			line, err := tr.ReadLine(100 * time.Millisecond)
			require.NoError(t, err)
			assert.Equal(t, tt.want, line)
		})
	}
}

func TestReadLineKeepsBytesAfterTerminator(t *testing.T) {
	port := &fakePort{chunks: [][]byte{[]byte("first\r\nsecond\r\n")}}
	tr := openTransport(t, port)

	line, err := tr.ReadLine(100 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "first", line)

	line, err = tr.ReadLine(100 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "second", line)
	assert.Len(t, port.timeouts, 1)
}

func TestReadLineFaults(t *testing.T) {
	_, err := NewTransport(nil).ReadLine(time.Millisecond)
	assert.True(t, errors.Is(err, protocol.ErrNotConnected))

	tr := openTransport(t, &fakePort{readErr: errors.New("device reports readiness to read but returned no data")})
	_, err = tr.ReadLine(100 * time.Millisecond)
	assert.True(t, errors.Is(err, protocol.ErrTransport))
}

func TestIsOpenDuringRead(t *testing.T) {
	reading := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	port := &fakePort{
		chunks: [][]byte{[]byte("OK\n")},
		onRead: func() {
			once.Do(func() { close(reading) })
			<-release
		},
	}
	useFakePort(t, port, nil)

	transport := NewTransport(nil)
	require.NoError(t, transport.Open(protocol.ConnectionConfig{Port: "COM5", BaudRate: 115200}))

	done := make(chan string, 1)
	go func() {
		line, _ := transport.ReadLine(time.Second)
		done <- line
	}()
	<-reading

	open := make(chan bool, 1)
	go func() { open <- transport.IsOpen() }()
	select {
	case isOpen := <-open:
		assert.True(t, isOpen)
	case <-time.After(time.Second):
		t.Fatal("IsOpen waited for ReadLine")
	}

	close(release)
	assert.Equal(t, "OK", <-done)
}
