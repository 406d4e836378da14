// Package source opens DLT input streams: stored files, optionally
// compressed, and live TCP connections to a DLT daemon.
package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// DefaultHost and DefaultPort address the local DLT daemon.
const (
	DefaultHost = "localhost"
	DefaultPort = 3490
)

// readBufferSize is the buffered reader size for files and connections.
const readBufferSize = 64 * 1024

// Compression identifies the container format of a stored file.
type Compression string

// Compression formats recognized by OpenFile.
const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Detect identifies the compression of a stream from its first bytes.
func Detect(prefix []byte) Compression {
	switch {
	case bytes.HasPrefix(prefix, zstdMagic):
		return CompressionZstd
	case bytes.HasPrefix(prefix, lz4Magic):
		return CompressionLZ4
	default:
		return CompressionNone
	}
}

// File is an opened DLT file, decompressed if needed.
type File struct {
	io.Reader
	// Compression is the detected container format.
	Compression Compression
	// Path is the opened file path.
	Path string

	closers []func() error
}

// Close releases the decompressor and the file.
func (f *File) Close() error {
	var errs []error
	for _, c := range f.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenFile opens a stored DLT file. Zstandard and LZ4 frame compressed
// files are detected by their magic number and decompressed transparently.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open DLT file: %w", err)
	}
	out, err := newFile(f, f.Close)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open DLT file %s: %w", path, err)
	}
	out.Path = path
	return out, nil
}

// NewFile wraps an already-open stream the way OpenFile does.
func NewFile(r io.Reader) (*File, error) {
	return newFile(r, nil)
}

func newFile(r io.Reader, closeFn func() error) (*File, error) {
	br := bufio.NewReaderSize(r, readBufferSize)
	// Peek returns fewer bytes with io.EOF for short files, which are
	// then treated as uncompressed.
	prefix, err := br.Peek(len(zstdMagic))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read file header: %w", err)
	}

	file := &File{Compression: Detect(prefix)}
	switch file.Compression {
	case CompressionZstd:
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		file.Reader = bufio.NewReaderSize(dec, readBufferSize)
		file.closers = append(file.closers, func() error {
			dec.Close()
			return nil
		})
	case CompressionLZ4:
		file.Reader = bufio.NewReaderSize(lz4.NewReader(br), readBufferSize)
	default:
		file.Reader = br
	}
	if closeFn != nil {
		file.closers = append(file.closers, closeFn)
	}
	return file, nil
}

// Addr joins host and port, substituting defaults for empty values.
func Addr(host string, port int) string {
	if host == "" {
		host = DefaultHost
	}
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Conn is a buffered connection to a DLT daemon.
type Conn struct {
	*bufio.Reader
	conn net.Conn
}

// Close closes the connection. A Read blocked on it returns an error.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the daemon address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Dial connects to the DLT daemon at host:port. The connection is closed
// when ctx is canceled, which unblocks a pending Read.
func Dial(ctx context.Context, host string, port int) (*Conn, error) {
	addr := Addr(host, port)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to DLT server %s: %w", addr, err)
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	c := &Conn{Reader: bufio.NewReaderSize(conn, readBufferSize), conn: &stopConn{Conn: conn, stop: stop}}
	return c, nil
}

// stopConn detaches the context watcher when closed.
type stopConn struct {
	net.Conn
	stop func() bool
}

func (c *stopConn) Close() error {
	c.stop()
	return c.Conn.Close()
}
