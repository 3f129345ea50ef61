package util

import (
	"context"
	"errors"
	"io"
	"net"
)

// DefaultBufSize is the size of pooled copy buffers.
const DefaultBufSize = 32 * 1024

// BidirectionalCopy pipes a reader into conn and conn into a writer
// until the server closes its side or the context is cancelled.  The
// client uses it when stdin is not a terminal.
//
// Only the conn → w direction is waited for.  A goroutine still blocked
// reading r when the server goes away is left behind; it returns once r
// does, writing nothing since conn is closed.
func BidirectionalCopy(ctx context.Context, conn net.Conn, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fromConn := make(chan error, 1)
	toConn := make(chan error, 1)

	// network → writer
	go func() {
		_, err := pooledCopy(w, conn)
		fromConn <- err
		cancel()
	}()

	// reader → network
	go func() {
		_, err := pooledCopy(conn, r)
		// Half-close so the server sees end of stream and closes once
		// its last reply is out.
		if tc, ok := conn.(*net.TCPConn); ok {
			tc.CloseWrite() //nolint:errcheck
		}
		toConn <- err
		// EOF on the reader must not cut off replies still in flight.
		if err != nil {
			cancel()
		}
	}()

	<-ctx.Done()
	conn.Close() // unblocks the network side
	if err := <-fromConn; !isHarmless(err) {
		return err
	}
	select {
	case err := <-toConn:
		if !isHarmless(err) {
			return err
		}
	default:
	}
	return nil
}

func pooledCopy(dst io.Writer, src io.Reader) (int64, error) {
	buf := GetBuf()
	defer PutBuf(buf)
	return io.CopyBuffer(dst, src, *buf)
}

// isHarmless returns true for errors that are expected during shutdown.
func isHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
