package retry

import (
	"context"
	"fmt"
	"net"
	"testing"
)

// BenchmarkForDial_FirstAttempt measures the overhead a client pays when
// the server is already up.
func BenchmarkForDial_FirstAttempt(b *testing.B) {
	ctx := context.Background()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ForDial(3).Do(ctx, func(_ int) error { return nil }) //nolint:errcheck
	}
}

// BenchmarkForDial_UnknownHost measures the early exit for a host that
// does not resolve.
func BenchmarkForDial_UnknownHost(b *testing.B) {
	ctx := context.Background()
	dnsErr := &net.OpError{Op: "dial", Net: "tcp", Err: &net.DNSError{Err: "no such host", Name: "nope.invalid", IsNotFound: true}}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ForDial(3).Do(ctx, func(_ int) error { //nolint:errcheck
			return ClassifyDial(dnsErr)
		})
	}
}

func BenchmarkClassifyDial(b *testing.B) {
	errs := []error{
		&net.OpError{Op: "dial", Net: "tcp", Err: fmt.Errorf("connection refused")},
		&net.AddrError{Err: "missing port in address", Addr: "localhost"},
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = ClassifyDial(errs[i%len(errs)])
	}
}
