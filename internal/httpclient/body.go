package httpclient

import (
	"context"
	"io"
)

// cancelOnClose releases the per-call timeout once the caller is done
// reading the response body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
