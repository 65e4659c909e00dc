package domain

import "context"

// NonceStore issues single-use challenge nonces. A nonce that was issued and
// not yet expired can be consumed exactly once.
type NonceStore interface {
	Issue(ctx context.Context) (string, error)
	Consume(ctx context.Context, nonce string) (bool, error)
}
