package txn

import "context"

// Runner executes fn inside one store transaction. Repositories called with the
// context handed to fn take part in that transaction; a nested call joins the outer one.
type Runner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
