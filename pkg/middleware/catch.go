package middleware

import (
	"fmt"

	"github.com/goliatone/go-datastate/pkg/store"
)

// CatchErrors reports listener errors and panics raised while a change is
// published. Errors are returned unchanged and panics are re-raised after
// being reported.
func CatchErrors(opts ...Option) store.Middleware {
	cfg := applyOptions(opts)
	colors := newPalette(cfg.colorEnabled())
	report := func(m store.Mutation, detail any) {
		fmt.Fprintf(cfg.out, "%s %s@%s => %s: %v\n",
			colors.err("> STATECHANGE ERROR:"),
			colors.origin(describeOrigin(m.Origin)),
			m.Reason,
			colors.path(m.Path),
			detail,
		)
	}
	return func(next store.ChangeFunc) store.ChangeFunc {
		return func(m store.Mutation) (err error) {
			defer func() {
				if r := recover(); r != nil {
					report(m, r)
					panic(r)
				}
			}()
			if err = next(m); err != nil {
				report(m, err)
			}
			return err
		}
	}
}
