package coordinator

import (
	"fmt"
	"sync/atomic"

	"github.com/dce-cluster/dce/lib/entity"
	"github.com/dce-cluster/dce/lib/rwlock"
)

type clusteredEntity struct {
	handle entity.IEntityHandle
	hold   rwlock.IHold
	closed atomic.Bool
}

func (e *clusteredEntity) Identifier() string           { return e.handle.Identifier() }
func (e *clusteredEntity) Handle() entity.IEntityHandle { return e.handle }

func (e *clusteredEntity) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("entity %q: already closed", e.handle.Identifier())
	}
	err := e.handle.Close()
	if unlockErr := e.hold.Unlock(); unlockErr != nil && err == nil {
		err = unlockErr
	}
	return err
}
