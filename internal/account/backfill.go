package account

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/matheus3301/ringcore/internal/uri"
)

// Backfill tracks one outstanding history request for a swarm. It
// completes when the daemon delivers the requested pages or when the
// conversation goes away.
type Backfill struct {
	key       string
	done      chan struct{}
	once      sync.Once
	remaining int
	err       error

	// requested holds ids of pages in flight; early holds replies that
	// arrived before their request returned.
	requested map[uint32]struct{}
	early     map[uint32]struct{}
}

func newBackfill(key string, pages int) *Backfill {
	return &Backfill{
		key:       key,
		done:      make(chan struct{}),
		remaining: pages,
		requested: make(map[uint32]struct{}),
		early:     make(map[uint32]struct{}),
	}
}

// Conversation is the key of the swarm being back-filled.
func (b *Backfill) Conversation() string { return b.key }

// Done is closed when the back-fill finished.
func (b *Backfill) Done() <-chan struct{} { return b.done }

// Err is the reason the back-fill failed. Valid after Done is closed.
func (b *Backfill) Err() error {
	<-b.done
	return b.err
}

// Wait blocks until the back-fill finished or ctx expires.
func (b *Backfill) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return b.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// settle records one delivered page and reports whether the back-fill
// is complete. Callers hold the account lock.
func (b *Backfill) settle(err error) bool {
	if err != nil {
		b.abort(err)
		return true
	}
	b.remaining--
	if b.remaining > 0 {
		return false
	}
	b.once.Do(func() { close(b.done) })
	return true
}

// expect records the id the daemon gave a page request. It reports
// whether the reply was already delivered.
func (b *Backfill) expect(id uint32) bool {
	if _, ok := b.early[id]; ok {
		delete(b.early, id)
		return true
	}
	b.requested[id] = struct{}{}
	return false
}

// deliver reports whether a loaded page answers one of this back-fill's
// requests.
func (b *Backfill) deliver(id uint32) bool {
	if _, ok := b.requested[id]; ok {
		delete(b.requested, id)
		return true
	}
	b.early[id] = struct{}{}
	return false
}

func (b *Backfill) abort(err error) {
	b.once.Do(func() {
		b.err = err
		close(b.done)
	})
}

// LoadMore asks the daemon for older history of a swarm, one page per
// missing parent, or the newest page when nothing is known yet. A
// back-fill already in flight is returned as is.
func (a *Account) LoadMore(ctx context.Context, key string) (*Backfill, error) {
	key = uri.Canonical(key)

	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.cache[key]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownConversation, "%s/%s", a.id, key)
	}
	if !c.IsSwarm() {
		return nil, errors.Wrapf(ErrNotSwarm, "%s/%s", a.id, key)
	}
	if bf, ok := a.backfills[key]; ok {
		return bf, nil
	}

	from := c.Roots()
	if c.Len() == 0 && len(from) == 0 {
		from = []string{""}
	}
	bf := newBackfill(key, len(from))
	if len(from) == 0 {
		bf.settle(nil)
		return bf, nil
	}
	a.backfills[key] = bf
	go a.requestPages(context.WithoutCancel(ctx), bf, c.SwarmID(), from)
	return bf, nil
}

func (a *Account) requestPages(ctx context.Context, bf *Backfill, swarmID string, from []string) {
	for _, id := range from {
		a.limiter.Take()
		rctx, cancel := context.WithTimeout(ctx, commandTimeout)
		reqID, err := a.cmds.LoadConversationMessages(rctx, a.id, swarmID, id, a.page)
		cancel()
		if err != nil {
			a.logger.Warn("history request failed",
				zap.String("conversation", bf.key),
				zap.String("from", id),
				zap.Error(err),
			)
			a.finishBackfill(bf, errors.Wrap(err, "load conversation messages"))
			return
		}
		a.expectPage(bf, reqID)
	}
}

func (a *Account) expectPage(bf *Backfill, reqID uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cur, ok := a.backfills[bf.key]; !ok || cur != bf {
		return
	}
	if bf.expect(reqID) && bf.settle(nil) {
		delete(a.backfills, bf.key)
	}
}

func (a *Account) finishBackfill(bf *Backfill, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cur, ok := a.backfills[bf.key]; !ok || cur != bf {
		return
	}
	if bf.settle(err) {
		delete(a.backfills, bf.key)
	}
}
