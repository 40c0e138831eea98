package connection

import "sync"

// domainLocks hands out one mutex per domain. Entries are dropped once no
// goroutine holds or waits for them.
type domainLocks struct {
	mu    sync.Mutex
	locks map[string]*domainLock
}

type domainLock struct {
	mu   sync.Mutex
	refs int
}

func newDomainLocks() *domainLocks {
	return &domainLocks{locks: make(map[string]*domainLock)}
}

// lock blocks until the domain is free and returns its unlock function.
func (d *domainLocks) lock(domainName string) func() {
	d.mu.Lock()
	l, ok := d.locks[domainName]
	if !ok {
		l = &domainLock{}
		d.locks[domainName] = l
	}
	l.refs++
	d.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		d.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.locks, domainName)
		}
		d.mu.Unlock()
	}
}

func (d *domainLocks) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.locks)
}
