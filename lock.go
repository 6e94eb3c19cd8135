package pagetemplate

import "sync"

// keyLock serialises work per key, so that concurrent loads of one template
// compile it once while other names proceed.
type keyLock struct {
	lks map[string]*sync.Mutex
	lk  sync.Mutex
}

func newKeyLock() *keyLock {
	return &keyLock{
		lks: map[string]*sync.Mutex{},
	}
}

func (k *keyLock) Lock(key string) {
	k.lk.Lock()
	lk, ex := k.lks[key]
	if !ex {
		lk = new(sync.Mutex)
		k.lks[key] = lk
	}
	//never hold the map lock while waiting on a key
	k.lk.Unlock()
	lk.Lock()
}

func (k *keyLock) Unlock(key string) {
	k.lk.Lock()
	lk := k.lks[key]
	k.lk.Unlock()
	lk.Unlock()
}
