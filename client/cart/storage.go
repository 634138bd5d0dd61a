package cart

import (
	"github.com/khalidmaz/e-learning-market/client/localstore"
)

// LocalStorage persists the cart under the shared key-value store's cart
// slot.
type LocalStorage struct {
	kv *localstore.Store
}

func NewLocalStorage(kv *localstore.Store) *LocalStorage {
	return &LocalStorage{kv: kv}
}

func (l *LocalStorage) Load() ([]Item, error) {
	var items []Item
	if _, err := l.kv.Get(localstore.KeyCart, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (l *LocalStorage) Save(items []Item) error {
	if items == nil {
		items = []Item{}
	}
	return l.kv.Set(localstore.KeyCart, items)
}
