package orderflow

// StoreRouter maps the business phone number a message arrived on to a store.
type StoreRouter struct {
	routes       map[string]int64
	defaultStore int64
}

// NewStoreRouter returns a router. A zero defaultStore disables the fallback.
func NewStoreRouter(routes map[string]int64, defaultStore int64) *StoreRouter {
	if routes == nil {
		routes = map[string]int64{}
	}
	return &StoreRouter{routes: routes, defaultStore: defaultStore}
}

// Resolve returns the store for phoneNumberID.
func (r *StoreRouter) Resolve(phoneNumberID string) (int64, bool) {
	if id, ok := r.routes[phoneNumberID]; ok {
		return id, true
	}
	if r.defaultStore > 0 {
		return r.defaultStore, true
	}
	return 0, false
}
