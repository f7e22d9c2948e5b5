package netlist

import "fmt"

// A Database holds the two views of an architecture's module hierarchy.
// Module keys are unique within a view.
type Database struct {
	modules map[View]map[ModuleKey]*Module
	keys    map[View][]ModuleKey
}

// NewDatabase creates an empty two-view module database.
func NewDatabase() *Database {
	return &Database{
		modules: map[View]map[ModuleKey]*Module{
			ViewAbstract: make(map[ModuleKey]*Module),
			ViewDesign:   make(map[ModuleKey]*Module),
		},
		keys: make(map[View][]ModuleKey),
	}
}

// Add registers a module under its own view and key. It panics if the key
// is already taken in that view.
func (db *Database) Add(m *Module) *Module {
	if _, ok := db.modules[m.view][m.key]; ok {
		panic(fmt.Sprintf("module key %s already taken in %v view", m.key, m.view))
	}

	db.modules[m.view][m.key] = m
	db.keys[m.view] = append(db.keys[m.view], m.key)

	return m
}

// Get returns the module registered under (view, key), or nil.
func (db *Database) Get(view View, key ModuleKey) *Module {
	return db.modules[view][key]
}

// MustGet returns the module registered under (view, key) and panics if it
// does not exist.
func (db *Database) MustGet(view View, key ModuleKey) *Module {
	m := db.Get(view, key)
	if m == nil {
		panic(fmt.Sprintf("no module %s in %v view", key, view))
	}

	return m
}

// Keys returns the module keys of a view in registration order.
func (db *Database) Keys(view View) []ModuleKey {
	return db.keys[view]
}
