package netlist

import "fmt"

// A Port is a named bus on a module.
type Port struct {
	Owner     *Module
	Name      string
	Width     int
	Direction Direction
	IsClock   bool
	Class     NetClass
}

// AsClock marks the port as a clock and returns the port.
func (p *Port) AsClock() *Port {
	p.IsClock = true
	return p
}

// WithClass sets the net class of the port and returns the port.
func (p *Port) WithClass(c NetClass) *Port {
	p.Class = c
	return p
}

func (p *Port) String() string {
	return fmt.Sprintf("%s.%s", p.Owner.name, p.Name)
}

// An Instance is a named occurrence of a model module inside a parent
// module. Instances are unique hierarchy positions: the model may be shared
// by many instances, the Instance struct never is.
type Instance struct {
	Parent *Module
	Model  *Module
	Key    InstanceKey
}

func (i *Instance) String() string {
	return fmt.Sprintf("%s/%v(%s)", i.Parent.name, i.Key, i.Model.name)
}

// Pin returns a reference to the full bus of the named port on this
// instance. It panics if the model has no such port.
func (i *Instance) Pin(name string) NetRef {
	p := i.Model.Port(name)
	if p == nil {
		panic(fmt.Sprintf("no port %s on model %s of instance %v",
			name, i.Model.name, i))
	}

	return NetRef{Kind: RefPin, Instance: i, Port: p, Lo: 0, Hi: p.Width}
}

// HasPin reports whether the model of this instance has the named port.
func (i *Instance) HasPin(name string) bool {
	return i.Model.Port(name) != nil
}

// A Module is a named hardware building block. It owns ports, instances of
// other modules, and the connections among them. Identical sub-hierarchies
// are shared by reference: a module instantiated many times exists once.
type Module struct {
	name  string
	key   ModuleKey
	view  View
	class ModuleClass

	ports     map[string]*Port
	portNames []string

	instances map[InstanceKey]*Instance
	instKeys  []InstanceKey

	conns     []*Connection
	sinkIndex map[bitRef]*Connection
}

// NewModule creates a module whose key equals its name.
func NewModule(name string, view View, class ModuleClass) *Module {
	return NewModuleWithKey(name, ModuleKey(name), view, class)
}

// NewModuleWithKey creates a module with an explicit key.
func NewModuleWithKey(
	name string,
	key ModuleKey,
	view View,
	class ModuleClass,
) *Module {
	return &Module{
		name:      name,
		key:       key,
		view:      view,
		class:     class,
		ports:     make(map[string]*Port),
		instances: make(map[InstanceKey]*Instance),
		sinkIndex: make(map[bitRef]*Connection),
	}
}

// Name returns the name of the module.
func (m *Module) Name() string {
	return m.name
}

// Key returns the database key of the module.
func (m *Module) Key() ModuleKey {
	return m.key
}

// View returns the view the module belongs to.
func (m *Module) View() View {
	return m.view
}

// Class returns the module class.
func (m *Module) Class() ModuleClass {
	return m.class
}

func (m *Module) String() string {
	return fmt.Sprintf("%s[%v]", m.name, m.view)
}

// AddPort creates a port on the module. It panics if a port with the same
// name already exists.
func (m *Module) AddPort(name string, width int, dir Direction) *Port {
	if _, ok := m.ports[name]; ok {
		panic(fmt.Sprintf("port %s already exists on module %s", name, m.name))
	}

	if width <= 0 {
		panic(fmt.Sprintf("port %s on module %s must have positive width, got %d",
			name, m.name, width))
	}

	p := &Port{Owner: m, Name: name, Width: width, Direction: dir}
	m.ports[name] = p
	m.portNames = append(m.portNames, name)

	return p
}

// Port returns the named port, or nil if the module has no such port.
func (m *Module) Port(name string) *Port {
	return m.ports[name]
}

// PortRef returns a reference to the full bus of the named port. It panics
// if the module has no such port.
func (m *Module) PortRef(name string) NetRef {
	p := m.Port(name)
	if p == nil {
		panic(fmt.Sprintf("no port %s on module %s", name, m.name))
	}

	return NetRef{Kind: RefPort, Port: p, Lo: 0, Hi: p.Width}
}

// Ports returns the ports of the module in creation order.
func (m *Module) Ports() []*Port {
	ports := make([]*Port, 0, len(m.portNames))
	for _, n := range m.portNames {
		ports = append(ports, m.ports[n])
	}

	return ports
}

// Instantiate places an instance of model inside the module. It panics if
// the key is already taken or if the model belongs to another view.
func (m *Module) Instantiate(model *Module, key InstanceKey) *Instance {
	if model.view != m.view {
		panic(fmt.Sprintf("cannot instantiate %v module %s inside %v module %s",
			model.view, model.name, m.view, m.name))
	}

	if _, ok := m.instances[key]; ok {
		panic(fmt.Sprintf("instance key %v already taken in module %s",
			key, m.name))
	}

	i := &Instance{Parent: m, Model: model, Key: key}
	m.instances[key] = i
	m.instKeys = append(m.instKeys, key)

	return i
}

// Instance returns the instance with the given key, or nil.
func (m *Module) Instance(key InstanceKey) *Instance {
	return m.instances[key]
}

// Instances returns the instances of the module in instantiation order.
func (m *Module) Instances() []*Instance {
	insts := make([]*Instance, 0, len(m.instKeys))
	for _, k := range m.instKeys {
		insts = append(insts, m.instances[k])
	}

	return insts
}

// NumInstances returns the number of instances in the module.
func (m *Module) NumInstances() int {
	return len(m.instKeys)
}
