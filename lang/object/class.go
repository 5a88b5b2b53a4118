package object

import "github.com/dolthub/swiss"

// Property bundles a computed property's getter/setter pair (spec.md §4.5's
// "computed-property transform" binds these as two hidden methods under the
// property name) as well as a plain public property's synthesized default
// getter/setter (spec.md §4.7).
type Property struct {
	Getter *Function
	Setter *Function // nil for a read-only property
}

func (Property) String() string { return "property" }
func (Property) Type() string   { return "property" }

// Class is the runtime class object codegen builds for every class,
// struct, and module declaration (a `module` lowers to a Class with
// IsModule set and NIvar == 0, SPEC_FULL.md §5). Per spec.md §3, a class
// always comes paired with its metaclass: Meta is nil on a metaclass
// itself, non-nil on the instance-side class.
type Class struct {
	Name      string
	Super     *Class
	SuperName string // superclass's name, recorded at declaration time even if Super is wired later by superfix (spec.md §4.7's `LOADS` needs a name to embed regardless of resolution order)
	NIvar     int
	NSvar     int
	IsStruct  bool
	IsModule  bool

	// Members binds method/property/inner-declaration names to their runtime
	// value (spec.md §3's "hash-table of bound methods/properties"). A plain
	// instance field is entered under its name as its default getter/setter
	// Property; codegen reaches the field itself through its ivar slot, and
	// uses this table only when an identifier's Location carries ast.NoSlot
	// (spec.md §4.7).
	Members *swiss.Map[string, Value]

	Meta *Class // the metaclass; nil when this Class value is itself a metaclass
}

func (c *Class) String() string { return "class " + c.Name }
func (*Class) Type() string     { return "class" }

// NewClassPair creates a class and its metaclass (spec.md's
// gravity_class_new_pair, referenced in §4.7), wiring super onto the
// instance side (the metaclass chains to super's metaclass, mirroring
// gravity's metaclass hierarchy).
func NewClassPair(name string, super *Class) (class, meta *Class) {
	meta = &Class{Name: "meta" + name, Members: swiss.NewMap[string, Value](4)}
	class = &Class{Name: name, Members: swiss.NewMap[string, Value](8), Meta: meta}
	if super != nil {
		class.Super = super
		meta.Super = super.Meta
	}
	return class, meta
}

// Bind adds name to c's member table, used for methods, computed
// properties, and nested classes/enums reached by name lookup rather than
// slot (spec.md §4.7's `slot_index == NoSlot` path).
func (c *Class) Bind(name string, v Value) { c.Members.Put(name, v) }

// Lookup resolves name against c and its superclass chain (spec.md §4.5's
// class-ivar resolution rule 2: "look up in the class symbol table and, if
// absent, in its superclass chain").
func (c *Class) Lookup(name string) (Value, bool) {
	for cur := c; cur != nil; cur = cur.Super {
		if v, ok := cur.Members.Get(name); ok {
			return v, true
		}
	}
	return nil, false
}
