package reference

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/goblin-space/core/internal/models"
	"gorm.io/gorm/schema"
)

// ValidationError reports an entity type that cannot be the target of a
// generic reference. It is a schema design error, not a runtime condition.
type ValidationError struct {
	Type   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("reference: %s cannot be referenced generically: %s", e.Type, e.Reason)
}

// Registry maps table identifiers to entity types.
type Registry struct {
	mu      sync.RWMutex
	types   map[string]reflect.Type
	schemas *sync.Map
}

func NewRegistry() *Registry {
	return &Registry{
		types:   make(map[string]reflect.Type),
		schemas: &sync.Map{},
	}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process wide registry holding every referenceable model.
// It is built on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		defaultRegistry.MustRegister(models.Referenceables()...)
	})
	return defaultRegistry
}

// Register validates proto and adds its type under its table name. The type
// must be a struct pointer with exactly one integer primary key.
func (r *Registry) Register(proto models.Referenceable) error {
	rt := reflect.TypeOf(proto)
	if rt == nil || rt.Kind() != reflect.Ptr || rt.Elem().Kind() != reflect.Struct {
		return &ValidationError{Type: fmt.Sprintf("%T", proto), Reason: "prototype must be a struct pointer"}
	}
	name := rt.Elem().Name()

	table := proto.TableName()
	if table == "" {
		return &ValidationError{Type: name, Reason: "empty table name"}
	}

	s, err := schema.Parse(proto, r.schemas, schema.NamingStrategy{})
	if err != nil {
		return &ValidationError{Type: name, Reason: err.Error()}
	}
	switch len(s.PrimaryFields) {
	case 0:
		return &ValidationError{Type: name, Reason: "no primary key"}
	case 1:
	default:
		return &ValidationError{Type: name, Reason: "composite primary key"}
	}
	if dt := s.PrimaryFields[0].DataType; dt != schema.Int && dt != schema.Uint {
		return &ValidationError{Type: name, Reason: fmt.Sprintf("primary key of type %q is not an integer", dt)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.types[table]; ok && existing != rt.Elem() {
		return &ValidationError{Type: name, Reason: fmt.Sprintf("table %q already registered by %s", table, existing.Name())}
	}
	r.types[table] = rt.Elem()
	return nil
}

// MustRegister registers every prototype and panics on the first invalid one.
func (r *Registry) MustRegister(protos ...models.Referenceable) {
	for _, p := range protos {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
}

// New returns a zero value of the entity stored in table.
func (r *Registry) New(table string) (models.Referenceable, bool) {
	r.mu.RLock()
	rt, ok := r.types[table]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return reflect.New(rt).Interface().(models.Referenceable), true
}

func (r *Registry) Has(table string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[table]
	return ok
}

// Tables lists the registered table identifiers in sorted order.
func (r *Registry) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.types))
	for t := range r.types {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
