package gatehouse

import "github.com/m3n3sx/gatehouse/internal/entity"

// Entity is the base type embedded by all gatehouse domain objects.
type Entity = entity.Entity

// NewEntity returns an Entity with both timestamps set to the current UTC time.
func NewEntity() Entity {
	return entity.New()
}
