package export

import (
	"fmt"

	"github.com/feedops/courier/internal/domain"
)

// FileAccessor resolves the local path of a file attached to an entity.
type FileAccessor func(e domain.Entity) (string, error)

// RelationAccessor returns the entities reachable through one declared
// relation field.
type RelationAccessor func(e domain.Entity) []domain.Entity

// LinkDecl declares, per entity type, which fields carry files and which
// carry relations. Declarations are explicit configuration: the linker never
// inspects entities reflectively.
type LinkDecl struct {
	Files     []FileAccessor
	Relations []RelationAccessor
}

// Linker collects the binary files linked to an entity, walking declared
// relations to a bounded depth. The depth bound is the termination
// guarantee: cyclic relation graphs stop when it reaches zero.
type Linker struct {
	// Decls maps entity type to its declaration.
	Decls map[string]LinkDecl

	// Depth is how many relation levels to cross. Zero restricts the walk
	// to the entity's own file fields.
	Depth int
}

// Binaries returns the local paths of all files linked to e within the
// configured depth.
func (l *Linker) Binaries(e domain.Entity) ([]string, error) {
	return l.binaries(e, l.Depth)
}

func (l *Linker) binaries(e domain.Entity, depth int) ([]string, error) {
	decl, ok := l.Decls[e.EntityType()]
	if !ok {
		return nil, nil
	}

	paths := make([]string, 0, len(decl.Files))
	for _, file := range decl.Files {
		path, err := file(e)
		if err != nil {
			return nil, fmt.Errorf("resolve file on %s: %w", domain.Ref(e), err)
		}
		if path != "" {
			paths = append(paths, path)
		}
	}

	if depth <= 0 {
		return paths, nil
	}

	for _, relation := range decl.Relations {
		for _, related := range relation(e) {
			if related == nil {
				continue
			}
			nested, err := l.binaries(related, depth-1)
			if err != nil {
				return nil, err
			}
			paths = append(paths, nested...)
		}
	}
	return paths, nil
}
