package dutyleak

import "github.com/Milo6x/dutyleak-app-sub004/id"

// ID is the primary identifier type for all engine entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
