package dutyleak

import "context"

// Context is the execution context passed to job handlers. It is an
// alias for context.Context; the owning workspace travels on it via
// the scope package.
type Context = context.Context
