package callbell

// Session context keys propagated to the database for row-level
// security and auditing.
const (
	ContextKeyUser      = "app_user"
	ContextKeyUserOID   = "app_user_oid"
	ContextKeySourceApp = "source_app"
)

// IdentityContext carries the authenticated caller's identity as ordered
// key/value pairs for propagation into the database session via
// sys.sp_set_session_context. It is built once at session start and must
// not be mutated afterward.
//
// Empty values are dropped at insertion: the session-context mechanism
// cannot store NULL, so absent and blank values are equivalent.
type IdentityContext struct {
	keys   []string
	values map[string]string
}

// NewIdentityContext returns an empty identity context.
func NewIdentityContext() *IdentityContext {
	return &IdentityContext{values: make(map[string]string)}
}

// Set records a key/value pair. Blank values are dropped. Setting an
// existing key overwrites its value but keeps its original position.
func (c *IdentityContext) Set(key, value string) *IdentityContext {
	if key == "" || value == "" {
		return c
	}
	if _, ok := c.values[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.values[key] = value
	return c
}

// Get returns the value for key, or "" if absent.
func (c *IdentityContext) Get(key string) string {
	if c == nil {
		return ""
	}
	return c.values[key]
}

// Len returns the number of stored pairs.
func (c *IdentityContext) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Each calls fn for every pair in insertion order.
func (c *IdentityContext) Each(fn func(key, value string)) {
	if c == nil {
		return
	}
	for _, k := range c.keys {
		fn(k, c.values[k])
	}
}
