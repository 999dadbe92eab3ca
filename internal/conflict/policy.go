package conflict

// Recommended actions for a detected conflict.
const (
	ActionAcceptVendor = "accept_vendor"
	ActionKeepLocal    = "keep_local"
	ActionMerge        = "merge"
	ActionAskUser      = "ask_user"
)

// Precedence for fields without an authoritative rule when records merge
// cleanly.
const (
	PrecedenceLocal  = "local"
	PrecedenceVendor = "vendor"
)

// Policy configures which source wins per field. Immutable once the
// engine is built.
type Policy struct {
	// PrecedenceDefault decides unruled fields in a clean merge:
	// "local" keeps the catalog value and only backfills empties,
	// "vendor" adopts the feed value unless the user edited the field.
	PrecedenceDefault   string
	MandatoryFields     map[string]bool
	VendorAuthoritative map[string]bool
	RemoteAuthoritative map[string]bool
}

// DefaultPolicy reflects how vendor catalogs are usually run: the feed
// owns pricing and stock, the storefront owns listing status, and name
// and price must never go out missing.
func DefaultPolicy() Policy {
	return Policy{
		PrecedenceDefault:   PrecedenceLocal,
		MandatoryFields:     FieldSet("name", "price"),
		VendorAuthoritative: FieldSet("price", "inventory"),
		RemoteAuthoritative: FieldSet("status"),
	}
}

// PolicyFromLists builds a policy from configuration lists. Empty lists
// fall back to the default policy's sets.
func PolicyFromLists(precedence string, mandatory, vendorAuth, remoteAuth []string) Policy {
	p := DefaultPolicy()
	if precedence == PrecedenceVendor {
		p.PrecedenceDefault = PrecedenceVendor
	}
	if len(mandatory) > 0 {
		p.MandatoryFields = FieldSet(mandatory...)
	}
	if len(vendorAuth) > 0 {
		p.VendorAuthoritative = FieldSet(vendorAuth...)
	}
	if len(remoteAuth) > 0 {
		p.RemoteAuthoritative = FieldSet(remoteAuth...)
	}
	return p
}

// FieldSet builds a lookup set from field names.
func FieldSet(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
