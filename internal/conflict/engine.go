package conflict

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/metrics"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
)

// Engine reconciles a product across the vendor feed, the local catalog
// and the remote storefront. A field counts as conflicting when at
// least two of three disagreement signals hold: the vendor value
// differs from local, the user edited the field locally, the remote
// value differs from local.
type Engine struct {
	policy Policy
	log    zerolog.Logger
}

// NewEngine builds an engine with the given policy.
func NewEngine(policy Policy, logger zerolog.Logger) *Engine {
	return &Engine{
		policy: policy,
		log:    logger.With().Str("component", "conflict").Logger(),
	}
}

// Policy returns the engine's resolution policy.
func (e *Engine) Policy() Policy { return e.policy }

// Analyze detects conflicting fields. It returns nil when the product
// merges cleanly.
func (e *Engine) Analyze(product *models.Product, vendor, remote *Source) *ProductConflict {
	local := product.SyncFields()
	times := e.fieldTimes(product, vendor, remote)

	var fields []ConflictField
	for _, name := range fieldUnion(local, vendor, remote) {
		localVal := local[name]
		vendorVal, vendorHas := sourceValue(vendor, name)
		remoteVal, remoteHas := sourceValue(remote, name)

		signals := 0
		if vendorHas && !valuesEqual(vendorVal, localVal) {
			signals++
		}
		if product.FieldEdited(name) {
			signals++
		}
		if remoteHas && !valuesEqual(remoteVal, localVal) {
			signals++
		}
		if signals < 2 {
			continue
		}

		fields = append(fields, ConflictField{
			Name:         name,
			VendorValue:  vendorVal,
			LocalValue:   localVal,
			RemoteValue:  remoteVal,
			LastModified: times,
		})
	}

	if len(fields) == 0 {
		return nil
	}

	pc := &ProductConflict{
		ProductID:         product.ID,
		SKU:               product.SKU,
		Fields:            fields,
		RecommendedAction: e.recommend(fields),
	}
	metrics.IncConflict(pc.RecommendedAction)
	e.log.Debug().
		Str("sku", pc.SKU).
		Int("fields", len(pc.Fields)).
		Str("action", pc.RecommendedAction).
		Msg("conflict detected")
	return pc
}

// Resolve merges the three views into a copy of the product. Fields the
// engine cannot decide are returned in Conflicts and the record is left
// pending human resolution; otherwise the merged record is marked ready
// to sync.
func (e *Engine) Resolve(product *models.Product, vendor, remote *Source) *Resolution {
	pc := e.Analyze(product, vendor, remote)
	conflicted := make(map[string]bool)
	if pc != nil {
		for _, f := range pc.Fields {
			conflicted[f.Name] = true
		}
	}

	out := cloneProduct(product)
	local := product.SyncFields()
	res := &Resolution{Resolved: out}

	for _, name := range fieldUnion(local, vendor, remote) {
		if conflicted[name] {
			continue
		}
		e.mergeField(out, name, local[name], vendor, remote, product.FieldEdited(name))
	}

	if pc != nil {
		for _, f := range pc.Fields {
			rf, ok := e.resolveField(f)
			if !ok {
				res.Conflicts = append(res.Conflicts, f)
				continue
			}
			out.SetSyncField(rf.Name, rf.Value)
			if rf.Source == models.SourceVendorImport {
				out.ClearEdited(rf.Name)
			}
			res.AutoResolved = append(res.AutoResolved, rf)
		}
	}

	if len(res.Conflicts) > 0 {
		pending := make([]string, 0, len(res.Conflicts))
		for _, f := range res.Conflicts {
			pending = append(pending, f.Name)
		}
		out.ConflictState = models.ConflictStatePending
		out.PendingFields = pending
		out.NeedsSync = false
	} else {
		out.ConflictState = models.ConflictStateNone
		out.PendingFields = nil
		out.NeedsSync = true
	}
	if vendor != nil {
		out.LastModifiedBy = models.SourceVendorImport
	} else if remote != nil {
		out.LastModifiedBy = models.SourceRemoteSync
	}
	return res
}

// mergeField applies the clean-merge rules for one non-conflicting
// field: vendor wins mandatory and vendor-authoritative fields, remote
// wins remote-authoritative ones, and unruled fields keep the local
// value unless it is empty (or the policy prefers the vendor and the
// user never edited it).
func (e *Engine) mergeField(out *models.Product, name string, localVal any, vendor, remote *Source, edited bool) {
	vendorVal, vendorHas := sourceValue(vendor, name)
	remoteVal, remoteHas := sourceValue(remote, name)

	switch {
	case (e.policy.MandatoryFields[name] || e.policy.VendorAuthoritative[name]) && vendorHas && vendorVal != nil:
		out.SetSyncField(name, vendorVal)
	case e.policy.RemoteAuthoritative[name] && remoteHas && remoteVal != nil:
		out.SetSyncField(name, remoteVal)
	case e.policy.PrecedenceDefault == PrecedenceVendor && vendorHas && vendorVal != nil && !edited:
		out.SetSyncField(name, vendorVal)
	case isEmpty(localVal) && vendorHas && !isEmpty(vendorVal):
		out.SetSyncField(name, vendorVal)
	}
}

// resolveField applies the precedence ladder to one conflicting field:
// vendor-authoritative, then remote-authoritative, then mandatory from
// vendor, then most recent timestamp with ties broken vendor over local
// over remote.
func (e *Engine) resolveField(f ConflictField) (ResolvedField, bool) {
	vendorHas := f.VendorValue != nil
	remoteHas := f.RemoteValue != nil

	if e.policy.VendorAuthoritative[f.Name] && vendorHas {
		return ResolvedField{Name: f.Name, Value: f.VendorValue, Source: models.SourceVendorImport}, true
	}
	if e.policy.RemoteAuthoritative[f.Name] && remoteHas {
		return ResolvedField{Name: f.Name, Value: f.RemoteValue, Source: models.SourceRemoteSync}, true
	}
	if e.policy.MandatoryFields[f.Name] && vendorHas {
		return ResolvedField{Name: f.Name, Value: f.VendorValue, Source: models.SourceVendorImport}, true
	}

	type candidate struct {
		source string
		at     time.Time
		value  any
	}
	var cands []candidate
	if vendorHas {
		cands = append(cands, candidate{models.SourceVendorImport, f.LastModified.Vendor, f.VendorValue})
	}
	cands = append(cands, candidate{models.SourceLocalEdit, f.LastModified.Local, f.LocalValue})
	if remoteHas {
		cands = append(cands, candidate{models.SourceRemoteSync, f.LastModified.Remote, f.RemoteValue})
	}

	best := cands[0]
	for _, c := range cands[1:] {
		if c.at.After(best.at) {
			best = c
		}
	}
	if best.at.IsZero() {
		return ResolvedField{}, false
	}
	return ResolvedField{Name: f.Name, Value: best.value, Source: best.source}, true
}

func (e *Engine) recommend(fields []ConflictField) string {
	for _, f := range fields {
		if e.policy.VendorAuthoritative[f.Name] && e.policy.MandatoryFields[f.Name] {
			return ActionAcceptVendor
		}
	}
	if len(fields) <= 2 {
		return ActionMerge
	}
	return ActionAskUser
}

func (e *Engine) fieldTimes(product *models.Product, vendor, remote *Source) FieldTimes {
	times := FieldTimes{Local: product.LocalEditedAt}
	if vendor != nil {
		times.Vendor = vendor.ModifiedAt
	}
	if remote != nil {
		times.Remote = remote.ModifiedAt
	}
	return times
}

func sourceValue(s *Source, name string) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.Fields[name]
	return v, ok
}

// fieldUnion returns the canonical sync fields followed by any extra
// names the sources carry, in a stable order.
func fieldUnion(local map[string]any, vendor, remote *Source) []string {
	seen := make(map[string]bool, len(models.SyncFieldNames))
	names := make([]string, 0, len(models.SyncFieldNames))
	for _, n := range models.SyncFieldNames {
		seen[n] = true
		names = append(names, n)
	}

	var extras []string
	collect := func(s *Source) {
		if s == nil {
			return
		}
		for n := range s.Fields {
			if !seen[n] {
				seen[n] = true
				extras = append(extras, n)
			}
		}
	}
	collect(vendor)
	collect(remote)
	sort.Strings(extras)
	return append(names, extras...)
}

func cloneProduct(p *models.Product) *models.Product {
	out := *p
	if p.EditedFields != nil {
		out.EditedFields = append([]string(nil), p.EditedFields...)
	}
	if p.PendingFields != nil {
		out.PendingFields = append([]string(nil), p.PendingFields...)
	}
	return &out
}
