package typemetadata

import (
	"regexp"
	"strings"

	"github.com/eudiwallet/core/pkg/apierror"
)

// svgIDPattern is the SD-JWT VC spec's svg_id grammar: "MUST consist of only alphanumeric
// characters and underscores and MUST NOT start with a digit."
var svgIDPattern = regexp.MustCompile(`^[A-Za-z_][0-9A-Za-z_]*$`)

// templatePattern matches `{{id}}` template references inside a display summary.
var templatePattern = regexp.MustCompile(`\{\{([A-Za-z_][0-9A-Za-z_]*)\}\}`)

// checkMetadataConsistency runs every §3.2 consistency rule over unchecked, in the order the
// original implementation runs them: path collisions first, then duplicate languages, then
// svg_id validation.
func checkMetadataConsistency(unchecked *UncheckedTypeMetadata) error {
	if err := detectPathCollisions(unchecked); err != nil {
		return err
	}
	if err := detectDuplicateLanguages(unchecked); err != nil {
		return err
	}
	if err := validateSvgIDs(unchecked); err != nil {
		return err
	}
	return nil
}

// detectPathCollisions rejects two distinct claim paths that flatten to the same dotted key
// (§3.2 "path collision").
func detectPathCollisions(u *UncheckedTypeMetadata) error {
	seen := make(map[string]struct{}, len(u.Claims))
	for _, claim := range u.Claims {
		keys := make([]string, 0, len(claim.Path))
		for _, seg := range claim.Path {
			if k, ok := seg.TryKey(); ok {
				keys = append(keys, k)
			}
		}
		flat := strings.Join(keys, ".")

		if _, exists := seen[flat]; exists {
			return apierror.Newf(apierror.KindClaimPathCollision, "detected claim path collision: %s", flat)
		}
		seen[flat] = struct{}{}
	}
	return nil
}

// detectDuplicateLanguages rejects duplicate languages in the type-level display array and,
// per claim, in its display array.
func detectDuplicateLanguages(u *UncheckedTypeMetadata) error {
	seen := make(map[string]int, len(u.Display))
	var dups []string
	for _, d := range u.Display {
		seen[d.Lang]++
		if seen[d.Lang] == 2 {
			dups = append(dups, d.Lang)
		}
	}
	if len(dups) > 0 {
		return apierror.Newf(apierror.KindDuplicateLanguages,
			"detected duplicate display metadata language(s): %s", strings.Join(dups, ", "))
	}

	for _, claim := range u.Claims {
		claimDups := claim.findDuplicateLanguages()
		if len(claimDups) > 0 {
			return apierror.Newf(apierror.KindDuplicateLanguages,
				"detected duplicate claim display metadata language(s) at path %s: %s",
				claim.PathString(), strings.Join(claimDups, ", "))
		}
	}
	return nil
}

// validateSvgIDs enforces svg_id uniqueness, grammar, and that every `{{id}}` template
// reference in a display summary resolves to a declared svg_id (§3.2).
func validateSvgIDs(u *UncheckedTypeMetadata) error {
	seen := make(map[string]int)
	var dupIDs []string
	declared := make(map[string]struct{})

	for _, claim := range u.Claims {
		if claim.SvgID == "" {
			continue
		}
		if !svgIDPattern.MatchString(claim.SvgID) {
			return apierror.Newf(apierror.KindMissingSvgIDs, "svg_id %q does not match the required pattern", claim.SvgID)
		}
		seen[claim.SvgID]++
		if seen[claim.SvgID] == 2 {
			dupIDs = append(dupIDs, claim.SvgID)
		}
		declared[claim.SvgID] = struct{}{}
	}
	if len(dupIDs) > 0 {
		return apierror.Newf(apierror.KindDuplicateSvgIDs, "detected duplicate svg_ids: %s", strings.Join(dupIDs, ", "))
	}

	referenced := make(map[string]struct{})
	var referencedOrder []string
	for _, d := range u.Display {
		if d.Summary == "" {
			continue
		}
		for _, m := range templatePattern.FindAllStringSubmatch(d.Summary, -1) {
			id := m[1]
			if _, ok := referenced[id]; !ok {
				referenced[id] = struct{}{}
				referencedOrder = append(referencedOrder, id)
			}
		}
	}

	var missing []string
	for _, id := range referencedOrder {
		if _, ok := declared[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return apierror.Newf(apierror.KindMissingSvgIDs, "found missing svg_ids: %s", strings.Join(missing, ", "))
	}

	return nil
}
