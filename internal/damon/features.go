package damon

import "github.com/xtxerr/damonctl/internal/errors"

// Feature names one optional capability of the kernel monitoring
// facility. Which features a running kernel supports varies with its
// version.
type Feature string

const (
	FeatureRecord                Feature = "record"
	FeatureVaddr                 Feature = "vaddr"
	FeatureSchemes               Feature = "schemes"
	FeatureInitRegions           Feature = "init_regions"
	FeaturePaddr                 Feature = "paddr"
	FeatureSchemesSpeedLimit     Feature = "schemes_speed_limit"
	FeatureSchemesQuotas         Feature = "schemes_quotas"
	FeatureSchemesPrioritization Feature = "schemes_prioritization"
	FeatureSchemesWmarks         Feature = "schemes_wmarks"
	FeatureSchemesStatSucc       Feature = "schemes_stat_succ"
	FeatureSchemesStatQtExceed   Feature = "schemes_stat_qt_exceed"
	FeatureInitRegionsTargetIdx  Feature = "init_regions_target_idx"
	FeatureFvaddr                Feature = "fvaddr"
	FeatureSchemesTriedRegions   Feature = "schemes_tried_regions"
	FeatureSchemesFilters        Feature = "schemes_filters"
	FeatureSchemesTriedRegionsSz Feature = "schemes_tried_regions_sz"
)

// Features lists every known capability in the order the kernel grew
// them.
func Features() []Feature {
	return []Feature{
		FeatureRecord,
		FeatureVaddr,
		FeatureSchemes,
		FeatureInitRegions,
		FeaturePaddr,
		FeatureSchemesSpeedLimit,
		FeatureSchemesQuotas,
		FeatureSchemesPrioritization,
		FeatureSchemesWmarks,
		FeatureSchemesStatSucc,
		FeatureSchemesStatQtExceed,
		FeatureInitRegionsTargetIdx,
		FeatureFvaddr,
		FeatureSchemesTriedRegions,
		FeatureSchemesFilters,
		FeatureSchemesTriedRegionsSz,
	}
}

// ValidFeature reports whether the name is a known capability.
func ValidFeature(name string) bool {
	for _, f := range Features() {
		if Feature(name) == f {
			return true
		}
	}
	return false
}

// FeatureSet tracks which capabilities a kernel supports.
type FeatureSet map[Feature]bool

// NewFeatureSet builds a set from supported feature names. Unknown
// names fail with ErrInvalidArgument.
func NewFeatureSet(supported []string) (FeatureSet, error) {
	set := make(FeatureSet, len(supported))
	for _, name := range supported {
		if !ValidFeature(name) {
			return nil, errors.InvalidArgumentf("unknown feature %q", name)
		}
		set[Feature(name)] = true
	}
	return set, nil
}

// Supports reports whether the capability is in the set.
func (s FeatureSet) Supports(f Feature) bool {
	return s[f]
}
