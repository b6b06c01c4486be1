package taxonomy

import (
	"errors"

	"github.com/pbaille/medcat/internal/domain"
)

// ErrHierarchyNotEmpty is returned by Seed when any tag is already registered
var ErrHierarchyNotEmpty = errors.New("tag hierarchy is not empty")

// starterVocabulary is the vocabulary installed by Seed
var starterVocabulary = map[domain.MetaTag]map[string][]string{
	domain.MetaStudyType: {
		"rct":               {"randomized controlled trial", "RCT"},
		"cohort_study":      {"cohort", "prospective cohort", "retrospective cohort"},
		"case_control":      {"case-control study"},
		"cross_sectional":   {"cross-sectional study"},
		"systematic_review": {"SR"},
		"meta_analysis":     {"meta-analysis", "MA"},
		"case_report":       {"case series"},
		"narrative_review":  {"review"},
	},
	domain.MetaDisease: {
		"stroke":             {"CVA", "C.V.A.", "cerebrovascular accident", "脳卒中"},
		"parkinsons_disease": {"Parkinson's disease", "PD", "parkinson"},
		"spinal_cord_injury": {"SCI"},
		"cerebral_palsy":     {"CP"},
		"osteoarthritis":     {"OA"},
	},
	domain.MetaMethod: {
		"gait_analysis":  {"gait", "歩行解析"},
		"emg":            {"EMG", "electromyography", "sEMG"},
		"motion_capture": {"mocap"},
		"imu":            {"inertial measurement unit", "wearable sensor"},
		"questionnaire":  {"survey"},
	},
	domain.MetaAnalysis: {
		"statistical_analysis": {"statistics"},
		"machine_learning":     {"ML"},
		"regression":           {"regression analysis"},
		"time_series":          {"time-series analysis"},
	},
	domain.MetaPopulation: {
		"adults":   {"adult"},
		"elderly":  {"older adults", "高齢者"},
		"children": {"pediatric", "paediatric"},
		"athletes": {"athlete"},
	},
}

// Seed installs the starter vocabulary into an empty hierarchy in a single write
func (h *Hierarchy) Seed() error {
	return h.mutate(func(v *vocab) (bool, error) {
		for _, canon := range v.tags {
			if len(canon) > 0 {
				return false, ErrHierarchyNotEmpty
			}
		}
		for _, meta := range domain.MetaTags {
			for name, aliases := range starterVocabulary[meta] {
				if err := v.addTag(meta, name, aliases); err != nil {
					return false, err
				}
			}
		}
		return true, nil
	})
}
