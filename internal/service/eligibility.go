package service

import "github.com/noah-isme/campus-placement-api/internal/models"

// Evaluate runs a student through a company's automatic eligibility rules.
// It is pure and total: every input yields a verdict, and the reported
// reason is the first rule that failed. Placed students never pass the
// automatic rules; they re-enter only through an override.
func Evaluate(student models.Student, criteria models.EligibilityCriteria) (bool, string) {
	if criteria.MinCGPA != nil && student.CGPA < *criteria.MinCGPA {
		return false, models.ReasonCGPABelowMinimum
	}
	if criteria.MaxBacklogs != models.UnlimitedBacklogs && student.BacklogCount > criteria.MaxBacklogs {
		return false, models.ReasonTooManyBacklogs
	}
	if len(criteria.AllowedSpecializations) > 0 && !containsString(criteria.AllowedSpecializations, student.Specialization) {
		return false, models.ReasonSpecializationNotAllowed
	}
	if student.PlacementStatus == models.PlacementStatusPlaced {
		return false, models.ReasonAlreadyPlaced
	}
	return true, ""
}

func containsString(set []string, value string) bool {
	for _, s := range set {
		if s == value {
			return true
		}
	}
	return false
}
