package plan

import (
	"log"
	"math"

	"reliefplan/internal/model"
)

// Cost combines distance, risk, and fairness into one scalar for a candidate
// shipment arc. Lower is better. Distance and risk must be finite and
// non-negative; the fairness penalty may be negative (a bonus) but must be
// finite.
func Cost(distanceKm, riskScore, fairnessPenalty float64, c model.Constraints) (float64, error) {
	switch {
	case !isFinite(distanceKm) || distanceKm < 0:
		return 0, &CostInputError{Field: "distanceKm", Value: distanceKm}
	case !isFinite(riskScore) || riskScore < 0:
		return 0, &CostInputError{Field: "riskScore", Value: riskScore}
	case !isFinite(fairnessPenalty):
		return 0, &CostInputError{Field: "fairnessPenalty", Value: fairnessPenalty}
	case !isFinite(c.DistanceWeight) || c.DistanceWeight < 0:
		return 0, &CostInputError{Field: "distanceWeight", Value: c.DistanceWeight}
	case !isFinite(c.RiskWeight) || c.RiskWeight < 0:
		return 0, &CostInputError{Field: "riskWeight", Value: c.RiskWeight}
	case !isFinite(c.FairnessWeight) || c.FairnessWeight < 0:
		return 0, &CostInputError{Field: "fairnessWeight", Value: c.FairnessWeight}
	}
	return distanceKm*c.DistanceWeight + riskScore*c.RiskWeight + fairnessPenalty*c.FairnessWeight, nil
}

// RiskScore looks up the risk for a warehouse-community pair. Absent pairs
// score 0; stored values that are negative or non-finite also score 0 but are
// logged, since they point at a broken risk layer upstream.
func RiskScore(layers map[string]float64, warehouseID, communityID string) float64 {
	if layers == nil {
		return 0
	}
	key := warehouseID + "-" + communityID
	v, ok := layers[key]
	if !ok {
		return 0
	}
	if !isFinite(v) || v < 0 {
		log.Printf("risk layer %s has invalid score %v, treating as 0", key, v)
		return 0
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
