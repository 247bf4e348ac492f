package api

import (
	"fmt"

	"routega/internal/model"
)

func validateSolveRequest(req *model.SolveRequest) error {
	if len(req.Points) == 0 {
		return fmt.Errorf("at least one delivery point is required")
	}
	if len(req.Vehicles) == 0 {
		return fmt.Errorf("at least one vehicle is required")
	}
	if err := validateCoord(req.Depot); err != nil {
		return fmt.Errorf("depot: %w", err)
	}
	for i := range req.Points {
		p := &req.Points[i]
		if err := validateCoord(p.Location); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
		if p.Priority == "" {
			p.Priority = model.PriorityMedium
		}
		if !p.Priority.Valid() {
			return fmt.Errorf("point %d: unknown priority %q", i, p.Priority)
		}
		if p.WeightKg < 0 || p.VolumeM3 < 0 {
			return fmt.Errorf("point %d: weight and volume must be >= 0", i)
		}
	}
	for i, v := range req.Vehicles {
		if v.CapacityKg <= 0 {
			return fmt.Errorf("vehicle %d: capacityKg must be > 0", i)
		}
		if v.CapacityM3 <= 0 {
			return fmt.Errorf("vehicle %d: capacityM3 must be > 0", i)
		}
		if v.AutonomyKm <= 0 {
			return fmt.Errorf("vehicle %d: autonomyKm must be > 0", i)
		}
		if v.CostPerKm < 0 || v.AverageSpeedKmh < 0 {
			return fmt.Errorf("vehicle %d: cost and speed must be >= 0", i)
		}
	}
	return nil
}

func validateCoord(g model.GeoPoint) error {
	if g.Lat < -90 || g.Lat > 90 {
		return fmt.Errorf("latitude %v out of range", g.Lat)
	}
	if g.Lng < -180 || g.Lng > 180 {
		return fmt.Errorf("longitude %v out of range", g.Lng)
	}
	return nil
}
