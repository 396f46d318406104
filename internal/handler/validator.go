package handler

import "github.com/iliyamo/garbage-collector/internal/service"

// Validator plugs the service's go-playground validator into Echo so
// handlers can call c.Validate on request bodies.
type Validator struct{}

func (Validator) Validate(i any) error { return service.Validate(i) }
