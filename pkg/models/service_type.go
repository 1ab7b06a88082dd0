package models

import (
	"fmt"
	"strings"
	"unicode"
)

// ServiceType is one of the three mutually exclusive engagement models.
type ServiceType string

const (
	ServiceTypeDedicatedVA      ServiceType = "Dedicated VA"
	ServiceTypeProjectsOnDemand ServiceType = "Projects on Demand"
	ServiceTypeUnicornVA        ServiceType = "Unicorn VA Service"
)

// AllServiceTypes lists the service types in display order.
var AllServiceTypes = []ServiceType{
	ServiceTypeDedicatedVA,
	ServiceTypeProjectsOnDemand,
	ServiceTypeUnicornVA,
}

// IsValid reports whether s is one of the known service types.
func (s ServiceType) IsValid() bool {
	switch s {
	case ServiceTypeDedicatedVA, ServiceTypeProjectsOnDemand, ServiceTypeUnicornVA:
		return true
	}
	return false
}

// ParseServiceType maps the spellings models tend to produce ("dedicated_va",
// "Projects On-Demand", "unicorn") onto a ServiceType.
func ParseServiceType(raw string) (ServiceType, error) {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}

	switch b.String() {
	case "dedicatedva", "dedicated", "dedicatedvirtualassistant":
		return ServiceTypeDedicatedVA, nil
	case "projectsondemand", "projectondemand", "projects", "project":
		return ServiceTypeProjectsOnDemand, nil
	case "unicornvaservice", "unicornva", "unicorn", "unicornvirtualassistant":
		return ServiceTypeUnicornVA, nil
	}
	return "", fmt.Errorf("unknown service type %q", raw)
}
