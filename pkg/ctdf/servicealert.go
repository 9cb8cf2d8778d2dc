package ctdf

import (
	"fmt"
	"strings"
	"time"
)

type ServiceAlert struct {
	PrimaryIdentifier string `groups:"basic"`

	CreationDateTime     time.Time `groups:"detailed"`
	ModificationDateTime time.Time `groups:"detailed"`

	AlertType ServiceAlertType     `groups:"basic"`
	Severity  ServiceAlertSeverity `groups:"basic"`

	Title string `groups:"basic"`
	Text  string `groups:"basic"`

	AffectedRoutes []string `groups:"basic"`
	AffectedStops  []string `groups:"basic"`

	ValidFrom  time.Time  `groups:"basic"`
	ValidUntil *time.Time `groups:"basic"`

	Active      bool `groups:"basic"`
	UpdateCount int  `groups:"detailed"`

	CreatedBy string `groups:"internal"`
}

type ServiceAlertType string

const (
	ServiceAlertTypeDelay        ServiceAlertType = "Delay"
	ServiceAlertTypeCancellation ServiceAlertType = "Cancellation"
	ServiceAlertTypeMaintenance  ServiceAlertType = "Maintenance"
	ServiceAlertTypeDisruption   ServiceAlertType = "Disruption"
	ServiceAlertTypeOther        ServiceAlertType = "Other"
)

var ServiceAlertTypes = []ServiceAlertType{
	ServiceAlertTypeDelay,
	ServiceAlertTypeCancellation,
	ServiceAlertTypeMaintenance,
	ServiceAlertTypeDisruption,
	ServiceAlertTypeOther,
}

func (t ServiceAlertType) Valid() bool {
	for _, alertType := range ServiceAlertTypes {
		if t == alertType {
			return true
		}
	}
	return false
}

type ServiceAlertSeverity string

const (
	ServiceAlertSeverityInfo     ServiceAlertSeverity = "Info"
	ServiceAlertSeverityWarning  ServiceAlertSeverity = "Warning"
	ServiceAlertSeverityCritical ServiceAlertSeverity = "Critical"
)

var ServiceAlertSeverities = []ServiceAlertSeverity{
	ServiceAlertSeverityInfo,
	ServiceAlertSeverityWarning,
	ServiceAlertSeverityCritical,
}

func (s ServiceAlertSeverity) Valid() bool {
	switch s {
	case ServiceAlertSeverityInfo, ServiceAlertSeverityWarning, ServiceAlertSeverityCritical:
		return true
	}
	return false
}

// IsValid reports whether the alert is active and checkTime falls inside its validity window.
// An alert with no ValidUntil is open ended.
func (a *ServiceAlert) IsValid(checkTime time.Time) bool {
	if !a.Active || checkTime.Before(a.ValidFrom) {
		return false
	}
	return a.ValidUntil == nil || checkTime.Before(*a.ValidUntil)
}

// HasExpired is true for an active alert whose end time has passed
func (a *ServiceAlert) HasExpired(checkTime time.Time) bool {
	return a.Active && a.ValidUntil != nil && !a.ValidUntil.After(checkTime)
}

func (a *ServiceAlert) AffectsRoute(routeID string) bool {
	for _, route := range a.AffectedRoutes {
		if route == routeID {
			return true
		}
	}
	return false
}

func ServiceAlertTitle(alertType ServiceAlertType, routeName string) string {
	return fmt.Sprintf("%s on %s", alertType, routeName)
}

func ServiceAlertDescription(severity ServiceAlertSeverity, alertType ServiceAlertType, routeName string) string {
	typeText := strings.ToLower(string(alertType))

	switch severity {
	case ServiceAlertSeverityCritical:
		return fmt.Sprintf("Critical service %s affecting %s. Expect significant delays.", typeText, routeName)
	case ServiceAlertSeverityWarning:
		return fmt.Sprintf("Service %s affecting %s. Please allow extra travel time.", typeText, routeName)
	default:
		return fmt.Sprintf("Minor service %s affecting %s.", typeText, routeName)
	}
}
