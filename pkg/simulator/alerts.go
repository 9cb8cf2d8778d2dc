package simulator

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/travigo/transitlive/pkg/ctdf"
	"github.com/travigo/transitlive/pkg/util"
	"golang.org/x/exp/slices"
)

type alertChange struct {
	Action ctdf.ServiceAlertAction
	Alert  *ctdf.ServiceAlert
}

func newAlertIdentifier() string {
	return fmt.Sprintf("ALERT-%s", uuid.New().String())
}

// maybeGenerateAlert is the generation cadence: with the configured probability
// it raises (or refreshes) an alert on a random route
func (s *state) maybeGenerateAlert(now time.Time) *alertChange {
	if len(s.routeOrder) == 0 || !chance(s.random, s.config.GenerationProbability) {
		return nil
	}

	routeID := s.routeOrder[s.random.IntN(len(s.routeOrder))]
	alertType := s.config.AlertTypes[s.random.IntN(len(s.config.AlertTypes))]
	severity := ctdf.ServiceAlertSeverities[s.random.IntN(len(ctdf.ServiceAlertSeverities))]

	return s.generateAlert(now, routeID, alertType, severity)
}

// generateAlert merges into the active alert for the route & type when there is one,
// otherwise it creates a new alert
func (s *state) generateAlert(now time.Time, routeID string, alertType ctdf.ServiceAlertType, severity ctdf.ServiceAlertSeverity) *alertChange {
	route := s.routes[routeID]
	if route == nil {
		return nil
	}

	validUntil := now.Add(minutesIn(s.random, s.config.durationRange(severity)))

	if existing := s.activeAlertFor(routeID, alertType, ""); existing != nil {
		if existing.Severity != severity {
			existing.Severity = severity
			existing.Text = ctdf.ServiceAlertDescription(severity, alertType, route.Name)
		}
		existing.ValidUntil = &validUntil
		existing.UpdateCount++
		existing.ModificationDateTime = now

		log.Debug().
			Str("alert", existing.PrimaryIdentifier).
			Str("route", routeID).
			Int("updates", existing.UpdateCount).
			Msg("Refreshed service alert")

		return &alertChange{Action: ctdf.ServiceAlertActionUpdated, Alert: existing}
	}

	alert := &ctdf.ServiceAlert{
		PrimaryIdentifier:    newAlertIdentifier(),
		CreationDateTime:     now,
		ModificationDateTime: now,
		AlertType:            alertType,
		Severity:             severity,
		Title:                ctdf.ServiceAlertTitle(alertType, route.Name),
		Text:                 ctdf.ServiceAlertDescription(severity, alertType, route.Name),
		AffectedRoutes:       []string{routeID},
		AffectedStops:        []string{},
		ValidFrom:            now,
		ValidUntil:           &validUntil,
		Active:               true,
		CreatedBy:            "simulator",
	}
	s.alerts[alert.PrimaryIdentifier] = alert

	log.Debug().
		Str("alert", alert.PrimaryIdentifier).
		Str("route", routeID).
		Str("type", string(alertType)).
		Str("severity", string(severity)).
		Msg("Generated service alert")

	return &alertChange{Action: ctdf.ServiceAlertActionCreated, Alert: alert}
}

// expireAlerts deactivates every active alert whose end time has passed
func (s *state) expireAlerts(now time.Time) []*alertChange {
	var changes []*alertChange

	for _, alert := range s.sortedAlerts() {
		if !alert.HasExpired(now) {
			continue
		}

		alert.Active = false
		alert.ModificationDateTime = now

		changes = append(changes, &alertChange{Action: ctdf.ServiceAlertActionExpired, Alert: alert})
	}

	if len(changes) > 0 {
		log.Info().Int("length", len(changes)).Msg("Expired service alerts")
	}

	return changes
}

// activeAlertFor finds the active alert of the given type covering the route, ignoring excludeID
func (s *state) activeAlertFor(routeID string, alertType ctdf.ServiceAlertType, excludeID string) *ctdf.ServiceAlert {
	for _, alert := range s.sortedAlerts() {
		if alert.PrimaryIdentifier != excludeID && alert.Active && alert.AlertType == alertType && alert.AffectsRoute(routeID) {
			return alert
		}
	}
	return nil
}

func (s *state) conflictingAlert(alert *ctdf.ServiceAlert) *ctdf.ServiceAlert {
	if !alert.Active {
		return nil
	}
	for _, routeID := range alert.AffectedRoutes {
		if existing := s.activeAlertFor(routeID, alert.AlertType, alert.PrimaryIdentifier); existing != nil {
			return existing
		}
	}
	return nil
}

// sortedAlerts returns alerts oldest first, so lookups are stable
func (s *state) sortedAlerts() []*ctdf.ServiceAlert {
	alerts := make([]*ctdf.ServiceAlert, 0, len(s.alerts))
	for _, alert := range s.alerts {
		alerts = append(alerts, alert)
	}

	slices.SortFunc(alerts, func(a, b *ctdf.ServiceAlert) int {
		if c := a.CreationDateTime.Compare(b.CreationDateTime); c != 0 {
			return c
		}
		return strings.Compare(a.PrimaryIdentifier, b.PrimaryIdentifier)
	})

	return alerts
}

// seedAlerts loads previously persisted alerts. Later duplicates of an active
// route & type pair are deactivated so only one stays active.
func (s *state) seedAlerts(alerts []*ctdf.ServiceAlert, now time.Time) []*alertChange {
	var changes []*alertChange

	for _, alert := range alerts {
		if alert.PrimaryIdentifier == "" {
			continue
		}
		if alert.AffectedRoutes == nil {
			alert.AffectedRoutes = []string{}
		}
		if alert.AffectedStops == nil {
			alert.AffectedStops = []string{}
		}

		if conflict := s.conflictingAlert(alert); conflict != nil {
			alert.Active = false
			alert.ModificationDateTime = now
			changes = append(changes, &alertChange{Action: ctdf.ServiceAlertActionDeactivated, Alert: alert})
		}

		s.alerts[alert.PrimaryIdentifier] = alert
	}

	return changes
}

// AlertFilter narrows ListServiceAlerts. Zero values match everything.
type AlertFilter struct {
	Active   *bool
	Severity ctdf.ServiceAlertSeverity
	Type     ctdf.ServiceAlertType
}

func (f AlertFilter) matches(alert *ctdf.ServiceAlert) bool {
	if f.Active != nil && alert.Active != *f.Active {
		return false
	}
	if f.Severity != "" && alert.Severity != f.Severity {
		return false
	}
	if f.Type != "" && alert.AlertType != f.Type {
		return false
	}
	return true
}

func (s *state) listAlerts(filter AlertFilter) []*ctdf.ServiceAlert {
	alerts := s.sortedAlerts()
	util.InPlaceFilter(&alerts, filter.matches)
	slices.Reverse(alerts)

	return alerts
}

// AlertUpdate holds the fields an external update may change. Nil fields are left alone.
type AlertUpdate struct {
	Title          *string
	Text           *string
	AlertType      *ctdf.ServiceAlertType
	Severity       *ctdf.ServiceAlertSeverity
	AffectedRoutes []string
	AffectedStops  []string
	ValidFrom      *time.Time
	ValidUntil     *time.Time
	ClearUntil     bool
	Active         *bool
}

func (s *state) createAlert(input *ctdf.ServiceAlert, now time.Time) (*alertChange, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: missing alert", ErrInvalidAlert)
	}

	alert := &ctdf.ServiceAlert{
		PrimaryIdentifier:    newAlertIdentifier(),
		CreationDateTime:     now,
		ModificationDateTime: now,
		AlertType:            input.AlertType,
		Severity:             input.Severity,
		Title:                strings.TrimSpace(input.Title),
		Text:                 input.Text,
		AffectedRoutes:       append([]string{}, input.AffectedRoutes...),
		AffectedStops:        append([]string{}, input.AffectedStops...),
		ValidFrom:            input.ValidFrom,
		ValidUntil:           input.ValidUntil,
		Active:               true,
		CreatedBy:            input.CreatedBy,
	}
	if alert.AlertType == "" {
		alert.AlertType = ctdf.ServiceAlertTypeOther
	}
	if alert.Severity == "" {
		alert.Severity = ctdf.ServiceAlertSeverityInfo
	}
	if alert.ValidFrom.IsZero() {
		alert.ValidFrom = now
	}

	if err := validateAlert(alert); err != nil {
		return nil, err
	}
	if conflict := s.conflictingAlert(alert); conflict != nil {
		return nil, fmt.Errorf("%w: %s", ErrActiveAlertExists, conflict.PrimaryIdentifier)
	}

	s.alerts[alert.PrimaryIdentifier] = alert

	return &alertChange{Action: ctdf.ServiceAlertActionCreated, Alert: alert}, nil
}

func (s *state) updateAlert(id string, update AlertUpdate, now time.Time) (*alertChange, error) {
	existing, exists := s.alerts[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAlertNotFound, id)
	}

	// Work on a copy so a rejected update leaves the stored alert untouched
	alert := *existing
	if update.Title != nil {
		alert.Title = strings.TrimSpace(*update.Title)
	}
	if update.Text != nil {
		alert.Text = *update.Text
	}
	if update.AlertType != nil {
		alert.AlertType = *update.AlertType
	}
	if update.Severity != nil {
		alert.Severity = *update.Severity
	}
	if update.AffectedRoutes != nil {
		alert.AffectedRoutes = append([]string{}, update.AffectedRoutes...)
	}
	if update.AffectedStops != nil {
		alert.AffectedStops = append([]string{}, update.AffectedStops...)
	}
	if update.ValidFrom != nil {
		alert.ValidFrom = *update.ValidFrom
	}
	if update.ClearUntil {
		alert.ValidUntil = nil
	} else if update.ValidUntil != nil {
		validUntil := *update.ValidUntil
		alert.ValidUntil = &validUntil
	}
	if update.Active != nil {
		alert.Active = *update.Active
	}

	if err := validateAlert(&alert); err != nil {
		return nil, err
	}
	if conflict := s.conflictingAlert(&alert); conflict != nil {
		return nil, fmt.Errorf("%w: %s", ErrActiveAlertExists, conflict.PrimaryIdentifier)
	}

	alert.ModificationDateTime = now
	*existing = alert

	return &alertChange{Action: ctdf.ServiceAlertActionUpdated, Alert: existing}, nil
}

func (s *state) deactivateAlert(id string, now time.Time) (*alertChange, error) {
	alert, exists := s.alerts[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAlertNotFound, id)
	}
	if !alert.Active {
		return &alertChange{Alert: alert}, nil
	}

	alert.Active = false
	alert.ModificationDateTime = now

	return &alertChange{Action: ctdf.ServiceAlertActionDeactivated, Alert: alert}, nil
}

func (s *state) deleteAlert(id string, now time.Time) (*alertChange, error) {
	alert, exists := s.alerts[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAlertNotFound, id)
	}

	delete(s.alerts, id)
	alert.ModificationDateTime = now

	return &alertChange{Action: ctdf.ServiceAlertActionDeleted, Alert: alert}, nil
}

func validateAlert(alert *ctdf.ServiceAlert) error {
	if alert.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidAlert)
	}
	if !alert.AlertType.Valid() {
		return fmt.Errorf("%w: unknown alert type %q", ErrInvalidAlert, alert.AlertType)
	}
	if !alert.Severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidAlert, alert.Severity)
	}
	if alert.ValidUntil != nil && alert.ValidUntil.Before(alert.ValidFrom) {
		return fmt.Errorf("%w: valid until is before valid from", ErrInvalidAlert)
	}
	return nil
}
