package engine

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"maestro/internal/domain"
)

var budgetPattern = regexp.MustCompile(`^\d{1,10}(\.\d{1,2})?$`)

func validateType(t string) error {
	switch t {
	case domain.TypeOneTime, domain.TypeLongTerm:
		return nil
	}
	return invalid("interaction_type", "must be one_time or long_term")
}

func validateCurrency(c string) error {
	switch c {
	case "RUB", "USD", "EUR":
		return nil
	}
	return invalid("budget_currency", "must be RUB, USD or EUR")
}

func validateRole(role string) error {
	switch role {
	case domain.RoleAgent, domain.RoleVenue, domain.RolePerformer:
		return nil
	}
	return invalid("role", "unknown role %q", role)
}

// normalizeDate accepts YYYY-MM-DD. Empty means unset.
func normalizeDate(field string, v *string) (*string, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(*v))
	if err != nil {
		return nil, invalid(field, "must be a date in YYYY-MM-DD form")
	}
	out := d.Format(time.DateOnly)
	return &out, nil
}

func normalizeBudget(v *string) (*string, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	s := strings.TrimSpace(*v)
	if !budgetPattern.MatchString(s) {
		return nil, invalid("budget_amount", "must be a non-negative amount with at most two decimals")
	}
	return &s, nil
}

func validateInteraction(it domain.Interaction) error {
	if strings.TrimSpace(it.Title) == "" {
		return invalid("title", "is required")
	}
	if len([]rune(it.Title)) > 255 {
		return invalid("title", "is longer than 255 characters")
	}
	if err := validateType(it.Type); err != nil {
		return err
	}
	if err := validateCurrency(it.BudgetCurrency); err != nil {
		return err
	}
	if it.StartDate != nil && it.EndDate != nil && *it.EndDate < *it.StartDate {
		return invalid("end_date", "is before start_date")
	}
	return nil
}

func validateMediaLink(v string) error {
	if v == "" {
		return nil
	}
	u, err := url.Parse(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("media_link", "must be an http(s) URL")
	}
	return nil
}
