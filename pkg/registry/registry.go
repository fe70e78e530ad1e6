// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"

	"research-workers/internal/common/validation"
)

var errorCodePattern = regexp.MustCompile(`^[A-Z][A-Z0-9]*(_[A-Z0-9]+)*$`)

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRegistry(data)
}

func ParseRegistry(data []byte) (*ActivityRegistry, error) {
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse activity registry: %w", err)
	}
	for _, a := range reg.Activities {
		if err := validation.ValidateActivityNaming(a.TaskType); err != nil {
			return nil, err
		}
	}
	return &reg, nil
}

// Validate checks required fields, duplicate ids and that every schema compiles.
func (r *ActivityRegistry) Validate() error {
	if len(r.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}

	ids := make(map[string]bool)
	for _, activity := range r.Activities {
		if activity.ID == "" {
			return fmt.Errorf("activity missing required field: ID")
		}
		if ids[activity.ID] {
			return fmt.Errorf("duplicate activity ID: %s", activity.ID)
		}
		ids[activity.ID] = true

		if activity.DisplayName == "" {
			return fmt.Errorf("activity %s missing required field: DisplayName", activity.ID)
		}
		if activity.Category == "" {
			return fmt.Errorf("activity %s missing required field: Category", activity.ID)
		}
		if activity.ImplementationStatus != "" && !activity.ImplementationStatus.Known() {
			return fmt.Errorf("activity %s has unknown implementationStatus %q", activity.ID, activity.ImplementationStatus)
		}
		if activity.Retries < 0 {
			return fmt.Errorf("activity %s retries must not be negative", activity.ID)
		}
		for _, code := range activity.ErrorCodes {
			if !errorCodePattern.MatchString(code) {
				return fmt.Errorf("activity %s error code %q must be UPPER_SNAKE_CASE", activity.ID, code)
			}
		}
		if err := validation.CompileSchema(activity.InputSchema); err != nil {
			return fmt.Errorf("activity %s inputSchema: %w", activity.ID, err)
		}
		if err := validation.CompileSchema(activity.OutputSchema); err != nil {
			return fmt.Errorf("activity %s outputSchema: %w", activity.ID, err)
		}
		if activity.Timeout != "" {
			if _, err := time.ParseDuration(activity.Timeout); err != nil {
				return fmt.Errorf("activity %s timeout: %w", activity.ID, err)
			}
		}
	}
	return nil
}

// Find returns the activity registered for a task type.
func (r *ActivityRegistry) Find(taskType string) (*Activity, bool) {
	if r == nil {
		return nil, false
	}
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// Runnable reports whether a worker should be registered for taskType. Task types
// missing from the registry and activities without a status are runnable.
func (r *ActivityRegistry) Runnable(taskType string) bool {
	activity, ok := r.Find(taskType)
	if !ok || activity.ImplementationStatus == "" {
		return true
	}
	return activity.ImplementationStatus == StatusImplemented
}

// RetriesFor returns the declared job retries, or fallback when unset.
func (r *ActivityRegistry) RetriesFor(taskType string, fallback int) int {
	activity, ok := r.Find(taskType)
	if !ok || activity.Retries <= 0 {
		return fallback
	}
	return activity.Retries
}

// ValidateInput checks job variables against the activity's input schema.
// Unknown task types are accepted unchanged.
func (r *ActivityRegistry) ValidateInput(taskType string, input map[string]interface{}) error {
	activity, ok := r.Find(taskType)
	if !ok {
		return nil
	}
	res, err := validation.ValidateInput(input, activity.InputSchema)
	if err != nil {
		return err
	}
	if !res.Valid {
		return fmt.Errorf("invalid input for %s: %s", taskType, res.Error())
	}
	return nil
}

// TimeoutFor parses the activity timeout, falling back when unset or malformed.
func (r *ActivityRegistry) TimeoutFor(taskType string, fallback time.Duration) time.Duration {
	activity, ok := r.Find(taskType)
	if !ok || activity.Timeout == "" {
		return fallback
	}
	d, err := time.ParseDuration(activity.Timeout)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
